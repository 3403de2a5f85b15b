package obligation

import (
	"context"
	"net/http"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/transport"
)

type ServiceAPI interface {
	CreateObligations(ctx context.Context, actorID string, driverID int64, dto CreateObligationsDTO) ([]*Obligation, error)
	ListObligations(ctx context.Context, driverID int64, filter ListFilter) ([]*Obligation, error)
	GetObligation(ctx context.Context, id int64) (*Obligation, error)
	UpdateObligation(ctx context.Context, actorID string, id int64, dto UpdateObligationDTO) (*Obligation, error)
	DeleteObligation(ctx context.Context, actorID string, id int64) error
	MarkObligationPaid(ctx context.Context, actorID string, id int64, dto MarkPaidDTO) (*Obligation, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) CreateObligations(w http.ResponseWriter, r *http.Request) {
	driverID, err := h.PathID(r, "driverID")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var dto CreateObligationsDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.Logger.Error("CreateObligations: invalid request body", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	items, err := h.Service.CreateObligations(r.Context(), internal.ActorIDFromContext(r.Context()), driverID, dto)
	if err != nil {
		h.Logger.Error("CreateObligations: service error", "error", err, "driver_id", driverID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, ToResponses(items))
}

func (h *Handler) ListObligations(w http.ResponseWriter, r *http.Request) {
	driverID, err := h.PathID(r, "driverID")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	filter := ListFilter{
		UnpaidOnly: h.QueryBool(r, "unpaid_only"),
		Direction:  r.URL.Query().Get("direction"),
	}
	if filter.From, err = h.QueryDate(r, "from"); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if filter.To, err = h.QueryDate(r, "to"); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if filter.Month, err = h.QueryInt(r, "month", 0); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if filter.Year, err = h.QueryInt(r, "year", 0); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	items, err := h.Service.ListObligations(r.Context(), driverID, filter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponses(items))
}

func (h *Handler) GetObligation(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathID(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	o, err := h.Service.GetObligation(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, o.ToResponse())
}

func (h *Handler) UpdateObligation(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathID(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var dto UpdateObligationDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	o, err := h.Service.UpdateObligation(r.Context(), internal.ActorIDFromContext(r.Context()), id, dto)
	if err != nil {
		h.Logger.Error("UpdateObligation: service error", "error", err, "obligation_id", id)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, o.ToResponse())
}

func (h *Handler) DeleteObligation(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathID(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if err := h.Service.DeleteObligation(r.Context(), internal.ActorIDFromContext(r.Context()), id); err != nil {
		h.Logger.Error("DeleteObligation: service error", "error", err, "obligation_id", id)
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathID(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var dto MarkPaidDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	o, err := h.Service.MarkObligationPaid(r.Context(), internal.ActorIDFromContext(r.Context()), id, dto)
	if err != nil {
		h.Logger.Error("MarkPaid: service error", "error", err, "obligation_id", id)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, o.ToResponse())
}
