package payment

import (
	"context"
	"net/http"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/core/common/pagination"
	"github.com/frahmantamala/fleet-ledger/internal/transport"
)

type ServiceAPI interface {
	RecordPayment(ctx context.Context, actorID string, driverID int64, dto RecordPaymentDTO) (*RecordPaymentResult, error)
	RecordStandalonePayment(ctx context.Context, actorID string, driverID int64, dto StandalonePaymentDTO) (*Payment, error)
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	ListPayments(ctx context.Context, filter ListFilter, page, limit int) (*Page, error)
	UpdatePayment(ctx context.Context, actorID string, id int64, dto UpdatePaymentDTO) (*Payment, error)
	DeletePayment(ctx context.Context, actorID string, id int64) error
	ReallocatePayment(ctx context.Context, actorID string, id int64) (*RecordPaymentResult, error)
	UpdateReceiptStatus(ctx context.Context, actorID string, id int64, status string) (*Payment, error)
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

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	driverID, err := h.PathID(r, "driverID")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var dto RecordPaymentDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.Logger.Error("RecordPayment: invalid request body", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	actorID := internal.ActorIDFromContext(r.Context())
	result, err := h.Service.RecordPayment(r.Context(), actorID, driverID, dto)
	if err != nil {
		h.Logger.Error("RecordPayment: service error", "error", err, "driver_id", driverID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("RecordPayment: payment recorded",
		"payment_id", result.Payment.ID,
		"driver_id", driverID,
		"total_applied", result.TotalApplied.String(),
		"unallocated", result.UnallocatedAmount.String())

	h.WriteJSON(w, http.StatusCreated, result.ToResponse())
}

func (h *Handler) RecordStandalonePayment(w http.ResponseWriter, r *http.Request) {
	driverID, err := h.PathID(r, "driverID")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var dto StandalonePaymentDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.Logger.Error("RecordStandalonePayment: invalid request body", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	p, err := h.Service.RecordStandalonePayment(r.Context(), internal.ActorIDFromContext(r.Context()), driverID, dto)
	if err != nil {
		h.Logger.Error("RecordStandalonePayment: service error", "error", err, "driver_id", driverID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, p.ToResponse())
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathID(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	p, err := h.Service.GetPayment(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p.ToResponse())
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := h.QueryDate(r, "from")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	to, err := h.QueryDate(r, "to")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	driverID, err := h.QueryInt(r, "driver_id", 0)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	page, err := h.QueryInt(r, "page", 1)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	limit, err := h.QueryInt(r, "limit", pagination.DefaultLimit)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	filter := ListFilter{
		DriverID:           int64(driverID),
		From:               from,
		To:                 to,
		Status:             q.Get("status"),
		Channel:            q.Get("payment_channel"),
		CompletedOnly:      h.QueryBool(r, "completed_only"),
		PendingReceiptOnly: h.QueryBool(r, "pending_receipt_only"),
	}

	result, err := h.Service.ListPayments(r.Context(), filter, page, limit)
	if err != nil {
		h.Logger.Error("ListPayments: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result.ToResponse())
}

func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathID(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var dto UpdatePaymentDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	p, err := h.Service.UpdatePayment(r.Context(), internal.ActorIDFromContext(r.Context()), id, dto)
	if err != nil {
		h.Logger.Error("UpdatePayment: service error", "error", err, "payment_id", id)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p.ToResponse())
}

func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathID(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if err := h.Service.DeletePayment(r.Context(), internal.ActorIDFromContext(r.Context()), id); err != nil {
		h.Logger.Error("DeletePayment: service error", "error", err, "payment_id", id)
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReallocatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathID(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	result, err := h.Service.ReallocatePayment(r.Context(), internal.ActorIDFromContext(r.Context()), id)
	if err != nil {
		h.Logger.Error("ReallocatePayment: service error", "error", err, "payment_id", id)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result.ToResponse())
}

func (h *Handler) UpdateReceiptStatus(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathID(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var dto ReceiptStatusDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	p, err := h.Service.UpdateReceiptStatus(r.Context(), internal.ActorIDFromContext(r.Context()), id, dto.Status)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p.ToResponse())
}
