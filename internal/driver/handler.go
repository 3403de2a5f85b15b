package driver

import (
	"context"
	"net/http"

	"github.com/frahmantamala/fleet-ledger/internal/core/common/pagination"
	"github.com/frahmantamala/fleet-ledger/internal/transport"
)

type ServiceAPI interface {
	Get(ctx context.Context, id int64) (*Driver, error)
	Create(ctx context.Context, dto CreateDriverDTO) (*Driver, error)
	Search(ctx context.Context, query string, page, limit int) (*SearchResult, error)
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

func (h *Handler) GetDriver(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathID(r, "driverID")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	d, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.Logger.Error("GetDriver: failed to load driver", "driver_id", id, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var dto CreateDriverDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	d, err := h.Service.Create(r.Context(), dto)
	if err != nil {
		h.Logger.Error("CreateDriver: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) SearchDrivers(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.Service.Search(r.Context(), r.URL.Query().Get("q"), page, limit)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}
