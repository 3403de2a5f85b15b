package audit

import (
	"context"
	"net/http"

	"github.com/frahmantamala/fleet-ledger/internal/core/common/pagination"
	"github.com/frahmantamala/fleet-ledger/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context, filter ListFilter, limit int) ([]*Entry, error)
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

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entityID, err := h.QueryInt(r, "entity_id", 0)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	driverID, err := h.QueryInt(r, "driver_id", 0)
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
		EntityType: r.URL.Query().Get("entity_type"),
		EntityID:   int64(entityID),
		DriverID:   int64(driverID),
	}

	entries, err := h.Service.List(r.Context(), filter, limit)
	if err != nil {
		h.Logger.Error("ListEntries: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ToResponse())
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": out})
}
