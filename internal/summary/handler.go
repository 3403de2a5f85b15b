package summary

import (
	"context"
	"net/http"

	"github.com/frahmantamala/fleet-ledger/internal/core/common/pagination"
	"github.com/frahmantamala/fleet-ledger/internal/transport"
)

type ServiceAPI interface {
	DriverSummaryInRange(ctx context.Context, driverID int64, r Range) (*DriverSummary, error)
	ListDriversWithDebtStatus(ctx context.Context, filter DriverListFilter, page, limit int) (*DriverPage, error)
	PaymentSummary(ctx context.Context, r Range) (*PaymentSummary, error)
	TopPayers(ctx context.Context, r Range, limit int) ([]*TopPayer, error)
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

func (h *Handler) queryRange(r *http.Request) (Range, error) {
	from, err := h.QueryDate(r, "from")
	if err != nil {
		return Range{}, err
	}
	to, err := h.QueryDate(r, "to")
	if err != nil {
		return Range{}, err
	}
	return Range{From: from, To: to}, nil
}

func (h *Handler) ListDrivers(w http.ResponseWriter, r *http.Request) {
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

	filter := DriverListFilter{
		Search:        r.URL.Query().Get("search"),
		OnlyWithDebts: h.QueryBool(r, "only_with_debts"),
	}

	result, err := h.Service.ListDriversWithDebtStatus(r.Context(), filter, page, limit)
	if err != nil {
		h.Logger.Error("ListDrivers: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) GetDriverSummary(w http.ResponseWriter, r *http.Request) {
	driverID, err := h.PathID(r, "driverID")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	rg, err := h.queryRange(r)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	sum, err := h.Service.DriverSummaryInRange(r.Context(), driverID, rg)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, sum.ToResponse())
}

func (h *Handler) PaymentReport(w http.ResponseWriter, r *http.Request) {
	rg, err := h.queryRange(r)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	report, err := h.Service.PaymentSummary(r.Context(), rg)
	if err != nil {
		h.Logger.Error("PaymentReport: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) TopPayers(w http.ResponseWriter, r *http.Request) {
	rg, err := h.queryRange(r)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	limit, err := h.QueryInt(r, "limit", DefaultTopPayers)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	payers, err := h.Service.TopPayers(r.Context(), rg, limit)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"top_payers": payers})
}
