package obligation_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/obligation"
	"github.com/frahmantamala/fleet-ledger/internal/transport"
	"github.com/frahmantamala/fleet-ledger/pkg/logger"
)

type mockObligationService struct {
	err       error
	item      *obligation.Obligation
	gotActor  string
	gotDriver int64
	gotID     int64
	gotCreate obligation.CreateObligationsDTO
	gotFilter obligation.ListFilter
	gotMark   obligation.MarkPaidDTO
}

func (m *mockObligationService) CreateObligations(ctx context.Context, actorID string, driverID int64, dto obligation.CreateObligationsDTO) ([]*obligation.Obligation, error) {
	m.gotActor, m.gotDriver, m.gotCreate = actorID, driverID, dto
	if m.err != nil {
		return nil, m.err
	}
	return []*obligation.Obligation{m.item}, nil
}

func (m *mockObligationService) ListObligations(ctx context.Context, driverID int64, filter obligation.ListFilter) ([]*obligation.Obligation, error) {
	m.gotDriver, m.gotFilter = driverID, filter
	if m.err != nil {
		return nil, m.err
	}
	return []*obligation.Obligation{m.item}, nil
}

func (m *mockObligationService) GetObligation(ctx context.Context, id int64) (*obligation.Obligation, error) {
	m.gotID = id
	if m.err != nil {
		return nil, m.err
	}
	return m.item, nil
}

func (m *mockObligationService) UpdateObligation(ctx context.Context, actorID string, id int64, dto obligation.UpdateObligationDTO) (*obligation.Obligation, error) {
	m.gotActor, m.gotID = actorID, id
	if m.err != nil {
		return nil, m.err
	}
	return m.item, nil
}

func (m *mockObligationService) DeleteObligation(ctx context.Context, actorID string, id int64) error {
	m.gotActor, m.gotID = actorID, id
	return m.err
}

func (m *mockObligationService) MarkObligationPaid(ctx context.Context, actorID string, id int64, dto obligation.MarkPaidDTO) (*obligation.Obligation, error) {
	m.gotActor, m.gotID, m.gotMark = actorID, id, dto
	if m.err != nil {
		return nil, m.err
	}
	return m.item, nil
}

var _ = Describe("ObligationHandler", func() {
	var (
		svc    *mockObligationService
		router http.Handler
	)

	call := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(internal.ContextWithActorID(req.Context(), "clerk-2"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	BeforeEach(func() {
		svc = &mockObligationService{
			item: &obligation.Obligation{
				ID:             5,
				DriverID:       3,
				EarningDate:    day(7),
				ExpectedAmount: dec("1000.00"),
				PaidAmount:     dec("400.00"),
			},
		}
		h := obligation.NewHandler(&transport.BaseHandler{Logger: logger.Discard()}, svc)

		r := chi.NewRouter()
		r.Get("/drivers/{driverID}/obligations", h.ListObligations)
		r.Post("/drivers/{driverID}/obligations", h.CreateObligations)
		r.Get("/obligations/{id}", h.GetObligation)
		r.Patch("/obligations/{id}", h.UpdateObligation)
		r.Delete("/obligations/{id}", h.DeleteObligation)
		r.Post("/obligations/{id}/mark-paid", h.MarkPaid)
		router = r
	})

	It("should create obligations for the driver in the path", func() {
		rr := call(http.MethodPost, "/drivers/3/obligations", `{"dates":["2025-01-07"],"amount":"1000.00"}`)

		Expect(rr.Code).To(Equal(http.StatusCreated))
		Expect(svc.gotActor).To(Equal("clerk-2"))
		Expect(svc.gotDriver).To(Equal(int64(3)))
		Expect(svc.gotCreate.Dates).To(ConsistOf("2025-01-07"))

		var body obligation.ObligationsResponse
		Expect(json.Unmarshal(rr.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Obligations).To(HaveLen(1))
		Expect(body.Obligations[0].EarningDate).To(Equal("2025-01-07"))
		Expect(body.Obligations[0].RemainingAmount.String()).To(Equal("600"))
	})

	It("should reject unknown fields", func() {
		rr := call(http.MethodPost, "/drivers/3/obligations", `{"dates":["2025-01-07"],"amount":"1","colour":"red"}`)
		Expect(rr.Code).To(Equal(http.StatusBadRequest))
	})

	It("should pass list filters through", func() {
		rr := call(http.MethodGet, "/drivers/3/obligations?unpaid_only=true&month=1&year=2025&direction=asc&from=2025-01-01", "")

		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(svc.gotFilter.UnpaidOnly).To(BeTrue())
		Expect(svc.gotFilter.Month).To(Equal(1))
		Expect(svc.gotFilter.Year).To(Equal(2025))
		Expect(svc.gotFilter.Direction).To(Equal("asc"))
		Expect(svc.gotFilter.From.Equal(day(1))).To(BeTrue())
		Expect(svc.gotFilter.To.IsZero()).To(BeTrue())
	})

	It("should reject a non numeric month", func() {
		rr := call(http.MethodGet, "/drivers/3/obligations?month=jan", "")
		Expect(rr.Code).To(Equal(http.StatusBadRequest))
	})

	It("should map a missing record to 404", func() {
		svc.err = internal.ErrObligationNotFound()
		rr := call(http.MethodGet, "/obligations/9", "")

		Expect(rr.Code).To(Equal(http.StatusNotFound))
		Expect(rr.Body.String()).To(ContainSubstring(string(internal.ErrCodeObligationNotFound)))
	})

	It("should refuse to delete a settled record", func() {
		svc.err = internal.ErrObligationSettled()
		rr := call(http.MethodDelete, "/obligations/5", "")

		Expect(rr.Code).To(Equal(http.StatusConflict))
		Expect(svc.gotID).To(Equal(int64(5)))
	})

	It("should return 204 after a delete", func() {
		rr := call(http.MethodDelete, "/obligations/5", "")
		Expect(rr.Code).To(Equal(http.StatusNoContent))
	})

	It("should mark a record paid against a payment", func() {
		rr := call(http.MethodPost, "/obligations/5/mark-paid", `{"payment_id":12}`)

		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(svc.gotMark.PaymentID).To(Equal(int64(12)))
		Expect(svc.gotMark.Amount).To(BeNil())
	})
})
