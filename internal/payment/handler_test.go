package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/fleet-ledger/internal"
	paymentpkg "github.com/frahmantamala/fleet-ledger/internal/payment"
	"github.com/frahmantamala/fleet-ledger/internal/transport"
)

type mockPaymentService struct {
	err       error
	payment   *paymentpkg.Payment
	result    *paymentpkg.RecordPaymentResult
	page      *paymentpkg.Page
	gotActor  string
	gotDriver int64
	gotID     int64
	gotRecord paymentpkg.RecordPaymentDTO
	gotFilter paymentpkg.ListFilter
	gotStatus string
}

func (m *mockPaymentService) RecordPayment(ctx context.Context, actorID string, driverID int64, dto paymentpkg.RecordPaymentDTO) (*paymentpkg.RecordPaymentResult, error) {
	m.gotActor, m.gotDriver, m.gotRecord = actorID, driverID, dto
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockPaymentService) RecordStandalonePayment(ctx context.Context, actorID string, driverID int64, dto paymentpkg.StandalonePaymentDTO) (*paymentpkg.Payment, error) {
	m.gotActor, m.gotDriver = actorID, driverID
	if m.err != nil {
		return nil, m.err
	}
	return m.payment, nil
}

func (m *mockPaymentService) GetPayment(ctx context.Context, id int64) (*paymentpkg.Payment, error) {
	m.gotID = id
	if m.err != nil {
		return nil, m.err
	}
	return m.payment, nil
}

func (m *mockPaymentService) ListPayments(ctx context.Context, filter paymentpkg.ListFilter, page, limit int) (*paymentpkg.Page, error) {
	m.gotFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return m.page, nil
}

func (m *mockPaymentService) UpdatePayment(ctx context.Context, actorID string, id int64, dto paymentpkg.UpdatePaymentDTO) (*paymentpkg.Payment, error) {
	m.gotActor, m.gotID = actorID, id
	if m.err != nil {
		return nil, m.err
	}
	return m.payment, nil
}

func (m *mockPaymentService) DeletePayment(ctx context.Context, actorID string, id int64) error {
	m.gotActor, m.gotID = actorID, id
	return m.err
}

func (m *mockPaymentService) ReallocatePayment(ctx context.Context, actorID string, id int64) (*paymentpkg.RecordPaymentResult, error) {
	m.gotActor, m.gotID = actorID, id
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockPaymentService) UpdateReceiptStatus(ctx context.Context, actorID string, id int64, status string) (*paymentpkg.Payment, error) {
	m.gotActor, m.gotID, m.gotStatus = actorID, id, status
	if m.err != nil {
		return nil, m.err
	}
	return m.payment, nil
}

func newTestRouter(h *paymentpkg.Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/drivers/{driverID}/payments", h.RecordPayment)
	r.Post("/drivers/{driverID}/payments/standalone", h.RecordStandalonePayment)
	r.Get("/payments", h.ListPayments)
	r.Get("/payments/{id}", h.GetPayment)
	r.Patch("/payments/{id}", h.UpdatePayment)
	r.Delete("/payments/{id}", h.DeletePayment)
	r.Post("/payments/{id}/reallocate", h.ReallocatePayment)
	r.Patch("/payments/{id}/receipt-status", h.UpdateReceiptStatus)
	return r
}

func doRequest(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		gomega.Expect(json.NewEncoder(&buf).Encode(b)).To(gomega.Succeed())
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(internal.ContextWithActorID(req.Context(), "clerk-1"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func errorCode(rr *httptest.ResponseRecorder) string {
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	gomega.Expect(json.Unmarshal(rr.Body.Bytes(), &body)).To(gomega.Succeed())
	return body.Error.Code
}

var _ = ginkgo.Describe("PaymentHandler", func() {
	var (
		mockService *mockPaymentService
		router      http.Handler
		sample      *paymentpkg.Payment
	)

	ginkgo.BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		baseHandler := &transport.BaseHandler{Logger: logger}

		sample = &paymentpkg.Payment{
			ID:                42,
			ReferenceNumber:   "PAY-0123456789",
			DriverID:          1,
			Amount:            decimal.NewFromInt(150),
			Channel:           paymentpkg.ChannelMpesa,
			CoversDays:        []time.Time{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
			Status:            "completed",
			ReceiptStatus:     "pending",
			UnallocatedAmount: decimal.Zero,
		}
		mockService = &mockPaymentService{
			payment: sample,
			result: &paymentpkg.RecordPaymentResult{
				Payment:           sample,
				PaidDays:          []time.Time{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
				TotalApplied:      decimal.NewFromInt(100),
				UnallocatedAmount: decimal.Zero,
			},
			page: &paymentpkg.Page{Items: []*paymentpkg.Payment{sample}, Page: 1, Limit: 20, Total: 1, TotalPages: 1},
		}
		router = newTestRouter(paymentpkg.NewHandler(baseHandler, mockService))
	})

	ginkgo.Describe("RecordPayment", func() {
		ginkgo.It("should return 201 with the allocation result", func() {
			rr := doRequest(router, http.MethodPost, "/drivers/1/payments", map[string]interface{}{
				"amount":          150,
				"payment_channel": "mpesa",
				"covers_days":     []string{"2025-01-01", "2025-01-02"},
			})

			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusCreated))
			gomega.Expect(mockService.gotActor).To(gomega.Equal("clerk-1"))
			gomega.Expect(mockService.gotDriver).To(gomega.Equal(int64(1)))
			gomega.Expect(mockService.gotRecord.CoversDays).To(gomega.HaveLen(2))
			gomega.Expect(mockService.gotRecord.Amount.Equal(decimal.NewFromInt(150))).To(gomega.BeTrue())

			var resp paymentpkg.RecordPaymentResponse
			gomega.Expect(json.Unmarshal(rr.Body.Bytes(), &resp)).To(gomega.Succeed())
			gomega.Expect(resp.Payment.ReferenceNumber).To(gomega.Equal("PAY-0123456789"))
			gomega.Expect(resp.PaidDays).To(gomega.Equal([]string{"2025-01-01"}))
		})

		ginkgo.It("should return 400 for a non-numeric driver id", func() {
			rr := doRequest(router, http.MethodPost, "/drivers/abc/payments", map[string]interface{}{"amount": 10})
			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusBadRequest))
		})

		ginkgo.It("should return 400 for unknown body fields", func() {
			rr := doRequest(router, http.MethodPost, "/drivers/1/payments", `{"amount": 10, "tip": 5}`)
			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusBadRequest))
			gomega.Expect(mockService.gotDriver).To(gomega.BeZero())
		})

		ginkgo.It("should return 404 when the driver does not exist", func() {
			mockService.err = internal.ErrDriverNotFound()
			rr := doRequest(router, http.MethodPost, "/drivers/9/payments", map[string]interface{}{
				"amount": 10, "payment_channel": "cash", "covers_days": []string{"2025-01-01"},
			})
			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusNotFound))
			gomega.Expect(errorCode(rr)).To(gomega.Equal(string(internal.ErrCodeDriverNotFound)))
		})

		ginkgo.It("should return 409 when nothing is outstanding", func() {
			mockService.err = internal.ErrNoOutstandingDebt()
			rr := doRequest(router, http.MethodPost, "/drivers/1/payments", map[string]interface{}{
				"amount": 10, "payment_channel": "cash", "covers_days": []string{"2025-01-01"},
			})
			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusConflict))
			gomega.Expect(errorCode(rr)).To(gomega.Equal(string(internal.ErrCodeNoOutstandingDebt)))
		})

		ginkgo.It("should hide unexpected errors behind a 500", func() {
			mockService.err = errors.New("connection reset")
			rr := doRequest(router, http.MethodPost, "/drivers/1/payments", map[string]interface{}{
				"amount": 10, "payment_channel": "cash", "covers_days": []string{"2025-01-01"},
			})
			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusInternalServerError))
			gomega.Expect(rr.Body.String()).NotTo(gomega.ContainSubstring("connection reset"))
		})
	})

	ginkgo.Describe("RecordStandalonePayment", func() {
		ginkgo.It("should return 201 with the stored payment", func() {
			rr := doRequest(router, http.MethodPost, "/drivers/3/payments/standalone", map[string]interface{}{
				"amount": 75, "payment_channel": "cash", "notes": "deposit",
			})
			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusCreated))
			gomega.Expect(mockService.gotDriver).To(gomega.Equal(int64(3)))
		})
	})

	ginkgo.Describe("GetPayment", func() {
		ginkgo.It("should return the payment", func() {
			rr := doRequest(router, http.MethodGet, "/payments/42", nil)
			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(mockService.gotID).To(gomega.Equal(int64(42)))

			var resp paymentpkg.PaymentResponse
			gomega.Expect(json.Unmarshal(rr.Body.Bytes(), &resp)).To(gomega.Succeed())
			gomega.Expect(resp.CoversDays).To(gomega.Equal([]string{"2025-01-01"}))
		})

		ginkgo.It("should return 404 for a missing payment", func() {
			mockService.err = internal.ErrPaymentNotFound()
			rr := doRequest(router, http.MethodGet, "/payments/7", nil)
			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusNotFound))
		})
	})

	ginkgo.Describe("ListPayments", func() {
		ginkgo.It("should pass query filters through", func() {
			rr := doRequest(router, http.MethodGet, "/payments?driver_id=1&from=2025-01-01&to=2025-01-31&payment_channel=mpesa&pending_receipt_only=true", nil)
			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(mockService.gotFilter.DriverID).To(gomega.Equal(int64(1)))
			gomega.Expect(mockService.gotFilter.Channel).To(gomega.Equal("mpesa"))
			gomega.Expect(mockService.gotFilter.PendingReceiptOnly).To(gomega.BeTrue())
			gomega.Expect(mockService.gotFilter.To).To(gomega.Equal(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)))

			var resp paymentpkg.PageResponse
			gomega.Expect(json.Unmarshal(rr.Body.Bytes(), &resp)).To(gomega.Succeed())
			gomega.Expect(resp.Payments).To(gomega.HaveLen(1))
			gomega.Expect(resp.Total).To(gomega.Equal(int64(1)))
		})

		ginkgo.It("should reject a malformed date", func() {
			rr := doRequest(router, http.MethodGet, "/payments?from=01-01-2025", nil)
			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Describe("DeletePayment", func() {
		ginkgo.It("should return 204", func() {
			rr := doRequest(router, http.MethodDelete, "/payments/42", nil)
			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(mockService.gotActor).To(gomega.Equal("clerk-1"))
		})

		ginkgo.It("should surface lock conflicts as 409", func() {
			mockService.err = internal.ErrConcurrencyConflict(errors.New("55P03"))
			rr := doRequest(router, http.MethodDelete, "/payments/42", nil)
			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusConflict))
		})
	})

	ginkgo.Describe("ReallocatePayment", func() {
		ginkgo.It("should return the new allocation", func() {
			rr := doRequest(router, http.MethodPost, "/payments/42/reallocate", nil)
			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(mockService.gotID).To(gomega.Equal(int64(42)))
		})
	})

	ginkgo.Describe("UpdateReceiptStatus", func() {
		ginkgo.It("should forward the requested status", func() {
			rr := doRequest(router, http.MethodPatch, "/payments/42/receipt-status", map[string]string{"receipt_status": "sent"})
			gomega.Expect(rr.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(mockService.gotStatus).To(gomega.Equal("sent"))
		})
	})
})
