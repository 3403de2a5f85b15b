package driver_test

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
	"github.com/frahmantamala/fleet-ledger/internal/driver"
	"github.com/frahmantamala/fleet-ledger/internal/transport"
	"github.com/frahmantamala/fleet-ledger/pkg/logger"
)

type mockDriverService struct {
	err      error
	gotQuery string
	gotPage  int
	gotLimit int
}

func (m *mockDriverService) Get(ctx context.Context, id int64) (*driver.Driver, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &driver.Driver{ID: id, Name: "Jane"}, nil
}

func (m *mockDriverService) Create(ctx context.Context, dto driver.CreateDriverDTO) (*driver.Driver, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &driver.Driver{ID: 1, Name: dto.Name, LicenseNumber: dto.LicenseNumber, IsActive: true}, nil
}

func (m *mockDriverService) Search(ctx context.Context, query string, page, limit int) (*driver.SearchResult, error) {
	m.gotQuery, m.gotPage, m.gotLimit = query, page, limit
	if m.err != nil {
		return nil, m.err
	}
	return &driver.SearchResult{Drivers: []*driver.Driver{{ID: 1, Name: "Jane"}}, Page: page, Limit: limit, Total: 1, TotalPages: 1}, nil
}

var _ = Describe("DriverHandler", func() {
	var (
		mock   *mockDriverService
		router http.Handler
	)

	BeforeEach(func() {
		mock = &mockDriverService{}
		h := driver.NewHandler(&transport.BaseHandler{Logger: logger.Discard()}, mock)
		r := chi.NewRouter()
		r.Post("/drivers", h.CreateDriver)
		r.Get("/drivers/search", h.SearchDrivers)
		r.Get("/drivers/{driverID}", h.GetDriver)
		router = r
	})

	It("should create a driver", func() {
		body, _ := json.Marshal(map[string]string{"name": "Jane", "license_number": "KDA-100"})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/drivers", bytes.NewReader(body)))

		Expect(rr.Code).To(Equal(http.StatusCreated))
		var d driver.Driver
		Expect(json.Unmarshal(rr.Body.Bytes(), &d)).To(Succeed())
		Expect(d.LicenseNumber).To(Equal("KDA-100"))
	})

	It("should pass search parameters through", func() {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/drivers/search?q=jane&page=2&limit=5", nil))

		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(mock.gotQuery).To(Equal("jane"))
		Expect(mock.gotPage).To(Equal(2))
		Expect(mock.gotLimit).To(Equal(5))
	})

	It("should reject a non-numeric page", func() {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/drivers/search?page=two", nil))
		Expect(rr.Code).To(Equal(http.StatusBadRequest))
	})

	It("should return 404 for an unknown driver", func() {
		mock.err = internal.ErrDriverNotFound()
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/drivers/12", nil))
		Expect(rr.Code).To(Equal(http.StatusNotFound))
	})
})
