package audit_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/fleet-ledger/internal/audit"
	auditPostgres "github.com/frahmantamala/fleet-ledger/internal/audit/postgres"
	"github.com/frahmantamala/fleet-ledger/internal/core/events"
	"github.com/frahmantamala/fleet-ledger/internal/core/testutil"
	"github.com/frahmantamala/fleet-ledger/pkg/logger"
)

func TestAudit(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Audit Suite")
}

var _ = Describe("AuditService", func() {
	var (
		ctx context.Context
		svc *audit.Service
		bus *events.EventBus
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := testutil.OpenSQLite()
		Expect(err).NotTo(HaveOccurred())

		svc = audit.NewService(auditPostgres.NewAuditRepository(db), logger.Discard())
		bus = events.NewEventBus(logger.Discard())
		svc.RegisterEventHandlers(bus)
	})

	It("should record every published ledger event", func() {
		recorded := events.NewLedgerEvent(events.EventTypePaymentRecorded, events.EntityPayment, 11, 3, "admin-1",
			map[string]interface{}{"amount": "150.00"})
		recorded.Timestamp = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
		deleted := events.NewLedgerEvent(events.EventTypePaymentDeleted, events.EntityPayment, 11, 3, "admin-2", nil)
		deleted.Timestamp = time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)

		Expect(bus.Publish(ctx, recorded)).To(Succeed())
		Expect(bus.Publish(ctx, deleted)).To(Succeed())
		bus.Wait()

		entries, err := svc.List(ctx, audit.ListFilter{EntityType: events.EntityPayment, EntityID: 11}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].EventType).To(Equal(events.EventTypePaymentDeleted))
		Expect(entries[0].ActorID).To(Equal("admin-2"))
		Expect(entries[1].Payload).To(HaveKeyWithValue("amount", "150.00"))
	})

	It("should store a redelivered event once", func() {
		ev := events.NewLedgerEvent(events.EventTypeObligationUpdated, events.EntityObligation, 4, 3, "admin-1", nil)
		Expect(svc.HandleLedgerEvent(ctx, ev)).To(Succeed())
		Expect(svc.HandleLedgerEvent(ctx, ev)).To(Succeed())

		entries, err := svc.List(ctx, audit.ListFilter{DriverID: 3}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})

	It("should skip events that are not ledger events", func() {
		err := svc.HandleLedgerEvent(ctx, events.BaseEvent{ID: "x", Type: "heartbeat", Timestamp: time.Now()})
		Expect(err).NotTo(HaveOccurred())

		entries, err := svc.List(ctx, audit.ListFilter{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("should reject an unknown entity type", func() {
		_, err := svc.List(ctx, audit.ListFilter{EntityType: "invoice"}, 10)
		Expect(err).To(HaveOccurred())
	})

	It("should require an entity type alongside an entity id", func() {
		_, err := svc.List(ctx, audit.ListFilter{EntityID: 4}, 10)
		Expect(err).To(HaveOccurred())
	})
})
