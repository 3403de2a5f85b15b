package reconciliation_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/core/clock"
	allocationDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/allocation"
	paymentDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/payment"
	"github.com/frahmantamala/fleet-ledger/internal/core/testutil"
	"github.com/frahmantamala/fleet-ledger/internal/driver"
	driverPostgres "github.com/frahmantamala/fleet-ledger/internal/driver/postgres"
	"github.com/frahmantamala/fleet-ledger/internal/obligation"
	obligationPostgres "github.com/frahmantamala/fleet-ledger/internal/obligation/postgres"
	"github.com/frahmantamala/fleet-ledger/internal/payment"
	paymentPostgres "github.com/frahmantamala/fleet-ledger/internal/payment/postgres"
	"github.com/frahmantamala/fleet-ledger/internal/reconciliation"
	reconciliationPostgres "github.com/frahmantamala/fleet-ledger/internal/reconciliation/postgres"
	"github.com/frahmantamala/fleet-ledger/pkg/logger"
)

const actor = "admin-1"

var _ = Describe("Reconciliation Service", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		svc      *reconciliation.Service
		driverID int64
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = testutil.OpenSQLite()
		Expect(err).NotTo(HaveOccurred())

		driverID, err = testutil.SeedDriver(db, "Fadhil")
		Expect(err).NotTo(HaveOccurred())

		lg := logger.Discard()
		clk := clock.Fixed{At: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}

		drivers := driver.NewService(driverPostgres.NewDriverRepository(db), lg)
		obligations := obligation.NewService(obligationPostgres.NewObligationRepository(db), clk, lg)
		payments := payment.NewService(paymentPostgres.NewPaymentRepository(db), clk, payment.Options{ReferencePrefix: "PAY"}, lg)

		svc = reconciliation.NewService(
			reconciliationPostgres.NewUnitOfWork(db, 0),
			drivers,
			obligations,
			payments,
			nil,
			clk,
			reconciliation.Options{DefaultExpectedAmount: dec("100")},
			lg,
		)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	records := func() []*obligation.Obligation {
		items, err := svc.ListObligations(ctx, driverID, obligation.ListFilter{})
		Expect(err).NotTo(HaveOccurred())
		return items
	}

	createDays := func(amount string, dates ...string) {
		a := dec(amount)
		_, err := svc.CreateObligations(ctx, actor, driverID, obligation.CreateObligationsDTO{Dates: dates, Amount: &a})
		Expect(err).NotTo(HaveOccurred())
	}

	pay := func(amount string, days ...string) *payment.RecordPaymentResult {
		res, err := svc.RecordPayment(ctx, actor, driverID, payment.RecordPaymentDTO{
			Amount:     dec(amount),
			Channel:    "cash",
			CoversDays: days,
		})
		Expect(err).NotTo(HaveOccurred())
		return res
	}

	allocationCount := func(paymentID int64) int64 {
		var n int64
		Expect(db.Model(&allocationDatamodel.PaymentAllocation{}).Where("payment_id = ?", paymentID).Count(&n).Error).To(Succeed())
		return n
	}

	Describe("RecordPayment", func() {
		It("should create missing days at the default rate and fill them oldest first", func() {
			res := pay("150", "2025-01-02", "2025-01-01")

			Expect(res.Payment.ID).To(BeNumerically(">", 0))
			Expect(res.Payment.ReferenceNumber).To(HavePrefix("PAY-"))
			Expect(res.Payment.Status).To(Equal(paymentDatamodel.StatusCompleted))
			Expect(res.PaidDays).To(Equal([]time.Time{day("2025-01-01")}))
			Expect(res.TotalApplied.Equal(dec("150"))).To(BeTrue())
			Expect(res.UnallocatedAmount.IsZero()).To(BeTrue())

			items := records()
			Expect(items).To(HaveLen(2))
			Expect(items[0].IsPaid).To(BeTrue())
			Expect(items[0].PaidAmount.Equal(dec("100"))).To(BeTrue())
			Expect(*items[0].PaymentID).To(Equal(res.Payment.ID))
			Expect(items[0].DaysOverdue).To(Equal(0))
			Expect(items[1].IsPaid).To(BeFalse())
			Expect(items[1].PaidAmount.Equal(dec("50"))).To(BeTrue())
			Expect(items[1].RemainingAmount().Equal(dec("50"))).To(BeTrue())
			Expect(items[1].DaysOverdue).To(Equal(8))

			Expect(allocationCount(res.Payment.ID)).To(Equal(int64(2)))
		})

		It("should keep the expected amount of existing days", func() {
			createDays("300", "2025-01-01")

			res := pay("250", "2025-01-01")

			Expect(res.PaidDays).To(BeEmpty())
			items := records()
			Expect(items[0].ExpectedAmount.Equal(dec("300"))).To(BeTrue())
			Expect(items[0].PaidAmount.Equal(dec("250"))).To(BeTrue())
		})

		It("should store the surplus on the payment as unallocated", func() {
			res := pay("130", "2025-01-01")

			Expect(res.UnallocatedAmount.Equal(dec("30"))).To(BeTrue())
			stored, err := svc.GetPayment(ctx, res.Payment.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.UnallocatedAmount.Equal(dec("30"))).To(BeTrue())
		})

		It("should store nothing when every covered day is already paid", func() {
			pay("100", "2025-01-01")

			_, err := svc.RecordPayment(ctx, actor, driverID, payment.RecordPaymentDTO{
				Amount:     dec("100"),
				Channel:    "cash",
				CoversDays: []string{"2025-01-01"},
			})

			Expect(internal.HasCode(err, internal.ErrCodeNoOutstandingDebt)).To(BeTrue())
			page, err := svc.ListPayments(ctx, payment.ListFilter{DriverID: driverID}, 1, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(1)))
		})

		It("should reject an unknown driver", func() {
			_, err := svc.RecordPayment(ctx, actor, driverID+100, payment.RecordPaymentDTO{
				Amount:     dec("100"),
				Channel:    "cash",
				CoversDays: []string{"2025-01-01"},
			})

			Expect(internal.HasCode(err, internal.ErrCodeDriverNotFound)).To(BeTrue())
		})

		It("should reject a payment without covered days", func() {
			_, err := svc.RecordPayment(ctx, actor, driverID, payment.RecordPaymentDTO{
				Amount:  dec("100"),
				Channel: "cash",
			})

			Expect(err).To(HaveOccurred())
			_, isApp := internal.IsAppError(err)
			Expect(isApp).To(BeTrue())
		})

		It("should let exactly one of two racing payments settle the same day", func() {
			createDays("100", "2025-01-01")

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
				noDebt    int
			)
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := svc.RecordPayment(ctx, actor, driverID, payment.RecordPaymentDTO{
						Amount:     dec("100"),
						Channel:    "mpesa",
						CoversDays: []string{"2025-01-01"},
					})
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						succeeded++
					} else if internal.HasCode(err, internal.ErrCodeNoOutstandingDebt) {
						noDebt++
					}
				}()
			}
			wg.Wait()

			Expect(succeeded).To(Equal(1))
			Expect(noDebt).To(Equal(1))
			items := records()
			Expect(items[0].PaidAmount.Equal(dec("100"))).To(BeTrue())
		})
	})

	Describe("RecordStandalonePayment", func() {
		It("should keep the whole amount unallocated", func() {
			p, err := svc.RecordStandalonePayment(ctx, actor, driverID, payment.StandalonePaymentDTO{
				Amount:  dec("500"),
				Channel: "bank",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(p.CoversDays).To(BeEmpty())
			Expect(p.UnallocatedAmount.Equal(dec("500"))).To(BeTrue())
			Expect(records()).To(BeEmpty())
		})
	})

	Describe("DeletePayment", func() {
		It("should return every record to where it was before the payment", func() {
			createDays("100", "2025-01-01", "2025-01-02", "2025-01-03")
			res := pay("250", "2025-01-01", "2025-01-02", "2025-01-03")
			Expect(res.PaidDays).To(HaveLen(2))

			Expect(svc.DeletePayment(ctx, actor, res.Payment.ID)).To(Succeed())

			for _, o := range records() {
				Expect(o.IsPaid).To(BeFalse())
				Expect(o.PaidAmount.IsZero()).To(BeTrue())
				Expect(o.PaymentID).To(BeNil())
				Expect(o.PaidAt).To(BeNil())
				Expect(o.DaysOverdue).To(BeNumerically(">", 0))
			}
			_, err := svc.GetPayment(ctx, res.Payment.ID)
			Expect(internal.HasCode(err, internal.ErrCodePaymentNotFound)).To(BeTrue())
			Expect(allocationCount(res.Payment.ID)).To(BeZero())
		})

		It("should only take back its own share of a day", func() {
			first := pay("40", "2025-01-01")
			second := pay("60", "2025-01-01")
			Expect(second.PaidDays).To(HaveLen(1))

			Expect(svc.DeletePayment(ctx, actor, first.Payment.ID)).To(Succeed())

			o := records()[0]
			Expect(o.PaidAmount.Equal(dec("60"))).To(BeTrue())
			Expect(o.IsPaid).To(BeFalse())
			Expect(o.PaymentID).To(BeNil())
			Expect(o.PaidAt).To(BeNil())
			Expect(o.DaysOverdue).To(Equal(9))
		})

		Context("with a partial payment and a manual mark on one day", func() {
			var partial, manual *payment.Payment

			BeforeEach(func() {
				partial = pay("60", "2025-01-01").Payment

				var err error
				manual, err = svc.RecordStandalonePayment(ctx, actor, driverID, payment.StandalonePaymentDTO{Amount: dec("100"), Channel: "cash"})
				Expect(err).NotTo(HaveOccurred())

				_, err = svc.MarkObligationPaid(ctx, actor, records()[0].ID, obligation.MarkPaidDTO{PaymentID: manual.ID})
				Expect(err).NotTo(HaveOccurred())
			})

			expectUntouched := func() {
				o := records()[0]
				Expect(o.PaidAmount.IsZero()).To(BeTrue())
				Expect(o.IsPaid).To(BeFalse())
				Expect(o.PaymentID).To(BeNil())
				Expect(o.PaidAt).To(BeNil())
			}

			It("should clear the day when the partial payment goes first", func() {
				Expect(svc.DeletePayment(ctx, actor, partial.ID)).To(Succeed())
				o := records()[0]
				Expect(o.PaidAmount.Equal(dec("40"))).To(BeTrue())
				Expect(o.IsPaid).To(BeFalse())
				Expect(o.PaymentID).To(BeNil())

				Expect(svc.DeletePayment(ctx, actor, manual.ID)).To(Succeed())
				expectUntouched()
			})

			It("should clear the day when the manual mark goes first", func() {
				Expect(svc.DeletePayment(ctx, actor, manual.ID)).To(Succeed())
				Expect(records()[0].PaidAmount.Equal(dec("60"))).To(BeTrue())

				Expect(svc.DeletePayment(ctx, actor, partial.ID)).To(Succeed())
				expectUntouched()
			})
		})

		It("should undo a manual mark made with the payment", func() {
			createDays("100", "2025-01-05")
			p, err := svc.RecordStandalonePayment(ctx, actor, driverID, payment.StandalonePaymentDTO{Amount: dec("100"), Channel: "cash"})
			Expect(err).NotTo(HaveOccurred())

			o := records()[0]
			marked, err := svc.MarkObligationPaid(ctx, actor, o.ID, obligation.MarkPaidDTO{PaymentID: p.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(marked.IsPaid).To(BeTrue())

			Expect(svc.DeletePayment(ctx, actor, p.ID)).To(Succeed())

			o = records()[0]
			Expect(o.IsPaid).To(BeFalse())
			Expect(o.PaidAmount.IsZero()).To(BeTrue())
			Expect(o.PaymentID).To(BeNil())
			Expect(o.DaysOverdue).To(Equal(5))
		})
	})

	Describe("MarkObligationPaid", func() {
		var standalone *payment.Payment

		BeforeEach(func() {
			var err error
			createDays("100", "2025-01-01")
			standalone, err = svc.RecordStandalonePayment(ctx, actor, driverID, payment.StandalonePaymentDTO{Amount: dec("100"), Channel: "cash"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should settle the record with the given payment", func() {
			o := records()[0]
			amount := dec("90")

			marked, err := svc.MarkObligationPaid(ctx, actor, o.ID, obligation.MarkPaidDTO{PaymentID: standalone.ID, Amount: &amount})

			Expect(err).NotTo(HaveOccurred())
			Expect(marked.IsPaid).To(BeTrue())
			Expect(marked.PaidAmount.Equal(dec("90"))).To(BeTrue())
			Expect(*marked.PaymentID).To(Equal(standalone.ID))
			Expect(allocationCount(standalone.ID)).To(Equal(int64(1)))
		})

		It("should refuse an amount below what the day already holds", func() {
			pay("60", "2025-01-01")
			o := records()[0]
			amount := dec("30")

			_, err := svc.MarkObligationPaid(ctx, actor, o.ID, obligation.MarkPaidDTO{PaymentID: standalone.ID, Amount: &amount})

			Expect(internal.HasCode(err, internal.ErrCodeValidationFailed)).To(BeTrue())
			Expect(records()[0].PaidAmount.Equal(dec("60"))).To(BeTrue())
			Expect(allocationCount(standalone.ID)).To(BeZero())
		})

		It("should refuse to mark a record twice", func() {
			o := records()[0]
			_, err := svc.MarkObligationPaid(ctx, actor, o.ID, obligation.MarkPaidDTO{PaymentID: standalone.ID})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.MarkObligationPaid(ctx, actor, o.ID, obligation.MarkPaidDTO{PaymentID: standalone.ID})
			Expect(internal.HasCode(err, internal.ErrCodeObligationSettled)).To(BeTrue())
		})

		It("should require a payment id", func() {
			o := records()[0]
			_, err := svc.MarkObligationPaid(ctx, actor, o.ID, obligation.MarkPaidDTO{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("settled records", func() {
		It("should refuse edits and deletion once paid", func() {
			pay("100", "2025-01-01")
			o := records()[0]
			notes := "late"

			_, err := svc.UpdateObligation(ctx, actor, o.ID, obligation.UpdateObligationDTO{Notes: &notes})
			Expect(internal.HasCode(err, internal.ErrCodeObligationSettled)).To(BeTrue())

			err = svc.DeleteObligation(ctx, actor, o.ID)
			Expect(internal.HasCode(err, internal.ErrCodeObligationSettled)).To(BeTrue())
		})

		It("should keep a partly paid record collectable after an edit is refused", func() {
			pay("60", "2025-01-01")
			o := records()[0]
			lower := dec("50")

			_, err := svc.UpdateObligation(ctx, actor, o.ID, obligation.UpdateObligationDTO{ExpectedAmount: &lower})
			Expect(internal.HasCode(err, internal.ErrCodeValidationFailed)).To(BeTrue())

			res := pay("40", "2025-01-01")
			Expect(res.TotalApplied.Equal(dec("40"))).To(BeTrue())
			o = records()[0]
			Expect(o.IsPaid).To(BeTrue())
			Expect(o.ExpectedAmount.Equal(dec("100"))).To(BeTrue())
			Expect(o.DaysOverdue).To(Equal(0))
		})

		It("should refuse deleting a partly paid record", func() {
			pay("30", "2025-01-01")
			o := records()[0]

			err := svc.DeleteObligation(ctx, actor, o.ID)
			Expect(internal.HasCode(err, internal.ErrCodeObligationLinked)).To(BeTrue())
		})

		It("should delete an untouched record", func() {
			createDays("100", "2025-01-01")
			o := records()[0]

			Expect(svc.DeleteObligation(ctx, actor, o.ID)).To(Succeed())
			Expect(records()).To(BeEmpty())
		})
	})

	Describe("ReallocatePayment", func() {
		It("should apply a corrected amount to the same days", func() {
			res := pay("100", "2025-01-01", "2025-01-02")
			Expect(res.PaidDays).To(HaveLen(1))

			amount := dec("200")
			_, err := svc.UpdatePayment(ctx, actor, res.Payment.ID, payment.UpdatePaymentDTO{Amount: &amount})
			Expect(err).NotTo(HaveOccurred())

			// editing alone leaves the allocation untouched
			Expect(records()[1].PaidAmount.IsZero()).To(BeTrue())

			again, err := svc.ReallocatePayment(ctx, actor, res.Payment.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.PaidDays).To(HaveLen(2))
			Expect(again.TotalApplied.Equal(dec("200"))).To(BeTrue())
			for _, o := range records() {
				Expect(o.IsPaid).To(BeTrue())
			}
			Expect(allocationCount(res.Payment.ID)).To(Equal(int64(2)))
		})

		It("should refuse a standalone payment", func() {
			p, err := svc.RecordStandalonePayment(ctx, actor, driverID, payment.StandalonePaymentDTO{Amount: dec("100"), Channel: "cash"})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.ReallocatePayment(ctx, actor, p.ID)
			Expect(err).To(HaveOccurred())
		})

		It("should refuse a cancelled payment", func() {
			res := pay("100", "2025-01-01")
			status := paymentDatamodel.StatusCancelled
			_, err := svc.UpdatePayment(ctx, actor, res.Payment.ID, payment.UpdatePaymentDTO{Status: &status})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.ReallocatePayment(ctx, actor, res.Payment.ID)
			Expect(internal.HasCode(err, internal.ErrCodePaymentNotActive)).To(BeTrue())
		})
	})

	Describe("CreateObligations", func() {
		It("should not overwrite days that already exist", func() {
			createDays("100", "2025-01-01")
			amount := decimal.NewFromInt(400)

			items, err := svc.CreateObligations(ctx, actor, driverID, obligation.CreateObligationsDTO{
				Dates:  []string{"2025-01-01", "2025-01-02"},
				Amount: &amount,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
			Expect(items[0].ExpectedAmount.Equal(dec("100"))).To(BeTrue())
			Expect(items[1].ExpectedAmount.Equal(dec("400"))).To(BeTrue())
		})

		It("should reject an unknown driver", func() {
			amount := dec("100")
			_, err := svc.CreateObligations(ctx, actor, driverID+100, obligation.CreateObligationsDTO{
				Dates:  []string{"2025-01-01"},
				Amount: &amount,
			})
			Expect(internal.HasCode(err, internal.ErrCodeDriverNotFound)).To(BeTrue())
		})
	})
})
