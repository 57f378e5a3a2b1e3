package payment_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jaaptech/nepalipay/internal"
	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
	datamodel "github.com/jaaptech/nepalipay/internal/core/datamodel/payment"
	"github.com/jaaptech/nepalipay/internal/core/events"
	paymentPkg "github.com/jaaptech/nepalipay/internal/payment"
)

var _ = Describe("RefundService", func() {
	var (
		payments    *paymentPkg.PaymentService
		refunds     *paymentPkg.RefundService
		txRepo      *mockTransactionRepository
		refundRepo  *mockRefundRepository
		persistence *internal.PersistenceConfig
	)

	BeforeEach(func() {
		txRepo = newMockTransactionRepository()
		refundRepo = newMockRefundRepository()
		persistence = &internal.PersistenceConfig{Enabled: true}
		eventBus := events.NewEventBus(testLogger())
		payments = paymentPkg.NewPaymentService(txRepo, persistence, eventBus, testLogger())
		refunds = paymentPkg.NewRefundService(refundRepo, payments, eventBus, testLogger())
	})

	completedPayment := func(amount float64) *datamodel.Transaction {
		tx, err := payments.CreatePayment(paymentPkg.CreatePaymentParams{
			Gateway:     gateway.Khalti,
			Amount:      amount,
			ReferenceID: "refund-parent",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(payments.RecordVerification(tx, nil, true)).To(Succeed())
		Expect(payments.CompletePayment(tx)).To(Succeed())
		return tx
	}

	Describe("CreateRefund", func() {
		It("should open a pending refund against a completed payment", func() {
			tx := completedPayment(1000)

			refund, err := refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{
				Amount: 400,
				Reason: "duplicate",
				Notes:  "double charge",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(refund.RefundStatus).To(Equal(datamodel.RefundStatusPending))
			Expect(refund.RefundReason).To(Equal(datamodel.RefundReasonDuplicate))
			Expect(refund.PaymentID).To(Equal(tx.ID))
		})

		It("should normalize unrecognized reasons to other", func() {
			tx := completedPayment(1000)

			refund, err := refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{
				Amount: 100,
				Reason: "because reasons",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(refund.RefundReason).To(Equal(datamodel.RefundReasonOther))
		})

		It("should default an empty reason to user_request", func() {
			tx := completedPayment(1000)

			refund, err := refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 100})

			Expect(err).ToNot(HaveOccurred())
			Expect(refund.RefundReason).To(Equal(datamodel.RefundReasonUserRequest))
		})

		It("should reject refunds on a payment that is not completed", func() {
			tx, err := payments.CreatePayment(paymentPkg.CreatePaymentParams{
				Gateway:     gateway.Khalti,
				Amount:      1000,
				ReferenceID: "still-pending",
			})
			Expect(err).ToNot(HaveOccurred())

			_, err = refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 100})

			var notAllowed *paymentPkg.RefundNotAllowedError
			Expect(errors.As(err, &notAllowed)).To(BeTrue())
			Expect(notAllowed.Status).To(Equal(datamodel.StatusPending))
		})

		It("should reject a refund above the remaining refundable amount", func() {
			tx := completedPayment(1000)

			first, err := refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 700})
			Expect(err).ToNot(HaveOccurred())
			// a second refund stays pending so the parent is not settled yet
			_, err = refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 100})
			Expect(err).ToNot(HaveOccurred())
			Expect(refunds.ProcessRefund(first, "rf-1", nil, true)).To(Succeed())

			_, err = refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 400})

			var exceeded *paymentPkg.RefundAmountExceededError
			Expect(errors.As(err, &exceeded)).To(BeTrue())
			Expect(exceeded.Remaining).To(BeNumerically("==", 300))
		})

		It("should fail fast when persistence is disabled", func() {
			tx := completedPayment(1000)
			persistence.Enabled = false

			_, err := refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 100})

			Expect(err).To(MatchError(paymentPkg.ErrDatabaseDisabled))
		})
	})

	Describe("ProcessRefund", func() {
		It("should complete the refund and store the gateway refund id", func() {
			tx := completedPayment(1000)
			refund, err := refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 250})
			Expect(err).ToNot(HaveOccurred())

			err = refunds.ProcessRefund(refund, "gw-refund-7", map[string]interface{}{"status": "ok"}, true)

			Expect(err).ToNot(HaveOccurred())
			Expect(refund.RefundStatus).To(Equal(datamodel.RefundStatusCompleted))
			Expect(refund.GatewayRefundID).ToNot(BeNil())
			Expect(*refund.GatewayRefundID).To(Equal("gw-refund-7"))
			Expect(refund.ProcessedAt).ToNot(BeNil())
		})

		It("should mark the refund failed on a gateway rejection", func() {
			tx := completedPayment(1000)
			refund, err := refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 250})
			Expect(err).ToNot(HaveOccurred())

			err = refunds.ProcessRefund(refund, "", nil, false)

			Expect(err).ToNot(HaveOccurred())
			Expect(refund.RefundStatus).To(Equal(datamodel.RefundStatusFailed))
			Expect(refund.Notes).To(Equal("refund rejected by gateway"))

			stored, _ := txRepo.GetByID(tx.ID)
			Expect(stored.Status).To(Equal(datamodel.StatusCompleted))
		})

		It("should keep the gateway error message in the refund notes", func() {
			tx := completedPayment(1000)
			refund, err := refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 250})
			Expect(err).ToNot(HaveOccurred())

			response := map[string]interface{}{"error": "amount exceeds settled balance"}
			Expect(refunds.ProcessRefund(refund, "", response, false)).To(Succeed())

			Expect(refund.Notes).To(Equal("amount exceeds settled balance"))

			stored, err := refunds.GetByID(refund.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(stored.Notes).To(Equal("amount exceeds settled balance"))
		})

		It("should refuse to settle an already settled refund", func() {
			tx := completedPayment(1000)
			refund, err := refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 250})
			Expect(err).ToNot(HaveOccurred())
			Expect(refunds.ProcessRefund(refund, "rf-1", nil, true)).To(Succeed())

			err = refunds.ProcessRefund(refund, "rf-1", nil, true)

			var transitionErr *paymentPkg.InvalidStateTransitionError
			Expect(errors.As(err, &transitionErr)).To(BeTrue())
		})

		Context("parent settlement", func() {
			It("should flip the parent to refunded when a full refund settles", func() {
				tx := completedPayment(1000)
				refund, err := refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 1000})
				Expect(err).ToNot(HaveOccurred())

				Expect(refunds.ProcessRefund(refund, "rf-full", nil, true)).To(Succeed())

				stored, _ := txRepo.GetByID(tx.ID)
				Expect(stored.Status).To(Equal(datamodel.StatusRefunded))
				Expect(stored.RefundedAt).ToNot(BeNil())
			})

			It("should flip the parent to refunded after a partial refund settles alone", func() {
				tx := completedPayment(1000)
				refund, err := refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 300})
				Expect(err).ToNot(HaveOccurred())

				Expect(refunds.ProcessRefund(refund, "rf-part", nil, true)).To(Succeed())

				stored, _ := txRepo.GetByID(tx.ID)
				Expect(stored.Status).To(Equal(datamodel.StatusRefunded))
				Expect(stored.RefundedAt).ToNot(BeNil())
			})

			It("should wait for every refund to settle before flipping the parent", func() {
				tx := completedPayment(1000)
				first, err := refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 600})
				Expect(err).ToNot(HaveOccurred())
				second, err := refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 400})
				Expect(err).ToNot(HaveOccurred())

				Expect(refunds.ProcessRefund(first, "rf-a", nil, true)).To(Succeed())
				stored, _ := txRepo.GetByID(tx.ID)
				Expect(stored.Status).To(Equal(datamodel.StatusCompleted))

				Expect(refunds.ProcessRefund(second, "rf-b", nil, true)).To(Succeed())
				stored, _ = txRepo.GetByID(tx.ID)
				Expect(stored.Status).To(Equal(datamodel.StatusRefunded))
			})
		})
	})

	Describe("GetForPayment", func() {
		It("should list all refunds filed against one payment", func() {
			tx := completedPayment(1000)
			_, err := refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 100})
			Expect(err).ToNot(HaveOccurred())
			_, err = refunds.CreateRefund(tx, paymentPkg.CreateRefundParams{Amount: 200})
			Expect(err).ToNot(HaveOccurred())

			list, err := refunds.GetForPayment(tx.ID)

			Expect(err).ToNot(HaveOccurred())
			Expect(list).To(HaveLen(2))
		})
	})
})
