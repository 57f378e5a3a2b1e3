package payment_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jaaptech/nepalipay/internal/core/datamodel/payment"
)

var _ = Describe("Transaction", func() {
	Describe("CanBeRefunded", func() {
		It("should allow refunds only against completed payments", func() {
			tx := &payment.Transaction{Status: payment.StatusCompleted}
			Expect(tx.CanBeRefunded()).To(BeTrue())

			for _, status := range []payment.Status{
				payment.StatusPending, payment.StatusProcessing,
				payment.StatusFailed, payment.StatusRefunded, payment.StatusCancelled,
			} {
				tx.Status = status
				Expect(tx.CanBeRefunded()).To(BeFalse(), "status %s", status)
			}
		})
	})

	Describe("CompletedRefundTotal", func() {
		It("should sum only completed refunds", func() {
			tx := &payment.Transaction{
				Amount: 1000,
				Refunds: []payment.Refund{
					{RefundAmount: 300, RefundStatus: payment.RefundStatusCompleted},
					{RefundAmount: 200, RefundStatus: payment.RefundStatusPending},
					{RefundAmount: 100, RefundStatus: payment.RefundStatusFailed},
					{RefundAmount: 150, RefundStatus: payment.RefundStatusCompleted},
				},
			}

			Expect(tx.CompletedRefundTotal()).To(Equal(450.0))
			Expect(tx.RemainingRefundableAmount()).To(Equal(550.0))
		})

		It("should be zero with no refunds loaded", func() {
			tx := &payment.Transaction{Amount: 500}
			Expect(tx.CompletedRefundTotal()).To(BeZero())
			Expect(tx.RemainingRefundableAmount()).To(Equal(500.0))
		})
	})

	Describe("RemainingRefundableAmount", func() {
		It("should never go negative", func() {
			tx := &payment.Transaction{
				Amount: 100,
				Refunds: []payment.Refund{
					{RefundAmount: 150, RefundStatus: payment.RefundStatusCompleted},
				},
			}
			Expect(tx.RemainingRefundableAmount()).To(BeZero())
		})
	})
})
