package postgres

import (
	"errors"

	"gorm.io/gorm"

	datamodel "github.com/jaaptech/nepalipay/internal/core/datamodel/payment"
	"github.com/jaaptech/nepalipay/internal/payment"
)

// RefundRepository implements payment.RefundRepository using GORM
type RefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository creates a new refund repository
func NewRefundRepository(db *gorm.DB) payment.RefundRepository {
	return &RefundRepository{db: db}
}

// Create saves a new refund to the database
func (r *RefundRepository) Create(refund *datamodel.Refund) error {
	return r.db.Create(refund).Error
}

// GetByID retrieves a refund by its id. A miss returns nil.
func (r *RefundRepository) GetByID(id string) (*datamodel.Refund, error) {
	var refund datamodel.Refund
	err := r.db.Where("id = ?", id).First(&refund).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// ListForPayment retrieves all refunds filed against one payment
func (r *RefundRepository) ListForPayment(paymentID string) ([]*datamodel.Refund, error) {
	var refunds []*datamodel.Refund
	err := r.db.Where("payment_id = ?", paymentID).
		Order("requested_at ASC").
		Find(&refunds).Error
	return refunds, err
}

// TransitionStatus applies a guarded refund status update, same contract as
// the transaction repository.
func (r *RefundRepository) TransitionStatus(id string, from []datamodel.RefundStatus, to datamodel.RefundStatus, updates map[string]interface{}) error {
	values := map[string]interface{}{"refund_status": to}
	for k, v := range updates {
		values[k] = v
	}

	result := r.db.Model(&datamodel.Refund{}).
		Where("id = ? AND refund_status IN ?", id, from).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return payment.ErrTransitionConflict
	}
	return nil
}

// CompletedAmountForPayment sums the amounts of completed refunds for one
// payment.
func (r *RefundRepository) CompletedAmountForPayment(paymentID string) (float64, error) {
	var total float64
	err := r.db.Model(&datamodel.Refund{}).
		Where("payment_id = ? AND refund_status = ?", paymentID, datamodel.RefundStatusCompleted).
		Select("COALESCE(SUM(refund_amount), 0)").
		Scan(&total).Error
	return total, err
}

// HasPendingForPayment reports whether any refund for the payment is still
// pending or processing.
func (r *RefundRepository) HasPendingForPayment(paymentID string) (bool, error) {
	var count int64
	err := r.db.Model(&datamodel.Refund{}).
		Where("payment_id = ? AND refund_status IN ?", paymentID,
			[]datamodel.RefundStatus{datamodel.RefundStatusPending, datamodel.RefundStatusProcessing}).
		Count(&count).Error
	return count > 0, err
}
