package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
	datamodel "github.com/jaaptech/nepalipay/internal/core/datamodel/payment"
	"github.com/jaaptech/nepalipay/internal/payment"
)

// TransactionRepository implements payment.TransactionRepository using GORM
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new payment transaction repository
func NewTransactionRepository(db *gorm.DB) payment.TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create saves a new payment transaction to the database
func (r *TransactionRepository) Create(tx *datamodel.Transaction) error {
	return r.db.Create(tx).Error
}

// GetByID retrieves a transaction by its ledger id. A miss returns nil.
func (r *TransactionRepository) GetByID(id string) (*datamodel.Transaction, error) {
	var tx datamodel.Transaction
	err := r.db.Where("id = ?", id).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// GetByReference retrieves a transaction by merchant reference id
func (r *TransactionRepository) GetByReference(referenceID string) (*datamodel.Transaction, error) {
	var tx datamodel.Transaction
	err := r.db.Where("merchant_reference_id = ?", referenceID).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// GetByGatewayTransactionID retrieves a transaction by the gateway's own id
func (r *TransactionRepository) GetByGatewayTransactionID(gatewayTxID string) (*datamodel.Transaction, error) {
	var tx datamodel.Transaction
	err := r.db.Where("gateway_transaction_id = ?", gatewayTxID).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// TransitionStatus applies a guarded status update in a single statement.
// The WHERE clause carries both the id and the expected prior statuses, so
// concurrent transitions race on the database row, not in memory. Zero rows
// affected means the guard did not hold.
func (r *TransactionRepository) TransitionStatus(id string, from []datamodel.Status, to datamodel.Status, updates map[string]interface{}) error {
	values := map[string]interface{}{"status": to}
	for k, v := range updates {
		values[k] = v
	}

	result := r.db.Model(&datamodel.Transaction{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return payment.ErrTransitionConflict
	}
	return nil
}

// ListByStatus retrieves transactions in any of the given statuses
func (r *TransactionRepository) ListByStatus(statuses ...datamodel.Status) ([]*datamodel.Transaction, error) {
	var txs []*datamodel.Transaction
	err := r.db.Where("status IN ?", statuses).
		Order("initiated_at DESC").
		Find(&txs).Error
	return txs, err
}

// ListByGateway retrieves all transactions attempted through one gateway
func (r *TransactionRepository) ListByGateway(g gateway.Gateway) ([]*datamodel.Transaction, error) {
	var txs []*datamodel.Transaction
	err := r.db.Where("gateway = ?", g).
		Order("initiated_at DESC").
		Find(&txs).Error
	return txs, err
}

// ListForPayable retrieves all transactions attached to one business entity
func (r *TransactionRepository) ListForPayable(payableType, payableID string) ([]*datamodel.Transaction, error) {
	var txs []*datamodel.Transaction
	err := r.db.Where("payable_type = ? AND payable_id = ?", payableType, payableID).
		Order("initiated_at DESC").
		Find(&txs).Error
	return txs, err
}
