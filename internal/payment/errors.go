package payment

import (
	"errors"
	"fmt"

	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
	datamodel "github.com/jaaptech/nepalipay/internal/core/datamodel/payment"
)

// ErrDatabaseDisabled is returned by every ledger operation, read or write,
// when payment persistence is turned off. Fail-fast, never a silent no-op.
var ErrDatabaseDisabled = errors.New("payment persistence is disabled")

// ErrTransitionConflict is the repository-level signal that a guarded
// status update matched no row: either the record is gone or its status
// changed underneath us. Services translate it into
// InvalidStateTransitionError with the observed status.
var ErrTransitionConflict = errors.New("status transition matched no row")

// PersistenceError wraps an underlying storage failure, tagged with the
// gateway and transaction involved. Retry policy belongs to the caller.
type PersistenceError struct {
	Op            string
	Gateway       gateway.Gateway
	TransactionID string
	Err           error
}

func (e *PersistenceError) Error() string {
	if e.TransactionID != "" {
		return fmt.Sprintf("payment %s failed for transaction %s (gateway %s): %v", e.Op, e.TransactionID, e.Gateway, e.Err)
	}
	return fmt.Sprintf("payment %s failed (gateway %s): %v", e.Op, e.Gateway, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// InvalidStateTransitionError reports an attempted transition outside the
// lifecycle table. Indicates a caller or gateway protocol bug.
type InvalidStateTransitionError struct {
	TransactionID string
	From          datamodel.Status
	To            datamodel.Status
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition for transaction %s: %s -> %s", e.TransactionID, e.From, e.To)
}

// RefundNotAllowedError reports a refund request against a transaction that
// is not in COMPLETED state.
type RefundNotAllowedError struct {
	TransactionID string
	Status        datamodel.Status
}

func (e *RefundNotAllowedError) Error() string {
	return fmt.Sprintf("transaction %s cannot be refunded in status %s", e.TransactionID, e.Status)
}

// RefundAmountExceededError reports a refund amount above the remaining
// refundable amount of the parent transaction.
type RefundAmountExceededError struct {
	TransactionID string
	Requested     float64
	Remaining     float64
}

func (e *RefundAmountExceededError) Error() string {
	return fmt.Sprintf("refund of %.2f exceeds remaining refundable amount %.2f for transaction %s", e.Requested, e.Remaining, e.TransactionID)
}
