package payment

import "strings"

// Status is the lifecycle state of a payment transaction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no further transition is defined out of the
// status. COMPLETED is terminal except for the refund settlement transition.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

// IsPending reports whether the payment is still in flight. PENDING and
// PROCESSING are both classified pending for query purposes.
func (s Status) IsPending() bool {
	return s == StatusPending || s == StatusProcessing
}

func (s Status) String() string {
	return string(s)
}

func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusProcessing:
		return "Processing (paid)"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	case StatusRefunded:
		return "Refunded"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// ParseStatus converts an external string into a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, true
	case StatusProcessing:
		return StatusProcessing, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusFailed:
		return StatusFailed, true
	case StatusRefunded:
		return StatusRefunded, true
	case StatusCancelled:
		return StatusCancelled, true
	}
	return "", false
}

// RefundStatus is the lifecycle state of a refund request.
type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusFailed     RefundStatus = "failed"
)

func (s RefundStatus) String() string {
	return string(s)
}

func (s RefundStatus) IsTerminal() bool {
	return s == RefundStatusCompleted || s == RefundStatusFailed
}

// RefundReason classifies why a refund was requested.
type RefundReason string

const (
	RefundReasonUserRequest RefundReason = "user_request"
	RefundReasonDuplicate   RefundReason = "duplicate"
	RefundReasonError       RefundReason = "error"
	RefundReasonOther       RefundReason = "other"
)

func (r RefundReason) String() string {
	return string(r)
}

func (r RefundReason) Label() string {
	switch r {
	case RefundReasonUserRequest:
		return "Requested by user"
	case RefundReasonDuplicate:
		return "Duplicate payment"
	case RefundReasonError:
		return "Payment error"
	case RefundReasonOther:
		return "Other"
	}
	return string(r)
}

// ParseRefundReason maps an external reason string to a RefundReason.
// Unrecognized values map to OTHER rather than failing; an empty string
// defaults to USER_REQUEST.
func ParseRefundReason(s string) RefundReason {
	switch RefundReason(strings.ToLower(strings.TrimSpace(s))) {
	case RefundReasonUserRequest:
		return RefundReasonUserRequest
	case RefundReasonDuplicate:
		return RefundReasonDuplicate
	case RefundReasonError:
		return RefundReasonError
	case RefundReasonOther:
		return RefundReasonOther
	}
	if strings.TrimSpace(s) == "" {
		return RefundReasonUserRequest
	}
	return RefundReasonOther
}
