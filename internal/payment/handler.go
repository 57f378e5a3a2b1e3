package payment

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/jaaptech/nepalipay/internal"
	datamodel "github.com/jaaptech/nepalipay/internal/core/datamodel/payment"
	"github.com/jaaptech/nepalipay/internal/paymentgateway"
	"github.com/jaaptech/nepalipay/internal/transport"
)

type Handler struct {
	transport.BaseHandler
	Manager *Manager
	Logger  *slog.Logger
}

func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.BaseHandler{Logger: logger},
		Manager:     manager,
		Logger:      logger,
	}
}

// Initiate handles POST /api/v1/payments/{gateway}/initiate
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("Initiate: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	client, err := h.Manager.Gateway(chi.URLParam(r, "gateway"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	resp, err := client.Payment(r.Context(), req.Data)
	if err != nil {
		h.Logger.Error("Initiate: gateway call failed",
			"gateway", chi.URLParam(r, "gateway"), "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, GatewayCallResponse{
		Success: resp.IsSuccess(),
		Data:    resp.ToMap(),
	})
}

// Verify handles POST /api/v1/payments/{gateway}/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("Verify: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	client, err := h.Manager.Gateway(chi.URLParam(r, "gateway"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	resp, err := client.Verify(r.Context(), req.Data)
	if err != nil {
		h.Logger.Error("Verify: gateway call failed",
			"gateway", chi.URLParam(r, "gateway"), "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, GatewayCallResponse{
		Success: resp.IsSuccess(),
		Data:    resp.ToMap(),
	})
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	tx, err := h.loadPayment(w, r)
	if err != nil || tx == nil {
		return
	}

	h.WriteJSON(w, http.StatusOK, ToTransactionResponse(tx))
}

// GetPaymentByReference handles GET /api/v1/payments/reference/{referenceID}
func (h *Handler) GetPaymentByReference(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Manager.FindPaymentByReference(chi.URLParam(r, "referenceID"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if tx == nil {
		h.HandleError(w, errors.NewNotFoundError("payment not found", errors.ErrCodePaymentNotFound))
		return
	}

	h.WriteJSON(w, http.StatusOK, ToTransactionResponse(tx))
}

// ListPayments handles GET /api/v1/payments with optional status and
// gateway filters. Without filters it returns pending payments.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	if g := r.URL.Query().Get("gateway"); g != "" {
		txs, err := h.Manager.GetPaymentsByGateway(g)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, ToTransactionResponses(txs))
		return
	}

	if s := r.URL.Query().Get("status"); s != "" {
		status, ok := datamodel.ParseStatus(s)
		if !ok {
			h.HandleError(w, errors.NewValidationError("unknown payment status", errors.ErrCodeValidationFailed))
			return
		}
		txs, err := h.Manager.GetPaymentsByStatus(status)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, ToTransactionResponses(txs))
		return
	}

	txs, err := h.Manager.GetPendingPayments()
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToTransactionResponses(txs))
}

// CompletePayment handles POST /api/v1/payments/{id}/complete
func (h *Handler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	tx, err := h.loadPayment(w, r)
	if err != nil || tx == nil {
		return
	}

	if err := h.Manager.CompletePayment(tx); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToTransactionResponse(tx))
}

// CancelPayment handles POST /api/v1/payments/{id}/cancel
func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	tx, err := h.loadPayment(w, r)
	if err != nil || tx == nil {
		return
	}

	if err := h.Manager.CancelPayment(tx); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToTransactionResponse(tx))
}

// FailPayment handles POST /api/v1/payments/{id}/fail
func (h *Handler) FailPayment(w http.ResponseWriter, r *http.Request) {
	tx, err := h.loadPayment(w, r)
	if err != nil || tx == nil {
		return
	}

	if err := h.Manager.FailPayment(tx); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToTransactionResponse(tx))
}

// CreateRefund handles POST /api/v1/payments/{id}/refunds
func (h *Handler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	tx, err := h.loadPayment(w, r)
	if err != nil || tx == nil {
		return
	}

	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("CreateRefund: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	refund, err := h.Manager.CreateRefund(tx, CreateRefundParams{
		Amount: req.Amount,
		Reason: req.Reason,
		Notes:  req.Notes,
	})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, ToRefundResponse(refund))
}

// ListRefunds handles GET /api/v1/payments/{id}/refunds
func (h *Handler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	tx, err := h.loadPayment(w, r)
	if err != nil || tx == nil {
		return
	}

	refunds, err := h.Manager.GetRefundsForPayment(tx.ID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToRefundResponses(refunds))
}

// ProcessRefund handles POST /api/v1/refunds/{id}/process
func (h *Handler) ProcessRefund(w http.ResponseWriter, r *http.Request) {
	refund, err := h.Manager.GetRefund(chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if refund == nil {
		h.HandleError(w, errors.NewNotFoundError("refund not found", errors.ErrCodeRefundNotFound))
		return
	}

	var req ProcessRefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("ProcessRefund: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if err := h.Manager.ProcessRefund(refund, req.GatewayRefundID, req.GatewayResponse, req.Success); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToRefundResponse(refund))
}

// GetRefund handles GET /api/v1/refunds/{id}
func (h *Handler) GetRefund(w http.ResponseWriter, r *http.Request) {
	refund, err := h.Manager.GetRefund(chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if refund == nil {
		h.HandleError(w, errors.NewNotFoundError("refund not found", errors.ErrCodeRefundNotFound))
		return
	}

	h.WriteJSON(w, http.StatusOK, ToRefundResponse(refund))
}

// HandleServiceError translates payment-layer errors into their API shape
// before handing off to the shared transport error writer.
func (h *Handler) HandleServiceError(w http.ResponseWriter, err error) {
	h.BaseHandler.HandleServiceError(w, translateError(err))
}

// translateError maps the payment domain error taxonomy onto AppError so
// each failure class surfaces with a stable code and status. Unknown errors
// pass through and fall back to a plain 500.
func translateError(err error) error {
	var unsupported *paymentgateway.UnsupportedGatewayError
	if stderrors.As(err, &unsupported) {
		return errors.NewValidationError(unsupported.Error(), errors.ErrCodeGatewayUnsupported)
	}

	var misconfigured *paymentgateway.ConfigurationError
	if stderrors.As(err, &misconfigured) {
		return errors.NewInternalError(misconfigured.Error(), misconfigured)
	}

	if stderrors.Is(err, ErrDatabaseDisabled) {
		return errors.NewUnprocessableError(ErrDatabaseDisabled.Error(), errors.ErrCodeDatabaseDisabled)
	}

	var transition *InvalidStateTransitionError
	if stderrors.As(err, &transition) {
		return errors.NewConflictError(transition.Error(), errors.ErrCodeInvalidTransition)
	}

	var notAllowed *RefundNotAllowedError
	if stderrors.As(err, &notAllowed) {
		return errors.NewUnprocessableError(notAllowed.Error(), errors.ErrCodeRefundNotAllowed)
	}

	var exceeded *RefundAmountExceededError
	if stderrors.As(err, &exceeded) {
		return errors.NewUnprocessableError(exceeded.Error(), errors.ErrCodeRefundAmountExceeded)
	}

	var persistence *PersistenceError
	if stderrors.As(err, &persistence) {
		return errors.NewInternalError("payment persistence failed", persistence)
	}

	return err
}

// loadPayment resolves the {id} path param to a ledger transaction,
// writing the error response itself on failure.
func (h *Handler) loadPayment(w http.ResponseWriter, r *http.Request) (*datamodel.Transaction, error) {
	tx, err := h.Manager.GetPayment(chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return nil, err
	}
	if tx == nil {
		h.HandleError(w, errors.NewNotFoundError("payment not found", errors.ErrCodePaymentNotFound))
		return nil, nil
	}
	return tx, nil
}
