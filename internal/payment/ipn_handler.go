package payment

import (
	"log/slog"
	"net/http"
	"net/url"

	errors "github.com/hoanglv/swapstation-management/internal"
	"github.com/hoanglv/swapstation-management/internal/transport"
	"github.com/hoanglv/swapstation-management/internal/vnpay"
)

// IPNResponse is the gateway-defined acknowledgement body. Codes and
// messages are part of the wire protocol, not free text.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

var (
	ipnConfirmSuccess   = IPNResponse{RspCode: "00", Message: "Confirm Success"}
	ipnOrderNotFound    = IPNResponse{RspCode: "01", Message: "Order not found"}
	ipnAlreadyConfirmed = IPNResponse{RspCode: "02", Message: "Order already confirmed"}
	ipnInvalidAmount    = IPNResponse{RspCode: "04", Message: "Invalid amount"}
	ipnInvalidChecksum  = IPNResponse{RspCode: "97", Message: "Invalid Checksum"}
	ipnInternalError    = IPNResponse{RspCode: "99", Message: "Unknown error"}
)

// IPNHandler is the server-to-server callback entry point. It is the
// authoritative path: the gateway retries delivery until it gets RspCode 00
// or a definitive rejection.
type IPNHandler struct {
	transport.BaseHandler
	service  ServiceAPI
	verifier VerifierAPI
	logger   *slog.Logger
}

func NewIPNHandler(service ServiceAPI, verifier VerifierAPI, logger *slog.Logger) *IPNHandler {
	return &IPNHandler{
		service:  service,
		verifier: verifier,
		logger:   logger,
	}
}

// Handle processes GET /vnpay/ipn. Every exit is HTTP 200 with a gateway
// response code; transport-level errors are reserved for infrastructure.
func (h *IPNHandler) Handle(w http.ResponseWriter, r *http.Request) {
	params := flattenQuery(r.URL.Query())

	if !h.verifier.VerifyIPN(params) {
		h.logger.Warn("ipn signature rejected",
			"txn_ref", params[vnpay.FieldTxnRef],
			"remote_addr", r.RemoteAddr)
		h.WriteJSON(w, http.StatusOK, ipnInvalidChecksum)
		return
	}

	callback := CallbackParams{
		TxnRef:            params[vnpay.FieldTxnRef],
		ResponseCode:      params[vnpay.FieldResponseCode],
		TransactionStatus: params[vnpay.FieldTransactionStatus],
		TransactionNo:     params[vnpay.FieldTransactionNo],
		PayDate:           params[vnpay.FieldPayDate],
		BankCode:          params[vnpay.FieldBankCode],
		Amount:            params[vnpay.FieldAmount],
	}

	outcome, err := h.service.HandleCallback(r.Context(), callback)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok && appErr.Code == errors.ErrCodePaymentNotFound {
			h.WriteJSON(w, http.StatusOK, ipnOrderNotFound)
			return
		}
		h.logger.Error("ipn processing failed", "error", err, "txn_ref", callback.TxnRef)
		h.WriteJSON(w, http.StatusOK, ipnInternalError)
		return
	}

	switch outcome {
	case OutcomeReplay:
		h.WriteJSON(w, http.StatusOK, ipnAlreadyConfirmed)
	case OutcomeAmountMismatch:
		h.WriteJSON(w, http.StatusOK, ipnInvalidAmount)
	default:
		// Both SUCCESS and FAILED transitions acknowledge receipt.
		h.WriteJSON(w, http.StatusOK, ipnConfirmSuccess)
	}
}

// flattenQuery keeps the first value of each query parameter.
func flattenQuery(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for name := range values {
		params[name] = values.Get(name)
	}
	return params
}
