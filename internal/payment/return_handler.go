package payment

import (
	"html/template"
	"log/slog"
	"net/http"

	paymentmodel "github.com/hoanglv/swapstation-management/internal/core/datamodel/payment"
	"github.com/hoanglv/swapstation-management/internal/vnpay"
)

// ReturnHandler is the browser redirect target. It is advisory only: the
// user may close the tab before the redirect fires, so financial state never
// depends on this path alone.
type ReturnHandler struct {
	service  ServiceAPI
	verifier VerifierAPI
	logger   *slog.Logger
}

func NewReturnHandler(service ServiceAPI, verifier VerifierAPI, logger *slog.Logger) *ReturnHandler {
	return &ReturnHandler{
		service:  service,
		verifier: verifier,
		logger:   logger,
	}
}

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html lang="vi">
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
</head>
<body>
  <h1>{{.Title}}</h1>
  <p>{{.Message}}</p>
  {{if .TxnRef}}<p>Transaction reference: <strong>{{.TxnRef}}</strong></p>{{end}}
</body>
</html>
`))

type resultPageData struct {
	Title   string
	Message string
	TxnRef  string
}

// Handle processes GET /vnpay/return. It always renders an HTML page; the
// payment outcome itself is settled by whichever verified callback lands
// first.
func (h *ReturnHandler) Handle(w http.ResponseWriter, r *http.Request) {
	params := flattenQuery(r.URL.Query())
	txnRef := params[vnpay.FieldTxnRef]

	if !h.verifier.VerifyReturn(params) {
		h.logger.Warn("return signature rejected", "txn_ref", txnRef)
		h.render(w, resultPageData{
			Title:   "Payment verification failed",
			Message: "The payment result could not be verified. If you completed a payment, it will still be confirmed by the gateway.",
			TxnRef:  txnRef,
		})
		return
	}

	callback := CallbackParams{
		TxnRef:            txnRef,
		ResponseCode:      params[vnpay.FieldResponseCode],
		TransactionStatus: params[vnpay.FieldTransactionStatus],
		TransactionNo:     params[vnpay.FieldTransactionNo],
		PayDate:           params[vnpay.FieldPayDate],
		BankCode:          params[vnpay.FieldBankCode],
		Amount:            params[vnpay.FieldAmount],
	}

	if _, err := h.service.HandleCallback(r.Context(), callback); err != nil {
		h.logger.Error("return processing failed", "error", err, "txn_ref", txnRef)
	}

	record, err := h.service.PaymentByTxnRef(txnRef)
	if err != nil {
		h.render(w, resultPageData{
			Title:   "Payment not found",
			Message: "We could not find a payment for this transaction reference.",
			TxnRef:  txnRef,
		})
		return
	}

	if record.Status == paymentmodel.StatusSuccess {
		h.render(w, resultPageData{
			Title:   "Payment successful",
			Message: "Your battery swap package has been credited. You can close this page.",
			TxnRef:  txnRef,
		})
		return
	}

	h.render(w, resultPageData{
		Title:   "Payment not completed",
		Message: "The payment was not completed. No money has been taken if the transaction was declined.",
		TxnRef:  txnRef,
	})
}

func (h *ReturnHandler) render(w http.ResponseWriter, data resultPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := resultPage.Execute(w, data); err != nil {
		h.logger.Error("failed to render result page", "error", err)
	}
}
