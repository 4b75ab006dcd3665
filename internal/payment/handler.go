package payment

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	qrcode "github.com/skip2/go-qrcode"

	errors "github.com/hoanglv/swapstation-management/internal"
	paymentmodel "github.com/hoanglv/swapstation-management/internal/core/datamodel/payment"
	"github.com/hoanglv/swapstation-management/internal/transport"
)

// ServiceAPI is the lifecycle surface the HTTP layer depends on.
type ServiceAPI interface {
	CreatePayment(ctx context.Context, params CreatePaymentParams) (*paymentmodel.Payment, string, error)
	PaymentByTxnRef(txnRef string) (*paymentmodel.Payment, error)
	PaymentURLFor(txnRef, clientIP string) (string, error)
	HandleCallback(ctx context.Context, params CallbackParams) (CallbackOutcome, error)
}

// VerifierAPI is the signature check surface the callback handlers depend on.
type VerifierAPI interface {
	VerifyIPN(params map[string]string) bool
	VerifyReturn(params map[string]string) bool
}

type Handler struct {
	transport.BaseHandler
	Service ServiceAPI
	Logger  *slog.Logger
}

func NewHandler(service ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  logger,
	}
}

// CreateURL handles POST /vnpay/create-url
func (h *Handler) CreateURL(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.HandleError(w, errors.NewValidationError("invalid form body", errors.ErrCodeValidationFailed))
		return
	}

	userID, err := strconv.ParseInt(r.FormValue("userID"), 10, 64)
	if err != nil {
		h.HandleError(w, errors.NewValidationFieldError("userID", "userID must be an integer", errors.ErrCodeValidationFailed))
		return
	}

	var packID *int64
	if raw := r.FormValue("packID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.HandleError(w, errors.NewValidationFieldError("packID", "packID must be an integer", errors.ErrCodeValidationFailed))
			return
		}
		packID = &id
	}

	amount, err := strconv.ParseFloat(r.FormValue("amount"), 64)
	if err != nil {
		h.HandleError(w, errors.NewValidationFieldError("amount", "amount must be a number", errors.ErrCodeInvalidAmount))
		return
	}

	params := CreatePaymentParams{
		UserID:    userID,
		PackID:    packID,
		AmountVND: int64(math.Round(amount)),
		OrderInfo: r.FormValue("orderInfo"),
		ClientIP:  transport.ClientIP(r),
	}

	record, url, err := h.Service.CreatePayment(r.Context(), params)
	if err != nil {
		h.Logger.Error("CreateURL: service error", "error", err, "user_id", userID)
		h.HandleError(w, err)
		return
	}

	h.Logger.Info("CreateURL: payment URL issued",
		"txn_ref", record.TxnRef,
		"user_id", userID,
		"amount_vnd", record.AmountVND)

	h.WriteJSON(w, http.StatusOK, CreateURLResponse{
		Status:  "success",
		Message: "payment URL created",
		Data:    url,
	})
}

// Status handles GET /vnpay/status/{txnRef}
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	txnRef := chi.URLParam(r, "txnRef")
	if txnRef == "" {
		h.HandleError(w, errors.NewValidationFieldError("txnRef", "txnRef is required", errors.ErrCodeValidationFailed))
		return
	}

	record, err := h.Service.PaymentByTxnRef(txnRef)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, NewStatusResponse(record))
}

// CreateQR handles GET /vnpay/create-qr?txnRef=... and renders the signed
// payment URL as a PNG QR code.
func (h *Handler) CreateQR(w http.ResponseWriter, r *http.Request) {
	txnRef := r.URL.Query().Get("txnRef")
	if txnRef == "" {
		h.HandleError(w, errors.NewValidationFieldError("txnRef", "txnRef is required", errors.ErrCodeValidationFailed))
		return
	}

	url, err := h.Service.PaymentURLFor(txnRef, transport.ClientIP(r))
	if err != nil {
		h.HandleError(w, err)
		return
	}

	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		h.Logger.Error("CreateQR: encoding failed", "error", err, "txn_ref", txnRef)
		h.HandleError(w, errors.NewInternalError("failed to render QR code", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("CreateQR: write failed", "error", err)
	}
}
