package payment

import (
	"time"

	errors "github.com/hoanglv/swapstation-management/internal"
	"github.com/hoanglv/swapstation-management/internal/core/common/validation"
	paymentmodel "github.com/hoanglv/swapstation-management/internal/core/datamodel/payment"
)

// CreatePaymentParams is the input for initiating a payment attempt.
type CreatePaymentParams struct {
	UserID    int64
	PackID    *int64
	AmountVND int64
	OrderInfo string
	ClientIP  string
}

func (p *CreatePaymentParams) Validate() error {
	validator := validation.NewValidator()

	validator.Field("user_id", p.UserID).Required()
	validator.Field("amount", p.AmountVND).Positive(errors.ErrCodeInvalidAmount)
	validator.Field("order_info", p.OrderInfo).Required().MaxLen(255, errors.ErrCodeInvalidOrderInfo)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// CallbackParams carries the decoded gateway callback fields that matter to
// the lifecycle transition. Both the Return and IPN handlers produce one of
// these after their respective signature checks.
type CallbackParams struct {
	TxnRef            string
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	PayDate           string
	BankCode          string
	Amount            string
}

// CallbackOutcome distinguishes a fresh transition from an idempotent replay.
type CallbackOutcome int

const (
	OutcomeConfirmedSuccess CallbackOutcome = iota
	OutcomeConfirmedFailed
	OutcomeReplay
	OutcomeAmountMismatch
)

// CreateURLResponse is the envelope for POST /vnpay/create-url.
type CreateURLResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

// StatusResponse is the public projection of a payment record.
type StatusResponse struct {
	TxnRef            string    `json:"txn_ref"`
	UserID            int64     `json:"user_id"`
	PackID            *int64    `json:"pack_id,omitempty"`
	AmountVND         int64     `json:"amount_vnd"`
	OrderInfo         string    `json:"order_info"`
	Status            string    `json:"status"`
	TransactionNo     *string   `json:"transaction_no,omitempty"`
	ResponseCode      *string   `json:"response_code,omitempty"`
	TransactionStatus *string   `json:"transaction_status,omitempty"`
	PayDate           *string   `json:"pay_date,omitempty"`
	BankCode          *string   `json:"bank_code,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

func NewStatusResponse(p *paymentmodel.Payment) *StatusResponse {
	return &StatusResponse{
		TxnRef:            p.TxnRef,
		UserID:            p.UserID,
		PackID:            p.PackID,
		AmountVND:         p.AmountVND,
		OrderInfo:         p.OrderInfo,
		Status:            p.Status,
		TransactionNo:     p.TransactionNo,
		ResponseCode:      p.ResponseCode,
		TransactionStatus: p.TransactionStatus,
		PayDate:           p.PayDate,
		BankCode:          p.BankCode,
		CreatedAt:         p.CreatedAt,
		ExpiresAt:         p.ExpiresAt,
	}
}
