package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentSucceeded = "payment.succeeded"
	EventTypePaymentFailed    = "payment.failed"
)

type PaymentSucceededEvent struct {
	BaseEvent
	PaymentID     int64  `json:"payment_id"`
	TxnRef        string `json:"txn_ref"`
	UserID        int64  `json:"user_id"`
	PackID        *int64 `json:"pack_id,omitempty"`
	AmountVND     int64  `json:"amount_vnd"`
	TransactionNo string `json:"transaction_no"`
	BankCode      string `json:"bank_code"`
}

func NewPaymentSucceededEvent(paymentID int64, txnRef string, userID int64, packID *int64, amountVND int64, transactionNo, bankCode string) *PaymentSucceededEvent {
	return &PaymentSucceededEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentSucceeded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"txn_ref":        txnRef,
				"user_id":        userID,
				"amount_vnd":     amountVND,
				"transaction_no": transactionNo,
				"bank_code":      bankCode,
			},
		},
		PaymentID:     paymentID,
		TxnRef:        txnRef,
		UserID:        userID,
		PackID:        packID,
		AmountVND:     amountVND,
		TransactionNo: transactionNo,
		BankCode:      bankCode,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	PaymentID    int64  `json:"payment_id"`
	TxnRef       string `json:"txn_ref"`
	UserID       int64  `json:"user_id"`
	AmountVND    int64  `json:"amount_vnd"`
	ResponseCode string `json:"response_code"`
}

func NewPaymentFailedEvent(paymentID int64, txnRef string, userID int64, amountVND int64, responseCode string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":    paymentID,
				"txn_ref":       txnRef,
				"user_id":       userID,
				"amount_vnd":    amountVND,
				"response_code": responseCode,
			},
		},
		PaymentID:    paymentID,
		TxnRef:       txnRef,
		UserID:       userID,
		AmountVND:    amountVND,
		ResponseCode: responseCode,
	}
}
