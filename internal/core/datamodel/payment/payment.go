package payment

import (
	"time"
)

const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusExpired = "EXPIRED"
)

// Payment is one payment attempt against the VNPay gateway. TxnRef is the
// externally visible identity and is immutable once written. AmountVND holds
// the quoted amount; the gateway-facing value (x100) is derived on the way
// out and never stored.
type Payment struct {
	ID        int64     `gorm:"primaryKey"`
	TxnRef    string    `gorm:"column:txn_ref;not null;uniqueIndex"`
	UserID    int64     `gorm:"column:user_id;not null"`
	PackID    *int64    `gorm:"column:pack_id"`
	AmountVND int64     `gorm:"column:amount_vnd;not null"`
	OrderInfo string    `gorm:"column:order_info"`
	Status    string    `gorm:"column:status;default:PENDING"`
	ExpiresAt time.Time `gorm:"column:expires_at"`

	// Gateway response bundle, nil until the first accepted callback.
	TransactionNo     *string `gorm:"column:transaction_no"`
	ResponseCode      *string `gorm:"column:response_code"`
	TransactionStatus *string `gorm:"column:transaction_status"`
	PayDate           *string `gorm:"column:pay_date"`
	BankCode          *string `gorm:"column:bank_code"`

	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) IsPending() bool {
	return p.Status == StatusPending
}

// GatewayResult carries the callback fields written alongside a status
// transition.
type GatewayResult struct {
	TransactionNo     string
	ResponseCode      string
	TransactionStatus string
	PayDate           string
	BankCode          string
}
