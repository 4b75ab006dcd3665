package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	paymentmodel "github.com/hoanglv/swapstation-management/internal/core/datamodel/payment"
	paymentpkg "github.com/hoanglv/swapstation-management/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) paymentpkg.RepositoryAPI {
	return &PaymentRepository{
		db: db,
	}
}

func (r *PaymentRepository) Create(p *paymentmodel.Payment) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByTxnRef(txnRef string) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	err := r.db.Where("txn_ref = ?", txnRef).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, paymentpkg.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkOutcome is the single write path out of PENDING. The status predicate
// in the WHERE clause makes the transition atomic at the row, so concurrent
// Return and IPN deliveries cannot both report a fresh transition.
func (r *PaymentRepository) MarkOutcome(txnRef, status string, result paymentmodel.GatewayResult) (bool, error) {
	tx := r.db.Model(&paymentmodel.Payment{}).
		Where("txn_ref = ? AND status = ?", txnRef, paymentmodel.StatusPending).
		Updates(map[string]interface{}{
			"status":             status,
			"transaction_no":     result.TransactionNo,
			"response_code":      result.ResponseCode,
			"transaction_status": result.TransactionStatus,
			"pay_date":           result.PayDate,
			"bank_code":          result.BankCode,
			"updated_at":         time.Now(),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *PaymentRepository) MarkExpiredBefore(cutoff time.Time) (int64, error) {
	tx := r.db.Model(&paymentmodel.Payment{}).
		Where("status = ? AND expires_at < ?", paymentmodel.StatusPending, cutoff).
		Updates(map[string]interface{}{
			"status":     paymentmodel.StatusExpired,
			"updated_at": time.Now(),
		})
	return tx.RowsAffected, tx.Error
}
