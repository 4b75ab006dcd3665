package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	subscriptionmodel "github.com/hoanglv/swapstation-management/internal/core/datamodel/subscription"
	subscriptionpkg "github.com/hoanglv/swapstation-management/internal/subscription"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) subscriptionpkg.RepositoryAPI {
	return &SubscriptionRepository{
		db: db,
	}
}

func (r *SubscriptionRepository) GetByUserID(userID int64) (*subscriptionmodel.Subscription, error) {
	var sub subscriptionmodel.Subscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreditBalance increments in place so two credits for different payments
// never lose an update; the first credit creates the row.
func (r *SubscriptionRepository) CreditBalance(userID int64, packID *int64, amountVND int64) error {
	updates := map[string]interface{}{
		"balance_vnd": gorm.Expr("balance_vnd + ?", amountVND),
		"updated_at":  time.Now(),
	}
	if packID != nil {
		updates["pack_id"] = *packID
	}

	tx := r.db.Model(&subscriptionmodel.Subscription{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected > 0 {
		return nil
	}

	now := time.Now()
	return r.db.Create(&subscriptionmodel.Subscription{
		UserID:     userID,
		PackID:     packID,
		BalanceVND: amountVND,
		CreatedAt:  now,
		UpdatedAt:  now,
	}).Error
}
