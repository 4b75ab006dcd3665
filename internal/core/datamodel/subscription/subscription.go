package subscription

import "time"

// Subscription tracks a driver's prepaid battery-swap balance. BalanceVND is
// credited once per confirmed payment.
type Subscription struct {
	ID         int64     `gorm:"primaryKey"`
	UserID     int64     `gorm:"column:user_id;not null;uniqueIndex"`
	PackID     *int64    `gorm:"column:pack_id"`
	BalanceVND int64     `gorm:"column:balance_vnd;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt  time.Time `gorm:"column:updated_at;default:now()"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
