package user

import "time"

const (
	RoleDriver = "driver"
	RoleStaff  = "staff"
	RoleAdmin  = "admin"

	StatusActive   = "active"
	StatusInactive = "inactive"
)

type User struct {
	ID        int64     `gorm:"primaryKey"`
	Email     string    `gorm:"column:email;not null;uniqueIndex"`
	FullName  string    `gorm:"column:full_name"`
	Role      string    `gorm:"column:role;default:driver"`
	Status    string    `gorm:"column:status;default:active"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (User) TableName() string {
	return "users"
}
