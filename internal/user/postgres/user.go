package postgres

import (
	"errors"

	"gorm.io/gorm"

	usermodel "github.com/hoanglv/swapstation-management/internal/core/datamodel/user"
	userpkg "github.com/hoanglv/swapstation-management/internal/user"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) userpkg.RepositoryAPI {
	return &UserRepository{
		db: db,
	}
}

// GetByID returns (nil, nil) when the user does not exist so callers can
// distinguish absence from a store failure.
func (r *UserRepository) GetByID(id int64) (*usermodel.User, error) {
	var u usermodel.User
	err := r.db.First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
