package user

import (
	"log/slog"

	usermodel "github.com/hoanglv/swapstation-management/internal/core/datamodel/user"
)

// RepositoryAPI is the persistence contract for user lookups.
type RepositoryAPI interface {
	GetByID(id int64) (*usermodel.User, error)
}

// Service answers ownership questions for the payment subsystem. User CRUD
// itself lives elsewhere.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetByID(id int64) (*usermodel.User, error) {
	return s.repo.GetByID(id)
}

// Exists reports whether an active user with the given ID is registered.
func (s *Service) Exists(userID int64) (bool, error) {
	u, err := s.repo.GetByID(userID)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, nil
	}
	return u.Status == usermodel.StatusActive, nil
}
