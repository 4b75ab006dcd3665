package subscription

import (
	"log/slog"

	subscriptionmodel "github.com/hoanglv/swapstation-management/internal/core/datamodel/subscription"
)

// RepositoryAPI is the persistence contract for subscription balances.
type RepositoryAPI interface {
	GetByUserID(userID int64) (*subscriptionmodel.Subscription, error)
	// CreditBalance adds amountVND to the user's balance, creating the
	// subscription row on first credit.
	CreditBalance(userID int64, packID *int64, amountVND int64) error
}

// Service owns the prepaid swap balance side effects of confirmed payments.
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

func (s *Service) GetByUserID(userID int64) (*subscriptionmodel.Subscription, error) {
	return s.repo.GetByUserID(userID)
}

func (s *Service) Credit(userID int64, packID *int64, amountVND int64) error {
	if err := s.repo.CreditBalance(userID, packID, amountVND); err != nil {
		s.logger.Error("failed to credit subscription balance",
			"error", err,
			"user_id", userID,
			"amount_vnd", amountVND)
		return err
	}

	s.logger.Info("subscription balance credited",
		"user_id", userID,
		"amount_vnd", amountVND)
	return nil
}
