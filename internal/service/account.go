package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"finance-api/internal/model"
	"finance-api/internal/repository"
)

type AccountService struct {
	accountRepo *repository.AccountRepository
	logger      *logrus.Logger
}

func NewAccountService(accountRepo *repository.AccountRepository, logger *logrus.Logger) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		logger:      logger,
	}
}

// CreateAccount создает новый счет пользователя с нулевым остатком
func (s *AccountService) CreateAccount(ctx context.Context, userID uuid.UUID, req model.CreateAccountRequest) (*model.Account, error) {
	if req.Currency == "" {
		req.Currency = "RUB"
	}
	if req.Currency != "RUB" {
		return nil, model.NewValidationError("поддерживается только валюта RUB")
	}
	if req.Name == "" {
		req.Name = "Основной счет"
	}

	now := time.Now()
	account := &model.Account{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      req.Name,
		Balance:   decimal.Zero,
		Currency:  req.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		s.logger.WithError(err).Error("Не удалось создать счет")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"account_id": account.ID,
		"user_id":    userID,
	}).Info("Счет создан")

	return account, nil
}

// GetUserAccounts возвращает все счета пользователя
func (s *AccountService) GetUserAccounts(ctx context.Context, userID uuid.UUID) ([]model.Account, error) {
	return s.accountRepo.GetUserAccounts(ctx, userID)
}
