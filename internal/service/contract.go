package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"finance-api/internal/model"
	"finance-api/internal/repository"
)

// ContractService управляет договорами с повторяющимися платежами.
// Договор создается вместе со своим правилом повторения одной транзакцией:
// договор без правила не существует
type ContractService struct {
	contractRepo *repository.ContractRepository
	ruleRepo     *repository.RuleRepository
	accountRepo  *repository.AccountRepository
	schedule     *ScheduleService
	logger       *logrus.Logger
}

func NewContractService(
	contractRepo *repository.ContractRepository,
	ruleRepo *repository.RuleRepository,
	accountRepo *repository.AccountRepository,
	schedule *ScheduleService,
	logger *logrus.Logger,
) *ContractService {
	return &ContractService{
		contractRepo: contractRepo,
		ruleRepo:     ruleRepo,
		accountRepo:  accountRepo,
		schedule:     schedule,
		logger:       logger,
	}
}

// CreateContract создает договор и его правило повторения, затем синхронно
// дозаполняет ближайшие вхождения
func (s *ContractService) CreateContract(ctx context.Context, userID uuid.UUID, req model.CreateContractRequest) (*model.Contract, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		s.logger.Warnf("Попытка создания договора на чужой счет: пользователь %s, счет %s", userID, req.AccountID)
		return nil, model.NewValidationError("счет не принадлежит пользователю")
	}

	frequency, _ := model.ParseFrequency(req.Frequency)

	now := time.Now()
	contract := &model.Contract{
		ID:        uuid.New(),
		UserID:    userID,
		AccountID: req.AccountID,
		Title:     req.Title,
		Amount:    req.Amount,
		Kind:      req.Kind,
		Frequency: frequency,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	rule := &model.RecurrenceRule{
		ID:          uuid.New(),
		UserID:      userID,
		ContractID:  &contract.ID,
		Amount:      req.Amount,
		Frequency:   frequency,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		AnchorDate:  req.StartDate,
		Description: req.Title,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Вид договора определяет сторону движения средств
	switch req.Kind {
	case model.ContractKindRevenue:
		rule.Type = model.TransactionTypeRevenue
		rule.AccountToID = &contract.AccountID
	case model.ContractKindExpense:
		rule.Type = model.TransactionTypeExpense
		rule.AccountFromID = &contract.AccountID
	}

	if err := rule.ValidateForGeneration(); err != nil {
		return nil, err
	}

	db := s.contractRepo.GetDB()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка начала транзакции")
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	if err := s.contractRepo.CreateTx(ctx, tx, contract); err != nil {
		return nil, err
	}
	if err := s.ruleRepo.CreateTx(ctx, tx, rule); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.WithError(err).Error("Ошибка подтверждения транзакции")
		return nil, fmt.Errorf("ошибка подтверждения операции: %w", err)
	}

	// Синхронный бэкфилл: как минимум ближайшее вхождение должно появиться сразу
	if _, err := s.schedule.GenerateForRule(ctx, rule, s.schedule.DefaultHorizon(now)); err != nil {
		s.logger.WithError(err).Warnf("Не удалось дозаполнить вхождения договора %s", contract.ID)
	}

	s.logger.WithFields(logrus.Fields{
		"contract_id": contract.ID,
		"rule_id":     rule.ID,
		"kind":        contract.Kind,
	}).Info("Договор создан")

	return contract, nil
}

// GetContract возвращает договор пользователя
func (s *ContractService) GetContract(ctx context.Context, userID, id uuid.UUID) (*model.Contract, error) {
	contract, err := s.contractRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if contract.UserID != userID {
		return nil, model.ErrNotFound
	}
	return contract, nil
}

// GetUserContracts возвращает все договоры пользователя
func (s *ContractService) GetUserContracts(ctx context.Context, userID uuid.UUID) ([]model.Contract, error) {
	return s.contractRepo.GetUserContracts(ctx, userID)
}

// Deactivate останавливает договор: новые вхождения не генерируются,
// уже материализованные остаются
func (s *ContractService) Deactivate(ctx context.Context, userID, id uuid.UUID) error {
	contract, err := s.GetContract(ctx, userID, id)
	if err != nil {
		return err
	}
	if !contract.IsActive {
		return model.NewConflictError("договор уже остановлен")
	}

	if err := s.contractRepo.SetActive(ctx, id, false); err != nil {
		return err
	}
	if err := s.ruleRepo.DeactivateByContract(ctx, id); err != nil {
		return err
	}

	s.logger.WithField("contract_id", id).Info("Договор остановлен")
	return nil
}
