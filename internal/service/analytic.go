package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"finance-api/internal/model"
	"finance-api/internal/repository"
)

type AnalyticService struct {
	contractRepo *repository.ContractRepository
	accountRepo  *repository.AccountRepository
	txRepo       *repository.TransactionRepository
	projector    *ProjectorService
	logger       *logrus.Logger
}

func NewAnalyticService(
	contractRepo *repository.ContractRepository,
	accountRepo *repository.AccountRepository,
	txRepo *repository.TransactionRepository,
	projector *ProjectorService,
	logger *logrus.Logger,
) *AnalyticService {
	return &AnalyticService{
		contractRepo: contractRepo,
		accountRepo:  accountRepo,
		txRepo:       txRepo,
		projector:    projector,
		logger:       logger,
	}
}

// GetRunRate возвращает месячный эквивалент оборота по активным договорам.
// Суммы приводятся к месяцу нормализатором периодичности
func (s *AnalyticService) GetRunRate(ctx context.Context, userID uuid.UUID) (*model.RunRate, error) {
	s.logger.WithField("user_id", userID).Info("Расчет run-rate по договорам")

	contracts, err := s.contractRepo.GetUserContracts(ctx, userID)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения договоров пользователя")
		return nil, fmt.Errorf("ошибка получения договоров: %w", err)
	}

	runRate := &model.RunRate{
		MonthlyRevenue:  decimal.Zero,
		MonthlyExpenses: decimal.Zero,
	}

	for i := range contracts {
		c := &contracts[i]
		if !c.IsActive {
			continue
		}

		monthly, err := MonthlyEquivalent(c.Amount, c.Frequency)
		if err != nil {
			s.logger.WithError(err).Warnf("Договор %s пропущен при расчете run-rate", c.ID)
			continue
		}

		switch c.Kind {
		case model.ContractKindRevenue:
			runRate.MonthlyRevenue = runRate.MonthlyRevenue.Add(monthly)
		case model.ContractKindExpense:
			runRate.MonthlyExpenses = runRate.MonthlyExpenses.Add(monthly)
		}
		runRate.ActiveContracts++
	}

	runRate.NetRunRate = runRate.MonthlyRevenue.Sub(runRate.MonthlyExpenses)

	s.logger.WithFields(logrus.Fields{
		"monthly_revenue":  runRate.MonthlyRevenue,
		"monthly_expenses": runRate.MonthlyExpenses,
		"net_run_rate":     runRate.NetRunRate,
		"active_contracts": runRate.ActiveContracts,
	}).Info("Run-rate рассчитан")

	return runRate, nil
}

// GetProjectedBalances возвращает прогнозные остатки всех счетов пользователя
func (s *AnalyticService) GetProjectedBalances(ctx context.Context, userID uuid.UUID) ([]model.AccountProjection, error) {
	accounts, err := s.accountRepo.GetUserAccounts(ctx, userID)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения счетов пользователя")
		return nil, fmt.Errorf("ошибка получения счетов: %w", err)
	}

	projections := make([]model.AccountProjection, 0, len(accounts))
	for i := range accounts {
		projection, err := s.projector.GetProjectedBalance(ctx, accounts[i].ID, userID)
		if err != nil {
			s.logger.WithError(err).Errorf("Ошибка прогноза по счету %s", accounts[i].ID)
			return nil, err
		}
		projections = append(projections, *projection)
	}

	return projections, nil
}

// GetBalanceForecast возвращает прогноз суммарного остатка по дням:
// текущий остаток плюс накопленная знаковая сумма плановых движений
func (s *AnalyticService) GetBalanceForecast(ctx context.Context, userID uuid.UUID, days int) ([]model.BalanceForecast, error) {
	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"days":    days,
	}).Info("Расчет прогноза баланса")

	if days <= 0 || days > 365 {
		return nil, model.NewValidationError("период прогноза должен быть от 1 до 365 дней")
	}

	accounts, err := s.accountRepo.GetUserAccounts(ctx, userID)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения счетов пользователя")
		return nil, fmt.Errorf("ошибка получения счетов: %w", err)
	}

	// Суммарный подтвержденный остаток
	currentBalance := decimal.Zero
	owned := make(map[uuid.UUID]bool, len(accounts))
	for i := range accounts {
		currentBalance = currentBalance.Add(accounts[i].Balance)
		owned[accounts[i].ID] = true
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// Знаковые движения по датам. Внутренние переводы между счетами
	// пользователя не меняют суммарный остаток и взаимно гасятся.
	// Просроченные движения с прошедшей датой попадают в первый день прогноза
	movements := make(map[string]decimal.Decimal)
	for i := range accounts {
		unsettled, err := s.txRepo.GetUnsettledByAccount(ctx, accounts[i].ID)
		if err != nil {
			s.logger.WithError(err).Errorf("Ошибка получения движений по счету %s", accounts[i].ID)
			return nil, fmt.Errorf("ошибка получения плановых движений: %w", err)
		}
		for j := range unsettled {
			t := &unsettled[j]
			// Перевод затрагивает оба счета, учитываем его один раз со стороны списания
			if t.Type == model.TransactionTypeTransfer &&
				t.AccountToID != nil && *t.AccountToID == accounts[i].ID {
				continue
			}
			movementDate := t.OccurrenceDate
			if !movementDate.After(today) {
				movementDate = today.AddDate(0, 0, 1)
			}
			key := dateKey(movementDate)
			movements[key] = movements[key].Add(forecastAmount(t, owned))
		}
	}

	forecast := make([]model.BalanceForecast, 0, days)
	runningBalance := currentBalance

	for day := 1; day <= days; day++ {
		date := today.AddDate(0, 0, day)
		daily := movements[dateKey(date)]

		runningBalance = runningBalance.Add(daily)
		forecast = append(forecast, model.BalanceForecast{
			Date:             date,
			ProjectedBalance: runningBalance,
			PlannedMovements: daily,
		})
	}

	s.logger.WithFields(logrus.Fields{
		"start_balance": currentBalance,
		"end_balance":   runningBalance,
		"days":          days,
	}).Info("Прогноз баланса рассчитан")

	return forecast, nil
}

// forecastAmount — вклад движения в суммарный остаток пользователя
func forecastAmount(t *model.Transaction, owned map[uuid.UUID]bool) decimal.Decimal {
	total := decimal.Zero
	if t.AccountFromID != nil && owned[*t.AccountFromID] {
		total = total.Sub(t.Amount)
	}
	if t.AccountToID != nil && owned[*t.AccountToID] {
		total = total.Add(t.Amount)
	}
	return total
}
