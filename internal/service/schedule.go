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

// Лимит вхождений одного правила за один проход. Достижение лимита до
// горизонта — ошибка, а не молчаливое усечение: усеченная последовательность
// оставила бы в сетке дат дыру, которую никто не заметит
const maxOccurrencesPerRun = 1000

// ScheduleService материализует вхождения серий по правилам повторения
type ScheduleService struct {
	ruleRepo    *repository.RuleRepository
	txRepo      *repository.TransactionRepository
	accountRepo *repository.AccountRepository
	projector   *ProjectorService
	logger      *logrus.Logger
	horizonDays int
}

func NewScheduleService(
	ruleRepo *repository.RuleRepository,
	txRepo *repository.TransactionRepository,
	accountRepo *repository.AccountRepository,
	projector *ProjectorService,
	logger *logrus.Logger,
	horizonDays int,
) *ScheduleService {
	return &ScheduleService{
		ruleRepo:    ruleRepo,
		txRepo:      txRepo,
		accountRepo: accountRepo,
		projector:   projector,
		logger:      logger,
		horizonDays: horizonDays,
	}
}

// dateKey — каноничный ключ даты вхождения (без времени суток)
func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// occurrenceDates возвращает последовательность дат вхождений сегмента:
// от опорной даты до горизонта включительно, не позже end_date.
// Каждая дата считается от опорной по индексу
func occurrenceDates(rule *model.RecurrenceRule, horizon time.Time) ([]time.Time, error) {
	if !rule.Frequency.Valid() {
		return nil, model.NewValidationError("неизвестная периодичность: %s", rule.Frequency)
	}

	var dates []time.Time
	for n := 0; ; n++ {
		if n >= maxOccurrencesPerRun {
			return nil, fmt.Errorf("горизонт %s требует более %d вхождений правила за один проход",
				dateKey(horizon), maxOccurrencesPerRun)
		}
		d, err := rule.Frequency.Nth(rule.AnchorDate, n)
		if err != nil {
			return nil, err
		}
		if d.After(horizon) {
			break
		}
		if rule.EndDate != nil && d.After(*rule.EndDate) {
			break
		}
		dates = append(dates, d)
	}

	return dates, nil
}

// missingDates возвращает даты последовательности, еще не занятые вхождениями
func missingDates(dates []time.Time, existing map[string]bool) []time.Time {
	var missing []time.Time
	for _, d := range dates {
		if !existing[dateKey(d)] {
			missing = append(missing, d)
		}
	}
	return missing
}

// newOccurrence создает ожидающее вхождение с параметрами правила
func newOccurrence(rule *model.RecurrenceRule, date time.Time) *model.Transaction {
	now := time.Now()
	return &model.Transaction{
		ID:             uuid.New(),
		RuleID:         &rule.ID,
		AccountFromID:  rule.AccountFromID,
		AccountToID:    rule.AccountToID,
		Amount:         rule.Amount,
		Type:           rule.Type,
		Status:         model.TransactionStatusPending,
		OccurrenceDate: date,
		Description:    rule.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// DefaultHorizon возвращает стандартный горизонт генерации:
// конец текущего месяца плюс настроенное число дней
func (s *ScheduleService) DefaultHorizon(now time.Time) time.Time {
	endOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
	return endOfMonth.AddDate(0, 0, s.horizonDays)
}

// GenerateInstallments материализует вхождения всех активных правил до горизонта.
// Операция идемпотентна: повторный запуск с тем же горизонтом не создает дублей,
// поэтому перезапуск после частичного сбоя безопасен. Ошибка одного правила
// не прерывает обработку остальных
func (s *ScheduleService) GenerateInstallments(ctx context.Context, horizon time.Time) (*model.GenerationReport, error) {
	s.logger.WithField("horizon", dateKey(horizon)).Info("Запуск генерации вхождений серий")

	rules, err := s.ruleRepo.GetActive(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения активных правил")
		return nil, fmt.Errorf("ошибка получения правил: %w", err)
	}

	report := &model.GenerationReport{}
	for i := range rules {
		rule := &rules[i]
		created, err := s.GenerateForRule(ctx, rule, horizon)
		if err != nil {
			s.logger.WithError(err).Errorf("Ошибка генерации по правилу %s", rule.ID)
		}
		recordRuleResult(report, rule.ID, created, err)
	}

	s.logger.WithFields(logrus.Fields{
		"rules_processed":     report.RulesProcessed,
		"occurrences_created": report.OccurrencesCreated,
		"errors":              len(report.Errors),
	}).Info("Генерация вхождений завершена")

	return report, nil
}

// recordRuleResult фиксирует итог обработки правила в отчете.
// Вхождения, созданные до ошибки, не откатываются и попадают в счетчик
func recordRuleResult(report *model.GenerationReport, ruleID uuid.UUID, created int, err error) {
	report.OccurrencesCreated += created
	if err != nil {
		report.Errors = append(report.Errors, model.GenerationError{
			RuleID:  ruleID,
			Message: err.Error(),
		})
		return
	}
	report.RulesProcessed++
}

// GenerateForRule материализует недостающие вхождения одного правила
func (s *ScheduleService) GenerateForRule(ctx context.Context, rule *model.RecurrenceRule, horizon time.Time) (int, error) {
	if err := rule.ValidateForGeneration(); err != nil {
		return 0, err
	}

	dates, err := occurrenceDates(rule, horizon)
	if err != nil {
		return 0, err
	}
	if len(dates) == 0 {
		return 0, nil
	}

	// Проверка существования по паре (правило, дата), не по количеству
	existing, err := s.txRepo.GetRuleOccurrenceDates(ctx, rule.ID)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения существующих вхождений: %w", err)
	}

	created := 0
	for _, d := range missingDates(dates, existing) {
		inserted, err := s.txRepo.CreateOccurrence(ctx, newOccurrence(rule, d))
		if err != nil {
			return created, fmt.Errorf("ошибка создания вхождения на %s: %w", dateKey(d), err)
		}
		if inserted {
			created++
		}
	}

	if created > 0 {
		s.logger.WithFields(logrus.Fields{
			"rule_id": rule.ID,
			"created": created,
		}).Info("Материализованы новые вхождения серии")
		s.projector.Invalidate(ruleAccounts(rule)...)
	}

	return created, nil
}

// CreateRule создает правило для повторяющейся операции без договора
// и синхронно дозаполняет ближайшие вхождения
func (s *ScheduleService) CreateRule(ctx context.Context, userID uuid.UUID, req model.CreateRecurringRequest) (*model.RecurrenceRule, error) {
	frequency, err := model.ParseFrequency(req.Frequency)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rule := &model.RecurrenceRule{
		ID:            uuid.New(),
		UserID:        userID,
		Type:          req.Type,
		Amount:        req.Amount,
		AccountFromID: req.AccountFromID,
		AccountToID:   req.AccountToID,
		Frequency:     frequency,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		AnchorDate:    req.StartDate,
		Description:   req.Description,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := rule.ValidateForGeneration(); err != nil {
		return nil, err
	}

	// Проверяем принадлежность счетов пользователю
	if err := s.checkAccountsOwner(ctx, userID, rule.AccountFromID, rule.AccountToID); err != nil {
		return nil, err
	}

	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		s.logger.WithError(err).Error("Ошибка создания правила повторения")
		return nil, err
	}

	// Синхронный бэкфилл: как минимум ближайшее вхождение должно появиться сразу
	if _, err := s.GenerateForRule(ctx, rule, s.DefaultHorizon(now)); err != nil {
		s.logger.WithError(err).Warnf("Не удалось дозаполнить вхождения правила %s", rule.ID)
	}

	s.logger.WithField("rule_id", rule.ID).Info("Правило повторения создано")
	return rule, nil
}

func (s *ScheduleService) checkAccountsOwner(ctx context.Context, userID uuid.UUID, accountIDs ...*uuid.UUID) error {
	for _, id := range accountIDs {
		if id == nil {
			continue
		}
		account, err := s.accountRepo.GetByID(ctx, *id)
		if err != nil {
			return fmt.Errorf("ошибка получения счета: %w", err)
		}
		if account.UserID != userID {
			return model.NewValidationError("счет не принадлежит пользователю")
		}
	}
	return nil
}

// ruleAccounts возвращает счета, затрагиваемые правилом
func ruleAccounts(rule *model.RecurrenceRule) []uuid.UUID {
	var ids []uuid.UUID
	if rule.AccountFromID != nil {
		ids = append(ids, *rule.AccountFromID)
	}
	if rule.AccountToID != nil {
		ids = append(ids, *rule.AccountToID)
	}
	return ids
}
