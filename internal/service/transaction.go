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

// TransactionService отвечает за разовые операции и жизненный цикл платежей:
// проведение, отмену, удаление и перевод просроченных
type TransactionService struct {
	txRepo       *repository.TransactionRepository
	accountRepo  *repository.AccountRepository
	userRepo     *repository.UserRepository
	projector    *ProjectorService
	cbrClient    *CBRClient
	emailSender  *EmailSender
	logger       *logrus.Logger
	fallbackRate decimal.Decimal
}

func NewTransactionService(
	txRepo *repository.TransactionRepository,
	accountRepo *repository.AccountRepository,
	userRepo *repository.UserRepository,
	projector *ProjectorService,
	cbrClient *CBRClient,
	emailSender *EmailSender,
	logger *logrus.Logger,
	fallbackRate float64,
) *TransactionService {
	return &TransactionService{
		txRepo:       txRepo,
		accountRepo:  accountRepo,
		userRepo:     userRepo,
		projector:    projector,
		cbrClient:    cbrClient,
		emailSender:  emailSender,
		logger:       logger,
		fallbackRate: decimal.NewFromFloat(fallbackRate),
	}
}

// txAccounts возвращает счета, затрагиваемые транзакцией
func txAccounts(t *model.Transaction) []uuid.UUID {
	var ids []uuid.UUID
	if t.AccountFromID != nil {
		ids = append(ids, *t.AccountFromID)
	}
	if t.AccountToID != nil {
		ids = append(ids, *t.AccountToID)
	}
	return ids
}

// overduePenalty считает пеню за просрочку: сумма x ставка/100/365 x дни
func overduePenalty(amount, annualRate decimal.Decimal, daysLate int) decimal.Decimal {
	if daysLate <= 0 {
		return decimal.Zero
	}
	return amount.
		Mul(annualRate).
		Div(decimal.NewFromInt(36500)).
		Mul(decimal.NewFromInt(int64(daysLate))).
		Round(2)
}

// Create создает разовую транзакцию вне серий
func (s *TransactionService) Create(ctx context.Context, userID uuid.UUID, req model.CreateTransactionRequest) (*model.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkAccountsOwner(ctx, userID, req.AccountFromID, req.AccountToID); err != nil {
		return nil, err
	}

	now := time.Now()
	t := &model.Transaction{
		ID:             uuid.New(),
		AccountFromID:  req.AccountFromID,
		AccountToID:    req.AccountToID,
		Amount:         req.Amount,
		Type:           req.Type,
		Status:         model.TransactionStatusPending,
		OccurrenceDate: req.OccurrenceDate,
		Description:    req.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.txRepo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.projector.Invalidate(txAccounts(t)...)
	return t, nil
}

// Update меняет поля разовой транзакции. Вхождения серий правятся
// через резолвер области правки, здесь они отклоняются
func (s *TransactionService) Update(ctx context.Context, userID, id uuid.UUID, fields model.EditFields) (*model.Transaction, error) {
	t, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if t.RuleID != nil {
		return nil, model.NewConflictError("транзакция входит в серию, используйте правку с областью действия")
	}
	if t.Settled() {
		return nil, model.NewConflictError("закрытая транзакция не подлежит правке")
	}
	if fields.Empty() {
		return nil, model.NewValidationError("правка не содержит изменений")
	}
	if fields.Frequency != nil {
		return nil, model.NewValidationError("периодичность применима только к сериям")
	}
	if fields.Amount != nil && !fields.Amount.IsPositive() {
		return nil, model.NewValidationError("сумма должна быть положительной")
	}
	if err := s.checkAccountsOwner(ctx, userID, fields.AccountFromID, fields.AccountToID); err != nil {
		return nil, err
	}

	db := s.txRepo.GetDB()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	if err := s.txRepo.ApplyEditTx(ctx, tx, id, fields); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка подтверждения операции: %w", err)
	}

	updated, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.projector.Invalidate(append(txAccounts(t), txAccounts(updated)...)...)
	return updated, nil
}

// Pay проводит платеж: сворачивает сумму (и пеню, если была) в остатки
// счетов и переводит транзакцию в paid. Счета блокируются FOR UPDATE,
// чтобы параллельное проведение не потеряло обновление остатка
func (s *TransactionService) Pay(ctx context.Context, userID, id uuid.UUID) (*model.Transaction, error) {
	s.logger.WithField("transaction_id", id).Info("Проведение платежа")

	db := s.txRepo.GetDB()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка начала транзакции")
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	t, err := s.txRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !t.Unsettled() {
		return nil, model.NewConflictError("транзакция в статусе %s не подлежит проведению", t.Status)
	}

	// Списание включает начисленную пеню, зачисление — только сумму
	debit := t.Amount.Add(t.Penalty)

	if t.AccountFromID != nil {
		from, err := s.accountRepo.GetByIDForUpdate(ctx, tx, *t.AccountFromID)
		if err != nil {
			return nil, err
		}
		if from.UserID != userID {
			return nil, model.NewValidationError("счет не принадлежит пользователю")
		}
		if err := s.accountRepo.UpdateBalanceTx(ctx, tx, from.ID, debit.Neg()); err != nil {
			return nil, err
		}
	}
	if t.AccountToID != nil {
		to, err := s.accountRepo.GetByIDForUpdate(ctx, tx, *t.AccountToID)
		if err != nil {
			return nil, err
		}
		if to.UserID != userID {
			return nil, model.NewValidationError("счет не принадлежит пользователю")
		}
		if err := s.accountRepo.UpdateBalanceTx(ctx, tx, to.ID, t.Amount); err != nil {
			return nil, err
		}
	}

	paidAt := time.Now()
	if err := s.txRepo.MarkPaidTx(ctx, tx, id, paidAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.WithError(err).Error("Ошибка подтверждения транзакции")
		return nil, fmt.Errorf("ошибка подтверждения операции: %w", err)
	}

	s.projector.Invalidate(txAccounts(t)...)

	s.logger.WithFields(logrus.Fields{
		"transaction_id": id,
		"amount":         t.Amount,
		"penalty":        t.Penalty,
	}).Info("Платеж проведен")

	// Уведомление не должно задерживать ответ
	go s.notifySettlement(userID, t)

	t.Status = model.TransactionStatusPaid
	t.PaidAt = &paidAt
	return t, nil
}

// Cancel отменяет незакрытый платеж. Отмененное вхождение продолжает
// занимать свою дату в сетке серии и не восстанавливается генератором
func (s *TransactionService) Cancel(ctx context.Context, userID, id uuid.UUID) error {
	t, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return err
	}
	if !t.Unsettled() {
		return model.NewConflictError("транзакция в статусе %s не подлежит отмене", t.Status)
	}

	if err := s.txRepo.UpdateStatus(ctx, id, model.TransactionStatusCancelled); err != nil {
		return err
	}

	s.projector.Invalidate(txAccounts(t)...)
	s.logger.WithField("transaction_id", id).Info("Платеж отменен")
	return nil
}

// Delete мягко удаляет незакрытую транзакцию. В отличие от отмены,
// удаление освобождает дату: генератор может материализовать вхождение заново
func (s *TransactionService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	t, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return err
	}
	if t.Settled() {
		return model.NewConflictError("закрытая транзакция не подлежит удалению")
	}

	if err := s.txRepo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.projector.Invalidate(txAccounts(t)...)
	s.logger.WithField("transaction_id", id).Info("Транзакция удалена")
	return nil
}

// GetAccountTransactions возвращает транзакции по счету пользователя за период
func (s *TransactionService) GetAccountTransactions(
	ctx context.Context,
	userID, accountID uuid.UUID,
	startDate, endDate time.Time,
) ([]model.Transaction, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, model.NewValidationError("счет не принадлежит пользователю")
	}

	return s.txRepo.GetByAccountAndPeriod(ctx, accountID, startDate, endDate)
}

// ProcessOverdue переводит ожидающие платежи с прошедшей датой в просроченные
// и начисляет пеню по ключевой ставке ЦБ. При недоступности ЦБ используется
// ставка по умолчанию из конфигурации
func (s *TransactionService) ProcessOverdue(ctx context.Context) error {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	pending, err := s.txRepo.GetPendingBefore(ctx, today)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения просроченных платежей")
		return fmt.Errorf("ошибка получения просроченных платежей: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	// Ставка запрашивается один раз на весь проход
	rate, err := s.cbrClient.GetKeyRate(ctx)
	if err != nil {
		s.logger.WithError(err).Warnf("ЦБ недоступен, используется ставка по умолчанию %s%%", s.fallbackRate)
		rate = s.fallbackRate
	}

	processed := 0
	for i := range pending {
		t := &pending[i]
		daysLate := int(today.Sub(t.OccurrenceDate) / (24 * time.Hour))
		penalty := overduePenalty(t.Amount, rate, daysLate)

		if err := s.txRepo.SetOverdue(ctx, t.ID, penalty); err != nil {
			s.logger.WithError(err).Errorf("Ошибка перевода транзакции %s в просроченные", t.ID)
			continue
		}
		processed++

		s.projector.Invalidate(txAccounts(t)...)
		go s.notifyOverdue(t, penalty)
	}

	s.logger.WithFields(logrus.Fields{
		"processed": processed,
		"key_rate":  rate,
	}).Info("Обработка просроченных платежей завершена")

	return nil
}

// getOwned возвращает транзакцию, если все ее счета принадлежат пользователю
func (s *TransactionService) getOwned(ctx context.Context, userID, id uuid.UUID) (*model.Transaction, error) {
	t, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccountsOwner(ctx, userID, t.AccountFromID, t.AccountToID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TransactionService) checkAccountsOwner(ctx context.Context, userID uuid.UUID, accountIDs ...*uuid.UUID) error {
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

func (s *TransactionService) notifySettlement(userID uuid.UUID, t *model.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.WithError(err).Warn("Не удалось получить пользователя для уведомления")
		return
	}
	if err := s.emailSender.SendSettlementNotification(user.Email, t.Description, t.Amount.Add(t.Penalty)); err != nil {
		s.logger.WithError(err).Warn("Не удалось отправить уведомление о платеже")
	}
}

func (s *TransactionService) notifyOverdue(t *model.Transaction, penalty decimal.Decimal) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Владелец определяется по счету списания, для поступлений — по счету зачисления
	accountID := t.AccountFromID
	if accountID == nil {
		accountID = t.AccountToID
	}
	if accountID == nil {
		return
	}

	account, err := s.accountRepo.GetByID(ctx, *accountID)
	if err != nil {
		s.logger.WithError(err).Warn("Не удалось получить счет для уведомления")
		return
	}
	user, err := s.userRepo.GetByID(ctx, account.UserID)
	if err != nil {
		s.logger.WithError(err).Warn("Не удалось получить пользователя для уведомления")
		return
	}
	if err := s.emailSender.SendOverdueNotification(user.Email, t.Description, t.Amount, penalty, t.OccurrenceDate); err != nil {
		s.logger.WithError(err).Warn("Не удалось отправить уведомление о просрочке")
	}
}
