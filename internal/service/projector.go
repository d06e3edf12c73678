package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"finance-api/internal/model"
	"finance-api/internal/repository"
)

// ProjectorService считает прогнозный баланс счета: фактический остаток
// плюс знаковая сумма незакрытых (pending/overdue) плановых движений.
// Прогноз выводится заново из текущего состояния, а не поддерживается
// инкрементально, поэтому после любой последовательности правок он
// сходится к одному и тому же значению
type ProjectorService struct {
	accountRepo *repository.AccountRepository
	txRepo      *repository.TransactionRepository
	logger      *logrus.Logger

	mu     sync.RWMutex
	cache  map[uuid.UUID]decimal.Decimal
	epochs map[uuid.UUID]uint64
	resets uint64
}

func NewProjectorService(
	accountRepo *repository.AccountRepository,
	txRepo *repository.TransactionRepository,
	logger *logrus.Logger,
) *ProjectorService {
	return &ProjectorService{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		logger:      logger,
		cache:       make(map[uuid.UUID]decimal.Decimal),
		epochs:      make(map[uuid.UUID]uint64),
	}
}

// signedAmount возвращает вклад незакрытого движения в прогноз счета accountID.
// Штраф в прогноз не входит: это санкция за просрочку, а не плановое движение
func signedAmount(accountID uuid.UUID, t *model.Transaction) decimal.Decimal {
	total := decimal.Zero
	if t.AccountFromID != nil && *t.AccountFromID == accountID {
		total = total.Sub(t.Amount)
	}
	if t.AccountToID != nil && *t.AccountToID == accountID {
		total = total.Add(t.Amount)
	}
	return total
}

// projectedBalance — чистая свертка: остаток плюс знаковая сумма незакрытых движений
func projectedBalance(accountID uuid.UUID, balance decimal.Decimal, unsettled []model.Transaction) decimal.Decimal {
	projected := balance
	for i := range unsettled {
		projected = projected.Add(signedAmount(accountID, &unsettled[i]))
	}
	return projected
}

// GetProjectedBalance возвращает прогнозный баланс счета пользователя
func (s *ProjectorService) GetProjectedBalance(ctx context.Context, accountID, userID uuid.UUID) (*model.AccountProjection, error) {
	// Поколение инвалидации фиксируется до всех обращений к БД: если за
	// время расчета счет инвалидировали, посчитанное значение построено на
	// устаревшем снимке и кэшировать его нельзя
	cached, ok, epoch, resets := s.snapshot(accountID)

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		s.logger.Warnf("Попытка доступа к чужому счету: пользователь %s, счет %s", userID, accountID)
		return nil, model.NewValidationError("счет не принадлежит пользователю")
	}

	projected := cached
	if !ok {
		unsettled, err := s.txRepo.GetUnsettledByAccount(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("ошибка получения плановых движений: %w", err)
		}
		projected = projectedBalance(accountID, account.Balance, unsettled)
		s.storeIfCurrent(accountID, projected, epoch, resets)
	}

	return &model.AccountProjection{
		AccountID:        account.ID,
		Name:             account.Name,
		Balance:          account.Balance,
		ProjectedBalance: projected,
	}, nil
}

// snapshot возвращает кэшированный прогноз и текущее поколение инвалидации счета
func (s *ProjectorService) snapshot(accountID uuid.UUID) (decimal.Decimal, bool, uint64, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached, ok := s.cache[accountID]
	return cached, ok, s.epochs[accountID], s.resets
}

// storeIfCurrent кэширует прогноз, только если с момента фиксации поколения
// счет не инвалидировали
func (s *ProjectorService) storeIfCurrent(accountID uuid.UUID, projected decimal.Decimal, epoch, resets uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epochs[accountID] != epoch || s.resets != resets {
		return
	}
	s.cache[accountID] = projected
}

// Invalidate сбрасывает кэш прогнозов перечисленных счетов.
// Пишущие пути вызывают его синхронно до ответа клиенту, чтобы чтение
// после подтвержденной записи видело ее эффект
func (s *ProjectorService) Invalidate(accountIDs ...uuid.UUID) {
	if len(accountIDs) == 0 {
		return
	}
	s.mu.Lock()
	for _, id := range accountIDs {
		delete(s.cache, id)
		s.epochs[id]++
	}
	s.mu.Unlock()
}

// InvalidateAll сбрасывает кэш целиком. Вызывается при потере соединения
// слушателя уведомлений: за время разрыва могли быть пропущены события
func (s *ProjectorService) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[uuid.UUID]decimal.Decimal)
	s.resets++
	s.mu.Unlock()
}
