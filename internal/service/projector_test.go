package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finance-api/internal/model"
)

func unsettledTx(txType model.TransactionType, amount int64, from, to *uuid.UUID, status model.TransactionStatus) model.Transaction {
	return model.Transaction{
		ID:            uuid.New(),
		Type:          txType,
		Amount:        decimal.NewFromInt(amount),
		AccountFromID: from,
		AccountToID:   to,
		Status:        status,
	}
}

func TestProjectedBalanceSignedSum(t *testing.T) {
	accountID := uuid.New()
	other := uuid.New()

	unsettled := []model.Transaction{
		// Ожидающее списание уменьшает прогноз
		unsettledTx(model.TransactionTypeExpense, 200, &accountID, nil, model.TransactionStatusPending),
		// Просроченное поступление увеличивает прогноз
		unsettledTx(model.TransactionTypeRevenue, 50, nil, &accountID, model.TransactionStatusOverdue),
		// Чужое движение не влияет
		unsettledTx(model.TransactionTypeExpense, 999, &other, nil, model.TransactionStatusPending),
	}

	got := projectedBalance(accountID, decimal.NewFromInt(1000), unsettled)
	if !got.Equal(decimal.NewFromInt(850)) {
		t.Fatalf("прогноз = %s, ожидалось 850", got)
	}
}

func TestProjectedBalanceTransferBothSides(t *testing.T) {
	from := uuid.New()
	to := uuid.New()

	transfer := []model.Transaction{
		unsettledTx(model.TransactionTypeTransfer, 300, &from, &to, model.TransactionStatusPending),
	}

	// Со стороны списания перевод уменьшает прогноз
	gotFrom := projectedBalance(from, decimal.NewFromInt(1000), transfer)
	if !gotFrom.Equal(decimal.NewFromInt(700)) {
		t.Errorf("прогноз счета списания = %s, ожидалось 700", gotFrom)
	}

	// Со стороны зачисления — увеличивает
	gotTo := projectedBalance(to, decimal.NewFromInt(100), transfer)
	if !gotTo.Equal(decimal.NewFromInt(400)) {
		t.Errorf("прогноз счета зачисления = %s, ожидалось 400", gotTo)
	}
}

// Перевод на тот же счет с обеих сторон взаимно гасится
func TestSignedAmountSelfTransfer(t *testing.T) {
	accountID := uuid.New()
	tx := unsettledTx(model.TransactionTypeTransfer, 300, &accountID, &accountID, model.TransactionStatusPending)

	if got := signedAmount(accountID, &tx); !got.IsZero() {
		t.Fatalf("вклад = %s, ожидалось 0", got)
	}
}

func TestProjectedBalanceNoMovements(t *testing.T) {
	got := projectedBalance(uuid.New(), decimal.NewFromInt(1234), nil)
	if !got.Equal(decimal.NewFromInt(1234)) {
		t.Fatalf("прогноз = %s, ожидалось 1234", got)
	}
}

// Прогноз выводится заново из текущего состояния: одинаковый ввод
// дает одинаковый результат независимо от порядка движений
func TestProjectedBalanceConvergence(t *testing.T) {
	accountID := uuid.New()

	a := unsettledTx(model.TransactionTypeExpense, 100, &accountID, nil, model.TransactionStatusPending)
	b := unsettledTx(model.TransactionTypeRevenue, 250, nil, &accountID, model.TransactionStatusPending)

	forward := projectedBalance(accountID, decimal.NewFromInt(500), []model.Transaction{a, b})
	reverse := projectedBalance(accountID, decimal.NewFromInt(500), []model.Transaction{b, a})

	if !forward.Equal(reverse) {
		t.Fatalf("порядок движений повлиял на прогноз: %s != %s", forward, reverse)
	}
	if !forward.Equal(decimal.NewFromInt(650)) {
		t.Fatalf("прогноз = %s, ожидалось 650", forward)
	}
}

func testProjector() *ProjectorService {
	return &ProjectorService{
		cache:  make(map[uuid.UUID]decimal.Decimal),
		epochs: make(map[uuid.UUID]uint64),
	}
}

func TestInvalidate(t *testing.T) {
	p := testProjector()
	a := uuid.New()
	b := uuid.New()
	p.cache[a] = decimal.NewFromInt(100)
	p.cache[b] = decimal.NewFromInt(200)

	p.Invalidate(a)
	if _, ok := p.cache[a]; ok {
		t.Error("кэш счета a должен быть сброшен")
	}
	if _, ok := p.cache[b]; !ok {
		t.Error("кэш счета b не должен пострадать")
	}

	p.InvalidateAll()
	if len(p.cache) != 0 {
		t.Error("кэш должен быть пуст после полного сброса")
	}
}

// Инвалидация, случившаяся между фиксацией поколения и записью в кэш,
// отменяет кэширование: прогноз, посчитанный по устаревшему снимку,
// не должен пережить инвалидацию
func TestStoreIfCurrentDropsStaleProjection(t *testing.T) {
	p := testProjector()
	a := uuid.New()

	_, ok, epoch, resets := p.snapshot(a)
	if ok {
		t.Fatal("кэш не должен быть заполнен до первого расчета")
	}

	// Пишущий путь инвалидировал счет, пока шел расчет
	p.Invalidate(a)

	p.storeIfCurrent(a, decimal.NewFromInt(100), epoch, resets)
	if _, ok := p.cache[a]; ok {
		t.Fatal("устаревший прогноз не должен попадать в кэш после инвалидации")
	}

	// Без инвалидации между фиксацией и записью прогноз кэшируется
	_, _, epoch, resets = p.snapshot(a)
	p.storeIfCurrent(a, decimal.NewFromInt(150), epoch, resets)
	got, ok := p.cache[a]
	if !ok || !got.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("актуальный прогноз должен кэшироваться, кэш = %s, ok = %v", got, ok)
	}
}

// Полный сброс кэша тоже отменяет отложенную запись
func TestStoreIfCurrentDropsStaleAfterFullReset(t *testing.T) {
	p := testProjector()
	a := uuid.New()

	_, _, epoch, resets := p.snapshot(a)
	p.InvalidateAll()

	p.storeIfCurrent(a, decimal.NewFromInt(100), epoch, resets)
	if _, ok := p.cache[a]; ok {
		t.Fatal("прогноз не должен попадать в кэш после полного сброса")
	}
}
