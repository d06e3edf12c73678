package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeRevenue  TransactionType = "revenue"  // поступление на счет
	TransactionTypeExpense  TransactionType = "expense"  // списание со счета
	TransactionTypeTransfer TransactionType = "transfer" // перевод между счетами
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"   // ожидает оплаты
	TransactionStatusPaid      TransactionStatus = "paid"      // оплачена, учтена в остатке счета
	TransactionStatusOverdue   TransactionStatus = "overdue"   // просрочена
	TransactionStatusCancelled TransactionStatus = "cancelled" // отменена пользователем
)

// Transaction — вхождение серии либо разовая операция (rule_id == nil)
type Transaction struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	RuleID         *uuid.UUID        `json:"rule_id" db:"rule_id"`
	AccountFromID  *uuid.UUID        `json:"account_from_id" db:"account_from_id"`
	AccountToID    *uuid.UUID        `json:"account_to_id" db:"account_to_id"`
	Amount         decimal.Decimal   `json:"amount" db:"amount"`
	Penalty        decimal.Decimal   `json:"penalty" db:"penalty"`
	Type           TransactionType   `json:"type" db:"type"`
	Status         TransactionStatus `json:"status" db:"status"`
	OccurrenceDate time.Time         `json:"occurrence_date" db:"occurrence_date"`
	Description    string            `json:"description" db:"description"`
	PaidAt         *time.Time        `json:"paid_at" db:"paid_at"`
	DeletedAt      *time.Time        `json:"deleted_at" db:"deleted_at"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// Settled сообщает, закрыта ли транзакция. Закрытые транзакции —
// неизменяемая история: меняться может только привязка к сегменту правила
func (t *Transaction) Settled() bool {
	return t.Status == TransactionStatusPaid || t.Status == TransactionStatusCancelled
}

// Unsettled сообщает, участвует ли транзакция в прогнозе остатка
func (t *Transaction) Unsettled() bool {
	return t.Status == TransactionStatusPending || t.Status == TransactionStatusOverdue
}

type CreateTransactionRequest struct {
	Type           TransactionType `json:"type" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"required,gt=0"`
	OccurrenceDate time.Time       `json:"occurrence_date" validate:"required"`
	AccountFromID  *uuid.UUID      `json:"account_from_id"`
	AccountToID    *uuid.UUID      `json:"account_to_id"`
	Description    string          `json:"description" validate:"max=255"`
}

// Validate проверяет согласованность типа операции и привязок счетов
func (r *CreateTransactionRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return NewValidationError("сумма должна быть положительной")
	}
	switch r.Type {
	case TransactionTypeRevenue:
		if r.AccountToID == nil {
			return NewValidationError("для поступления требуется счет зачисления")
		}
	case TransactionTypeExpense:
		if r.AccountFromID == nil {
			return NewValidationError("для списания требуется счет списания")
		}
	case TransactionTypeTransfer:
		if r.AccountFromID == nil || r.AccountToID == nil {
			return NewValidationError("для перевода требуются оба счета")
		}
		if *r.AccountFromID == *r.AccountToID {
			return NewValidationError("счета перевода должны различаться")
		}
	default:
		return NewValidationError("неизвестный тип операции: %s", r.Type)
	}
	return nil
}
