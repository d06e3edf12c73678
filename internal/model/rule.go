package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecurrenceRule — сегмент правила повторения. Сегмент описывает непрерывный
// диапазон дат с неизменным набором параметров; правка "с этого и далее"
// закрывает сегмент и создает новый со своей опорной датой
type RecurrenceRule struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	ContractID    *uuid.UUID      `json:"contract_id" db:"contract_id"`
	Type          TransactionType `json:"type" db:"type"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	AccountFromID *uuid.UUID      `json:"account_from_id" db:"account_from_id"`
	AccountToID   *uuid.UUID      `json:"account_to_id" db:"account_to_id"`
	Frequency     Frequency       `json:"frequency" db:"frequency"`
	StartDate     time.Time       `json:"start_date" db:"start_date"`
	EndDate       *time.Time      `json:"end_date" db:"end_date"`
	AnchorDate    time.Time       `json:"anchor_date" db:"anchor_date"` // первое вхождение текущего сегмента
	Description   string          `json:"description" db:"description"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// ValidateForGeneration проверяет пригодность правила для материализации
func (r *RecurrenceRule) ValidateForGeneration() error {
	if !r.Amount.IsPositive() {
		return NewValidationError("сумма правила должна быть положительной")
	}
	if !r.Frequency.Valid() {
		return NewValidationError("неизвестная периодичность: %s", r.Frequency)
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return NewValidationError("дата окончания раньше даты начала")
	}
	switch r.Type {
	case TransactionTypeRevenue:
		if r.AccountToID == nil {
			return NewValidationError("у правила не задан счет зачисления")
		}
	case TransactionTypeExpense:
		if r.AccountFromID == nil {
			return NewValidationError("у правила не задан счет списания")
		}
	case TransactionTypeTransfer:
		if r.AccountFromID == nil || r.AccountToID == nil {
			return NewValidationError("у правила перевода не заданы оба счета")
		}
	default:
		return NewValidationError("неизвестный тип операции: %s", r.Type)
	}
	return nil
}

// EditScope — область применения правки вхождения серии
type EditScope string

const (
	EditScopeThis          EditScope = "this"            // только выбранное вхождение
	EditScopeThisAndFuture EditScope = "this-and-future" // выбранное и все последующие
	EditScopeAll           EditScope = "all"             // все незакрытые вхождения правила
)

// ParseEditScope разбирает строку в область правки
func ParseEditScope(s string) (EditScope, error) {
	switch EditScope(s) {
	case EditScopeThis, EditScopeThisAndFuture, EditScopeAll:
		return EditScope(s), nil
	}
	return "", NewValidationError("неизвестная область правки: %s", s)
}

// EditFields — изменяемые поля; nil означает "оставить как есть"
type EditFields struct {
	Amount         *decimal.Decimal `json:"amount"`
	OccurrenceDate *time.Time       `json:"occurrence_date"`
	Description    *string          `json:"description"`
	AccountFromID  *uuid.UUID       `json:"account_from_id"`
	AccountToID    *uuid.UUID       `json:"account_to_id"`
	Frequency      *Frequency       `json:"frequency"`
}

// Empty сообщает, что правка не меняет ни одного поля
func (f *EditFields) Empty() bool {
	return f.Amount == nil && f.OccurrenceDate == nil && f.Description == nil &&
		f.AccountFromID == nil && f.AccountToID == nil && f.Frequency == nil
}

type CreateRecurringRequest struct {
	Type          TransactionType `json:"type" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Frequency     string          `json:"frequency" validate:"required"`
	StartDate     time.Time       `json:"start_date" validate:"required"`
	EndDate       *time.Time      `json:"end_date"`
	AccountFromID *uuid.UUID      `json:"account_from_id"`
	AccountToID   *uuid.UUID      `json:"account_to_id"`
	Description   string          `json:"description" validate:"max=255"`
}

// GenerationReport — итог пакетной генерации вхождений
type GenerationReport struct {
	RulesProcessed     int               `json:"rules_processed"`
	OccurrencesCreated int               `json:"occurrences_created"`
	Errors             []GenerationError `json:"errors"`
}

// GenerationError — ошибка генерации по одному правилу; остальные правила
// пакета обрабатываются независимо
type GenerationError struct {
	RuleID  uuid.UUID `json:"rule_id"`
	Message string    `json:"message"`
}

// ChangeEvent — событие изменения строки, доставляемое каналом уведомлений
type ChangeEvent struct {
	Table         string     `json:"table"`
	Action        string     `json:"action"`
	AccountID     *uuid.UUID `json:"account_id"`
	AccountFromID *uuid.UUID `json:"account_from_id"`
	AccountToID   *uuid.UUID `json:"account_to_id"`
}
