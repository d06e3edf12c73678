package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ContractKind string

const (
	ContractKindRevenue ContractKind = "revenue" // договор дохода
	ContractKindExpense ContractKind = "expense" // договор расхода
)

// Contract — договор с повторяющимися платежами. После появления вхождений
// меняется только через резолвер области правки
type Contract struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	AccountID uuid.UUID       `json:"account_id" db:"account_id"`
	Title     string          `json:"title" db:"title"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Kind      ContractKind    `json:"kind" db:"kind"`
	Frequency Frequency       `json:"frequency" db:"frequency"`
	StartDate time.Time       `json:"start_date" db:"start_date"`
	EndDate   *time.Time      `json:"end_date" db:"end_date"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

type CreateContractRequest struct {
	AccountID uuid.UUID       `json:"account_id" validate:"required"`
	Title     string          `json:"title" validate:"required,max=255"`
	Amount    decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Kind      ContractKind    `json:"kind" validate:"required,oneof=revenue expense"`
	Frequency string          `json:"frequency" validate:"required"`
	StartDate time.Time       `json:"start_date" validate:"required"`
	EndDate   *time.Time      `json:"end_date"`
}

// Validate проверяет запрос на создание договора
func (r *CreateContractRequest) Validate() error {
	if r.Title == "" {
		return NewValidationError("название договора обязательно")
	}
	if !r.Amount.IsPositive() {
		return NewValidationError("сумма договора должна быть положительной")
	}
	if r.Kind != ContractKindRevenue && r.Kind != ContractKindExpense {
		return NewValidationError("вид договора должен быть revenue или expense")
	}
	if _, err := ParseFrequency(r.Frequency); err != nil {
		return err
	}
	if r.StartDate.IsZero() {
		return NewValidationError("дата начала обязательна")
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return NewValidationError("дата окончания раньше даты начала")
	}
	return nil
}
