package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Account struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	Name      string          `json:"name" db:"name"`
	Balance   decimal.Decimal `json:"balance" db:"balance"` // подтвержденный остаток
	Currency  string          `json:"currency" db:"currency"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

type CreateAccountRequest struct {
	Name     string `json:"name" validate:"max=255"`
	Currency string `json:"currency" validate:"required,oneof=RUB"`
}

// AccountProjection — счет с прогнозным остатком (выводится, не хранится)
type AccountProjection struct {
	AccountID        uuid.UUID       `json:"account_id"`
	Name             string          `json:"name"`
	Balance          decimal.Decimal `json:"balance"`
	ProjectedBalance decimal.Decimal `json:"projected_balance"`
}
