package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunRate - месячный эквивалент оборота по активным договорам
type RunRate struct {
	MonthlyRevenue  decimal.Decimal `json:"monthly_revenue"`
	MonthlyExpenses decimal.Decimal `json:"monthly_expenses"`
	NetRunRate      decimal.Decimal `json:"net_run_rate"`
	ActiveContracts int             `json:"active_contracts"`
}

// BalanceForecast - прогноз суммарного остатка на дату
type BalanceForecast struct {
	Date             time.Time       `json:"date"`
	ProjectedBalance decimal.Decimal `json:"projected_balance"`
	PlannedMovements decimal.Decimal `json:"planned_movements"`
}
