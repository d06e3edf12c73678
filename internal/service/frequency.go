package service

import (
	"github.com/shopspring/decimal"

	"finance-api/internal/model"
)

// MonthlyEquivalent приводит сумму с указанной периодичностью к месячному
// эквиваленту. Используется только для агрегатов (run-rate): номинальная
// сумма вхождений серии всегда берется из правила без пересчета
func MonthlyEquivalent(amount decimal.Decimal, frequency model.Frequency) (decimal.Decimal, error) {
	switch frequency {
	case model.FrequencyDaily:
		return amount.Mul(decimal.NewFromInt(30)), nil
	case model.FrequencyWeekly:
		return amount.Mul(decimal.NewFromInt(4)), nil
	case model.FrequencyMonthly:
		return amount, nil
	case model.FrequencyQuarterly:
		return amount.Div(decimal.NewFromInt(3)), nil
	case model.FrequencySemiannual:
		return amount.Div(decimal.NewFromInt(6)), nil
	case model.FrequencyAnnual:
		return amount.Div(decimal.NewFromInt(12)), nil
	}
	return decimal.Zero, model.NewValidationError("неизвестная периодичность: %s", frequency)
}
