package service

import (
	"testing"

	"github.com/shopspring/decimal"

	"finance-api/internal/model"
)

func TestMonthlyEquivalent(t *testing.T) {
	tests := []struct {
		name      string
		amount    int64
		frequency model.Frequency
		want      string
	}{
		{"daily", 100, model.FrequencyDaily, "3000"},
		{"weekly", 100, model.FrequencyWeekly, "400"},
		{"monthly", 100, model.FrequencyMonthly, "100"},
		{"quarterly", 300, model.FrequencyQuarterly, "100"},
		{"semiannual", 600, model.FrequencySemiannual, "100"},
		{"annual", 1200, model.FrequencyAnnual, "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MonthlyEquivalent(decimal.NewFromInt(tt.amount), tt.frequency)
			if err != nil {
				t.Fatalf("MonthlyEquivalent вернул ошибку: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("MonthlyEquivalent(%d, %s) = %s, ожидалось %s",
					tt.amount, tt.frequency, got, tt.want)
			}
		})
	}
}

func TestMonthlyEquivalentUnknown(t *testing.T) {
	_, err := MonthlyEquivalent(decimal.NewFromInt(100), model.Frequency("hourly"))
	if !model.IsValidation(err) {
		t.Fatalf("ожидалась ошибка валидации, получено: %v", err)
	}
}
