package service

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOverduePenalty(t *testing.T) {
	rate := decimal.NewFromFloat(22.0)

	// 1000 x 22% / 365 x 10 дней = 6.03
	got := overduePenalty(decimal.NewFromInt(1000), rate, 10)
	if !got.Equal(decimal.RequireFromString("6.03")) {
		t.Errorf("пеня = %s, ожидалось 6.03", got)
	}

	// Без просрочки пеня не начисляется
	if got := overduePenalty(decimal.NewFromInt(1000), rate, 0); !got.IsZero() {
		t.Errorf("пеня = %s, ожидалось 0", got)
	}
	if got := overduePenalty(decimal.NewFromInt(1000), rate, -3); !got.IsZero() {
		t.Errorf("пеня = %s, ожидалось 0", got)
	}
}

func TestOverduePenaltyGrowsWithDays(t *testing.T) {
	rate := decimal.NewFromFloat(22.0)
	amount := decimal.NewFromInt(50000)

	short := overduePenalty(amount, rate, 1)
	long := overduePenalty(amount, rate, 30)
	if !long.GreaterThan(short) {
		t.Fatalf("пеня за 30 дней (%s) должна превышать пеню за 1 день (%s)", long, short)
	}
}
