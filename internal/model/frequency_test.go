package model

import (
	"testing"
	"time"
)

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestFrequencyNth(t *testing.T) {
	tests := []struct {
		name      string
		frequency Frequency
		anchor    string
		n         int
		want      string
	}{
		{"daily", FrequencyDaily, "2024-01-15", 3, "2024-01-18"},
		{"weekly", FrequencyWeekly, "2024-01-15", 2, "2024-01-29"},
		{"monthly", FrequencyMonthly, "2024-01-15", 1, "2024-02-15"},
		{"monthly_zero", FrequencyMonthly, "2024-01-15", 0, "2024-01-15"},
		{"quarterly", FrequencyQuarterly, "2024-01-15", 2, "2024-07-15"},
		{"semiannual", FrequencySemiannual, "2024-01-15", 1, "2024-07-15"},
		{"annual", FrequencyAnnual, "2024-02-29", 1, "2025-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.frequency.Nth(date(tt.anchor), tt.n)
			if err != nil {
				t.Fatalf("Nth вернул ошибку: %v", err)
			}
			if !got.Equal(date(tt.want)) {
				t.Errorf("Nth(%s, %d) = %s, ожидалось %s",
					tt.anchor, tt.n, got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

// Даты считаются от опорной по индексу: нормализация 31-го числа
// на коротком месяце не смещает последующие вхождения
func TestFrequencyNthNoDrift(t *testing.T) {
	anchor := date("2024-01-31")

	feb, _ := FrequencyMonthly.Nth(anchor, 1)
	if !feb.Equal(date("2024-03-02")) {
		t.Fatalf("вхождение 1 = %s, ожидалось 2024-03-02", feb.Format("2006-01-02"))
	}

	// Третье вхождение считается от 31 января, а не от нормализованного февраля
	mar, _ := FrequencyMonthly.Nth(anchor, 2)
	if !mar.Equal(date("2024-03-31")) {
		t.Fatalf("вхождение 2 = %s, ожидалось 2024-03-31", mar.Format("2006-01-02"))
	}
}

func TestFrequencyNthUnknown(t *testing.T) {
	if _, err := Frequency("hourly").Nth(date("2024-01-15"), 1); err == nil {
		t.Fatal("ожидалась ошибка для неизвестной периодичности")
	}
}

func TestParseFrequency(t *testing.T) {
	if _, err := ParseFrequency("monthly"); err != nil {
		t.Fatalf("ParseFrequency(monthly) вернул ошибку: %v", err)
	}
	if _, err := ParseFrequency("hourly"); !IsValidation(err) {
		t.Fatalf("ожидалась ошибка валидации, получено: %v", err)
	}
}

func TestParseEditScope(t *testing.T) {
	for _, valid := range []string{"this", "this-and-future", "all"} {
		if _, err := ParseEditScope(valid); err != nil {
			t.Errorf("ParseEditScope(%s) вернул ошибку: %v", valid, err)
		}
	}
	if _, err := ParseEditScope("everything"); !IsValidation(err) {
		t.Fatalf("ожидалась ошибка валидации, получено: %v", err)
	}
}

func TestTransactionSettled(t *testing.T) {
	tests := []struct {
		status    TransactionStatus
		settled   bool
		unsettled bool
	}{
		{TransactionStatusPending, false, true},
		{TransactionStatusOverdue, false, true},
		{TransactionStatusPaid, true, false},
		{TransactionStatusCancelled, true, false},
	}

	for _, tt := range tests {
		tr := Transaction{Status: tt.status}
		if tr.Settled() != tt.settled {
			t.Errorf("Settled() для %s = %v, ожидалось %v", tt.status, tr.Settled(), tt.settled)
		}
		if tr.Unsettled() != tt.unsettled {
			t.Errorf("Unsettled() для %s = %v, ожидалось %v", tt.status, tr.Unsettled(), tt.unsettled)
		}
	}
}
