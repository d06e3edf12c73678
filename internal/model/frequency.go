package model

import (
	"fmt"
	"time"
)

// Frequency — закрытое перечисление периодичностей. Новая периодичность
// требует правки всех switch по этому типу
type Frequency string

const (
	FrequencyDaily      Frequency = "daily"      // ежедневно
	FrequencyWeekly     Frequency = "weekly"     // еженедельно
	FrequencyMonthly    Frequency = "monthly"    // ежемесячно
	FrequencyQuarterly  Frequency = "quarterly"  // ежеквартально
	FrequencySemiannual Frequency = "semiannual" // раз в полгода
	FrequencyAnnual     Frequency = "annual"     // ежегодно
)

// ParseFrequency разбирает строку в периодичность
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(s)
	if !f.Valid() {
		return "", NewValidationError("неизвестная периодичность: %s", s)
	}
	return f, nil
}

// Valid сообщает, известна ли периодичность
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencySemiannual, FrequencyAnnual:
		return true
	}
	return false
}

// Nth возвращает n-е вхождение от опорной даты. Дата всегда считается
// от опорной по индексу, а не шагом от предыдущей, чтобы нормализация
// конца месяца не накапливалась
func (f Frequency) Nth(anchor time.Time, n int) (time.Time, error) {
	switch f {
	case FrequencyDaily:
		return anchor.AddDate(0, 0, n), nil
	case FrequencyWeekly:
		return anchor.AddDate(0, 0, 7*n), nil
	case FrequencyMonthly:
		return anchor.AddDate(0, n, 0), nil
	case FrequencyQuarterly:
		return anchor.AddDate(0, 3*n, 0), nil
	case FrequencySemiannual:
		return anchor.AddDate(0, 6*n, 0), nil
	case FrequencyAnnual:
		return anchor.AddDate(n, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("неизвестная периодичность: %s", f)
}
