package service

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finance-api/internal/model"
)

func d(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func testRule(frequency model.Frequency, anchor string, end *time.Time) *model.RecurrenceRule {
	to := uuid.New()
	return &model.RecurrenceRule{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Type:        model.TransactionTypeRevenue,
		Amount:      decimal.NewFromInt(1000),
		AccountToID: &to,
		Frequency:   frequency,
		StartDate:   d(anchor),
		AnchorDate:  d(anchor),
		EndDate:     end,
		IsActive:    true,
	}
}

func TestOccurrenceDatesMonthly(t *testing.T) {
	rule := testRule(model.FrequencyMonthly, "2024-01-15", nil)

	dates, err := occurrenceDates(rule, d("2024-04-01"))
	if err != nil {
		t.Fatalf("occurrenceDates вернул ошибку: %v", err)
	}

	want := []string{"2024-01-15", "2024-02-15", "2024-03-15"}
	if len(dates) != len(want) {
		t.Fatalf("получено %d дат, ожидалось %d", len(dates), len(want))
	}
	for i, w := range want {
		if dateKey(dates[i]) != w {
			t.Errorf("дата %d = %s, ожидалось %s", i, dateKey(dates[i]), w)
		}
	}
}

// Горизонт включительный: вхождение точно на горизонте материализуется
func TestOccurrenceDatesHorizonInclusive(t *testing.T) {
	rule := testRule(model.FrequencyMonthly, "2024-01-15", nil)

	dates, err := occurrenceDates(rule, d("2024-03-15"))
	if err != nil {
		t.Fatalf("occurrenceDates вернул ошибку: %v", err)
	}
	if len(dates) != 3 {
		t.Fatalf("получено %d дат, ожидалось 3", len(dates))
	}
	if dateKey(dates[2]) != "2024-03-15" {
		t.Errorf("последняя дата = %s, ожидалось 2024-03-15", dateKey(dates[2]))
	}
}

func TestOccurrenceDatesEndDate(t *testing.T) {
	end := d("2024-02-20")
	rule := testRule(model.FrequencyMonthly, "2024-01-15", &end)

	dates, err := occurrenceDates(rule, d("2024-12-31"))
	if err != nil {
		t.Fatalf("occurrenceDates вернул ошибку: %v", err)
	}
	// Дата окончания сегмента обрезает последовательность раньше горизонта
	if len(dates) != 2 {
		t.Fatalf("получено %d дат, ожидалось 2", len(dates))
	}
	if dateKey(dates[1]) != "2024-02-15" {
		t.Errorf("последняя дата = %s, ожидалось 2024-02-15", dateKey(dates[1]))
	}
}

func TestOccurrenceDatesAnchorAfterHorizon(t *testing.T) {
	rule := testRule(model.FrequencyMonthly, "2024-06-01", nil)

	dates, err := occurrenceDates(rule, d("2024-04-01"))
	if err != nil {
		t.Fatalf("occurrenceDates вернул ошибку: %v", err)
	}
	if len(dates) != 0 {
		t.Fatalf("получено %d дат, ожидалось 0", len(dates))
	}
}

// Последовательность, упирающаяся в лимит вхождений до горизонта, —
// ошибка, а не молчаливое усечение: иначе в сетке дат осталась бы дыра
func TestOccurrenceDatesLimitBeforeHorizon(t *testing.T) {
	// Ежедневное правило с опорной датой за несколько лет до горизонта
	rule := testRule(model.FrequencyDaily, "2021-01-01", nil)

	dates, err := occurrenceDates(rule, d("2024-06-01"))
	if err == nil {
		t.Fatalf("ожидалась ошибка превышения лимита, получено %d дат без ошибки", len(dates))
	}
}

// Лимит не мешает последовательностям, завершающимся до него
func TestOccurrenceDatesDailyWithinLimit(t *testing.T) {
	rule := testRule(model.FrequencyDaily, "2024-01-01", nil)

	dates, err := occurrenceDates(rule, d("2024-02-01"))
	if err != nil {
		t.Fatalf("occurrenceDates вернул ошибку: %v", err)
	}
	if len(dates) != 32 {
		t.Fatalf("получено %d дат, ожидалось 32", len(dates))
	}
}

func TestOccurrenceDatesUnknownFrequency(t *testing.T) {
	rule := testRule(model.Frequency("hourly"), "2024-01-15", nil)

	if _, err := occurrenceDates(rule, d("2024-04-01")); !model.IsValidation(err) {
		t.Fatalf("ожидалась ошибка валидации, получено: %v", err)
	}
}

// Повторная генерация с полностью занятой сеткой не создает ничего нового
func TestMissingDatesIdempotent(t *testing.T) {
	rule := testRule(model.FrequencyWeekly, "2024-01-01", nil)

	dates, err := occurrenceDates(rule, d("2024-02-01"))
	if err != nil {
		t.Fatalf("occurrenceDates вернул ошибку: %v", err)
	}

	existing := make(map[string]bool)
	for _, date := range dates {
		existing[dateKey(date)] = true
	}

	if missing := missingDates(dates, existing); len(missing) != 0 {
		t.Fatalf("получено %d недостающих дат, ожидалось 0", len(missing))
	}
}

func TestMissingDatesPartial(t *testing.T) {
	rule := testRule(model.FrequencyMonthly, "2024-01-15", nil)

	dates, _ := occurrenceDates(rule, d("2024-04-01"))
	existing := map[string]bool{"2024-02-15": true}

	missing := missingDates(dates, existing)
	if len(missing) != 2 {
		t.Fatalf("получено %d недостающих дат, ожидалось 2", len(missing))
	}
	if dateKey(missing[0]) != "2024-01-15" || dateKey(missing[1]) != "2024-03-15" {
		t.Errorf("недостающие даты = %s, %s", dateKey(missing[0]), dateKey(missing[1]))
	}
}

func TestNewOccurrence(t *testing.T) {
	rule := testRule(model.FrequencyMonthly, "2024-01-15", nil)

	occ := newOccurrence(rule, d("2024-02-15"))
	if occ.RuleID == nil || *occ.RuleID != rule.ID {
		t.Fatal("вхождение не привязано к правилу")
	}
	if occ.Status != model.TransactionStatusPending {
		t.Errorf("статус = %s, ожидалось pending", occ.Status)
	}
	if !occ.Amount.Equal(rule.Amount) {
		t.Errorf("сумма = %s, ожидалось %s", occ.Amount, rule.Amount)
	}
	if occ.AccountToID != rule.AccountToID {
		t.Error("счет зачисления не унаследован от правила")
	}
}

func TestRecordRuleResult(t *testing.T) {
	report := &model.GenerationReport{}

	recordRuleResult(report, uuid.New(), 3, nil)
	if report.RulesProcessed != 1 || report.OccurrencesCreated != 3 || len(report.Errors) != 0 {
		t.Fatalf("отчет после успешного правила: %+v", report)
	}

	// Вхождения, созданные до ошибки правила, попадают в счетчик отчета
	failed := uuid.New()
	recordRuleResult(report, failed, 2, errors.New("обрыв соединения"))
	if report.OccurrencesCreated != 5 {
		t.Errorf("создано вхождений = %d, ожидалось 5", report.OccurrencesCreated)
	}
	if report.RulesProcessed != 1 {
		t.Errorf("обработано правил = %d, ожидалось 1", report.RulesProcessed)
	}
	if len(report.Errors) != 1 || report.Errors[0].RuleID != failed {
		t.Fatalf("ошибки отчета: %+v", report.Errors)
	}
}

func TestDefaultHorizon(t *testing.T) {
	s := &ScheduleService{horizonDays: 30}

	// 15 января: конец месяца 31 января плюс 30 дней
	horizon := s.DefaultHorizon(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
	if dateKey(horizon) != "2024-03-01" {
		t.Errorf("горизонт = %s, ожидалось 2024-03-01", dateKey(horizon))
	}
}
