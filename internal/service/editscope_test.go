package service

import (
	"testing"

	"github.com/shopspring/decimal"

	"finance-api/internal/model"
)

// seriesFixture — правило с материализованными вхождениями для тестов резолвера
type seriesFixture struct {
	rule        *model.RecurrenceRule
	occurrences []model.Transaction
}

func newSeries(frequency model.Frequency, anchor string, dates ...string) *seriesFixture {
	rule := testRule(frequency, anchor, nil)

	occurrences := make([]model.Transaction, 0, len(dates))
	for _, date := range dates {
		occ := newOccurrence(rule, d(date))
		occurrences = append(occurrences, *occ)
	}

	return &seriesFixture{rule: rule, occurrences: occurrences}
}

func (f *seriesFixture) at(i int) *model.Transaction {
	return &f.occurrences[i]
}

func amountPtr(v int64) *decimal.Decimal {
	a := decimal.NewFromInt(v)
	return &a
}

func TestPlanEditThisIsolatesSiblings(t *testing.T) {
	f := newSeries(model.FrequencyMonthly, "2024-01-15",
		"2024-01-15", "2024-02-15", "2024-03-15")
	occ := f.at(1)

	plan, err := planEdit(occ, f.rule, f.occurrences, model.EditScopeThis,
		model.EditFields{Amount: amountPtr(2000)}, d("2024-06-01"))
	if err != nil {
		t.Fatalf("planEdit вернул ошибку: %v", err)
	}

	// Меняется только выбранное вхождение, правило не трогается
	if len(plan.Updates) != 1 || plan.Updates[0].ID != occ.ID {
		t.Fatalf("ожидалась одна правка вхождения %s, получено %d", occ.ID, len(plan.Updates))
	}
	if plan.UpdateRule != nil || plan.NewRule != nil || plan.TerminateRuleEnd != nil {
		t.Error("область this не должна менять сегменты правила")
	}
	if len(plan.DeletePendingIDs) != 0 || len(plan.CreateOccurrences) != 0 {
		t.Error("область this не должна перестраивать сетку дат")
	}
}

func TestPlanEditThisRejectsFrequency(t *testing.T) {
	f := newSeries(model.FrequencyMonthly, "2024-01-15", "2024-01-15")
	weekly := model.FrequencyWeekly

	_, err := planEdit(f.at(0), f.rule, f.occurrences, model.EditScopeThis,
		model.EditFields{Frequency: &weekly}, d("2024-06-01"))
	if !model.IsValidation(err) {
		t.Fatalf("ожидалась ошибка валидации, получено: %v", err)
	}
}

func TestPlanEditThisAndFutureSplitsSegment(t *testing.T) {
	f := newSeries(model.FrequencyMonthly, "2024-01-15",
		"2024-01-15", "2024-02-15", "2024-03-15", "2024-04-15", "2024-05-15")
	occ := f.at(2) // 2024-03-15

	plan, err := planEdit(occ, f.rule, f.occurrences, model.EditScopeThisAndFuture,
		model.EditFields{Amount: amountPtr(2000)}, d("2024-06-01"))
	if err != nil {
		t.Fatalf("planEdit вернул ошибку: %v", err)
	}

	// Старый сегмент закрывается датой предыдущего вхождения
	if plan.TerminateRuleEnd == nil || dateKey(*plan.TerminateRuleEnd) != "2024-02-15" {
		t.Fatalf("сегмент должен закрыться 2024-02-15, получено %v", plan.TerminateRuleEnd)
	}

	// Новый сегмент опирается на дату выбранного вхождения
	if plan.NewRule == nil {
		t.Fatal("ожидался новый сегмент")
	}
	if dateKey(plan.NewRule.AnchorDate) != "2024-03-15" {
		t.Errorf("опорная дата нового сегмента = %s, ожидалось 2024-03-15", dateKey(plan.NewRule.AnchorDate))
	}
	if !plan.NewRule.Amount.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("сумма нового сегмента = %s, ожидалось 2000", plan.NewRule.Amount)
	}
	if plan.NewRule.ID == f.rule.ID {
		t.Error("новый сегмент должен получить собственный идентификатор")
	}

	// Вхождения с даты occ перепривязываются к новому сегменту
	if plan.RepointFrom == nil || dateKey(*plan.RepointFrom) != "2024-03-15" {
		t.Fatalf("перепривязка должна начинаться с 2024-03-15, получено %v", plan.RepointFrom)
	}

	// Выбранное и оба будущих вхождения получают новую сумму
	if len(plan.Updates) != 3 {
		t.Fatalf("получено %d правок, ожидалось 3", len(plan.Updates))
	}
	if plan.Updates[0].ID != occ.ID {
		t.Error("первая правка должна касаться выбранного вхождения")
	}

	// Сетка дат не менялась
	if len(plan.DeletePendingIDs) != 0 || len(plan.CreateOccurrences) != 0 {
		t.Error("правка суммы не должна перестраивать сетку дат")
	}
}

// Если вхождений до выбранного нет, сегмент обновляется на месте:
// пустой сегмент-сирота не создается
func TestPlanEditThisAndFutureNoPriorInPlace(t *testing.T) {
	f := newSeries(model.FrequencyMonthly, "2024-01-15",
		"2024-01-15", "2024-02-15", "2024-03-15")
	occ := f.at(0)

	plan, err := planEdit(occ, f.rule, f.occurrences, model.EditScopeThisAndFuture,
		model.EditFields{Amount: amountPtr(2000)}, d("2024-06-01"))
	if err != nil {
		t.Fatalf("planEdit вернул ошибку: %v", err)
	}

	if plan.NewRule != nil || plan.TerminateRuleEnd != nil || plan.RepointFrom != nil {
		t.Fatal("без предыдущих вхождений сплит не нужен")
	}
	if plan.UpdateRule == nil {
		t.Fatal("ожидалось обновление сегмента на месте")
	}
	if plan.UpdateRule.ID != f.rule.ID {
		t.Error("обновляться должен существующий сегмент")
	}
	if !plan.UpdateRule.Amount.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("сумма сегмента = %s, ожидалось 2000", plan.UpdateRule.Amount)
	}
	if len(plan.Updates) != 3 {
		t.Fatalf("получено %d правок, ожидалось 3", len(plan.Updates))
	}
}

// Смена периодичности перестраивает сетку: будущие незакрытые вхождения
// удаляются и пересоздаются от новой опорной даты
func TestPlanEditThisAndFutureCadenceChange(t *testing.T) {
	f := newSeries(model.FrequencyMonthly, "2024-01-15",
		"2024-01-15", "2024-02-15", "2024-03-15", "2024-04-15", "2024-05-15")
	occ := f.at(2) // 2024-03-15
	weekly := model.FrequencyWeekly

	plan, err := planEdit(occ, f.rule, f.occurrences, model.EditScopeThisAndFuture,
		model.EditFields{Frequency: &weekly}, d("2024-04-01"))
	if err != nil {
		t.Fatalf("planEdit вернул ошибку: %v", err)
	}

	if plan.NewRule == nil || plan.NewRule.Frequency != model.FrequencyWeekly {
		t.Fatal("новый сегмент должен получить недельную периодичность")
	}

	// Будущие незакрытые вхождения, кроме выбранного, удаляются
	if len(plan.DeletePendingIDs) != 2 {
		t.Fatalf("получено %d удалений, ожидалось 2", len(plan.DeletePendingIDs))
	}

	// Новая сетка от 2024-03-15 до горизонта 2024-04-01: дата occ занята,
	// пересоздаются 2024-03-22 и 2024-03-29
	if len(plan.CreateOccurrences) != 2 {
		t.Fatalf("получено %d пересозданий, ожидалось 2", len(plan.CreateOccurrences))
	}
	if dateKey(plan.CreateOccurrences[0].OccurrenceDate) != "2024-03-22" ||
		dateKey(plan.CreateOccurrences[1].OccurrenceDate) != "2024-03-29" {
		t.Errorf("пересозданные даты = %s, %s",
			dateKey(plan.CreateOccurrences[0].OccurrenceDate),
			dateKey(plan.CreateOccurrences[1].OccurrenceDate))
	}
	for _, created := range plan.CreateOccurrences {
		if created.RuleID == nil || *created.RuleID != plan.NewRule.ID {
			t.Error("пересозданные вхождения должны принадлежать новому сегменту")
		}
	}
}

func TestPlanEditAllUpdatesRuleAndUnsettled(t *testing.T) {
	f := newSeries(model.FrequencyMonthly, "2024-01-15",
		"2024-01-15", "2024-02-15", "2024-03-15", "2024-04-15")
	// Первое вхождение уже оплачено, второе отменено
	f.occurrences[0].Status = model.TransactionStatusPaid
	f.occurrences[1].Status = model.TransactionStatusCancelled
	occ := f.at(2)

	plan, err := planEdit(occ, f.rule, f.occurrences, model.EditScopeAll,
		model.EditFields{Amount: amountPtr(2000)}, d("2024-06-01"))
	if err != nil {
		t.Fatalf("planEdit вернул ошибку: %v", err)
	}

	if plan.UpdateRule == nil || !plan.UpdateRule.Amount.Equal(decimal.NewFromInt(2000)) {
		t.Fatal("сегмент должен получить новую сумму")
	}

	// Закрытые вхождения не перезаписываются
	if len(plan.Updates) != 2 {
		t.Fatalf("получено %d правок, ожидалось 2", len(plan.Updates))
	}
	for _, change := range plan.Updates {
		if change.ID == f.occurrences[0].ID || change.ID == f.occurrences[1].ID {
			t.Error("закрытые вхождения не должны попадать в план правок")
		}
	}
}

func TestPlanEditAllRejectsFrequencyAndDate(t *testing.T) {
	f := newSeries(model.FrequencyMonthly, "2024-01-15", "2024-01-15", "2024-02-15")
	weekly := model.FrequencyWeekly

	_, err := planEdit(f.at(0), f.rule, f.occurrences, model.EditScopeAll,
		model.EditFields{Frequency: &weekly}, d("2024-06-01"))
	if !model.IsValidation(err) {
		t.Fatalf("ожидалась ошибка валидации для периодичности, получено: %v", err)
	}

	newDate := d("2024-01-20")
	_, err = planEdit(f.at(0), f.rule, f.occurrences, model.EditScopeAll,
		model.EditFields{OccurrenceDate: &newDate}, d("2024-06-01"))
	if !model.IsValidation(err) {
		t.Fatalf("ожидалась ошибка валидации для даты, получено: %v", err)
	}
}

func TestPlanEditSettledTargetConflict(t *testing.T) {
	f := newSeries(model.FrequencyMonthly, "2024-01-15", "2024-01-15", "2024-02-15")
	f.occurrences[0].Status = model.TransactionStatusPaid

	for _, scope := range []model.EditScope{model.EditScopeThis, model.EditScopeThisAndFuture, model.EditScopeAll} {
		_, err := planEdit(f.at(0), f.rule, f.occurrences, scope,
			model.EditFields{Amount: amountPtr(2000)}, d("2024-06-01"))
		if !model.IsConflict(err) {
			t.Errorf("область %s: ожидался конфликт для закрытого вхождения, получено: %v", scope, err)
		}
	}
}

func TestPlanEditEmptyFields(t *testing.T) {
	f := newSeries(model.FrequencyMonthly, "2024-01-15", "2024-01-15")

	_, err := planEdit(f.at(0), f.rule, f.occurrences, model.EditScopeThis,
		model.EditFields{}, d("2024-06-01"))
	if !model.IsValidation(err) {
		t.Fatalf("ожидалась ошибка валидации, получено: %v", err)
	}
}

func TestPlanEditNonPositiveAmount(t *testing.T) {
	f := newSeries(model.FrequencyMonthly, "2024-01-15", "2024-01-15")

	_, err := planEdit(f.at(0), f.rule, f.occurrences, model.EditScopeThis,
		model.EditFields{Amount: amountPtr(0)}, d("2024-06-01"))
	if !model.IsValidation(err) {
		t.Fatalf("ожидалась ошибка валидации, получено: %v", err)
	}
}

// Перенос даты выбранного вхождения перестраивает сетку от новой опорной даты
func TestPlanEditThisAndFutureDateChangeRegrids(t *testing.T) {
	f := newSeries(model.FrequencyMonthly, "2024-01-15",
		"2024-01-15", "2024-02-15", "2024-03-15", "2024-04-15")
	occ := f.at(2) // 2024-03-15
	newDate := d("2024-03-20")

	plan, err := planEdit(occ, f.rule, f.occurrences, model.EditScopeThisAndFuture,
		model.EditFields{OccurrenceDate: &newDate}, d("2024-04-25"))
	if err != nil {
		t.Fatalf("planEdit вернул ошибку: %v", err)
	}

	if plan.NewRule == nil || dateKey(plan.NewRule.AnchorDate) != "2024-03-20" {
		t.Fatal("новый сегмент должен опираться на перенесенную дату")
	}

	// Старое будущее вхождение 2024-04-15 удаляется, сетка от 2024-03-20:
	// дата occ занята, пересоздается 2024-04-20
	if len(plan.DeletePendingIDs) != 1 || plan.DeletePendingIDs[0] != f.occurrences[3].ID {
		t.Fatalf("удаляться должно вхождение 2024-04-15")
	}
	if len(plan.CreateOccurrences) != 1 || dateKey(plan.CreateOccurrences[0].OccurrenceDate) != "2024-04-20" {
		t.Fatalf("пересоздаваться должно вхождение 2024-04-20")
	}
}
