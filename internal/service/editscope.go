package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"finance-api/internal/model"
	"finance-api/internal/repository"
)

// occurrenceChange — перезапись изменяемых полей одного вхождения
type occurrenceChange struct {
	ID     uuid.UUID
	Fields model.EditFields
}

// editPlan — точный набор мутаций для выбранной области правки.
// План считается чистой функцией и применяется одной SQL-транзакцией:
// частично примененный сплит не должен быть наблюдаем
type editPlan struct {
	TerminateRuleEnd  *time.Time            // закрыть старый сегмент этой датой
	NewRule           *model.RecurrenceRule // новый сегмент со своей опорной датой
	RepointFrom       *time.Time            // перепривязать вхождения с этой даты к NewRule
	UpdateRule        *model.RecurrenceRule // обновить сегмент на месте
	Updates           []occurrenceChange    // перезаписи полей вхождений
	DeletePendingIDs  []uuid.UUID           // незакрытые вхождения под удаление (смена сетки дат)
	CreateOccurrences []*model.Transaction  // регенерированные вхождения новой сетки
}

// valueFields отбрасывает поля, не применимые к отдельному вхождению
func valueFields(f model.EditFields, withDate bool) model.EditFields {
	out := model.EditFields{
		Amount:        f.Amount,
		Description:   f.Description,
		AccountFromID: f.AccountFromID,
		AccountToID:   f.AccountToID,
	}
	if withDate {
		out.OccurrenceDate = f.OccurrenceDate
	}
	return out
}

// applyRuleFields возвращает копию сегмента с перезаписанными полями
func applyRuleFields(rule *model.RecurrenceRule, f model.EditFields) *model.RecurrenceRule {
	merged := *rule
	if f.Amount != nil {
		merged.Amount = *f.Amount
	}
	if f.Description != nil {
		merged.Description = *f.Description
	}
	if f.AccountFromID != nil {
		merged.AccountFromID = f.AccountFromID
	}
	if f.AccountToID != nil {
		merged.AccountToID = f.AccountToID
	}
	if f.Frequency != nil {
		merged.Frequency = *f.Frequency
	}
	return &merged
}

// planEdit вычисляет план правки вхождения occ правила rule в области scope.
// siblings — все живые вхождения правила по возрастанию даты (включая occ).
// Закрытые (paid/cancelled) вхождения — неизменяемая история: план может
// менять только их привязку к сегменту, но никогда значения
func planEdit(
	occ *model.Transaction,
	rule *model.RecurrenceRule,
	siblings []model.Transaction,
	scope model.EditScope,
	fields model.EditFields,
	horizon time.Time,
) (*editPlan, error) {
	if fields.Empty() {
		return nil, model.NewValidationError("правка не содержит изменений")
	}
	if occ.Settled() {
		return nil, model.NewConflictError("закрытая транзакция не подлежит правке")
	}
	if fields.Amount != nil && !fields.Amount.IsPositive() {
		return nil, model.NewValidationError("сумма должна быть положительной")
	}
	if fields.Frequency != nil && !fields.Frequency.Valid() {
		return nil, model.NewValidationError("неизвестная периодичность: %s", *fields.Frequency)
	}

	switch scope {
	case model.EditScopeThis:
		return planEditThis(occ, fields)
	case model.EditScopeThisAndFuture:
		return planEditThisAndFuture(occ, rule, siblings, fields, horizon)
	case model.EditScopeAll:
		return planEditAll(rule, siblings, fields)
	}
	return nil, model.NewValidationError("неизвестная область правки: %s", scope)
}

// planEditThis меняет только выбранное вхождение; правило и соседние
// вхождения не читаются и не пишутся
func planEditThis(occ *model.Transaction, fields model.EditFields) (*editPlan, error) {
	if fields.Frequency != nil {
		return nil, model.NewValidationError("периодичность меняется только для серии целиком или с выбранного вхождения")
	}
	return &editPlan{
		Updates: []occurrenceChange{{ID: occ.ID, Fields: valueFields(fields, true)}},
	}, nil
}

// planEditAll обновляет определяющие поля сегмента и все его незакрытые
// вхождения. Сетка дат не пересчитывается, поэтому смена периодичности
// или даты в этой области запрещена
func planEditAll(rule *model.RecurrenceRule, siblings []model.Transaction, fields model.EditFields) (*editPlan, error) {
	if fields.Frequency != nil || fields.OccurrenceDate != nil {
		return nil, model.NewValidationError("периодичность и дата меняются только с выбранного вхождения")
	}

	plan := &editPlan{
		UpdateRule: applyRuleFields(rule, fields),
	}
	for i := range siblings {
		if !siblings[i].Unsettled() {
			continue // закрытые вхождения не перезаписываются
		}
		plan.Updates = append(plan.Updates, occurrenceChange{
			ID:     siblings[i].ID,
			Fields: valueFields(fields, false),
		})
	}
	return plan, nil
}

// planEditThisAndFuture закрывает старый сегмент на дате предыдущего
// вхождения, создает новый сегмент с опорой на дату occ и переносит в него
// occ и все последующие вхождения. Если предыдущих вхождений нет, сплит
// не нужен: сегмент обновляется на месте, пустой сегмент-сирота не создается
func planEditThisAndFuture(
	occ *model.Transaction,
	rule *model.RecurrenceRule,
	siblings []model.Transaction,
	fields model.EditFields,
	horizon time.Time,
) (*editPlan, error) {
	newAnchor := occ.OccurrenceDate
	if fields.OccurrenceDate != nil {
		newAnchor = *fields.OccurrenceDate
	}

	var prevDate *time.Time
	var future []model.Transaction
	for i := range siblings {
		s := &siblings[i]
		if s.OccurrenceDate.Before(occ.OccurrenceDate) {
			d := s.OccurrenceDate
			prevDate = &d // siblings отсортированы, остается последняя дата до occ
			continue
		}
		future = append(future, *s)
	}

	cadenceChanged := fields.Frequency != nil && *fields.Frequency != rule.Frequency
	regrid := cadenceChanged || !newAnchor.Equal(occ.OccurrenceDate)

	plan := &editPlan{}

	// Определяем сегмент, которому будут принадлежать occ и будущие вхождения
	var segment *model.RecurrenceRule
	if prevDate == nil {
		// Вхождений до occ нет: обновляем сегмент на месте
		segment = applyRuleFields(rule, fields)
		segment.AnchorDate = newAnchor
		segment.StartDate = newAnchor
		plan.UpdateRule = segment
	} else {
		segment = applyRuleFields(rule, fields)
		segment.ID = uuid.New()
		segment.AnchorDate = newAnchor
		segment.StartDate = newAnchor
		if segment.EndDate != nil && segment.EndDate.Before(newAnchor) {
			segment.EndDate = nil
		}
		now := time.Now()
		segment.CreatedAt = now
		segment.UpdatedAt = now

		plan.TerminateRuleEnd = prevDate
		plan.NewRule = segment
		repointFrom := occ.OccurrenceDate
		plan.RepointFrom = &repointFrom
	}

	// Выбранное вхождение получает полный набор правок, включая дату
	plan.Updates = append(plan.Updates, occurrenceChange{ID: occ.ID, Fields: valueFields(fields, true)})

	if regrid {
		// Смена сетки дат: незакрытые будущие вхождения удаляются
		// и пересоздаются от новой опорной даты (delete-and-regenerate).
		// Закрытые сохраняют даты, переносится только их привязка
		kept := map[string]bool{dateKey(newAnchor): true}
		for i := range future {
			f := &future[i]
			if f.ID == occ.ID {
				continue
			}
			if f.Settled() {
				kept[dateKey(f.OccurrenceDate)] = true
				continue
			}
			plan.DeletePendingIDs = append(plan.DeletePendingIDs, f.ID)
		}

		dates, err := occurrenceDates(segment, horizon)
		if err != nil {
			return nil, err
		}
		for _, d := range dates {
			if kept[dateKey(d)] {
				continue
			}
			plan.CreateOccurrences = append(plan.CreateOccurrences, newOccurrence(segment, d))
		}
	} else {
		// Сетка не меняется: будущие незакрытые вхождения получают новые значения
		for i := range future {
			f := &future[i]
			if f.ID == occ.ID || !f.Unsettled() {
				continue
			}
			plan.Updates = append(plan.Updates, occurrenceChange{ID: f.ID, Fields: valueFields(fields, false)})
		}
	}

	return plan, nil
}

// EditService применяет правки вхождений серии с выбранной областью действия
type EditService struct {
	txRepo    *repository.TransactionRepository
	ruleRepo  *repository.RuleRepository
	schedule  *ScheduleService
	projector *ProjectorService
	logger    *logrus.Logger
}

func NewEditService(
	txRepo *repository.TransactionRepository,
	ruleRepo *repository.RuleRepository,
	schedule *ScheduleService,
	projector *ProjectorService,
	logger *logrus.Logger,
) *EditService {
	return &EditService{
		txRepo:    txRepo,
		ruleRepo:  ruleRepo,
		schedule:  schedule,
		projector: projector,
		logger:    logger,
	}
}

// ResolveEdit вычисляет и атомарно применяет правку вхождения occurrenceID
// в области scope. Возвращает идентификаторы затронутых транзакций
func (s *EditService) ResolveEdit(
	ctx context.Context,
	occurrenceID uuid.UUID,
	scope model.EditScope,
	fields model.EditFields,
	userID uuid.UUID,
) ([]uuid.UUID, error) {
	s.logger.WithFields(logrus.Fields{
		"occurrence_id": occurrenceID,
		"scope":         scope,
	}).Info("Правка вхождения серии")

	occ, err := s.txRepo.GetByID(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}

	// Разовая транзакция редактируется напрямую, без резолвера
	if occ.RuleID == nil {
		return nil, model.NewValidationError("транзакция не входит в серию, отредактируйте ее напрямую")
	}

	rule, err := s.ruleRepo.GetByID(ctx, *occ.RuleID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения правила: %w", err)
	}
	if rule.UserID != userID {
		s.logger.Warnf("Попытка правки чужой серии: пользователь %s, владелец %s", userID, rule.UserID)
		return nil, model.NewValidationError("серия не принадлежит пользователю")
	}

	siblings, err := s.txRepo.GetByRule(ctx, rule.ID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения вхождений правила: %w", err)
	}

	plan, err := planEdit(occ, rule, siblings, scope, fields, s.schedule.DefaultHorizon(time.Now()))
	if err != nil {
		return nil, err
	}

	updated, err := s.applyPlan(ctx, rule, plan)
	if err != nil {
		return nil, err
	}

	// Синхронная инвалидация прогнозов: чтение после подтвержденной записи
	// обязано видеть ее эффект
	s.projector.Invalidate(s.affectedAccounts(occ, rule, plan, fields)...)

	s.logger.WithFields(logrus.Fields{
		"occurrence_id": occurrenceID,
		"scope":         scope,
		"updated":       len(updated),
	}).Info("Правка вхождения применена")

	return updated, nil
}

// applyPlan применяет план одной SQL-транзакцией
func (s *EditService) applyPlan(ctx context.Context, rule *model.RecurrenceRule, plan *editPlan) ([]uuid.UUID, error) {
	db := s.txRepo.GetDB()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка начала транзакции")
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	if plan.TerminateRuleEnd != nil {
		if err := s.ruleRepo.SetEndDateTx(ctx, tx, rule.ID, *plan.TerminateRuleEnd); err != nil {
			return nil, err
		}
	}
	if plan.NewRule != nil {
		if err := s.ruleRepo.CreateTx(ctx, tx, plan.NewRule); err != nil {
			return nil, err
		}
	}
	if plan.UpdateRule != nil {
		if err := s.ruleRepo.UpdateTx(ctx, tx, plan.UpdateRule); err != nil {
			return nil, err
		}
	}
	if plan.RepointFrom != nil && plan.NewRule != nil {
		if err := s.txRepo.RepointRuleTx(ctx, tx, rule.ID, plan.NewRule.ID, *plan.RepointFrom); err != nil {
			return nil, err
		}
	}

	var updated []uuid.UUID
	for _, id := range plan.DeletePendingIDs {
		if err := s.txRepo.SoftDeleteTx(ctx, tx, id); err != nil {
			return nil, err
		}
	}
	for _, change := range plan.Updates {
		if err := s.txRepo.ApplyEditTx(ctx, tx, change.ID, change.Fields); err != nil {
			return nil, err
		}
		updated = append(updated, change.ID)
	}
	for _, occ := range plan.CreateOccurrences {
		if err := s.txRepo.CreateOccurrenceTx(ctx, tx, occ); err != nil {
			return nil, err
		}
		updated = append(updated, occ.ID)
	}

	if err := tx.Commit(); err != nil {
		s.logger.WithError(err).Error("Ошибка подтверждения транзакции")
		return nil, fmt.Errorf("ошибка подтверждения операции: %w", err)
	}

	return updated, nil
}

func (s *EditService) affectedAccounts(occ *model.Transaction, rule *model.RecurrenceRule, plan *editPlan, fields model.EditFields) []uuid.UUID {
	var ids []uuid.UUID
	ids = append(ids, ruleAccounts(rule)...)
	if plan.NewRule != nil {
		ids = append(ids, ruleAccounts(plan.NewRule)...)
	}
	if plan.UpdateRule != nil {
		ids = append(ids, ruleAccounts(plan.UpdateRule)...)
	}
	if occ.AccountFromID != nil {
		ids = append(ids, *occ.AccountFromID)
	}
	if occ.AccountToID != nil {
		ids = append(ids, *occ.AccountToID)
	}
	if fields.AccountFromID != nil {
		ids = append(ids, *fields.AccountFromID)
	}
	if fields.AccountToID != nil {
		ids = append(ids, *fields.AccountToID)
	}
	return ids
}
