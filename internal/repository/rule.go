package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"finance-api/internal/model"
)

const ruleColumns = `id, user_id, contract_id, type, amount, account_from_id, account_to_id,
               frequency, start_date, end_date, anchor_date, description, is_active, created_at, updated_at`

type RuleRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewRuleRepository(db *sql.DB, logger *logrus.Logger) *RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

func (r *RuleRepository) GetDB() *sql.DB {
	return r.db
}

func scanRule(row rowScanner) (*model.RecurrenceRule, error) {
	var rule model.RecurrenceRule
	err := row.Scan(
		&rule.ID,
		&rule.UserID,
		&rule.ContractID,
		&rule.Type,
		&rule.Amount,
		&rule.AccountFromID,
		&rule.AccountToID,
		&rule.Frequency,
		&rule.StartDate,
		&rule.EndDate,
		&rule.AnchorDate,
		&rule.Description,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

const insertRuleQuery = `
        INSERT INTO recurrence_rules (id, user_id, contract_id, type, amount, account_from_id, account_to_id,
                                      frequency, start_date, end_date, anchor_date, description, is_active,
                                      created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    `

func ruleArgs(rule *model.RecurrenceRule) []interface{} {
	return []interface{}{
		rule.ID,
		rule.UserID,
		rule.ContractID,
		rule.Type,
		rule.Amount,
		rule.AccountFromID,
		rule.AccountToID,
		rule.Frequency,
		rule.StartDate,
		rule.EndDate,
		rule.AnchorDate,
		rule.Description,
		rule.IsActive,
		rule.CreatedAt,
		rule.UpdatedAt,
	}
}

func (r *RuleRepository) Create(ctx context.Context, rule *model.RecurrenceRule) error {
	_, err := r.db.ExecContext(ctx, insertRuleQuery, ruleArgs(rule)...)
	if err != nil {
		return fmt.Errorf("ошибка создания правила: %w", err)
	}
	return nil
}

// CreateTx создает сегмент правила в рамках внешней транзакции (сплит серии)
func (r *RuleRepository) CreateTx(ctx context.Context, tx *sql.Tx, rule *model.RecurrenceRule) error {
	_, err := tx.ExecContext(ctx, insertRuleQuery, ruleArgs(rule)...)
	if err != nil {
		return fmt.Errorf("ошибка создания правила: %w", err)
	}
	return nil
}

func (r *RuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RecurrenceRule, error) {
	query := `SELECT ` + ruleColumns + `
                  FROM recurrence_rules
                  WHERE id = $1`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения правила: %w", err)
	}

	return rule, nil
}

// GetActive возвращает активные правила для пакетной генерации
func (r *RuleRepository) GetActive(ctx context.Context) ([]model.RecurrenceRule, error) {
	query := `SELECT ` + ruleColumns + `
                  FROM recurrence_rules
                  WHERE is_active = TRUE
                  ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения активных правил: %w", err)
	}
	defer rows.Close()

	var rules []model.RecurrenceRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения правила: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", err)
	}

	return rules, nil
}

// SetEndDateTx закрывает сегмент указанной датой; диапазон дат сегмента
// после этого больше не меняется
func (r *RuleRepository) SetEndDateTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, endDate time.Time) error {
	query := `
        UPDATE recurrence_rules
        SET end_date = $1,
            updated_at = NOW()
        WHERE id = $2
    `

	_, err := tx.ExecContext(ctx, query, endDate, id)
	if err != nil {
		return fmt.Errorf("ошибка закрытия сегмента правила: %w", err)
	}

	return nil
}

// UpdateTx перезаписывает определяющие поля сегмента
func (r *RuleRepository) UpdateTx(ctx context.Context, tx *sql.Tx, rule *model.RecurrenceRule) error {
	query := `
        UPDATE recurrence_rules
        SET type = $1,
            amount = $2,
            account_from_id = $3,
            account_to_id = $4,
            frequency = $5,
            start_date = $6,
            end_date = $7,
            anchor_date = $8,
            description = $9,
            is_active = $10,
            updated_at = NOW()
        WHERE id = $11
    `

	_, err := tx.ExecContext(
		ctx,
		query,
		rule.Type,
		rule.Amount,
		rule.AccountFromID,
		rule.AccountToID,
		rule.Frequency,
		rule.StartDate,
		rule.EndDate,
		rule.AnchorDate,
		rule.Description,
		rule.IsActive,
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления правила: %w", err)
	}

	return nil
}

// Deactivate останавливает генерацию новых вхождений по правилу
func (r *RuleRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `
        UPDATE recurrence_rules
        SET is_active = FALSE,
            updated_at = NOW()
        WHERE id = $1
    `

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ошибка деактивации правила: %w", err)
	}

	return nil
}

// DeactivateByContract останавливает правила договора
func (r *RuleRepository) DeactivateByContract(ctx context.Context, contractID uuid.UUID) error {
	query := `
        UPDATE recurrence_rules
        SET is_active = FALSE,
            updated_at = NOW()
        WHERE contract_id = $1
    `

	_, err := r.db.ExecContext(ctx, query, contractID)
	if err != nil {
		return fmt.Errorf("ошибка деактивации правил договора: %w", err)
	}

	return nil
}
