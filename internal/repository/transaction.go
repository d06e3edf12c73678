package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"finance-api/internal/model"
)

const transactionColumns = `id, rule_id, account_from_id, account_to_id, amount, penalty,
               type, status, occurrence_date, description, paid_at, deleted_at, created_at, updated_at`

type TransactionRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewTransactionRepository(db *sql.DB, logger *logrus.Logger) *TransactionRepository {
	return &TransactionRepository{db: db, logger: logger}
}

func (r *TransactionRepository) GetDB() *sql.DB {
	return r.db
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(
		&t.ID,
		&t.RuleID,
		&t.AccountFromID,
		&t.AccountToID,
		&t.Amount,
		&t.Penalty,
		&t.Type,
		&t.Status,
		&t.OccurrenceDate,
		&t.Description,
		&t.PaidAt,
		&t.DeletedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create вставляет разовую транзакцию
func (r *TransactionRepository) Create(ctx context.Context, t *model.Transaction) error {
	r.logger.WithFields(logrus.Fields{
		"transaction_id": t.ID,
		"amount":         t.Amount,
		"type":           t.Type,
		"date":           t.OccurrenceDate.Format("2006-01-02"),
	}).Info("Создание новой транзакции")

	query := `
        INSERT INTO transactions (id, rule_id, account_from_id, account_to_id, amount, penalty,
                                  type, status, occurrence_date, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `

	_, err := r.db.ExecContext(
		ctx,
		query,
		t.ID,
		t.RuleID,
		t.AccountFromID,
		t.AccountToID,
		t.Amount,
		t.Penalty,
		t.Type,
		t.Status,
		t.OccurrenceDate,
		t.Description,
		t.CreatedAt,
		t.UpdatedAt,
	)

	if err != nil {
		r.logger.WithError(err).Error("Ошибка при создании транзакции")
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// CreateOccurrence вставляет вхождение серии. Повторная вставка той же пары
// (правило, дата) молча пропускается за счет частичного уникального индекса,
// поэтому генерацию безопасно перезапускать после сбоя
func (r *TransactionRepository) CreateOccurrence(ctx context.Context, t *model.Transaction) (bool, error) {
	query := `
        INSERT INTO transactions (id, rule_id, account_from_id, account_to_id, amount, penalty,
                                  type, status, occurrence_date, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (rule_id, occurrence_date) WHERE deleted_at IS NULL DO NOTHING
    `

	result, err := r.db.ExecContext(
		ctx,
		query,
		t.ID,
		t.RuleID,
		t.AccountFromID,
		t.AccountToID,
		t.Amount,
		t.Penalty,
		t.Type,
		t.Status,
		t.OccurrenceDate,
		t.Description,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create occurrence: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// CreateOccurrenceTx — то же, но в рамках внешней транзакции (регенерация при сплите)
func (r *TransactionRepository) CreateOccurrenceTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	query := `
        INSERT INTO transactions (id, rule_id, account_from_id, account_to_id, amount, penalty,
                                  type, status, occurrence_date, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `

	_, err := tx.ExecContext(
		ctx,
		query,
		t.ID,
		t.RuleID,
		t.AccountFromID,
		t.AccountToID,
		t.Amount,
		t.Penalty,
		t.Type,
		t.Status,
		t.OccurrenceDate,
		t.Description,
		t.CreatedAt,
		t.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code.Name() == "unique_violation" {
				return model.NewConflictError("вхождение на эту дату уже существует")
			}
		}
		return fmt.Errorf("failed to create occurrence: %w", err)
	}

	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
                  FROM transactions
                  WHERE id = $1 AND deleted_at IS NULL`

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения транзакции: %w", err)
	}

	return t, nil
}

func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
                  FROM transactions
                  WHERE id = $1 AND deleted_at IS NULL
                  FOR UPDATE`

	t, err := scanTransaction(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения транзакции: %w", err)
	}

	return t, nil
}

// GetRuleOccurrenceDates возвращает множество уже материализованных дат правила.
// Отмененные вхождения учитываются (их даты заняты), удаленные — нет
func (r *TransactionRepository) GetRuleOccurrenceDates(ctx context.Context, ruleID uuid.UUID) (map[string]bool, error) {
	query := `SELECT occurrence_date
                  FROM transactions
                  WHERE rule_id = $1 AND deleted_at IS NULL`

	rows, err := r.db.QueryContext(ctx, query, ruleID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения дат вхождений: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]bool)
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("ошибка чтения даты вхождения: %w", err)
		}
		dates[d.Format("2006-01-02")] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", err)
	}

	return dates, nil
}

// GetByRule возвращает все живые вхождения правила по возрастанию даты
func (r *TransactionRepository) GetByRule(ctx context.Context, ruleID uuid.UUID) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
                  FROM transactions
                  WHERE rule_id = $1 AND deleted_at IS NULL
                  ORDER BY occurrence_date`

	return r.queryTransactions(ctx, query, ruleID)
}

// GetUnsettledByAccount возвращает ожидающие и просроченные транзакции,
// затрагивающие счет с любой стороны
func (r *TransactionRepository) GetUnsettledByAccount(ctx context.Context, accountID uuid.UUID) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
                  FROM transactions
                  WHERE (account_from_id = $1 OR account_to_id = $1)
                    AND status IN ('pending', 'overdue')
                    AND deleted_at IS NULL
                  ORDER BY occurrence_date`

	return r.queryTransactions(ctx, query, accountID)
}

// GetPendingBefore возвращает ожидающие транзакции с датой раньше указанной
func (r *TransactionRepository) GetPendingBefore(ctx context.Context, before time.Time) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
                  FROM transactions
                  WHERE status = 'pending' AND occurrence_date < $1 AND deleted_at IS NULL
                  ORDER BY occurrence_date`

	return r.queryTransactions(ctx, query, before)
}

// GetByAccountAndPeriod возвращает транзакции по счету за период
func (r *TransactionRepository) GetByAccountAndPeriod(
	ctx context.Context,
	accountID uuid.UUID,
	startDate, endDate time.Time,
) ([]model.Transaction, error) {
	// Добавляем 1 день к endDate, чтобы включить весь последний день периода
	endDate = endDate.Add(24 * time.Hour)

	query := `SELECT ` + transactionColumns + `
                  FROM transactions
                  WHERE (account_from_id = $1 OR account_to_id = $1)
                    AND occurrence_date >= $2 AND occurrence_date < $3
                    AND deleted_at IS NULL
                  ORDER BY occurrence_date DESC`

	return r.queryTransactions(ctx, query, accountID, startDate, endDate)
}

func (r *TransactionRepository) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Ошибка запроса транзакций")
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			r.logger.WithError(err).Error("Ошибка чтения строки транзакции")
			return nil, fmt.Errorf("ошибка чтения транзакции: %w", err)
		}
		transactions = append(transactions, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обработки результатов: %w", err)
	}

	return transactions, nil
}

// RepointRuleTx перепривязывает вхождения с датой >= fromDate к новому сегменту.
// Меняется только привязка: значения закрытых транзакций не трогаются
func (r *TransactionRepository) RepointRuleTx(ctx context.Context, tx *sql.Tx, oldRuleID, newRuleID uuid.UUID, fromDate time.Time) error {
	query := `
        UPDATE transactions
        SET rule_id = $1,
            updated_at = NOW()
        WHERE rule_id = $2 AND occurrence_date >= $3 AND deleted_at IS NULL
    `

	_, err := tx.ExecContext(ctx, query, newRuleID, oldRuleID, fromDate)
	if err != nil {
		return fmt.Errorf("ошибка перепривязки вхождений: %w", err)
	}

	return nil
}

// ApplyEditTx перезаписывает изменяемые поля вхождения; nil-поля остаются прежними
func (r *TransactionRepository) ApplyEditTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, fields model.EditFields) error {
	query := `
        UPDATE transactions
        SET amount = COALESCE($1, amount),
            occurrence_date = COALESCE($2, occurrence_date),
            description = COALESCE($3, description),
            account_from_id = COALESCE($4, account_from_id),
            account_to_id = COALESCE($5, account_to_id),
            updated_at = NOW()
        WHERE id = $6 AND deleted_at IS NULL
    `

	result, err := tx.ExecContext(
		ctx,
		query,
		fields.Amount,
		fields.OccurrenceDate,
		fields.Description,
		fields.AccountFromID,
		fields.AccountToID,
		id,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code.Name() == "unique_violation" {
				return model.NewConflictError("вхождение на эту дату уже существует")
			}
		}
		return fmt.Errorf("ошибка применения правки: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrNotFound
	}

	return nil
}

// SoftDeleteTx помечает транзакцию удаленной; строка сохраняется для аудита
func (r *TransactionRepository) SoftDeleteTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	query := `
        UPDATE transactions
        SET deleted_at = NOW(),
            updated_at = NOW()
        WHERE id = $1 AND deleted_at IS NULL
    `

	_, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления транзакции: %w", err)
	}

	return nil
}

// SoftDelete — как SoftDeleteTx, но вне внешней транзакции
func (r *TransactionRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
        UPDATE transactions
        SET deleted_at = NOW(),
            updated_at = NOW()
        WHERE id = $1 AND deleted_at IS NULL
    `

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления транзакции: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrNotFound
	}

	return nil
}

// MarkPaidTx переводит транзакцию в статус paid в рамках транзакции расчета
func (r *TransactionRepository) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, paidAt time.Time) error {
	query := `
        UPDATE transactions
        SET status = 'paid',
            paid_at = $1,
            updated_at = NOW()
        WHERE id = $2 AND deleted_at IS NULL
    `

	_, err := tx.ExecContext(ctx, query, paidAt, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса транзакции: %w", err)
	}

	return nil
}

// UpdateStatus меняет статус транзакции
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TransactionStatus) error {
	query := `
        UPDATE transactions
        SET status = $1,
            updated_at = NOW()
        WHERE id = $2 AND deleted_at IS NULL
    `

	_, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса транзакции: %w", err)
	}

	return nil
}

// SetOverdue переводит транзакцию в просроченные и фиксирует начисленную пеню
func (r *TransactionRepository) SetOverdue(ctx context.Context, id uuid.UUID, penalty decimal.Decimal) error {
	query := `
        UPDATE transactions
        SET status = 'overdue',
            penalty = $1,
            updated_at = NOW()
        WHERE id = $2 AND status = 'pending' AND deleted_at IS NULL
    `

	_, err := r.db.ExecContext(ctx, query, penalty, id)
	if err != nil {
		return fmt.Errorf("ошибка перевода транзакции в просроченные: %w", err)
	}

	return nil
}
