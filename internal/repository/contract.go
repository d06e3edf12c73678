package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"finance-api/internal/model"
)

const contractColumns = `id, user_id, account_id, title, amount, kind, frequency,
               start_date, end_date, is_active, created_at, updated_at`

type ContractRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewContractRepository(db *sql.DB, logger *logrus.Logger) *ContractRepository {
	return &ContractRepository{db: db, logger: logger}
}

func (r *ContractRepository) GetDB() *sql.DB {
	return r.db
}

func scanContract(row rowScanner) (*model.Contract, error) {
	var c model.Contract
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.AccountID,
		&c.Title,
		&c.Amount,
		&c.Kind,
		&c.Frequency,
		&c.StartDate,
		&c.EndDate,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateTx создает договор в рамках внешней транзакции (вместе с правилом)
func (r *ContractRepository) CreateTx(ctx context.Context, tx *sql.Tx, contract *model.Contract) error {
	query := `
        INSERT INTO contracts (id, user_id, account_id, title, amount, kind, frequency,
                               start_date, end_date, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `

	_, err := tx.ExecContext(
		ctx,
		query,
		contract.ID,
		contract.UserID,
		contract.AccountID,
		contract.Title,
		contract.Amount,
		contract.Kind,
		contract.Frequency,
		contract.StartDate,
		contract.EndDate,
		contract.IsActive,
		contract.CreatedAt,
		contract.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code.Name() == "foreign_key_violation" {
				return model.ErrNotFound
			}
		}
		return fmt.Errorf("ошибка создания договора: %w", err)
	}

	return nil
}

func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	query := `SELECT ` + contractColumns + `
                  FROM contracts
                  WHERE id = $1`

	contract, err := scanContract(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения договора: %w", err)
	}

	return contract, nil
}

func (r *ContractRepository) GetUserContracts(ctx context.Context, userID uuid.UUID) ([]model.Contract, error) {
	query := `SELECT ` + contractColumns + `
                  FROM contracts
                  WHERE user_id = $1
                  ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения договоров пользователя: %w", err)
	}
	defer rows.Close()

	var contracts []model.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения договора: %w", err)
		}
		contracts = append(contracts, *contract)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", err)
	}

	return contracts, nil
}

// SetActive переключает активность договора
func (r *ContractRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `
        UPDATE contracts
        SET is_active = $1,
            updated_at = NOW()
        WHERE id = $2
    `

	result, err := r.db.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления договора: %w", err)
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
