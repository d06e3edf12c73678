package db

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migrate выполняет все DDL-операции. Безопасно вызывать повторно:
// все операции идемпотентны (IF NOT EXISTS / OR REPLACE / DROP IF EXISTS).
func Migrate(database *sql.DB, logger *logrus.Logger) error {
	logger.Info("Запуск миграций базы данных")

	for _, stmt := range migrations {
		if _, err := database.Exec(stmt); err != nil {
			return fmt.Errorf("ошибка выполнения миграции: %w", err)
		}
	}

	logger.Info("Миграции успешно выполнены")
	return nil
}

var migrations = []string{
	// Пользователи (владельцы счетов и договоров)
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password VARCHAR(255) NOT NULL,
		company_name VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	// Банковские счета: balance — подтвержденный (авторитетный) остаток,
	// прогнозный остаток нигде не хранится и всегда выводится заново
	`CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		name VARCHAR(255) NOT NULL DEFAULT '',
		balance NUMERIC(18,2) NOT NULL DEFAULT 0,
		currency VARCHAR(3) NOT NULL DEFAULT 'RUB',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	// Договоры с повторяющимися платежами
	`CREATE TABLE IF NOT EXISTS contracts (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		account_id UUID NOT NULL REFERENCES accounts(id),
		title VARCHAR(255) NOT NULL,
		amount NUMERIC(18,2) NOT NULL,
		kind VARCHAR(10) NOT NULL CHECK (kind IN ('revenue', 'expense')),
		frequency VARCHAR(10) NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	// Сегменты правил повторения. Сегмент никогда не меняет свои границы дат
	// задним числом: при правке "с этого и далее" старый сегмент закрывается
	// (end_date), а новый создается со своей опорной датой
	`CREATE TABLE IF NOT EXISTS recurrence_rules (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		contract_id UUID REFERENCES contracts(id),
		type VARCHAR(10) NOT NULL CHECK (type IN ('revenue', 'expense', 'transfer')),
		amount NUMERIC(18,2) NOT NULL,
		account_from_id UUID REFERENCES accounts(id),
		account_to_id UUID REFERENCES accounts(id),
		frequency VARCHAR(10) NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE,
		anchor_date DATE NOT NULL,
		description VARCHAR(255) NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	// Транзакции (вхождения серий и разовые операции).
	// Жесткое удаление запрещено: история сохраняется через deleted_at
	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		rule_id UUID REFERENCES recurrence_rules(id),
		account_from_id UUID REFERENCES accounts(id),
		account_to_id UUID REFERENCES accounts(id),
		amount NUMERIC(18,2) NOT NULL,
		penalty NUMERIC(18,2) NOT NULL DEFAULT 0,
		type VARCHAR(10) NOT NULL CHECK (type IN ('revenue', 'expense', 'transfer')),
		status VARCHAR(10) NOT NULL CHECK (status IN ('pending', 'paid', 'overdue', 'cancelled')),
		occurrence_date DATE NOT NULL,
		description VARCHAR(255) NOT NULL DEFAULT '',
		paid_at TIMESTAMPTZ,
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	// Гарантия отсутствия дублей при повторной генерации: одна живая
	// транзакция на пару (правило, дата вхождения)
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_transactions_rule_occurrence
		ON transactions (rule_id, occurrence_date)
		WHERE deleted_at IS NULL`,

	`CREATE INDEX IF NOT EXISTS idx_transactions_rule ON transactions (rule_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions (status)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_account_from ON transactions (account_from_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_account_to ON transactions (account_to_id)`,
	`CREATE INDEX IF NOT EXISTS idx_rules_active ON recurrence_rules (is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_user ON contracts (user_id)`,

	// Канал уведомлений об изменениях: триггеры на transactions и accounts
	// публикуют событие {table, action, идентификаторы счетов} в finance_events
	`CREATE OR REPLACE FUNCTION notify_finance_event() RETURNS trigger AS $$
	DECLARE
		rec RECORD;
		payload TEXT;
	BEGIN
		IF TG_OP = 'DELETE' THEN
			rec := OLD;
		ELSE
			rec := NEW;
		END IF;

		IF TG_TABLE_NAME = 'transactions' THEN
			payload := json_build_object(
				'table', TG_TABLE_NAME,
				'action', TG_OP,
				'account_from_id', rec.account_from_id,
				'account_to_id', rec.account_to_id
			)::TEXT;
		ELSE
			payload := json_build_object(
				'table', TG_TABLE_NAME,
				'action', TG_OP,
				'account_id', rec.id
			)::TEXT;
		END IF;

		PERFORM pg_notify('finance_events', payload);
		RETURN rec;
	END;
	$$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS trg_transactions_notify ON transactions`,
	`CREATE TRIGGER trg_transactions_notify
		AFTER INSERT OR UPDATE OR DELETE ON transactions
		FOR EACH ROW EXECUTE FUNCTION notify_finance_event()`,

	`DROP TRIGGER IF EXISTS trg_accounts_notify ON accounts`,
	`CREATE TRIGGER trg_accounts_notify
		AFTER INSERT OR UPDATE OR DELETE ON accounts
		FOR EACH ROW EXECUTE FUNCTION notify_finance_event()`,
}
