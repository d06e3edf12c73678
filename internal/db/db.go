package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Open открывает соединение с PostgreSQL и проверяет его
func Open(connString string, logger *logrus.Logger) (*sql.DB, error) {
	database, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	// Проверка соединения с БД
	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("ошибка проверки соединения с БД: %w", err)
	}

	logger.Info("Соединение с базой данных установлено")
	return database, nil
}
