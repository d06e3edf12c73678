package model

import (
	"errors"
	"fmt"
)

// ErrNotFound — запрошенная запись отсутствует или удалена
var ErrNotFound = errors.New("запись не найдена")

// ValidationError — некорректные входные данные; отклоняется до любой записи
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError создает ошибку валидации
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError — операция конфликтует с текущим состоянием данных
// (дубликат вхождения, правка закрытой транзакции)
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NewConflictError создает ошибку конфликта
func NewConflictError(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation сообщает, является ли ошибка ошибкой валидации
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict сообщает, является ли ошибка конфликтом состояния
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
