package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"finance-api/internal/model"
)

// userIDFromRequest извлекает идентификатор пользователя, положенный
// в контекст middleware аутентификации
func userIDFromRequest(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok {
		return uuid.Nil, false
	}
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, false
	}
	return userUUID, true
}

// respondJSON сериализует ответ в JSON с указанным статусом
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// writeServiceError транслирует ошибки сервисного слоя в HTTP-статусы:
// валидация — 400, конфликт состояния — 409, отсутствие — 404
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case model.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case model.IsConflict(err):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, "Запись не найдена", http.StatusNotFound)
	default:
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
	}
}
