package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"finance-api/internal/model"
	"finance-api/internal/service"
)

// TransactionHandler обрабатывает запросы по транзакциям и сериям
type TransactionHandler struct {
	transactionService *service.TransactionService // Платежи и разовые операции
	scheduleService    *service.ScheduleService    // Правила повторения
	editService        *service.EditService        // Правки вхождений серий
	logger             *logrus.Logger              // Логгер
}

// NewTransactionHandler создает новый TransactionHandler
func NewTransactionHandler(
	transactionService *service.TransactionService,
	scheduleService *service.ScheduleService,
	editService *service.EditService,
	logger *logrus.Logger,
) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		scheduleService:    scheduleService,
		editService:        editService,
		logger:             logger,
	}
}

// RegisterRoutes регистрирует маршруты для транзакций
func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("", h.CreateTransaction).Methods("POST")     // Маршрут для разовой транзакции
	router.HandleFunc("", h.GetTransactions).Methods("GET")        // Маршрут для списка транзакций по счету
	router.HandleFunc("/recurring", h.CreateRecurring).Methods("POST") // Маршрут для правила повторения
	router.HandleFunc("/{id}", h.UpdateTransaction).Methods("PUT") // Маршрут для правки разовой транзакции
	router.HandleFunc("/{id}/edit", h.EditOccurrence).Methods("POST") // Маршрут для правки вхождения серии
	router.HandleFunc("/{id}/pay", h.Pay).Methods("POST")          // Маршрут для проведения платежа
	router.HandleFunc("/{id}/cancel", h.Cancel).Methods("POST")    // Маршрут для отмены платежа
	router.HandleFunc("/{id}", h.Delete).Methods("DELETE")         // Маршрут для удаления транзакции
}

// editOccurrenceRequest — тело запроса правки вхождения: область действия
// и набор изменяемых полей
type editOccurrenceRequest struct {
	Scope  string           `json:"scope"`
	Fields model.EditFields `json:"fields"`
}

// CreateTransaction обрабатывает запрос на создание разовой транзакции
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTransactionRequest
	// Декодируем входные данные
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Не удалось декодировать запрос на создание транзакции")
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	transaction, err := h.transactionService.Create(r.Context(), userUUID, req)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось создать транзакцию")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, transaction)
}

// GetTransactions обрабатывает запрос списка транзакций по счету за период
func (h *TransactionHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	// Парсим параметры запроса
	accountID, err := uuid.Parse(r.URL.Query().Get("account_id"))
	if err != nil {
		http.Error(w, "Неверный идентификатор счета", http.StatusBadRequest)
		return
	}

	startDate, err := time.Parse("2006-01-02", r.URL.Query().Get("start_date"))
	if err != nil {
		http.Error(w, "Неверный формат даты начала (ожидается ГГГГ-ММ-ДД)", http.StatusBadRequest)
		return
	}
	endDate, err := time.Parse("2006-01-02", r.URL.Query().Get("end_date"))
	if err != nil {
		http.Error(w, "Неверный формат даты окончания (ожидается ГГГГ-ММ-ДД)", http.StatusBadRequest)
		return
	}

	transactions, err := h.transactionService.GetAccountTransactions(r.Context(), userUUID, accountID, startDate, endDate)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось получить транзакции")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, transactions)
}

// CreateRecurring обрабатывает запрос на создание правила повторения без договора
func (h *TransactionHandler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRecurringRequest
	// Декодируем входные данные
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Не удалось декодировать запрос на создание правила")
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	rule, err := h.scheduleService.CreateRule(r.Context(), userUUID, req)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось создать правило повторения")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, rule)
}

// UpdateTransaction обрабатывает правку разовой транзакции
func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var fields model.EditFields
	// Декодируем входные данные
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		h.logger.WithError(err).Error("Не удалось декодировать запрос на правку транзакции")
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	// Парсим идентификатор транзакции
	transactionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Неверный идентификатор транзакции", http.StatusBadRequest)
		return
	}

	transaction, err := h.transactionService.Update(r.Context(), userUUID, transactionID, fields)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось обновить транзакцию")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, transaction)
}

// EditOccurrence обрабатывает правку вхождения серии с областью действия
func (h *TransactionHandler) EditOccurrence(w http.ResponseWriter, r *http.Request) {
	var req editOccurrenceRequest
	// Декодируем входные данные
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Не удалось декодировать запрос на правку вхождения")
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	// Парсим идентификатор вхождения
	occurrenceID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Неверный идентификатор транзакции", http.StatusBadRequest)
		return
	}

	// Разбираем область правки
	scope, err := model.ParseEditScope(req.Scope)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	updated, err := h.editService.ResolveEdit(r.Context(), occurrenceID, scope, req.Fields, userUUID)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось применить правку вхождения")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"updated_ids": updated,
	})
}

// Pay обрабатывает проведение платежа
func (h *TransactionHandler) Pay(w http.ResponseWriter, r *http.Request) {
	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	// Парсим идентификатор транзакции
	transactionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Неверный идентификатор транзакции", http.StatusBadRequest)
		return
	}

	transaction, err := h.transactionService.Pay(r.Context(), userUUID, transactionID)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось провести платеж")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, transaction)
}

// Cancel обрабатывает отмену платежа
func (h *TransactionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	// Парсим идентификатор транзакции
	transactionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Неверный идентификатор транзакции", http.StatusBadRequest)
		return
	}

	if err := h.transactionService.Cancel(r.Context(), userUUID, transactionID); err != nil {
		h.logger.WithError(err).Error("Не удалось отменить платеж")
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Delete обрабатывает удаление транзакции
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	// Парсим идентификатор транзакции
	transactionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Неверный идентификатор транзакции", http.StatusBadRequest)
		return
	}

	if err := h.transactionService.Delete(r.Context(), userUUID, transactionID); err != nil {
		h.logger.WithError(err).Error("Не удалось удалить транзакцию")
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
