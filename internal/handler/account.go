package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"finance-api/internal/model"
	"finance-api/internal/service"
)

// AccountHandler обрабатывает запросы, связанные со счетами
type AccountHandler struct {
	accountService *service.AccountService   // Сервис для работы со счетами
	projector      *service.ProjectorService // Прогноз остатков
	logger         *logrus.Logger            // Логгер
}

// NewAccountHandler создает новый AccountHandler
func NewAccountHandler(accountService *service.AccountService, projector *service.ProjectorService, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		projector:      projector,
		logger:         logger,
	}
}

// RegisterRoutes регистрирует маршруты для работы со счетами
func (h *AccountHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("", h.CreateAccount).Methods("POST")                            // Маршрут для создания счета
	router.HandleFunc("", h.GetUserAccounts).Methods("GET")                           // Маршрут для получения счетов пользователя
	router.HandleFunc("/{id}/projected-balance", h.GetProjectedBalance).Methods("GET") // Маршрут для прогнозного остатка
}

// CreateAccount обрабатывает запрос на создание нового счета
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAccountRequest
	// Декодируем входные данные
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Не удалось декодировать запрос на создание счета")
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	// Создаем счет
	account, err := h.accountService.CreateAccount(r.Context(), userUUID, req)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось создать счет")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, account)
}

// GetUserAccounts обрабатывает запрос на получение счетов пользователя
func (h *AccountHandler) GetUserAccounts(w http.ResponseWriter, r *http.Request) {
	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	// Получаем счета пользователя
	accounts, err := h.accountService.GetUserAccounts(r.Context(), userUUID)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось получить счета пользователя")
		http.Error(w, "Не удалось получить счета", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, accounts)
}

// GetProjectedBalance обрабатывает запрос прогнозного остатка счета
func (h *AccountHandler) GetProjectedBalance(w http.ResponseWriter, r *http.Request) {
	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	// Парсим идентификатор счета
	accountID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Неверный идентификатор счета", http.StatusBadRequest)
		return
	}

	// Считаем прогнозный остаток
	projection, err := h.projector.GetProjectedBalance(r.Context(), accountID, userUUID)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось рассчитать прогнозный остаток")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, projection)
}
