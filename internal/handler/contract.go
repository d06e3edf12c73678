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

// ContractHandler обрабатывает запросы по договорам
type ContractHandler struct {
	contractService *service.ContractService // Сервис договоров
	logger          *logrus.Logger           // Логгер
}

// NewContractHandler создает новый ContractHandler
func NewContractHandler(contractService *service.ContractService, logger *logrus.Logger) *ContractHandler {
	return &ContractHandler{contractService: contractService, logger: logger}
}

// RegisterRoutes регистрирует маршруты для договоров
func (h *ContractHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("", h.CreateContract).Methods("POST")              // Маршрут для создания договора
	router.HandleFunc("", h.GetUserContracts).Methods("GET")             // Маршрут для списка договоров
	router.HandleFunc("/{id}", h.GetContract).Methods("GET")             // Маршрут для одного договора
	router.HandleFunc("/{id}/deactivate", h.Deactivate).Methods("POST")  // Маршрут для остановки договора
}

// CreateContract обрабатывает запрос на создание договора с правилом повторения
func (h *ContractHandler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req model.CreateContractRequest
	// Декодируем входные данные
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Не удалось декодировать запрос на создание договора")
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	// Создаем договор
	contract, err := h.contractService.CreateContract(r.Context(), userUUID, req)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось создать договор")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, contract)
}

// GetUserContracts обрабатывает запрос списка договоров пользователя
func (h *ContractHandler) GetUserContracts(w http.ResponseWriter, r *http.Request) {
	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	contracts, err := h.contractService.GetUserContracts(r.Context(), userUUID)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось получить договоры пользователя")
		http.Error(w, "Не удалось получить договоры", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, contracts)
}

// GetContract обрабатывает запрос одного договора
func (h *ContractHandler) GetContract(w http.ResponseWriter, r *http.Request) {
	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	// Парсим идентификатор договора
	contractID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Неверный идентификатор договора", http.StatusBadRequest)
		return
	}

	contract, err := h.contractService.GetContract(r.Context(), userUUID, contractID)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось получить договор")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, contract)
}

// Deactivate обрабатывает запрос на остановку договора
func (h *ContractHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	// Парсим идентификатор договора
	contractID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Неверный идентификатор договора", http.StatusBadRequest)
		return
	}

	if err := h.contractService.Deactivate(r.Context(), userUUID, contractID); err != nil {
		h.logger.WithError(err).Error("Не удалось остановить договор")
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
