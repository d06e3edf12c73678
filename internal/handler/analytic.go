package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"finance-api/internal/service"
)

// AnalyticHandler обрабатывает аналитические запросы
type AnalyticHandler struct {
	analyticService *service.AnalyticService // Сервис аналитики
	logger          *logrus.Logger           // Логгер
}

// NewAnalyticHandler создает новый AnalyticHandler
func NewAnalyticHandler(analyticService *service.AnalyticService, logger *logrus.Logger) *AnalyticHandler {
	return &AnalyticHandler{analyticService: analyticService, logger: logger}
}

// RegisterRoutes регистрирует маршруты аналитики
func (h *AnalyticHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/runrate", h.GetRunRate).Methods("GET")       // Маршрут run-rate по договорам
	router.HandleFunc("/projection", h.GetProjection).Methods("GET") // Маршрут прогнозных остатков
	router.HandleFunc("/forecast", h.GetForecast).Methods("GET")     // Маршрут прогноза по дням
}

// GetRunRate обрабатывает запрос месячного эквивалента оборота по договорам
func (h *AnalyticHandler) GetRunRate(w http.ResponseWriter, r *http.Request) {
	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	runRate, err := h.analyticService.GetRunRate(r.Context(), userUUID)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось рассчитать run-rate")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, runRate)
}

// GetProjection обрабатывает запрос прогнозных остатков по всем счетам
func (h *AnalyticHandler) GetProjection(w http.ResponseWriter, r *http.Request) {
	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	projections, err := h.analyticService.GetProjectedBalances(r.Context(), userUUID)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось рассчитать прогнозные остатки")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, projections)
}

// GetForecast обрабатывает запрос прогноза суммарного остатка по дням
func (h *AnalyticHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	// Получаем userID из контекста
	userUUID, ok := userIDFromRequest(r)
	if !ok {
		http.Error(w, "Неавторизованный доступ", http.StatusUnauthorized)
		return
	}

	// Парсим период прогноза
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Неверный параметр days", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	forecast, err := h.analyticService.GetBalanceForecast(r.Context(), userUUID, days)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось рассчитать прогноз баланса")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, forecast)
}
