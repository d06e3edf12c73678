package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"finance-api/internal/service"
)

// InstallmentHandler управляет генерацией вхождений серий
type InstallmentHandler struct {
	scheduleService *service.ScheduleService // Генератор вхождений
	logger          *logrus.Logger           // Логгер
}

// NewInstallmentHandler создает новый InstallmentHandler
func NewInstallmentHandler(scheduleService *service.ScheduleService, logger *logrus.Logger) *InstallmentHandler {
	return &InstallmentHandler{scheduleService: scheduleService, logger: logger}
}

// RegisterRoutes регистрирует маршруты генерации
func (h *InstallmentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/generate", h.Generate).Methods("POST") // Маршрут ручного запуска генерации
}

// Generate запускает генерацию вхождений вручную. Горизонт можно передать
// параметром horizon (ГГГГ-ММ-ДД), иначе используется стандартный.
// Повторный запуск с тем же горизонтом дублей не создает
func (h *InstallmentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	horizon := h.scheduleService.DefaultHorizon(time.Now())

	if raw := r.URL.Query().Get("horizon"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "Неверный формат горизонта (ожидается ГГГГ-ММ-ДД)", http.StatusBadRequest)
			return
		}
		horizon = parsed
	}

	report, err := h.scheduleService.GenerateInstallments(r.Context(), horizon)
	if err != nil {
		h.logger.WithError(err).Error("Не удалось выполнить генерацию вхождений")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}
