package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"finance-api/internal/config"
	"finance-api/internal/db"
	"finance-api/internal/handler"
	"finance-api/internal/repository"
	"finance-api/internal/service"
)

func main() {
	logger := logrus.New()
	// Уровень логирования (Debug для разработки, Info для продакшена)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Загрузка конфигурации приложения
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// Подключение к PostgreSQL
	database, err := db.Open(cfg.DBConnString(), logger)
	if err != nil {
		logger.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer database.Close()

	// Применение миграций схемы
	if err := db.Migrate(database, logger); err != nil {
		logger.Fatalf("Ошибка применения миграций: %v", err)
	}

	// Инициализация репозиториев
	logger.Info("Инициализация репозиториев...")
	userRepo := repository.NewUserRepository(database, logger)
	accountRepo := repository.NewAccountRepository(database, logger)
	transactionRepo := repository.NewTransactionRepository(database, logger)
	ruleRepo := repository.NewRuleRepository(database, logger)
	contractRepo := repository.NewContractRepository(database, logger)
	emailSender := service.NewEmailSender(logger)

	// Инициализация сервисов
	logger.Info("Инициализация сервисов...")
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenExpiry, logger)
	accountService := service.NewAccountService(accountRepo, logger)
	projectorService := service.NewProjectorService(accountRepo, transactionRepo, logger)
	scheduleService := service.NewScheduleService(
		ruleRepo,
		transactionRepo,
		accountRepo,
		projectorService,
		logger,
		cfg.HorizonDays,
	)
	editService := service.NewEditService(
		transactionRepo,
		ruleRepo,
		scheduleService,
		projectorService,
		logger,
	)
	cbrClient := service.NewCBRClient(logger)
	transactionService := service.NewTransactionService(
		transactionRepo,
		accountRepo,
		userRepo,
		projectorService,
		cbrClient,
		emailSender,
		logger,
		cfg.PenaltyRate,
	)
	contractService := service.NewContractService(
		contractRepo,
		ruleRepo,
		accountRepo,
		scheduleService,
		logger,
	)
	analyticService := service.NewAnalyticService(
		contractRepo,
		accountRepo,
		transactionRepo,
		projectorService,
		logger,
	)

	// Слушатель изменений: уведомления триггеров БД инвалидируют кэш прогнозов
	listenerCtx, stopListener := context.WithCancel(context.Background())
	defer stopListener()

	changeListener := service.NewChangeListener(cfg.DBConnString(), projectorService, logger)
	if err := changeListener.Start(listenerCtx); err != nil {
		logger.Fatalf("Ошибка запуска слушателя изменений: %v", err)
	}
	defer changeListener.Close()

	// Инициализация HTTP обработчиков
	logger.Info("Инициализация обработчиков API...")
	authHandler := handler.NewAuthHandler(authService, logger)
	accountHandler := handler.NewAccountHandler(accountService, projectorService, logger)
	contractHandler := handler.NewContractHandler(contractService, logger)
	transactionHandler := handler.NewTransactionHandler(transactionService, scheduleService, editService, logger)
	installmentHandler := handler.NewInstallmentHandler(scheduleService, logger)
	analyticHandler := handler.NewAnalyticHandler(analyticService, logger)

	// Настройка маршрутизатора
	router := mux.NewRouter()

	// 1. Публичные маршруты для аутентификации
	publicRouter := router.PathPrefix("/auth").Subrouter()
	authHandler.RegisterRoutes(publicRouter) // Регистрация /signup и /signin

	// 2. Защищенные API маршруты (требуется JWT токен)
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(handler.AuthMiddleware(authService, logger))

	// Маршруты для работы со счетами
	accountRouter := apiRouter.PathPrefix("/accounts").Subrouter()
	accountHandler.RegisterRoutes(accountRouter)

	// Маршруты для работы с договорами
	contractRouter := apiRouter.PathPrefix("/contracts").Subrouter()
	contractHandler.RegisterRoutes(contractRouter)

	// Маршруты для работы с транзакциями и сериями
	transactionRouter := apiRouter.PathPrefix("/transactions").Subrouter()
	transactionHandler.RegisterRoutes(transactionRouter)

	// Маршруты генерации вхождений
	installmentRouter := apiRouter.PathPrefix("/installments").Subrouter()
	installmentHandler.RegisterRoutes(installmentRouter)

	analyticRouter := apiRouter.PathPrefix("/analytics").Subrouter()
	analyticHandler.RegisterRoutes(analyticRouter)

	// Настройка планировщика: генерация вхождений и обработка просрочек
	logger.Info("Настройка планировщика...")
	c := cron.New()
	_, err = c.AddFunc("0 6 * * *", func() {
		logger.Info("Запуск плановой генерации вхождений серий")
		horizon := scheduleService.DefaultHorizon(time.Now())
		if _, err := scheduleService.GenerateInstallments(context.Background(), horizon); err != nil {
			logger.WithError(err).Error("Ошибка плановой генерации вхождений")
		}
	})
	if err != nil {
		logger.Fatalf("Ошибка настройки планировщика: %v", err)
	}
	_, err = c.AddFunc("0 7 * * *", func() {
		logger.Info("Запуск обработки просроченных платежей")
		if err := transactionService.ProcessOverdue(context.Background()); err != nil {
			logger.WithError(err).Error("Ошибка обработки просроченных платежей")
		}
	})
	if err != nil {
		logger.Fatalf("Ошибка настройки планировщика: %v", err)
	}
	c.Start()

	// Настройка и запуск HTTP сервера
	server := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	go func() {
		logger.Infof("Запуск сервера на %s", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Ошибка сервера: %v", err)
		}
	}()

	// Ожидание сигналов для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Завершение работы сервера...")
	c.Stop()
	stopListener()
	if err := server.Shutdown(context.Background()); err != nil {
		logger.Errorf("Ошибка при завершении работы сервера: %v", err)
	}
	logger.Info("Сервер успешно остановлен")
}
