package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config содержит настройки приложения
type Config struct {
	DBHost      string        // Хост базы данных
	DBPort      string        // Порт базы данных
	DBUser      string        // Пользователь базы данных
	DBPassword  string        // Пароль базы данных
	DBName      string        // Имя базы данных
	JWTSecret   string        // Секрет для JWT
	TokenExpiry time.Duration // Время жизни токена
	HorizonDays int           // Сколько дней после конца текущего месяца покрывает горизонт генерации
	PenaltyRate float64       // Ставка пени по умолчанию (% годовых), если ЦБ недоступен
	ServerAddr  string        // Адрес HTTP сервера
}

// LoadConfig загружает конфигурацию из .env файла
func LoadConfig() (*Config, error) {
	// Загружаем переменные окружения из .env файла
	if err := godotenv.Load(); err != nil {
		logrus.Warn("Файл .env не найден")
	}

	// Парсим время жизни токена
	expiry, err := time.ParseDuration(os.Getenv("TOKEN_EXPIRY"))
	if err != nil {
		expiry = 24 * time.Hour // По умолчанию 24 часа
	}

	// Парсим горизонт генерации
	horizonDays, err := strconv.Atoi(os.Getenv("GENERATION_HORIZON_DAYS"))
	if err != nil || horizonDays < 0 {
		horizonDays = 30 // По умолчанию конец месяца + 30 дней
	}

	// Парсим ставку пени по умолчанию
	penaltyRate, err := strconv.ParseFloat(os.Getenv("DEFAULT_PENALTY_RATE"), 64)
	if err != nil || penaltyRate <= 0 {
		penaltyRate = 22.0
	}

	// Создаем объект конфигурации
	config := &Config{
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "finance"),
		JWTSecret:   getEnv("JWT_SECRET", "default-secret-key"),
		TokenExpiry: expiry,
		HorizonDays: horizonDays,
		PenaltyRate: penaltyRate,
		ServerAddr:  getEnv("SERVER_ADDR", ":8080"),
	}

	return config, nil
}

// DBConnString возвращает строку подключения к PostgreSQL
func (c *Config) DBConnString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
