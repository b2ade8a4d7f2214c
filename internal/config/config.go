package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Gateway credentials (Z-API style instance/token pair plus account token).
	GatewayBaseURL string
	InstanceID     string
	Token          string
	ClientToken    string
	SendRatePerSec int

	// Admin is the only phone allowed to issue commands.
	Admin string

	// Rewrite service. Empty APIKey disables rewriting entirely.
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// Broadcast behaviour.
	CountryPrefix    string
	DelayMinSeconds  int
	DelayMaxSeconds  int
	PausePollSeconds int

	// Contact sheet.
	SheetPath string

	// Relational audit log.
	DBDialect  string
	DBPath     string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	// Cron spec for the periodic status digest; empty disables it.
	ReportCron string

	LogLevel string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:             getEnv("PORT", "8080"),
		GatewayBaseURL:   getEnv("GATEWAY_BASE_URL", "https://api.z-api.io"),
		InstanceID:       getEnv("INSTANCE_ID", ""),
		Token:            getEnv("TOKEN", ""),
		ClientToken:      getEnv("CLIENT_TOKEN", ""),
		SendRatePerSec:   getEnvInt("SEND_RATE_PER_SEC", 5),
		Admin:            getEnv("ADMIN", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		CountryPrefix:    getEnv("COUNTRY_PREFIX", "55"),
		DelayMinSeconds:  getEnvInt("DELAY_MIN_SECONDS", 20),
		DelayMaxSeconds:  getEnvInt("DELAY_MAX_SECONDS", 60),
		PausePollSeconds: getEnvInt("PAUSE_POLL_SECONDS", 2),
		SheetPath:        getEnv("SHEET_PATH", "./contacts.csv"),
		DBDialect:        getEnv("DB_DIALECT", "sqlite"),
		DBPath:           getEnv("DB_PATH", "./broadcaster.db"),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBUser:           getEnv("DB_USER", "postgres"),
		DBPassword:       getEnv("DB_PASSWORD", ""),
		DBName:           getEnv("DB_NAME", "broadcaster"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBSSLMode:        getEnv("DB_SSLMODE", "disable"),
		ReportCron:       getEnv("REPORT_CRON", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Warning: invalid integer for %s, using %d", key, fallback)
	}
	return fallback
}
