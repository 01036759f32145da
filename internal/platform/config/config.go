package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ExecutorBaseURL        string
	ExecutorAuthToken      string
	ExecutorTimeoutSeconds int

	ExecutionCPUTimeLimitSeconds float64
	ExecutionMemoryLimitKB       int

	RankLockKeyPrefix  string
	RankLockTTLSeconds int

	ExpirySweepSchedule string
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:       getEnv("API_PORT", "8080"),
		JWTKey:        []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:        time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "user"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "campus_drive_db"),
		DBSslMode:     getEnv("DB_SSLMODE", "disable"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		ExecutorBaseURL:        getEnv("EXECUTOR_BASE_URL", "http://localhost:2358"),
		ExecutorAuthToken:      getEnv("EXECUTOR_AUTH_TOKEN", ""),
		ExecutorTimeoutSeconds: getEnvAsInt("EXECUTOR_TIMEOUT_SECONDS", 20),

		ExecutionCPUTimeLimitSeconds: getEnvAsFloat("EXECUTION_CPU_TIME_LIMIT_SECONDS", 2),
		ExecutionMemoryLimitKB:       getEnvAsInt("EXECUTION_MEMORY_LIMIT_KB", 128000),

		RankLockKeyPrefix:  getEnv("RANK_LOCK_KEY_PREFIX", "drive_rank_lock"),
		RankLockTTLSeconds: getEnvAsInt("RANK_LOCK_TTL_SECONDS", 30),

		ExpirySweepSchedule: getEnv("EXPIRY_SWEEP_SCHEDULE", "@every 1m"),
	}

	// The execution backend credential is required up front. A missing token
	// must fail the process at boot, not surface per request.
	if AppConfig.ExecutorAuthToken == "" {
		log.Fatal("EXECUTOR_AUTH_TOKEN is not set; refusing to start without an execution backend credential")
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}
