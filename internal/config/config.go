package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

type Config struct {
	Port          string
	AllowedOrigin string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Fallback credit policy, used until the owner saves one.
	DefaultMaxAmount decimal.Decimal
	DefaultMaxTerm   int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	maxAmount, err := decimal.NewFromString(getEnv("DEFAULT_CREDIT_MAX_AMOUNT", "100"))
	if err != nil || maxAmount.IsNegative() {
		maxAmount = decimal.NewFromInt(100)
	}
	maxTerm, err := strconv.Atoi(getEnv("DEFAULT_CREDIT_MAX_TERM_DAYS", "15"))
	if err != nil || maxTerm < 0 {
		maxTerm = 15
	}

	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		AllowedOrigin:    getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          redisDB,
		DefaultMaxAmount: maxAmount,
		DefaultMaxTerm:   maxTerm,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
