package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Config struct {
	Port                     string
	AllowedOrigin            string
	DatabaseURL              string
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	RegisterStatusTTLSeconds int
	AuthSecret               string
	AccessTokenTTLMinutes    int
	OwnerPIN                 string
	OwnerMaxDiscountPercent  decimal.Decimal
	ReceivableDueDays        int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	statusTTL, err := strconv.Atoi(getEnv("REGISTER_STATUS_TTL_SECONDS", "15"))
	if err != nil || statusTTL < 1 {
		statusTTL = 15
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	dueDays, err := strconv.Atoi(getEnv("RECEIVABLE_DUE_DAYS", "30"))
	if err != nil || dueDays < 1 {
		dueDays = 30
	}
	ownerMax, err := decimal.NewFromString(getEnv("OWNER_MAX_DISCOUNT_PERCENT", "100"))
	if err != nil || ownerMax.LessThan(decimal.Zero) || ownerMax.GreaterThan(decimal.NewFromInt(100)) {
		ownerMax = decimal.NewFromInt(100)
	}

	cfg := Config{
		Port:                     getEnv("PORT", "8080"),
		AllowedOrigin:            getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  redisDB,
		RegisterStatusTTLSeconds: statusTTL,
		AuthSecret:               strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:    tokenTTL,
		OwnerPIN:                 strings.TrimSpace(os.Getenv("OWNER_PIN")),
		OwnerMaxDiscountPercent:  ownerMax,
		ReceivableDueDays:        dueDays,
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
