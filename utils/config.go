package utils

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process configuration read from the environment
type Config struct {
	Port           string
	MongoURI       string
	MongoDatabase  string
	StoreBackend   string // mongo | memory
	JWTSecret      string
	JWTTTL         time.Duration
	RequestTimeout time.Duration
	LogLevel       string

	EmailProvider   string // postmark | sendgrid | none
	PostmarkToken   string
	SendGridKey     string
	EmailSender     string
	PayHereMerchant string
	PayHereSecret   string
	WebhookRPS      float64
	WebhookBurst    int
}

// LoadConfig loads .env (if present) and reads the environment
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Proceeding with environment variables.")
	}

	cfg := Config{
		Port:            getenv("PORT", "8000"),
		MongoURI:        strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDatabase:   getenv("MONGO_DATABASE", "ecommerce"),
		StoreBackend:    strings.ToLower(getenv("STORE_BACKEND", "mongo")),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		EmailProvider:   strings.ToLower(getenv("EMAIL_PROVIDER", "none")),
		PostmarkToken:   os.Getenv("POSTMARK_API_TOKEN"),
		SendGridKey:     os.Getenv("SENDGRID_API_KEY"),
		EmailSender:     os.Getenv("EMAIL_SENDER"),
		PayHereMerchant: os.Getenv("PAYHERE_MERCHANT_ID"),
		PayHereSecret:   os.Getenv("PAYHERE_MERCHANT_SECRET"),
	}

	var err error
	if cfg.JWTTTL, err = time.ParseDuration(getenv("JWT_TTL", "24h")); err != nil {
		return Config{}, fmt.Errorf("JWT_TTL: %w", err)
	}
	if cfg.RequestTimeout, err = time.ParseDuration(getenv("REQUEST_TIMEOUT", "5s")); err != nil {
		return Config{}, fmt.Errorf("REQUEST_TIMEOUT: %w", err)
	}
	if cfg.WebhookRPS, err = strconv.ParseFloat(getenv("WEBHOOK_RPS", "5"), 64); err != nil {
		return Config{}, fmt.Errorf("WEBHOOK_RPS: %w", err)
	}
	if cfg.WebhookBurst, err = strconv.Atoi(getenv("WEBHOOK_BURST", "10")); err != nil {
		return Config{}, fmt.Errorf("WEBHOOK_BURST: %w", err)
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.StoreBackend {
	case "mongo":
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required for the mongo store backend")
		}
	case "memory":
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
