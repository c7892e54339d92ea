package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string
	PromotionWindow time.Duration
	SlotCapacity int
	SlotInterval time.Duration
	OpeningHour int
	ClosingHour int
	NotifyProvider string
	NotifyWebhookURL string
	NotifyTimeout time.Duration
	RateLimitPerMinute int
	RateLimitBurst int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:        port,
		DatabaseURL: os.Getenv("DB_DSN"),
		PromotionWindow: readDurationMinutes("PROMOTION_WINDOW_MINUTES", 15),
		SlotCapacity: readInt("SLOT_CAPACITY", 3),
		SlotInterval: readDurationMinutes("SLOT_INTERVAL_MINUTES", 30),
		OpeningHour: readInt("OPENING_HOUR", 8),
		ClosingHour: readInt("CLOSING_HOUR", 16),
		NotifyProvider: readString("NOTIFY_PROVIDER", "log"),
		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
		NotifyTimeout: readDurationSeconds("NOTIFY_TIMEOUT_SECONDS", 3),
		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst: readInt("RATE_LIMIT_BURST", 30),
	}
}

func readString(key, fallback string) string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	return raw
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readDurationMinutes(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Minute
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
