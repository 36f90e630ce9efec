// Package config — конфигурация сервера из переменных окружения.
// Ядро само конфигурацию не читает: значения передаются ему явно
// из композиционного корня.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// FeatureFlags — флаги функциональности, управляемые окружением
type FeatureFlags struct {
	EnableChat          bool
	EnablePublicChat    bool
	EnableAdminChat     bool
	EnableVoiceInput    bool
	EnableMetrics       bool
	EnableDevMode       bool
	EnableNotifications bool
}

// Config — собранная конфигурация сервера
type Config struct {
	Port        string
	CORSOrigins []string

	// Вебхук автоматизации
	WebhookURL     string
	WebhookTimeout time.Duration
	// Белый список доменов: базовый домен из окружения плюс localhost
	AllowedWebhookDomains []string

	// Лимитер входящего трафика
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Оффлайн-очередь
	OfflineMaxAge time.Duration

	// Redis для очереди и снимков сессий
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Features FeatureFlags
}

// Load читает конфигурацию из окружения, подставляя значения по умолчанию
func Load() *Config {
	cfg := &Config{
		Port:        env("PORT", "8080"),
		CORSOrigins: splitList(env("CORS_ORIGINS", "http://localhost:3000")),

		WebhookURL:     env("N8N_WEBHOOK_URL", "http://localhost:5678/webhook/chat"),
		WebhookTimeout: envDuration("N8N_WEBHOOK_TIMEOUT", 30*time.Second),

		RateLimitMax:    envInt("RATE_LIMIT_MAX", 20),
		RateLimitWindow: envDuration("RATE_LIMIT_WINDOW", time.Minute),

		OfflineMaxAge: envDuration("OFFLINE_MAX_AGE", 7*24*time.Hour),

		// Пустой адрес — работаем на памяти процесса
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		Features: FeatureFlags{
			EnableChat:          envBool("ENABLE_CHAT", true),
			EnablePublicChat:    envBool("ENABLE_PUBLIC_CHAT", true),
			EnableAdminChat:     envBool("ENABLE_ADMIN_CHAT", true),
			EnableVoiceInput:    envBool("ENABLE_VOICE_INPUT", false),
			EnableMetrics:       envBool("ENABLE_METRICS", false),
			EnableDevMode:       envBool("ENABLE_DEV_MODE", false),
			EnableNotifications: envBool("ENABLE_NOTIFICATIONS", true),
		},
	}

	// Домены вебхука: базовый домен + localhost всегда разрешены
	domains := []string{"localhost", "127.0.0.1"}
	if base := os.Getenv("WEBHOOK_BASE_DOMAIN"); base != "" {
		domains = append(domains, base)
	}
	cfg.AllowedWebhookDomains = domains

	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	raw := os.Getenv(k)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: неверное значение %s=%q, используем %d", k, raw, def)
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	raw := os.Getenv(k)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config: неверное значение %s=%q, используем %t", k, raw, def)
		return def
	}
	return v
}

func envDuration(k string, def time.Duration) time.Duration {
	raw := os.Getenv(k)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config: неверное значение %s=%q, используем %s", k, raw, def)
		return def
	}
	return v
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
