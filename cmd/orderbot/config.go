package main

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/Renal37/wa-orderbot/internal/services"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	endpoint             string
	dsn                  string
	logLevel             string
	env                  string
	authSecretKey        string
	amqpURL              string
	menuFile             string
	rateLimitRequests    int
	rateLimitWindow      time.Duration
	menuCacheTTL         time.Duration
	enableMessageLogging bool
	workers              int
	queueCapacity        int
	retention            services.RetentionConfig

	// generatedSecret - секрет создан случайно, токены не переживут перезапуск
	generatedSecret bool
}

func generateRandomString(length int) string {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(b)
}

// bindFlags объявляет общие флаги команд и связывает их с переменными окружения
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.StringP("address", "a", "localhost:8090", "address and port to run server")
	flags.StringP("dsn", "d", "", "data source name for database connection")
	flags.StringP("menu", "m", "", "YAML file with menu items to seed")

	_ = v.BindPFlag("RUN_ADDRESS", flags.Lookup("address"))
	_ = v.BindPFlag("DATABASE_URI", flags.Lookup("dsn"))
	_ = v.BindPFlag("MENU_FILE", flags.Lookup("menu"))
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("RUN_ADDRESS", "localhost:8090")
	v.SetDefault("LOG_LEVEL", "error")
	v.SetDefault("ENV", "production")
	v.SetDefault("RATE_LIMIT_REQUESTS", services.DefaultRateLimitRequests)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", int(services.DefaultRateLimitWindow/time.Second))
	v.SetDefault("PROCESSED_RETENTION_DAYS", services.DefaultProcessedRetentionDays)
	v.SetDefault("RATE_LIMIT_RETENTION_HOURS", services.DefaultRateLimitRetentionHours)
	v.SetDefault("PENDING_PAYMENT_EXPIRY", services.DefaultPendingPaymentExpiry)
	v.SetDefault("SWEEP_INTERVAL", services.DefaultSweepInterval)
	v.SetDefault("CACHE_TTL_SECONDS", int(services.DefaultMenuCacheTTL/time.Second))
	v.SetDefault("ENABLE_MESSAGE_LOGGING", false)
	v.SetDefault("WORKERS", 2)
	v.SetDefault("QUEUE_CAPACITY", 100)

	return v
}

// NewConfig читает настройки: флаг важнее переменной окружения, она важнее значения по умолчанию
func NewConfig(v *viper.Viper) Config {
	config := Config{
		endpoint:             v.GetString("RUN_ADDRESS"),
		dsn:                  v.GetString("DATABASE_URI"),
		logLevel:             v.GetString("LOG_LEVEL"),
		env:                  v.GetString("ENV"),
		authSecretKey:        v.GetString("AUTH_SECRET_KEY"),
		amqpURL:              v.GetString("AMQP_URL"),
		menuFile:             v.GetString("MENU_FILE"),
		rateLimitRequests:    v.GetInt("RATE_LIMIT_REQUESTS"),
		rateLimitWindow:      time.Duration(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		menuCacheTTL:         time.Duration(v.GetInt("CACHE_TTL_SECONDS")) * time.Second,
		enableMessageLogging: v.GetBool("ENABLE_MESSAGE_LOGGING"),
		workers:              v.GetInt("WORKERS"),
		queueCapacity:        v.GetInt("QUEUE_CAPACITY"),
		retention: services.RetentionConfig{
			ProcessedRetentionDays:  v.GetInt("PROCESSED_RETENTION_DAYS"),
			RateLimitRetentionHours: v.GetInt("RATE_LIMIT_RETENTION_HOURS"),
			PendingPaymentExpiry:    v.GetDuration("PENDING_PAYMENT_EXPIRY"),
			Interval:                v.GetDuration("SWEEP_INTERVAL"),
		},
	}

	if config.authSecretKey == "" {
		if config.env == "production" {
			config.authSecretKey = generateRandomString(10)
			config.generatedSecret = true
		} else {
			config.authSecretKey = "development-key"
		}
	}

	return config
}
