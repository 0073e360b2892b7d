package config

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/corray333/backend-labs/delivery/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func MustInit() {
	// .env carries secrets only; in containers they come from the environment.
	if err := godotenv.Load("./.env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("error while loading .env file: " + err.Error())
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/order-svc")
	viper.AddConfigPath(".")
	setDefaults()
	if err := viper.ReadInConfig(); err != nil {
		panic("error while reading config file: " + err.Error())
	}

	SetupLogger()
}

func setDefaults() {
	viper.SetDefault("server.http.port", "8080")
	viper.SetDefault("postgres.migrations_path", "./migrations")
	viper.SetDefault("outbox.poll_interval", "5s")
	viper.SetDefault("outbox.batch_size", 20)
	viper.SetDefault("outbox.max_attempts", 3)
	viper.SetDefault("outbox.retry_base_delay", "200ms")
	viper.SetDefault("outbox.lock.driver", "local")
	viper.SetDefault("outbox.lock.key", "delivery:outbox:dispatch")
	viper.SetDefault("outbox.lock.ttl", "30s")
	viper.SetDefault("rabbitmq.exchange", "delivery.events")
	viper.SetDefault("redis.addr", "redis:6379")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age_days", 28)
	viper.SetDefault("tracing.enabled", false)
}

func SetupLogger() {
	handler := logger.NewHandler(&logger.Options{
		Level:      viper.GetString("log.level"),
		File:       viper.GetString("log.file"),
		MaxSizeMB:  viper.GetInt("log.max_size_mb"),
		MaxBackups: viper.GetInt("log.max_backups"),
		MaxAgeDays: viper.GetInt("log.max_age_days"),
	})
	log := slog.New(handler)
	slog.SetDefault(log)
}
