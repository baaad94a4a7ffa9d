package services

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm/logger"

	"retreat_app_echo/internal/config"
)

// NewLogger builds a JSON logger for production and a colored console logger
// everywhere else.
func NewLogger(env string) (*zap.Logger, error) {
	var cfg zap.Config

	if env == config.EnvProduction {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return cfg.Build()
}

// GormLogLevel maps the environment to the ORM's SQL log level.
func GormLogLevel(env string) logger.LogLevel {
	switch env {
	case config.EnvProduction:
		return logger.Warn
	case config.EnvTest:
		return logger.Silent
	default:
		return logger.Info
	}
}
