package utils

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a development logger for local runs and a JSON production
// logger otherwise. An unknown level falls back to info.
func NewLogger(dev bool, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zapcore.InfoLevel
		if dev {
			lvl = zapcore.DebugLevel
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}
