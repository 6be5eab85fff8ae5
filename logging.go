package main

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a colored console logger by default and a JSON production
// logger when mode is "release".
func newLogger(cfg LogConfig) (*zap.Logger, error) {
	var config zap.Config

	if strings.EqualFold(strings.TrimSpace(cfg.Mode), "release") {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	}

	if raw := strings.TrimSpace(cfg.Level); raw != "" {
		level, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		config.Level = zap.NewAtomicLevelAt(level)
	}

	return config.Build()
}
