// ABOUTME: Builds the zap logger used by the CLI and the Power BI client.
// ABOUTME: "dev" logs colored console lines to stderr, "prod" logs JSON.

package main

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(env, level string) *zap.Logger {
	lvl := parseLevel(level)

	var (
		l   *zap.Logger
		err error
	)
	if strings.ToLower(env) == "prod" {
		l, err = buildProd(lvl)
	} else {
		l, err = buildDev(lvl)
	}
	if err != nil {
		l, _ = zap.NewProduction()
	}

	return l.With(zap.String("service", "pbi-report"))
}

func buildDev(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.DisableStacktrace = true

	return cfg.Build(zap.AddCaller())
}

func buildProd(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}

	return cfg.Build()
}

// parseLevel defaults to warn so command output is not mixed with chatter.
func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}
