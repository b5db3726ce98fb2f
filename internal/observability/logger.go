// Package observability builds the process-wide zap logger.
package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Ankesh2004/p2p-chat/internal/config"
)

// SetupLogger builds a zap.Logger from c, installs it as the global logger
// and redirects the stdlib log package into it. Callers should defer Sync.
func SetupLogger(c config.LogConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(parseLevel(c.Level))

	encCfg := encoderConfig(c.Development)
	var encoder zapcore.Encoder
	if strings.ToLower(c.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	// Rotation.Filename only renames the file when there is a single one,
	// otherwise every file output would end up in the same lumberjack file
	sharedName := countFileOutputs(c.Outputs) == 1

	cores := make([]zapcore.Core, 0, len(c.Outputs))
	for _, out := range c.Outputs {
		ws, err := writeSyncer(out, c, sharedName)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder, ws, level))
	}

	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	}
	if c.Development {
		opts = append(opts, zap.Development())
	}

	logger := zap.New(zapcore.NewTee(cores...), opts...)
	zap.ReplaceGlobals(logger)
	if _, err := zap.RedirectStdLogAt(logger, zap.InfoLevel); err != nil {
		return nil, fmt.Errorf("redirect std log: %w", err)
	}
	return logger, nil
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func isStdStream(out string) bool {
	switch strings.ToLower(out) {
	case "stdout", "stderr":
		return true
	}
	return false
}

func countFileOutputs(outputs []string) int {
	n := 0
	for _, out := range outputs {
		if !isStdStream(out) {
			n++
		}
	}
	return n
}

// writeSyncer maps one configured output onto a sink. File outputs are
// rotated through lumberjack when rotation is on.
func writeSyncer(out string, c config.LogConfig, sharedName bool) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(out) {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}

	if c.Rotation.Enable {
		return zapcore.AddSync(rotatingFile(out, c.Rotation, sharedName)), nil
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return zapcore.AddSync(f), nil
}

// rotatingFile passes the limits through untouched: lumberjack reads 0 as
// "default size" and "keep forever".
func rotatingFile(out string, r config.RotationConfig, sharedName bool) *lumberjack.Logger {
	filename := out
	if sharedName && strings.TrimSpace(r.Filename) != "" {
		filename = r.Filename
	}
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    r.MaxSizeMB,
		MaxBackups: r.MaxBackups,
		MaxAge:     r.MaxAgeDays,
		Compress:   r.Compress,
	}
}

func encoderConfig(dev bool) zapcore.EncoderConfig {
	if dev {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}
