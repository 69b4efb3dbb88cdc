// Package logger builds the process-wide zap.Logger, rotating file
// output through lumberjack the way a long-running collab server needs
// to (unbounded log files on a busy editing server will eventually fill
// the disk the document store lives on).
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level mirrors the LOG_LEVEL env var surface, kept separate from
// zapcore.Level so callers outside this package never import zap just to
// name a level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config controls where and how logs are written.
type Config struct {
	Level      Level
	FilePath   string // empty disables file rotation; stderr only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	JSON       bool
}

func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		MaxSizeMB:  100,
		MaxBackups: 7,
		MaxAgeDays: 28,
		JSON:       true,
	}
}

// FromEnv reads LOG_LEVEL and LOG_FILE the way the teacher's logger.Init
// did, kept as an alternate entry point for callers that haven't moved
// to internal/config's Viper binding yet.
func FromEnv() Config {
	cfg := DefaultConfig()
	if lvl := strings.ToLower(os.Getenv("LOG_LEVEL")); lvl != "" {
		cfg.Level = Level(lvl)
	}
	cfg.FilePath = os.Getenv("LOG_FILE")
	return cfg
}

// New builds a zap.Logger writing to stderr and, if FilePath is set, to
// a lumberjack-rotated file simultaneously.
func New(cfg Config) (*zap.Logger, error) {
	level := parseLevel(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if cfg.JSON {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}
	if cfg.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func parseLevel(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
