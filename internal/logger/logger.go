// Package logger 构造 zap 日志器，级别和格式由环境变量决定
package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/united-manufacturing-hub/umh-utils/env"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "CONSOLE"
	FormatJSON    = "JSON"
)

// Options 控制输出级别、格式和可选的日志文件
type Options struct {
	Level  string // DEBUG/INFO/WARN/ERROR
	Format string // CONSOLE/JSON
	File   string // 额外写一份到文件，空则只写 stdout
}

// FromEnv 读取 LOGGING_LEVEL、LOGGING_FORMAT
func FromEnv(file string) Options {
	return Options{
		Level:  getEnv("LOGGING_LEVEL", "INFO"),
		Format: getEnv("LOGGING_FORMAT", FormatConsole),
		File:   file,
	}
}

func getEnv(key, fallback string) string {
	v, _ := env.GetAsString(key, false, fallback)
	if v == "" {
		return fallback
	}
	return v
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

// New 按 Options 构造日志器，返回的 closer 负责关闭日志文件
func New(opts Options) (*zap.Logger, func() error, error) {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if strings.ToUpper(opts.Format) == FormatJSON {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encCfg.EncodeTime = timeEncoder
		encCfg.ConsoleSeparator = " | "
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	level := zap.NewAtomicLevelAt(parseLevel(opts.Level))
	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)}
	closer := func() error { return nil }

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", opts.File, err)
		}
		cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.AddSync(f), level))
		closer = f.Close
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), closer, nil
}
