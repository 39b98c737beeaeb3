// Package logger 基于 zap 实现 kratos 的 log.Logger。
package logger

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ log.Logger = (*zapLogger)(nil)

type zapLogger struct {
	base *zap.Logger
}

// New 创建结构化 json 日志（level: debug/info/warn/error）
func New(level string) (log.Logger, func(), error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if level == "" {
		level = "info"
	}
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	base, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = base.Sync()
	}
	return &zapLogger{base: base}, cleanup, nil
}

// Log 实现 kratos log.Logger
func (l *zapLogger) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "")
	}

	var msg string
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}

	switch level {
	case log.LevelDebug:
		l.base.Debug(msg, fields...)
	case log.LevelInfo:
		l.base.Info(msg, fields...)
	case log.LevelWarn:
		l.base.Warn(msg, fields...)
	case log.LevelError:
		l.base.Error(msg, fields...)
	case log.LevelFatal:
		l.base.Fatal(msg, fields...)
	default:
		l.base.Info(msg, fields...)
	}
	return nil
}
