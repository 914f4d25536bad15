// Package logging 提供基于 zap 的日志初始化，文件输出带轮转
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates the process logger. Console output is always on; when file is
// non-empty, logs are additionally written to a rotating file.
func New(level string, file string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), lvl),
	}

	if file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), lvl))
	}

	return zap.New(zapcore.NewTee(cores...))
}
