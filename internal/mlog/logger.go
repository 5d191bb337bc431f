package mlog

import (
	"fmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"os"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`      // debug | info | warn | error
	Production bool   `mapstructure:"production"` // json 输出，否则控制台格式
	File       string `mapstructure:"file"`       // 为空时输出到 stderr
}

// NewLogger 按配置创建 logger
func NewLogger(lc LogConfig) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if lc.Level != "" {
		l, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		lvl = l
	}

	var encoder zapcore.Encoder
	if lc.Production {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(ec)
	}

	out := zapcore.Lock(os.Stderr)
	if lc.File != "" {
		f, _, err := zap.Open(lc.File)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}
	return zap.New(zapcore.NewCore(encoder, out, lvl), zap.AddCaller()), nil
}
