package config

import (
	"github.com/panjf2000/gnet/v2/pkg/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SetupLogger builds a zap logger from cfg and makes it the sink of every
// log call in this module.
func SetupLogger(cfg LogConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.OutputPath != "" {
		zc.OutputPaths = []string{cfg.OutputPath}
		zc.ErrorOutputPaths = []string{cfg.OutputPath}
	}
	zl, err := zc.Build()
	if err != nil {
		return nil, err
	}
	logging.SetDefaultLoggerAndFlusher(zl.Sugar(), zl.Sync)
	return zl, nil
}
