package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stake-plus/netstate-gov/src/config"
)

// New builds the process logger. Dev environments get the console encoder.
func New(cfg config.App) *zap.SugaredLogger {
	zcfg := zap.NewProductionConfig()
	if cfg.IsDevEnvironment() {
		zcfg = zap.NewDevelopmentConfig()
	}

	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	return zap.Must(zcfg.Build()).Sugar()
}
