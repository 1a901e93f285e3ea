package utils

import (
	"context"
	"os"

	"github.com/CharellKing/ela-work/config"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var logger *log.Logger

func InitLogger(cfg *config.Config) {
	levelMap := map[string]log.Level{
		"trace": log.TraceLevel,
		"debug": log.DebugLevel,
		"info":  log.InfoLevel,
		"warn":  log.WarnLevel,
		"error": log.ErrorLevel,
	}

	level, ok := levelMap[cfg.Level]
	if !ok {
		level = log.InfoLevel
	}
	logger = &log.Logger{
		Out:       os.Stdout,
		Formatter: &log.JSONFormatter{},
		Hooks:     make(log.LevelHooks),
		Level:     level,
	}
	logger.SetReportCaller(true)
}

func getLogger() *log.Logger {
	if logger == nil {
		return log.StandardLogger()
	}
	return logger
}

// GetLogger returns an entry carrying every log field stored in ctx.
func GetLogger(ctx context.Context) *log.Entry {
	entry := log.NewEntry(getLogger())
	if ctx == nil {
		return entry
	}

	ctxKeyMap := map[CtxKey]func(ctx context.Context) string{
		CtxKeyBatchID:        GetCtxKeyBatchID,
		CtxKeyWorkKind:       GetCtxKeyWorkKind,
		CtxKeyIndex:          GetCtxKeyIndex,
		CtxKeyClusterVersion: GetCtxKeyClusterVersion,
		CtxKeyRequestID:      GetCtxKeyRequestID,
	}
	for key, ctxFunc := range ctxKeyMap {
		value := ctx.Value(key)
		if lo.IsNotEmpty(value) {
			entry = entry.WithField(string(key), ctxFunc(ctx))
		}
	}
	return entry
}
