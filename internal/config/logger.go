package config

import (
	"context"
	"os"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type ctxKey string

const ctxSubject ctxKey = "log_subject"

var Logger = logrus.New()

// InitLogger applies level and format from cfg to the shared Logger.
func InitLogger(cfg Config) {
	Logger.SetOutput(os.Stdout)
	if cfg.LogFormat == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
		Logger.WithField("log_level", cfg.LogLevel).Warn("unknown log level, using info")
	}
	Logger.SetLevel(lvl)
}

// WithSubject tags ctx with the authenticated subject for log entries.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxSubject, sub)
}

// WithContext returns a log entry carrying the request id and subject
// found in ctx.
func WithContext(ctx context.Context) *logrus.Entry {
	e := logrus.NewEntry(Logger)
	if ctx == nil {
		return e
	}
	if id := middleware.GetReqID(ctx); id != "" {
		e = e.WithField("request_id", id)
	}
	if sub, ok := ctx.Value(ctxSubject).(string); ok && sub != "" {
		e = e.WithField("subject", sub)
	}
	return e
}
