// Package logging configures the process-wide logrus logger and optional Sentry reporting.
package logging

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// Options configures the logger
type Options struct {
	Level       string // logrus level name; defaults to info
	JSON        bool   // JSON output, used in production
	SentryDSN   string
	Environment string
}

var (
	std      *logrus.Logger
	once     sync.Once
	sentryOn atomic.Bool
)

// Logger returns the shared logger, creating a text logger at info level on first use
func Logger() *logrus.Logger {
	once.Do(func() {
		std = logrus.New()
		std.SetOutput(os.Stdout)
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	})
	return std
}

// Setup applies opts to the shared logger and initialises Sentry when a DSN is given.
// The returned func flushes Sentry and must be called before exit.
func Setup(opts Options) (*logrus.Logger, func(), error) {
	l := Logger()

	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil || opts.Level == "" {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if opts.JSON {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	flush := func() {}
	if opts.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         opts.SentryDSN,
			Environment: opts.Environment,
		}); err != nil {
			return l, flush, err
		}
		sentryOn.Store(true)
		flush = func() { sentry.Flush(2 * time.Second) }
	}
	return l, flush, nil
}

// LogError logs err with context and forwards it to Sentry when enabled
func LogError(err error, errorType string, fields map[string]interface{}) {
	if err == nil {
		return
	}
	entry := Logger().WithFields(logrus.Fields{
		"error_type": errorType,
		"error":      err.Error(),
	})
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Error("error occurred")

	if !sentryOn.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_type", errorType)
		for k, v := range fields {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// LogEvent records a domain event (grant, invite redemption) and leaves a Sentry breadcrumb
func LogEvent(eventType string, data map[string]interface{}) {
	entry := Logger().WithField("event_type", eventType)
	for k, v := range data {
		entry = entry.WithField(k, v)
	}
	entry.Info("event")

	if sentryOn.Load() {
		sentry.AddBreadcrumb(&sentry.Breadcrumb{
			Type:      "info",
			Category:  eventType,
			Data:      data,
			Timestamp: time.Now(),
		})
	}
}
