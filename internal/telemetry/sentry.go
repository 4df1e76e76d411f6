// Package telemetry wires opt-in error reporting to Sentry.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/platescale/platescale/internal/buildinfo"
	"github.com/platescale/platescale/internal/conf"
	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/logger"
)

const flushTimeout = 2 * time.Second

// InitSentry initializes the Sentry SDK and routes enhanced errors to it.
// Nothing is sent unless reporting is explicitly enabled.
func InitSentry(settings *conf.SentrySettings, build *buildinfo.Context, log logger.Logger) error {
	return initSentry(settings, build, log, nil)
}

func initSentry(settings *conf.SentrySettings, build *buildinfo.Context, log logger.Logger, transport sentry.Transport) error {
	if log == nil {
		log = logger.Global().Module("telemetry")
	}
	if settings == nil || !settings.Enabled {
		log.Info("sentry telemetry is disabled (opt-in required)")
		errors.SetTelemetryReporter(nil)
		return nil
	}

	sampleRate := settings.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       sampleRate,
		AttachStacktrace: false,
		Environment:      settings.Environment,
		ServerName:       "",
		Release:          build.Release(),
		BeforeSend:       applyPrivacyFilters,
		Transport:        transport,
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	log.Info("sentry telemetry initialized",
		logger.String("environment", settings.Environment),
		logger.String("release", build.Release()))
	return nil
}

// applyPrivacyFilters strips host and request details and scrubs
// credentials from messages before an event leaves the process.
func applyPrivacyFilters(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.ServerName = ""
	event.User = sentry.User{}
	event.Request = nil
	event.Message = errors.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = errors.ScrubMessage(event.Exception[i].Value)
	}
	return event
}

// Flush waits briefly for queued events to be delivered.
func Flush() bool {
	return sentry.Flush(flushTimeout)
}
