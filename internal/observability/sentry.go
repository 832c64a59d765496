package observability

import (
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry is a no-op without a DSN.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			scrubEvent(event)
			return event
		},
	})
}

// scrubEvent drops bearer tokens and any request body that carries a
// password before the event leaves the process.
func scrubEvent(event *sentry.Event) {
	if event == nil || event.Request == nil {
		return
	}
	for name := range event.Request.Headers {
		if strings.EqualFold(name, "Authorization") || strings.EqualFold(name, "Cookie") {
			event.Request.Headers[name] = "[redacted]"
		}
	}
	if strings.Contains(strings.ToLower(event.Request.Data), "password") {
		event.Request.Data = "[redacted]"
	}
}

// CaptureSwallowed reports an error the caller deliberately does not surface.
func CaptureSwallowed(err error, operation string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", operation)
		scope.SetLevel(sentry.LevelWarning)
		sentry.CaptureException(err)
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
