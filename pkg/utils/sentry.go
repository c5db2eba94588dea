package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const sentryService = "supamon-backend"

// InitSentry enables error reporting when dsn is set. The returned flush
// function is always safe to call.
func InitSentry(dsn, environment string) (flush func(), enabled bool) {
	flush = func() {}
	if dsn == "" {
		return flush, false
	}

	release := os.Getenv("SENTRY_RELEASE")
	if release == "" {
		release = os.Getenv("GIT_COMMIT")
	}
	opts := sentry.ClientOptions{
		Dsn:            dsn,
		Environment:    environment,
		Release:        release,
		SendDefaultPII: false,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil {
				event.Request.Headers = nil
				event.Request.Cookies = ""
			}
			return event
		},
	}
	if host, _ := os.Hostname(); host != "" {
		opts.ServerName = host
	}

	if err := sentry.Init(opts); err != nil {
		logrus.Warnf("Sentry initialization failed: %v", err)
		return flush, false
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("service", sentryService)
	})
	return func() { sentry.Flush(2 * time.Second) }, true
}

// CaptureSentryError reports an error or message to Sentry, enriching it with request metadata when available.
func CaptureSentryError(c *gin.Context, err error, message string, extras map[string]interface{}) {
	if err == nil && message == "" {
		return
	}

	hub := sentry.CurrentHub()
	if c != nil {
		if ctxHub := sentrygin.GetHubFromContext(c); ctxHub != nil {
			hub = ctxHub
		}
	}
	if hub == nil || hub.Client() == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("service", sentryService)
		if c != nil {
			scope.SetTag("http.method", c.Request.Method)
			scope.SetTag("http.path", c.FullPath())
			scope.SetExtra("client_ip", c.ClientIP())
		}
		if message != "" {
			scope.SetExtra("context", message)
		}
		for k, v := range extras {
			scope.SetExtra(k, v)
		}

		if err != nil {
			scope.SetTag("sentry.capture_type", "exception")
			hub.CaptureException(err)
		} else {
			scope.SetTag("sentry.capture_type", "message")
			hub.CaptureMessage(message)
		}
	})
}

// CaptureSentryPanic converts a recovered panic into a Sentry event.
func CaptureSentryPanic(location string, recovered interface{}) {
	if recovered == nil {
		return
	}
	err := fmt.Errorf("panic recovered in %s: %v", location, recovered)
	logrus.WithField("location", location).Error(err.Error())
	CaptureSentryError(nil, err, location, map[string]interface{}{
		"panic_value": fmt.Sprint(recovered),
	})
}
