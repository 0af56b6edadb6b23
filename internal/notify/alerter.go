package notify

import (
	"github.com/containrrr/shoutrrr"

	"github.com/guardianhq/guardian/internal/logger"
)

// Alerter pushes operator alerts through a shoutrrr destination (Slack,
// Discord, email, webhook...). With no URL configured it only logs.
type Alerter struct {
	url string
}

// New creates an alerter for the given shoutrrr URL. Empty disables sending.
func New(url string) *Alerter {
	return &Alerter{url: url}
}

// Critical sends a critical alert. Delivery runs in the caller's goroutine
// and failures are logged, never returned: alerting must not add a failure
// mode to the paths that raise alerts.
func (a *Alerter) Critical(msg string) {
	logger.WithComponent("notify").Error(msg)
	if a.url == "" {
		return
	}
	if err := shoutrrr.Send(a.url, "[guardian][critical] "+msg); err != nil {
		logger.WithComponent("notify").WithError(err).Error("failed to send alert")
	}
}
