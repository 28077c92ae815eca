package notify

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"checkin/internal/config"
	"checkin/internal/providers/smtp"
	"checkin/internal/providers/voipms"
)

// NewDispatcher builds a dispatcher from environment settings. Missing SMTP or
// VoIP.ms credentials leave that channel unconfigured rather than failing.
func NewDispatcher(cfg config.Notify, log Log) *Dispatcher {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	return &Dispatcher{
		Email: &smtp.Sender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		},
		SMS: &voipms.Client{
			Username: cfg.VoipmsUsername,
			Password: cfg.VoipmsPassword,
			DID:      cfg.VoipmsDID,
			BaseURL:  cfg.VoipmsBaseURL,
			HTTP:     &http.Client{Timeout: 15 * time.Second},
		},
		Log:     log,
		Limiter: rate.NewLimiter(rate.Limit(cfg.SMSRatePerSec), cfg.SMSBurst),
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "voipms",
			MaxRequests: 1,
			Timeout:     cfg.BreakerOpenFor,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= failures },
		}),
		Templates:     DefaultTemplates(),
		PortalBaseURL: cfg.PortalBaseURL,
		PropertyName:  cfg.PropertyName,
	}
}
