// Package notifier delivers one-time codes to phone numbers. The backend is
// picked from configuration and injected into the identity service.
package notifier

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"complaints-backend-go/internal/config"
)

// Notifier sends code to phoneNumber. A nil error means the backend accepted
// the message.
type Notifier interface {
	Send(ctx context.Context, phoneNumber, code string) error
}

// Message is the SMS body for code.
func Message(code string) string {
	return fmt.Sprintf("Your OTP code is: %s", code)
}

// New builds the backend named by cfg.SMSServiceType. Unknown names fall back
// to the log-only backend with a warning.
func New(cfg *config.Config, log *logrus.Entry) (Notifier, error) {
	switch cfg.SMSServiceType {
	case "", "mock", "log":
		return NewLogNotifier(log), nil
	case "twilio":
		return NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, log)
	case "smslocal":
		return NewSMSLocalNotifier(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender), nil
	default:
		log.WithField("sms_service_type", cfg.SMSServiceType).Warn("unknown sms service type, using log-only notifier")
		return NewLogNotifier(log), nil
	}
}
