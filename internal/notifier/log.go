package notifier

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogNotifier prints the code instead of sending it. Development only.
type LogNotifier struct {
	log *logrus.Entry
}

func NewLogNotifier(log *logrus.Entry) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, phoneNumber, code string) error {
	n.log.WithFields(logrus.Fields{
		"phone_number": phoneNumber,
		"otp_code":     code,
	}).Info("mock sms: otp sent")
	return nil
}
