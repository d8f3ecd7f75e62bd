package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioNotifier sends the code as a plain SMS through the Twilio REST API.
type TwilioNotifier struct {
	api  messageCreator
	from string
	log  *logrus.Entry
}

func NewTwilioNotifier(accountSID, authToken, from string, log *logrus.Entry) (*TwilioNotifier, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, errors.New("notifier: missing Twilio credentials (TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER)")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioNotifier{api: client.Api, from: from, log: log}, nil
}

func (n *TwilioNotifier) Send(ctx context.Context, phoneNumber, code string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(n.from)
	params.SetTo(phoneNumber)
	params.SetBody(Message(code))

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		n.log.WithError(err).WithField("phone_number", phoneNumber).Error("twilio: send failed")
		return fmt.Errorf("twilio: %w", err)
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio: error %d: %s", *resp.ErrorCode, msg)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	n.log.WithFields(logrus.Fields{"phone_number": phoneNumber, "sid": sid}).Info("twilio: otp sent")
	return nil
}
