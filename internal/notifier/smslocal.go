package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultSMSLocalURL = "https://www.smslocal.com/dev/bulkV2"
	defaultTimeout     = 15 * time.Second
)

// SMSLocalNotifier sends the code through the SMS Local OTP route.
// See https://www.smslocal.com/dev/bulkV2.
type SMSLocalNotifier struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

func NewSMSLocalNotifier(apiKey, baseURL, sender string) *SMSLocalNotifier {
	if baseURL == "" {
		baseURL = defaultSMSLocalURL
	}
	return &SMSLocalNotifier{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Send posts the code; the gateway wants digits only, so the leading + is dropped.
func (c *SMSLocalNotifier) Send(ctx context.Context, phoneNumber, code string) error {
	if c.APIKey == "" {
		return fmt.Errorf("smslocal: API key not configured")
	}
	body := map[string]interface{}{
		"route":     "otp",
		"numbers":   strings.TrimPrefix(phoneNumber, "+"),
		"variables": code,
	}
	if c.Sender != "" {
		body["sender_id"] = c.Sender
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("smslocal: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
