package alert

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioConfig configures the SMS channel. Empty credentials fall back to
// TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN.
type TwilioConfig struct {
	AccountSID string   `json:"accountSid"`
	AuthToken  string   `json:"authToken"`
	From       string   `json:"from"`
	To         []string `json:"to"`
}

func (c *TwilioConfig) applyEnv() {
	if c.AccountSID == "" {
		c.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if c.AuthToken == "" {
		c.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
}

// Validate checks the sender, recipients and credentials are present.
func (c TwilioConfig) Validate() error {
	switch {
	case c.AccountSID == "" || c.AuthToken == "":
		return errors.New("twilio: account SID and auth token are required")
	case c.From == "":
		return errors.New("twilio: from number is required")
	case len(c.To) == 0:
		return errors.New("twilio: at least one recipient is required")
	}
	return nil
}

// messageCreator is the part of the Twilio REST API the channel uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioDispatcher sends the alert message as an SMS to every recipient.
type TwilioDispatcher struct {
	name string
	cfg  TwilioConfig
	api  messageCreator
}

// NewTwilioDispatcher creates an SMS channel.
func NewTwilioDispatcher(name string, cfg TwilioConfig) (*TwilioDispatcher, error) {
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioDispatcher{name: name, cfg: cfg, api: client.Api}, nil
}

func (d *TwilioDispatcher) Name() string { return d.name }

// Dispatch sends one SMS per recipient. The Twilio client has no context
// support, so a canceled ctx abandons the in-flight request.
func (d *TwilioDispatcher) Dispatch(ctx context.Context, a Alert) error {
	done := make(chan error, 1)
	go func() {
		var errs []error
		for _, to := range d.cfg.To {
			params := &openapi.CreateMessageParams{}
			params.SetTo(to)
			params.SetFrom(d.cfg.From)
			params.SetBody(a.Message)

			if _, err := d.api.CreateMessage(params); err != nil {
				errs = append(errs, fmt.Errorf("sms to %s: %w", to, err))
			}
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
