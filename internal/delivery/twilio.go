package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the slice of the Twilio REST API the sender uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioSender sends the composed message as a WhatsApp message through Twilio.
type TwilioSender struct {
	api  messageCreator
	from string
}

// NewTwilioSender bounds every REST call by timeout; <= 0 keeps the SDK default.
func NewTwilioSender(accountSID, authToken, from string, timeout time.Duration) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &TwilioSender{api: client.Api, from: from}
}

func (ts *TwilioSender) Name() string { return "twilio" }

func (ts *TwilioSender) Ready(job Job) bool {
	return job.Payload.PhoneNumber != ""
}

type twilioResult struct {
	resp *openapi.ApiV2010Message
	err  error
}

// Deliver returns when ctx ends even if the SDK call, which takes no
// context, is still in flight. The client timeout ends that call later.
func (ts *TwilioSender) Deliver(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}

	params := &openapi.CreateMessageParams{}
	params.SetFrom(whatsappAddress(ts.from))
	params.SetTo(whatsappAddress(job.Payload.PhoneNumber))
	params.SetBody(job.Payload.Message)

	done := make(chan twilioResult, 1)
	go func() {
		resp, err := ts.api.CreateMessage(params)
		done <- twilioResult{resp: resp, err: err}
	}()

	var res twilioResult
	select {
	case <-ctx.Done():
		return fmt.Errorf("twilio create message: %w", ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		return fmt.Errorf("twilio create message: %w", res.err)
	}
	if res.resp != nil && res.resp.ErrorMessage != nil && *res.resp.ErrorMessage != "" {
		return errors.New("twilio: " + *res.resp.ErrorMessage)
	}
	return nil
}

// whatsappAddress turns "573001112222" or "+573001112222" into "whatsapp:+573001112222".
func whatsappAddress(phone string) string {
	return "whatsapp:+" + strings.TrimPrefix(NormalizePhone(phone), "+")
}
