package services

import (
	"context"
	"errors"
	"sync"
	"transferdesk/models"
	"transferdesk/utils"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSConfig holds Twilio credentials for the SMS delivery provider.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// SMSService delivers rendered SMS content through the Twilio REST API. It
// implements interfaces.DeliveryProvider for the sms channel.
type SMSService struct {
	config SMSConfig
	client *twilio.RestClient
}

func NewSMSService(config SMSConfig) *SMSService {
	var restClient *twilio.RestClient
	if config.AccountSID != "" && config.AuthToken != "" {
		restClient = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: config.AccountSID,
			Password: config.AuthToken,
		})
	}
	return &SMSService{config: config, client: restClient}
}

func (ss *SMSService) Channel() models.Channel {
	return models.ChannelSMS
}

// Send delivers one SMS. Twilio 429 and 5xx responses are reported as
// transient so the dispatcher retries them; 4xx responses (bad number,
// blocked recipient) are terminal.
func (ss *SMSService) Send(ctx context.Context, address string, content models.RenderedContent) error {
	if ss.client == nil {
		return utils.NewTerminalDeliveryError("twilio credentials not configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(address)
	params.SetFrom(ss.config.FromNumber)
	params.SetBody(utils.TruncateForSMS(content.Body, 160))

	_, err := ss.client.Api.CreateMessage(params)
	if err != nil {
		return ss.classify(err)
	}

	logrus.Debugf("SMS sent to %s", address)
	return nil
}

func (ss *SMSService) classify(err error) error {
	var restErr *client.TwilioRestError
	if errors.As(err, &restErr) {
		if restErr.Status == 429 || restErr.Status >= 500 {
			return utils.NewTransientDeliveryError(restErr.Message, err)
		}
		return utils.NewTerminalDeliveryError(restErr.Message, err)
	}
	return utils.NewTransientDeliveryError("twilio request failed", err)
}

// MockSMSProvider is an in-memory SMS provider used by seeding tooling and
// tests. It records every send.
type MockSMSProvider struct {
	mu   sync.Mutex
	Sent []MockDelivery
	Fail map[string]error // address -> error to return
}

func NewMockSMSProvider() *MockSMSProvider {
	return &MockSMSProvider{Fail: make(map[string]error)}
}

func (m *MockSMSProvider) Channel() models.Channel {
	return models.ChannelSMS
}

func (m *MockSMSProvider) Send(ctx context.Context, address string, content models.RenderedContent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Fail[address]; ok {
		return err
	}
	m.Sent = append(m.Sent, MockDelivery{Address: address, Content: content})
	return nil
}

// SentTo returns how many deliveries were recorded for an address.
func (m *MockSMSProvider) SentTo(address string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.Sent {
		if d.Address == address {
			n++
		}
	}
	return n
}
