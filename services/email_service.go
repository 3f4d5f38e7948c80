package services

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"sync"
	"transferdesk/models"
	"transferdesk/utils"

	"github.com/sirupsen/logrus"
)

// EmailConfig holds SMTP settings for the email delivery provider.
type EmailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// EmailService delivers rendered email content over SMTP. It implements
// interfaces.DeliveryProvider for the email channel.
type EmailService struct {
	config EmailConfig
}

func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config}
}

func (es *EmailService) Channel() models.Channel {
	return models.ChannelEmail
}

// Send delivers one message. SMTP 4xx replies and network-level errors are
// reported as transient so the dispatcher retries them; 5xx replies are
// terminal.
func (es *EmailService) Send(ctx context.Context, address string, content models.RenderedContent) error {
	if es.config.Host == "" {
		return utils.NewTerminalDeliveryError("smtp host not configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", es.config.Host, es.config.Port)
	auth := smtp.PlainAuth("", es.config.Username, es.config.Password, es.config.Host)
	msg := es.buildMessage(address, content)

	err := smtp.SendMail(addr, auth, es.config.FromEmail, []string{address}, msg)
	if err != nil {
		return es.classify(err)
	}

	logrus.Debugf("Email sent to %s", address)
	return nil
}

func (es *EmailService) buildMessage(to string, content models.RenderedContent) []byte {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", es.config.FromName, es.config.FromEmail))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", content.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(content.Body)
	return []byte(msg.String())
}

func (es *EmailService) classify(err error) error {
	if protoErr, ok := err.(*textproto.Error); ok {
		reason := fmt.Sprintf("smtp %d: %s", protoErr.Code, protoErr.Msg)
		if protoErr.Code >= 400 && protoErr.Code < 500 {
			return utils.NewTransientDeliveryError(reason, err)
		}
		return utils.NewTerminalDeliveryError(reason, err)
	}
	if _, ok := err.(net.Error); ok {
		return utils.NewTransientDeliveryError("smtp connection error", err)
	}
	return utils.NewTransientDeliveryError("smtp send failed", err)
}

// MockEmailProvider is an in-memory email provider used by the dry-run
// seeding tooling and tests. It records every send.
type MockEmailProvider struct {
	mu   sync.Mutex
	Sent []MockDelivery
	Fail map[string]error // address -> error to return
}

// MockDelivery is one recorded provider call.
type MockDelivery struct {
	Address string
	Content models.RenderedContent
}

func NewMockEmailProvider() *MockEmailProvider {
	return &MockEmailProvider{Fail: make(map[string]error)}
}

func (m *MockEmailProvider) Channel() models.Channel {
	return models.ChannelEmail
}

func (m *MockEmailProvider) Send(ctx context.Context, address string, content models.RenderedContent) error {
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
func (m *MockEmailProvider) SentTo(address string) int {
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
