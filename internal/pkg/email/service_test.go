package email

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaarahi/storefront/internal/config"
)

func newTestService(provider string) *EmailService {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewEmailService(
		config.EmailConfig{Provider: provider, FromEmail: "orders@vaarahi.test", FromName: "Vaarahi"},
		config.AppConfig{CompanyName: "Vaarahi", BaseURL: "http://shop.test/"},
		log,
	)
}

func TestSendOrderConfirmation_LogProvider(t *testing.T) {
	s := newTestService(ProviderLog)

	err := s.SendOrderConfirmation(context.Background(), OrderConfirmationData{
		EmailTemplateData: EmailTemplateData{UserName: "Asha", UserEmail: "asha@example.com"},
		OrderID:           "ORD1700000000000",
		OrderTotal:        "₹304.95",
		Items:             []OrderItem{{Name: "Chair", Quantity: 1, Price: "₹98.85", Total: "₹98.85"}},
	})
	require.NoError(t, err)

	sent := s.Outbox()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"asha@example.com"}, sent[0].To)
	assert.Equal(t, "Order Confirmation - ORD1700000000000", sent[0].Subject)
	assert.Contains(t, sent[0].HTMLContent, "Chair")
	assert.Contains(t, sent[0].HTMLContent, "http://shop.test/order-confirmation.html?orderId=ORD1700000000000")
}

func TestSendEmail_Errors(t *testing.T) {
	s := newTestService(ProviderLog)
	assert.Error(t, s.SendEmail(context.Background(), &Email{Subject: "x"}))

	unknown := newTestService("carrier-pigeon")
	assert.Error(t, unknown.SendEmail(context.Background(), &Email{To: []string{"a@b.c"}}))

	smtpNoHost := newTestService(ProviderSMTP)
	err := smtpNoHost.SendEmail(context.Background(), &Email{To: []string{"a@b.c"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP configuration incomplete")
}

func TestBuildMessageHeaderOrder(t *testing.T) {
	msg := string(buildMessage("Vaarahi <orders@vaarahi.test>", &Email{
		To:          []string{"a@b.c", "d@e.f"},
		Subject:     "Hi",
		HTMLContent: "<p>body</p>",
	}))
	assert.True(t, strings.HasPrefix(msg, "From: Vaarahi <orders@vaarahi.test>\r\nTo: a@b.c, d@e.f\r\nSubject: Hi\r\n"))
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<p>body</p>"))
}
