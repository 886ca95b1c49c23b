// internal/pkg/email/service.go
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/config"
)

const (
	ProviderLog  = "log"
	ProviderSMTP = "smtp"
)

// EmailService renders and delivers transactional email.
type EmailService struct {
	config    config.EmailConfig
	siteName  string
	siteURL   string
	templates map[EmailType]*template.Template
	log       logrus.FieldLogger

	mu     sync.Mutex
	outbox []Email
}

// NewEmailService creates a new email service
func NewEmailService(cfg config.EmailConfig, app config.AppConfig, log logrus.FieldLogger) *EmailService {
	s := &EmailService{
		config:    cfg,
		siteName:  app.CompanyName,
		siteURL:   strings.TrimSuffix(app.BaseURL, "/"),
		templates: make(map[EmailType]*template.Template),
		log:       log.WithField("component", "email"),
	}
	s.templates[EmailTypeOrderConfirmation] = template.Must(template.New("order_confirmation").Parse(orderConfirmationTemplate))
	return s
}

// SendEmail sends an email using the configured provider
func (s *EmailService) SendEmail(ctx context.Context, email *Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	switch s.config.Provider {
	case ProviderSMTP:
		return s.sendSMTPEmail(email)
	case ProviderLog, "":
		s.mu.Lock()
		s.outbox = append(s.outbox, *email)
		s.mu.Unlock()
		s.log.WithFields(logrus.Fields{
			"to":      email.To,
			"subject": email.Subject,
			"type":    email.Type,
		}).Info("Email recorded (log provider)")
		return nil
	default:
		return fmt.Errorf("unsupported email provider: %s", s.config.Provider)
	}
}

// SendOrderConfirmation sends the order confirmation email
func (s *EmailService) SendOrderConfirmation(ctx context.Context, data OrderConfirmationData) error {
	data.EmailTemplateData = GetBaseTemplateData(s.siteName, s.siteURL, data.UserName, data.UserEmail)
	if data.OrderURL == "" {
		data.OrderURL = fmt.Sprintf("%s/order-confirmation.html?orderId=%s", s.siteURL, data.OrderID)
	}

	htmlContent, err := s.renderTemplate(EmailTypeOrderConfirmation, data)
	if err != nil {
		return fmt.Errorf("failed to render order confirmation template: %w", err)
	}

	email := &Email{
		To:          []string{data.UserEmail},
		Subject:     fmt.Sprintf("Order Confirmation - %s", data.OrderID),
		HTMLContent: htmlContent,
		Type:        EmailTypeOrderConfirmation,
		Data: map[string]interface{}{
			"order_id":    data.OrderID,
			"order_total": data.OrderTotal,
		},
	}

	return s.SendEmail(ctx, email)
}

// Outbox returns the messages recorded by the log provider.
func (s *EmailService) Outbox() []Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Email, len(s.outbox))
	copy(out, s.outbox)
	return out
}

// renderTemplate renders an email template with data
func (s *EmailService) renderTemplate(t EmailType, data interface{}) (string, error) {
	tmpl, exists := s.templates[t]
	if !exists {
		return "", fmt.Errorf("template %s not found", t)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", t, err)
	}

	return buf.String(), nil
}

const orderConfirmationTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.SiteName}} - Order {{.OrderID}}</title>
</head>
<body style="font-family: Arial, sans-serif; margin: 0; padding: 20px; background-color: #f4f4f4;">
    <div style="max-width: 600px; margin: 0 auto; background-color: white; padding: 20px; border-radius: 8px;">
        <h1 style="color: #333;">{{.SiteName}}</h1>
        <p>Hello {{.UserName}},</p>
        <p>Thank you for shopping with us. Your order <strong>{{.OrderID}}</strong> has been placed on {{.OrderDate}}.</p>
        <table style="width: 100%; border-collapse: collapse;">
            <tr><th align="left">Item</th><th align="right">Qty</th><th align="right">Price</th><th align="right">Total</th></tr>
            {{range .Items}}<tr><td>{{.Name}}</td><td align="right">{{.Quantity}}</td><td align="right">{{.Price}}</td><td align="right">{{.Total}}</td></tr>
            {{end}}
        </table>
        <p><strong>Amount paid: {{.OrderTotal}}</strong></p>
        <p>Transaction: {{.TransactionID}}</p>
        <p>Delivering to:<br>{{.Address.Name}}<br>{{.Address.Street}}<br>{{.Address.City}}, {{.Address.State}} {{.Address.Pincode}}<br>{{.Address.Phone}}</p>
        <p><a href="{{.OrderURL}}">View your order</a></p>
        <hr>
        <p style="font-size: 12px; color: #666;">&copy; {{.Year}} {{.SiteName}}. All rights reserved.</p>
    </div>
</body>
</html>`
