// utils/email.go
package utils

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"go-storefront/models"
)

// Mailer delivers a single e-mail
type Mailer interface {
	Send(to, subject, htmlContent string) error
}

type postmarkMailer struct {
	client *postmark.Client
	from   string
}

func (m *postmarkMailer) Send(to, subject, htmlContent string) error {
	_, err := m.client.SendEmail(postmark.Email{
		From:     m.from,
		To:       to,
		Subject:  subject,
		HtmlBody: htmlContent,
		TextBody: htmlContent,
	})
	if err != nil {
		return fmt.Errorf("postmark: %w", err)
	}
	return nil
}

type sendgridMailer struct {
	client *sendgrid.Client
	from   string
}

func (m *sendgridMailer) Send(to, subject, htmlContent string) error {
	message := mail.NewSingleEmail(mail.NewEmail("", m.from), subject, mail.NewEmail("", to), htmlContent, htmlContent)
	resp, err := m.client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d", resp.StatusCode)
	}
	return nil
}

// logMailer only records what would have been sent
type logMailer struct {
	logger *zap.Logger
}

func (m *logMailer) Send(to, subject, _ string) error {
	m.logger.Info("email delivery disabled", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// NewMailer picks the provider named in the config
func NewMailer(cfg Config, logger *zap.Logger) (Mailer, error) {
	switch cfg.EmailProvider {
	case "postmark":
		if cfg.PostmarkToken == "" {
			return nil, fmt.Errorf("POSTMARK_API_TOKEN is not set")
		}
		return &postmarkMailer{client: postmark.NewClient(cfg.PostmarkToken, ""), from: cfg.EmailSender}, nil
	case "sendgrid":
		if cfg.SendGridKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is not set")
		}
		return &sendgridMailer{client: sendgrid.NewSendClient(cfg.SendGridKey), from: cfg.EmailSender}, nil
	case "", "none":
		return &logMailer{logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
}

// EmailService sends the order notification e-mails
type EmailService struct {
	mailer Mailer
	logger *zap.Logger
}

// NewEmailService wraps a mailer with the order templates
func NewEmailService(mailer Mailer, logger *zap.Logger) *EmailService {
	return &EmailService{mailer: mailer, logger: logger}
}

// SendOrderConfirmationEmail sends an order confirmation email to the user
func (es *EmailService) SendOrderConfirmationEmail(order models.Order) {
	var lines strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&lines, "<li>%s x%d - $%.2f</li>", item.Name, item.Qty, item.Price)
	}
	htmlContent := fmt.Sprintf(
		"<strong>Dear Customer,</strong><br><br>Thank you for your purchase! Your order (ID: %s) has been placed with status <strong>%s</strong>.<ul>%s</ul>Total Amount: <strong>$%.2f</strong><br><br>Thank you for shopping with us!",
		order.ID.Hex(),
		order.Status,
		lines.String(),
		order.TotalPrice,
	)
	es.deliver(order, "Order Confirmation", htmlContent)
}

// SendStatusUpdateEmail notifies the user that the order status changed
func (es *EmailService) SendStatusUpdateEmail(order models.Order) {
	htmlContent := fmt.Sprintf(
		"<strong>Dear Customer,</strong><br><br>Your order (ID: %s) status has been updated to <strong>%s</strong>.<br><br>Thank you for shopping with us!",
		order.ID.Hex(),
		order.Status,
	)
	es.deliver(order, "Order Status Updated", htmlContent)
}

// deliver sends to the order's user when it is an e-mail address. Delivery
// failures never fail the order operation.
func (es *EmailService) deliver(order models.Order, subject, htmlContent string) {
	if es == nil || !strings.Contains(order.User, "@") {
		return
	}
	if err := es.mailer.Send(order.User, subject, htmlContent); err != nil {
		es.logger.Warn("failed to send email",
			zap.String("to", order.User),
			zap.String("order_id", order.ID.Hex()),
			zap.Error(err))
	}
}
