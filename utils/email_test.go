package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"go-storefront/models"
)

type recordingMailer struct {
	to       []string
	subjects []string
	err      error
}

func (m *recordingMailer) Send(to, subject, _ string) error {
	m.to = append(m.to, to)
	m.subjects = append(m.subjects, subject)
	return m.err
}

func TestEmailServiceSkipsGuests(t *testing.T) {
	m := &recordingMailer{}
	es := NewEmailService(m, zap.NewNop())

	es.SendOrderConfirmationEmail(models.Order{User: "guest", Status: models.StatusPending})
	assert.Empty(t, m.to)

	es.SendOrderConfirmationEmail(models.Order{User: "a@b.com", Status: models.StatusPaid})
	es.SendStatusUpdateEmail(models.Order{User: "a@b.com", Status: models.StatusShipped})
	assert.Equal(t, []string{"a@b.com", "a@b.com"}, m.to)
	assert.Equal(t, []string{"Order Confirmation", "Order Status Updated"}, m.subjects)
}

func TestEmailServiceSwallowsFailures(t *testing.T) {
	es := NewEmailService(&recordingMailer{err: errors.New("smtp down")}, zap.NewNop())
	assert.NotPanics(t, func() {
		es.SendOrderConfirmationEmail(models.Order{User: "a@b.com"})
	})

	var nilService *EmailService
	assert.NotPanics(t, func() {
		nilService.SendStatusUpdateEmail(models.Order{User: "a@b.com"})
	})
}

func TestNewMailer(t *testing.T) {
	_, err := NewMailer(Config{EmailProvider: "postmark"}, zap.NewNop())
	assert.Error(t, err)
	_, err = NewMailer(Config{EmailProvider: "sendgrid"}, zap.NewNop())
	assert.Error(t, err)
	_, err = NewMailer(Config{EmailProvider: "carrier-pigeon"}, zap.NewNop())
	assert.Error(t, err)

	m, err := NewMailer(Config{EmailProvider: "none"}, zap.NewNop())
	assert.NoError(t, err)
	assert.NoError(t, m.Send("a@b.com", "hi", "body"))

	m, err = NewMailer(Config{EmailProvider: "sendgrid", SendGridKey: "key", EmailSender: "shop@example.com"}, zap.NewNop())
	assert.NoError(t, err)
	assert.NotNil(t, m)
}
