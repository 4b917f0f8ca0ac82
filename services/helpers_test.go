package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-storefront/models"
	"go-storefront/store"
	"go-storefront/utils"
)

type recordingMailer struct {
	subjects []string
}

func (m *recordingMailer) Send(_, subject, _ string) error {
	m.subjects = append(m.subjects, subject)
	return nil
}

type fixture struct {
	store    *store.Memory
	mailer   *recordingMailer
	orders   *OrderService
	carts    *CartService
	payments *PaymentService
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	mem := store.NewMemory()
	mailer := &recordingMailer{}
	logger := zap.NewNop()
	orders := NewOrderService(mem, utils.NewEmailService(mailer, logger), logger)
	return &fixture{
		store:    mem,
		mailer:   mailer,
		orders:   orders,
		carts:    NewCartService(mem, mem, orders, logger),
		payments: NewPaymentService(orders, mem, "1232710", secret, logger),
	}
}

func (f *fixture) product(t *testing.T, name string, price, discount float64) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: price, Discount: discount, CountInStock: 10}
	require.NoError(t, f.store.CreateProduct(context.Background(), &p))
	return p
}
