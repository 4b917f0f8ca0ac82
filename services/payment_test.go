package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-storefront/models"
	"go-storefront/utils"
)

func successNotification() PaymentNotification {
	return PaymentNotification{
		MerchantID:    "1232710",
		OrderID:       "order_1700000000000",
		Amount:        "150",
		Currency:      "LKR",
		StatusCode:    "2",
		Items:         "Shoe X, Shoe Y",
		CustomerEmail: "a@b.com",
		Address:       "12 Galle Rd",
		City:          "Colombo",
	}
}

func TestWebhookCreatesPaidOrder(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	order, outcome, err := f.payments.HandleNotification(ctx, successNotification())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, models.StatusPaid, order.Status)
	assert.Equal(t, 150.0, order.TotalPrice)
	assert.Equal(t, "a@b.com", order.User)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Shoe X", order.Items[0].Name)
	assert.Equal(t, 1, order.Items[0].Qty)
	assert.Equal(t, "Shoe Y", order.Items[1].Name)
	assert.Equal(t, 1, order.Items[1].Qty)
	assert.Equal(t, "Sri Lanka", order.ShippingAddress.Country)
	assert.Equal(t, "order_1700000000000", order.Payment.GatewayOrderID)
}

func TestWebhookSnapshotsCatalogPrices(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	shoe := f.product(t, "Shoe X", 100, 25)

	n := successNotification()
	n.Items = "Shoe X x2"
	order, _, err := f.payments.HandleNotification(ctx, n)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Qty)
	assert.Equal(t, 75.0, order.Items[0].Price)
	require.NotNil(t, order.Items[0].ProductID)
	assert.Equal(t, shoe.ID, *order.Items[0].ProductID)
}

func TestWebhookIsIdempotent(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	first, outcome, err := f.payments.HandleNotification(ctx, successNotification())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	second, outcome, err := f.payments.HandleNotification(ctx, successNotification())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, first.ID, second.ID)

	orders, err := f.orders.ListOrders(ctx, "")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestWebhookConcurrentDeliveries(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	var wg sync.WaitGroup
	outcomes := make(chan WebhookOutcome, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, outcome, err := f.payments.HandleNotification(ctx, successNotification())
			assert.NoError(t, err)
			outcomes <- outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	created := 0
	for o := range outcomes {
		if o == OutcomeCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)
	orders, err := f.orders.ListOrders(ctx, "")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestWebhookIgnoresUnsuccessfulPayments(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	for _, code := range []string{"0", "-1", "-2", "-3"} {
		n := successNotification()
		n.StatusCode = code
		_, outcome, err := f.payments.HandleNotification(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, outcome)
	}
	orders, err := f.orders.ListOrders(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestWebhookMalformedPayloads(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	cases := map[string]func(*PaymentNotification){
		"status":         func(n *PaymentNotification) { n.StatusCode = "two" },
		"amount":         func(n *PaymentNotification) { n.Amount = "lots" },
		"negative":       func(n *PaymentNotification) { n.Amount = "-1" },
		"nan amount":     func(n *PaymentNotification) { n.Amount = "NaN" },
		"inf amount":     func(n *PaymentNotification) { n.Amount = "Inf" },
		"plus inf":       func(n *PaymentNotification) { n.Amount = "+Inf" },
		"minus infinity": func(n *PaymentNotification) { n.Amount = "-infinity" },
		"items":          func(n *PaymentNotification) { n.Items = " , " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			n := successNotification()
			mutate(&n)
			_, _, err := f.payments.HandleNotification(ctx, n)
			assert.True(t, utils.IsKind(err, utils.KindWebhookParse), "%v", err)
		})
	}
}

func TestWebhookWithoutOrderIDDerivesKey(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	n := PaymentNotification{StatusCode: "2", Items: "Shoe X, Shoe Y", Amount: "150", CustomerEmail: "a@b.com"}
	first, outcome, err := f.payments.HandleNotification(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, models.StatusPaid, first.Status)
	assert.Equal(t, 150.0, first.TotalPrice)
	require.Len(t, first.Items, 2)
	assert.Equal(t, 1, first.Items[0].Qty)
	assert.Equal(t, 1, first.Items[1].Qty)
	require.NotNil(t, first.Payment)
	assert.True(t, strings.HasPrefix(first.Payment.GatewayOrderID, "derived-"))

	// "150.00" is the same amount
	n.Amount = "150.00"
	second, outcome, err := f.payments.HandleNotification(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, first.ID, second.ID)

	n.Items = "Shoe X"
	_, outcome, err = f.payments.HandleNotification(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	orders, err := f.orders.ListOrders(ctx, "")
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestWebhookPrefersWholeCatalogName(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	runner := f.product(t, "Runner x2", 80, 0)
	f.product(t, "Runner", 50, 0)

	n := successNotification()
	n.Items = "Runner x2, Runner x3"
	order, _, err := f.payments.HandleNotification(ctx, n)
	require.NoError(t, err)
	require.Len(t, order.Items, 2)

	assert.Equal(t, "Runner x2", order.Items[0].Name)
	assert.Equal(t, 1, order.Items[0].Qty)
	assert.Equal(t, 80.0, order.Items[0].Price)
	require.NotNil(t, order.Items[0].ProductID)
	assert.Equal(t, runner.ID, *order.Items[0].ProductID)

	assert.Equal(t, "Runner", order.Items[1].Name)
	assert.Equal(t, 3, order.Items[1].Qty)
	assert.Equal(t, 50.0, order.Items[1].Price)
}

func TestWebhookSignature(t *testing.T) {
	f := newFixture(t, "merchant-secret")
	ctx := context.Background()

	n := successNotification()
	n.MD5Sig = "0123456789ABCDEF0123456789ABCDEF"
	_, _, err := f.payments.HandleNotification(ctx, n)
	assert.True(t, utils.IsKind(err, utils.KindUnauthorized))

	n.MD5Sig = Signature(n.MerchantID, n.OrderID, n.Amount, n.Currency, n.StatusCode, "merchant-secret")
	_, outcome, err := f.payments.HandleNotification(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	other := successNotification()
	other.MerchantID = "999"
	other.MD5Sig = Signature(other.MerchantID, other.OrderID, other.Amount, other.Currency, other.StatusCode, "merchant-secret")
	_, _, err = f.payments.HandleNotification(ctx, other)
	assert.True(t, utils.IsKind(err, utils.KindUnauthorized))
}

func TestSignatureFormat(t *testing.T) {
	sig := Signature("1232710", "order_1", "150.00", "LKR", "2", "secret")
	assert.Len(t, sig, 32)
	assert.Equal(t, sig, Signature("1232710", "order_1", "150.00", "LKR", "2", "secret"))
	assert.NotEqual(t, sig, Signature("1232710", "order_1", "150.01", "LKR", "2", "secret"))
}

func TestParseItems(t *testing.T) {
	assert.Equal(t, []ParsedItem{
		{Name: "Shoe X", Qty: 1, Raw: "Shoe X"},
		{Name: "Shoe Y", Qty: 1, Raw: "Shoe Y"},
	}, ParseItems("Shoe X, Shoe Y"))
	assert.Equal(t, []ParsedItem{
		{Name: "Shoe X", Qty: 3, Raw: "Shoe X x3"},
		{Name: "Hat", Qty: 1, Raw: "Hat"},
	}, ParseItems("Shoe X x3,Hat"))
	assert.Equal(t, []ParsedItem{{Name: "Box x0", Qty: 1, Raw: "Box x0"}}, ParseItems("Box x0"))
	assert.Empty(t, ParseItems(""))
	assert.Empty(t, ParseItems(" , ,"))
}
