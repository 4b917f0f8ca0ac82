package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-storefront/controllers"
	"go-storefront/middleware"
	"go-storefront/models"
	"go-storefront/routes"
	"go-storefront/services"
	"go-storefront/store"
	"go-storefront/utils"
)

type testAPI struct {
	router http.Handler
	store  *store.Memory
	tokens utils.Tokens
}

func newTestAPI(t *testing.T, secret string, limiter *middleware.RateLimiter) *testAPI {
	t.Helper()
	mem := store.NewMemory()
	logger := zap.NewNop()
	orders := services.NewOrderService(mem, nil, logger)
	carts := services.NewCartService(mem, mem, orders, logger)
	payments := services.NewPaymentService(orders, mem, "1232710", secret, logger)
	tokens := utils.Tokens{Key: []byte("test-secret"), TTL: time.Hour}

	router := routes.NewRouter(routes.Controllers{
		Products: controllers.NewProductController(mem, logger),
		Cart:     controllers.NewCartController(carts, logger),
		Orders:   controllers.NewOrderController(orders, payments, logger),
	}, routes.Options{
		Tokens:   tokens,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Limiter:  limiter,
	})
	return &testAPI{router: router, store: mem, tokens: tokens}
}

func (a *testAPI) token(t *testing.T, email, role string) string {
	t.Helper()
	tok, err := a.tokens.Generate(email, role)
	require.NoError(t, err)
	return "Bearer " + tok
}

func (a *testAPI) product(t *testing.T, name string, price, discount float64) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: price, Discount: discount, CountInStock: 5, Category: "shoes"}
	require.NoError(t, a.store.CreateProduct(context.Background(), &p))
	return p
}

// do sends a JSON request; headers are name/value pairs
func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) notify(t *testing.T, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/orders/notify", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func guest(id string) []string { return []string{controllers.CartSessionHeader, id} }

func TestGuestCartTotals(t *testing.T) {
	api := newTestAPI(t, "", nil)
	a := api.product(t, "A", 100, 10)
	b := api.product(t, "B", 50, 0)

	rec := api.do(t, http.MethodPost, "/api/cart", map[string]any{"productId": a.ID.Hex(), "quantity": 2}, guest("s1")...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = api.do(t, http.MethodPost, "/api/cart", map[string]any{"productId": b.ID.Hex()}, guest("s1")...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/cart", nil, guest("s1")...)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[models.CartView](t, rec)
	assert.Equal(t, "guest:s1", view.Owner)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, 3, view.ItemCount)
	assert.Equal(t, 250.0, view.Subtotal)
	assert.Equal(t, 20.0, view.DiscountTotal)
	assert.Equal(t, 230.0, view.GrandTotal)
}

func TestCartRequiresIdentity(t *testing.T) {
	api := newTestAPI(t, "", nil)
	rec := api.do(t, http.MethodGet, "/api/cart", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), controllers.CartSessionHeader)
}

func TestCartsAreScopedPerOwner(t *testing.T) {
	api := newTestAPI(t, "", nil)
	a := api.product(t, "A", 10, 0)

	rec := api.do(t, http.MethodPost, "/api/cart", map[string]any{"productId": a.ID.Hex()}, guest("s1")...)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/cart", nil, guest("s2")...)
	assert.Empty(t, decode[models.CartView](t, rec).Items)

	// signing in does not pick up the guest cart
	rec = api.do(t, http.MethodGet, "/api/cart", nil,
		"Authorization", api.token(t, "a@b.com", models.RoleUser), controllers.CartSessionHeader, "s1")
	view := decode[models.CartView](t, rec)
	assert.Equal(t, "user:a@b.com", view.Owner)
	assert.Empty(t, view.Items)
}

func TestCartUpdateAndRemove(t *testing.T) {
	api := newTestAPI(t, "", nil)
	a := api.product(t, "A", 10, 0)
	path := "/api/cart/" + a.ID.Hex()

	rec := api.do(t, http.MethodPut, path, map[string]any{"quantity": 3}, guest("s1")...)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	api.do(t, http.MethodPost, "/api/cart", map[string]any{"productId": a.ID.Hex()}, guest("s1")...)
	rec = api.do(t, http.MethodPut, path, map[string]any{"quantity": 3}, guest("s1")...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[models.CartView](t, rec).Items[0].Quantity)

	rec = api.do(t, http.MethodPut, path, map[string]any{}, guest("s1")...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, path, map[string]any{"quantity": 0}, guest("s1")...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.CartView](t, rec).Items)

	rec = api.do(t, http.MethodDelete, path, nil, guest("s1")...)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCartRejectsBadInput(t *testing.T) {
	api := newTestAPI(t, "", nil)
	a := api.product(t, "A", 10, 0)

	rec := api.do(t, http.MethodPost, "/api/cart", map[string]any{"productId": a.ID.Hex(), "quantity": 0}, guest("s1")...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(t, http.MethodPost, "/api/cart", map[string]any{"productId": "nope"}, guest("s1")...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(t, http.MethodPost, "/api/cart", map[string]any{"productId": "0123456789abcdef01234567"}, guest("s1")...)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	api := newTestAPI(t, "", nil)
	a := api.product(t, "A", 100, 10)
	user := api.token(t, "a@b.com", models.RoleUser)

	rec := api.do(t, http.MethodPost, "/api/cart/checkout", nil, "Authorization", user)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty cart")

	api.do(t, http.MethodPost, "/api/cart", map[string]any{"productId": a.ID.Hex(), "quantity": 2}, "Authorization", user)
	rec = api.do(t, http.MethodPost, "/api/cart/checkout",
		map[string]any{"shippingAddress": map[string]string{"city": "Kandy"}}, "Authorization", user)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[models.Order](t, rec)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, "a@b.com", order.User)
	assert.Equal(t, 180.0, order.TotalPrice)
	assert.Equal(t, "Kandy", order.ShippingAddress.City)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 90.0, order.Items[0].Price)

	rec = api.do(t, http.MethodGet, "/api/cart", nil, "Authorization", user)
	assert.Empty(t, decode[models.CartView](t, rec).Items)

	rec = api.do(t, http.MethodGet, "/api/orders", nil, "Authorization", user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Order](t, rec), 1)
}

func createOrder(t *testing.T, api *testAPI, auth string) models.Order {
	t.Helper()
	rec := api.do(t, http.MethodPost, "/api/orders", map[string]any{
		"user":  "spoofed@example.com",
		"items": []map[string]any{{"name": "Shoe", "qty": 2, "price": 25}},
	}, "Authorization", auth)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Order](t, rec)
}

func TestCreateOrderUsesCaller(t *testing.T) {
	api := newTestAPI(t, "", nil)
	order := createOrder(t, api, api.token(t, "a@b.com", models.RoleUser))
	assert.Equal(t, "a@b.com", order.User)
	assert.Equal(t, 50.0, order.TotalPrice)
	assert.Equal(t, models.StatusPending, order.Status)

	rec := api.do(t, http.MethodPost, "/api/orders", map[string]any{"user": "x", "items": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderVisibility(t *testing.T) {
	api := newTestAPI(t, "", nil)
	owner := api.token(t, "a@b.com", models.RoleUser)
	other := api.token(t, "c@d.com", models.RoleUser)
	admin := api.token(t, "root@shop.com", models.RoleAdmin)
	order := createOrder(t, api, owner)
	path := "/api/orders/" + order.ID.Hex()

	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, path, nil, "Authorization", owner).Code)
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, path, nil, "Authorization", admin).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, path, nil, "Authorization", other).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(t, http.MethodGet, path, nil).Code)

	rec := api.do(t, http.MethodGet, "/api/orders", nil, "Authorization", other)
	assert.Empty(t, decode[[]models.Order](t, rec))
	rec = api.do(t, http.MethodGet, "/api/orders", nil, "Authorization", admin)
	assert.Len(t, decode[[]models.Order](t, rec), 1)
}

func TestOrderStatusTransitions(t *testing.T) {
	api := newTestAPI(t, "", nil)
	admin := api.token(t, "root@shop.com", models.RoleAdmin)
	user := api.token(t, "a@b.com", models.RoleUser)
	order := createOrder(t, api, user)
	path := "/api/orders/" + order.ID.Hex()

	rec := api.do(t, http.MethodPut, path, map[string]any{"status": "paid"}, "Authorization", user)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, status := range []string{"paid", "shipped", "delivered"} {
		rec = api.do(t, http.MethodPut, path, map[string]any{"status": status}, "Authorization", admin)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, models.OrderStatus(status), decode[models.Order](t, rec).Status)
	}

	rec = api.do(t, http.MethodPut, path, map[string]any{"status": "pending"}, "Authorization", admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = api.do(t, http.MethodPut, path, map[string]any{"status": "refunded"}, "Authorization", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(t, http.MethodPut, path, map[string]any{"shippingAddress": map[string]string{"city": "Galle"}}, "Authorization", admin)
	assert.Equal(t, http.StatusConflict, rec.Code, "terminal orders keep their address")
	rec = api.do(t, http.MethodPut, path, map[string]any{}, "Authorization", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateOrderIsAllOrNothing(t *testing.T) {
	api := newTestAPI(t, "", nil)
	admin := api.token(t, "root@shop.com", models.RoleAdmin)
	order := createOrder(t, api, admin)
	path := "/api/orders/" + order.ID.Hex()
	address := map[string]string{"city": "New"}

	rec := api.do(t, http.MethodPut, path, map[string]any{"status": "bogus", "shippingAddress": address}, "Authorization", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(t, http.MethodPut, path, map[string]any{"status": "delivered", "shippingAddress": address}, "Authorization", admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	stored, err := api.store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ShippingAddress.City)
	assert.Equal(t, models.StatusPending, stored.Status)

	rec = api.do(t, http.MethodPut, path, map[string]any{"status": " Paid ", "shippingAddress": address}, "Authorization", admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Order](t, rec)
	assert.Equal(t, models.StatusPaid, updated.Status)
	assert.Equal(t, "New", updated.ShippingAddress.City)
}

func TestDeleteOrder(t *testing.T) {
	api := newTestAPI(t, "", nil)
	admin := api.token(t, "root@shop.com", models.RoleAdmin)
	order := createOrder(t, api, admin)
	path := "/api/orders/" + order.ID.Hex()

	assert.Equal(t, http.StatusOK, api.do(t, http.MethodDelete, path, nil, "Authorization", admin).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, path, nil, "Authorization", admin).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodDelete, "/api/orders/xyz", nil, "Authorization", admin).Code)
}

func webhookForm() url.Values {
	return url.Values{
		"merchant_id":      {"1232710"},
		"order_id":         {"ord-77"},
		"payhere_amount":   {"150.00"},
		"payhere_currency": {"LKR"},
		"status_code":      {"2"},
		"items":            {"Shoe X, Shoe Y"},
		"customer_email":   {"a@b.com"},
		"address":          {"12 Galle Rd"},
		"zip":              {"00300"},
	}
}

func TestPaymentNotifyIsIdempotent(t *testing.T) {
	api := newTestAPI(t, "", nil)

	for i := 0; i < 2; i++ {
		rec := api.notify(t, webhookForm())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "OK", rec.Body.String())
	}

	orders, err := api.store.ListOrders(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.StatusPaid, orders[0].Status)
	assert.Equal(t, 150.0, orders[0].TotalPrice)
	assert.Equal(t, "00300", orders[0].ShippingAddress.PostalCode)
	assert.Len(t, orders[0].Items, 2)
}

func TestPaymentNotifyAcceptsJSON(t *testing.T) {
	api := newTestAPI(t, "", nil)
	rec := api.do(t, http.MethodPost, "/api/orders/notify", map[string]any{
		"status_code":    2,
		"order_id":       "ord-json",
		"amount":         150,
		"items":          "Shoe X, Shoe Y",
		"customer_email": "a@b.com",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	orders, err := api.store.ListOrders(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 150.0, orders[0].TotalPrice)
}

func TestPaymentNotifyWithoutOrderID(t *testing.T) {
	api := newTestAPI(t, "", nil)
	const payload = `{"status_code":2,"items":"Shoe X, Shoe Y","amount":150,"customer_email":"a@b.com"}`

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/orders/notify", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "OK", rec.Body.String())
	}

	orders, err := api.store.ListOrders(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.StatusPaid, orders[0].Status)
	assert.Equal(t, 150.0, orders[0].TotalPrice)
	assert.Equal(t, "a@b.com", orders[0].User)
	require.Len(t, orders[0].Items, 2)
	assert.Equal(t, "Shoe X", orders[0].Items[0].Name)
	assert.Equal(t, 1, orders[0].Items[0].Qty)
	assert.Equal(t, "Shoe Y", orders[0].Items[1].Name)
	assert.Equal(t, 1, orders[0].Items[1].Qty)
}

func TestPaymentNotifyRejectsNonFiniteAmount(t *testing.T) {
	api := newTestAPI(t, "", nil)
	for _, amount := range []string{"NaN", "Inf", "+Inf"} {
		form := webhookForm()
		form.Set("payhere_amount", amount)
		assert.Equal(t, http.StatusInternalServerError, api.notify(t, form).Code, amount)
	}
	orders, err := api.store.ListOrders(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPaymentNotifyRejections(t *testing.T) {
	const secret = "s3cret"
	api := newTestAPI(t, secret, nil)

	form := webhookForm()
	form.Set("md5sig", "DEADBEEF")
	assert.Equal(t, http.StatusUnauthorized, api.notify(t, form).Code)

	form = webhookForm()
	form.Set("md5sig", services.Signature("1232710", "ord-77", "150.00", "LKR", "2", secret))
	assert.Equal(t, http.StatusOK, api.notify(t, form).Code)

	form = webhookForm()
	form.Del("status_code")
	assert.Equal(t, http.StatusInternalServerError, api.notify(t, form).Code)

	form = webhookForm()
	form.Set("status_code", "-2")
	form.Set("md5sig", services.Signature("1232710", "ord-77", "150.00", "LKR", "-2", secret))
	rec := api.notify(t, form)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	orders, err := api.store.ListOrders(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestPaymentNotifyRateLimited(t *testing.T) {
	api := newTestAPI(t, "", middleware.NewRateLimiter(0.001, 1))
	form := webhookForm()
	form.Set("status_code", "0")

	assert.Equal(t, http.StatusOK, api.notify(t, form).Code)
	rec := api.notify(t, form)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestProductRoutes(t *testing.T) {
	api := newTestAPI(t, "", nil)
	admin := api.token(t, "root@shop.com", models.RoleAdmin)
	api.product(t, "Cheap", 5, 0)
	api.product(t, "Pricey", 500, 0)

	rec := api.do(t, http.MethodGet, "/api/products?minPrice=10&category=shoes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	products := decode[[]models.Product](t, rec)
	require.Len(t, products, 1)
	assert.Equal(t, "Pricey", products[0].Name)

	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/api/products?maxPrice=lots", nil).Code)

	body := map[string]any{"name": "Hat", "price": 20, "discount": 150}
	assert.Equal(t, http.StatusUnauthorized, api.do(t, http.MethodPost, "/api/products", body).Code)
	rec = api.do(t, http.MethodPost, "/api/products", body, "Authorization", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Discount")

	body["discount"] = 15
	rec = api.do(t, http.MethodPost, "/api/products", body, "Authorization", admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	hat := decode[models.Product](t, rec)

	body["price"] = 25
	rec = api.do(t, http.MethodPut, "/api/products/"+hat.ID.Hex(), body, "Authorization", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 25.0, decode[models.Product](t, rec).Price)

	assert.Equal(t, http.StatusOK, api.do(t, http.MethodDelete, "/api/products/"+hat.ID.Hex(), nil, "Authorization", admin).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/products/"+hat.ID.Hex(), nil).Code)
}

func TestRouterExtras(t *testing.T) {
	api := newTestAPI(t, "", nil)

	rec := api.do(t, http.MethodGet, "/api/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Route not found"}`, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/products", nil, middleware.RequestIDHeader, "req-1")
	assert.Equal(t, "req-1", rec.Header().Get(middleware.RequestIDHeader))

	rec = api.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storefront_http_requests_total{method="GET",route="/api/products",status="200"} 1`)

	rec = api.do(t, http.MethodGet, "/api/orders", nil, "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
