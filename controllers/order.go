// controllers/order.go
package controllers

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"go-storefront/middleware"
	"go-storefront/models"
	"go-storefront/services"
	"go-storefront/utils"
)

// OrderController handles order-related requests
type OrderController struct {
	Orders   *services.OrderService
	Payments *services.PaymentService
	Logger   *zap.Logger
}

// NewOrderController creates a new OrderController
func NewOrderController(orders *services.OrderService, payments *services.PaymentService, logger *zap.Logger) *OrderController {
	return &OrderController{Orders: orders, Payments: payments, Logger: logger}
}

// CreateOrder places a pending order from an explicit item list. Signed-in
// non-admin callers always order for themselves.
func (oc *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var in services.NewOrder
	if err := decodeJSON(r, &in); err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}
	if claims, ok := middleware.ClaimsFrom(r.Context()); ok && claims.Role != models.RoleAdmin {
		in.User = claims.Email
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.CreateOrder(ctx, in)
	if err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, order)
}

// GetOrders lists every order for admins and the caller's own otherwise
func (oc *OrderController) GetOrders(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.WriteError(w, oc.Logger, utils.UnauthorizedError("Unauthorized"))
		return
	}
	user := claims.Email
	if claims.Role == models.RoleAdmin {
		user = ""
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	orders, err := oc.Orders.ListOrders(ctx, user)
	if err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

// GetOrder returns one order to an admin or to its owner
func (oc *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.WriteError(w, oc.Logger, utils.UnauthorizedError("Unauthorized"))
		return
	}
	id, err := pathID(r, "id", "order")
	if err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.GetOrder(ctx, id)
	if err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}
	if claims.Role != models.RoleAdmin && order.User != claims.Email {
		utils.WriteError(w, oc.Logger, utils.NotFoundError("Order not found"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// UpdateOrder changes the status and/or shipping address (Admin only)
func (oc *OrderController) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "order")
	if err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}
	var body struct {
		Status          *string                 `json:"status"`
		ShippingAddress *models.ShippingAddress `json:"shippingAddress"`
	}
	if err := decodeJSON(r, &body); err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}
	if body.Status != nil {
		normalized := strings.ToLower(strings.TrimSpace(*body.Status))
		body.Status = &normalized
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.UpdateOrder(ctx, id, body.Status, body.ShippingAddress)
	if err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// DeleteOrder removes an order (Admin only)
func (oc *OrderController) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "order")
	if err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	if err := oc.Orders.DeleteOrder(ctx, id); err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}
	utils.WriteMessage(w, http.StatusOK, "Order deleted successfully")
}

// PaymentNotify receives the payment gateway webhook. Anything short of a
// parse or persistence failure is acknowledged so the gateway stops retrying.
func (oc *OrderController) PaymentNotify(w http.ResponseWriter, r *http.Request) {
	notification, err := readNotification(r)
	if err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, outcome, err := oc.Payments.HandleNotification(ctx, notification)
	if err != nil {
		oc.Logger.Warn("payment notification rejected",
			zap.String("gateway_order_id", notification.OrderID),
			zap.Error(err))
		utils.WriteError(w, oc.Logger, err)
		return
	}
	if outcome != services.OutcomeIgnored {
		oc.Logger.Info("payment notification processed",
			zap.String("gateway_order_id", notification.OrderID),
			zap.String("order_id", order.ID.Hex()),
			zap.String("outcome", string(outcome)))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// readNotification accepts the gateway's form post or an equivalent JSON body
func readNotification(r *http.Request) (services.PaymentNotification, error) {
	var get func(string) string

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		raw := map[string]any{}
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return services.PaymentNotification{}, utils.WebhookParseError("malformed JSON payload")
		}
		get = func(key string) string {
			v, ok := raw[key]
			if !ok || v == nil {
				return ""
			}
			return strings.TrimSpace(fmt.Sprint(v))
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return services.PaymentNotification{}, utils.WebhookParseError("malformed form payload")
		}
		get = func(key string) string { return strings.TrimSpace(r.PostForm.Get(key)) }
	}

	first := func(keys ...string) string {
		for _, k := range keys {
			if v := get(k); v != "" {
				return v
			}
		}
		return ""
	}
	return services.PaymentNotification{
		MerchantID:    first("merchant_id"),
		OrderID:       first("order_id"),
		Amount:        first("payhere_amount", "amount"),
		Currency:      first("payhere_currency", "currency"),
		StatusCode:    first("status_code"),
		MD5Sig:        first("md5sig"),
		Items:         first("items"),
		CustomerEmail: first("customer_email", "email"),
		Address:       first("address", "shipping_address"),
		Address2:      first("address2"),
		City:          first("city"),
		State:         first("state"),
		PostalCode:    first("zip", "postal_code"),
		Country:       first("country"),
	}, nil
}
