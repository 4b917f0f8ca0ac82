// Package services holds the cart, order and payment business logic. HTTP
// handlers call into it; persistence is reached through the store ports.
package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"go-storefront/models"
	"go-storefront/pricing"
	"go-storefront/store"
	"go-storefront/utils"
)

// totalTolerance is the accepted gap between a supplied and computed total
const totalTolerance = 0.01

// NewOrder is the input for manual order creation
type NewOrder struct {
	User            string                 `json:"user" validate:"required"`
	Items           []models.OrderItem     `json:"items" validate:"required,min=1,dive"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	TotalPrice      *float64               `json:"totalPrice,omitempty"`
}

// OrderService owns order creation and the status lifecycle
type OrderService struct {
	orders store.OrderStore
	email  *utils.EmailService
	logger *zap.Logger
	now    func() time.Time
}

// NewOrderService creates a new OrderService
func NewOrderService(orders store.OrderStore, email *utils.EmailService, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders: orders,
		email:  email,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder validates and persists a pending order. A missing total is
// computed from the lines; a supplied one must agree with them.
func (s *OrderService) CreateOrder(ctx context.Context, in NewOrder) (models.Order, error) {
	in.User = strings.TrimSpace(in.User)
	if in.User == "" || len(in.Items) == 0 {
		return models.Order{}, utils.ValidationError("user and items are required")
	}
	if err := utils.Validate(in); err != nil {
		return models.Order{}, err
	}

	prices := make([]float64, len(in.Items))
	quantities := make([]int, len(in.Items))
	for i, item := range in.Items {
		prices[i], quantities[i] = item.Price, item.Qty
	}
	computed := pricing.Money(pricing.Snapshot(prices, quantities))
	total := computed
	if in.TotalPrice != nil {
		if *in.TotalPrice < 0 {
			return models.Order{}, utils.ValidationError("totalPrice must be >= 0")
		}
		if math.Abs(*in.TotalPrice-computed) > totalTolerance {
			return models.Order{}, utils.ValidationError("totalPrice %.2f does not match item total %.2f", *in.TotalPrice, computed)
		}
		total = *in.TotalPrice
	}

	now := s.now()
	order := models.Order{
		User:            in.User,
		Items:           append([]models.OrderItem{}, in.Items...),
		ShippingAddress: in.ShippingAddress,
		TotalPrice:      total,
		Status:          models.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.orders.InsertOrder(ctx, &order); err != nil {
		return models.Order{}, utils.PersistenceError("Server error while creating order", err)
	}
	s.logger.Info("order created",
		zap.String("order_id", order.ID.Hex()),
		zap.String("user", order.User),
		zap.Float64("total", order.TotalPrice))
	s.email.SendOrderConfirmationEmail(order)
	return order, nil
}

// RecordPaidOrder persists an order created from a confirmed payment. It
// reports false, with the stored order, when the gateway order id was seen
// before.
func (s *OrderService) RecordPaidOrder(ctx context.Context, order models.Order) (models.Order, bool, error) {
	if order.Payment == nil || order.Payment.GatewayOrderID == "" {
		return models.Order{}, false, utils.WebhookParseError("payment reference missing")
	}
	if len(order.Items) == 0 {
		return models.Order{}, false, utils.WebhookParseError("payment lists no items")
	}
	now := s.now()
	order.Status = models.StatusPaid
	order.CreatedAt, order.UpdatedAt = now, now

	err := s.orders.InsertOrder(ctx, &order)
	if errors.Is(err, store.ErrDuplicate) {
		existing, ferr := s.orders.FindOrderByGatewayID(ctx, order.Payment.GatewayOrderID)
		if ferr != nil {
			return models.Order{}, false, utils.PersistenceError("Server error while loading order", ferr)
		}
		return existing, false, nil
	}
	if err != nil {
		return models.Order{}, false, utils.PersistenceError("Server error while creating order", err)
	}
	s.logger.Info("paid order created",
		zap.String("order_id", order.ID.Hex()),
		zap.String("gateway_order_id", order.Payment.GatewayOrderID),
		zap.Float64("total", order.TotalPrice))
	s.email.SendOrderConfirmationEmail(order)
	return order, true, nil
}

// FindByGatewayID returns the order paid by a gateway order id, if any
func (s *OrderService) FindByGatewayID(ctx context.Context, gatewayOrderID string) (models.Order, bool, error) {
	order, err := s.orders.FindOrderByGatewayID(ctx, gatewayOrderID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Order{}, false, nil
	}
	if err != nil {
		return models.Order{}, false, utils.PersistenceError("Server error while loading order", err)
	}
	return order, true, nil
}

// SetStatus moves an order along the lifecycle. Re-applying the current
// status is a no-op; edges outside the transition table are rejected.
func (s *OrderService) SetStatus(ctx context.Context, id primitive.ObjectID, status string) (models.Order, error) {
	return s.UpdateOrder(ctx, id, &status, nil)
}

// UpdateShippingAddress edits the address of an order that is still open
func (s *OrderService) UpdateShippingAddress(ctx context.Context, id primitive.ObjectID, address models.ShippingAddress) (models.Order, error) {
	return s.UpdateOrder(ctx, id, nil, &address)
}

// UpdateOrder applies an administrative edit of the status and/or shipping
// address. Everything is checked before anything is written, and the write
// only lands while the status read here is still current, so a terminal
// order is never edited.
func (s *OrderService) UpdateOrder(ctx context.Context, id primitive.ObjectID, status *string, address *models.ShippingAddress) (models.Order, error) {
	if status == nil && address == nil {
		return models.Order{}, utils.ValidationError("status or shippingAddress is required")
	}
	var next models.OrderStatus
	if status != nil {
		parsed, err := models.ParseOrderStatus(*status)
		if err != nil {
			return models.Order{}, utils.ValidationError("%s", err.Error())
		}
		next = parsed
	}

	for attempt := 0; attempt < 3; attempt++ {
		current, err := s.GetOrder(ctx, id)
		if err != nil {
			return models.Order{}, err
		}

		var change models.OrderChange
		if address != nil {
			if current.Status.Terminal() {
				return models.Order{}, utils.ConflictError("order is %s and can no longer be edited", current.Status)
			}
			change.ShippingAddress = address
		}
		if status != nil && next != current.Status {
			if !current.Status.CanTransitionTo(next) {
				return models.Order{}, utils.ConflictError("cannot change order status from %s to %s", current.Status, next)
			}
			change.Status = &next
		}
		if change.Status == nil && change.ShippingAddress == nil {
			return current, nil
		}

		updated, err := s.orders.UpdateOrder(ctx, id, current.Status, change)
		switch {
		case err == nil:
			if change.Status != nil {
				s.logger.Info("order status changed",
					zap.String("order_id", id.Hex()),
					zap.String("from", string(current.Status)),
					zap.String("to", string(next)))
				s.email.SendStatusUpdateEmail(updated)
			}
			if change.ShippingAddress != nil {
				s.logger.Info("order shipping address changed", zap.String("order_id", id.Hex()))
			}
			return updated, nil
		case errors.Is(err, store.ErrConflict):
			continue
		case errors.Is(err, store.ErrNotFound):
			return models.Order{}, utils.NotFoundError("Order not found")
		default:
			return models.Order{}, utils.PersistenceError("Server error while updating order", err)
		}
	}
	return models.Order{}, utils.ConflictError("order was modified concurrently, retry")
}

// GetOrder returns a single order
func (s *OrderService) GetOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Order{}, utils.NotFoundError("Order not found")
	}
	if err != nil {
		return models.Order{}, utils.PersistenceError("Server error while fetching order", err)
	}
	return order, nil
}

// ListOrders returns orders newest first, optionally for one user only
func (s *OrderService) ListOrders(ctx context.Context, user string) ([]models.Order, error) {
	orders, err := s.orders.ListOrders(ctx, user)
	if err != nil {
		return nil, utils.PersistenceError("Server error while fetching orders", err)
	}
	return orders, nil
}

// DeleteOrder removes an order record
func (s *OrderService) DeleteOrder(ctx context.Context, id primitive.ObjectID) error {
	err := s.orders.DeleteOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return utils.NotFoundError("Order not found")
	}
	if err != nil {
		return utils.PersistenceError("Server error while deleting order", err)
	}
	s.logger.Info("order deleted", zap.String("order_id", id.Hex()))
	return nil
}
