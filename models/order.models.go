package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderItem is a denormalized snapshot of a purchased line. Price is the unit
// price charged at creation time and is never recomputed.
type OrderItem struct {
	ProductID *primitive.ObjectID `bson:"product,omitempty" json:"product,omitempty"`
	Name      string              `bson:"name" json:"name" validate:"required"`
	Qty       int                 `bson:"qty" json:"qty" validate:"gte=1"`
	Price     float64             `bson:"price" json:"price" validate:"gte=0"`
}

// ShippingAddress represents where an order is delivered
type ShippingAddress struct {
	Line1      string `bson:"line1,omitempty" json:"line1,omitempty"`
	Line2      string `bson:"line2,omitempty" json:"line2,omitempty"`
	City       string `bson:"city,omitempty" json:"city,omitempty"`
	State      string `bson:"state,omitempty" json:"state,omitempty"`
	PostalCode string `bson:"postal_code,omitempty" json:"postalCode,omitempty"`
	Country    string `bson:"country,omitempty" json:"country,omitempty"`
}

// Payment records the gateway notification that paid for an order
type Payment struct {
	Method         string  `bson:"method" json:"method"`
	GatewayOrderID string  `bson:"gateway_order_id" json:"gatewayOrderId"`
	Amount         float64 `bson:"amount" json:"amount"`
	Currency       string  `bson:"currency,omitempty" json:"currency,omitempty"`
	StatusCode     int     `bson:"status_code" json:"statusCode"`
}

// Order represents a placed order
type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	User            string             `bson:"user" json:"user"` // user e-mail or guest identifier
	Items           []OrderItem        `bson:"items" json:"items"`
	ShippingAddress ShippingAddress    `bson:"shipping_address" json:"shippingAddress"`
	TotalPrice      float64            `bson:"total_price" json:"totalPrice"`
	Status          OrderStatus        `bson:"status" json:"status"`
	Payment         *Payment           `bson:"payment,omitempty" json:"payment,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updatedAt"`
}

// OrderChange is an administrative edit of an order. Nil fields are left
// untouched; items and prices are never editable.
type OrderChange struct {
	Status          *OrderStatus
	ShippingAddress *ShippingAddress
}
