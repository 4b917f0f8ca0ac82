package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem represents an item in the cart
type CartItem struct {
	ProductID primitive.ObjectID `bson:"product_id" json:"productId"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// Cart represents a shopper's cart. Owner is "user:<email>" or "guest:<session>".
type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Owner     string             `bson:"owner" json:"owner"`
	Items     []CartItem         `bson:"items" json:"items"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

// Find returns the index of the item for productID, or -1.
func (c *Cart) Find(productID primitive.ObjectID) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// CartLine is a cart item joined with live product data for display.
type CartLine struct {
	ProductID primitive.ObjectID `json:"productId"`
	Name      string             `json:"name,omitempty"`
	Image     string             `json:"image,omitempty"`
	Price     float64            `json:"price"`
	Discount  float64            `json:"discount"`
	Quantity  int                `json:"quantity"`
	UnitPrice float64            `json:"unitPrice"`
	LineTotal float64            `json:"lineTotal"`
	Valid     bool               `json:"valid"`
}

// CartView is the priced representation returned by the cart endpoints
type CartView struct {
	Owner         string     `json:"owner"`
	Items         []CartLine `json:"items"`
	ItemCount     int        `json:"itemCount"`
	Subtotal      float64    `json:"subtotal"`
	DiscountTotal float64    `json:"discountTotal"`
	GrandTotal    float64    `json:"grandTotal"`
}
