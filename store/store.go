// Package store defines the persistence ports used by the services and their
// MongoDB and in-memory adapters.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrItemNotFound = errors.New("cart item not found")
	ErrConflict     = errors.New("concurrent modification")
	ErrDuplicate    = errors.New("duplicate key")
)

// ProductStore reads and writes catalog products
type ProductStore interface {
	GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	GetProducts(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error)
	FindProductByName(ctx context.Context, name string) (models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, id primitive.ObjectID, product models.Product) (models.Product, error)
	DeleteProduct(ctx context.Context, id primitive.ObjectID) error
}

// CartStore persists carts keyed by owner. Every mutation is applied as a
// single atomic command and returns the resulting cart.
type CartStore interface {
	// GetCart returns an empty cart when the owner has none
	GetCart(ctx context.Context, owner string) (models.Cart, error)
	AddItem(ctx context.Context, owner string, productID primitive.ObjectID, quantity int) (models.Cart, error)
	// SetItemQuantity removes the item when quantity <= 0. ErrItemNotFound
	// if the cart does not hold the product.
	SetItemQuantity(ctx context.Context, owner string, productID primitive.ObjectID, quantity int) (models.Cart, error)
	// RemoveItem is a no-op for absent items
	RemoveItem(ctx context.Context, owner string, productID primitive.ObjectID) (models.Cart, error)
	ClearCart(ctx context.Context, owner string) error
	// DeductItems lowers each listed line by its quantity and drops lines
	// that reach zero. Lines added or raised meanwhile keep the difference.
	DeductItems(ctx context.Context, owner string, items []models.CartItem) (models.Cart, error)
}

// OrderStore persists orders
type OrderStore interface {
	// InsertOrder returns ErrDuplicate when the payment gateway order id is
	// already recorded.
	InsertOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	FindOrderByGatewayID(ctx context.Context, gatewayOrderID string) (models.Order, error)
	// ListOrders returns newest first; an empty user lists every order
	ListOrders(ctx context.Context, user string) ([]models.Order, error)
	// UpdateOrder applies change only while the stored status still equals
	// prev. ErrConflict if it changed meanwhile.
	UpdateOrder(ctx context.Context, id primitive.ObjectID, prev models.OrderStatus, change models.OrderChange) (models.Order, error)
	DeleteOrder(ctx context.Context, id primitive.ObjectID) error
}
