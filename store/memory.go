package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/models"
)

// Memory implements the stores in process. It backs STORE_BACKEND=memory
// and the tests.
type Memory struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]models.Product
	carts    map[string]models.Cart
	orders   map[primitive.ObjectID]models.Order
	gateway  map[string]primitive.ObjectID
	now      func() time.Time
}

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		products: make(map[primitive.ObjectID]models.Product),
		carts:    make(map[string]models.Cart),
		orders:   make(map[primitive.ObjectID]models.Order),
		gateway:  make(map[string]primitive.ObjectID),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Products

func (m *Memory) GetProduct(_ context.Context, id primitive.ObjectID) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[id]
	if !ok {
		return models.Product{}, ErrNotFound
	}
	return product, nil
}

func (m *Memory) GetProducts(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[primitive.ObjectID]models.Product, len(ids))
	for _, id := range ids {
		if product, ok := m.products[id]; ok {
			out[id] = product
		}
	}
	return out, nil
}

func (m *Memory) FindProductByName(_ context.Context, name string) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, product := range m.sortedProducts() {
		if product.Name == name {
			return product, nil
		}
	}
	return models.Product{}, ErrNotFound
}

func (m *Memory) ListProducts(_ context.Context, filter models.ProductFilter) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, product := range m.sortedProducts() {
		if filter.Category != "" && product.Category != filter.Category {
			continue
		}
		if filter.MinPrice != nil && product.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && product.Price > *filter.MaxPrice {
			continue
		}
		out = append(out, product)
	}
	return out, nil
}

// sortedProducts orders by id, which follows creation order for ObjectIDs
func (m *Memory) sortedProducts() []models.Product {
	out := make([]models.Product, 0, len(m.products))
	for _, product := range m.products {
		out = append(out, product)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out
}

func (m *Memory) CreateProduct(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	product.ID = primitive.NewObjectID()
	m.products[product.ID] = *product
	return nil
}

func (m *Memory) UpdateProduct(_ context.Context, id primitive.ObjectID, product models.Product) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return models.Product{}, ErrNotFound
	}
	product.ID = id
	m.products[id] = product
	return product, nil
}

func (m *Memory) DeleteProduct(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	return nil
}

// Carts

func (m *Memory) GetCart(_ context.Context, owner string) (models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cartCopy(owner), nil
}

func (m *Memory) cartCopy(owner string) models.Cart {
	cart, ok := m.carts[owner]
	if !ok {
		return models.Cart{Owner: owner, Items: []models.CartItem{}}
	}
	cart.Items = append([]models.CartItem{}, cart.Items...)
	return cart
}

func (m *Memory) AddItem(_ context.Context, owner string, productID primitive.ObjectID, quantity int) (models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := m.cartCopy(owner)
	if cart.ID.IsZero() {
		cart.ID = primitive.NewObjectID()
	}
	if i := cart.Find(productID); i >= 0 {
		cart.Items[i].Quantity += quantity
	} else {
		cart.Items = append(cart.Items, models.CartItem{ProductID: productID, Quantity: quantity})
	}
	cart.UpdatedAt = m.now()
	m.carts[owner] = cart
	return m.cartCopy(owner), nil
}

func (m *Memory) SetItemQuantity(_ context.Context, owner string, productID primitive.ObjectID, quantity int) (models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := m.cartCopy(owner)
	i := cart.Find(productID)
	if i < 0 {
		return models.Cart{}, ErrItemNotFound
	}
	if quantity <= 0 {
		cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	} else {
		cart.Items[i].Quantity = quantity
	}
	cart.UpdatedAt = m.now()
	m.carts[owner] = cart
	return m.cartCopy(owner), nil
}

func (m *Memory) RemoveItem(_ context.Context, owner string, productID primitive.ObjectID) (models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[owner]
	if !ok {
		return m.cartCopy(owner), nil
	}
	kept := []models.CartItem{}
	for _, item := range cart.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	cart.UpdatedAt = m.now()
	m.carts[owner] = cart
	return m.cartCopy(owner), nil
}

func (m *Memory) ClearCart(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cart, ok := m.carts[owner]; ok {
		cart.Items = []models.CartItem{}
		cart.UpdatedAt = m.now()
		m.carts[owner] = cart
	}
	return nil
}

func (m *Memory) DeductItems(_ context.Context, owner string, items []models.CartItem) (models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[owner]; !ok {
		return m.cartCopy(owner), nil
	}
	cart := m.cartCopy(owner)
	for _, item := range items {
		if i := cart.Find(item.ProductID); i >= 0 {
			cart.Items[i].Quantity -= item.Quantity
		}
	}
	kept := []models.CartItem{}
	for _, item := range cart.Items {
		if item.Quantity > 0 {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	cart.UpdatedAt = m.now()
	m.carts[owner] = cart
	return m.cartCopy(owner), nil
}

// Orders

// orderCopy detaches the item and payment snapshots from the stored order
func orderCopy(order models.Order) models.Order {
	order.Items = append([]models.OrderItem{}, order.Items...)
	if order.Payment != nil {
		payment := *order.Payment
		order.Payment = &payment
	}
	return order
}

func (m *Memory) InsertOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.Payment != nil {
		if _, dup := m.gateway[order.Payment.GatewayOrderID]; dup {
			return ErrDuplicate
		}
	}
	order.ID = primitive.NewObjectID()
	m.orders[order.ID] = orderCopy(*order)
	if order.Payment != nil {
		m.gateway[order.Payment.GatewayOrderID] = order.ID
	}
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id primitive.ObjectID) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	return orderCopy(order), nil
}

func (m *Memory) FindOrderByGatewayID(_ context.Context, gatewayOrderID string) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.gateway[gatewayOrderID]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	return orderCopy(m.orders[id]), nil
}

func (m *Memory) ListOrders(_ context.Context, user string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, order := range m.orders {
		if user == "" || order.User == user {
			out = append(out, orderCopy(order))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out, nil
}

func (m *Memory) UpdateOrder(_ context.Context, id primitive.ObjectID, prev models.OrderStatus, change models.OrderChange) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	if order.Status != prev {
		return models.Order{}, ErrConflict
	}
	if change.Status != nil {
		order.Status = *change.Status
	}
	if change.ShippingAddress != nil {
		order.ShippingAddress = *change.ShippingAddress
	}
	order.UpdatedAt = m.now()
	m.orders[id] = order
	return orderCopy(order), nil
}

func (m *Memory) DeleteOrder(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if order.Payment != nil {
		delete(m.gateway, order.Payment.GatewayOrderID)
	}
	delete(m.orders, id)
	return nil
}
