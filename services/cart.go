package services

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"go-storefront/models"
	"go-storefront/pricing"
	"go-storefront/store"
	"go-storefront/utils"
)

// CartService manages per-owner carts and prices them on read
type CartService struct {
	carts    store.CartStore
	products store.ProductStore
	orders   *OrderService
	logger   *zap.Logger
}

// NewCartService creates a new CartService
func NewCartService(carts store.CartStore, products store.ProductStore, orders *OrderService, logger *zap.Logger) *CartService {
	return &CartService{carts: carts, products: products, orders: orders, logger: logger}
}

// AddItem adds quantity units of a product, merging with an existing line
func (s *CartService) AddItem(ctx context.Context, owner string, productID primitive.ObjectID, quantity int) (models.CartView, error) {
	if err := checkOwner(owner); err != nil {
		return models.CartView{}, err
	}
	if quantity < 1 {
		return models.CartView{}, utils.ValidationError("Quantity must be at least 1")
	}
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.CartView{}, utils.NotFoundError("Product not found")
		}
		return models.CartView{}, utils.PersistenceError("Error loading product", err)
	}

	cart, err := s.carts.AddItem(ctx, owner, productID, quantity)
	if err != nil {
		return models.CartView{}, utils.PersistenceError("Error updating cart", err)
	}
	s.logger.Debug("cart item added",
		zap.String("owner", owner),
		zap.String("product_id", productID.Hex()),
		zap.Int("quantity", quantity))
	return s.view(ctx, cart)
}

// SetQuantity overwrites a line's quantity; quantity <= 0 removes the line
func (s *CartService) SetQuantity(ctx context.Context, owner string, productID primitive.ObjectID, quantity int) (models.CartView, error) {
	if err := checkOwner(owner); err != nil {
		return models.CartView{}, err
	}
	cart, err := s.carts.SetItemQuantity(ctx, owner, productID, quantity)
	if errors.Is(err, store.ErrItemNotFound) {
		return models.CartView{}, utils.NotFoundError("Product not found in cart")
	}
	if err != nil {
		return models.CartView{}, utils.PersistenceError("Error updating cart", err)
	}
	return s.view(ctx, cart)
}

// RemoveItem drops a product from the cart; absent products are ignored
func (s *CartService) RemoveItem(ctx context.Context, owner string, productID primitive.ObjectID) (models.CartView, error) {
	if err := checkOwner(owner); err != nil {
		return models.CartView{}, err
	}
	cart, err := s.carts.RemoveItem(ctx, owner, productID)
	if err != nil {
		return models.CartView{}, utils.PersistenceError("Error updating cart", err)
	}
	return s.view(ctx, cart)
}

// GetCart returns the priced cart without modifying it
func (s *CartService) GetCart(ctx context.Context, owner string) (models.CartView, error) {
	if err := checkOwner(owner); err != nil {
		return models.CartView{}, err
	}
	cart, err := s.carts.GetCart(ctx, owner)
	if err != nil {
		return models.CartView{}, utils.PersistenceError("Error fetching cart", err)
	}
	return s.view(ctx, cart)
}

// Clear empties the cart
func (s *CartService) Clear(ctx context.Context, owner string) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if err := s.carts.ClearCart(ctx, owner); err != nil {
		return utils.PersistenceError("Error clearing cart", err)
	}
	return nil
}

// Checkout snapshots the priced cart into a pending order for user and
// removes the snapshotted quantities from the cart.
func (s *CartService) Checkout(ctx context.Context, owner, user string, address models.ShippingAddress) (models.Order, error) {
	view, err := s.GetCart(ctx, owner)
	if err != nil {
		return models.Order{}, err
	}
	if len(view.Items) == 0 {
		return models.Order{}, utils.ValidationError("Cart is empty")
	}

	items := make([]models.OrderItem, 0, len(view.Items))
	taken := make([]models.CartItem, 0, len(view.Items))
	for _, line := range view.Items {
		if !line.Valid {
			return models.Order{}, utils.ValidationError("Product %s is no longer available", line.ProductID.Hex())
		}
		productID := line.ProductID
		items = append(items, models.OrderItem{
			ProductID: &productID,
			Name:      line.Name,
			Qty:       line.Quantity,
			Price:     line.UnitPrice,
		})
		taken = append(taken, models.CartItem{ProductID: productID, Quantity: line.Quantity})
	}
	total := view.GrandTotal
	order, err := s.orders.CreateOrder(ctx, NewOrder{
		User:            user,
		Items:           items,
		ShippingAddress: address,
		TotalPrice:      &total,
	})
	if err != nil {
		return models.Order{}, err
	}

	if _, err := s.carts.DeductItems(ctx, owner, taken); err != nil {
		s.logger.Error("failed to remove checked out items from cart",
			zap.String("owner", owner),
			zap.String("order_id", order.ID.Hex()),
			zap.Error(err))
	}
	return order, nil
}

// view joins the cart with live product data and prices every line. Lines
// whose product no longer exists are flagged invalid and left out of totals.
func (s *CartService) view(ctx context.Context, cart models.Cart) (models.CartView, error) {
	ids := make([]primitive.ObjectID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return models.CartView{}, utils.PersistenceError("Error loading products", err)
	}

	view := models.CartView{Owner: cart.Owner, Items: make([]models.CartLine, 0, len(cart.Items))}
	lines := make([]pricing.Line, 0, len(cart.Items))
	for _, item := range cart.Items {
		line := models.CartLine{ProductID: item.ProductID, Quantity: item.Quantity}
		product, ok := products[item.ProductID]
		if !ok {
			lines = append(lines, pricing.InvalidLine(item.Quantity))
			view.Items = append(view.Items, line)
			continue
		}
		priced := pricing.NewLine(product.Price, product.Discount, item.Quantity)
		lines = append(lines, priced)

		line.Name = product.Name
		line.Image = product.Image
		line.Price = product.Price
		line.Discount = product.Discount
		line.UnitPrice = priced.UnitPrice().InexactFloat64()
		line.LineTotal = pricing.Money(priced.Total())
		line.Valid = true
		view.Items = append(view.Items, line)
	}

	summary := pricing.Summarize(lines)
	view.ItemCount = summary.Units
	view.Subtotal = pricing.Money(summary.Subtotal)
	view.DiscountTotal = pricing.Money(summary.DiscountTotal)
	view.GrandTotal = pricing.Money(summary.GrandTotal)
	return view, nil
}

func checkOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return utils.ValidationError("cart owner is required")
	}
	return nil
}
