package controllers

import (
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"go-storefront/middleware"
	"go-storefront/models"
	"go-storefront/services"
	"go-storefront/utils"
)

// CartSessionHeader identifies an anonymous shopper's cart
const CartSessionHeader = "X-Cart-Session"

// CartController handles cart-related requests
type CartController struct {
	Carts  *services.CartService
	Logger *zap.Logger
}

// NewCartController creates a new CartController
func NewCartController(carts *services.CartService, logger *zap.Logger) *CartController {
	return &CartController{Carts: carts, Logger: logger}
}

// cartOwner resolves whose cart a request addresses. Signed-in users own
// "user:<email>"; anonymous shoppers own "guest:<session>". The two are never
// merged.
func cartOwner(r *http.Request) (owner, user string, err error) {
	if claims, ok := middleware.ClaimsFrom(r.Context()); ok {
		return "user:" + claims.Email, claims.Email, nil
	}
	session := strings.TrimSpace(r.Header.Get(CartSessionHeader))
	if session == "" {
		return "", "", utils.ValidationError("Sign in or send an %s header", CartSessionHeader)
	}
	return "guest:" + session, "guest:" + session, nil
}

// GetCart retrieves the shopper's priced cart
func (cc *CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	owner, _, err := cartOwner(r)
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	view, err := cc.Carts.GetCart(ctx, owner)
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

// AddToCart adds a product to the shopper's cart
func (cc *CartController) AddToCart(w http.ResponseWriter, r *http.Request) {
	owner, _, err := cartOwner(r)
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	var body struct {
		ProductID string `json:"productId"`
		Quantity  *int   `json:"quantity"`
	}
	if err := decodeJSON(r, &body); err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	productID, err := primitive.ObjectIDFromHex(body.ProductID)
	if err != nil {
		utils.WriteError(w, cc.Logger, utils.ValidationError("Invalid product ID"))
		return
	}
	quantity := 1
	if body.Quantity != nil {
		quantity = *body.Quantity
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	view, err := cc.Carts.AddItem(ctx, owner, productID, quantity)
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, view)
}

// UpdateCartItem overwrites the quantity of a cart line
func (cc *CartController) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	owner, _, err := cartOwner(r)
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	productID, err := pathID(r, "productId", "product")
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if err := decodeJSON(r, &body); err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	if body.Quantity == nil {
		utils.WriteError(w, cc.Logger, utils.ValidationError("quantity is required"))
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	view, err := cc.Carts.SetQuantity(ctx, owner, productID, *body.Quantity)
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

// RemoveFromCart removes a product from the shopper's cart
func (cc *CartController) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	owner, _, err := cartOwner(r)
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	productID, err := pathID(r, "productId", "product")
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	view, err := cc.Carts.RemoveItem(ctx, owner, productID)
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

// ClearCart empties the shopper's cart
func (cc *CartController) ClearCart(w http.ResponseWriter, r *http.Request) {
	owner, _, err := cartOwner(r)
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	if err := cc.Carts.Clear(ctx, owner); err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	utils.WriteMessage(w, http.StatusOK, "Cart cleared")
}

// Checkout turns the cart into a pending order
func (cc *CartController) Checkout(w http.ResponseWriter, r *http.Request) {
	owner, user, err := cartOwner(r)
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	var body struct {
		ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			utils.WriteError(w, cc.Logger, err)
			return
		}
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := cc.Carts.Checkout(ctx, owner, user, body.ShippingAddress)
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, order)
}
