// routes/routes.go
package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"go-storefront/controllers"
	"go-storefront/middleware"
	"go-storefront/utils"
)

// Controllers groups the handlers mounted under /api. Collaborator
// controllers backed directly by MongoDB may be nil, in which case their
// routes are not registered.
type Controllers struct {
	Users      *controllers.UserController
	Products   *controllers.ProductController
	Categories *controllers.CategoryController
	Cart       *controllers.CartController
	Orders     *controllers.OrderController
	Reviews    *controllers.ReviewController
	Offers     *controllers.OfferController
	Shop       *controllers.ShopController
	Messages   *controllers.MessageController
}

// Options carries the cross-cutting pieces the router needs
type Options struct {
	Tokens   utils.Tokens
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Limiter  *middleware.RateLimiter
}

// NewRouter builds the application router
func NewRouter(c Controllers, opts Options) *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteMessage(w, http.StatusNotFound, "Route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	router.Use(middleware.RequestLogger(opts.Logger))
	if opts.Registry != nil {
		router.Use(middleware.NewMetrics(opts.Registry).Middleware)
		router.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	RegisterRoutes(router.PathPrefix("/api").Subrouter(), c, opts)
	return router
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, c Controllers, opts Options) {
	auth := middleware.AuthMiddleware(opts.Tokens)
	optional := middleware.OptionalAuth(opts.Tokens)
	admin := func(h http.HandlerFunc) http.Handler {
		return auth(middleware.AdminMiddleware(h))
	}
	signedIn := func(h http.HandlerFunc) http.Handler { return auth(h) }
	maybe := func(h http.HandlerFunc) http.Handler { return optional(h) }

	// Cart routes
	if c.Cart != nil {
		router.Handle("/cart", maybe(c.Cart.GetCart)).Methods("GET")
		router.Handle("/cart", maybe(c.Cart.AddToCart)).Methods("POST")
		router.Handle("/cart", maybe(c.Cart.ClearCart)).Methods("DELETE")
		router.Handle("/cart/checkout", maybe(c.Cart.Checkout)).Methods("POST")
		router.Handle("/cart/{productId}", maybe(c.Cart.UpdateCartItem)).Methods("PUT")
		router.Handle("/cart/{productId}", maybe(c.Cart.RemoveFromCart)).Methods("DELETE")
	}

	// Order routes
	if c.Orders != nil {
		var notify http.Handler = http.HandlerFunc(c.Orders.PaymentNotify)
		if opts.Limiter != nil {
			notify = opts.Limiter.Middleware(notify)
		}
		router.Handle("/orders/notify", notify).Methods("POST")
		router.Handle("/orders", signedIn(c.Orders.GetOrders)).Methods("GET")
		router.Handle("/orders", maybe(c.Orders.CreateOrder)).Methods("POST")
		router.Handle("/orders/{id}", signedIn(c.Orders.GetOrder)).Methods("GET")
		router.Handle("/orders/{id}", admin(c.Orders.UpdateOrder)).Methods("PUT")
		router.Handle("/orders/{id}", admin(c.Orders.DeleteOrder)).Methods("DELETE")
	}

	// Product routes
	if c.Products != nil {
		router.HandleFunc("/products", c.Products.GetProducts).Methods("GET")
		router.HandleFunc("/products/{id}", c.Products.GetProductByID).Methods("GET")
		router.Handle("/products", admin(c.Products.CreateProduct)).Methods("POST")
		router.Handle("/products/{id}", admin(c.Products.UpdateProduct)).Methods("PUT")
		router.Handle("/products/{id}", admin(c.Products.DeleteProduct)).Methods("DELETE")
	}

	if c.Categories != nil {
		router.HandleFunc("/categories", c.Categories.GetCategories).Methods("GET")
		router.Handle("/categories", admin(c.Categories.CreateCategory)).Methods("POST")
		router.Handle("/categories/{id}", admin(c.Categories.UpdateCategory)).Methods("PUT")
		router.Handle("/categories/{id}", admin(c.Categories.DeleteCategory)).Methods("DELETE")
	}

	if c.Reviews != nil {
		router.HandleFunc("/reviews", c.Reviews.GetReviews).Methods("GET")
		router.Handle("/reviews", maybe(c.Reviews.CreateReview)).Methods("POST")
		router.HandleFunc("/reviews/{id}", c.Reviews.GetReview).Methods("GET")
		router.Handle("/reviews/{id}", admin(c.Reviews.DeleteReview)).Methods("DELETE")
	}

	if c.Offers != nil {
		router.HandleFunc("/offers", c.Offers.GetOffers).Methods("GET")
		router.Handle("/offers", admin(c.Offers.CreateOffer)).Methods("POST")
		router.Handle("/offers", admin(c.Offers.UpdateOffer)).Methods("PUT")
		router.Handle("/offers/{id}", admin(c.Offers.UpdateOffer)).Methods("PUT")
		router.Handle("/offers/{id}", admin(c.Offers.DeleteOffer)).Methods("DELETE")
	}

	if c.Shop != nil {
		router.HandleFunc("/shop", c.Shop.GetShop).Methods("GET")
		router.Handle("/shop", admin(c.Shop.CreateShop)).Methods("POST")
		router.Handle("/shop", admin(c.Shop.UpdateShop)).Methods("PUT")
	}

	if c.Messages != nil {
		router.HandleFunc("/messages", c.Messages.CreateMessage).Methods("POST")
		router.Handle("/messages", admin(c.Messages.GetMessages)).Methods("GET")
	}

	// User routes
	if c.Users != nil {
		router.HandleFunc("/users/register", c.Users.Register).Methods("POST")
		router.HandleFunc("/users/login", c.Users.Login).Methods("POST")
		router.Handle("/users/me", signedIn(c.Users.GetProfile)).Methods("GET")
		router.Handle("/users", admin(c.Users.GetUsers)).Methods("GET")
		router.Handle("/users/{id}", admin(c.Users.UpdateUserRole)).Methods("PUT")
	}
}
