// main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"go-storefront/controllers"
	"go-storefront/middleware"
	"go-storefront/routes"
	"go-storefront/services"
	"go-storefront/store"
	"go-storefront/utils"
)

type backend interface {
	store.ProductStore
	store.CartStore
	store.OrderStore
}

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var (
		stores backend
		db     *mongo.Database
	)
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart and collaborator routes are disabled")
		stores = store.NewMemory()
	default:
		client, err := utils.ConnectDB(ctx, cfg.MongoURI)
		if err != nil {
			logger.Fatal("connecting to MongoDB", zap.Error(err))
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("disconnecting from MongoDB", zap.Error(err))
			}
		}()
		logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))

		db = client.Database(cfg.MongoDatabase)
		mongoStore := store.NewMongo(db)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			logger.Fatal("creating store indexes", zap.Error(err))
		}
		if err := utils.EnsureIndexes(ctx, db); err != nil {
			logger.Fatal("creating collaborator indexes", zap.Error(err))
		}
		stores = mongoStore
	}

	// Email
	mailer, err := utils.NewMailer(cfg, logger)
	if err != nil {
		logger.Fatal("configuring mailer", zap.Error(err))
	}
	emailService := utils.NewEmailService(mailer, logger)

	// Services
	orderService := services.NewOrderService(stores, emailService, logger)
	cartService := services.NewCartService(stores, stores, orderService, logger)
	paymentService := services.NewPaymentService(orderService, stores, cfg.PayHereMerchant, cfg.PayHereSecret, logger)
	if cfg.PayHereSecret == "" {
		logger.Warn("PAYHERE_MERCHANT_SECRET not set; payment notifications are not signature-checked")
	}

	// Controllers
	controllers.RequestTimeout = cfg.RequestTimeout
	tokens := utils.Tokens{Key: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL}
	handlers := routes.Controllers{
		Products: controllers.NewProductController(stores, logger),
		Cart:     controllers.NewCartController(cartService, logger),
		Orders:   controllers.NewOrderController(orderService, paymentService, logger),
	}
	if db != nil {
		handlers.Users = controllers.NewUserController(db, tokens, logger)
		handlers.Categories = controllers.NewCategoryController(db, logger)
		handlers.Reviews = controllers.NewReviewController(db, logger)
		handlers.Offers = controllers.NewOfferController(db, logger)
		handlers.Shop = controllers.NewShopController(db, logger)
		handlers.Messages = controllers.NewMessageController(db, logger)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := routes.NewRouter(handlers, routes.Options{
		Tokens:   tokens,
		Logger:   logger,
		Registry: registry,
		Limiter:  middleware.NewRateLimiter(cfg.WebhookRPS, cfg.WebhookBurst),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server is running", zap.String("port", cfg.Port), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
