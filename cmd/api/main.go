package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/mercata/storefront-api/internal/config"
	"github.com/mercata/storefront-api/internal/database"
	"github.com/mercata/storefront-api/internal/handler"
	"github.com/mercata/storefront-api/internal/middleware"
	"github.com/mercata/storefront-api/internal/repository"
	"github.com/mercata/storefront-api/internal/service"
	"github.com/mercata/storefront-api/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	if err := database.Migrate(cfg.DB.DSN()); err != nil {
		log.Error("run migrations", "error", err)
		os.Exit(1)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		log.Error("parse db config", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	amqpCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer amqpCh.Close()

	if err := worker.SetupRabbitMQ(amqpCh); err != nil {
		log.Error("setup RabbitMQ", "error", err)
		os.Exit(1)
	}
	log.Info("connected to RabbitMQ")

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	productRepo := repository.NewProductRepository(dbPool)
	cartRepo := repository.NewCartRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool, productRepo, cfg.Checkout.OrderPrefix)
	promoRepo := repository.NewPromoRepository(dbPool)
	abandonedRepo := repository.NewAbandonedCartRepository(dbPool)

	// Services
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	productSvc := service.NewProductService(productRepo, redisClient)
	cartSvc := service.NewCartService(cartRepo, productRepo, abandonedRepo)
	promoSvc := service.NewPromoService(promoRepo)
	checkoutSvc := service.NewCheckoutService(
		orderRepo, cartRepo, productRepo, abandonedRepo, promoSvc,
		amqpCh, log, cfg.Checkout.ShippingFee,
	)
	abandonedSvc := service.NewAbandonedService(
		abandonedRepo, cartRepo, productRepo, log,
		cfg.Funnel.AbandonAfter, cfg.Funnel.GuestCartRetention,
	)

	// Handlers
	authH := handler.NewAuthHandler(authSvc)
	productH := handler.NewProductHandler(productSvc)
	cartH := handler.NewCartHandler(cartSvc)
	orderH := handler.NewOrderHandler(checkoutSvc)
	promoH := handler.NewPromoHandler(promoSvc)
	abandonedH := handler.NewAbandonedHandler(abandonedSvc)
	healthH := handler.NewHealthHandler(dbPool, redisClient, amqpConn)

	// Workers
	notifWorker := worker.NewNotificationWorker(amqpCh, orderRepo, worker.NewLogNotifier(log), redisClient, log)
	sweeper := worker.NewSweeper(abandonedSvc, cfg.Funnel.SweepInterval, log)

	// Router
	router := gin.Default()
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	v1 := router.Group("/api/v1", middleware.Identify(cfg.JWT.Secret))
	{
		auth := v1.Group("/auth")
		auth.POST("/register", authH.Register)
		auth.POST("/login", authH.Login)

		products := v1.Group("/products")
		products.GET("", productH.List)
		products.GET("/:id", productH.GetByID)

		productAdmin := products.Group("", middleware.RequireAuth(), middleware.AdminOnly())
		productAdmin.POST("", productH.Create)
		productAdmin.PUT("/:id", productH.Update)
		productAdmin.PUT("/:id/variants/:variantId", productH.UpdateVariant)
		productAdmin.DELETE("/:id", productH.Delete)

		cart := v1.Group("/cart")
		cart.GET("", cartH.GetCart)
		cart.PUT("", cartH.ReplaceCart)
		cart.DELETE("", cartH.ClearCart)
		cart.POST("/merge", middleware.RequireAuth(), cartH.MergeCart)

		checkout := v1.Group("/checkout")
		checkout.POST("/start", abandonedH.CheckoutStart)
		checkout.POST("/info", abandonedH.CheckoutInfo)

		orders := v1.Group("/orders")
		orders.POST("", orderH.CreateOrder)
		orders.GET("", orderH.ListOrders)
		orders.GET("/:id", orderH.GetOrder)

		orderAdmin := orders.Group("", middleware.RequireAuth(), middleware.AdminOnly())
		orderAdmin.PUT("/:id/status", orderH.UpdateStatus)
		orderAdmin.PUT("/:id/courier", orderH.SetCourier)

		promos := v1.Group("/promo")
		promos.POST("/validate", promoH.Validate)

		promoAdmin := promos.Group("", middleware.RequireAuth(), middleware.AdminOnly())
		promoAdmin.GET("", promoH.List)
		promoAdmin.POST("", promoH.Create)
		promoAdmin.PUT("/:id", promoH.Update)
		promoAdmin.DELETE("/:id", promoH.Delete)

		abandonedAdmin := v1.Group("/abandoned-carts", middleware.RequireAuth(), middleware.AdminOnly())
		abandonedAdmin.GET("", abandonedH.Dashboard)
		abandonedAdmin.POST("/sweep", abandonedH.Sweep)
	}

	if err := notifWorker.Start(ctx); err != nil {
		log.Error("start notification worker", "error", err)
		os.Exit(1)
	}
	sweeper.Start(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	notifWorker.Stop()
	sweeper.Stop()
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}
