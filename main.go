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

	"github.com/Kariqs/readpage-api/cache"
	"github.com/Kariqs/readpage-api/controllers"
	"github.com/Kariqs/readpage-api/initializers"
	"github.com/Kariqs/readpage-api/khalti"
	"github.com/Kariqs/readpage-api/metrics"
	"github.com/Kariqs/readpage-api/middlewares"
	"github.com/Kariqs/readpage-api/routes"
	"github.com/Kariqs/readpage-api/services"
	"github.com/Kariqs/readpage-api/storage"
	"github.com/Kariqs/readpage-api/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	initializers.LoadEnv()
	cfg, err := initializers.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	gin.SetMode(cfg.GinMode)
	logger, err := initializers.NewLogger(cfg.GinMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := initializers.ConnectToDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := initializers.SyncDatabase(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	if err := initializers.SeedAdmin(db, cfg.Admin, logger); err != nil {
		logger.Fatal("Failed to seed admin", zap.Error(err))
	}

	var bookCache cache.BookCache = cache.NoopBookCache{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(cfg.RedisAddr, cfg.RedisPassword, logger)
		if err != nil {
			logger.Warn("Redis unavailable, book cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			bookCache = cache.NewRedisBookCache(rdb, cfg.BookCacheTTL, logger)
		}
	}

	var images storage.ImageStore
	switch cfg.Storage.Driver {
	case "s3":
		images, err = storage.NewS3Store(context.Background(), cfg.Storage.S3Bucket)
		if err != nil {
			logger.Fatal("Failed to configure S3 storage", zap.Error(err))
		}
	default:
		images = storage.NewLocalStore(cfg.Storage.UploadDir)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	if cfg.Khalti.SecretKey == "" {
		logger.Warn("KHALTI_SECRET_KEY not set, online payments will be rejected by the gateway")
	}
	gateway := khalti.NewClient(khalti.Config{
		SecretKey: cfg.Khalti.SecretKey,
		BaseURL:   cfg.Khalti.BaseURL,
		Timeout:   cfg.Khalti.Timeout,
	}, logger)

	payments := services.NewPaymentService(db, gateway, services.PaymentConfig{
		ReturnURL:   cfg.Khalti.ReturnURL,
		WebsiteURL:  cfg.FrontendURL,
		FrontendURL: cfg.FrontendURL,
	}, m, logger)
	orders := services.NewOrderService(db, logger)
	checkout := services.NewCheckoutService(db, payments, bookCache, m, logger)
	books := services.NewBookService(db, images, bookCache, m, logger)
	cart := services.NewCartService(db, logger)

	mailer := &utils.Mailer{
		From:        cfg.Mail.From,
		Password:    cfg.Mail.Password,
		SMTPHost:    cfg.Mail.SMTPHost,
		SMTPAddress: cfg.Mail.SMTPAddress,
		Logger:      logger,
	}

	server := gin.New()
	server.Use(gin.Recovery())
	server.Use(middlewares.LoggerMiddleware(logger))
	server.Use(middlewares.MetricsMiddleware(m))
	server.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	server.MaxMultipartMemory = storage.MaxImageSize + 1<<20

	routes.Register(server, routes.Handlers{
		Default: controllers.NewDefaultController(db),
		Auth: controllers.NewAuthController(db, controllers.AuthConfig{
			JWTSecret:             cfg.JWTSecret,
			JWTTTL:                cfg.JWTTTL,
			FrontendURL:           cfg.FrontendURL,
			SkipEmailVerification: cfg.SkipEmailVerification,
		}, mailer, images, orders, logger),
		Books:       controllers.NewBookController(books, logger),
		Cart:        controllers.NewCartController(cart, logger),
		Orders:      controllers.NewOrderController(orders, checkout, logger),
		Payments:    controllers.NewPaymentController(payments, logger),
		RequireAuth: middlewares.RequireAuth(db, cfg.JWTSecret),
	})
	server.GET("/metrics", gin.WrapH(metrics.Handler(prometheus.DefaultGatherer)))
	if cfg.Storage.Driver == "local" {
		server.Static("/uploads", cfg.Storage.UploadDir)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	logger.Info("ReadPage API started", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shut down", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("Server exited")
}
