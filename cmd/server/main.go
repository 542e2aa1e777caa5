package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/routemate/bus-booking-backend/internal/cache"
	"github.com/routemate/bus-booking-backend/internal/config"
	"github.com/routemate/bus-booking-backend/internal/database"
	"github.com/routemate/bus-booking-backend/internal/handlers"
	"github.com/routemate/bus-booking-backend/internal/middleware"
	"github.com/routemate/bus-booking-backend/internal/queue"
	"github.com/routemate/bus-booking-backend/internal/services"
	"github.com/routemate/bus-booking-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

// completionSweepInterval controls how often departed paid bookings are
// promoted to completed
const completionSweepInterval = 10 * time.Minute

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting RouteMate Bus Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	sqlxDB := db.DB

	redisClient := cache.NewRedisClient(cfg.Redis)
	defer redisClient.Close()
	entityCache := cache.NewEntityCache(redisClient, cfg.Redis.CacheTTL, logger)

	// Repositories
	bookingRepo := database.NewBookingRepository(sqlxDB)
	scheduleRepo := database.NewScheduleRepository(sqlxDB)
	busRepo := database.NewBusRepository(db)
	routeRepo := database.NewRouteRepository(db)
	companyRepo := database.NewCompanyRepository(db)
	auditRepo := database.NewPaymentAuditRepository(sqlxDB, logger)

	// Booking change events go through the broker unless publishing is
	// disabled for local development
	var publisher services.EventPublisher
	if cfg.Notifier.PublishEvents {
		amqpPublisher, err := queue.NewPublisher(cfg.Notifier, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to message broker: %v", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		logger.Info("Message broker connection established")
	} else {
		publisher = queue.NewNopPublisher(logger)
		logger.Warn("Event publishing disabled")
	}

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	notifier := services.NewNotifierService(publisher, logger)
	lifecycle := services.NewLifecycleService(sqlxDB, bookingRepo, scheduleRepo, entityCache, notifier, logger)
	enrichment := services.NewEnrichmentService(bookingRepo, scheduleRepo, busRepo, routeRepo, companyRepo, entityCache, logger)

	gateways := []services.PaymentGateway{
		services.NewPayableGateway(&cfg.Payment, logger),
		services.NewGenieGateway(&cfg.Payment, logger),
	}
	payments := services.NewPaymentService(bookingRepo, scheduleRepo, routeRepo, auditRepo, gateways, notifier, logger)

	// Handlers
	bookingHandler := handlers.NewBookingHandler(lifecycle, enrichment, notifier, logger)
	paymentHandler := handlers.NewPaymentHandler(payments, logger)
	adminHandler := handlers.NewAdminBookingHandler(lifecycle, logger)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthCheckHandler(db))

	v1 := router.Group("/api/v1")
	{
		// Customer routes
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService))
		{
			bookings.GET("", bookingHandler.ListBookings)
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
			bookings.DELETE("/:id", bookingHandler.DeleteBooking)
			bookings.POST("/:id/payment/initiate", paymentHandler.InitiatePayment)
			bookings.GET("/:id/payments", paymentHandler.PaymentHistory)
		}

		notifications := v1.Group("/notifications")
		notifications.Use(middleware.AuthMiddleware(jwtService))
		{
			notifications.POST("/unsubscribe", bookingHandler.Unsubscribe)
		}

		// Payment verification is reachable by the returning customer and
		// by gateway webhooks
		paymentRoutes := v1.Group("/payments")
		{
			paymentRoutes.POST("/verify", paymentHandler.VerifyPayment)
			paymentRoutes.POST("/webhook/:gateway", paymentHandler.Webhook)
		}

		// Operator routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminKeyMiddleware(cfg.Admin.APIKeyHash))
		{
			admin.POST("/bookings/:id/confirm", adminHandler.ConfirmBooking)
			admin.POST("/bookings/:id/cancellation/approve", adminHandler.ApproveCancellation)
			admin.POST("/bookings/:id/cancellation/reject", adminHandler.RejectCancellation)
		}
	}

	// Background sweep: departed paid bookings become completed
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(completionSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if _, err := lifecycle.CompleteDepartedBookings(sweepCtx, time.Now()); err != nil {
					logger.WithError(err).Warn("Completion sweep failed")
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
		}

		entry := logger.WithFields(fields)
		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler reports liveness of the service and its database
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
