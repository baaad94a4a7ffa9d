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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"retreat_app_echo/internal/config"
	"retreat_app_echo/internal/handlers"
	"retreat_app_echo/internal/middleware"
	"retreat_app_echo/internal/services"
	"retreat_app_echo/internal/session"
)

func main() {
	cfg := config.Load()

	logger, err := services.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("refusing to start", zap.String("env", cfg.Env), zap.Error(err))
	}

	// Initialize Database
	db, err := services.InitDB(cfg.DatabaseURL, services.DBOptions{LogLevel: services.GormLogLevel(cfg.Env), Logger: logger})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := services.AutoMigrate(db, logger); err != nil {
		logger.Fatal("failed to run database migrations", zap.Error(err))
	}

	var cache *services.RedisCache
	if cfg.RedisURL != "" {
		cache, err = services.NewRedisCache(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, running without cache", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// A nil *PayPalService must not end up inside the interface.
	var provider services.PaymentProvider
	if paypal, err := services.NewPayPalService(cfg.PayPal); err != nil {
		logger.Warn("online payments disabled", zap.Error(err))
	} else {
		provider = paypal
	}

	var firebase handlers.IDTokenVerifier
	if cfg.FirebaseCredentialsPath != "" {
		client, err := services.InitFirebase(context.Background(), cfg.FirebaseCredentialsPath)
		if err != nil {
			logger.Warn("firebase initialization failed, firebase login disabled", zap.Error(err))
		} else {
			firebase = services.NewFirebaseAuth(client)
		}
	}

	var messenger services.Messenger
	if cfg.Waha.APIKey != "" {
		messenger = services.NewWahaService(cfg.Waha)
	}

	sessions := session.NewManager(session.Options{
		Secret:   []byte(cfg.SessionSecret),
		Secure:   cfg.SecureCookies(),
		Features: cfg.Features,
	})

	// Services
	users := services.NewUserService(db, logger)
	retreats := services.NewRetreatService(db, cache, logger)
	meals := services.NewMealService(db, logger)
	duties := services.NewDutyService(db, logger)
	payments := services.NewPaymentService(db, provider, logger, cfg.PayPal.Currency)
	reports := services.NewReportService(db)
	notifier := services.NewNotifier(db, services.NewEmailService(cfg.SMTP), messenger, logger)

	if cfg.AdminEmail != "" {
		if _, _, err := users.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminName); err != nil {
			logger.Warn("failed to ensure admin user", zap.Error(err))
		}
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = middleware.CustomErrorHandler(logger)

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(logger))

	e.Static("/static", "web/static")

	handlers.RegisterRoutes(e, handlers.Handlers{
		Auth:       handlers.NewAuthHandler(sessions, users, services.NewGoogleOAuth(cfg.Google, cfg.AppURL), firebase, cfg.SecureCookies(), logger),
		Dashboard:  handlers.NewDashboardHandler(retreats, users),
		Profile:    handlers.NewProfileHandler(users),
		Retreat:    handlers.NewRetreatHandler(retreats, meals, duties, payments),
		Payment:    handlers.NewPaymentHandler(payments, cfg.AppURL, logger),
		Admin:      handlers.NewAdminHandler(retreats, meals, duties, payments, users, logger),
		User:       handlers.NewUserHandler(users, sessions, logger),
		Preference: handlers.NewUserPreferenceHandler(users, notifier),
		Report:     handlers.NewReportHandler(reports, cfg.PayPal.Currency),
	}, sessions, cfg.RateLimitPerSecond)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env), zap.Bool("payments", payments.Enabled()))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
