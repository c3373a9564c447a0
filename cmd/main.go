package main

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/kevinjam/farmkeeper-sub001/internal/guard"
	"github.com/kevinjam/farmkeeper-sub001/internal/handler"
	"github.com/kevinjam/farmkeeper-sub001/internal/middleware"
	"github.com/kevinjam/farmkeeper-sub001/internal/store"
	"github.com/kevinjam/farmkeeper-sub001/pkg/config"
	"github.com/kevinjam/farmkeeper-sub001/pkg/database"
	"github.com/kevinjam/farmkeeper-sub001/pkg/jwtutil"
	"github.com/kevinjam/farmkeeper-sub001/pkg/logger"
	"github.com/kevinjam/farmkeeper-sub001/pkg/session"
	"github.com/kevinjam/farmkeeper-sub001/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables. A
	// missing signing key is fatal here, not a per-request error.
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting farmkeeper service...", zap.String("environment", cfg.Server.Env))

	// Connection manager: one eager acquire so an unreachable database
	// fails startup; afterwards the handle is reused and re-established
	// lazily.
	manager := database.NewManager(&cfg.DB, nil)
	if _, err := manager.Acquire(context.Background()); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	tokens, err := jwtutil.New(cfg.JWT.SigningKey)
	if err != nil {
		log.Fatal("Failed to initialize token service", zap.Error(err))
	}
	cookies := session.NewManager(cfg.Server.Env == "production")
	st := store.NewGormStore(manager)

	authHandler := handler.NewAuthHandler(st, tokens, cookies)
	oauthHandler := handler.NewOAuthHandler(st, tokens, cookies)
	farmHandler := handler.NewFarmHandler(st, tokens, cookies)
	recordsHandler := handler.NewRecordsHandler(st)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())
	e.Use(middleware.Gate(tokens, cookies))

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Pages rendered by the web client. The routes exist as gate redirect
	// targets; the gate bounces authenticated users off the first three.
	e.GET("/login", pageStub("login"))
	e.GET("/register", pageStub("register"))
	e.GET("/forgot-password", pageStub("forgot-password"))
	e.GET("/onboarding", pageStub("onboarding"))

	// Authentication routes - these produce the session artifact
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/oauth/exchange", oauthHandler.Exchange)

	// Private API - the gate guarantees a verified user on everything
	// under /api/
	api := e.Group("/api")
	api.POST("/farms", farmHandler.Create)
	api.POST("/profile/change-password", authHandler.ChangePassword)

	// Farm-scoped operations - ownership asserted on every request
	farm := api.Group("/farms/:slug", guard.RequireFarmOwner(st))
	farm.GET("", farmHandler.Get)
	farm.PATCH("/settings", farmHandler.UpdateSettings)
	farm.GET("/eggs", recordsHandler.ListEggs)
	farm.POST("/eggs", recordsHandler.CreateEgg)
	farm.GET("/expenses", recordsHandler.ListExpenses)
	farm.POST("/expenses", recordsHandler.CreateExpense)

	// Dashboard page data, addressed by slug
	e.GET("/:slug/dashboard", farmHandler.Dashboard, guard.RequireFarmOwner(st))

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

func pageStub(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"page": name})
	}
}
