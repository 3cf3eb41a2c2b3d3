package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TradeGateHQ/tradegate/internal/config"
	"github.com/TradeGateHQ/tradegate/internal/handler"
	"github.com/TradeGateHQ/tradegate/internal/identity"
	"github.com/TradeGateHQ/tradegate/internal/market"
	"github.com/TradeGateHQ/tradegate/internal/middleware"
	"github.com/TradeGateHQ/tradegate/internal/pkg/clock"
	"github.com/TradeGateHQ/tradegate/internal/pkg/logger"
	"github.com/TradeGateHQ/tradegate/internal/repository"
	"github.com/TradeGateHQ/tradegate/internal/service"
	"github.com/TradeGateHQ/tradegate/internal/session"
	"github.com/TradeGateHQ/tradegate/internal/venue"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)

	// Persistence: redis and postgres are optional; everything degrades
	// to in-process fallbacks so the gateway still runs on a laptop.
	var redisClient *repository.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient, err = repository.NewRedisClient(cfg)
		if err != nil {
			logger.Error("failed to connect to redis, falling back to memory", "error", err)
			redisClient = nil
		} else {
			logger.Info("connected to redis", "addr", cfg.Redis.Addr)
		}
	}

	var usageRepo service.UsageRepo
	var idemStore middleware.IdempotencyStore
	if redisClient != nil {
		usageRepo = repository.NewRedisUsageRepo(redisClient)
		idemStore = repository.NewRedisIdempotencyStore(redisClient)
	} else {
		usageRepo = service.NewUsageStore()
		idemStore = middleware.NewInMemIdempotencyStore()
	}

	var auditRepo service.AuditRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err != nil {
			logger.Error("failed to connect to db, audit logs will be file-only", "error", err)
		} else {
			logger.Info("connected to postgres")
			auditRepo = repository.NewPostgresAuditRepo(db)
		}
	}

	auditSvc, err := service.NewAuditService("./logs", auditRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}

	// Identity side: login sessions against the OAuth2 provider.
	clk := clock.System()
	var sessionStore *session.Store
	var identityClient *identity.Client
	if cfg.Identity.IsConfigured() {
		identityClient = identity.NewClient(cfg.Identity)
		sessionStore = session.NewStore(identityClient, clk)
		go runSessionSweep(sessionStore, cfg.Session)
	} else {
		logger.Warn("identity provider not configured, /auth routes disabled")
	}

	// Venue side: signed trading client plus ticker stream and risk.
	var venueClient *venue.Client
	var tickerStream *market.TickerStream
	var priceSource service.PriceSource
	if cfg.Venue.IsConfigured() {
		venueClient, err = venue.NewClient(cfg.Venue)
		if err != nil {
			log.Fatalf("Failed to initialize venue client: %v", err)
		}
		if cfg.Market.Enabled && len(cfg.Market.Products) > 0 {
			tickerStream = market.NewTickerStream(cfg.Venue.WSURL, cfg.Market.Products)
			tickerStream.Start()
			priceSource = tickerStream
		}
	} else {
		logger.Warn("venue credentials not configured, /trading routes disabled")
	}
	riskEngine := service.NewRiskEngine(cfg.Risk, usageRepo, priceSource)

	r := setupRouter(cfg, auditSvc, idemStore, sessionStore, identityClient, venueClient, riskEngine)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("tradegate started", "port", cfg.Server.Port, "read_only", cfg.Server.ReadOnly)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if tickerStream != nil {
		tickerStream.Stop()
	}
	auditSvc.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}

func setupRouter(
	cfg *config.Config,
	auditSvc *service.AuditService,
	idemStore middleware.IdempotencyStore,
	sessionStore *session.Store,
	identityClient *identity.Client,
	venueClient *venue.Client,
	riskEngine *service.RiskEngine,
) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware(auditSvc))

	statusHandler := handler.NewStatusHandler(cfg, sessionStore)
	r.GET("/health", statusHandler.Health)
	r.GET("/status", statusHandler.Status)

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	if sessionStore != nil {
		authHandler := handler.NewAuthHandler(sessionStore, identityClient, cfg.Session)
		auth := r.Group("/auth")
		{
			auth.GET("/login", authHandler.Login)
			auth.GET("/callback", authHandler.Callback)
			auth.GET("/session", authHandler.Session)
			auth.GET("/user", authHandler.User)
			auth.GET("/calendar", authHandler.Calendar)
			auth.GET("/mail", authHandler.Mail)
		}
	}

	if venueClient != nil {
		tradingHandler := handler.NewTradingHandler(venueClient, riskEngine)
		trading := r.Group("/trading")
		trading.Use(middleware.GatewayAuth(cfg.Auth))
		trading.Use(middleware.RateLimit(cfg.Rate))
		trading.Use(middleware.ReadOnly(cfg.Server.ReadOnly))
		trading.Use(middleware.Idempotency(idemStore, time.Duration(cfg.Redis.IdempotencyTTLSeconds)*time.Second))
		{
			trading.GET("/accounts", tradingHandler.ListAccounts)
			trading.GET("/accounts/:id", tradingHandler.GetAccount)
			trading.GET("/products", tradingHandler.ListProducts)
			trading.GET("/products/:id", tradingHandler.GetProduct)
			trading.GET("/ticker/:product_id", tradingHandler.GetTicker)
			trading.POST("/orders/market", tradingHandler.PlaceMarketOrder)
			trading.POST("/orders/limit", tradingHandler.PlaceLimitOrder)
			trading.POST("/orders/stop", tradingHandler.PlaceStopOrder)
			trading.GET("/orders", tradingHandler.ListOrders)
			trading.GET("/orders/:id", tradingHandler.GetOrder)
			trading.DELETE("/orders/:id", tradingHandler.CancelOrder)
			trading.GET("/fills", tradingHandler.ListFills)
		}
	}

	auditHandler := handler.NewAuditHandler(auditSvc)
	v1 := r.Group("/v1")
	v1.Use(middleware.GatewayAuth(cfg.Auth))
	{
		v1.GET("/audit", auditHandler.List)
	}

	return r
}

// runSessionSweep removes aged-out login sessions on a fixed interval.
func runSessionSweep(store *session.Store, cfg config.SessionConfig) {
	interval := time.Duration(cfg.SweepIntervalMins) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	maxAge := time.Duration(cfg.MaxAgeHours) * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		store.Sweep(maxAge)
	}
}
