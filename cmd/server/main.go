package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"blinkbattle/internal/anticheat"
	"blinkbattle/internal/claim"
	"blinkbattle/internal/client/minikit"
	"blinkbattle/internal/client/treasury"
	"blinkbattle/internal/config"
	cronrunner "blinkbattle/internal/cron"
	"blinkbattle/internal/db"
	"blinkbattle/internal/gateway"
	"blinkbattle/internal/handler"
	"blinkbattle/internal/logger"
	"blinkbattle/internal/match"
	"blinkbattle/internal/payment"
	"blinkbattle/internal/reconcile"
	gormrepository "blinkbattle/internal/repository/gorm"
	"blinkbattle/internal/store"

	_ "blinkbattle/docs"
)

func main() {
	cfgPath := os.Getenv("BB_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("BB_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	repo := gormrepository.New(dbConn.Gorm)

	var primary store.Store
	var cachePinger store.Pinger
	if cfg.Redis.Enabled {
		redisStore := store.NewRedisStore(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		primary = redisStore
		cachePinger = redisStore
	}
	stateStore := store.NewTiered(primary, store.NewMemoryStore(), logger)

	verifierHTTP := &http.Client{Timeout: cfg.Verifier.Timeout}
	verifier := minikit.NewClient(verifierHTTP, cfg.Verifier.BaseURL, cfg.Verifier.AppID, cfg.Verifier.APIKey)
	treasuryHTTP := &http.Client{Timeout: cfg.Treasury.Timeout}
	treasuryClient := treasury.NewClient(treasuryHTTP, cfg.Treasury.BaseURL, cfg.Treasury.APIKey)

	paymentSvc := &payment.Service{
		Repo:     repo,
		Verifier: verifier,
		Config:   cfg.Verifier,
		Logger:   logger,
	}
	hub := match.NewHub()
	matchSvc := &match.Service{
		Repo:      repo,
		Payments:  paymentSvc,
		Game:      cfg.Game,
		Anticheat: &anticheat.Evaluator{Logger: logger},
		Hub:       hub,
		Logger:    logger,
		State:     stateStore,
	}
	claimSvc := &claim.Service{
		Repo:     repo,
		Treasury: treasuryClient,
		Fees:     cfg.Fees,
		Logger:   logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(gateway.RequireBearerMiddleware(cfg.Gateway))
	engine.Use(gateway.WriteAuditMiddleware(logger))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Cache: cachePinger}
	healthHandler.Register(engine)
	gateway.RegisterDocs(engine)

	matchHandler := &handler.MatchHandler{Service: matchSvc, Hub: hub, Logger: logger}
	matchHandler.Register(engine)
	paymentHandler := &handler.PaymentHandler{Payments: paymentSvc, Repo: repo}
	paymentHandler.Register(engine)
	claimHandler := &handler.ClaimHandler{Claims: claimSvc}
	claimHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		reconciler := &reconcile.Service{
			Repo:          repo,
			Payments:      paymentSvc,
			Matches:       matchSvc,
			Logger:        logger,
			BatchSize:     cfg.Cron.BatchSize,
			StakeDeadline: cfg.Game.StakeDeadline,
		}
		runner := cronrunner.New(logger, ctx)
		if _, err := runner.Add("payment_sweep", cfg.Cron.ReconcileSpec, reconciler.SweepPendingPayments); err != nil {
			logger.Warn("cron register payment sweep failed", zap.Error(err))
		}
		if _, err := runner.Add("match_expiry", cfg.Cron.ExpireSpec, reconciler.ExpireStaleMatches); err != nil {
			logger.Warn("cron register match expiry failed", zap.Error(err))
		}
		runner.Start()
		defer runner.Stop()
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-User-ID, X-Wallet-Address")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
