package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/account"
	apirest "github.com/kasuganosora/neighborly/api/rest"
	"github.com/kasuganosora/neighborly/audit"
	"github.com/kasuganosora/neighborly/cache"
	"github.com/kasuganosora/neighborly/config"
	dbadapter "github.com/kasuganosora/neighborly/db"
	"github.com/kasuganosora/neighborly/hook"
	"github.com/kasuganosora/neighborly/message"
	mw "github.com/kasuganosora/neighborly/middleware"
	"github.com/kasuganosora/neighborly/model"
	"github.com/kasuganosora/neighborly/relation"
	"github.com/kasuganosora/neighborly/scheduler"
	"github.com/kasuganosora/neighborly/session"
	"github.com/kasuganosora/neighborly/token"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		logger.Fatal("db migrate failed", zap.Error(err))
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		logger.Fatal("cache init failed", zap.Error(err))
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		logger.Fatal("pubsub init failed", zap.Error(err))
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Hooks / Audit ----
	hooks := hook.NewHookCenter()
	auditSvc := audit.New(db, logger)
	auditSvc.Subscribe(hooks)

	// ---- Services ----
	accounts := account.New(db, hooks, cfg.Security.BcryptCost)
	store := session.NewStore(db)
	tokens := token.New(cfg.Security.JWTSecret, cfg.Security.SessionTTL)
	sessions := session.NewService(store, tokens, accounts, hooks, logger)
	toucher := session.NewToucher(db, c, cfg.Security.TouchInterval, logger)
	msgs := message.New(db, pubsub, logger)
	friends := relation.NewFriendService(db, hooks, cfg.Relations.RejectedCooldown)
	blocks := relation.NewBlockService(db, hooks)
	contacts := relation.NewContactService(db, msgs, hooks, logger)
	facade := relation.NewFacade(db)
	metrics := mw.NewMetrics()

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	sched.AddDelay("session_sweep_startup", 5*time.Second, sessions.Sweep)
	sched.AddTicker("session_sweep", cfg.Security.SweepInterval, sessions.Sweep)

	gate := mw.NewGate(mw.GateConfig{
		Tokens:        tokens,
		Sessions:      store,
		Accounts:      accounts,
		Toucher:       toucher,
		Metrics:       metrics,
		Logger:        logger,
		FrozenAllowed: apirest.FrozenAllowList,
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger), metrics.Middleware())
	r.Use(mw.NewRateLimiter(ctx, rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst).Handler())

	apirest.Mount(r, apirest.Deps{
		DB:              db,
		Accounts:        accounts,
		Sessions:        sessions,
		Friends:         friends,
		Blocks:          blocks,
		Contacts:        contacts,
		Facade:          facade,
		Messages:        msgs,
		PubSub:          pubsub,
		Scheduler:       sched,
		Gate:            gate,
		Metrics:         metrics,
		MetricsAllowIPs: cfg.Server.MetricsAllowIPs,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop()
	toucher.Stop()
	auditSvc.Stop(shutdownCtx)
}
