package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crmsync_backend/internal/sourcecrm"
	"crmsync_backend/internal/webhook"
	"crmsync_backend/platform/config"
	"crmsync_backend/platform/httpkit"
	"crmsync_backend/platform/logger"
	"crmsync_backend/platform/validator"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting webhook forwarder", "env", cfg.Env, "addr", cfg.HTTPAddr)

	if err := cfg.ValidateWebhook(); err != nil {
		log.Error("invalid configuration", "error", err)
		panic("invalid configuration: " + err.Error())
	}

	routing, err := webhook.LoadRouting(cfg.GetRoutingFile())
	if err != nil {
		log.Error("failed to load routing table", "path", cfg.GetRoutingFile(), "error", err)
		panic("failed to load routing table: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	forwarder := sourcecrm.New(cfg, log)
	val := validator.New()
	module := webhook.NewModule(forwarder, routing, cfg, val, log)

	if !isDevEnv(cfg.Env) {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(log))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(cfg)))

	limiter := httpkit.NewIPRateLimiter(rate.Limit(10), 20, log)
	engine.Use(limiter.RateLimit())

	module.RegisterRoutes(engine)

	server := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("webhook forwarder stopped", "error", err)
		os.Exit(1)
	}
	log.Info("webhook forwarder stopped")
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{"POST", "GET", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Webhook-Secret", "X-Request-ID"}

	if cfg.GetCORSAllowAll() || len(cfg.GetCORSOrigins()) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = cfg.GetCORSOrigins()
	return c
}

func isDevEnv(env string) bool {
	return env == "development"
}
