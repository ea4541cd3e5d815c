// Command streamhub runs the event fan-out service: it accepts long-lived
// event streams from clients and delivers producer events to selected
// subsets of those streams.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skillsenselab/streamhub/auth"
	"github.com/skillsenselab/streamhub/component"
	"github.com/skillsenselab/streamhub/logger"
	"github.com/skillsenselab/streamhub/observability"
	"github.com/skillsenselab/streamhub/server"
	"github.com/skillsenselab/streamhub/server/middleware"
	"github.com/skillsenselab/streamhub/sse"
	"github.com/skillsenselab/streamhub/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "streamhub:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Init(cfg.Logging)
	log := logger.WithComponent("main")
	log.Info("starting streamhub", logger.Fields(
		"version", version.GetShortVersion(),
		"environment", cfg.Base.Environment,
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.Enabled {
		mp, err := observability.InitMeter(ctx, cfg.Observability, cfg.Base.Name, version.GetShortVersion(), cfg.Base.Environment)
		if err != nil {
			return fmt.Errorf("init meter: %w", err)
		}
		defer func() { _ = mp.Shutdown(context.Background()) }()

		tp, err := observability.InitTracer(ctx, cfg.Observability, cfg.Base.Name, version.GetShortVersion(), cfg.Base.Environment)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	var authSvc *auth.Service
	if cfg.Auth.Secret != "" {
		authSvc, err = auth.NewService(&cfg.Auth)
		if err != nil {
			return fmt.Errorf("init auth: %w", err)
		}
	}

	hub := sse.Configure(cfg.Hub)
	hubComponent := sse.NewComponent(hub)

	srv := server.New(cfg.Server, logger.GetGlobalLogger())
	srv.ApplyMiddleware()
	if authSvc != nil {
		srv.GinEngine().Use(middleware.BearerAuth(authSvc))
	}

	components := []component.Component{hubComponent, srv}
	srv.RegisterDefaultEndpoints(cfg.Base.Name, func(ctx context.Context) []component.Health {
		healths := make([]component.Health, 0, len(components))
		for _, comp := range components {
			healths = append(healths, comp.Health(ctx))
		}
		return healths
	})

	handlerCfg := sse.HandlerConfig{
		RequireAuthForStream:  cfg.Auth.RequiredForStream,
		RequireAuthForPublish: cfg.Auth.RequiredForPublish,
	}
	if cfg.PublishRateLimit > 0 {
		srv.GinEngine().POST("/api/sse/notifications",
			middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerMinute: cfg.PublishRateLimit,
				KeyFunc:           middleware.UserBasedKey,
			}),
			sse.NotifyHandler(hub, handlerCfg),
		)
		srv.GinEngine().GET("/api/sse", sse.StreamHandler(hub, handlerCfg))
		srv.GinEngine().GET("/api/sse/stats", sse.StatsHandler(hub))
	} else {
		sse.RegisterRoutes(srv.GinEngine(), hub, handlerCfg)
	}

	for _, comp := range components {
		if err := comp.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", comp.Name(), err)
		}
	}

	log.Info("streamhub ready", logger.Fields("addr", srv.Addr()))

	<-ctx.Done()
	log.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop in reverse order: refuse new requests first, then drain the hub.
	for i := len(components) - 1; i >= 0; i-- {
		if err := components[i].Stop(stopCtx); err != nil {
			log.Error("component stop failed", logger.Fields(
				"name", components[i].Name(),
				logger.FieldError, err.Error(),
			))
		}
	}

	log.Info("streamhub stopped")
	return nil
}
