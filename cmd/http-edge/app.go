package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"mailedge/internal/config"
	"mailedge/internal/constants"
	"mailedge/internal/edge"
	"mailedge/internal/logger"
	"mailedge/internal/queue"
	"mailedge/internal/relay"
	"mailedge/internal/reply"
	"mailedge/internal/reverselookup"
	"mailedge/pkg/bootstrap"
	"mailedge/pkg/health"
	"mailedge/pkg/logging"
	"mailedge/pkg/metrics"
	"mailedge/pkg/middleware"
	"mailedge/pkg/ratelimit"
	"mailedge/pkg/tracing"
)

var rateLimited = reply.New("421", "4.7.0 Too many submissions, try again later")

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	relay          relay.Relay
	queue          queue.Queue
	limiter        *ratelimit.PerClient
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	initCtx := logging.WithServiceName(ctx, constants.ServiceName)

	if err := a.initRedis(initCtx); err != nil {
		a.Logger.WarnwCtx(initCtx, "Redis unavailable, PTR cache disabled", "error", err)
	}

	if err := a.initQueue(); err != nil {
		return fmt.Errorf("failed to initialize queue: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName,
		attribute.String("edge.hostname", a.Config.Edge.Hostname),
		attribute.String("edge.queue_type", a.Config.Queue.Type),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.Register()

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb
	return nil
}

func (a *App) initQueue() error {
	switch a.Config.Queue.Type {
	case constants.QueueTypeKafka:
		if err := a.InitBroker(); err != nil {
			return err
		}
	case constants.QueueTypeProxy:
		smtpCfg := a.Config.Relay.SMTP
		if smtpCfg.Helo == "" {
			smtpCfg.Helo = a.Config.Edge.Hostname
		}
		a.relay = relay.NewSMTPRelay(smtpCfg, a.Logger)
	}

	q, err := queue.New(a.Config, a.Producer, a.relay, a.Logger)
	if err != nil {
		return err
	}
	a.queue = q
	return nil
}

func (a *App) newEnricher() *reverselookup.Enricher {
	if !a.Config.ReverseLookup.Enabled {
		return reverselookup.NewEnricher(nil, a.Logger)
	}
	return reverselookup.NewEnricher(reverselookup.NewResolver(a.Config, a.redis, a.Logger), a.Logger)
}

func (a *App) healthRegistry() *health.CheckerRegistry {
	registry := health.NewCheckerRegistry()
	if a.redis != nil {
		registry.RegisterOptional(health.NewRedisChecker(a.redis))
	}
	switch a.Config.Queue.Type {
	case constants.QueueTypeKafka:
		registry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))
	case constants.QueueTypeProxy:
		registry.Register(health.NewSMTPChecker(a.Config.Relay.SMTP.Address, a.Config.Relay.SMTP.Helo))
	}
	return registry
}

func (a *App) initHTTPServer() error {
	handler, err := edge.NewHandler(a.Config.Edge, a.newEnricher(), a.queue, a.Logger)
	if err != nil {
		return err
	}

	router := gin.New()
	if err := router.SetTrustedProxies(a.Config.Server.TrustedProxies); err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	router.Use(
		middleware.RecoveryMiddleware(a.Logger),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(a.Logger),
	)
	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.GET("/health", a.healthRegistry().Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Submissions are accepted on any path the edge's URI pattern allows, so
	// the edge handler sits behind NoRoute with its own rate limit.
	submit := []gin.HandlerFunc{handler.Handle}
	if a.Config.RateLimit.Enabled {
		a.limiter = ratelimit.NewPerClient(ratelimit.Config{
			RPS:             a.Config.RateLimit.RPS,
			Burst:           a.Config.RateLimit.Burst,
			CleanupInterval: a.Config.RateLimit.CleanupInterval,
			MaxAge:          a.Config.RateLimit.MaxAge,
			Reject: func(c *gin.Context) {
				c.Header(reply.HeaderName, rateLimited.HeaderValue())
				c.Status(http.StatusTooManyRequests)
			},
		})
		submit = append([]gin.HandlerFunc{a.limiter.Middleware()}, submit...)
	}
	router.NoRoute(submit...)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	})

	if a.limiter != nil {
		g.Go(func() error {
			a.limiter.Run(gCtx)
			return nil
		})
	}

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down HTTP edge")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownRedis(a.redis)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
