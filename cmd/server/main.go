package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/clientdesk/internal/server"
	"github.com/iota-uz/clientdesk/modules"
	"github.com/iota-uz/clientdesk/pkg/application"
	"github.com/iota-uz/clientdesk/pkg/authz"
	"github.com/iota-uz/clientdesk/pkg/configuration"
	"github.com/iota-uz/clientdesk/pkg/eventbus"
	"github.com/iota-uz/clientdesk/pkg/logging"
	"github.com/iota-uz/clientdesk/pkg/metrics"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	defer conf.Unload()
	logger := conf.Logger()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(
			context.Background(),
			conf.OpenTelemetry.ServiceName,
			conf.OpenTelemetry.TempoURL,
		)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	authzSvc, err := authz.NewService(authz.DefaultConfig())
	if err != nil {
		log.Fatalf("failed to initialize authz: %v", err)
	}

	rdb := changefeedRedis(conf, logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	hub := application.NewHub(&application.HuberOptions{
		Logger: logger,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range conf.Origins() {
				if allowed == origin {
					return true
				}
			}
			return false
		},
	})
	defer hub.Close()

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
		Huber:    hub,
	})
	app.RegisterServices(authzSvc)

	builtIn := modules.BuiltInModules(conf, authzSvc, rdb)
	if err := modules.Load(app, builtIn...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}
	defer func() {
		for _, m := range builtIn {
			if c, ok := m.(interface{ Close() }); ok {
				c.Close()
			}
		}
	}()

	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}
	serverInstance, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	log.Printf("Listening on: %s\n", conf.Origin)
	if err := serverInstance.Start(ctx, conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// changefeedRedis returns nil when cross-instance relaying is disabled or the
// address is unusable; the change feed then stays in-process.
func changefeedRedis(conf *configuration.Configuration, logger *logrus.Logger) *redis.Client {
	if !conf.Clients.ChangefeedEnabled {
		return nil
	}
	opts, err := configuration.RedisOptions(conf.RedisURL)
	if err != nil {
		logger.WithError(err).Warn("changefeed: invalid REDIS_URL; relaying disabled")
		return nil
	}
	return redis.NewClient(opts)
}
