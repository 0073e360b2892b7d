package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/ilocker"
	locallock "github.com/corray333/backend-labs/delivery/internal/dal/locks/local"
	redislock "github.com/corray333/backend-labs/delivery/internal/dal/locks/redis"
	"github.com/corray333/backend-labs/delivery/internal/dal/postgres"
	"github.com/corray333/backend-labs/delivery/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/delivery/internal/dal/redis"
	"github.com/corray333/backend-labs/delivery/internal/dal/uow"
	"github.com/corray333/backend-labs/delivery/internal/otel"
	"github.com/corray333/backend-labs/delivery/internal/service/eventbus"
	"github.com/corray333/backend-labs/delivery/internal/service/services/deliverypersonsvc"
	"github.com/corray333/backend-labs/delivery/internal/service/services/matchingsvc"
	"github.com/corray333/backend-labs/delivery/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/delivery/internal/service/subscribers/audittrail"
	"github.com/corray333/backend-labs/delivery/internal/service/subscribers/relay"
	httptransport "github.com/corray333/backend-labs/delivery/internal/transport/http"
	outboxworker "github.com/corray333/backend-labs/delivery/internal/worker/outbox"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// App represents the application.
type App struct {
	transport      *httptransport.HTTPTransport
	outboxWorker   *outboxworker.Worker
	postgresClient *postgres.Client
	rabbitMqClient *rabbitmq.Client
	redisClient    *redis.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient()
	rabbitMqClient := rabbitmq.MustNewClient()

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
		ordersvc.WithMatchingService(matchingsvc.NewMatchingService()),
	)
	deliveryPersonSvc := deliverypersonsvc.MustNewDeliveryPersonService(
		deliverypersonsvc.WithPostgresClient(postgresClient),
	)

	// Subscribers run outside any transaction, so they share a pool-bound unit of work.
	repos := uow.NewUnitOfWork(postgresClient)
	bus := eventbus.New()
	bus.Subscribe(eventbus.Idempotent(repos.OutboxConsumerRepository(), relay.New(rabbitMqClient)))
	bus.Subscribe(eventbus.Idempotent(
		repos.OutboxConsumerRepository(),
		audittrail.New(repos.AuditRepository(), repos.OrderRepository()),
	))

	locker, redisClient := mustNewLocker()
	outboxWorker := outboxworker.NewWorker(repos.OutboxRepository(), bus, locker)

	transport := httptransport.NewHTTPTransport(orderSvc, deliveryPersonSvc)
	transport.RegisterRoutes()

	return &App{
		transport:      transport,
		outboxWorker:   outboxWorker,
		postgresClient: postgresClient,
		rabbitMqClient: rabbitMqClient,
		redisClient:    redisClient,
		otelController: otelController,
	}
}

// mustNewLocker picks the dispatch lock by outbox.lock.driver. The redis
// client is returned so it can be closed on shutdown; it is nil for "local".
func mustNewLocker() (ilocker.ILocker, *redis.Client) {
	switch driver := viper.GetString("outbox.lock.driver"); driver {
	case "", "local":
		return locallock.NewLocker(), nil
	case "redis":
		client := redis.MustNewClient()
		locker := redislock.NewLocker(
			client.RDB(),
			viper.GetString("outbox.lock.key"),
			viper.GetDuration("outbox.lock.ttl"),
		)

		return locker, client
	default:
		panic(fmt.Sprintf("unknown outbox.lock.driver %q", driver))
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting HTTP server")

		return a.transport.Run()
	})

	g.Go(func() error {
		slog.Info("Starting outbox worker")
		a.outboxWorker.Start(gctx)

		return nil
	})

	// Either a signal or a failed component ends the run.
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received")

		return a.gracefulShutdown()
	})

	if err := g.Wait(); err != nil {
		slog.Error("Application stopped with error", "error", err)
	}

	a.closeClients()

	slog.Info("Application shutdown complete")
}

// gracefulShutdown stops the components that accept work.
func (a *App) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.outboxWorker.Stop()

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)

		return err
	}
	slog.Info("HTTP server stopped gracefully")

	return nil
}

// closeClients runs once every goroutine has returned, so no dispatch is in flight.
func (a *App) closeClients() {
	if err := a.rabbitMqClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			slog.Error("Redis connection close error", "error", err)
		} else {
			slog.Info("Redis connection closed gracefully")
		}
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.otelController.Shutdown(ctx); err != nil {
		slog.Error("Otel trace provider shutdown error", "error", err)
	} else {
		slog.Info("Otel trace provider shut down gracefully")
	}
}
