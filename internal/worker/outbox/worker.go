package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/ilocker"
	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/delivery/internal/metrics"
	"github.com/corray333/backend-labs/delivery/internal/service/eventbus"
	outboxmodel "github.com/corray333/backend-labs/delivery/internal/service/models/outbox"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrRunInProgress is returned by RunOnce when another run holds the lock.
	ErrRunInProgress = errors.New("outbox dispatch already running")
	// ErrLeaseLost is returned by RunOnce when the lock expired mid-run.
	ErrLeaseLost = errors.New("outbox lock lease lost")
)

// leaseExtender is implemented by lockers whose hold expires on its own.
type leaseExtender interface {
	Extend(ctx context.Context) (bool, error)
	TTL() time.Duration
}

type publisher interface {
	Publish(ctx context.Context, env eventbus.Envelope) error
}

// Worker dispatches pending outbox messages to the event bus.
type Worker struct {
	outboxRepo     ioutboxrepo.IOutboxRepository
	bus            publisher
	locker         ilocker.ILocker
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
	now            func() time.Time
	stopCh         chan struct{}
}

// NewWorker creates a new outbox worker configured from the outbox.* keys.
func NewWorker(
	outboxRepo ioutboxrepo.IOutboxRepository,
	bus publisher,
	locker ilocker.ILocker,
) *Worker {
	pollInterval := viper.GetDuration("outbox.poll_interval")
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}

	batchSize := viper.GetInt("outbox.batch_size")
	if batchSize <= 0 {
		batchSize = 20
	}

	maxAttempts := viper.GetInt("outbox.max_attempts")
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	retryBaseDelay := viper.GetDuration("outbox.retry_base_delay")
	if retryBaseDelay <= 0 {
		retryBaseDelay = 200 * time.Millisecond
	}

	return &Worker{
		outboxRepo:     outboxRepo,
		bus:            bus,
		locker:         locker,
		pollInterval:   pollInterval,
		batchSize:      batchSize,
		maxAttempts:    maxAttempts,
		retryBaseDelay: retryBaseDelay,
		now:            func() time.Time { return time.Now().UTC() },
		stopCh:         make(chan struct{}),
	}
}

// Start begins processing messages from the outbox.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"max_attempts", w.maxAttempts,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Outbox worker stopped")

			return
		case <-ticker.C:
			w.processMessages(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) processMessages(ctx context.Context) {
	dispatched, failed, err := w.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		slog.DebugContext(ctx, "Outbox run skipped, lock held elsewhere")
	case err != nil:
		slog.ErrorContext(ctx, "Outbox run failed", "dispatched", dispatched, "failed", failed, "error", err)
	case dispatched+failed > 0:
		slog.InfoContext(ctx, "Outbox run finished", "dispatched", dispatched, "failed", failed)
	}
}

// RunOnce dispatches at most one batch of the oldest pending messages.
// Every resolved message is marked processed, with the final error text when
// all attempts failed. Messages cut short by cancellation stay pending.
// With an expiring lock the lease is renewed before every message and each
// message must finish within the lease; otherwise the run stops with
// ErrLeaseLost so another instance never sees the same rows as pending.
func (w *Worker) RunOnce(ctx context.Context) (dispatched, failed int, err error) {
	ctx, span := otel.Tracer("worker").Start(ctx, "OutboxWorker.RunOnce")
	defer span.End()

	acquired, err := w.locker.TryAcquire(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to acquire outbox lock: %w", err)
	}
	if !acquired {
		metrics.OutboxRunsSkipped.Inc()

		return 0, 0, ErrRunInProgress
	}
	defer func() {
		if err := w.locker.Release(context.WithoutCancel(ctx)); err != nil {
			slog.ErrorContext(ctx, "Failed to release outbox lock", "error", err)
		}
	}()

	messages, err := w.outboxRepo.GetPendingMessages(ctx, w.batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get pending messages: %w", err)
	}

	lease, _ := w.locker.(leaseExtender)

	var leaseErr error
	results := make([]outboxmodel.ProcessingResult, 0, len(messages))
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}

		msgCtx, cancel, err := w.holdLease(ctx, lease)
		if err != nil {
			leaseErr = err

			break
		}

		result, ok := w.dispatch(msgCtx, msg)
		if errors.Is(msgCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			slog.WarnContext(ctx, "Outbox message outlived the lock lease", "outbox_id", msg.ID)
			leaseErr = ErrLeaseLost
		}
		cancel()
		if !ok {
			break
		}
		// A publish that completed is recorded even if the lease ran out after it.
		results = append(results, result)

		if result.Error != nil {
			failed++
		} else {
			dispatched++
		}
		if leaseErr != nil {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("outbox.fetched", len(messages)),
		attribute.Int("outbox.dispatched", dispatched),
		attribute.Int("outbox.failed", failed),
	)

	if err := w.outboxRepo.MarkProcessed(context.WithoutCancel(ctx), results); err != nil {
		return dispatched, failed, err
	}
	if leaseErr != nil {
		return dispatched, failed, leaseErr
	}

	return dispatched, failed, ctx.Err()
}

// holdLease renews an expiring lock and bounds the next message by the
// renewed lease minus a safety margin. Locks without a lease pass ctx through.
func (w *Worker) holdLease(
	ctx context.Context,
	lease leaseExtender,
) (context.Context, context.CancelFunc, error) {
	if lease == nil || lease.TTL() <= 0 {
		return ctx, func() {}, nil
	}

	extended, err := lease.Extend(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrLeaseLost, err)
	}
	if !extended {
		slog.WarnContext(ctx, "Outbox lock lease taken over, stopping run")

		return nil, nil, ErrLeaseLost
	}

	ttl := lease.TTL()
	msgCtx, cancel := context.WithTimeout(ctx, ttl-ttl/5)

	return msgCtx, cancel, nil
}

// dispatch reports ok=false when cancellation interrupted the publish.
func (w *Worker) dispatch(ctx context.Context, msg outboxmodel.OutboxMessage) (outboxmodel.ProcessingResult, bool) {
	result := outboxmodel.ProcessingResult{MessageID: msg.ID}

	evt, err := msg.Decode()
	if err != nil {
		slog.WarnContext(ctx, "Undecodable outbox message", "outbox_id", msg.ID, "type", msg.Type, "error", err)
		metrics.OutboxDispatched.WithLabelValues(metrics.OutcomePoison).Inc()

		text := "decode: " + err.Error()
		result.Error = &text
		result.ProcessedAt = w.now()

		return result, true
	}

	err = w.publish(ctx, eventbus.Envelope{MessageID: msg.ID, Event: evt})
	if err != nil && ctx.Err() != nil {
		return result, false
	}

	result.ProcessedAt = w.now()
	if err != nil {
		slog.WarnContext(ctx, "Failed to publish outbox message",
			"outbox_id", msg.ID,
			"type", msg.Type,
			"attempts", w.maxAttempts,
			"error", err,
		)
		metrics.OutboxDispatched.WithLabelValues(metrics.OutcomeFailed).Inc()

		text := err.Error()
		result.Error = &text

		return result, true
	}

	metrics.OutboxDispatched.WithLabelValues(metrics.OutcomeSucceeded).Inc()

	return result, true
}

// publish retries with a linear backoff: base, 2*base, ...
func (w *Worker) publish(ctx context.Context, env eventbus.Envelope) error {
	var step time.Duration
	backoff := retry.WithMaxRetries(uint64(w.maxAttempts-1), retry.BackoffFunc(func() (time.Duration, bool) {
		step += w.retryBaseDelay

		return step, false
	}))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		metrics.OutboxPublishAttempts.Inc()
		if err := w.bus.Publish(ctx, env); err != nil {
			return retry.RetryableError(err)
		}

		return nil
	})
}
