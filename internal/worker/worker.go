// Package worker provides async measurement processing off the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cashout-watch/kestrel/internal/audit"
	"github.com/cashout-watch/kestrel/internal/domain"
	"github.com/cashout-watch/kestrel/internal/rates"
)

// auditCacheTTL bounds how long a processed audit stays in cache.
const auditCacheTTL = time.Hour

// Worker processes ingested measurements asynchronously from the EventBus.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	cache     domain.Cache
	processor *audit.Processor
	rates     *rates.Service

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker. The rate service may be nil, in
// which case missing reference rates stay unresolved.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, processor *audit.Processor, rateSvc *rates.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		cache:     cache,
		processor: processor,
		rates:     rateSvc,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicMeasurementIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicMeasurementIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processMeasurement(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicMeasurementIngested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processMeasurement(ctx, msg.TenantID, msg)
}

// MeasurementMessage is the message payload for measurement processing.
type MeasurementMessage struct {
	MeasurementID string `json:"measurementId,omitempty"`
	TenantID      string `json:"tenantId"`
	TraceID       string `json:"traceId,omitempty"`

	domain.MeasurementRequest
}

// processMeasurement runs a measurement through the audit pipeline.
func (w *Worker) processMeasurement(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	// Parse message
	var mMsg MeasurementMessage
	if err := json.Unmarshal(msg.Payload, &mMsg); err != nil {
		slog.Error("failed to parse measurement message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if mMsg.TenantID != "" {
		tenantID = mMsg.TenantID
	}

	traceID := mMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	m := mMsg.ToMeasurement()
	m.ID = mMsg.MeasurementID
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.TenantID = tenantID

	if w.rates != nil {
		w.rates.Resolve(ctx, tenantID, m)
	}

	slog.Debug("processing measurement",
		"measurement_id", m.ID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	// 1. Persist the raw measurement
	if w.repo != nil {
		if err := w.repo.SaveMeasurement(ctx, tenantID, m); err != nil {
			slog.Error("failed to save measurement",
				"measurement_id", m.ID,
				"error", err,
			)
		}
	}

	// 2. Score and flag
	a, err := w.processor.Process(ctx, &audit.ProcessInput{
		TenantID:    tenantID,
		TraceID:     traceID,
		Measurement: m,
		Overrides:   mMsg.Thresholds,
		StartTime:   start,
	})
	if err != nil {
		slog.Error("audit processing failed",
			"measurement_id", m.ID,
			"error", err,
		)
		return err
	}

	// 3. Save and cache the audit read model
	if w.repo != nil {
		if err := w.repo.SaveAudit(ctx, tenantID, a); err != nil {
			slog.Error("failed to save audit",
				"audit_id", a.ID,
				"error", err,
			)
		}
	}
	if w.cache != nil {
		if err := w.cache.SetAudit(ctx, tenantID, m.ID, a, auditCacheTTL); err != nil {
			slog.Warn("failed to cache audit",
				"audit_id", a.ID,
				"error", err,
			)
		}
	}

	// 4. Publish result to completed topic
	resultPayload, _ := json.Marshal(a)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAuditCompleted, resultPayload); err != nil {
		slog.Error("failed to publish audit",
			"audit_id", a.ID,
			"error", err,
		)
	}

	// 5. If alert-worthy, publish to alert topic
	if audit.ShouldAlert(a) {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAuditAlert, resultPayload); err != nil {
			slog.Error("failed to publish alert",
				"audit_id", a.ID,
				"error", err,
			)
		}
	}

	slog.Info("measurement processed",
		"measurement_id", m.ID,
		"tenant_id", tenantID,
		"overall_code", a.Overall.OverallCode,
		"total_score", a.Overall.TotalScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
