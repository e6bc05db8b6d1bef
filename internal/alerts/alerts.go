// Package alerts delivers low-stock notifications through the asynq task
// queue. The API enqueues; cmd/worker consumes.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-warung/internal/obs"
)

// TypeLowStock is the asynq task type for low-stock alerts.
const TypeLowStock = "stock:low"

// LowStockPayload describes the target that crossed its threshold.
type LowStockPayload struct {
	TargetKind string          `json:"targetKind"`
	TargetID   uuid.UUID       `json:"targetId"`
	Name       string          `json:"name"`
	Current    decimal.Decimal `json:"current"`
	Threshold  decimal.Decimal `json:"threshold"`
}

// NewLowStockTask builds the asynq task for a threshold crossing.
func NewLowStockTask(p LowStockPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal low stock payload: %w", err)
	}
	return asynq.NewTask(TypeLowStock, payload, asynq.MaxRetry(3)), nil
}

// Enqueuer pushes low-stock tasks onto the queue. A nil client is a no-op so
// the stock path never blocks on queue availability.
type Enqueuer struct {
	Client *asynq.Client
	Log    zerolog.Logger
}

// NotifyLowStock enqueues an alert task. Failures are logged, never returned:
// the alert is advisory and must not fail the mutation that triggered it.
func (e *Enqueuer) NotifyLowStock(ctx context.Context, p LowStockPayload) {
	if e == nil || e.Client == nil {
		return
	}
	task, err := NewLowStockTask(p)
	if err != nil {
		e.Log.Error().Err(err).Msg("build low stock task")
		return
	}
	if _, err := e.Client.EnqueueContext(ctx, task); err != nil {
		e.Log.Error().Err(err).Str("name", p.Name).Msg("enqueue low stock alert")
		return
	}
	if obs.LowStockAlertsTotal != nil {
		obs.LowStockAlertsTotal.WithLabelValues(p.TargetKind).Inc()
	}
}

// Handler consumes low-stock tasks in the worker.
type Handler struct {
	Log zerolog.Logger
}

// HandleLowStock processes one alert task. The current delivery channel is the
// structured log; external channels can hang off this handler.
func (h *Handler) HandleLowStock(_ context.Context, task *asynq.Task) error {
	var p LowStockPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal low stock payload: %w", err)
	}
	h.Log.Warn().
		Str("target_kind", p.TargetKind).
		Str("target_id", p.TargetID.String()).
		Str("name", p.Name).
		Str("current", p.Current.String()).
		Str("threshold", p.Threshold.String()).
		Msg("low stock alert")
	return nil
}
