package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/ppiankov/amlgate/internal/model"
)

// deliveryBudget bounds one delivery including retries.
const deliveryBudget = maxRetries * (requestTimeout + 2*time.Second)

// Dispatcher fans out alert events to matching webhook configurations.
type Dispatcher struct {
	configs []AlertConfig
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []AlertConfig, logger *slog.Logger) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{configs: configs, logger: logger}
}

// Dispatch sends the event to all webhooks whose Events list matches.
// Fires goroutines and does not block the caller.
func (d *Dispatcher) Dispatch(event AlertEvent) {
	if d == nil {
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	for _, cfg := range d.configs {
		if !matches(cfg.Events, event) {
			continue
		}
		d.wg.Add(1)
		go func(cfg AlertConfig) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), deliveryBudget)
			defer cancel()
			if err := Send(ctx, cfg, event); err != nil {
				d.logger.Warn("alert delivery failed", "url", cfg.URL, "type", event.Type, "error", err)
			}
		}(cfg)
	}
}

// Wait blocks until every in-flight delivery has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func matches(events []string, event AlertEvent) bool {
	for _, e := range events {
		if e == event.Type || e == "*" {
			return true
		}
	}
	return false
}

// BurnHook delivers burn notifications as tokens_burned alerts.
type BurnHook struct {
	Dispatcher *Dispatcher
}

// OnTokensBurned dispatches a tokens_burned event. It never blocks on delivery.
func (h BurnHook) OnTokensBurned(_ context.Context, account model.AccountID, amount *uint256.Int) {
	h.Dispatcher.Dispatch(AlertEvent{
		Type:    EventTokensBurned,
		Account: string(account),
		Amount:  model.FormatAmount(amount),
	})
}
