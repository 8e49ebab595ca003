package telegram

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	cmdpkg "github.com/gritsenko31/ai-chat-bot/internal/commander"
	"github.com/gritsenko31/ai-chat-bot/internal/control"
	"github.com/gritsenko31/ai-chat-bot/internal/db"
)

const sourceErrorClass = "command_source_api"

// Handler processes one inbound update.
type Handler interface {
	HandleUpdate(ctx context.Context, update Update) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, update Update) error

func (f HandlerFunc) HandleUpdate(ctx context.Context, update Update) error {
	return f(ctx, update)
}

// PollerConfig controls the long-poll loop.
type PollerConfig struct {
	// Timeout is the getUpdates long-poll timeout in seconds.
	Timeout int
	// Sleep is the pause after an empty poll and the minimum failure backoff.
	Sleep time.Duration
	// DropPending skips updates queued before the poller started.
	DropPending bool
	// Concurrency bounds how many users are served at the same time.
	Concurrency int
}

// Poller pulls updates with getUpdates and hands them to a Handler.
// Updates of one sender are handled in order; different senders in parallel.
type Poller struct {
	source  cmdpkg.Commander
	handler Handler
	cfg     PollerConfig
	circuit *control.CircuitBreaker
	journal *db.Journal
	logger  *slog.Logger

	offset int64
}

func NewPoller(source cmdpkg.Commander, handler Handler, cfg PollerConfig, journal *db.Journal, logger *slog.Logger) *Poller {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Sleep <= 0 {
		cfg.Sleep = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		source:  source,
		handler: handler,
		cfg:     cfg,
		circuit: control.NewCircuitBreaker(5, 30*time.Second),
		journal: journal,
		logger:  logger.With("component", "poller"),
	}
}

// Offset returns the next update ID to request.
func (p *Poller) Offset() int64 {
	return p.offset
}

// Run polls until ctx is cancelled. It only returns nil.
func (p *Poller) Run(ctx context.Context) error {
	if p.cfg.DropPending {
		p.skipPending(ctx)
	}
	p.logger.Info("polling started", "offset", p.offset, "timeout", p.cfg.Timeout, "concurrency", p.cfg.Concurrency)

	failures := 0
	for ctx.Err() == nil {
		prevState := p.circuit.State()
		if !p.circuit.Allow(time.Now()) {
			sleepContext(ctx, p.cfg.Sleep)
			continue
		}
		if prevState == control.CircuitOpen && p.circuit.State() == control.CircuitHalfOpen {
			p.logger.Info("circuit half-open, probing getUpdates")
			p.journal.Record(nil, db.EventCircuitHalfOpen, map[string]any{"error_class": p.circuit.OpenedClass()})
		}

		started := time.Now()
		updates, err := p.source.GetUpdates(ctx, p.offset, p.cfg.Timeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			failures++
			p.logger.Warn("getUpdates failed", "attempt", failures, "error", err)
			if p.circuit.RecordFailure(sourceErrorClass, time.Now()) {
				p.logger.Error("circuit opened", "threshold", p.circuit.Threshold, "cooldown", p.circuit.Cooldown)
				p.journal.Record(nil, db.EventCircuitOpened, map[string]any{
					"error_class":      sourceErrorClass,
					"threshold":        p.circuit.Threshold,
					"cooldown_seconds": int(p.circuit.Cooldown.Seconds()),
				})
			}
			sleepContext(ctx, control.RetryBackoff(failures, p.cfg.Sleep))
			continue
		}
		failures = 0
		if p.circuit.RecordSuccess() {
			p.logger.Info("circuit closed")
			p.journal.Record(nil, db.EventCircuitClosed, map[string]any{"recovered": true})
		}

		if len(updates) == 0 {
			// An empty poll that returned before the long-poll window elapsed is idle.
			window := time.Duration(p.cfg.Timeout) * time.Second
			if window == 0 || time.Since(started) < window {
				sleepContext(ctx, p.cfg.Sleep)
			}
			continue
		}
		p.Dispatch(ctx, updates)
	}
	p.logger.Info("polling stopped", "offset", p.offset)
	return nil
}

// Dispatch advances the offset past updates and handles them, grouping by
// sender. It returns once every update has been handled.
func (p *Poller) Dispatch(ctx context.Context, updates []Update) {
	groups := make(map[int64][]Update)
	var order []int64
	for _, u := range updates {
		if u.UpdateID >= p.offset {
			p.offset = u.UpdateID + 1
		}
		var key int64
		if u.Message != nil {
			key = u.Message.SenderID()
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], u)
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for _, key := range order {
		batch := groups[key]
		g.Go(func() error {
			for _, u := range batch {
				if err := p.handler.HandleUpdate(ctx, u); err != nil {
					p.logger.Error("update handling failed", "update_id", u.UpdateID, "error", err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

// skipPending moves the offset past updates queued while the bot was down.
func (p *Poller) skipPending(ctx context.Context) {
	updates, err := p.source.GetUpdates(ctx, -1, 0)
	if err != nil {
		p.logger.Warn("skipping pending updates failed", "error", err)
		return
	}
	if len(updates) == 0 {
		return
	}
	last := updates[len(updates)-1].UpdateID
	p.offset = last + 1
	p.logger.Info("dropped pending updates", "last_update_id", last)
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
