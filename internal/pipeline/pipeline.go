// Package pipeline implements the ingestion core: the consumer loop that
// reads transaction events, applies rule and model scoring, upserts durable
// state, and feeds the flagged-item cache.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fraudsight/fraudsight/internal/model"
	"github.com/fraudsight/fraudsight/internal/rules"
	"github.com/fraudsight/fraudsight/internal/scoring"
	"github.com/fraudsight/fraudsight/internal/service"
)

// State is the pipeline lifecycle state.
type State int32

// Pipeline states.
const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	}
	return "UNKNOWN"
}

// DefaultPollTimeout bounds each fetch so the loop observes stop requests
// with sub-second latency.
const DefaultPollTimeout = time.Second

// Config holds the pipeline's tunables.
type Config struct {
	PollTimeout time.Duration
}

// Pipeline owns the consume → evaluate → persist → cache control flow. One
// instance runs per process; Start and Stop are idempotent.
type Pipeline struct {
	source    service.MessageSource
	store     service.Storage
	cache     service.FlaggedCache
	evaluator *rules.Evaluator
	scorer    *scoring.Scorer

	pollTimeout time.Duration

	mu           sync.Mutex
	state        State
	cancel       context.CancelFunc
	done         chan struct{}
	runErr       error
	upserts      chan upsertJob
	sourceClosed bool
}

type upsertJob struct {
	ctx     context.Context
	event   model.InboundEvent
	score   float64
	isFraud bool
	errc    chan error
}

// New wires the pipeline's collaborators. The scorer must already hold a
// loaded model; composition fails before this point otherwise.
func New(source service.MessageSource, store service.Storage, cache service.FlaggedCache, evaluator *rules.Evaluator, scorer *scoring.Scorer, cfg Config) *Pipeline {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	return &Pipeline{
		source:      source,
		store:       store,
		cache:       cache,
		evaluator:   evaluator,
		scorer:      scorer,
		pollTimeout: cfg.PollTimeout,
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the error that terminated the last run, if any.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runErr
}

// Start spawns the single polling task. Calling Start while the pipeline is
// already running is a no-op.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateStopped {
		return nil
	}
	p.state = StateStarting
	p.runErr = nil

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.upserts = make(chan upsertJob)

	// Dedicated upsert worker: store writes happen off the polling path so a
	// slow store never stalls the poll/cancel check. The loop still waits for
	// each upsert, keeping the pipeline single-flight and order-preserving.
	go p.upsertWorker(p.upserts)

	go func() {
		defer close(p.done)
		err := p.run(runCtx)
		close(p.upserts)
		cancel()

		p.mu.Lock()
		p.runErr = err
		p.state = StateStopped
		p.mu.Unlock()

		if err != nil {
			slog.Error("Pipeline terminated", "error", err)
		}
		// Every exit path releases the subscription: a Stop call, a parent
		// context cancellation, or a fail-fast store error. Consumer-group
		// membership must not outlive the loop.
		_ = p.closeSource()
	}()

	p.state = StateRunning
	slog.Info("Pipeline started")
	return nil
}

// Stop raises the stop signal, waits for the polling task to finish the
// message it is on, then releases the broker subscription. Calling Stop on a
// stopped pipeline is a no-op.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return nil
	}
	p.state = StateStopping
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done

	err := p.closeSource()

	slog.Info("Pipeline stopped")
	return err
}

func (p *Pipeline) closeSource() error {
	p.mu.Lock()
	if p.sourceClosed {
		p.mu.Unlock()
		return nil
	}
	p.sourceClosed = true
	p.mu.Unlock()

	return p.source.Close()
}

// run is the polling loop. It exits nil on stop, or with the store error on
// an upsert failure: a dead store takes the pipeline down rather than
// silently dropping data.
func (p *Pipeline) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fetchCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
		msg, err := p.source.Fetch(fetchCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				// Poll timeout: the sole cancellation-observation point.
				continue
			}
			// Transient broker failure; back off one poll interval so a
			// hard-down broker does not spin the loop.
			slog.Warn("Fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.pollTimeout):
			}
			continue
		}

		if err := p.handle(ctx, msg); err != nil {
			return err
		}
	}
}

// handle processes one message to completion. Once a message decodes, the
// remaining steps run even if a stop was requested meanwhile, so no message
// is left half-processed.
func (p *Pipeline) handle(ctx context.Context, msg service.Message) error {
	var event model.InboundEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// Malformed input is not redeliverable; drop with no record kept.
		messagesDropped.Inc()
		slog.Debug("Dropping undecodable message", "error", err)
		return nil
	}

	result := Classify(p.evaluator, p.scorer, event)

	// Detach from the stop signal: steps past decode always complete.
	workCtx := context.WithoutCancel(ctx)

	errc := make(chan error, 1)
	p.upserts <- upsertJob{
		ctx:     workCtx,
		event:   event,
		score:   result.Score,
		isFraud: result.IsFraud,
		errc:    errc,
	}
	if err := <-errc; err != nil {
		upsertFailures.Inc()
		return fmt.Errorf("upsert for %s failed: %w", event.TransactionID, err)
	}

	messagesConsumed.Inc()

	if result.IsFraud {
		messagesFlagged.Inc()
		// Best-effort: cache failures are not surfaced to the loop.
		if err := p.cache.PushFlagged(workCtx, event.TransactionID, msg.Value); err != nil {
			cachePushFailures.Inc()
			slog.Warn("Flagged cache push failed",
				"transaction_id", event.TransactionID,
				"error", err)
		}
		slog.Info("Transaction flagged",
			"transaction_id", event.TransactionID,
			"score", result.Score,
			"rule_reasons", result.RuleReasons)
	}

	return nil
}

// upsertWorker executes store writes sequentially, one in flight at a time.
func (p *Pipeline) upsertWorker(jobs <-chan upsertJob) {
	for job := range jobs {
		job.errc <- p.store.UpsertScored(job.ctx, job.event, job.score, job.isFraud)
	}
}
