package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/taxii/internal/hooks"
	"github.com/roach88/taxii/internal/metrics"
	"github.com/roach88/taxii/internal/taxii"
)

// Notifier receives domain events. Implemented by *hooks.Registry.
type Notifier interface {
	Notify(ctx context.Context, ev hooks.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, hooks.Event) {}

// Request is the per-call context handed to every engine operation: the
// protocol dialect, the resolved service configuration and the optional
// caller identity.
type Request struct {
	Version taxii.Version
	Service taxii.ServiceConfig
	Account *taxii.Account
}

// Engine handles Poll, Poll-Fulfillment, Inbox, subscription management and
// collection information requests against a Repository.
//
// Thread-safety: Engine holds no mutable state of its own and is safe for
// concurrent use. Coordination is delegated to the repository.
type Engine struct {
	repo       taxii.Repository
	resultSets *ResultSetManager
	ids        IDGenerator // subscription ids
	messageIDs IDGenerator // reply message ids
	notifier   Notifier
	metrics    *metrics.Recorder
	now        func() time.Time
	log        *slog.Logger
}

// EngineOption allows configuration of engine collaborators.
type EngineOption func(*Engine)

// WithIDGenerator sets the generator for subscription and result set ids.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) { e.ids = g }
}

// WithMessageIDGenerator sets the generator for reply message ids.
// Default: KSUIDGenerator.
func WithMessageIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) { e.messageIDs = g }
}

// WithNotifier sets the hook collaborator.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithClock sets the time source used for ingest and default window bounds.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// New creates an Engine over repo.
func New(repo taxii.Repository, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:       repo,
		ids:        UUIDv7Generator{},
		messageIDs: KSUIDGenerator{},
		notifier:   nopNotifier{},
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resultSets = NewResultSetManager(repo, e.ids)
	return e
}

// NewMessageID returns a fresh reply message id.
func (e *Engine) NewMessageID() string {
	return e.messageIDs.Generate()
}

// collection resolves a collection the request may act on. Missing and
// unavailable collections are both NOT_FOUND.
func (e *Engine) collection(ctx context.Context, rc Request, name string) (*taxii.Collection, error) {
	name = taxii.NormalizeName(name)
	c, err := e.repo.GetCollection(ctx, rc.Service.ID, name)
	if errors.Is(err, taxii.ErrNotFound) {
		return nil, NewNotFound(name, "collection %s not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}
	if !c.Available {
		return nil, NewNotFound(name, "collection %s not found", name)
	}
	return c, nil
}
