// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package correlator implements the event-correlation engine: the
// Correlator type orchestrates message ingestion, key evaluation,
// context lookup/creation, timer (re)scheduling and synthetic emission
// on expiry, behind a single coarse lock. It is the direct analogue of
// the teacher's facade.HioloadWS orchestration struct, generalized from
// a WebSocket server facade to a log-pipeline correlation stage.
package correlator

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/momentics/logcorrelate/api"
	"github.com/momentics/logcorrelate/control"
	"github.com/momentics/logcorrelate/internal/arena"
	"github.com/momentics/logcorrelate/internal/keying"
	"github.com/momentics/logcorrelate/internal/store"
	"github.com/momentics/logcorrelate/internal/tickdriver"
	"github.com/momentics/logcorrelate/internal/timerwheel"
	"github.com/momentics/logcorrelate/internal/vclock"
)

// arenaHandle is a local alias so persist.go doesn't need to import
// internal/arena directly for one type name.
type arenaHandle = arena.Handle

const tracerName = "github.com/momentics/logcorrelate/correlator"

// Correlator is the event-correlation engine described by spec.md §4.4.
// All mutation of clock, wheel, store and contexts happens under mu;
// expiry callbacks fire synchronously on whichever goroutine (Process or
// tick) crossed the deadline, still holding mu (spec.md §5).
type Correlator struct {
	mu sync.Mutex

	cfg   Config
	scope api.Scope

	clock    *vclock.Clock
	wheel    *timerwheel.Wheel
	store    *store.Store
	contexts *arena.Arena[*corrState]

	evaluator   api.TemplateEvaluator
	builder     api.SyntheticBuilder
	emitter     api.Emitter
	persistence api.PersistenceStore

	metrics *control.MetricsRegistry
	logger  *logrus.Logger
	tracer  trace.Tracer

	tick    api.TickSource
	wallNow func() time.Time
	started bool
}

// Option customizes a Correlator's collaborators at construction time.
// Every spec.md "external collaborator" (template evaluator, synthetic
// builder, emitter, persistence store) is swappable this way; New
// supplies working defaults for whichever are omitted.
type Option func(*Correlator)

// WithTemplateEvaluator overrides the default text/template evaluator.
func WithTemplateEvaluator(e api.TemplateEvaluator) Option {
	return func(c *Correlator) { c.evaluator = e }
}

// WithSyntheticBuilder overrides the default synthetic-message builder.
func WithSyntheticBuilder(b api.SyntheticBuilder) Option {
	return func(c *Correlator) { c.builder = b }
}

// WithEmitter overrides the default logrus emitter (emit.LogrusEmitter).
func WithEmitter(e api.Emitter) Option {
	return func(c *Correlator) { c.emitter = e }
}

// WithPersistence overrides the default no-op persistence store.
func WithPersistence(p api.PersistenceStore) Option {
	return func(c *Correlator) { c.persistence = p }
}

// WithMetrics overrides the default, freshly created metrics registry —
// useful to share one registry across several correlator instances.
func WithMetrics(m *control.MetricsRegistry) Option {
	return func(c *Correlator) { c.metrics = m }
}

// WithLogger overrides the default logrus logger.
func WithLogger(l *logrus.Logger) Option {
	return func(c *Correlator) { c.logger = l }
}

// WithTracer overrides the default OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Correlator) { c.tracer = t }
}

// WithTickSource overrides the default real-time tickdriver.Driver —
// tests inject a fake TickSource that fires tick() on demand instead of
// on a wall-clock cadence (spec.md §9, "Coroutine/event-loop coupling").
func WithTickSource(t api.TickSource) Option {
	return func(c *Correlator) { c.tick = t }
}

// WithWallClock overrides how the engine reads "real" wall time,
// letting tests drive the clamp rules of spec.md §4.1 deterministically
// instead of racing against actual elapsed time.
func WithWallClock(now func() time.Time) Option {
	return func(c *Correlator) { c.wallNow = now }
}

// New constructs a Correlator from cfg, applying opts over default
// collaborators. It validates cfg (spec.md §7's fatal ConfigError) but
// does not yet start the tick driver or load persisted state: call Init
// for that.
func New(cfg *Config, opts ...Option) (*Correlator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Validate checks scope only when a key template is set; without one,
	// an unknown name yields ScopeGlobal, which pass-through never reads.
	scope, _ := api.ParseScope(cfg.Scope)

	c := &Correlator{
		cfg:      *cfg,
		scope:    scope,
		store:    store.New(),
		contexts: arena.New[*corrState](),

		evaluator:   defaultEvaluator(),
		builder:     defaultBuilder(cfg.Prefix),
		emitter:     defaultEmitter(),
		persistence: noopPersistence{},

		metrics: control.NewMetricsRegistry(),
		logger:  defaultLogger(),
		tracer:  otel.Tracer(tracerName),
		wallNow: time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.tick == nil {
		c.tick = defaultTickDriver(cfg, c.logger)
	}
	c.clock = vclock.New(c.wallNow())
	c.wheel = timerwheel.New(c.clock.Now())
	return c, nil
}

// defaultTickDriver builds the real tickdriver.Driver used when no
// WithTickSource override is supplied, pinning it to CPU 0 when
// cfg.PinTickDriver asks for it (spec.md §6).
func defaultTickDriver(cfg *Config, logger *logrus.Logger) api.TickSource {
	if !cfg.PinTickDriver {
		return tickdriver.New()
	}
	return tickdriver.New(tickdriver.WithPin(0), tickdriver.WithLogger(logger))
}

func defaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	return l
}

// Init loads any previously persisted correlation state (spec.md §4.4)
// and starts the tick driver. A corrupt or unreadable snapshot is a
// PersistError: logged, and the engine starts with empty state rather
// than failing init (spec.md §7).
func (c *Correlator) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	blob, err := c.persistence.Load(ctx, c.cfg.PersistName)
	if err != nil {
		c.logger.WithError(err).Warn("correlation state unreadable at init, starting empty")
	} else {
		snap, err := unmarshalSnapshot(blob)
		if err != nil {
			c.logger.WithError(err).Warn("correlation state corrupt at init, starting empty")
		} else {
			c.restore(snap)
		}
	}

	c.tick.Start(c.cfg.TickInterval, c.tickLocked)
	c.started = true
	return nil
}

// restore rebuilds live contexts and wheel entries from a snapshot,
// reconstructing each deadline as restore_wall_now + remaining_delta
// (spec.md §6). Called with mu held.
func (c *Correlator) restore(snap persistSnapshot) {
	nowS := c.clock.Now()
	for _, pc := range snap.Contexts {
		var key keying.Key
		if err := key.UnmarshalText([]byte(pc.KeyText)); err != nil {
			c.logger.WithError(err).Warn("skipping unreadable persisted context key")
			continue
		}
		st := &corrState{
			key:              key,
			createdAtSeconds: pc.CreatedAtSeconds,
			timeoutSeconds:   pc.TimeoutSeconds,
			deadlineSeconds:  nowS + pc.RemainingDeltaSeconds,
		}
		for _, pm := range pc.Messages {
			st.messages = append(st.messages, restoreMessage(pm))
		}
		h := c.contexts.Alloc(st)
		c.contexts.Acquire(h)
		c.store.Insert(key, h)
		st.timerHandle = c.wheel.Add(st.deadlineSeconds, c.onExpire, h, c.releaseContext)
	}
}

// Deinit stops the tick driver and hands the current correlation state
// back to the persistence layer. Contexts are not flushed/emitted on
// shutdown: their timers resume at the same virtual deadlines on the
// next Init (spec.md §4.4).
func (c *Correlator) Deinit(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	// Stop must run with mu released: it blocks until the tick goroutine
	// returns from its loop, and that goroutine blocks on mu.Lock() inside
	// tickLocked if a tick is in flight. Holding mu across Stop() here
	// would deadlock against that goroutine.
	c.tick.Stop()

	c.mu.Lock()
	snap := c.buildSnapshot(c.clock.Now())
	c.started = false
	c.mu.Unlock()

	var merr *multierror.Error
	blob, err := marshalSnapshot(snap)
	if err != nil {
		merr = multierror.Append(merr, errors.Wrap(err, "marshal correlation snapshot"))
		return merr.ErrorOrNil()
	}
	if err := c.persistence.Save(ctx, c.cfg.PersistName, blob); err != nil {
		merr = multierror.Append(merr, errors.Wrap(err, "persist correlation snapshot"))
	} else {
		c.metrics.Incr(control.MetricPersistedSnapshots, 1)
	}
	return merr.ErrorOrNil()
}

// Process implements spec.md §4.4's process(msg) -> forwarded. Template
// and allocation failures are non-fatal: the message is forwarded
// unmodified and no error reaches the caller, per spec.md §7.
func (c *Correlator) Process(msg *api.Message) (forwarded bool) {
	_, span := c.tracer.Start(context.Background(), "correlator.process")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if forwarded {
			c.metrics.Incr(control.MetricMessagesForwarded, 1)
		}
	}()

	c.clock.AdvanceFromMessage(msg.Timestamp.Unix(), c.wallNow())
	c.wheel.SetTime(c.clock.Now())
	c.metrics.Incr(control.MetricMessagesProcessed, 1)

	if c.cfg.KeyTemplate == "" {
		return true
	}

	keyString, err := c.evaluator.Evaluate(c.cfg.KeyTemplate, msg)
	if err != nil {
		c.metrics.Incr(control.MetricTemplateErrors, 1)
		c.logger.WithFields(logrus.Fields{
			"error_kind": api.ErrCodeTemplate.String(),
			"utc":        c.wallNow().UTC(),
		}).WithError(err).Warn("key template evaluation failed, forwarding unmodified")
		return true
	}
	prevID := msg.ContextID()
	if err := msg.SetContextID(keyString); err != nil {
		c.logger.WithError(err).Warn("could not write context id onto message")
		return true
	}

	key := keying.New(c.scope, keyString, msg)
	span.SetAttributes(attribute.String("context.key", key.String()), attribute.String("context.scope", c.scope.String()))

	now := c.clock.Now()
	deadline := now + c.cfg.TimeoutSeconds

	h, ok := c.store.Lookup(key)
	var st *corrState
	if !ok {
		if c.cfg.MaxContexts > 0 && c.contexts.Len() >= c.cfg.MaxContexts {
			c.metrics.Incr(control.MetricAllocFailures, 1)
			c.logger.WithFields(logrus.Fields{
				"context":    key.String(),
				"error_kind": api.ErrCodeAllocFailure.String(),
			}).Warn("context capacity exceeded, forwarding unmodified")
			_ = msg.SetContextID(prevID)
			return true
		}
		st = &corrState{key: key, createdAtSeconds: now, timeoutSeconds: c.cfg.TimeoutSeconds, deadlineSeconds: deadline}
		h = c.contexts.Alloc(st)  // store's reference
		c.contexts.Acquire(h)     // timer's reference
		c.store.Insert(key, h)
		st.timerHandle = c.wheel.Add(deadline, c.onExpire, h, c.releaseContext)
		c.metrics.Incr(control.MetricContextsActive, 1)
	} else {
		var found bool
		st, found = c.contexts.Get(h)
		if !found {
			// store and arena disagree: treat as AllocFailure rather than panic.
			c.metrics.Incr(control.MetricAllocFailures, 1)
			_ = msg.SetContextID(prevID)
			return true
		}
		c.wheel.Mod(st.timerHandle, deadline)
		st.deadlineSeconds = deadline
	}

	cloned := msg.Clone()
	cloned.Freeze()
	st.messages = append(st.messages, cloned)
	msg.Freeze()

	return true
}

// tickLocked is the function handed to the TickSource; it acquires mu
// itself since the tick driver calls it from its own goroutine.
func (c *Correlator) tickLocked() {
	_, span := c.tracer.Start(context.Background(), "correlator.tick")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock.AdvanceFromTick(c.wallNow())
	c.wheel.SetTime(c.clock.Now())
}

// onExpire is the timer wheel's callback, invoked with the arena handle
// of the expiring context, already under mu (called from the SetTime
// call in either Process or tickLocked, both of which hold the lock for
// the wheel's entire firing loop). It builds and
// emits the synthetic message and drops the store's reference; the
// timer's reference is released independently by releaseContext, the
// wheel's destroy-notify for this entry.
func (c *Correlator) onExpire(now int64, data any) {
	h, _ := data.(arenaHandle)
	st, ok := c.contexts.Get(h)
	if !ok {
		return
	}

	_, span := c.tracer.Start(context.Background(), "correlator.expire")
	span.SetAttributes(
		attribute.String("context.key", st.key.String()),
		attribute.Int64("context_timeout", st.timeoutSeconds),
		attribute.Int("num_messages", len(st.messages)),
	)
	defer span.End()

	synthetic, err := c.builder.Generate(c.cfg.SyntheticTemplate, st.snapshot(now))
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"context":            st.key.String(),
			"context_timeout":    st.timeoutSeconds,
			"context_expiration": now,
			"num_messages":       len(st.messages),
			"error_kind":         api.ErrCodeTemplate.String(),
		}).WithError(err).Warn("synthetic message template failed, context dropped unemitted")
	} else if err := c.emitter.Emit(context.Background(), synthetic); err != nil {
		c.metrics.Incr(control.MetricDownstreamErrors, 1)
		c.logger.WithFields(logrus.Fields{
			"context":    st.key.String(),
			"error_kind": api.ErrCodeDownstream.String(),
		}).WithError(err).Warn("downstream emit failed, context still removed")
	}

	c.store.Remove(st.key)
	c.contexts.Release(h)
	c.metrics.Incr(control.MetricContextsActive, -1)
	c.metrics.Incr(control.MetricContextsExpired, 1)
}

// releaseContext is the timer wheel's DestroyNotify for every context
// entry: it releases the timer's own arena reference. Paired with the
// store's reference released in onExpire, the arena frees the slot once
// both sides are done (spec.md §9's handle-table redesign).
func (c *Correlator) releaseContext(data any) {
	h, _ := data.(arenaHandle)
	c.contexts.Release(h)
}

// Clone returns a wholly independent Correlator sharing no state with c
// (spec.md §9's Open Question, resolved as option (b)): same
// configuration, template evaluator, synthetic builder, emitter,
// persistence store, logger, tracer and wall clock; fresh
// clock/wheel/store/arena, a fresh metrics registry, and a default tick
// driver (a WithMetrics or WithTickSource override is not carried over).
func (c *Correlator) Clone() (*Correlator, error) {
	c.mu.Lock()
	cfg := c.cfg
	wallNow := c.wallNow
	clone := &Correlator{
		cfg:         cfg,
		scope:       c.scope,
		store:       store.New(),
		contexts:    arena.New[*corrState](),
		evaluator:   c.evaluator,
		builder:     c.builder,
		emitter:     c.emitter,
		persistence: c.persistence,
		metrics:     control.NewMetricsRegistry(),
		logger:      c.logger,
		tracer:      c.tracer,
		tick:        defaultTickDriver(&cfg, c.logger),
		wallNow:     wallNow,
	}
	clone.clock = vclock.New(wallNow())
	c.mu.Unlock()
	clone.wheel = timerwheel.New(clone.clock.Now())
	return clone, nil
}

// Metrics exposes the correlator's metrics registry for an operator or
// the correlatectl CLI to poll.
func (c *Correlator) Metrics() *control.MetricsRegistry { return c.metrics }

// PendingContexts reports the number of live, not-yet-expired contexts
// currently scheduled on the timer wheel, for an operator's debug probes.
func (c *Correlator) PendingContexts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wheel.Pending()
}

// SetScope updates the key scope on an already-running engine, the
// recoverable counterpart to New's fatal ConfigError: a hot reload that
// names an unrecognized scope should not stop an engine that is already
// serving traffic, so an unknown name falls back to ScopeGlobal with a
// logged warning via keying.NormalizeScope instead of being rejected.
func (c *Correlator) SetScope(requested string) {
	scope := keying.NormalizeScope(requested)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scope = scope
}
