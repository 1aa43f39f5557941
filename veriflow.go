// Package veriflow wires the multi-agent verification pipeline — routing,
// wave execution, weighted aggregation, ensemble decision and health
// monitoring — behind a single Engine facade.
//
// Usage:
//
//	eng, err := veriflow.New(veriflow.WithLogger(logger))
//	if err != nil { ... }
//	defer eng.Close()
//
//	eng.RegisterAgents(builtin.All(nil, logger)...)
//
//	decision, err := eng.VerifyContent(ctx, "the claim to check", types.ContentKindText)
//
// Every collaborator is replaceable through functional options; by default
// the engine runs fully in-memory with no store, cache or metrics attached.
package veriflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/agent"
	"github.com/veriflow-ai/veriflow/aggregate"
	"github.com/veriflow-ai/veriflow/config"
	"github.com/veriflow-ai/veriflow/decision"
	"github.com/veriflow-ai/veriflow/event"
	"github.com/veriflow-ai/veriflow/health"
	"github.com/veriflow-ai/veriflow/internal/cache"
	"github.com/veriflow-ai/veriflow/internal/metrics"
	"github.com/veriflow-ai/veriflow/persistence"
	"github.com/veriflow-ai/veriflow/router"
	"github.com/veriflow-ai/veriflow/types"
	"github.com/veriflow-ai/veriflow/workflow"
)

// Cache is the decision cache consulted before the pipeline runs and
// written after it completes. Implemented by internal/cache.DecisionCache;
// any error from Get other than a miss is treated as a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*types.DecisionResult, error)
	Set(ctx context.Context, key string, result *types.DecisionResult) error
	Close() error
}

// Metrics receives pipeline-level measurements. Implemented by
// internal/metrics.Collector.
type Metrics interface {
	RecordWorkflow(status types.WorkflowStatus, duration time.Duration, agents int)
	WorkflowStarted()
	WorkflowFinished()
	RecordAgentInvocation(agentID string, success bool, latency time.Duration)
	SetAgentHealthScore(agentID string, score float64)
	RecordVerification(verdict types.Verdict, certainty types.Certainty, duration time.Duration)
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
	RecordAlert(alertType types.AlertType, severity types.AlertSeverity)
}

var (
	_ Cache   = (*cache.DecisionCache)(nil)
	_ Metrics = (*metrics.Collector)(nil)
)

// Option configures the Engine created by New.
type Option func(*engineOptions)

type engineOptions struct {
	cfg      *config.Config
	logger   *zap.Logger
	bus      event.Bus
	registry *agent.Registry
	store    persistence.Store
	cache    Cache
	metrics  Metrics
}

// WithConfig sets the full engine configuration. Defaults to
// config.DefaultConfig(); individual components normalize their own
// sections, so a zero section falls back to that component's defaults.
func WithConfig(cfg *config.Config) Option {
	return func(o *engineOptions) { o.cfg = cfg }
}

// WithLogger sets the root logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithBus sets a pre-built event bus. The caller keeps ownership: Close
// will not close a bus it did not create.
func WithBus(bus event.Bus) Option {
	return func(o *engineOptions) { o.bus = bus }
}

// WithRegistry sets a pre-populated agent registry. The caller keeps
// ownership.
func WithRegistry(registry *agent.Registry) Option {
	return func(o *engineOptions) { o.registry = registry }
}

// WithStore attaches a verification history store. Persistence is
// best-effort: store failures are logged, never surfaced to Verify callers.
func WithStore(store persistence.Store) Option {
	return func(o *engineOptions) { o.store = store }
}

// WithCache attaches a decision cache keyed by content digest.
func WithCache(c Cache) Option {
	return func(o *engineOptions) { o.cache = c }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(o *engineOptions) { o.metrics = m }
}

// Engine is the orchestration facade: one Verify call runs the full
// route → execute → aggregate → decide pipeline. Safe for concurrent use.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger

	bus        event.Bus
	registry   *agent.Registry
	router     *router.Router
	workflows  *workflow.Manager
	aggregator *aggregate.Aggregator
	decider    *decision.Engine
	monitor    *health.Monitor

	store   persistence.Store
	cache   Cache
	metrics Metrics

	ownsBus      bool
	ownsRegistry bool
	alertSub     string

	closeOnce sync.Once
	closeErr  error
}

// New assembles an Engine from the given options and starts the health
// monitor's background probe loop. The returned engine has no agents
// registered yet unless WithRegistry supplied a populated registry.
func New(opts ...Option) (*Engine, error) {
	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.cfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "engine")),
		store:   o.store,
		cache:   o.cache,
		metrics: o.metrics,
	}

	e.bus = o.bus
	if e.bus == nil {
		e.bus = event.NewBus(logger)
		e.ownsBus = true
	}
	e.registry = o.registry
	if e.registry == nil {
		e.registry = agent.NewRegistry(logger, e.bus)
		e.ownsRegistry = true
	}

	e.monitor = health.NewMonitor(e.registry, e.bus, &cfg.Health, logger)
	e.workflows = workflow.NewManager(e.registry, e.bus, e.monitor, &cfg.Workflow, logger)
	e.router = router.NewRouter(e.registry, &cfg.Router, logger)
	e.aggregator = aggregate.NewAggregator(&cfg.Aggregation, logger)
	e.decider = decision.NewEngine(&cfg.Decision, logger)

	e.monitor.Start(context.Background())

	if e.metrics != nil {
		e.alertSub = e.bus.Subscribe(types.EventHealthUpdate, func(ev types.Event) {
			payload, ok := ev.Payload.(types.HealthUpdatePayload)
			if !ok || payload.Alert == nil {
				return
			}
			e.metrics.RecordAlert(payload.Alert.Type, payload.Alert.Severity)
		})
	}

	e.logger.Info("verification engine assembled",
		zap.Bool("store", e.store != nil),
		zap.Bool("cache", e.cache != nil),
		zap.Bool("metrics", e.metrics != nil),
	)
	return e, nil
}

// RegisterAgents registers agents on the engine's registry, stopping at
// the first failure.
func (e *Engine) RegisterAgents(agents ...agent.Agent) error {
	for _, a := range agents {
		if err := e.registry.Register(a); err != nil {
			return err
		}
	}
	return nil
}

// Registry exposes the agent registry for registration and inspection.
func (e *Engine) Registry() *agent.Registry { return e.registry }

// Monitor exposes the health monitor for health and alert queries.
func (e *Engine) Monitor() *health.Monitor { return e.monitor }

// Bus exposes the event bus for subscriptions (e.g. live event streams).
func (e *Engine) Bus() event.Bus { return e.bus }

// Store exposes the attached history store, or nil.
func (e *Engine) Store() persistence.Store { return e.store }

// Workflows exposes the workflow manager for execution queries and cancel.
func (e *Engine) Workflows() *workflow.Manager { return e.workflows }

// RequestOption mutates a request built by VerifyContent.
type RequestOption func(*types.VerificationRequest)

// WithPriority sets the request priority.
func WithPriority(p types.Priority) RequestOption {
	return func(r *types.VerificationRequest) { r.Priority = p }
}

// WithMetadata sets the request metadata consumed by routing rules.
func WithMetadata(meta types.RequestMetadata) RequestOption {
	return func(r *types.VerificationRequest) { r.Metadata = meta }
}

// VerifyContent builds a medium-priority request for the content and runs
// Verify.
func (e *Engine) VerifyContent(ctx context.Context, content string, kind types.ContentKind, opts ...RequestOption) (*types.DecisionResult, error) {
	req := types.NewVerificationRequest(content, kind, types.RequestMetadata{}, types.PriorityMedium)
	for _, opt := range opts {
		opt(req)
	}
	return e.Verify(ctx, req)
}

// Verify runs the full pipeline for one request and returns the final
// decision.
//
// The pipeline completes for every terminal execution, including timeout
// and cancelled ones: a decision over partial results is still a decision,
// and the risk assessment flags thin evidence. Routing that selects zero
// agents fails with NO_CANDIDATE_AGENTS. Persistence and caching are
// best-effort and never fail the call.
func (e *Engine) Verify(ctx context.Context, req *types.VerificationRequest) (*types.DecisionResult, error) {
	if req == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "verification request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	digest := cache.Key(req.Content, req.ContentKind)
	if cached := e.cacheLookup(ctx, digest); cached != nil {
		out := *cached
		out.RequestID = req.ID
		e.logger.Debug("decision cache hit",
			zap.String("request_id", req.ID),
			zap.String("digest", digest),
		)
		return &out, nil
	}

	plan, err := e.router.Route(ctx, req)
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return nil, types.NewError(types.ErrNoCandidateAgents,
			fmt.Sprintf("no candidate agents for content kind %q", plan.ContentKind))
	}

	if e.metrics != nil {
		e.metrics.WorkflowStarted()
		defer e.metrics.WorkflowFinished()
	}

	exec, err := e.workflows.Execute(ctx, req, plan.SelectedAgents, plan.ExecutionOrder)
	if err != nil {
		return nil, err
	}

	scores := e.monitor.Scores()
	agg := e.aggregator.Aggregate(exec, scores)
	dec := e.decider.Decide(agg, req)

	e.persist(ctx, exec, dec)
	e.cacheStore(ctx, digest, dec)

	if e.metrics != nil {
		for id, resp := range exec.Results {
			e.metrics.RecordAgentInvocation(id, true, resp.Latency)
		}
		for id := range exec.Errors {
			e.metrics.RecordAgentInvocation(id, false, 0)
		}
		e.metrics.RecordWorkflow(exec.Status, exec.Duration(), len(plan.SelectedAgents))
		e.metrics.RecordVerification(dec.Verdict, dec.Certainty, time.Since(start))
		for id, score := range scores {
			e.metrics.SetAgentHealthScore(id, score)
		}
	}

	e.logger.Info("verification completed",
		zap.String("request_id", req.ID),
		zap.String("workflow_id", exec.ID),
		zap.String("verdict", string(dec.Verdict)),
		zap.String("certainty", string(dec.Certainty)),
		zap.Float64("confidence", dec.Confidence),
		zap.Duration("elapsed", time.Since(start)),
	)
	return dec, nil
}

// cacheLookup returns the cached decision for the digest, or nil.
func (e *Engine) cacheLookup(ctx context.Context, digest string) *types.DecisionResult {
	if e.cache == nil {
		return nil
	}
	cached, err := e.cache.Get(ctx, digest)
	if err != nil {
		if !cache.IsCacheMiss(err) {
			e.logger.Warn("decision cache read failed", zap.Error(err))
		}
		if e.metrics != nil {
			e.metrics.RecordCacheMiss("decision")
		}
		return nil
	}
	if e.metrics != nil {
		e.metrics.RecordCacheHit("decision")
	}
	return cached
}

// persist saves the execution and decision. Failures are logged only;
// the save context survives caller cancellation so a timed-out request
// still leaves a history record.
func (e *Engine) persist(ctx context.Context, exec *types.WorkflowExecution, dec *types.DecisionResult) {
	if e.store == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := e.store.SaveExecution(saveCtx, exec); err != nil {
		e.logger.Warn("failed to persist execution",
			zap.String("workflow_id", exec.ID),
			zap.Error(err),
		)
	}
	if err := e.store.SaveDecision(saveCtx, dec); err != nil {
		e.logger.Warn("failed to persist decision",
			zap.String("request_id", dec.RequestID),
			zap.Error(err),
		)
	}
}

// cacheStore writes the decision through to the cache, best-effort.
func (e *Engine) cacheStore(ctx context.Context, digest string, dec *types.DecisionResult) {
	if e.cache == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := e.cache.Set(saveCtx, digest, dec); err != nil {
		e.logger.Warn("failed to cache decision",
			zap.String("digest", digest),
			zap.Error(err),
		)
	}
}

// Close tears down the monitor, workflow manager, owned bus and registry,
// store and cache. Idempotent; returns the joined error of all closers.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		var errs []error

		e.monitor.Stop()
		if err := e.workflows.Close(); err != nil {
			errs = append(errs, err)
		}
		if e.alertSub != "" {
			e.bus.Unsubscribe(e.alertSub)
		}
		if e.ownsRegistry {
			if err := e.registry.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if e.ownsBus {
			e.bus.Close()
		}
		if e.store != nil {
			if err := e.store.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if e.cache != nil {
			if err := e.cache.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		e.closeErr = errors.Join(errs...)
		e.logger.Info("verification engine closed")
	})
	return e.closeErr
}
