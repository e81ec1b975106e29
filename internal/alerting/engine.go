package alerting

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/anomaly"
	"github.com/campaignwatch/campaignwatch/internal/competitor"
	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/datastore/repository"
	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/campaignwatch/campaignwatch/internal/logger"
	"github.com/campaignwatch/campaignwatch/internal/metricsource"
	"github.com/campaignwatch/campaignwatch/internal/notification"
	"github.com/campaignwatch/campaignwatch/internal/observability"
	"github.com/campaignwatch/campaignwatch/internal/trend"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCycleInterval     = time.Minute
	defaultFetchTimeout      = 10 * time.Second
	defaultPersistTimeout    = 3 * time.Second
	defaultNotifyTimeout     = 5 * time.Second
	defaultCompetitorTimeout = 5 * time.Second
	defaultMaxTenants        = 4

	// cleanupTimeout bounds one retention delete.
	cleanupTimeout = 30 * time.Second
	// cleanupInterval is how often instance retention runs.
	cleanupInterval = time.Hour
)

// AnomalyDetector scores an observation against the model for key.
// *anomaly.Registry implements it.
type AnomalyDetector interface {
	Detect(ctx context.Context, key anomaly.Key, history []anomaly.Point, current float64, at time.Time, opts anomaly.DetectOptions) anomaly.Result
}

// modelTrainer is implemented by detectors that support explicit retraining.
type modelTrainer interface {
	Retrain(ctx context.Context, key anomaly.Key, history []anomaly.Point, opts anomaly.DetectOptions) (anomaly.Status, error)
	Status(key anomaly.Key) (anomaly.Status, bool)
}

// Notifier hands a request to notification delivery.
type Notifier interface {
	Notify(ctx context.Context, req *notification.Request) error
}

// Deps are the collaborators of an Engine. Detector, Competitors and
// Notifier are optional.
type Deps struct {
	Configs     repository.AlertConfigRepository
	Instances   repository.AlertInstanceRepository
	Metrics     metricsource.Provider
	Detector    AnomalyDetector
	Competitors competitor.Provider
	Notifier    Notifier
}

// Options bounds engine I/O and background work. Zero values use defaults.
type Options struct {
	CycleInterval         time.Duration
	FetchTimeout          time.Duration
	PersistTimeout        time.Duration
	NotifyTimeout         time.Duration
	CompetitorTimeout     time.Duration
	MaxConcurrentTenants  int
	InstanceRetentionDays int
}

func (o *Options) applyDefaults() {
	if o.CycleInterval <= 0 {
		o.CycleInterval = defaultCycleInterval
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = defaultFetchTimeout
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = defaultPersistTimeout
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = defaultNotifyTimeout
	}
	if o.CompetitorTimeout <= 0 {
		o.CompetitorTimeout = defaultCompetitorTimeout
	}
	if o.MaxConcurrentTenants <= 0 {
		o.MaxConcurrentTenants = defaultMaxTenants
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides instance and notification id generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithMetrics records evaluation outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.stats = m }
}

// WithGatingPolicy replaces DefaultGatingPolicy.
func WithGatingPolicy(p GatingPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// Engine evaluates due alert configurations and records alert instances.
type Engine struct {
	configs     repository.AlertConfigRepository
	instances   repository.AlertInstanceRepository
	metrics     metricsource.Provider
	detector    AnomalyDetector
	competitors competitor.Provider
	notifier    Notifier

	policy GatingPolicy
	opts   Options
	stats  *observability.Metrics
	log    logger.Logger
	now    func() time.Time
	newID  func() string

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an engine. Call Start to run the scheduler loop or
// RunCycle to evaluate a tenant once.
func NewEngine(deps Deps, opts Options, log logger.Logger, options ...Option) *Engine {
	opts.applyDefaults()
	e := &Engine{
		configs:     deps.Configs,
		instances:   deps.Instances,
		metrics:     deps.Metrics,
		detector:    deps.Detector,
		competitors: deps.Competitors,
		notifier:    deps.Notifier,
		policy:      DefaultGatingPolicy(),
		opts:        opts,
		log:         log.Module("alerting"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// RunCycle checks every active configuration of tenantID once, in order,
// and returns the instances created. A failure in one configuration is
// logged and does not stop the others.
func (e *Engine) RunCycle(ctx context.Context, tenantID string) ([]*entities.AlertInstance, error) {
	start := e.now()
	defer func() { e.stats.ObserveCycle(tenantID, e.now().Sub(start)) }()

	configs, err := e.configs.ListActiveConfigs(ctx, tenantID)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to list active configurations: %w", err)).
			Component("alerting").
			Category(errors.CategoryDatabase).
			Context("tenant_id", tenantID).
			Build()
	}

	var created []*entities.AlertInstance
	for i := range configs {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		if inst := e.checkConfig(ctx, &configs[i], e.now()); inst != nil {
			created = append(created, inst)
		}
	}

	if len(created) > 0 {
		e.log.Info("evaluation cycle completed",
			logger.String("tenant_id", tenantID),
			logger.Int("configs", len(configs)),
			logger.Int("triggered", len(created)))
	}
	return created, nil
}

// checkConfig runs one configuration through the scheduling gates and, when
// due, evaluates it and advances its schedule. Panics are recovered.
func (e *Engine) checkConfig(ctx context.Context, cfg *entities.AlertConfig, now time.Time) (inst *entities.AlertInstance) {
	log := e.log.With(
		logger.Uint64("alert_id", uint64(cfg.ID)),
		logger.String("tenant_id", cfg.TenantID),
		logger.String("metric", cfg.MetricName))

	defer func() {
		if r := recover(); r != nil {
			log.Error("alert evaluation panicked", logger.Any("panic", r))
			e.stats.RecordEvaluation(observability.OutcomeFailed)
			inst = nil
		}
	}()

	cc := Compile(cfg)
	for _, p := range cc.Problems {
		log.Warn("alert configuration problem", logger.String("problem", p))
	}

	if !IsDue(cfg.NextCheck, now) {
		e.stats.RecordEvaluation(observability.OutcomeNotDue)
		return nil
	}
	if !CooldownElapsed(cfg.LastTriggered, cc.Cooldown, now) {
		e.stats.RecordEvaluation(observability.OutcomeCooldown)
		log.Debug("alert in cooldown", logger.Duration("cooldown", cc.Cooldown))
		return nil
	}

	inst, req := e.evaluate(ctx, cc, now, log)
	if inst != nil {
		if err := e.persist(ctx, inst); err != nil {
			log.Error("failed to save alert instance", logger.Error(err))
			e.stats.RecordError(string(errors.CategoryDatabase))
			e.stats.RecordEvaluation(observability.OutcomeFailed)
			inst, req = nil, nil
		}
	}

	e.advanceSchedule(ctx, cc, now, inst != nil, log)

	if inst != nil {
		e.stats.RecordEvaluation(observability.OutcomeTriggered)
		e.stats.RecordTriggered(cc.Severity)
		log.Info("alert triggered",
			logger.String("instance_id", inst.ID),
			logger.Float64("value", inst.MetricValue),
			logger.Float64("deviation", inst.DeviationPercentage))
		e.notify(ctx, req, log)
	}
	return inst
}

// evaluate fetches data and applies the gating policy. It returns nil when
// no instance should be created.
func (e *Engine) evaluate(ctx context.Context, cc *CompiledConfig, now time.Time, log logger.Logger) (*entities.AlertInstance, *notification.Request) {
	cfg := cc.Config

	data, err := e.fetch(ctx, metricsource.Query{
		TenantID:   cfg.TenantID,
		CampaignID: deref(cfg.CampaignID),
		MetricName: cfg.MetricName,
		Lookback:   cc.HistoryWindow(),
		At:         now,
	})
	if err != nil {
		log.Warn("metric data unavailable, skipping evaluation", logger.Error(err))
		e.stats.RecordError(string(errors.CategoryDataUnavailable))
		e.stats.RecordEvaluation(observability.OutcomeDataUnavailable)
		return nil, nil
	}

	if cc.Err != nil {
		log.Warn("alert condition is invalid", logger.Error(cc.Err))
		e.stats.RecordError(string(errors.CategoryConfig))
	}
	current := data.CurrentValue
	if !EvaluateCondition(current, cc.Operator, cfg.Threshold, cfg.SecondaryThreshold) {
		e.stats.RecordEvaluation(observability.OutcomeConditionFalse)
		return nil, nil
	}

	evalCtx := map[string]any{
		ContextCondition: map[string]any{
			"operator":            cc.Operator,
			"threshold":           cfg.Threshold.String(),
			"secondary_threshold": cfg.SecondaryThreshold,
			"current_value":       current,
		},
		ContextHistoricalData: map[string]any{
			"points":          len(data.Historical),
			"lookback_period": cc.Lookback.String(),
		},
	}

	var mlConfidence *float64
	if cfg.MLEnabled && e.policy.Enriches(SignalML) {
		res := e.detect(ctx, cc, data, now)
		e.stats.RecordMLOutcome(res.Outcome.String())
		evalCtx[ContextMLResult] = map[string]any{
			"outcome":       res.Outcome.String(),
			"is_anomaly":    res.IsAnomaly,
			"confidence":    res.Confidence,
			"anomaly_score": sanitize(res.Score),
		}
		if res.Outcome == anomaly.Signal {
			c := res.Confidence
			mlConfidence = &c
		}
		if e.policy.Gates(SignalML) && (res.Outcome != anomaly.Signal || !res.IsAnomaly) {
			switch res.Outcome {
			case anomaly.EvaluationError:
				log.Warn("anomaly detection failed, alert suppressed", logger.Error(res.Err))
				e.stats.RecordError(string(errors.CategoryModel))
			case anomaly.NoSignal:
				log.Debug("anomaly model has no signal, alert suppressed", logger.String("reason", res.Reason))
			default:
				log.Debug("value not anomalous, alert suppressed", logger.Float64("confidence", res.Confidence))
			}
			e.stats.RecordEvaluation(observability.OutcomeSuppressed)
			return nil, nil
		}
	}

	if cfg.TrendEnabled && e.policy.Enriches(SignalTrend) {
		values := pointsValues(data.Since(now.Add(-cc.Lookback)))
		res, ok := trend.Analyze(values, trend.Options{Seasonal: cfg.SeasonalEnabled})
		if ok {
			evalCtx[ContextTrend] = res
		} else {
			evalCtx[ContextTrend] = map[string]any{"available": false, "points": len(values)}
		}
		if e.policy.Gates(SignalTrend) && (!ok || res.Direction == trend.DirectionStable) {
			e.stats.RecordEvaluation(observability.OutcomeSuppressed)
			return nil, nil
		}
	}

	if cfg.CompetitorEnabled && e.policy.Enriches(SignalCompetitor) {
		sig := e.competitorSignal(ctx, cfg, current, log)
		if sig != nil {
			evalCtx[ContextCompetitor] = sig
		}
		if e.policy.Gates(SignalCompetitor) && (sig == nil || sig.ThreatLevel == competitor.ThreatLow) {
			e.stats.RecordEvaluation(observability.OutcomeSuppressed)
			return nil, nil
		}
	}

	var deviation float64
	if cfg.Threshold.IsNumeric() {
		deviation = Deviation(current, cfg.Threshold.Number)
	}

	channels := []string(cfg.Channels)
	if len(channels) == 0 {
		channels = []string{"log"}
	}
	notificationID := e.newID()
	inst := &entities.AlertInstance{
		ID:                   e.newID(),
		AlertID:              cfg.ID,
		TenantID:             cfg.TenantID,
		CampaignID:           cfg.CampaignID,
		TriggeredAt:          now,
		MetricName:           cfg.MetricName,
		MetricValue:          current,
		ThresholdValue:       cfg.Threshold,
		DeviationPercentage:  deviation,
		Context:              evalCtx,
		MLConfidence:         mlConfidence,
		Status:               repository.InstanceStatusActive,
		NotificationChannels: channels,
		NotificationIDs:      entities.StringList{notificationID},
	}
	return inst, buildRequest(notificationID, cc, inst)
}

func (e *Engine) fetch(ctx context.Context, q metricsource.Query) (*metricsource.MetricData, error) {
	fctx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
	defer cancel()
	return e.metrics.Fetch(fctx, q)
}

func (e *Engine) detect(ctx context.Context, cc *CompiledConfig, data *metricsource.MetricData, now time.Time) anomaly.Result {
	if e.detector == nil {
		return anomaly.Result{Outcome: anomaly.NoSignal, Reason: "no detector configured"}
	}
	cfg := cc.Config
	history := toAnomalyPoints(data.Since(now.Add(-cc.TrainingWindow)))
	return e.detector.Detect(ctx,
		anomaly.Key{TenantID: cfg.TenantID, MetricName: cfg.MetricName},
		history, data.CurrentValue, now,
		anomaly.DetectOptions{
			TrainingWindowDays:  int(cc.TrainingWindow / (24 * time.Hour)),
			ConfidenceThreshold: cfg.MLConfidenceThreshold,
		})
}

func (e *Engine) competitorSignal(ctx context.Context, cfg *entities.AlertConfig, current float64, log logger.Logger) *competitor.Signal {
	if e.competitors == nil {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, e.opts.CompetitorTimeout)
	defer cancel()
	sig, err := e.competitors.Signal(cctx, competitor.Request{
		TenantID:     cfg.TenantID,
		CampaignID:   deref(cfg.CampaignID),
		MetricName:   cfg.MetricName,
		CurrentValue: current,
	})
	if err != nil {
		log.Warn("competitor signal unavailable", logger.Error(err))
		return nil
	}
	return sig
}

func (e *Engine) persist(ctx context.Context, inst *entities.AlertInstance) error {
	pctx, cancel := context.WithTimeout(ctx, e.opts.PersistTimeout)
	defer cancel()
	return e.instances.SaveInstance(pctx, inst)
}

// advanceSchedule records the check. next_check never moves backwards.
func (e *Engine) advanceSchedule(ctx context.Context, cc *CompiledConfig, now time.Time, triggered bool, log logger.Logger) {
	cfg := cc.Config
	next := now.Add(cc.FrequencyStep)
	if cfg.NextCheck != nil && cfg.NextCheck.After(next) {
		next = *cfg.NextCheck
	}
	update := repository.ScheduleUpdate{LastChecked: now, NextCheck: next}
	if triggered {
		update.Triggered = true
		update.LastTriggered = now
	}

	pctx, cancel := context.WithTimeout(ctx, e.opts.PersistTimeout)
	defer cancel()
	if err := e.configs.UpdateSchedule(pctx, cfg.ID, update); err != nil {
		log.Error("failed to update alert schedule", logger.Error(err))
		e.stats.RecordError(string(errors.CategoryDatabase))
		return
	}

	cfg.LastChecked = &now
	cfg.NextCheck = &next
	if triggered {
		cfg.LastTriggered = &now
		cfg.TriggerCount++
	}
}

func (e *Engine) notify(ctx context.Context, req *notification.Request, log logger.Logger) {
	if e.notifier == nil || req == nil {
		return
	}
	nctx, cancel := context.WithTimeout(ctx, e.opts.NotifyTimeout)
	defer cancel()
	if err := e.notifier.Notify(nctx, req); err != nil {
		log.Warn("failed to queue notification",
			logger.String("notification_id", req.ID),
			logger.Error(err))
		e.stats.RecordError(string(errors.CategoryNotification))
	}
}

// RetrainModel fetches the training window of a metric and retrains its
// anomaly model.
func (e *Engine) RetrainModel(ctx context.Context, tenantID, metricName string, windowDays int) (anomaly.Status, error) {
	trainer, ok := e.detector.(modelTrainer)
	if !ok {
		return anomaly.Status{}, errors.Newf("anomaly detection is not enabled").
			Component("alerting").
			Category(errors.CategoryValidation).
			Build()
	}
	if windowDays <= 0 {
		windowDays = DefaultMLTrainingWindowDays
	}
	window := time.Duration(windowDays) * 24 * time.Hour

	data, err := e.fetch(ctx, metricsource.Query{
		TenantID:   tenantID,
		MetricName: metricName,
		Lookback:   window,
		At:         e.now(),
	})
	if err != nil {
		return anomaly.Status{}, err
	}
	return trainer.Retrain(ctx,
		anomaly.Key{TenantID: tenantID, MetricName: metricName},
		toAnomalyPoints(data.Historical),
		anomaly.DetectOptions{TrainingWindowDays: windowDays})
}

// ModelStatus reports the in-memory state of a metric's anomaly model.
func (e *Engine) ModelStatus(tenantID, metricName string) (anomaly.Status, bool) {
	trainer, ok := e.detector.(modelTrainer)
	if !ok {
		return anomaly.Status{}, false
	}
	return trainer.Status(anomaly.Key{TenantID: tenantID, MetricName: metricName})
}

// Start runs the scheduler loop, and the instance retention loop when a
// retention is configured, until ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return errors.NewStd("alerting engine already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.scheduleLoop(loopCtx)
	}()

	if e.opts.InstanceRetentionDays > 0 {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.cleanupLoop(loopCtx)
		}()
	}

	e.log.Info("alerting engine started",
		logger.Duration("cycle_interval", e.opts.CycleInterval),
		logger.Int("max_concurrent_tenants", e.opts.MaxConcurrentTenants),
		logger.Int("instance_retention_days", e.opts.InstanceRetentionDays))
	return nil
}

// Stop cancels the background loops and waits for them to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	e.wg.Wait()
	e.log.Info("alerting engine stopped")
}

func (e *Engine) scheduleLoop(ctx context.Context) {
	ticker := time.NewTicker(e.opts.CycleInterval)
	defer ticker.Stop()

	e.runTenants(ctx)
	for {
		select {
		case <-ticker.C:
			e.runTenants(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// runTenants evaluates every tenant with active configurations, bounded by
// MaxConcurrentTenants.
func (e *Engine) runTenants(ctx context.Context) {
	tenants, err := e.configs.ListActiveTenants(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.log.Error("failed to list tenants", logger.Error(err))
			e.stats.RecordError(string(errors.CategoryDatabase))
		}
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxConcurrentTenants)
	for _, tenantID := range tenants {
		g.Go(func() error {
			if _, err := e.RunCycle(gctx, tenantID); err != nil && gctx.Err() == nil {
				e.log.Error("tenant evaluation failed",
					logger.String("tenant_id", tenantID),
					logger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.PruneInstances(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// PruneInstances deletes resolved instances older than the retention.
func (e *Engine) PruneInstances(ctx context.Context) int64 {
	days := e.opts.InstanceRetentionDays
	if days <= 0 {
		return 0
	}
	cutoff := e.now().AddDate(0, 0, -days)
	cctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()

	deleted, err := e.instances.DeleteInstancesBefore(cctx, cutoff)
	if err != nil {
		e.log.Error("alert instance cleanup failed", logger.Error(err))
		return 0
	}
	if deleted > 0 {
		e.stats.RecordPruned(deleted)
		e.log.Info("alert instance cleanup completed",
			logger.Int64("deleted", deleted),
			logger.Int("retention_days", days))
	}
	return deleted
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func pointsValues(points []metricsource.Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

func toAnomalyPoints(points []metricsource.Point) []anomaly.Point {
	out := make([]anomaly.Point, len(points))
	for i, p := range points {
		out[i] = anomaly.Point{Timestamp: p.Timestamp, Value: p.Value}
	}
	return out
}

// sanitize replaces NaN and Inf, which JSON cannot encode, with zero.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
