// Package anomaly scores metric observations against per tenant metric
// isolation forest models held in an in-process registry.
package anomaly

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/campaignwatch/campaignwatch/internal/logger"
	"github.com/patrickmn/go-cache"
)

// Outcome discriminates detector results.
type Outcome int

const (
	// NoSignal means the model could not express an opinion, usually
	// because it has not been trained yet.
	NoSignal Outcome = iota
	// Signal means the model scored the observation.
	Signal
	// EvaluationError means training or scoring failed.
	EvaluationError
)

func (o Outcome) String() string {
	switch o {
	case Signal:
		return "signal"
	case EvaluationError:
		return "evaluation_error"
	default:
		return "no_signal"
	}
}

// Result is the detector verdict for one observation.
type Result struct {
	Outcome    Outcome `json:"-"`
	IsAnomaly  bool    `json:"is_anomaly"`
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"anomaly_score"`
	Reason     string  `json:"reason,omitempty"`
	Err        error   `json:"-"`
}

// Key identifies one model.
type Key struct {
	TenantID   string
	MetricName string
}

func (k Key) String() string {
	return k.TenantID + ":" + k.MetricName
}

// Options parameterizes model construction and training.
type Options struct {
	EnsembleSize      int
	SubSampleSize     int
	Contamination     float64
	MinTrainingPoints int
	// ModelTTL evicts models idle for longer than the TTL. Zero keeps them.
	ModelTTL time.Duration
	Seed     int64
}

// DefaultOptions returns an ensemble of 100 trees with 10% contamination
// trained on at least 100 points.
func DefaultOptions() Options {
	return Options{
		EnsembleSize:      100,
		SubSampleSize:     256,
		Contamination:     0.1,
		MinTrainingPoints: 100,
		Seed:              42,
	}
}

// DetectOptions carries per configuration model metadata.
type DetectOptions struct {
	TrainingWindowDays  int
	ConfidenceThreshold float64
}

// ModelStore persists model metadata. repository.AnomalyModelRepository
// satisfies it.
type ModelStore interface {
	SaveModel(ctx context.Context, rec *entities.AnomalyModelRecord) error
}

// Status describes the registry entry of one key.
type Status struct {
	Key            string     `json:"key"`
	Trained        bool       `json:"trained"`
	TrainingPoints int        `json:"training_points"`
	LastTrained    *time.Time `json:"last_trained,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// entry is a registry slot. mu serializes training and scoring of a key.
type entry struct {
	mu        sync.Mutex
	model     *model
	lastError string
}

// Registry owns every anomaly model of the process.
type Registry struct {
	opts  Options
	cache *cache.Cache
	store ModelStore
	log   logger.Logger
	now   func() time.Time
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithStore persists model metadata after each training.
func WithStore(store ModelStore) RegistryOption {
	return func(r *Registry) { r.store = store }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options, log logger.Logger, options ...RegistryOption) *Registry {
	def := DefaultOptions()
	if opts.EnsembleSize <= 0 {
		opts.EnsembleSize = def.EnsembleSize
	}
	if opts.SubSampleSize <= 0 {
		opts.SubSampleSize = def.SubSampleSize
	}
	if opts.Contamination <= 0 || opts.Contamination >= 0.5 {
		opts.Contamination = def.Contamination
	}
	if opts.MinTrainingPoints <= 0 {
		opts.MinTrainingPoints = def.MinTrainingPoints
	}

	ttl := cache.NoExpiration
	cleanup := time.Duration(0)
	if opts.ModelTTL > 0 {
		ttl = opts.ModelTTL
		cleanup = opts.ModelTTL / 2
	}

	r := &Registry{
		opts:  opts,
		cache: cache.New(ttl, cleanup),
		log:   log.Module("anomaly"),
		now:   time.Now,
	}
	for _, o := range options {
		o(r)
	}
	r.cache.OnEvicted(func(key string, _ any) {
		r.log.Debug("anomaly model evicted", logger.String("key", key))
	})
	return r
}

// lookup returns the entry for key, creating it atomically when absent,
// and refreshes its expiry.
func (r *Registry) lookup(key Key) *entry {
	k := key.String()
	if v, ok := r.cache.Get(k); ok {
		e := v.(*entry)
		r.cache.SetDefault(k, e)
		return e
	}
	e := &entry{}
	if err := r.cache.Add(k, e, cache.DefaultExpiration); err != nil {
		// lost the race; use the winner
		if v, ok := r.cache.Get(k); ok {
			return v.(*entry)
		}
		r.cache.SetDefault(k, e)
	}
	return e
}

// Detect scores current at time at against the model for key, training it
// first from history when it is not trained yet. Errors and panics are
// returned as EvaluationError results, never propagated.
func (r *Registry) Detect(ctx context.Context, key Key, history []Point, current float64, at time.Time, opts DetectOptions) (res Result) {
	e := r.lookup(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			err := errors.Newf("anomaly detection panicked: %v", p).
				Component("anomaly").
				Category(errors.CategoryModel).
				Context("key", key.String()).
				Build()
			e.lastError = err.Error()
			res = Result{Outcome: EvaluationError, Err: err, Reason: "panic"}
		}
	}()

	if e.model == nil {
		if len(history) < r.opts.MinTrainingPoints {
			r.log.Debug("insufficient history to train anomaly model",
				logger.String("key", key.String()),
				logger.Int("points", len(history)),
				logger.Int("required", r.opts.MinTrainingPoints))
			return Result{Outcome: NoSignal, Reason: "model not trained"}
		}
		if err := r.train(ctx, e, key, history, opts); err != nil {
			return Result{Outcome: EvaluationError, Err: err, Reason: "training failed"}
		}
	}

	decision, anomalous, err := e.model.score(current, at)
	if err != nil {
		err = errors.New(err).
			Component("anomaly").
			Category(errors.CategoryModel).
			Context("key", key.String()).
			Build()
		e.lastError = err.Error()
		return Result{Outcome: EvaluationError, Err: err, Reason: "scoring failed"}
	}

	return Result{
		Outcome:    Signal,
		IsAnomaly:  anomalous,
		Confidence: confidence(decision, anomalous),
		Score:      decision,
	}
}

// Retrain replaces the model for key with one trained on history.
func (r *Registry) Retrain(ctx context.Context, key Key, history []Point, opts DetectOptions) (Status, error) {
	e := r.lookup(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(history) < r.opts.MinTrainingPoints {
		return e.status(key), errors.Newf("need at least %d points to train, got %d", r.opts.MinTrainingPoints, len(history)).
			Component("anomaly").
			Category(errors.CategoryDataUnavailable).
			Context("key", key.String()).
			Build()
	}
	err := r.train(ctx, e, key, history, opts)
	return e.status(key), err
}

// Forget drops the model for key.
func (r *Registry) Forget(key Key) {
	r.cache.Delete(key.String())
}

// Status reports the state of the model for key, if one is registered.
func (r *Registry) Status(key Key) (Status, bool) {
	v, ok := r.cache.Get(key.String())
	if !ok {
		return Status{}, false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status(key), true
}

// train must be called with e.mu held.
func (r *Registry) train(ctx context.Context, e *entry, key Key, history []Point, opts DetectOptions) error {
	start := r.now()
	m, err := trainModel(history, r.opts, start)
	if err != nil {
		err = errors.New(fmt.Errorf("failed to train anomaly model: %w", err)).
			Component("anomaly").
			Category(errors.CategoryModel).
			Context("key", key.String()).
			Context("points", len(history)).
			Build()
		e.lastError = err.Error()
		r.persist(ctx, key, e, opts)
		return err
	}

	e.model = m
	e.lastError = ""
	r.log.Info("anomaly model trained",
		logger.String("key", key.String()),
		logger.Int("points", len(history)),
		logger.Duration("elapsed", r.now().Sub(start)))
	r.persist(ctx, key, e, opts)
	return nil
}

func (r *Registry) persist(ctx context.Context, key Key, e *entry, opts DetectOptions) {
	if r.store == nil {
		return
	}
	rec := &entities.AnomalyModelRecord{
		Key:                 key.String(),
		TenantID:            key.TenantID,
		MetricName:          key.MetricName,
		TrainingWindowDays:  opts.TrainingWindowDays,
		ConfidenceThreshold: opts.ConfidenceThreshold,
		EnsembleSize:        r.opts.EnsembleSize,
		Contamination:       r.opts.Contamination,
		LastError:           e.lastError,
	}
	if e.model != nil {
		trainedAt := e.model.trainedAt
		rec.Trained = true
		rec.TrainingPoints = e.model.points
		rec.LastTrained = &trainedAt
	}
	if err := r.store.SaveModel(ctx, rec); err != nil {
		r.log.Warn("failed to persist anomaly model metadata",
			logger.String("key", key.String()),
			logger.Error(err))
	}
}

func (e *entry) status(key Key) Status {
	s := Status{Key: key.String(), LastError: e.lastError}
	if e.model != nil {
		trainedAt := e.model.trainedAt
		s.Trained = true
		s.TrainingPoints = e.model.points
		s.LastTrained = &trainedAt
	}
	return s
}
