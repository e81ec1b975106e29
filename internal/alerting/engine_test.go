package alerting

import (
	"context"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/anomaly"
	"github.com/campaignwatch/campaignwatch/internal/competitor"
	"github.com/campaignwatch/campaignwatch/internal/conf"
	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/datastore/repository"
	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/campaignwatch/campaignwatch/internal/logger"
	"github.com/campaignwatch/campaignwatch/internal/metricsource"
	"github.com/campaignwatch/campaignwatch/internal/notification"
	"github.com/campaignwatch/campaignwatch/internal/trend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

// memConfigs is an in-memory AlertConfigRepository.
type memConfigs struct {
	mu      sync.Mutex
	configs map[uint]*entities.AlertConfig
	nextID  uint
	updates int
}

func newMemConfigs(cfgs ...*entities.AlertConfig) *memConfigs {
	m := &memConfigs{configs: make(map[uint]*entities.AlertConfig)}
	for _, c := range cfgs {
		_ = m.CreateConfig(context.Background(), c)
	}
	return m
}

func (m *memConfigs) ListConfigs(_ context.Context, f repository.AlertConfigFilter) ([]entities.AlertConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.AlertConfig
	for _, id := range m.ids() {
		c := m.configs[id]
		if f.TenantID != "" && c.TenantID != f.TenantID {
			continue
		}
		if f.Active != nil && c.IsActive != *f.Active {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memConfigs) ids() []uint {
	ids := make([]uint, 0, len(m.configs))
	for id := range m.configs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *memConfigs) GetConfig(_ context.Context, id uint) (*entities.AlertConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok {
		return nil, repository.ErrAlertConfigNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memConfigs) CreateConfig(_ context.Context, cfg *entities.AlertConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cfg.ID = m.nextID
	cp := *cfg
	m.configs[cfg.ID] = &cp
	return nil
}

func (m *memConfigs) UpdateConfig(_ context.Context, cfg *entities.AlertConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[cfg.ID]; !ok {
		return repository.ErrAlertConfigNotFound
	}
	cp := *cfg
	m.configs[cfg.ID] = &cp
	return nil
}

func (m *memConfigs) DeleteConfig(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[id]; !ok {
		return repository.ErrAlertConfigNotFound
	}
	delete(m.configs, id)
	return nil
}

func (m *memConfigs) ToggleConfig(_ context.Context, id uint, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok {
		return repository.ErrAlertConfigNotFound
	}
	c.IsActive = active
	return nil
}

func (m *memConfigs) ListActiveConfigs(_ context.Context, tenantID string) ([]entities.AlertConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.AlertConfig
	for _, id := range m.ids() {
		c := m.configs[id]
		if c.TenantID == tenantID && c.IsActive && c.Status == ConfigStatusActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memConfigs) ListActiveTenants(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.configs {
		if c.IsActive && !slices.Contains(out, c.TenantID) {
			out = append(out, c.TenantID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *memConfigs) UpdateSchedule(_ context.Context, id uint, u repository.ScheduleUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok {
		return repository.ErrAlertConfigNotFound
	}
	m.updates++
	c.LastChecked = ptr(u.LastChecked)
	c.NextCheck = ptr(u.NextCheck)
	if u.Triggered {
		c.TriggerCount++
		c.LastTriggered = ptr(u.LastTriggered)
	}
	return nil
}

func (m *memConfigs) get(id uint) entities.AlertConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.configs[id]
}

// memInstances is an in-memory AlertInstanceRepository.
type memInstances struct {
	mu        sync.Mutex
	instances []entities.AlertInstance
	saveErr   error
}

func (m *memInstances) SaveInstance(_ context.Context, inst *entities.AlertInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.instances = append(m.instances, *inst)
	return nil
}

func (m *memInstances) GetInstance(_ context.Context, id string) (*entities.AlertInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.instances {
		if m.instances[i].ID == id {
			cp := m.instances[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrAlertInstanceNotFound
}

func (m *memInstances) ListInstances(_ context.Context, f repository.AlertInstanceFilter) ([]entities.AlertInstance, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.AlertInstance
	for _, inst := range m.instances {
		if f.TenantID != "" && inst.TenantID != f.TenantID {
			continue
		}
		out = append(out, inst)
	}
	return out, int64(len(out)), nil
}

func (m *memInstances) UpdateStatus(_ context.Context, id, status string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.instances {
		if m.instances[i].ID != id {
			continue
		}
		if m.instances[i].Status != repository.InstanceStatusActive || !repository.IsTerminalInstanceStatus(status) {
			return repository.ErrInvalidStatusTransition
		}
		m.instances[i].Status = status
		m.instances[i].StatusChangedAt = &at
		return nil
	}
	return repository.ErrAlertInstanceNotFound
}

func (m *memInstances) DeleteInstancesBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.instances[:0]
	var deleted int64
	for _, inst := range m.instances {
		if inst.Status != repository.InstanceStatusActive && inst.TriggeredAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, inst)
	}
	m.instances = kept
	return deleted, nil
}

func (m *memInstances) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

// seriesProvider serves a fixed current value with an hourly history
// ending at the query time.
type seriesProvider struct {
	mu      sync.Mutex
	current float64
	history []float64
	err     error
	panics  bool
	queries []metricsource.Query
}

func (p *seriesProvider) Fetch(_ context.Context, q metricsource.Query) (*metricsource.MetricData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, q)
	if p.panics {
		panic("provider exploded")
	}
	if p.err != nil {
		return nil, p.err
	}
	points := make([]metricsource.Point, 0, len(p.history)+1)
	n := len(p.history)
	for i, v := range p.history {
		points = append(points, metricsource.Point{Timestamp: q.At.Add(-time.Duration(n-i) * time.Hour), Value: v})
	}
	points = append(points, metricsource.Point{Timestamp: q.At, Value: p.current})
	return &metricsource.MetricData{CurrentValue: p.current, Historical: points}, nil
}

func (p *seriesProvider) setCurrent(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = v
}

type stubDetector struct {
	result anomaly.Result
	calls  int
}

func (d *stubDetector) Detect(context.Context, anomaly.Key, []anomaly.Point, float64, time.Time, anomaly.DetectOptions) anomaly.Result {
	d.calls++
	return d.result
}

type stubCompetitors struct {
	signal *competitor.Signal
	err    error
}

func (s *stubCompetitors) Signal(context.Context, competitor.Request) (*competitor.Signal, error) {
	return s.signal, s.err
}

type captureNotifier struct {
	mu   sync.Mutex
	reqs []*notification.Request
}

func (c *captureNotifier) Notify(_ context.Context, req *notification.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
	return nil
}

func (c *captureNotifier) requests() []*notification.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.reqs)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	configs   *memConfigs
	instances *memInstances
	source    *seriesProvider
	notifier  *captureNotifier
	clock     *clock
	engine    *Engine
}

func newFixture(t *testing.T, deps Deps, cfgs ...*entities.AlertConfig) *fixture {
	t.Helper()
	f := &fixture{
		configs:   newMemConfigs(cfgs...),
		instances: &memInstances{},
		source:    &seriesProvider{},
		notifier:  &captureNotifier{},
		clock:     &clock{now: t0},
	}
	deps.Configs = f.configs
	deps.Instances = f.instances
	if deps.Metrics == nil {
		deps.Metrics = f.source
	}
	deps.Notifier = f.notifier

	var seq int
	f.engine = NewEngine(deps, Options{InstanceRetentionDays: 30}, testLogger(),
		WithClock(f.clock.Now),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}))
	return f
}

func (f *fixture) run(t *testing.T, at time.Time) []*entities.AlertInstance {
	t.Helper()
	f.clock.Set(at)
	created, err := f.engine.RunCycle(context.Background(), "tenant-a")
	require.NoError(t, err)
	return created
}

func thresholdConfig(op string, threshold float64) *entities.AlertConfig {
	return &entities.AlertConfig{
		TenantID:       "tenant-a",
		Name:           "Budget guard",
		MetricName:     "cost_per_click",
		Operator:       op,
		Threshold:      entities.NumericThreshold(threshold),
		Frequency:      FrequencyEveryHour,
		LookbackPeriod: "24h",
		CooldownPeriod: "1h",
		Severity:       SeverityHigh,
		Channels:       entities.StringList{"log", "ops"},
		Recipients:     entities.StringList{"ops@example.com"},
		IsActive:       true,
		Status:         ConfigStatusActive,
	}
}

func TestEngine_TriggersOncePerDueCycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{}, thresholdConfig(OperatorGreaterThan, 100))
	f.source.current = 120

	created := f.run(t, t0)
	require.Len(t, created, 1)
	inst := created[0]
	assert.Equal(t, uint(1), inst.AlertID)
	assert.Equal(t, "tenant-a", inst.TenantID)
	assert.InDelta(t, 120.0, inst.MetricValue, 1e-9)
	assert.InDelta(t, 20.0, inst.DeviationPercentage, 1e-9)
	assert.Equal(t, repository.InstanceStatusActive, inst.Status)
	assert.Equal(t, t0, inst.TriggeredAt)
	assert.Nil(t, inst.MLConfidence)
	assert.Contains(t, inst.Context, ContextCondition)
	assert.Contains(t, inst.Context, ContextHistoricalData)

	cfg := f.configs.get(1)
	assert.Equal(t, 1, cfg.TriggerCount)
	require.NotNil(t, cfg.LastTriggered)
	assert.Equal(t, t0, *cfg.LastTriggered)
	assert.Equal(t, t0.Add(time.Hour), *cfg.NextCheck)

	// Not due again before next_check: nothing changes.
	assert.Empty(t, f.run(t, t0.Add(10*time.Minute)))
	assert.Equal(t, 1, f.instances.count())
	assert.Equal(t, 1, f.configs.get(1).TriggerCount)
	assert.Equal(t, 1, f.configs.updates)

	// Due and out of cooldown: fires again.
	require.Len(t, f.run(t, t0.Add(time.Hour)), 1)
	assert.Equal(t, 2, f.configs.get(1).TriggerCount)
}

func TestEngine_CooldownBlocksRetrigger(t *testing.T) {
	t.Parallel()

	cfg := thresholdConfig(OperatorGreaterThan, 100)
	cfg.Frequency = FrequencyRealTime
	f := newFixture(t, Deps{}, cfg)
	f.source.current = 150

	require.Len(t, f.run(t, t0), 1)

	assert.Empty(t, f.run(t, t0.Add(30*time.Minute)))
	// A cooldown skip leaves the schedule alone.
	assert.Equal(t, t0.Add(time.Minute), *f.configs.get(1).NextCheck)

	require.Len(t, f.run(t, t0.Add(61*time.Minute)), 1)
	assert.Equal(t, 2, f.instances.count())
}

func TestEngine_LessThanEndToEnd(t *testing.T) {
	t.Parallel()

	cfg := thresholdConfig("<", 2.0)
	cfg.MetricName = "ctr"
	cfg.Severity = SeverityCritical
	f := newFixture(t, Deps{}, cfg)
	f.source.current = 1.5

	created := f.run(t, t0)
	require.Len(t, created, 1)
	assert.InDelta(t, -25.0, created[0].DeviationPercentage, 1e-9)
	assert.Equal(t, entities.StringList{"log", "ops"}, created[0].NotificationChannels)
	require.Len(t, created[0].NotificationIDs, 1)

	reqs := f.notifier.requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, created[0].NotificationIDs[0], req.ID)
	assert.Equal(t, notification.PriorityUrgent, req.Priority)
	assert.Equal(t, "Critical alert: Ctr", req.Title)
	assert.Contains(t, req.Message, "Budget guard")
	assert.Equal(t, []string{"ops@example.com"}, req.Recipients)
	assert.Equal(t, created[0].ID, req.Payload["instance_id"])
	assert.InDelta(t, -25.0, req.Payload["deviation_percentage"], 1e-9)
}

func TestEngine_ConditionFalseAdvancesSchedule(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{}, thresholdConfig(OperatorGreaterThan, 100))
	f.source.current = 80

	assert.Empty(t, f.run(t, t0))
	cfg := f.configs.get(1)
	assert.Nil(t, cfg.LastTriggered)
	assert.Zero(t, cfg.TriggerCount)
	require.NotNil(t, cfg.LastChecked)
	assert.Equal(t, t0, *cfg.LastChecked)
	assert.Equal(t, t0.Add(time.Hour), *cfg.NextCheck)
	assert.Empty(t, f.notifier.requests())
}

func TestEngine_BetweenCondition(t *testing.T) {
	t.Parallel()

	for v, want := range map[float64]int{10: 1, 15: 1, 20: 1, 9.99: 0, 20.01: 0} {
		cfg := thresholdConfig(OperatorBetween, 10)
		cfg.SecondaryThreshold = ptr(20.0)
		f := newFixture(t, Deps{}, cfg)
		f.source.current = v
		assert.Len(t, f.run(t, t0), want, "value %v", v)
	}
}

func TestEngine_DataUnavailable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{}, thresholdConfig(OperatorGreaterThan, 100))
	f.source.err = errors.Newf("no samples").Category(errors.CategoryDataUnavailable).Build()

	assert.Empty(t, f.run(t, t0))
	cfg := f.configs.get(1)
	assert.Nil(t, cfg.LastTriggered)
	assert.Equal(t, t0.Add(time.Hour), *cfg.NextCheck)
}

func TestEngine_InvalidConditionEvaluatesFalse(t *testing.T) {
	t.Parallel()

	cfg := thresholdConfig(OperatorGreaterThan, 0)
	cfg.Threshold = entities.TextThreshold("very high")
	f := newFixture(t, Deps{}, cfg)
	f.source.current = 1e9

	assert.Empty(t, f.run(t, t0))
	assert.Equal(t, t0, *f.configs.get(1).LastChecked)
}

func TestEngine_TextThresholdEquality(t *testing.T) {
	t.Parallel()

	cfg := thresholdConfig(OperatorNotEquals, 0)
	cfg.Threshold = entities.TextThreshold("unknown")
	f := newFixture(t, Deps{}, cfg)
	f.source.current = 3

	created := f.run(t, t0)
	require.Len(t, created, 1)
	assert.Zero(t, created[0].DeviationPercentage)
	assert.Equal(t, "unknown", created[0].ThresholdValue.String())
}

func TestEngine_MLErrorSuppressesAlert(t *testing.T) {
	t.Parallel()

	detector := &stubDetector{result: anomaly.Result{
		Outcome: anomaly.EvaluationError,
		Err:     errors.Newf("scoring failed").Category(errors.CategoryModel).Build(),
	}}
	cfg := thresholdConfig(OperatorGreaterThan, 100)
	cfg.MLEnabled = true
	f := newFixture(t, Deps{Detector: detector}, cfg)
	f.source.current = 500

	assert.Empty(t, f.run(t, t0))
	assert.Equal(t, 1, detector.calls)
	got := f.configs.get(1)
	assert.Nil(t, got.LastTriggered)
	assert.Equal(t, t0.Add(time.Hour), *got.NextCheck)
	assert.Empty(t, f.notifier.requests())
}

func TestEngine_MLNoSignalSuppressesAlert(t *testing.T) {
	t.Parallel()

	cfg := thresholdConfig(OperatorGreaterThan, 100)
	cfg.MLEnabled = true
	f := newFixture(t, Deps{Detector: &stubDetector{result: anomaly.Result{Outcome: anomaly.NoSignal}}}, cfg)
	f.source.current = 500

	assert.Empty(t, f.run(t, t0))
}

func TestEngine_MLAnomalyTriggers(t *testing.T) {
	t.Parallel()

	detector := &stubDetector{result: anomaly.Result{
		Outcome:    anomaly.Signal,
		IsAnomaly:  true,
		Confidence: 0.93,
		Score:      -0.2,
	}}
	cfg := thresholdConfig(OperatorGreaterThan, 100)
	cfg.MLEnabled = true
	cfg.MLTrainingWindowDays = 14
	f := newFixture(t, Deps{Detector: detector}, cfg)
	f.source.current = 500

	created := f.run(t, t0)
	require.Len(t, created, 1)
	require.NotNil(t, created[0].MLConfidence)
	assert.InDelta(t, 0.93, *created[0].MLConfidence, 1e-9)
	ml, ok := created[0].Context[ContextMLResult].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, ml["is_anomaly"])

	// History is fetched over the training window when it exceeds the lookback.
	require.Len(t, f.source.queries, 1)
	assert.Equal(t, 14*24*time.Hour, f.source.queries[0].Lookback)
}

func TestEngine_MLNotAnomalousSuppresses(t *testing.T) {
	t.Parallel()

	cfg := thresholdConfig(OperatorGreaterThan, 100)
	cfg.MLEnabled = true
	f := newFixture(t, Deps{Detector: &stubDetector{result: anomaly.Result{Outcome: anomaly.Signal, Confidence: 0.1}}}, cfg)
	f.source.current = 500

	assert.Empty(t, f.run(t, t0))
}

func TestEngine_MLEnrichOnlyPolicy(t *testing.T) {
	t.Parallel()

	cfg := thresholdConfig(OperatorGreaterThan, 100)
	cfg.MLEnabled = true
	f := newFixture(t, Deps{Detector: &stubDetector{result: anomaly.Result{Outcome: anomaly.NoSignal}}}, cfg)
	WithGatingPolicy(GatingPolicy{Enriching: []Signal{SignalML}})(f.engine)
	f.source.current = 500

	created := f.run(t, t0)
	require.Len(t, created, 1)
	assert.Contains(t, created[0].Context, ContextMLResult)
}

func TestEngine_TrendAndCompetitorEnrichment(t *testing.T) {
	t.Parallel()

	cfg := thresholdConfig(OperatorGreaterThan, 100)
	cfg.TrendEnabled = true
	cfg.CompetitorEnabled = true
	comp := &stubCompetitors{signal: &competitor.Signal{
		CompetitorMetrics:   map[string]float64{"cost_per_click": 100},
		MarketShareEstimate: 0.2,
		ThreatLevel:         competitor.ThreatHigh,
	}}
	f := newFixture(t, Deps{Competitors: comp}, cfg)
	f.source.history = []float64{101, 103, 105, 107, 109, 111, 113, 115, 117}
	f.source.current = 119

	created := f.run(t, t0)
	require.Len(t, created, 1)

	tr, ok := created[0].Context[ContextTrend].(trend.Result)
	require.True(t, ok)
	assert.Equal(t, trend.DirectionUp, tr.Direction)
	assert.Equal(t, 10, tr.Points)

	sig, ok := created[0].Context[ContextCompetitor].(*competitor.Signal)
	require.True(t, ok)
	assert.Equal(t, competitor.ThreatHigh, sig.ThreatLevel)
}

func TestEngine_TrendUnavailableDoesNotBlock(t *testing.T) {
	t.Parallel()

	cfg := thresholdConfig(OperatorGreaterThan, 100)
	cfg.TrendEnabled = true
	cfg.CompetitorEnabled = true
	f := newFixture(t, Deps{Competitors: &stubCompetitors{err: errors.NewStd("down")}}, cfg)
	f.source.current = 150

	created := f.run(t, t0)
	require.Len(t, created, 1)
	tr, ok := created[0].Context[ContextTrend].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, tr["available"])
	assert.NotContains(t, created[0].Context, ContextCompetitor)
}

func TestEngine_TrendGatingPolicy(t *testing.T) {
	t.Parallel()

	cfg := thresholdConfig(OperatorGreaterThan, 100)
	cfg.TrendEnabled = true
	f := newFixture(t, Deps{}, cfg)
	WithGatingPolicy(GatingPolicy{Gating: []Signal{SignalTrend}})(f.engine)
	f.source.history = []float64{150, 150, 150, 150, 150, 150, 150, 150}
	f.source.current = 150

	assert.Empty(t, f.run(t, t0), "stable trend blocks when trend gates")
}

func TestEngine_PersistFailureSuppressesNotification(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{}, thresholdConfig(OperatorGreaterThan, 100))
	f.instances.saveErr = errors.NewStd("disk full")
	f.source.current = 150

	assert.Empty(t, f.run(t, t0))
	assert.Empty(t, f.notifier.requests())
	cfg := f.configs.get(1)
	assert.Nil(t, cfg.LastTriggered)
	assert.Zero(t, cfg.TriggerCount)
	assert.Equal(t, t0.Add(time.Hour), *cfg.NextCheck)
}

func TestEngine_PanicIsolatedPerConfig(t *testing.T) {
	t.Parallel()

	panicking := &seriesProvider{panics: true}
	f := newFixture(t, Deps{Metrics: panicking},
		thresholdConfig(OperatorGreaterThan, 100),
		thresholdConfig(OperatorGreaterThan, 100))

	created, err := f.engine.RunCycle(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Len(t, panicking.queries, 2, "second config still evaluated")
}

func TestEngine_InactiveAndOtherTenantsSkipped(t *testing.T) {
	t.Parallel()

	paused := thresholdConfig(OperatorGreaterThan, 100)
	paused.Status = ConfigStatusPaused
	off := thresholdConfig(OperatorGreaterThan, 100)
	off.IsActive = false
	other := thresholdConfig(OperatorGreaterThan, 100)
	other.TenantID = "tenant-b"

	f := newFixture(t, Deps{}, paused, off, other)
	f.source.current = 500
	assert.Empty(t, f.run(t, t0))
}

func TestEngine_CancelledContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{}, thresholdConfig(OperatorGreaterThan, 100))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.RunCycle(ctx, "tenant-a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_PruneInstances(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{})
	old := t0.AddDate(0, 0, -40)
	f.instances.instances = []entities.AlertInstance{
		{ID: "a", Status: repository.InstanceStatusResolved, TriggeredAt: old},
		{ID: "b", Status: repository.InstanceStatusActive, TriggeredAt: old},
		{ID: "c", Status: repository.InstanceStatusResolved, TriggeredAt: t0.AddDate(0, 0, -1)},
	}

	assert.Equal(t, int64(1), f.engine.PruneInstances(context.Background()))
	assert.Equal(t, 2, f.instances.count())
}

func TestEngine_RetrainModel(t *testing.T) {
	t.Parallel()

	registry := anomaly.NewRegistry(anomaly.DefaultOptions(), testLogger())
	f := newFixture(t, Deps{Detector: registry})
	f.source.history = make([]float64, 150)
	for i := range f.source.history {
		f.source.history[i] = 100 + math.Sin(float64(i))
	}
	f.source.current = 100

	status, err := f.engine.RetrainModel(context.Background(), "tenant-a", "cost_per_click", 30)
	require.NoError(t, err)
	assert.True(t, status.Trained)
	assert.Equal(t, 151, status.TrainingPoints)

	got, ok := f.engine.ModelStatus("tenant-a", "cost_per_click")
	require.True(t, ok)
	assert.True(t, got.Trained)

	_, ok = f.engine.ModelStatus("tenant-a", "ctr")
	assert.False(t, ok)
}

func TestEngine_RetrainWithoutDetector(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{})
	_, err := f.engine.RetrainModel(context.Background(), "tenant-a", "ctr", 0)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestEngine_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, Deps{}, thresholdConfig(OperatorGreaterThan, 100))
	f.source.setCurrent(150)

	ctx := context.Background()
	require.NoError(t, f.engine.Start(ctx))
	assert.Error(t, f.engine.Start(ctx), "second start rejected")

	assert.Eventually(t, func() bool { return f.instances.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.engine.Stop()
	f.engine.Stop()
}

func TestInitialize_AuditsConfigs(t *testing.T) {
	t.Parallel()

	bad := thresholdConfig("LIKE", 1)
	f := newFixture(t, Deps{}, thresholdConfig(OperatorGreaterThan, 100), bad)

	engine, err := Initialize(context.Background(), conf.EngineSettings{MaxConcurrentTenants: 2, InstanceRetentionDays: 30}, Deps{
		Configs:   f.configs,
		Instances: f.instances,
		Metrics:   f.source,
	}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 30, engine.opts.InstanceRetentionDays)
	assert.Equal(t, 2, engine.opts.MaxConcurrentTenants)
	assert.Equal(t, defaultFetchTimeout, engine.opts.FetchTimeout)
	assert.Equal(t, defaultCompetitorTimeout, engine.opts.CompetitorTimeout)
}

func TestOptionsFromSettings(t *testing.T) {
	t.Parallel()

	opts := OptionsFromSettings(conf.EngineSettings{
		CycleInterval:     conf.Duration(30 * time.Second),
		FetchTimeout:      conf.Duration(2 * time.Second),
		CompetitorTimeout: conf.Duration(1500 * time.Millisecond),
	})
	assert.Equal(t, 30*time.Second, opts.CycleInterval)
	assert.Equal(t, 2*time.Second, opts.FetchTimeout)
	assert.Equal(t, 1500*time.Millisecond, opts.CompetitorTimeout)
}
