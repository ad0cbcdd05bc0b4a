package capacity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memRepo is an in-memory Repository for unit tests. Setting fail makes
// every call return errRepoDown, simulating a repository outage.
type memRepo struct {
	mu   sync.Mutex
	fail bool

	baseline  Baseline
	rules     map[string]*CapacityRule
	overrides map[string]*Override
	events    map[string]*SpecialEvent
	priority  []PriorityBookingRule
	weather   []WeatherCapacityRule
	evals     []Evaluation
}

var errRepoDown = errors.New("repository down")

func newMemRepo() *memRepo {
	return &memRepo{
		baseline:  testBaseline(),
		rules:     make(map[string]*CapacityRule),
		overrides: make(map[string]*Override),
		events:    make(map[string]*SpecialEvent),
	}
}

func (m *memRepo) setFail(fail bool) {
	m.mu.Lock()
	m.fail = fail
	m.mu.Unlock()
}

func (m *memRepo) failing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fail
}

func (m *memRepo) GetRule(_ context.Context, id string) (*CapacityRule, error) {
	if m.failing() {
		return nil, errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, ErrRuleNotFound
	}
	return r.DeepCopy(), nil
}

func (m *memRepo) ListRules(_ context.Context) ([]CapacityRule, error) {
	if m.failing() {
		return nil, errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CapacityRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, *r.DeepCopy())
	}
	return out, nil
}

func (m *memRepo) CreateRule(_ context.Context, rule *CapacityRule) error {
	if m.failing() {
		return errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rules[rule.ID]; exists {
		return ErrRuleExists
	}
	m.rules[rule.ID] = rule.DeepCopy()
	return nil
}

func (m *memRepo) UpdateRule(_ context.Context, rule *CapacityRule) error {
	if m.failing() {
		return errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rules[rule.ID]; !exists {
		return ErrRuleNotFound
	}
	m.rules[rule.ID] = rule.DeepCopy()
	return nil
}

func (m *memRepo) DeleteRule(_ context.Context, id string) error {
	if m.failing() {
		return errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rules[id]; !exists {
		return ErrRuleNotFound
	}
	delete(m.rules, id)
	return nil
}

func (m *memRepo) GetOverride(_ context.Context, id string) (*Override, error) {
	if m.failing() {
		return nil, errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.overrides[id]
	if !ok {
		return nil, ErrOverrideNotFound
	}
	return o.DeepCopy(), nil
}

func (m *memRepo) ListOverrides(_ context.Context) ([]Override, error) {
	if m.failing() {
		return nil, errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Override, 0, len(m.overrides))
	for _, o := range m.overrides {
		out = append(out, *o.DeepCopy())
	}
	return out, nil
}

func (m *memRepo) CreateOverride(_ context.Context, o *Override) error {
	if m.failing() {
		return errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.overrides[o.ID]; exists {
		return ErrOverrideExists
	}
	m.overrides[o.ID] = o.DeepCopy()
	return nil
}

func (m *memRepo) UpdateOverride(_ context.Context, o *Override) error {
	if m.failing() {
		return errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.overrides[o.ID]; !exists {
		return ErrOverrideNotFound
	}
	m.overrides[o.ID] = o.DeepCopy()
	return nil
}

func (m *memRepo) DeleteOverride(_ context.Context, id string) error {
	if m.failing() {
		return errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.overrides[id]; !exists {
		return ErrOverrideNotFound
	}
	delete(m.overrides, id)
	return nil
}

func (m *memRepo) GetEvent(_ context.Context, id string) (*SpecialEvent, error) {
	if m.failing() {
		return nil, errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return e.DeepCopy(), nil
}

func (m *memRepo) ListEvents(_ context.Context) ([]SpecialEvent, error) {
	if m.failing() {
		return nil, errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SpecialEvent, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, *e.DeepCopy())
	}
	return out, nil
}

func (m *memRepo) CreateEvent(_ context.Context, e *SpecialEvent) error {
	if m.failing() {
		return errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[e.ID]; exists {
		return ErrEventExists
	}
	m.events[e.ID] = e.DeepCopy()
	return nil
}

func (m *memRepo) UpdateEvent(_ context.Context, e *SpecialEvent) error {
	if m.failing() {
		return errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[e.ID]; !exists {
		return ErrEventNotFound
	}
	m.events[e.ID] = e.DeepCopy()
	return nil
}

func (m *memRepo) ListPriorityRules(_ context.Context) ([]PriorityBookingRule, error) {
	if m.failing() {
		return nil, errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PriorityBookingRule, 0, len(m.priority))
	for i := range m.priority {
		out = append(out, *m.priority[i].DeepCopy())
	}
	return out, nil
}

func (m *memRepo) CreatePriorityRule(_ context.Context, p *PriorityBookingRule) error {
	if m.failing() {
		return errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.priority = append(m.priority, *p.DeepCopy())
	return nil
}

func (m *memRepo) UpdatePriorityRule(_ context.Context, p *PriorityBookingRule) error {
	if m.failing() {
		return errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.priority {
		if m.priority[i].ID == p.ID {
			m.priority[i] = *p.DeepCopy()
			return nil
		}
	}
	return ErrRuleNotFound
}

func (m *memRepo) ListWeatherRules(_ context.Context) ([]WeatherCapacityRule, error) {
	if m.failing() {
		return nil, errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WeatherCapacityRule, 0, len(m.weather))
	for i := range m.weather {
		out = append(out, *m.weather[i].DeepCopy())
	}
	return out, nil
}

func (m *memRepo) CreateWeatherRule(_ context.Context, w *WeatherCapacityRule) error {
	if m.failing() {
		return errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weather = append(m.weather, *w.DeepCopy())
	return nil
}

func (m *memRepo) LoadBaseline(_ context.Context) (*Baseline, error) {
	if m.failing() {
		return nil, errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy so the engine's occupancy overlay never leaks back.
	b := m.baseline
	b.Zones = make([]ZoneDefinition, len(m.baseline.Zones))
	copy(b.Zones, m.baseline.Zones)
	b.Slots = make([]SlotDefinition, len(m.baseline.Slots))
	copy(b.Slots, m.baseline.Slots)
	return &b, nil
}

func (m *memRepo) CreateEvaluation(_ context.Context, eval *Evaluation) error {
	if m.failing() {
		return errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evals = append(m.evals, *eval)
	return nil
}

func (m *memRepo) ListEvaluations(_ context.Context, limit int) ([]Evaluation, error) {
	if m.failing() {
		return nil, errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.evals)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Evaluation, n)
	copy(out, m.evals[len(m.evals)-n:])
	return out, nil
}

func (m *memRepo) ListEvaluationsSince(_ context.Context, since time.Time) ([]Evaluation, error) {
	if m.failing() {
		return nil, errRepoDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Evaluation
	for _, e := range m.evals {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRepo) evaluationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.evals)
}

// ─── Fixtures ───────────────────────────────────────────────────────────────

const (
	testZoneMain = "main-hall"
	testZoneVIP  = "vip-section"
	testSlotDate = "2026-09-01"
	testSlotTime = "09:00-10:00"
)

func testBaseline() Baseline {
	return Baseline{
		SiteID:           "test-site",
		TotalCapacity:    500,
		CurrentOccupancy: 0,
		Zones: []ZoneDefinition{
			{ZoneID: testZoneMain, ZoneName: "Main Darshan Hall", BaseCapacity: 300},
			{ZoneID: testZoneVIP, ZoneName: "VIP Section", BaseCapacity: 50},
		},
		Slots: []SlotDefinition{
			{Date: testSlotDate, Slot: testSlotTime, BaseCapacity: 100, Booked: 20, WaitingList: 3},
			{Date: testSlotDate, Slot: "10:00-11:00", BaseCapacity: 100, Booked: 0, WaitingList: 0},
		},
	}
}

func newTestStore(t *testing.T) (*Store, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	store := NewStore(repo)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	return store, repo
}

func newTestEngine(t *testing.T) (*Engine, *Store, *memRepo) {
	t.Helper()
	store, repo := newTestStore(t)
	engine := NewEngine(store, repo, nil, nil, nil, nil)
	return engine, store, repo
}

// siteSetRule builds an active rule with one site-level effect.
func siteSetRule(name string, priority int, op Operation, value float64) *CapacityRule {
	return &CapacityRule{
		Name:     name,
		Priority: priority,
		Active:   true,
		Effects: []Effect{{
			Type:      EffectCapacityAdjustment,
			Target:    EffectTarget{Scope: ScopeSite},
			Operation: op,
			Value:     value,
		}},
		ValidFrom: time.Now().UTC().Add(-time.Hour),
		CreatedBy: "test",
	}
}

func zoneRule(name string, priority int, zoneID string, op Operation, value float64) *CapacityRule {
	id := zoneID
	return &CapacityRule{
		Name:     name,
		Priority: priority,
		Active:   true,
		Effects: []Effect{{
			Type:      EffectZoneCapacityAdjustment,
			Target:    EffectTarget{Scope: ScopeZone, Identifier: &id},
			Operation: op,
			Value:     value,
		}},
		ValidFrom: time.Now().UTC().Add(-time.Hour),
		CreatedBy: "test",
	}
}

func testOverride(typ OverrideType, newValue int) *Override {
	return &Override{
		Type:         typ,
		NewValue:     newValue,
		Reason:       "test intervention",
		AuthorizedBy: "head-priest",
		ValidFrom:    time.Now().UTC().Add(-time.Hour),
	}
}

// waitFor polls cond until it returns true or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
