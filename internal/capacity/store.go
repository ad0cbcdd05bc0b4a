package capacity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Store, Engine and
// Scheduler. This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store provides capacity entity management with caching and thread
// safety. It wraps a Repository and adds an in-memory cache that is also
// the system of record while the repository is unreachable: lifecycle
// operations commit locally on persistence failure, flag the entity
// unsynced, and FlushUnsynced reconciles once the repository returns.
//
// The cache is populated on startup via Refresh() and kept in sync by the
// mutating operations. All public methods are thread-safe; mutations
// serialize on a single writer lock, which is what keeps evaluation
// deterministic under concurrent API traffic.
type Store struct {
	repo Repository

	mu            sync.RWMutex
	rules         map[string]*CapacityRule
	overrides     map[string]*Override
	events        map[string]*SpecialEvent
	priorityRules []PriorityBookingRule
	weatherRules  []WeatherCapacityRule

	// Live occupancy, fed by the crowd-tracking collaborator over MQTT.
	// Baseline figures from the repository are replaced by these once a
	// report arrives.
	siteOccupancy *int
	zoneOccupancy map[string]int

	// onChange fires after every successful mutation (including local
	// degraded commits) so the scheduler can re-evaluate promptly.
	onChange func()

	logger Logger
}

// NewStore creates a capacity store over the given repository.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:          repo,
		rules:         make(map[string]*CapacityRule),
		overrides:     make(map[string]*Override),
		events:        make(map[string]*SpecialEvent),
		zoneOccupancy: make(map[string]int),
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetOnChange registers the callback fired after each mutation.
func (s *Store) SetOnChange(fn func()) {
	s.onChange = fn
}

func (s *Store) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Refresh reloads every entity collection from the repository into the
// cache. This should be called on application startup.
func (s *Store) Refresh(ctx context.Context) error {
	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	overrides, err := s.repo.ListOverrides(ctx)
	if err != nil {
		return fmt.Errorf("loading overrides: %w", err)
	}
	events, err := s.repo.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("loading events: %w", err)
	}
	priorityRules, err := s.repo.ListPriorityRules(ctx)
	if err != nil {
		return fmt.Errorf("loading priority rules: %w", err)
	}
	weatherRules, err := s.repo.ListWeatherRules(ctx)
	if err != nil {
		return fmt.Errorf("loading weather rules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = make(map[string]*CapacityRule, len(rules))
	for i := range rules {
		r := rules[i]
		s.rules[r.ID] = r.DeepCopy()
	}
	s.overrides = make(map[string]*Override, len(overrides))
	for i := range overrides {
		o := overrides[i]
		s.overrides[o.ID] = o.DeepCopy()
	}
	s.events = make(map[string]*SpecialEvent, len(events))
	for i := range events {
		e := events[i]
		s.events[e.ID] = e.DeepCopy()
	}
	s.priorityRules = priorityRules
	s.weatherRules = weatherRules

	s.logger.Info("capacity cache refreshed",
		"rules", len(rules),
		"overrides", len(overrides),
		"events", len(events),
		"priority_rules", len(priorityRules),
		"weather_rules", len(weatherRules),
	)
	return nil
}


// GetRule retrieves a rule by ID.
// The returned rule is a deep copy; callers can safely modify it.
func (s *Store) GetRule(_ context.Context, id string) (*CapacityRule, error) {
	s.mu.RLock()
	cached, ok := s.rules[id]
	s.mu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}
	return nil, ErrRuleNotFound
}

// ListRules retrieves all cached rules in fold order: priority descending,
// ties broken by creation time so earlier rules keep precedence.
func (s *Store) ListRules(_ context.Context) ([]CapacityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rulesLocked(), nil
}

func (s *Store) rulesLocked() []CapacityRule {
	rules := make([]CapacityRule, 0, len(s.rules))
	for _, r := range s.rules {
		rules = append(rules, *r.DeepCopy())
	}
	sortRulesForFold(rules)
	return rules
}

// CreateRule validates, persists, and caches a new rule. The rule is
// assigned a generated ID, version 1 and creation timestamps.
//
// A persistence failure does not fail the call: the rule is committed to
// the cache flagged unsynced and the error is logged. Validation failures
// reject before anything is committed.
func (s *Store) CreateRule(ctx context.Context, rule *CapacityRule) (*CapacityRule, error) {
	if rule.Priority == 0 {
		rule.Priority = defaultRulePriority
	}
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rule.ID = GenerateID()
	rule.Version = 1
	rule.CreatedAt = now
	rule.LastModified = now
	rule.Synced = true

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		rule.Synced = false
		s.logger.Warn("rule persisted locally only", "id", rule.ID, "error", err)
	}

	s.mu.Lock()
	s.rules[rule.ID] = rule.DeepCopy()
	s.mu.Unlock()

	s.logger.Info("rule created", "id", rule.ID, "name", rule.Name, "synced", rule.Synced)
	s.notifyChange()
	return rule.DeepCopy(), nil
}

// UpdateRule validates, persists, and caches a modified rule. The version
// is bumped by exactly one and LastModified refreshed; identity and
// creation fields are taken from the existing entity.
func (s *Store) UpdateRule(ctx context.Context, rule *CapacityRule) (*CapacityRule, error) {
	s.mu.RLock()
	existing, ok := s.rules[rule.ID]
	var base *CapacityRule
	if ok {
		base = existing.DeepCopy()
	}
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRuleNotFound
	}

	rule.CreatedAt = base.CreatedAt
	rule.CreatedBy = base.CreatedBy
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}

	rule.Version = base.Version + 1
	rule.LastModified = time.Now().UTC()
	rule.Synced = true

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		rule.Synced = false
		s.logger.Warn("rule update persisted locally only", "id", rule.ID, "error", err)
	}

	s.mu.Lock()
	s.rules[rule.ID] = rule.DeepCopy()
	s.mu.Unlock()

	s.logger.Info("rule updated", "id", rule.ID, "version", rule.Version, "synced", rule.Synced)
	s.notifyChange()
	return rule.DeepCopy(), nil
}

// DeleteRule removes a rule from persistence and cache. The local removal
// happens regardless of repository availability.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	s.mu.RLock()
	_, ok := s.rules[id]
	s.mu.RUnlock()
	if !ok {
		return ErrRuleNotFound
	}

	if err := s.repo.DeleteRule(ctx, id); err != nil && !errors.Is(err, ErrRuleNotFound) {
		s.logger.Warn("rule deleted locally only", "id", id, "error", err)
	}

	s.mu.Lock()
	delete(s.rules, id)
	s.mu.Unlock()

	s.logger.Info("rule deleted", "id", id)
	s.notifyChange()
	return nil
}


// GetOverride retrieves an override by ID.
func (s *Store) GetOverride(_ context.Context, id string) (*Override, error) {
	s.mu.RLock()
	cached, ok := s.overrides[id]
	s.mu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}
	return nil, ErrOverrideNotFound
}

// ListOverrides retrieves all cached overrides ordered by authorisation
// time, matching the fold order.
func (s *Store) ListOverrides(_ context.Context) ([]Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overridesLocked(), nil
}

func (s *Store) overridesLocked() []Override {
	overrides := make([]Override, 0, len(s.overrides))
	for _, o := range s.overrides {
		overrides = append(overrides, *o.DeepCopy())
	}
	sortOverridesForFold(overrides)
	return overrides
}

// CreateOverride validates, persists, and caches a new override.
func (s *Store) CreateOverride(ctx context.Context, o *Override) (*Override, error) {
	if err := ValidateOverride(o); err != nil {
		return nil, err
	}

	o.ID = GenerateID()
	if o.AuthorizedAt.IsZero() {
		o.AuthorizedAt = time.Now().UTC()
	}
	o.Synced = true

	if err := s.repo.CreateOverride(ctx, o); err != nil {
		o.Synced = false
		s.logger.Warn("override persisted locally only", "id", o.ID, "error", err)
	}

	s.mu.Lock()
	s.overrides[o.ID] = o.DeepCopy()
	s.mu.Unlock()

	s.logger.Info("override created", "id", o.ID, "type", o.Type, "synced", o.Synced)
	s.notifyChange()
	return o.DeepCopy(), nil
}

// ApproveOverride records an approver on a pending override, activating
// it if it is inside its validity window.
func (s *Store) ApproveOverride(ctx context.Context, id, approvedBy string) (*Override, error) {
	if approvedBy == "" {
		return nil, fmt.Errorf("%w: approver is required", ErrInvalidOverride)
	}

	s.mu.RLock()
	existing, ok := s.overrides[id]
	var o *Override
	if ok {
		o = existing.DeepCopy()
	}
	s.mu.RUnlock()
	if !ok {
		return nil, ErrOverrideNotFound
	}

	now := time.Now().UTC()
	o.ApprovedBy = &approvedBy
	o.ApprovedAt = &now
	o.Synced = true

	if err := s.repo.UpdateOverride(ctx, o); err != nil {
		o.Synced = false
		s.logger.Warn("override approval persisted locally only", "id", id, "error", err)
	}

	s.mu.Lock()
	s.overrides[id] = o.DeepCopy()
	s.mu.Unlock()

	s.logger.Info("override approved", "id", id, "approved_by", approvedBy)
	s.notifyChange()
	return o.DeepCopy(), nil
}

// DeleteOverride removes an override from persistence and cache.
func (s *Store) DeleteOverride(ctx context.Context, id string) error {
	s.mu.RLock()
	_, ok := s.overrides[id]
	s.mu.RUnlock()
	if !ok {
		return ErrOverrideNotFound
	}

	if err := s.repo.DeleteOverride(ctx, id); err != nil && !errors.Is(err, ErrOverrideNotFound) {
		s.logger.Warn("override deleted locally only", "id", id, "error", err)
	}

	s.mu.Lock()
	delete(s.overrides, id)
	s.mu.Unlock()

	s.logger.Info("override deleted", "id", id)
	s.notifyChange()
	return nil
}


// GetEvent retrieves a special event by ID.
func (s *Store) GetEvent(_ context.Context, id string) (*SpecialEvent, error) {
	s.mu.RLock()
	cached, ok := s.events[id]
	s.mu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}
	return nil, ErrEventNotFound
}

// ListEvents retrieves all cached events sorted by start date.
func (s *Store) ListEvents(_ context.Context) ([]SpecialEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventsLocked(), nil
}

func (s *Store) eventsLocked() []SpecialEvent {
	events := make([]SpecialEvent, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, *e.DeepCopy())
	}
	sortEvents(events)
	return events
}

// CreateEvent validates, persists, and caches a new special event. Each
// automatic rule template is materialised into a real rule inheriting the
// event's validity window; the created rule ids are appended to the
// event's CapacityRules.
func (s *Store) CreateEvent(ctx context.Context, e *SpecialEvent) (*SpecialEvent, error) {
	if err := ValidateEvent(e); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	e.ID = GenerateID()
	e.CreatedAt = now
	if e.Status == "" {
		e.Status = EventPlanned
	}
	if e.CapacityRules == nil {
		e.CapacityRules = []string{}
	}

	// Materialise automatic rules before persisting the event so the
	// stored rule id list is complete.
	for i := range e.AutomaticRules {
		tmpl := e.AutomaticRules[i].DeepCopy()
		tmpl.ValidFrom = e.StartDate
		end := e.EndDate
		tmpl.ValidTo = &end
		tmpl.CreatedBy = e.CreatedBy
		tmpl.Active = true

		created, err := s.CreateRule(ctx, tmpl)
		if err != nil {
			return nil, fmt.Errorf("materialising automatic rule %d: %w", i, err)
		}
		e.CapacityRules = append(e.CapacityRules, created.ID)
	}

	e.Synced = true
	if err := s.repo.CreateEvent(ctx, e); err != nil {
		e.Synced = false
		s.logger.Warn("event persisted locally only", "id", e.ID, "error", err)
	}

	s.mu.Lock()
	s.events[e.ID] = e.DeepCopy()
	s.mu.Unlock()

	s.logger.Info("event created", "id", e.ID, "name", e.Name,
		"rules", len(e.CapacityRules), "synced", e.Synced)
	s.notifyChange()
	return e.DeepCopy(), nil
}

// UpdateEvent validates, persists, and caches a modified event. Automatic
// rule templates are only materialised at creation; updates change the
// event's own fields.
func (s *Store) UpdateEvent(ctx context.Context, e *SpecialEvent) (*SpecialEvent, error) {
	s.mu.RLock()
	existing, ok := s.events[e.ID]
	var base *SpecialEvent
	if ok {
		base = existing.DeepCopy()
	}
	s.mu.RUnlock()
	if !ok {
		return nil, ErrEventNotFound
	}

	e.CreatedAt = base.CreatedAt
	e.CreatedBy = base.CreatedBy
	if e.CapacityRules == nil {
		e.CapacityRules = base.CapacityRules
	}
	if err := ValidateEvent(e); err != nil {
		return nil, err
	}

	e.Synced = true
	if err := s.repo.UpdateEvent(ctx, e); err != nil {
		e.Synced = false
		s.logger.Warn("event update persisted locally only", "id", e.ID, "error", err)
	}

	s.mu.Lock()
	s.events[e.ID] = e.DeepCopy()
	s.mu.Unlock()

	s.logger.Info("event updated", "id", e.ID, "status", e.Status, "synced", e.Synced)
	s.notifyChange()
	return e.DeepCopy(), nil
}


// ListPriorityRules returns the cached priority booking rules in
// resolution order.
func (s *Store) ListPriorityRules(_ context.Context) ([]PriorityBookingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]PriorityBookingRule, 0, len(s.priorityRules))
	for i := range s.priorityRules {
		rules = append(rules, *s.priorityRules[i].DeepCopy())
	}
	return rules, nil
}

// CreatePriorityRule validates, persists, and caches a priority rule.
func (s *Store) CreatePriorityRule(ctx context.Context, p *PriorityBookingRule) (*PriorityBookingRule, error) {
	if err := ValidatePriorityRule(p); err != nil {
		return nil, err
	}

	p.ID = GenerateID()
	p.Synced = true

	if err := s.repo.CreatePriorityRule(ctx, p); err != nil {
		p.Synced = false
		s.logger.Warn("priority rule persisted locally only", "id", p.ID, "error", err)
	}

	s.mu.Lock()
	s.priorityRules = append(s.priorityRules, *p.DeepCopy())
	s.mu.Unlock()

	s.logger.Info("priority rule created", "id", p.ID, "name", p.Name, "synced", p.Synced)
	s.notifyChange()
	return p.DeepCopy(), nil
}

// ListWeatherRules returns the cached weather capacity rules.
func (s *Store) ListWeatherRules(_ context.Context) ([]WeatherCapacityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]WeatherCapacityRule, 0, len(s.weatherRules))
	for i := range s.weatherRules {
		rules = append(rules, *s.weatherRules[i].DeepCopy())
	}
	return rules, nil
}

// CreateWeatherRule validates, persists, and caches a weather rule.
func (s *Store) CreateWeatherRule(ctx context.Context, w *WeatherCapacityRule) (*WeatherCapacityRule, error) {
	if err := ValidateWeatherRule(w); err != nil {
		return nil, err
	}

	w.ID = GenerateID()
	w.Synced = true

	if err := s.repo.CreateWeatherRule(ctx, w); err != nil {
		w.Synced = false
		s.logger.Warn("weather rule persisted locally only", "id", w.ID, "error", err)
	}

	s.mu.Lock()
	s.weatherRules = append(s.weatherRules, *w.DeepCopy())
	s.mu.Unlock()

	s.logger.Info("weather rule created", "id", w.ID, "synced", w.Synced)
	s.notifyChange()
	return w.DeepCopy(), nil
}


// SetOccupancy records a live site occupancy figure and optional per-zone
// counts, replacing the persisted baseline figures in subsequent
// evaluations.
func (s *Store) SetOccupancy(site int, zones map[string]int) {
	s.mu.Lock()
	v := site
	s.siteOccupancy = &v
	for id, n := range zones {
		s.zoneOccupancy[id] = n
	}
	s.mu.Unlock()

	s.logger.Debug("occupancy updated", "site", site, "zones", len(zones))
	s.notifyChange()
}

// applyOccupancy overlays live occupancy figures onto a baseline.
func (s *Store) applyOccupancy(b *Baseline) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.siteOccupancy != nil {
		b.CurrentOccupancy = *s.siteOccupancy
	}
	for i := range b.Zones {
		if n, ok := s.zoneOccupancy[b.Zones[i].ZoneID]; ok {
			b.Zones[i].CurrentOccupancy = n
		}
	}
}


// FlushUnsynced re-persists every entity that was committed locally while
// the repository was unreachable. Entities that flush successfully are
// re-flagged synced. Returns the number of entities flushed.
func (s *Store) FlushUnsynced(ctx context.Context) int {
	s.mu.RLock()
	var pendingRules []*CapacityRule
	for _, r := range s.rules {
		if !r.Synced {
			pendingRules = append(pendingRules, r.DeepCopy())
		}
	}
	var pendingOverrides []*Override
	for _, o := range s.overrides {
		if !o.Synced {
			pendingOverrides = append(pendingOverrides, o.DeepCopy())
		}
	}
	var pendingEvents []*SpecialEvent
	for _, e := range s.events {
		if !e.Synced {
			pendingEvents = append(pendingEvents, e.DeepCopy())
		}
	}
	s.mu.RUnlock()

	flushed := 0
	for _, r := range pendingRules {
		r.Synced = true
		if err := upsert(ctx, r, s.repo.CreateRule, s.repo.UpdateRule, ErrRuleExists); err != nil {
			continue
		}
		s.mu.Lock()
		if cur, ok := s.rules[r.ID]; ok {
			cur.Synced = true
		}
		s.mu.Unlock()
		flushed++
	}
	for _, o := range pendingOverrides {
		o.Synced = true
		if err := upsert(ctx, o, s.repo.CreateOverride, s.repo.UpdateOverride, ErrOverrideExists); err != nil {
			continue
		}
		s.mu.Lock()
		if cur, ok := s.overrides[o.ID]; ok {
			cur.Synced = true
		}
		s.mu.Unlock()
		flushed++
	}
	for _, e := range pendingEvents {
		e.Synced = true
		if err := upsert(ctx, e, s.repo.CreateEvent, s.repo.UpdateEvent, ErrEventExists); err != nil {
			continue
		}
		s.mu.Lock()
		if cur, ok := s.events[e.ID]; ok {
			cur.Synced = true
		}
		s.mu.Unlock()
		flushed++
	}

	if flushed > 0 {
		s.logger.Info("unsynced entities flushed", "count", flushed)
	}
	return flushed
}

// upsert tries create first and falls back to update when the entity
// already exists (it was persisted before the outage).
func upsert[T any](ctx context.Context, entity T,
	create, update func(context.Context, T) error, existsErr error) error {
	err := create(ctx, entity)
	if err == nil {
		return nil
	}
	if errors.Is(err, existsErr) {
		return update(ctx, entity)
	}
	return err
}


// snapshot returns fold-ordered copies of every collection the engine
// needs, taken under a single read lock so one evaluation sees one
// consistent view.
func (s *Store) snapshot() (rules []CapacityRule, overrides []Override, events []SpecialEvent, priority []PriorityBookingRule) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules = s.rulesLocked()
	overrides = s.overridesLocked()
	events = s.eventsLocked()
	priority = make([]PriorityBookingRule, 0, len(s.priorityRules))
	for i := range s.priorityRules {
		priority = append(priority, *s.priorityRules[i].DeepCopy())
	}
	return rules, overrides, events, priority
}
