package capacity

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// StatePublisher pushes evaluated snapshots to the MQTT broker for other
// services (booking, signage, crowd control).
type StatePublisher interface {
	PublishState(state *State) error
}

// Broadcaster is the interface for pushing events to WebSocket clients.
type Broadcaster interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// Recorder persists evaluated snapshots to the analytics sink.
type Recorder interface {
	RecordSnapshot(state *State)
	// RecordEvaluationMetric notes how long a fold took and how many
	// rules it applied.
	RecordEvaluationMetric(siteID string, durationMS, rulesApplied int)
}

// WebSocket channels the engine broadcasts on.
const (
	ChannelStateChanged    = "capacity.state_changed"
	ChannelOverrideApplied = "capacity.override_applied"
)

// maxEvaluationTime bounds a single evaluation including the baseline
// load. Folding is pure computation; the limit exists for the repository
// round-trips on either side of it.
const maxEvaluationTime = 10 * time.Second

// Engine folds the capacity baseline with rules, overrides and event
// rules into a State snapshot.
//
// The fold pipeline runs in fixed order:
//
//	Loading -> FoldingRules -> ApplyingOverrides -> ApplyingEvents -> Done
//
// Rules fold in descending priority (ties by creation time), each one
// seeing the state as modified by its predecessors. Overrides fold next,
// unconditionally. Rules owned by active events then fold a second time,
// re-applying their effects on top of the override output; that layering
// is deliberate and observable in the evaluation log.
//
// Thread safety: Evaluate serializes on an internal mutex, so concurrent
// triggers (scheduler tick, mutation, MQTT push) never interleave folds.
type Engine struct {
	store *Store
	repo  Repository

	publisher StatePublisher
	hub       Broadcaster
	recorder  Recorder
	logger    Logger

	mu        sync.Mutex
	lastState *State

	// Last observed weather condition, for weather conditions on rules.
	weatherMu sync.RWMutex
	weather   string
}

// NewEngine creates a capacity engine.
//
// Parameters:
//   - store: entity cache providing the fold inputs
//   - repo: repository for the baseline and the evaluation log
//   - publisher: MQTT state publisher (may be nil)
//   - hub: WebSocket hub for broadcasting state changes (may be nil)
//   - recorder: analytics sink for snapshots (may be nil)
//   - logger: logger instance
func NewEngine(store *Store, repo Repository, publisher StatePublisher, hub Broadcaster, recorder Recorder, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		store:     store,
		repo:      repo,
		publisher: publisher,
		hub:       hub,
		recorder:  recorder,
		logger:    logger,
	}
}

// Evaluate folds the current baseline with every applicable rule,
// override and event rule at the given instant and returns the resulting
// snapshot. The result is also retained as the engine's current state.
//
// Rule evaluation never fails: malformed conditions evaluate leniently
// and stale targets are skipped. Only a baseline that cannot be loaded
// surfaces an error.
func (e *Engine) Evaluate(ctx context.Context, ts time.Time) (*State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, maxEvaluationTime)
	defer cancel()

	started := time.Now()

	baseline, err := e.repo.LoadBaseline(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading baseline: %w", ErrRepositoryUnavailable, err)
	}
	e.store.applyOccupancy(baseline)

	state := NewState(*baseline, ts)
	rules, overrides, events, _ := e.store.snapshot()

	ectx := e.buildContext(events, ts)

	// Phase: fold every active rule, highest priority first. Event-owned
	// rules are ordinary rules here; event membership only matters in the
	// event phase, where they fold a second time.
	state.Phase = PhaseFoldingRules
	for i := range rules {
		rule := &rules[i]
		if e.foldRule(state, rule, ts, ectx) {
			state.ActiveRules = append(state.ActiveRules, rule.ID)
		}
	}
	rulesApplied := cloneStringSlice(state.ActiveRules)

	// Phase: apply active overrides, oldest authorisation first.
	state.Phase = PhaseApplyingOverrides
	var overridesApplied []string
	for i := range overrides {
		o := &overrides[i]
		if !o.ActiveAt(ts) {
			continue
		}
		applyOverride(state, o)
		overridesApplied = append(overridesApplied, o.ID)
	}

	// Phase: re-fold rules owned by active events. The effects execute
	// again on top of the override output; only the ActiveRules tracking
	// is idempotent, the mutation is not suppressed.
	state.Phase = PhaseApplyingEvents
	var eventRulesApplied []string
	ruleByID := make(map[string]*CapacityRule, len(rules))
	for i := range rules {
		ruleByID[rules[i].ID] = &rules[i]
	}
	tracked := make(map[string]struct{}, len(state.ActiveRules))
	for _, id := range state.ActiveRules {
		tracked[id] = struct{}{}
	}
	for i := range events {
		ev := &events[i]
		if !ev.ActiveAt(ts) {
			continue
		}
		for _, id := range ev.CapacityRules {
			rule, ok := ruleByID[id]
			if !ok {
				continue
			}
			if e.foldRule(state, rule, ts, ectx) {
				if _, seen := tracked[rule.ID]; !seen {
					state.ActiveRules = append(state.ActiveRules, rule.ID)
					tracked[rule.ID] = struct{}{}
				}
				eventRulesApplied = append(eventRulesApplied, rule.ID)
			}
		}
	}

	state.Phase = PhaseDone
	e.lastState = state

	duration := time.Since(started)
	e.logger.Debug("evaluation complete",
		"total", state.TotalCapacity,
		"available", state.AvailableCapacity,
		"rules", len(rulesApplied),
		"overrides", len(overridesApplied),
		"event_rules", len(eventRulesApplied),
		"duration_ms", duration.Milliseconds(),
	)

	e.recordEvaluation(ctx, state, rulesApplied, overridesApplied, eventRulesApplied, duration)
	e.notify(state, len(overridesApplied) > 0)
	if e.recorder != nil {
		e.recorder.RecordEvaluationMetric(state.SiteID, int(duration.Milliseconds()), len(rulesApplied))
	}

	return state.DeepCopy(), nil
}

// foldRule applies a rule's effects if the rule is active, inside its
// validity window, and all conditions hold against the running state.
func (e *Engine) foldRule(state *State, rule *CapacityRule, ts time.Time, ectx evalContext) bool {
	if !rule.Active {
		return false
	}
	if ts.Before(rule.ValidFrom) {
		return false
	}
	if rule.ValidTo != nil && ts.After(*rule.ValidTo) {
		return false
	}
	if !conditionsHold(rule, state, ts, ectx) {
		return false
	}
	for _, effect := range rule.Effects {
		applyEffect(state, rule, effect)
	}
	return true
}

// buildContext assembles the ambient facts rule conditions can inspect.
func (e *Engine) buildContext(events []SpecialEvent, ts time.Time) evalContext {
	ectx := evalContext{Weather: e.currentWeather()}
	for i := range events {
		ev := &events[i]
		if !ev.ActiveAt(ts) {
			continue
		}
		ectx.ActiveEvents = append(ectx.ActiveEvents, ev.ID)
		if ev.Type == EventFestival {
			ectx.Festivals = append(ectx.Festivals, ev.Name)
		}
	}
	return ectx
}

func (e *Engine) currentWeather() string {
	e.weatherMu.RLock()
	defer e.weatherMu.RUnlock()
	return e.weather
}

// recordEvaluation writes the audit record. A failure here is logged and
// does not fail the evaluation.
func (e *Engine) recordEvaluation(ctx context.Context, state *State,
	rules, overrides, eventRules []string, duration time.Duration) {
	eval := &Evaluation{
		ID:                GenerateID(),
		Timestamp:         state.Timestamp,
		RulesApplied:      emptyIfNil(rules),
		OverridesApplied:  emptyIfNil(overrides),
		EventRulesApplied: emptyIfNil(eventRules),
		TotalCapacity:     state.TotalCapacity,
		AvailableCapacity: state.AvailableCapacity,
		UtilisationRate:   state.UtilisationRate,
		DurationMS:        int(duration.Milliseconds()),
	}
	if err := e.repo.CreateEvaluation(ctx, eval); err != nil {
		e.logger.Warn("failed to record evaluation", "error", err)
	}
}

// notify pushes the new state to every attached sink.
func (e *Engine) notify(state *State, overridesApplied bool) {
	if e.hub != nil {
		e.hub.Broadcast(ChannelStateChanged, state.DeepCopy())
		if overridesApplied {
			e.hub.Broadcast(ChannelOverrideApplied, state.ManualOverrides)
		}
	}
	if e.publisher != nil {
		if err := e.publisher.PublishState(state); err != nil {
			e.logger.Warn("failed to publish state", "error", err)
		}
	}
	if e.recorder != nil {
		e.recorder.RecordSnapshot(state)
	}
}

// State returns a copy of the most recently evaluated snapshot, or nil if
// no evaluation has run yet.
func (e *Engine) State() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastState.DeepCopy()
}

// Availability answers a public capacity query for one slot on one date.
//
// The figures come from the current snapshot (evaluating first if none
// exists). A slot the snapshot does not contain yields zero capacity with
// a "Slot not available" restriction rather than an error: an unknown
// slot is an answerable question, not a failure.
//
// Priority classes gain additive headroom: the first active priority rule
// covering userType reserves floor(adjusted * reservation%) on top of the
// slot's ordinary availability.
func (e *Engine) Availability(ctx context.Context, date, slot, darshanType, userType string) (*Availability, error) {
	if userType == "" {
		userType = "public"
	}

	e.mu.Lock()
	current := e.lastState
	e.mu.Unlock()
	if current == nil {
		var err error
		current, err = e.Evaluate(ctx, time.Now().UTC())
		if err != nil {
			return nil, err
		}
	}

	slotState, ok := current.Slots[SlotKey(date, slot)]
	if !ok {
		return &Availability{
			Available:    0,
			Total:        0,
			Restrictions: []string{"Slot not available"},
			WaitingList:  0,
		}, nil
	}

	available := slotState.AvailableCapacity

	// Priority reservation: first active rule covering the class wins.
	if rule := e.resolvePriorityRule(ctx, userType); rule != nil {
		reserved := int(math.Floor(float64(slotState.AdjustedCapacity) *
			float64(rule.CapacityReservation) / 100))
		available += reserved
	}

	restrictions := make([]string, 0, len(slotState.Restrictions))
	for _, r := range slotState.Restrictions {
		restrictions = append(restrictions, r.Description)
	}

	return &Availability{
		Available:    available,
		Total:        slotState.AdjustedCapacity,
		Restrictions: restrictions,
		WaitingList:  slotState.WaitingList,
	}, nil
}

// resolvePriorityRule finds the first active priority rule whose user
// types contain the given class, in stored order.
func (e *Engine) resolvePriorityRule(ctx context.Context, userType string) *PriorityBookingRule {
	rules, err := e.store.ListPriorityRules(ctx)
	if err != nil {
		return nil
	}
	for i := range rules {
		if rules[i].Matches(userType) {
			return &rules[i]
		}
	}
	return nil
}


// sortRulesForFold orders rules by priority descending; ties keep
// submission order (creation time, then id for full determinism).
func sortRulesForFold(rules []CapacityRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID < rules[j].ID
	})
}

// sortOverridesForFold orders overrides by authorisation time.
func sortOverridesForFold(overrides []Override) {
	sort.SliceStable(overrides, func(i, j int) bool {
		if !overrides[i].AuthorizedAt.Equal(overrides[j].AuthorizedAt) {
			return overrides[i].AuthorizedAt.Before(overrides[j].AuthorizedAt)
		}
		return overrides[i].ID < overrides[j].ID
	})
}

// sortEvents orders events by start date then id.
func sortEvents(events []SpecialEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].StartDate.Equal(events[j].StartDate) {
			return events[i].StartDate.Before(events[j].StartDate)
		}
		return events[i].ID < events[j].ID
	})
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
