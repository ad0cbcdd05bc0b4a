package capacity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestEvaluate_BaselineOnly(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	state, err := engine.Evaluate(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if state.TotalCapacity != 500 {
		t.Errorf("TotalCapacity = %d, want 500", state.TotalCapacity)
	}
	if state.AvailableCapacity != 500 {
		t.Errorf("AvailableCapacity = %d, want 500", state.AvailableCapacity)
	}
	if state.Phase != PhaseDone {
		t.Errorf("Phase = %q, want %q", state.Phase, PhaseDone)
	}
	if len(state.ActiveRules) != 0 {
		t.Errorf("ActiveRules = %v, want empty", state.ActiveRules)
	}

	zone := state.Zones[testZoneMain]
	if zone == nil {
		t.Fatal("main hall zone missing from state")
	}
	if zone.AdjustedCapacity != 300 || zone.AvailableCapacity != 300 {
		t.Errorf("zone adjusted/available = %d/%d, want 300/300",
			zone.AdjustedCapacity, zone.AvailableCapacity)
	}

	slot := state.Slots[SlotKey(testSlotDate, testSlotTime)]
	if slot == nil {
		t.Fatal("morning slot missing from state")
	}
	if slot.AvailableCapacity != 80 {
		t.Errorf("slot available = %d, want 80", slot.AvailableCapacity)
	}
	if !slot.Bookable {
		t.Error("slot should be bookable")
	}
}

func TestEvaluate_PriorityOrdering(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	high, err := store.CreateRule(ctx, siteSetRule("festival cap", 100, OperationSet, 400))
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	low, err := store.CreateRule(ctx, siteSetRule("safety margin", 10, OperationSubtract, 100))
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	state, err := engine.Evaluate(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	// Set to 400 first, then subtract 100.
	if state.TotalCapacity != 300 {
		t.Errorf("TotalCapacity = %d, want 300", state.TotalCapacity)
	}
	if len(state.ActiveRules) != 2 ||
		state.ActiveRules[0] != high.ID || state.ActiveRules[1] != low.ID {
		t.Errorf("ActiveRules = %v, want [%s %s]", state.ActiveRules, high.ID, low.ID)
	}
}

func TestEvaluate_ConditionsSeeRunningState(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	store.SetOccupancy(100, nil)

	// Folds first: 500 -> 400, pushing utilisation from 20% to 25%.
	if _, err := store.CreateRule(ctx, siteSetRule("tighten", 100, OperationSet, 400)); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	// Only applies because the earlier rule raised utilisation above 20%.
	crowd := siteSetRule("crowd response", 50, OperationMultiply, 0.5)
	crowd.Conditions = []Condition{{
		Type:     ConditionCurrentOccupancy,
		Operator: OpGreaterThan,
		Value:    float64(20),
	}}
	if _, err := store.CreateRule(ctx, crowd); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	state, err := engine.Evaluate(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if state.TotalCapacity != 200 {
		t.Errorf("TotalCapacity = %d, want 200", state.TotalCapacity)
	}
	if state.CurrentOccupancy != 100 {
		t.Errorf("CurrentOccupancy = %d, want 100", state.CurrentOccupancy)
	}
	if state.AvailableCapacity != 100 {
		t.Errorf("AvailableCapacity = %d, want 100", state.AvailableCapacity)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := store.CreateRule(ctx, siteSetRule("cap", 80, OperationSet, 450)); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	if _, err := store.CreateRule(ctx, zoneRule("halve hall", 40, testZoneMain, OperationMultiply, 0.5)); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	if _, err := store.CreateOverride(ctx, testOverride(OverrideCapacityDecrease, 350)); err != nil {
		t.Fatalf("CreateOverride() error = %v", err)
	}

	ts := time.Now().UTC()
	first, err := engine.Evaluate(ctx, ts)
	if err != nil {
		t.Fatalf("first Evaluate() error = %v", err)
	}
	second, err := engine.Evaluate(ctx, ts)
	if err != nil {
		t.Fatalf("second Evaluate() error = %v", err)
	}

	if first.TotalCapacity != second.TotalCapacity ||
		first.AvailableCapacity != second.AvailableCapacity {
		t.Errorf("site figures differ between runs: %d/%d vs %d/%d",
			first.TotalCapacity, first.AvailableCapacity,
			second.TotalCapacity, second.AvailableCapacity)
	}
	if len(first.ActiveRules) != len(second.ActiveRules) {
		t.Fatalf("ActiveRules length differs: %v vs %v", first.ActiveRules, second.ActiveRules)
	}
	for i := range first.ActiveRules {
		if first.ActiveRules[i] != second.ActiveRules[i] {
			t.Errorf("ActiveRules[%d] differs: %s vs %s", i, first.ActiveRules[i], second.ActiveRules[i])
		}
	}
	for id, z := range first.Zones {
		if second.Zones[id].AdjustedCapacity != z.AdjustedCapacity {
			t.Errorf("zone %s adjusted differs: %d vs %d",
				id, z.AdjustedCapacity, second.Zones[id].AdjustedCapacity)
		}
	}
}

func TestEvaluate_ValidityWindows(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	future := siteSetRule("not yet", 50, OperationSet, 100)
	future.ValidFrom = now.Add(time.Hour)
	if _, err := store.CreateRule(ctx, future); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	expired := siteSetRule("long gone", 50, OperationSet, 200)
	expired.ValidFrom = now.Add(-48 * time.Hour)
	end := now.Add(-24 * time.Hour)
	expired.ValidTo = &end
	if _, err := store.CreateRule(ctx, expired); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	inactive := siteSetRule("switched off", 50, OperationSet, 300)
	inactive.Active = false
	if _, err := store.CreateRule(ctx, inactive); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	state, err := engine.Evaluate(ctx, now)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if state.TotalCapacity != 500 {
		t.Errorf("TotalCapacity = %d, want 500 (no rule should apply)", state.TotalCapacity)
	}
	if len(state.ActiveRules) != 0 {
		t.Errorf("ActiveRules = %v, want empty", state.ActiveRules)
	}
}

func TestEvaluate_OverridesAfterRules(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := store.CreateRule(ctx, siteSetRule("festival cap", 100, OperationSet, 400)); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	if _, err := store.CreateOverride(ctx, testOverride(OverrideCapacityDecrease, 200)); err != nil {
		t.Fatalf("CreateOverride() error = %v", err)
	}

	state, err := engine.Evaluate(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if state.TotalCapacity != 200 {
		t.Errorf("TotalCapacity = %d, want 200 (override replaces rule output)", state.TotalCapacity)
	}
	if len(state.ManualOverrides) != 1 {
		t.Errorf("ManualOverrides count = %d, want 1", len(state.ManualOverrides))
	}
}

func TestEvaluate_ApprovalGating(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	pending := testOverride(OverrideCapacityDecrease, 200)
	pending.RequiresApproval = true
	created, err := store.CreateOverride(ctx, pending)
	if err != nil {
		t.Fatalf("CreateOverride() error = %v", err)
	}

	state, err := engine.Evaluate(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if state.TotalCapacity != 500 {
		t.Errorf("TotalCapacity = %d, want 500 (unapproved override must be inert)", state.TotalCapacity)
	}
	if len(state.ManualOverrides) != 0 {
		t.Errorf("ManualOverrides = %v, want empty", state.ManualOverrides)
	}

	if _, err := store.ApproveOverride(ctx, created.ID, "temple-board"); err != nil {
		t.Fatalf("ApproveOverride() error = %v", err)
	}

	state, err = engine.Evaluate(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("Evaluate() after approval error = %v", err)
	}
	if state.TotalCapacity != 200 {
		t.Errorf("TotalCapacity = %d, want 200 after approval", state.TotalCapacity)
	}
}

func TestEvaluate_EventRulesFoldLast(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rule, err := store.CreateRule(ctx, siteSetRule("event crowd control", 90, OperationMultiply, 0.5))
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	event := &SpecialEvent{
		Name:          "Maha Shivaratri",
		Type:          EventFestival,
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(time.Hour),
		Status:        EventActive,
		CapacityRules: []string{rule.ID},
		CreatedBy:     "test",
	}
	if _, err := store.CreateEvent(ctx, event); err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	// Rule phase halves 500 to 250, the override replaces that with 200,
	// then the event phase folds the same rule again on top.
	if _, err := store.CreateOverride(ctx, testOverride(OverrideCapacityDecrease, 200)); err != nil {
		t.Fatalf("CreateOverride() error = %v", err)
	}

	state, err := engine.Evaluate(ctx, now)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if state.TotalCapacity != 100 {
		t.Errorf("TotalCapacity = %d, want 100 (event rule re-folds after the override)", state.TotalCapacity)
	}
	// ActiveRules tracks the rule once even though it folded twice.
	count := 0
	for _, id := range state.ActiveRules {
		if id == rule.ID {
			count++
		}
	}
	if count != 1 {
		t.Errorf("event rule tracked %d times in ActiveRules, want exactly once", count)
	}
}

func TestEvaluate_EventRuleEffectsExecuteTwice(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rule, err := store.CreateRule(ctx, siteSetRule("festival buffer", 90, OperationAdd, 10))
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	event := &SpecialEvent{
		Name:          "Maha Shivaratri",
		Type:          EventFestival,
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(time.Hour),
		Status:        EventActive,
		CapacityRules: []string{rule.ID},
		CreatedBy:     "test",
	}
	if _, err := store.CreateEvent(ctx, event); err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	state, err := engine.Evaluate(ctx, now)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	// Once in the rule phase, once more in the event phase.
	if state.TotalCapacity != 520 {
		t.Errorf("TotalCapacity = %d, want 520", state.TotalCapacity)
	}
	if len(state.ActiveRules) != 1 || state.ActiveRules[0] != rule.ID {
		t.Errorf("ActiveRules = %v, want [%s]", state.ActiveRules, rule.ID)
	}
}

func TestEvaluate_PlannedEventRuleFoldsOnce(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rule, err := store.CreateRule(ctx, siteSetRule("event buffer", 90, OperationAdd, 10))
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	event := &SpecialEvent{
		Name:          "Planned maintenance",
		Type:          EventMaintenance,
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(time.Hour),
		Status:        EventPlanned,
		CapacityRules: []string{rule.ID},
		CreatedBy:     "test",
	}
	if _, err := store.CreateEvent(ctx, event); err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	state, err := engine.Evaluate(ctx, now)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	// Event membership does not park the rule: it still folds in the rule
	// phase. Only the event-phase re-fold waits for the event to activate.
	if state.TotalCapacity != 510 {
		t.Errorf("TotalCapacity = %d, want 510", state.TotalCapacity)
	}
	if len(state.ActiveRules) != 1 || state.ActiveRules[0] != rule.ID {
		t.Errorf("ActiveRules = %v, want [%s]", state.ActiveRules, rule.ID)
	}
}

func TestEvaluate_EmergencyClosure(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := store.CreateOverride(ctx, testOverride(OverrideEmergencyClosure, 0)); err != nil {
		t.Fatalf("CreateOverride() error = %v", err)
	}

	state, err := engine.Evaluate(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if state.TotalCapacity != 0 || state.AvailableCapacity != 0 {
		t.Errorf("site total/available = %d/%d, want 0/0", state.TotalCapacity, state.AvailableCapacity)
	}
	for id, z := range state.Zones {
		if z.AdjustedCapacity != 0 || z.AvailableCapacity != 0 {
			t.Errorf("zone %s adjusted/available = %d/%d, want 0/0", id, z.AdjustedCapacity, z.AvailableCapacity)
		}
		if len(z.Restrictions) == 0 {
			t.Errorf("zone %s has no closure restriction", id)
		}
	}
	for key, slot := range state.Slots {
		if slot.Bookable {
			t.Errorf("slot %s still bookable after emergency closure", key)
		}
	}
}

func TestEvaluate_ZoneAndSlotAdjustments(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := store.CreateRule(ctx, zoneRule("monsoon hall cap", 60, testZoneMain, OperationMultiply, 0.5)); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	slotKey := SlotKey(testSlotDate, testSlotTime)
	slot := &CapacityRule{
		Name:     "morning squeeze",
		Priority: 50,
		Active:   true,
		Effects: []Effect{{
			Type:      EffectSlotCapacityAdjustment,
			Target:    EffectTarget{Scope: ScopeSlot, Identifier: &slotKey},
			Operation: OperationSubtract,
			Value:     50,
		}},
		ValidFrom: time.Now().UTC().Add(-time.Hour),
		CreatedBy: "test",
	}
	if _, err := store.CreateRule(ctx, slot); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	state, err := engine.Evaluate(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if got := state.Zones[testZoneMain].AdjustedCapacity; got != 150 {
		t.Errorf("main hall adjusted = %d, want 150", got)
	}
	ss := state.Slots[slotKey]
	if ss.AdjustedCapacity != 50 {
		t.Errorf("slot adjusted = %d, want 50", ss.AdjustedCapacity)
	}
	if ss.AvailableCapacity != 30 {
		t.Errorf("slot available = %d, want 30 (50 adjusted - 20 booked)", ss.AvailableCapacity)
	}
}

func TestEvaluate_AccessRestrictionBlocksBooking(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	rule := &CapacityRule{
		Name:     "VIP darshan only",
		Priority: 50,
		Active:   true,
		Effects: []Effect{{
			Type:      EffectAccessRestriction,
			Target:    EffectTarget{Scope: ScopeSite},
			Operation: OperationSet,
		}},
		ValidFrom: time.Now().UTC().Add(-time.Hour),
		CreatedBy: "test",
	}
	if _, err := store.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	state, err := engine.Evaluate(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	// Numbers untouched, every slot restricted.
	if state.TotalCapacity != 500 {
		t.Errorf("TotalCapacity = %d, want 500", state.TotalCapacity)
	}
	for key, slot := range state.Slots {
		if slot.Bookable {
			t.Errorf("slot %s still bookable under site-wide access restriction", key)
		}
		if len(slot.Restrictions) != 1 {
			t.Errorf("slot %s restrictions = %d, want 1", key, len(slot.Restrictions))
		}
	}
}

func TestEvaluate_BaselineFailure(t *testing.T) {
	engine, _, repo := newTestEngine(t)
	repo.setFail(true)

	_, err := engine.Evaluate(context.Background(), time.Now().UTC())
	if !errors.Is(err, ErrRepositoryUnavailable) {
		t.Errorf("Evaluate() error = %v, want ErrRepositoryUnavailable", err)
	}
}

func TestEvaluate_RecordsAuditEntry(t *testing.T) {
	engine, _, repo := newTestEngine(t)

	if _, err := engine.Evaluate(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if repo.evaluationCount() != 1 {
		t.Errorf("evaluation records = %d, want 1", repo.evaluationCount())
	}
}

func TestState_NilBeforeFirstEvaluation(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	if state := engine.State(); state != nil {
		t.Errorf("State() = %+v, want nil before first evaluation", state)
	}
}

// ─── Availability ───────────────────────────────────────────────────────────

func TestAvailability_KnownSlot(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	if _, err := engine.Evaluate(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	avail, err := engine.Availability(ctx, testSlotDate, testSlotTime, "", "")
	if err != nil {
		t.Fatalf("Availability() error = %v", err)
	}
	if avail.Available != 80 {
		t.Errorf("Available = %d, want 80", avail.Available)
	}
	if avail.Total != 100 {
		t.Errorf("Total = %d, want 100", avail.Total)
	}
	if avail.WaitingList != 3 {
		t.Errorf("WaitingList = %d, want 3", avail.WaitingList)
	}
}

func TestAvailability_UnknownSlot(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	avail, err := engine.Availability(ctx, "2026-12-25", "23:00-23:30", "", "")
	if err != nil {
		t.Fatalf("Availability() error = %v", err)
	}
	if avail.Available != 0 || avail.Total != 0 {
		t.Errorf("unknown slot available/total = %d/%d, want 0/0", avail.Available, avail.Total)
	}
	if len(avail.Restrictions) != 1 || avail.Restrictions[0] != "Slot not available" {
		t.Errorf("Restrictions = %v, want [Slot not available]", avail.Restrictions)
	}
}

func TestAvailability_PriorityHeadroom(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := store.CreatePriorityRule(ctx, &PriorityBookingRule{
		Name:                "senior citizens",
		UserTypes:           []string{"senior_citizen"},
		CapacityReservation: 10,
		Active:              true,
	}); err != nil {
		t.Fatalf("CreatePriorityRule() error = %v", err)
	}
	if _, err := engine.Evaluate(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	public, err := engine.Availability(ctx, testSlotDate, testSlotTime, "", "public")
	if err != nil {
		t.Fatalf("Availability(public) error = %v", err)
	}
	senior, err := engine.Availability(ctx, testSlotDate, testSlotTime, "", "senior_citizen")
	if err != nil {
		t.Fatalf("Availability(senior) error = %v", err)
	}

	if public.Available != 80 {
		t.Errorf("public Available = %d, want 80", public.Available)
	}
	// 10% of the 100 adjusted seats reserved as headroom.
	if senior.Available != 90 {
		t.Errorf("senior Available = %d, want 90", senior.Available)
	}
}

func TestAvailability_EvaluatesWhenNoState(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	avail, err := engine.Availability(context.Background(), testSlotDate, testSlotTime, "", "")
	if err != nil {
		t.Fatalf("Availability() error = %v", err)
	}
	if avail.Available != 80 {
		t.Errorf("Available = %d, want 80 (lazy first evaluation)", avail.Available)
	}
	if engine.State() == nil {
		t.Error("State() should be populated after the lazy evaluation")
	}
}

// ─── Notification sinks ─────────────────────────────────────────────────────

type captureHub struct {
	mu       sync.Mutex
	channels []string
}

func (h *captureHub) Broadcast(channel string, _ any) {
	h.mu.Lock()
	h.channels = append(h.channels, channel)
	h.mu.Unlock()
}

type capturePublisher struct {
	mu     sync.Mutex
	states int
}

func (p *capturePublisher) PublishState(_ *State) error {
	p.mu.Lock()
	p.states++
	p.mu.Unlock()
	return nil
}

type captureRecorder struct {
	mu        sync.Mutex
	snapshots int
	metrics   int
}

func (r *captureRecorder) RecordSnapshot(_ *State) {
	r.mu.Lock()
	r.snapshots++
	r.mu.Unlock()
}

func (r *captureRecorder) RecordEvaluationMetric(_ string, _, _ int) {
	r.mu.Lock()
	r.metrics++
	r.mu.Unlock()
}

func TestEvaluate_NotifiesSinks(t *testing.T) {
	repo := newMemRepo()
	store := NewStore(repo)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	hub := &captureHub{}
	pub := &capturePublisher{}
	rec := &captureRecorder{}
	engine := NewEngine(store, repo, pub, hub, rec, nil)

	ctx := context.Background()
	if _, err := store.CreateOverride(ctx, testOverride(OverrideCapacityDecrease, 300)); err != nil {
		t.Fatalf("CreateOverride() error = %v", err)
	}
	if _, err := engine.Evaluate(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	hub.mu.Lock()
	channels := append([]string(nil), hub.channels...)
	hub.mu.Unlock()
	if len(channels) != 2 || channels[0] != ChannelStateChanged || channels[1] != ChannelOverrideApplied {
		t.Errorf("broadcast channels = %v, want [%s %s]",
			channels, ChannelStateChanged, ChannelOverrideApplied)
	}
	if pub.states != 1 {
		t.Errorf("published states = %d, want 1", pub.states)
	}
	if rec.snapshots != 1 {
		t.Errorf("recorded snapshots = %d, want 1", rec.snapshots)
	}
	if rec.metrics != 1 {
		t.Errorf("recorded evaluation metrics = %d, want 1", rec.metrics)
	}
}

// ─── Fold ordering helpers ──────────────────────────────────────────────────

func TestSortRulesForFold(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	rules := []CapacityRule{
		{ID: "c", Priority: 50, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "a", Priority: 100, CreatedAt: base.Add(time.Minute)},
		{ID: "b", Priority: 50, CreatedAt: base},
	}
	sortRulesForFold(rules)

	want := []string{"a", "b", "c"}
	for i, id := range want {
		if rules[i].ID != id {
			t.Errorf("rules[%d].ID = %s, want %s", i, rules[i].ID, id)
		}
	}
}

func TestSortOverridesForFold(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	overrides := []Override{
		{ID: "b", AuthorizedAt: base.Add(time.Minute)},
		{ID: "a", AuthorizedAt: base},
		{ID: "c", AuthorizedAt: base.Add(time.Minute)},
	}
	sortOverridesForFold(overrides)

	want := []string{"a", "b", "c"}
	for i, id := range want {
		if overrides[i].ID != id {
			t.Errorf("overrides[%d].ID = %s, want %s", i, overrides[i].ID, id)
		}
	}
}
