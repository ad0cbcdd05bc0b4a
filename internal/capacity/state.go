package capacity

import "time"

// State is a full capacity snapshot for the site at one instant: the
// adjusted totals, per-zone and per-slot figures, and the rules and
// overrides that produced them. Evaluation always starts from a fresh
// baseline, so folding the same inputs twice yields identical states.
type State struct {
	SiteID    string    `json:"site_id"`
	Timestamp time.Time `json:"timestamp"`

	// Site-level figures. TotalCapacity is the adjusted total after
	// folding; AvailableCapacity = max(0, TotalCapacity - CurrentOccupancy).
	TotalCapacity     int     `json:"total_capacity"`
	CurrentOccupancy  int     `json:"current_occupancy"`
	AvailableCapacity int     `json:"available_capacity"`
	UtilisationRate   float64 `json:"utilisation_rate"` // 0-100

	Zones map[string]*ZoneState     `json:"zones"`
	Slots map[string]*TimeSlotState `json:"slots"` // keyed by date|slot

	// Provenance: rule ids applied and overrides folded, in order.
	ActiveRules     []string   `json:"active_rules"`
	ManualOverrides []Override `json:"manual_overrides"`

	Phase EvaluationPhase `json:"phase"`
}

// ZoneState is the capacity picture for one zone within a snapshot.
type ZoneState struct {
	ZoneID   string `json:"zone_id"`
	ZoneName string `json:"zone_name"`

	// BaseCapacity never changes during a fold; AdjustedCapacity is the
	// running value effects operate on.
	BaseCapacity      int     `json:"base_capacity"`
	AdjustedCapacity  int     `json:"adjusted_capacity"`
	CurrentOccupancy  int     `json:"current_occupancy"`
	AvailableCapacity int     `json:"available_capacity"`
	UtilisationRate   float64 `json:"utilisation_rate"`

	Restrictions []Restriction `json:"restrictions,omitempty"`
}

// TimeSlotState is the capacity picture for one bookable time slot.
type TimeSlotState struct {
	Slot string `json:"slot"` // e.g. "09:00-10:00"
	Date string `json:"date"` // YYYY-MM-DD

	BaseCapacity      int `json:"base_capacity"`
	AdjustedCapacity  int `json:"adjusted_capacity"`
	BookedCapacity    int `json:"booked_capacity"`
	AvailableCapacity int `json:"available_capacity"`

	// Number of parties currently queued for this slot.
	WaitingList int `json:"waiting_list"`

	// Bookable is false when a restriction blocks new bookings for the
	// slot (booking limits, access restrictions, closures).
	Bookable bool `json:"bookable"`

	Restrictions []Restriction `json:"restrictions,omitempty"`
}

// Restriction is a non-numeric constraint attached to a zone or slot by a
// rule effect or an override.
type Restriction struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	AppliedBy   string `json:"applied_by"` // rule or override id
}

// EvaluationPhase tracks where a snapshot is in the fold pipeline.
// Evaluation is synchronous; the phase matters for in-flight observability
// and for the evaluation log.
type EvaluationPhase string

const (
	PhaseIdle              EvaluationPhase = "idle"
	PhaseLoading           EvaluationPhase = "loading"
	PhaseFoldingRules      EvaluationPhase = "folding_rules"
	PhaseApplyingOverrides EvaluationPhase = "applying_overrides"
	PhaseApplyingEvents    EvaluationPhase = "applying_event_rules"
	PhaseDone              EvaluationPhase = "done"
)

// Baseline is the static starting point an evaluation folds from: zone and
// slot definitions from the repository plus the occupancy figure last
// reported by the crowd-tracking collaborator.
type Baseline struct {
	SiteID           string
	TotalCapacity    int
	CurrentOccupancy int
	Zones            []ZoneDefinition
	Slots            []SlotDefinition
}

// ZoneDefinition is a persisted zone with its standing capacity.
type ZoneDefinition struct {
	ZoneID           string `json:"zone_id"`
	ZoneName         string `json:"zone_name"`
	BaseCapacity     int    `json:"base_capacity"`
	CurrentOccupancy int    `json:"current_occupancy"`
}

// SlotDefinition is a persisted bookable time slot with its standing
// capacity and booking counters.
type SlotDefinition struct {
	Slot         string `json:"slot"`
	Date         string `json:"date"`
	BaseCapacity int    `json:"base_capacity"`
	Booked       int    `json:"booked"`
	WaitingList  int    `json:"waiting_list"`
}

// Evaluation is the audit record of one engine run.
type Evaluation struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	RulesApplied      []string  `json:"rules_applied"`
	OverridesApplied  []string  `json:"overrides_applied"`
	EventRulesApplied []string  `json:"event_rules_applied"`
	TotalCapacity     int       `json:"total_capacity"`
	AvailableCapacity int       `json:"available_capacity"`
	UtilisationRate   float64   `json:"utilisation_rate"`
	DurationMS        int       `json:"duration_ms"`
}

// Availability is the answer to a public capacity query for one slot.
type Availability struct {
	Available    int      `json:"available"`
	Total        int      `json:"total"`
	Restrictions []string `json:"restrictions"`
	WaitingList  int      `json:"waiting_list"`
}

// SlotKey builds the map key for a slot entry.
func SlotKey(date, slot string) string {
	return date + "|" + slot
}

// NewState builds a fresh snapshot from a baseline. Zone and slot adjusted
// figures start at their base values; availability and utilisation are
// derived immediately.
func NewState(b Baseline, ts time.Time) *State {
	s := &State{
		SiteID:           b.SiteID,
		Timestamp:        ts,
		TotalCapacity:    b.TotalCapacity,
		CurrentOccupancy: b.CurrentOccupancy,
		Zones:            make(map[string]*ZoneState, len(b.Zones)),
		Slots:            make(map[string]*TimeSlotState, len(b.Slots)),
		ActiveRules:      []string{},
		ManualOverrides:  []Override{},
		Phase:            PhaseLoading,
	}

	for _, z := range b.Zones {
		zs := &ZoneState{
			ZoneID:           z.ZoneID,
			ZoneName:         z.ZoneName,
			BaseCapacity:     z.BaseCapacity,
			AdjustedCapacity: z.BaseCapacity,
			CurrentOccupancy: z.CurrentOccupancy,
		}
		zs.recomputeAvailability()
		s.Zones[z.ZoneID] = zs
	}
	for _, sl := range b.Slots {
		ts := &TimeSlotState{
			Slot:             sl.Slot,
			Date:             sl.Date,
			BaseCapacity:     sl.BaseCapacity,
			AdjustedCapacity: sl.BaseCapacity,
			BookedCapacity:   sl.Booked,
			WaitingList:      sl.WaitingList,
			Bookable:         true,
		}
		ts.recomputeAvailability()
		s.Slots[SlotKey(sl.Date, sl.Slot)] = ts
	}

	s.recomputeAvailability()
	return s
}

// recomputeAvailability refreshes the site-level derived figures. Called
// after every mutation of TotalCapacity or CurrentOccupancy so the
// invariant available = max(0, total - occupied) always holds.
func (s *State) recomputeAvailability() {
	s.AvailableCapacity = clampNonNegative(s.TotalCapacity - s.CurrentOccupancy)
	if s.TotalCapacity > 0 {
		s.UtilisationRate = float64(s.CurrentOccupancy) / float64(s.TotalCapacity) * 100
	} else {
		s.UtilisationRate = 0
	}
}

func (z *ZoneState) recomputeAvailability() {
	z.AvailableCapacity = clampNonNegative(z.AdjustedCapacity - z.CurrentOccupancy)
	if z.AdjustedCapacity > 0 {
		z.UtilisationRate = float64(z.CurrentOccupancy) / float64(z.AdjustedCapacity) * 100
	} else {
		z.UtilisationRate = 0
	}
}

func (t *TimeSlotState) recomputeAvailability() {
	t.AvailableCapacity = clampNonNegative(t.AdjustedCapacity - t.BookedCapacity)
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// DeepCopy creates a complete independent copy of the snapshot.
func (s *State) DeepCopy() *State {
	if s == nil {
		return nil
	}
	cpy := *s

	cpy.Zones = make(map[string]*ZoneState, len(s.Zones))
	for id, z := range s.Zones {
		zc := *z
		zc.Restrictions = cloneRestrictions(z.Restrictions)
		cpy.Zones[id] = &zc
	}
	cpy.Slots = make(map[string]*TimeSlotState, len(s.Slots))
	for key, t := range s.Slots {
		tc := *t
		tc.Restrictions = cloneRestrictions(t.Restrictions)
		cpy.Slots[key] = &tc
	}

	cpy.ActiveRules = cloneStringSlice(s.ActiveRules)
	if s.ManualOverrides != nil {
		cpy.ManualOverrides = make([]Override, len(s.ManualOverrides))
		for i := range s.ManualOverrides {
			cpy.ManualOverrides[i] = *s.ManualOverrides[i].DeepCopy()
		}
	}
	return &cpy
}

func cloneRestrictions(rs []Restriction) []Restriction {
	if rs == nil {
		return nil
	}
	cpy := make([]Restriction, len(rs))
	copy(cpy, rs)
	return cpy
}
