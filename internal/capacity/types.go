package capacity

import "time"

// CapacityRule is a conditional capacity modifier. When every condition
// holds against the state being evaluated, each effect is applied in list
// order. Rules fold in descending priority; a higher-priority rule is
// applied earlier, so later rules act on its output.
type CapacityRule struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Description (optional)
	Description *string `json:"description,omitempty"`

	// Ordering: higher priority folds first (ties keep submission order)
	Priority int `json:"priority"`

	// Active rules participate in evaluation; inactive rules are retained
	// but skipped.
	Active bool `json:"active"`

	Conditions []Condition `json:"conditions"`
	Effects    []Effect    `json:"effects"`

	// Validity window. A nil ValidTo means open-ended.
	ValidFrom time.Time  `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`

	// Audit
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
	Version      int       `json:"version"`

	// False when the entity was committed locally while the repository was
	// unreachable and has not yet been flushed back.
	Synced bool `json:"synced"`
}

// Condition is a single predicate within a rule. All conditions on a rule
// must hold for the rule to apply.
type Condition struct {
	Type     ConditionType  `json:"type"`
	Operator Operator       `json:"operator"`
	Value    any            `json:"value"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ConditionType identifies what a condition inspects.
type ConditionType string

const (
	ConditionDateRange        ConditionType = "date_range"
	ConditionTimeRange        ConditionType = "time_range"
	ConditionDayOfWeek        ConditionType = "day_of_week"
	ConditionFestival         ConditionType = "festival"
	ConditionWeather          ConditionType = "weather"
	ConditionCurrentOccupancy ConditionType = "current_occupancy"
	ConditionBookingCount     ConditionType = "booking_count"
	ConditionUserType         ConditionType = "user_type"
	ConditionZoneID           ConditionType = "zone_id"
	ConditionDarshanType      ConditionType = "darshan_type"
	ConditionSpecialEvent     ConditionType = "special_event"
)

// Operator compares a condition's configured value with the observed one.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpBetween     Operator = "between"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
)

// Effect describes one mutation a rule makes when it applies.
type Effect struct {
	Type      EffectType   `json:"type"`
	Target    EffectTarget `json:"target"`
	Operation Operation    `json:"operation"`
	Value     float64      `json:"value"`
}

// EffectTarget scopes an effect to the whole site, a zone, or a time slot.
type EffectTarget struct {
	Scope      TargetScope `json:"scope"`
	Identifier *string     `json:"identifier,omitempty"`
}

// TargetScope is the level an effect operates at.
type TargetScope string

const (
	ScopeSite TargetScope = "site"
	ScopeZone TargetScope = "zone"
	ScopeSlot TargetScope = "slot"
)

// EffectType identifies what an effect changes. Only the capacity
// adjustments mutate numbers; the rest surface as restriction descriptors
// on the affected zone or slot.
type EffectType string

const (
	EffectCapacityAdjustment     EffectType = "capacity_adjustment"
	EffectZoneCapacityAdjustment EffectType = "zone_capacity_adjustment"
	EffectSlotCapacityAdjustment EffectType = "slot_capacity_adjustment"
	EffectBookingLimit           EffectType = "booking_limit"
	EffectWaitTimeMultiplier     EffectType = "wait_time_multiplier"
	EffectPriceAdjustment        EffectType = "price_adjustment"
	EffectAccessRestriction      EffectType = "access_restriction"
)

// Operation is the arithmetic a numeric effect performs.
type Operation string

const (
	OperationSet      Operation = "set"
	OperationAdd      Operation = "add"
	OperationSubtract Operation = "subtract"
	OperationMultiply Operation = "multiply"
)

// Override is a manual capacity intervention. Unlike rules, overrides are
// unconditional: an override is applied whenever it is active, which
// requires being inside its validity window and, when RequiresApproval is
// set, having an approver recorded.
type Override struct {
	ID          string       `json:"id"`
	Type        OverrideType `json:"type"`
	Description *string      `json:"description,omitempty"`

	// Target zone or slot for the closure types; ignored by the
	// site-level capacity types.
	Target *string `json:"target,omitempty"`

	// NewValue replaces the site total for capacity_increase and
	// capacity_decrease.
	NewValue int `json:"new_value"`

	Reason string `json:"reason"`

	ValidFrom time.Time  `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`

	AuthorizedBy string    `json:"authorized_by"`
	AuthorizedAt time.Time `json:"authorized_at"`

	RequiresApproval bool       `json:"requires_approval"`
	ApprovedBy       *string    `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`

	Synced bool `json:"synced"`
}

// OverrideType identifies the intervention an override makes.
type OverrideType string

const (
	OverrideEmergencyClosure OverrideType = "emergency_closure"
	OverrideCapacityIncrease OverrideType = "capacity_increase"
	OverrideCapacityDecrease OverrideType = "capacity_decrease"
	OverrideZoneClosure      OverrideType = "zone_closure"
	OverrideSlotClosure      OverrideType = "slot_closure"
)

// ActiveAt reports whether the override participates in evaluation at ts.
// Approval gating: an override that requires approval is inert until an
// approver is recorded.
func (o *Override) ActiveAt(ts time.Time) bool {
	if ts.Before(o.ValidFrom) {
		return false
	}
	if o.ValidTo != nil && ts.After(*o.ValidTo) {
		return false
	}
	if o.RequiresApproval && (o.ApprovedBy == nil || *o.ApprovedBy == "") {
		return false
	}
	return true
}

// SpecialEvent bundles capacity rules for a dated occasion. Its automatic
// rules are materialised into real rules at creation time, inheriting the
// event's window; their ids are appended to CapacityRules.
type SpecialEvent struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Type        EventType `json:"type"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	// Optional HH:MM bounds within each day of the event.
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`

	// IDs of rules owned by this event (manual plus materialised).
	CapacityRules []string `json:"capacity_rules"`

	// Templates materialised into real rules at creation.
	AutomaticRules []CapacityRule `json:"automatic_rules,omitempty"`

	Priority           int      `json:"priority"`
	ConflictResolution string   `json:"conflict_resolution,omitempty"`
	Announcements      []string `json:"announcements,omitempty"`

	Status EventStatus `json:"status"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`

	Synced bool `json:"synced"`
}

// EventType categorises a special event.
type EventType string

const (
	EventFestival       EventType = "festival"
	EventMaintenance    EventType = "maintenance"
	EventSpecialDarshan EventType = "special_darshan"
	EventCultural       EventType = "cultural_event"
	EventEmergency      EventType = "emergency"
)

// EventStatus is the lifecycle state of a special event.
type EventStatus string

const (
	EventPlanned   EventStatus = "planned"
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// ActiveAt reports whether the event's rules participate at ts. Only
// events explicitly marked active count; a planned event inside its window
// stays inert until promoted.
func (e *SpecialEvent) ActiveAt(ts time.Time) bool {
	if e.Status != EventActive {
		return false
	}
	return !ts.Before(e.StartDate) && !ts.After(e.EndDate)
}

// PriorityBookingRule reserves a share of slot capacity for a class of
// visitor. The first active rule whose UserTypes contains the queried
// class wins.
type PriorityBookingRule struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	UserTypes []string `json:"user_types"`

	// Percentage (0-100) of a slot's adjusted capacity reserved as
	// additional headroom for the matching classes.
	CapacityReservation int `json:"capacity_reservation"`

	AdvanceBookingDays int      `json:"advance_booking_days"`
	SkipWaitingList    bool     `json:"skip_waiting_list"`
	PrioritySlots      []string `json:"priority_slots,omitempty"`
	MaxBookingsPerDay  int      `json:"max_bookings_per_day"`
	MaxDevoteesPerBook int      `json:"max_devotees_per_booking"`
	ValidDays          []int    `json:"valid_days,omitempty"`
	ValidTimeSlots     []string `json:"valid_time_slots,omitempty"`
	Active             bool     `json:"active"`

	Synced bool `json:"synced"`
}

// Matches reports whether the rule covers the given visitor class.
func (p *PriorityBookingRule) Matches(userType string) bool {
	if !p.Active {
		return false
	}
	for _, ut := range p.UserTypes {
		if ut == userType {
			return true
		}
	}
	return false
}

// WeatherCapacityRule scales zone capacity under a weather condition. An
// incoming weather report that matches an auto-apply rule materialises a
// multiplier capacity rule for each affected zone.
type WeatherCapacityRule struct {
	ID                     string           `json:"id"`
	Condition              WeatherCondition `json:"condition"`
	CapacityMultiplier     float64          `json:"capacity_multiplier"`
	AffectedZones          []string         `json:"affected_zones"`
	AutoApply              bool             `json:"auto_apply"`
	ManualOverrideRequired bool             `json:"manual_override_required"`

	Synced bool `json:"synced"`
}

// WeatherCondition describes the weather a rule reacts to. Bound fields
// are inclusive; nil means unbounded.
type WeatherCondition struct {
	Condition        string   `json:"condition"` // rain, storm, heat, cold, clear
	TempMin          *float64 `json:"temp_min,omitempty"`
	TempMax          *float64 `json:"temp_max,omitempty"`
	PrecipitationMin *float64 `json:"precipitation_min,omitempty"`
	WindSpeedMin     *float64 `json:"wind_speed_min,omitempty"`
}

// WeatherReport is an observed weather sample, typically delivered over
// MQTT by the weather collaborator.
type WeatherReport struct {
	Condition     string    `json:"condition"`
	Temperature   float64   `json:"temperature"`
	Precipitation float64   `json:"precipitation"`
	WindSpeed     float64   `json:"wind_speed"`
	ObservedAt    time.Time `json:"observed_at"`
}

// Matches reports whether the report satisfies the condition.
func (w *WeatherCondition) Matches(report WeatherReport) bool {
	if w.Condition != "" && w.Condition != report.Condition {
		return false
	}
	if w.TempMin != nil && report.Temperature < *w.TempMin {
		return false
	}
	if w.TempMax != nil && report.Temperature > *w.TempMax {
		return false
	}
	if w.PrecipitationMin != nil && report.Precipitation < *w.PrecipitationMin {
		return false
	}
	if w.WindSpeedMin != nil && report.WindSpeed < *w.WindSpeedMin {
		return false
	}
	return true
}

// DeepCopy creates a complete independent copy of the rule. All map and
// slice fields are cloned so modifications to the copy do not affect the
// original. This is essential for cache isolation.
func (r *CapacityRule) DeepCopy() *CapacityRule {
	if r == nil {
		return nil
	}

	cpy := *r // Shallow copy of value fields

	cpy.Description = cloneStringPtr(r.Description)
	cpy.ValidTo = cloneTimePtr(r.ValidTo)

	if r.Conditions != nil {
		cpy.Conditions = make([]Condition, len(r.Conditions))
		for i, c := range r.Conditions {
			cpy.Conditions[i] = c
			cpy.Conditions[i].Value = deepCopyValue(c.Value)
			if c.Metadata != nil {
				cpy.Conditions[i].Metadata = deepCopyMap(c.Metadata)
			}
		}
	}
	if r.Effects != nil {
		cpy.Effects = make([]Effect, len(r.Effects))
		for i, e := range r.Effects {
			cpy.Effects[i] = e
			cpy.Effects[i].Target.Identifier = cloneStringPtr(e.Target.Identifier)
		}
	}

	return &cpy
}

// DeepCopy creates an independent copy of the override.
func (o *Override) DeepCopy() *Override {
	if o == nil {
		return nil
	}
	cpy := *o
	cpy.Description = cloneStringPtr(o.Description)
	cpy.Target = cloneStringPtr(o.Target)
	cpy.ValidTo = cloneTimePtr(o.ValidTo)
	cpy.ApprovedBy = cloneStringPtr(o.ApprovedBy)
	cpy.ApprovedAt = cloneTimePtr(o.ApprovedAt)
	return &cpy
}

// DeepCopy creates an independent copy of the event.
func (e *SpecialEvent) DeepCopy() *SpecialEvent {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Description = cloneStringPtr(e.Description)
	cpy.StartTime = cloneStringPtr(e.StartTime)
	cpy.EndTime = cloneStringPtr(e.EndTime)
	cpy.CapacityRules = cloneStringSlice(e.CapacityRules)
	cpy.Announcements = cloneStringSlice(e.Announcements)
	if e.AutomaticRules != nil {
		cpy.AutomaticRules = make([]CapacityRule, len(e.AutomaticRules))
		for i := range e.AutomaticRules {
			cpy.AutomaticRules[i] = *e.AutomaticRules[i].DeepCopy()
		}
	}
	return &cpy
}

// DeepCopy creates an independent copy of the priority rule.
func (p *PriorityBookingRule) DeepCopy() *PriorityBookingRule {
	if p == nil {
		return nil
	}
	cpy := *p
	cpy.UserTypes = cloneStringSlice(p.UserTypes)
	cpy.PrioritySlots = cloneStringSlice(p.PrioritySlots)
	cpy.ValidTimeSlots = cloneStringSlice(p.ValidTimeSlots)
	if p.ValidDays != nil {
		cpy.ValidDays = make([]int, len(p.ValidDays))
		copy(cpy.ValidDays, p.ValidDays)
	}
	return &cpy
}

// DeepCopy creates an independent copy of the weather rule.
func (w *WeatherCapacityRule) DeepCopy() *WeatherCapacityRule {
	if w == nil {
		return nil
	}
	cpy := *w
	cpy.AffectedZones = cloneStringSlice(w.AffectedZones)
	cpy.Condition.TempMin = cloneFloatPtr(w.Condition.TempMin)
	cpy.Condition.TempMax = cloneFloatPtr(w.Condition.TempMax)
	cpy.Condition.PrecipitationMin = cloneFloatPtr(w.Condition.PrecipitationMin)
	cpy.Condition.WindSpeedMin = cloneFloatPtr(w.Condition.WindSpeedMin)
	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v // Primitives are immutable
	}
}

// cloneStringPtr creates an independent copy of a *string.
func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// cloneTimePtr creates an independent copy of a *time.Time.
func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// cloneFloatPtr creates an independent copy of a *float64.
func cloneFloatPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// cloneStringSlice creates an independent copy of a []string.
func cloneStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	cpy := make([]string, len(s))
	copy(cpy, s)
	return cpy
}
