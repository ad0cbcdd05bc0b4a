package capacity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength       = 100
	maxDescriptionLen   = 500
	maxConditions       = 20
	maxEffects          = 20
	maxReasonLength     = 500
	maxReservationPct   = 100
	maxAnnouncements    = 10
	maxAutomaticRules   = 20
	minRulePriority     = 0
	maxRulePriority     = 1000
	defaultRulePriority = 50
)

// Pre-computed validation sets for O(1) lookups.
var (
	validOperations    map[Operation]struct{}
	validOverrideTypes map[OverrideType]struct{}
	validEventTypes    map[EventType]struct{}
	validEventStatuses map[EventStatus]struct{}
)

func init() {
	validOperations = setOf(OperationSet, OperationAdd, OperationSubtract, OperationMultiply)
	validOverrideTypes = setOf(OverrideEmergencyClosure, OverrideCapacityIncrease,
		OverrideCapacityDecrease, OverrideZoneClosure, OverrideSlotClosure)
	validEventTypes = setOf(EventFestival, EventMaintenance, EventSpecialDarshan,
		EventCultural, EventEmergency)
	validEventStatuses = setOf(EventPlanned, EventActive, EventCompleted, EventCancelled)
}

func setOf[T comparable](vals ...T) map[T]struct{} {
	m := make(map[T]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

// ValidateRule performs comprehensive validation on a capacity rule.
// Returns an error describing the first validation failure found.
//
// Condition and operator types are deliberately not closed-set validated:
// the engine treats unknown condition types as vacuously true and unknown
// operators as false, so a rule written against a newer vocabulary loads
// rather than being rejected.
func ValidateRule(r *CapacityRule) error {
	if r == nil {
		return ErrInvalidRule
	}

	if err := ValidateName(r.Name); err != nil {
		return err
	}
	if r.Description != nil && len(*r.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidRule, maxDescriptionLen)
	}
	if r.Priority < minRulePriority || r.Priority > maxRulePriority {
		return fmt.Errorf("%w: priority must be %d-%d", ErrInvalidRule, minRulePriority, maxRulePriority)
	}
	if r.ValidFrom.IsZero() {
		return fmt.Errorf("%w: valid_from is required", ErrInvalidRule)
	}
	if r.ValidTo != nil && r.ValidTo.Before(r.ValidFrom) {
		return fmt.Errorf("%w: valid_to precedes valid_from", ErrInvalidRule)
	}

	if len(r.Conditions) > maxConditions {
		return fmt.Errorf("%w: exceeds maximum of %d conditions", ErrInvalidCondition, maxConditions)
	}
	for i, c := range r.Conditions {
		if err := ValidateCondition(c); err != nil {
			return fmt.Errorf("condition[%d]: %w", i, err)
		}
	}

	if len(r.Effects) == 0 {
		return fmt.Errorf("%w: at least one effect is required", ErrInvalidEffect)
	}
	if len(r.Effects) > maxEffects {
		return fmt.Errorf("%w: exceeds maximum of %d effects", ErrInvalidEffect, maxEffects)
	}
	for i, e := range r.Effects {
		if err := ValidateEffect(e); err != nil {
			return fmt.Errorf("effect[%d]: %w", i, err)
		}
	}

	return nil
}

// ValidateName checks if an entity name is valid.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateCondition checks the structural fields of a condition.
func ValidateCondition(c Condition) error {
	if c.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidCondition)
	}
	if c.Operator == "" {
		return fmt.Errorf("%w: operator is required", ErrInvalidCondition)
	}
	if c.Value == nil {
		return fmt.Errorf("%w: value is required", ErrInvalidCondition)
	}
	return nil
}

// ValidateEffect checks if a rule effect is valid.
func ValidateEffect(e Effect) error {
	if e.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidEffect)
	}
	if _, ok := validOperations[e.Operation]; !ok {
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidEffect, e.Operation)
	}
	switch e.Target.Scope {
	case ScopeSite:
		// Site scope needs no identifier.
	case ScopeZone, ScopeSlot:
		if e.Target.Identifier == nil || *e.Target.Identifier == "" {
			return fmt.Errorf("%w: %s target requires an identifier", ErrInvalidEffect, e.Target.Scope)
		}
	default:
		return fmt.Errorf("%w: unknown target scope %q", ErrInvalidEffect, e.Target.Scope)
	}
	if e.Operation == OperationMultiply && e.Value < 0 {
		return fmt.Errorf("%w: multiply value cannot be negative", ErrInvalidEffect)
	}
	return nil
}

// ValidateOverride performs comprehensive validation on an override.
func ValidateOverride(o *Override) error {
	if o == nil {
		return ErrInvalidOverride
	}
	if _, ok := validOverrideTypes[o.Type]; !ok {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOverride, o.Type)
	}
	if strings.TrimSpace(o.Reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidOverride)
	}
	if len(o.Reason) > maxReasonLength {
		return fmt.Errorf("%w: reason exceeds %d characters", ErrInvalidOverride, maxReasonLength)
	}
	if o.AuthorizedBy == "" {
		return fmt.Errorf("%w: authorized_by is required", ErrInvalidOverride)
	}
	if o.ValidFrom.IsZero() {
		return fmt.Errorf("%w: valid_from is required", ErrInvalidOverride)
	}
	if o.ValidTo != nil && o.ValidTo.Before(o.ValidFrom) {
		return fmt.Errorf("%w: valid_to precedes valid_from", ErrInvalidOverride)
	}

	switch o.Type {
	case OverrideCapacityIncrease, OverrideCapacityDecrease:
		if o.NewValue < 0 {
			return fmt.Errorf("%w: new_value cannot be negative", ErrInvalidOverride)
		}
	case OverrideZoneClosure, OverrideSlotClosure:
		if o.Target == nil || *o.Target == "" {
			return fmt.Errorf("%w: %s requires a target", ErrInvalidOverride, o.Type)
		}
	}
	return nil
}

// ValidateEvent performs comprehensive validation on a special event.
func ValidateEvent(e *SpecialEvent) error {
	if e == nil {
		return ErrInvalidEvent
	}
	if err := ValidateName(e.Name); err != nil {
		return err
	}
	if _, ok := validEventTypes[e.Type]; !ok {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if e.Status != "" {
		if _, ok := validEventStatuses[e.Status]; !ok {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, e.Status)
		}
	}
	if e.StartDate.IsZero() || e.EndDate.IsZero() {
		return fmt.Errorf("%w: start_date and end_date are required", ErrInvalidEvent)
	}
	if e.EndDate.Before(e.StartDate) {
		return fmt.Errorf("%w: end_date precedes start_date", ErrInvalidEvent)
	}
	if len(e.Announcements) > maxAnnouncements {
		return fmt.Errorf("%w: exceeds maximum of %d announcements", ErrInvalidEvent, maxAnnouncements)
	}
	if len(e.AutomaticRules) > maxAutomaticRules {
		return fmt.Errorf("%w: exceeds maximum of %d automatic rules", ErrInvalidEvent, maxAutomaticRules)
	}
	return nil
}

// ValidatePriorityRule performs comprehensive validation on a priority
// booking rule.
func ValidatePriorityRule(p *PriorityBookingRule) error {
	if p == nil {
		return ErrInvalidPriorityRule
	}
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	if len(p.UserTypes) == 0 {
		return fmt.Errorf("%w: at least one user type is required", ErrInvalidPriorityRule)
	}
	if p.CapacityReservation < 0 || p.CapacityReservation > maxReservationPct {
		return fmt.Errorf("%w: capacity_reservation must be 0-%d", ErrInvalidPriorityRule, maxReservationPct)
	}
	if p.AdvanceBookingDays < 0 {
		return fmt.Errorf("%w: advance_booking_days cannot be negative", ErrInvalidPriorityRule)
	}
	for _, d := range p.ValidDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: valid_days entries must be 0-6", ErrInvalidPriorityRule)
		}
	}
	return nil
}

// ValidateWeatherRule performs comprehensive validation on a weather rule.
func ValidateWeatherRule(w *WeatherCapacityRule) error {
	if w == nil {
		return ErrInvalidWeatherRule
	}
	if w.Condition.Condition == "" {
		return fmt.Errorf("%w: weather condition is required", ErrInvalidWeatherRule)
	}
	if w.CapacityMultiplier < 0 {
		return fmt.Errorf("%w: capacity_multiplier cannot be negative", ErrInvalidWeatherRule)
	}
	if len(w.AffectedZones) == 0 {
		return fmt.Errorf("%w: at least one affected zone is required", ErrInvalidWeatherRule)
	}
	return nil
}

// GenerateID creates a new UUID for any capacity entity.
func GenerateID() string {
	return uuid.New().String()
}
