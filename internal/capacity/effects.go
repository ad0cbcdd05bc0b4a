package capacity

import "math"

// applyEffect mutates the running state with a single effect from the
// given rule. Numeric capacity adjustments change the target's adjusted
// figure and immediately recompute availability; every other effect type
// attaches a restriction descriptor to the target instead of touching
// numbers.
//
// An effect naming a zone or slot the state does not contain is a no-op:
// rules outlive the baseline they were written against, and a stale
// identifier must not abort the fold.
func applyEffect(state *State, rule *CapacityRule, effect Effect) {
	switch effect.Type {
	case EffectCapacityAdjustment:
		state.TotalCapacity = applyOperation(state.TotalCapacity, effect.Operation, effect.Value)
		state.recomputeAvailability()

	case EffectZoneCapacityAdjustment:
		zone := targetZone(state, effect)
		if zone == nil {
			return
		}
		zone.AdjustedCapacity = applyOperation(zone.AdjustedCapacity, effect.Operation, effect.Value)
		zone.recomputeAvailability()

	case EffectSlotCapacityAdjustment:
		slot := targetSlot(state, effect)
		if slot == nil {
			return
		}
		slot.AdjustedCapacity = applyOperation(slot.AdjustedCapacity, effect.Operation, effect.Value)
		slot.recomputeAvailability()

	default:
		applyRestriction(state, rule.ID, rule.Name, effect)
	}
}

// applyOperation performs the arithmetic of a numeric effect. Subtraction
// clamps at zero; multiplication truncates to a whole headcount.
func applyOperation(current int, op Operation, value float64) int {
	switch op {
	case OperationSet:
		return int(value)
	case OperationAdd:
		return current + int(value)
	case OperationSubtract:
		return clampNonNegative(current - int(value))
	case OperationMultiply:
		return int(math.Floor(float64(current) * value))
	default:
		return current
	}
}

// applyRestriction attaches a descriptor for a non-numeric effect. A
// booking_limit or access_restriction on a slot also clears its Bookable
// flag so consumers need not parse descriptions.
func applyRestriction(state *State, appliedBy, sourceName string, effect Effect) {
	r := Restriction{
		Type:        string(effect.Type),
		Description: restrictionDescription(sourceName, effect),
		AppliedBy:   appliedBy,
	}

	switch effect.Target.Scope {
	case ScopeZone:
		if zone := targetZone(state, effect); zone != nil {
			zone.Restrictions = append(zone.Restrictions, r)
		}
	case ScopeSlot:
		if slot := targetSlot(state, effect); slot != nil {
			slot.Restrictions = append(slot.Restrictions, r)
			if blocksBooking(effect.Type) {
				slot.Bookable = false
			}
		}
	case ScopeSite:
		// Site-wide restrictions land on every slot: they constrain
		// admission regardless of which slot is booked.
		for _, slot := range state.Slots {
			slot.Restrictions = append(slot.Restrictions, r)
			if blocksBooking(effect.Type) {
				slot.Bookable = false
			}
		}
	}
}

func blocksBooking(t EffectType) bool {
	return t == EffectBookingLimit || t == EffectAccessRestriction
}

func restrictionDescription(sourceName string, effect Effect) string {
	switch effect.Type {
	case EffectBookingLimit:
		return sourceName + ": booking limit in force"
	case EffectWaitTimeMultiplier:
		return sourceName + ": extended wait times expected"
	case EffectPriceAdjustment:
		return sourceName + ": pricing adjusted"
	case EffectAccessRestriction:
		return sourceName + ": access restricted"
	default:
		return sourceName + ": " + string(effect.Type)
	}
}

// applyOverride folds a single active override into the state. Overrides
// are unconditional and apply after all rules; the capacity types replace
// the site total outright rather than adjusting it.
func applyOverride(state *State, o *Override) {
	switch o.Type {
	case OverrideCapacityIncrease, OverrideCapacityDecrease:
		state.TotalCapacity = o.NewValue
		state.recomputeAvailability()

	case OverrideZoneClosure:
		if o.Target == nil {
			return
		}
		zone, ok := state.Zones[*o.Target]
		if !ok {
			return
		}
		zone.AdjustedCapacity = 0
		zone.AvailableCapacity = 0
		zone.Restrictions = append(zone.Restrictions, Restriction{
			Type:        string(o.Type),
			Description: "zone closed: " + o.Reason,
			AppliedBy:   o.ID,
		})

	case OverrideSlotClosure:
		if o.Target == nil {
			return
		}
		slot, ok := state.Slots[*o.Target]
		if !ok {
			return
		}
		closeSlot(slot, o)

	case OverrideEmergencyClosure:
		// Full shutdown: site, every zone, every slot.
		state.TotalCapacity = 0
		state.recomputeAvailability()
		for _, zone := range state.Zones {
			zone.AdjustedCapacity = 0
			zone.AvailableCapacity = 0
			zone.Restrictions = append(zone.Restrictions, Restriction{
				Type:        string(o.Type),
				Description: "emergency closure: " + o.Reason,
				AppliedBy:   o.ID,
			})
		}
		for _, slot := range state.Slots {
			closeSlot(slot, o)
		}
	}

	state.ManualOverrides = append(state.ManualOverrides, *o.DeepCopy())
}

func closeSlot(slot *TimeSlotState, o *Override) {
	slot.AdjustedCapacity = 0
	slot.AvailableCapacity = 0
	slot.Bookable = false
	slot.Restrictions = append(slot.Restrictions, Restriction{
		Type:        string(o.Type),
		Description: "slot closed: " + o.Reason,
		AppliedBy:   o.ID,
	})
}

func targetZone(state *State, effect Effect) *ZoneState {
	if effect.Target.Identifier == nil {
		return nil
	}
	return state.Zones[*effect.Target.Identifier]
}

func targetSlot(state *State, effect Effect) *TimeSlotState {
	if effect.Target.Identifier == nil {
		return nil
	}
	return state.Slots[*effect.Target.Identifier]
}
