package capacity

import (
	"fmt"
	"strconv"
	"time"
)

// conditionsHold reports whether every condition on the rule holds against
// the running state at ts. Conditions combine with AND; a rule with no
// conditions always applies.
//
// Conditions are evaluated against the state as already modified by
// higher-priority rules, not the baseline. An occupancy condition can
// therefore stop matching because an earlier rule changed the total.
func conditionsHold(rule *CapacityRule, state *State, ts time.Time, ectx evalContext) bool {
	for _, c := range rule.Conditions {
		if !evaluateCondition(c, state, ts, ectx) {
			return false
		}
	}
	return true
}

// evalContext carries the ambient facts conditions can inspect beyond the
// capacity state itself.
type evalContext struct {
	// Names of festivals in progress, ids of active special events.
	Festivals    []string
	ActiveEvents []string

	// Last observed weather condition ("" when no report has arrived).
	Weather string

	// Query-scoped facts; empty outside an availability query.
	UserType    string
	ZoneID      string
	DarshanType string

	// Total confirmed bookings across slots.
	BookingCount int
}

// evaluateCondition evaluates a single condition. Unknown condition types
// evaluate true: a rule written against a vocabulary this engine does not
// know must not silently veto its own effects.
func evaluateCondition(c Condition, state *State, ts time.Time, ectx evalContext) bool {
	switch c.Type {
	case ConditionCurrentOccupancy:
		return compareValues(state.UtilisationRate, c.Operator, c.Value)

	case ConditionTimeRange:
		now := ts.Format("15:04")
		// A [start, end] pair is an inclusive window check whatever the
		// operator says; only scalar values route through the operator.
		if lo, hi, ok := boundsOf(c.Value); ok {
			return !compareLess(now, lo) && !compareLess(hi, now)
		}
		return compareValues(now, c.Operator, c.Value)

	case ConditionDayOfWeek:
		// time.Weekday already counts Sunday as 0.
		return compareValues(float64(ts.Weekday()), c.Operator, c.Value)

	case ConditionDateRange:
		return compareValues(ts.Format("2006-01-02"), c.Operator, c.Value)

	case ConditionFestival:
		return compareMembership(ectx.Festivals, c.Operator, c.Value)

	case ConditionSpecialEvent:
		return compareMembership(ectx.ActiveEvents, c.Operator, c.Value)

	case ConditionWeather:
		if ectx.Weather == "" {
			return true // no report yet; stay lenient
		}
		return compareValues(ectx.Weather, c.Operator, c.Value)

	case ConditionBookingCount:
		return compareValues(float64(ectx.BookingCount), c.Operator, c.Value)

	case ConditionUserType:
		if ectx.UserType == "" {
			return true
		}
		return compareValues(ectx.UserType, c.Operator, c.Value)

	case ConditionZoneID:
		if ectx.ZoneID == "" {
			return true
		}
		return compareValues(ectx.ZoneID, c.Operator, c.Value)

	case ConditionDarshanType:
		if ectx.DarshanType == "" {
			return true
		}
		return compareValues(ectx.DarshanType, c.Operator, c.Value)

	default:
		return true
	}
}

// compareValues applies an operator to an observed value and the
// condition's configured value. Unknown operators evaluate false: an
// operator typo must not make a condition vacuously true.
//
// Numeric comparison is used whenever both sides coerce to float64
// (JSON-decoded numbers arrive as float64); otherwise values compare as
// strings, which gives "HH:MM" and "YYYY-MM-DD" their natural ordering.
func compareValues(actual any, op Operator, expected any) bool {
	switch op {
	case OpEquals:
		return valuesEqual(actual, expected)

	case OpGreaterThan:
		a, aok := toFloat(actual)
		b, bok := toFloat(expected)
		if aok && bok {
			return a > b
		}
		return toString(actual) > toString(expected)

	case OpLessThan:
		a, aok := toFloat(actual)
		b, bok := toFloat(expected)
		if aok && bok {
			return a < b
		}
		return toString(actual) < toString(expected)

	case OpBetween:
		lo, hi, ok := boundsOf(expected)
		if !ok {
			return false
		}
		// Inclusive on both ends.
		return !compareLess(actual, lo) && !compareLess(hi, actual)

	case OpIn:
		return containsValue(expected, actual)

	case OpNotIn:
		return !containsValue(expected, actual)

	default:
		return false
	}
}

// compareMembership handles conditions whose observed side is a set (the
// festivals in progress, the active events). equals/in ask whether the
// configured value is present; not_in asks whether it is absent.
func compareMembership(observed []string, op Operator, expected any) bool {
	present := func(v any) bool {
		s := toString(v)
		for _, o := range observed {
			if o == s {
				return true
			}
		}
		return false
	}

	switch op {
	case OpEquals, OpIn:
		if vals, ok := expected.([]any); ok {
			for _, v := range vals {
				if present(v) {
					return true
				}
			}
			return false
		}
		return present(expected)
	case OpNotIn:
		if vals, ok := expected.([]any); ok {
			for _, v := range vals {
				if present(v) {
					return false
				}
			}
			return true
		}
		return !present(expected)
	default:
		return false
	}
}

// boundsOf extracts the [lo, hi] pair a between comparison needs.
func boundsOf(expected any) (lo, hi any, ok bool) {
	switch v := expected.(type) {
	case []any:
		if len(v) != 2 {
			return nil, nil, false
		}
		return v[0], v[1], true
	case []string:
		if len(v) != 2 {
			return nil, nil, false
		}
		return v[0], v[1], true
	case []float64:
		if len(v) != 2 {
			return nil, nil, false
		}
		return v[0], v[1], true
	case map[string]any:
		lo, hasLo := v["start"]
		hi, hasHi := v["end"]
		if !hasLo || !hasHi {
			return nil, nil, false
		}
		return lo, hi, true
	default:
		return nil, nil, false
	}
}

func compareLess(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	return toString(a) < toString(b)
}

func valuesEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return toString(a) == toString(b)
}

func containsValue(haystack, needle any) bool {
	switch vals := haystack.(type) {
	case []any:
		for _, v := range vals {
			if valuesEqual(needle, v) {
				return true
			}
		}
	case []string:
		for _, v := range vals {
			if valuesEqual(needle, v) {
				return true
			}
		}
	case []float64:
		for _, v := range vals {
			if valuesEqual(needle, v) {
				return true
			}
		}
	}
	return false
}

// toFloat coerces numeric representations to float64. JSON decoding gives
// float64; the int cases cover values built in code.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
