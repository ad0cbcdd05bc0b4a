package capacity

import "errors"

// Domain errors for the capacity package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, capacity.ErrRuleNotFound) {
//	    // handle not found case
//	}
var (
	// ErrRuleNotFound is returned when a rule ID does not exist.
	ErrRuleNotFound = errors.New("capacity: rule not found")

	// ErrRuleExists is returned when creating a rule with an ID that already exists.
	ErrRuleExists = errors.New("capacity: rule already exists")

	// ErrInvalidRule is returned when rule validation fails.
	ErrInvalidRule = errors.New("capacity: invalid rule")

	// ErrInvalidCondition is returned when a rule condition is invalid.
	ErrInvalidCondition = errors.New("capacity: invalid condition")

	// ErrInvalidEffect is returned when a rule effect is invalid.
	ErrInvalidEffect = errors.New("capacity: invalid effect")

	// ErrInvalidName is returned when an entity name is empty or too long.
	ErrInvalidName = errors.New("capacity: invalid name")

	// ErrOverrideNotFound is returned when an override ID does not exist.
	ErrOverrideNotFound = errors.New("capacity: override not found")

	// ErrOverrideExists is returned when creating an override with a duplicate ID.
	ErrOverrideExists = errors.New("capacity: override already exists")

	// ErrInvalidOverride is returned when override validation fails.
	ErrInvalidOverride = errors.New("capacity: invalid override")

	// ErrEventNotFound is returned when an event ID does not exist.
	ErrEventNotFound = errors.New("capacity: event not found")

	// ErrEventExists is returned when creating an event with a duplicate ID.
	ErrEventExists = errors.New("capacity: event already exists")

	// ErrInvalidEvent is returned when event validation fails.
	ErrInvalidEvent = errors.New("capacity: invalid event")

	// ErrInvalidPriorityRule is returned when priority rule validation fails.
	ErrInvalidPriorityRule = errors.New("capacity: invalid priority rule")

	// ErrInvalidWeatherRule is returned when weather rule validation fails.
	ErrInvalidWeatherRule = errors.New("capacity: invalid weather rule")

	// ErrRepositoryUnavailable is returned when the backing store cannot be
	// reached. Lifecycle operations degrade to the local cache when they
	// see it; reads surface it.
	ErrRepositoryUnavailable = errors.New("capacity: repository unavailable")

	// ErrEvaluationNotFound is returned when an evaluation record ID does not exist.
	ErrEvaluationNotFound = errors.New("capacity: evaluation not found")
)
