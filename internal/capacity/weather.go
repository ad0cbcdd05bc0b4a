package capacity

import (
	"context"
	"fmt"
	"time"
)

// weatherRuleTTL bounds how long a materialised weather rule stays valid
// without a fresh matching report. Weather data goes stale quickly; a rule
// that outlives its observation would keep suppressing capacity on a
// clear day.
const weatherRuleTTL = 6 * time.Hour

// HandleWeatherReport ingests a weather observation. The observed
// condition becomes visible to weather conditions on ordinary rules, and
// every auto-apply weather rule the report matches is materialised into a
// real capacity rule multiplying the affected zones, valid from now for
// weatherRuleTTL.
//
// Rules requiring manual override are matched but only logged; an
// operator applies them through the ordinary rule API.
func (e *Engine) HandleWeatherReport(ctx context.Context, report WeatherReport) error {
	e.weatherMu.Lock()
	e.weather = report.Condition
	e.weatherMu.Unlock()

	weatherRules, err := e.store.ListWeatherRules(ctx)
	if err != nil {
		return fmt.Errorf("listing weather rules: %w", err)
	}

	now := time.Now().UTC()
	for i := range weatherRules {
		wr := &weatherRules[i]
		if !wr.Condition.Matches(report) {
			continue
		}
		if wr.ManualOverrideRequired || !wr.AutoApply {
			e.logger.Info("weather rule matched but requires manual application",
				"weather_rule_id", wr.ID, "condition", report.Condition)
			continue
		}
		if e.weatherRuleMaterialised(ctx, wr.ID, now) {
			continue
		}

		rule := materialiseWeatherRule(wr, report, now)
		created, createErr := e.store.CreateRule(ctx, rule)
		if createErr != nil {
			e.logger.Error("failed to materialise weather rule",
				"weather_rule_id", wr.ID, "error", createErr)
			continue
		}
		e.logger.Info("weather rule materialised",
			"weather_rule_id", wr.ID, "rule_id", created.ID,
			"condition", report.Condition, "multiplier", wr.CapacityMultiplier)
	}

	return nil
}

// weatherRuleMaterialised reports whether a still-valid rule materialised
// from this weather rule already exists, so repeated reports of the same
// conditions do not stack multipliers.
func (e *Engine) weatherRuleMaterialised(ctx context.Context, weatherRuleID string, ts time.Time) bool {
	rules, err := e.store.ListRules(ctx)
	if err != nil {
		return false
	}
	marker := weatherRuleMarker(weatherRuleID)
	for i := range rules {
		r := &rules[i]
		if r.Description == nil || *r.Description != marker {
			continue
		}
		if r.ValidTo != nil && ts.After(*r.ValidTo) {
			continue
		}
		return true
	}
	return false
}

// materialiseWeatherRule builds the capacity rule a matched weather rule
// produces: one multiply effect per affected zone, gated by a weather
// condition so the fold drops it if conditions change before expiry.
func materialiseWeatherRule(wr *WeatherCapacityRule, report WeatherReport, now time.Time) *CapacityRule {
	validTo := now.Add(weatherRuleTTL)
	marker := weatherRuleMarker(wr.ID)

	effects := make([]Effect, 0, len(wr.AffectedZones))
	for _, zoneID := range wr.AffectedZones {
		id := zoneID
		effects = append(effects, Effect{
			Type:      EffectZoneCapacityAdjustment,
			Target:    EffectTarget{Scope: ScopeZone, Identifier: &id},
			Operation: OperationMultiply,
			Value:     wr.CapacityMultiplier,
		})
	}

	return &CapacityRule{
		Name:        fmt.Sprintf("Weather adjustment: %s", report.Condition),
		Description: &marker,
		Priority:    defaultRulePriority,
		Active:      true,
		Conditions: []Condition{{
			Type:     ConditionWeather,
			Operator: OpEquals,
			Value:    report.Condition,
		}},
		Effects:   effects,
		ValidFrom: now,
		ValidTo:   &validTo,
		CreatedBy: "weather-automation",
	}
}

func weatherRuleMarker(weatherRuleID string) string {
	return "auto-applied from weather rule " + weatherRuleID
}
