package capacity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// LoadBaseline assembles the static starting point for an evaluation: the
// site row plus its zone and time-slot definitions.
func (r *SQLiteRepository) LoadBaseline(ctx context.Context) (*Baseline, error) {
	b := &Baseline{SiteID: r.siteID}

	row := r.db.QueryRowContext(ctx,
		`SELECT total_capacity, current_occupancy FROM sites WHERE site_id = ?`, r.siteID)
	if err := row.Scan(&b.TotalCapacity, &b.CurrentOccupancy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("site %q not provisioned: %w", r.siteID, ErrRepositoryUnavailable)
		}
		return nil, fmt.Errorf("querying site: %w", err)
	}

	zones, err := r.db.QueryContext(ctx,
		`SELECT zone_id, zone_name, base_capacity, current_occupancy
		 FROM zones WHERE site_id = ? ORDER BY zone_id`, r.siteID)
	if err != nil {
		return nil, fmt.Errorf("querying zones: %w", err)
	}
	defer zones.Close()

	for zones.Next() {
		var z ZoneDefinition
		if scanErr := zones.Scan(&z.ZoneID, &z.ZoneName, &z.BaseCapacity, &z.CurrentOccupancy); scanErr != nil {
			return nil, fmt.Errorf("scanning zone: %w", scanErr)
		}
		b.Zones = append(b.Zones, z)
	}
	if err := zones.Err(); err != nil {
		return nil, fmt.Errorf("iterating zones: %w", err)
	}

	slots, err := r.db.QueryContext(ctx,
		`SELECT date, slot, base_capacity, booked, waiting_list
		 FROM time_slots WHERE site_id = ? ORDER BY date, slot`, r.siteID)
	if err != nil {
		return nil, fmt.Errorf("querying time slots: %w", err)
	}
	defer slots.Close()

	for slots.Next() {
		var s SlotDefinition
		if scanErr := slots.Scan(&s.Date, &s.Slot, &s.BaseCapacity, &s.Booked, &s.WaitingList); scanErr != nil {
			return nil, fmt.Errorf("scanning time slot: %w", scanErr)
		}
		b.Slots = append(b.Slots, s)
	}
	if err := slots.Err(); err != nil {
		return nil, fmt.Errorf("iterating time slots: %w", err)
	}

	return b, nil
}


const priorityRuleColumns = `id, name, user_types, capacity_reservation, advance_booking_days,
			skip_waiting_list, priority_slots, max_bookings_per_day,
			max_devotees_per_booking, valid_days, valid_time_slots, active, synced`

// ListPriorityRules retrieves all priority booking rules in creation order.
// Resolution order matters: the first active match wins.
func (r *SQLiteRepository) ListPriorityRules(ctx context.Context) ([]PriorityBookingRule, error) {
	query := `SELECT ` + priorityRuleColumns + ` FROM priority_rules ORDER BY rowid`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying priority rules: %w", err)
	}
	defer rows.Close()

	var rules []PriorityBookingRule
	for rows.Next() {
		p, scanErr := scanPriorityRuleRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning priority rule: %w", scanErr)
		}
		rules = append(rules, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating priority rules: %w", err)
	}
	return rules, nil
}

// CreatePriorityRule inserts a new priority booking rule.
func (r *SQLiteRepository) CreatePriorityRule(ctx context.Context, p *PriorityBookingRule) error {
	args, err := priorityRuleArgs(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO priority_rules (
			id, name, user_types, capacity_reservation, advance_booking_days,
			skip_waiting_list, priority_slots, max_bookings_per_day,
			max_devotees_per_booking, valid_days, valid_time_slots, active, synced
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidPriorityRule, p.ID)
		}
		return fmt.Errorf("inserting priority rule: %w", err)
	}
	return nil
}

// UpdatePriorityRule modifies an existing priority booking rule.
func (r *SQLiteRepository) UpdatePriorityRule(ctx context.Context, p *PriorityBookingRule) error {
	args, err := priorityRuleArgs(p)
	if err != nil {
		return err
	}
	// Shift the id argument to the end for the WHERE clause.
	args = append(args[1:], args[0])

	query := `
		UPDATE priority_rules SET
			name = ?, user_types = ?, capacity_reservation = ?, advance_booking_days = ?,
			skip_waiting_list = ?, priority_slots = ?, max_bookings_per_day = ?,
			max_devotees_per_booking = ?, valid_days = ?, valid_time_slots = ?,
			active = ?, synced = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating priority rule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: priority rule %q", ErrRuleNotFound, p.ID)
	}
	return nil
}

func priorityRuleArgs(p *PriorityBookingRule) ([]any, error) {
	userTypesJSON, err := json.Marshal(p.UserTypes)
	if err != nil {
		return nil, fmt.Errorf("marshalling user types: %w", err)
	}
	prioritySlotsJSON, err := json.Marshal(p.PrioritySlots)
	if err != nil {
		return nil, fmt.Errorf("marshalling priority slots: %w", err)
	}
	validDaysJSON, err := json.Marshal(p.ValidDays)
	if err != nil {
		return nil, fmt.Errorf("marshalling valid days: %w", err)
	}
	validSlotsJSON, err := json.Marshal(p.ValidTimeSlots)
	if err != nil {
		return nil, fmt.Errorf("marshalling valid time slots: %w", err)
	}
	return []any{
		p.ID,
		p.Name,
		string(userTypesJSON),
		p.CapacityReservation,
		p.AdvanceBookingDays,
		boolToInt(p.SkipWaitingList),
		string(prioritySlotsJSON),
		p.MaxBookingsPerDay,
		p.MaxDevoteesPerBook,
		string(validDaysJSON),
		string(validSlotsJSON),
		boolToInt(p.Active),
		boolToInt(p.Synced),
	}, nil
}

func scanPriorityRuleRow(scanner rowScanner) (*PriorityBookingRule, error) {
	var p PriorityBookingRule
	var userTypesJSON, prioritySlotsJSON, validDaysJSON, validSlotsJSON string
	var skipWaiting, active, synced int

	err := scanner.Scan(
		&p.ID,
		&p.Name,
		&userTypesJSON,
		&p.CapacityReservation,
		&p.AdvanceBookingDays,
		&skipWaiting,
		&prioritySlotsJSON,
		&p.MaxBookingsPerDay,
		&p.MaxDevoteesPerBook,
		&validDaysJSON,
		&validSlotsJSON,
		&active,
		&synced,
	)
	if err != nil {
		return nil, err
	}

	p.SkipWaitingList = skipWaiting != 0
	p.Active = active != 0
	p.Synced = synced != 0

	for _, pair := range []struct {
		raw  string
		dest any
	}{
		{userTypesJSON, &p.UserTypes},
		{prioritySlotsJSON, &p.PrioritySlots},
		{validDaysJSON, &p.ValidDays},
		{validSlotsJSON, &p.ValidTimeSlots},
	} {
		if pair.raw == "" || pair.raw == "null" {
			continue
		}
		if jsonErr := json.Unmarshal([]byte(pair.raw), pair.dest); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling priority rule field: %w", jsonErr)
		}
	}
	if p.UserTypes == nil {
		p.UserTypes = []string{}
	}

	return &p, nil
}


// ListWeatherRules retrieves all weather capacity rules.
func (r *SQLiteRepository) ListWeatherRules(ctx context.Context) ([]WeatherCapacityRule, error) {
	query := `SELECT id, condition, capacity_multiplier, affected_zones,
			auto_apply, manual_override_required, synced
		FROM weather_rules ORDER BY rowid`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying weather rules: %w", err)
	}
	defer rows.Close()

	var rules []WeatherCapacityRule
	for rows.Next() {
		var w WeatherCapacityRule
		var conditionJSON, zonesJSON string
		var autoApply, manualRequired, synced int

		if scanErr := rows.Scan(&w.ID, &conditionJSON, &w.CapacityMultiplier,
			&zonesJSON, &autoApply, &manualRequired, &synced); scanErr != nil {
			return nil, fmt.Errorf("scanning weather rule: %w", scanErr)
		}

		w.AutoApply = autoApply != 0
		w.ManualOverrideRequired = manualRequired != 0
		w.Synced = synced != 0
		if jsonErr := json.Unmarshal([]byte(conditionJSON), &w.Condition); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling weather condition: %w", jsonErr)
		}
		if zonesJSON != "" && zonesJSON != "null" {
			if jsonErr := json.Unmarshal([]byte(zonesJSON), &w.AffectedZones); jsonErr != nil {
				return nil, fmt.Errorf("unmarshalling affected zones: %w", jsonErr)
			}
		}

		rules = append(rules, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating weather rules: %w", err)
	}
	return rules, nil
}

// CreateWeatherRule inserts a new weather capacity rule.
func (r *SQLiteRepository) CreateWeatherRule(ctx context.Context, w *WeatherCapacityRule) error {
	conditionJSON, err := json.Marshal(w.Condition)
	if err != nil {
		return fmt.Errorf("marshalling weather condition: %w", err)
	}
	zonesJSON, err := json.Marshal(w.AffectedZones)
	if err != nil {
		return fmt.Errorf("marshalling affected zones: %w", err)
	}

	query := `
		INSERT INTO weather_rules (
			id, condition, capacity_multiplier, affected_zones,
			auto_apply, manual_override_required, synced
		) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		w.ID,
		string(conditionJSON),
		w.CapacityMultiplier,
		string(zonesJSON),
		boolToInt(w.AutoApply),
		boolToInt(w.ManualOverrideRequired),
		boolToInt(w.Synced),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidWeatherRule, w.ID)
		}
		return fmt.Errorf("inserting weather rule: %w", err)
	}
	return nil
}


// CreateEvaluation inserts an evaluation audit record.
func (r *SQLiteRepository) CreateEvaluation(ctx context.Context, eval *Evaluation) error {
	rulesJSON, err := json.Marshal(eval.RulesApplied)
	if err != nil {
		return fmt.Errorf("marshalling applied rules: %w", err)
	}
	overridesJSON, err := json.Marshal(eval.OverridesApplied)
	if err != nil {
		return fmt.Errorf("marshalling applied overrides: %w", err)
	}
	eventRulesJSON, err := json.Marshal(eval.EventRulesApplied)
	if err != nil {
		return fmt.Errorf("marshalling applied event rules: %w", err)
	}

	query := `
		INSERT INTO evaluations (
			id, site_id, timestamp, rules_applied, overrides_applied,
			event_rules_applied, total_capacity, available_capacity,
			utilisation_rate, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		eval.ID,
		r.siteID,
		eval.Timestamp.Format(time.RFC3339),
		string(rulesJSON),
		string(overridesJSON),
		string(eventRulesJSON),
		eval.TotalCapacity,
		eval.AvailableCapacity,
		eval.UtilisationRate,
		eval.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting evaluation: %w", err)
	}
	return nil
}

// ListEvaluations retrieves the most recent evaluation records.
func (r *SQLiteRepository) ListEvaluations(ctx context.Context, limit int) ([]Evaluation, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	query := `
		SELECT id, timestamp, rules_applied, overrides_applied,
			event_rules_applied, total_capacity, available_capacity,
			utilisation_rate, duration_ms
		FROM evaluations
		WHERE site_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, r.siteID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying evaluations: %w", err)
	}
	defer rows.Close()

	return scanEvaluationRows(rows)
}

// ListEvaluationsSince retrieves every evaluation recorded at or after the
// given instant, oldest first, as a time series for analytics consumers.
func (r *SQLiteRepository) ListEvaluationsSince(ctx context.Context, since time.Time) ([]Evaluation, error) {
	query := `
		SELECT id, timestamp, rules_applied, overrides_applied,
			event_rules_applied, total_capacity, available_capacity,
			utilisation_rate, duration_ms
		FROM evaluations
		WHERE site_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query, r.siteID, since.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying evaluations since %s: %w", since.Format(time.RFC3339), err)
	}
	defer rows.Close()

	return scanEvaluationRows(rows)
}

func scanEvaluationRows(rows *sql.Rows) ([]Evaluation, error) {
	var evals []Evaluation
	for rows.Next() {
		var e Evaluation
		var ts, rulesJSON, overridesJSON, eventRulesJSON string

		if scanErr := rows.Scan(&e.ID, &ts, &rulesJSON, &overridesJSON,
			&eventRulesJSON, &e.TotalCapacity, &e.AvailableCapacity,
			&e.UtilisationRate, &e.DurationMS); scanErr != nil {
			return nil, fmt.Errorf("scanning evaluation: %w", scanErr)
		}

		if t, parseErr := time.Parse(time.RFC3339, ts); parseErr == nil {
			e.Timestamp = t
		}
		for _, pair := range []struct {
			raw  string
			dest *[]string
		}{
			{rulesJSON, &e.RulesApplied},
			{overridesJSON, &e.OverridesApplied},
			{eventRulesJSON, &e.EventRulesApplied},
		} {
			if pair.raw == "" || pair.raw == "null" {
				*pair.dest = []string{}
				continue
			}
			if jsonErr := json.Unmarshal([]byte(pair.raw), pair.dest); jsonErr != nil {
				return nil, fmt.Errorf("unmarshalling evaluation field: %w", jsonErr)
			}
		}

		evals = append(evals, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating evaluations: %w", err)
	}
	return evals, nil
}
