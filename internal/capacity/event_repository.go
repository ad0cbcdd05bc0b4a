package capacity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// eventColumns is the SELECT column list for special event queries.
const eventColumns = `id, name, description, type, start_date, end_date,
			start_time, end_time, capacity_rules, priority,
			conflict_resolution, announcements, status, created_by, created_at, synced`

// GetEvent retrieves a special event by its unique identifier.
func (r *SQLiteRepository) GetEvent(ctx context.Context, id string) (*SpecialEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM special_events WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	e, err := scanEventRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("querying event by id: %w", err)
	}
	return e, nil
}

// ListEvents retrieves all special events ordered by start date.
func (r *SQLiteRepository) ListEvents(ctx context.Context) ([]SpecialEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM special_events ORDER BY start_date`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []SpecialEvent
	for rows.Next() {
		e, scanErr := scanEventRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning event: %w", scanErr)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// CreateEvent inserts a new special event. Automatic rules are persisted
// separately as real rules; only their ids travel with the event.
func (r *SQLiteRepository) CreateEvent(ctx context.Context, e *SpecialEvent) error {
	ruleIDsJSON, err := json.Marshal(e.CapacityRules)
	if err != nil {
		return fmt.Errorf("marshalling rule ids: %w", err)
	}
	announcementsJSON, err := json.Marshal(e.Announcements)
	if err != nil {
		return fmt.Errorf("marshalling announcements: %w", err)
	}

	query := `
		INSERT INTO special_events (
			id, name, description, type, start_date, end_date,
			start_time, end_time, capacity_rules, priority,
			conflict_resolution, announcements, status, created_by, created_at, synced
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		e.ID,
		e.Name,
		nullableString(e.Description),
		string(e.Type),
		e.StartDate.Format(time.RFC3339),
		e.EndDate.Format(time.RFC3339),
		nullableString(e.StartTime),
		nullableString(e.EndTime),
		string(ruleIDsJSON),
		e.Priority,
		emptyAsNull(e.ConflictResolution),
		string(announcementsJSON),
		string(e.Status),
		e.CreatedBy,
		e.CreatedAt.Format(time.RFC3339),
		boolToInt(e.Synced),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEventExists
		}
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// UpdateEvent modifies an existing special event.
func (r *SQLiteRepository) UpdateEvent(ctx context.Context, e *SpecialEvent) error {
	ruleIDsJSON, err := json.Marshal(e.CapacityRules)
	if err != nil {
		return fmt.Errorf("marshalling rule ids: %w", err)
	}
	announcementsJSON, err := json.Marshal(e.Announcements)
	if err != nil {
		return fmt.Errorf("marshalling announcements: %w", err)
	}

	query := `
		UPDATE special_events SET
			name = ?, description = ?, type = ?, start_date = ?, end_date = ?,
			start_time = ?, end_time = ?, capacity_rules = ?, priority = ?,
			conflict_resolution = ?, announcements = ?, status = ?, synced = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		e.Name,
		nullableString(e.Description),
		string(e.Type),
		e.StartDate.Format(time.RFC3339),
		e.EndDate.Format(time.RFC3339),
		nullableString(e.StartTime),
		nullableString(e.EndTime),
		string(ruleIDsJSON),
		e.Priority,
		emptyAsNull(e.ConflictResolution),
		string(announcementsJSON),
		string(e.Status),
		boolToInt(e.Synced),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

func scanEventRow(scanner rowScanner) (*SpecialEvent, error) {
	var e SpecialEvent
	var typ, status string
	var description, startTime, endTime, conflictResolution sql.NullString
	var startDate, endDate, createdAt string
	var ruleIDsJSON, announcementsJSON string
	var synced int

	err := scanner.Scan(
		&e.ID,
		&e.Name,
		&description,
		&typ,
		&startDate,
		&endDate,
		&startTime,
		&endTime,
		&ruleIDsJSON,
		&e.Priority,
		&conflictResolution,
		&announcementsJSON,
		&status,
		&e.CreatedBy,
		&createdAt,
		&synced,
	)
	if err != nil {
		return nil, err
	}

	e.Type = EventType(typ)
	e.Status = EventStatus(status)
	e.Synced = synced != 0
	if description.Valid {
		e.Description = &description.String
	}
	if startTime.Valid {
		e.StartTime = &startTime.String
	}
	if endTime.Valid {
		e.EndTime = &endTime.String
	}
	if conflictResolution.Valid {
		e.ConflictResolution = conflictResolution.String
	}

	if t, parseErr := time.Parse(time.RFC3339, startDate); parseErr == nil {
		e.StartDate = t
	}
	if t, parseErr := time.Parse(time.RFC3339, endDate); parseErr == nil {
		e.EndDate = t
	}
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		e.CreatedAt = t
	}

	if ruleIDsJSON != "" && ruleIDsJSON != "null" {
		if jsonErr := json.Unmarshal([]byte(ruleIDsJSON), &e.CapacityRules); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling rule ids: %w", jsonErr)
		}
	}
	if e.CapacityRules == nil {
		e.CapacityRules = []string{}
	}
	if announcementsJSON != "" && announcementsJSON != "null" {
		if jsonErr := json.Unmarshal([]byte(announcementsJSON), &e.Announcements); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling announcements: %w", jsonErr)
		}
	}

	return &e, nil
}

func emptyAsNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
