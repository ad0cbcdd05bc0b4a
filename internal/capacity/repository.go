package capacity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for capacity persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Rule CRUD
	GetRule(ctx context.Context, id string) (*CapacityRule, error)
	ListRules(ctx context.Context) ([]CapacityRule, error)
	CreateRule(ctx context.Context, rule *CapacityRule) error
	UpdateRule(ctx context.Context, rule *CapacityRule) error
	DeleteRule(ctx context.Context, id string) error

	// Override CRUD
	GetOverride(ctx context.Context, id string) (*Override, error)
	ListOverrides(ctx context.Context) ([]Override, error)
	CreateOverride(ctx context.Context, o *Override) error
	UpdateOverride(ctx context.Context, o *Override) error
	DeleteOverride(ctx context.Context, id string) error

	// Special events
	GetEvent(ctx context.Context, id string) (*SpecialEvent, error)
	ListEvents(ctx context.Context) ([]SpecialEvent, error)
	CreateEvent(ctx context.Context, e *SpecialEvent) error
	UpdateEvent(ctx context.Context, e *SpecialEvent) error

	// Priority booking rules
	ListPriorityRules(ctx context.Context) ([]PriorityBookingRule, error)
	CreatePriorityRule(ctx context.Context, p *PriorityBookingRule) error
	UpdatePriorityRule(ctx context.Context, p *PriorityBookingRule) error

	// Weather rules
	ListWeatherRules(ctx context.Context) ([]WeatherCapacityRule, error)
	CreateWeatherRule(ctx context.Context, w *WeatherCapacityRule) error

	// Baseline (zone and slot definitions)
	LoadBaseline(ctx context.Context) (*Baseline, error)

	// Evaluation logging
	CreateEvaluation(ctx context.Context, eval *Evaluation) error
	ListEvaluations(ctx context.Context, limit int) ([]Evaluation, error)
	ListEvaluationsSince(ctx context.Context, since time.Time) ([]Evaluation, error)
}

// ruleColumns is the SELECT column list for rule queries.
const ruleColumns = `id, name, description, priority, active, conditions, effects,
			valid_from, valid_to, created_by, created_at, last_modified, version, synced`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db     *sql.DB
	siteID string
}

// NewSQLiteRepository creates a new SQLite-backed repository scoped to one
// site.
func NewSQLiteRepository(db *sql.DB, siteID string) *SQLiteRepository {
	return &SQLiteRepository{db: db, siteID: siteID}
}

// GetRule retrieves a rule by its unique identifier.
func (r *SQLiteRepository) GetRule(ctx context.Context, id string) (*CapacityRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM capacity_rules WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	rule, err := scanRuleRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("querying rule by id: %w", err)
	}
	return rule, nil
}

// ListRules retrieves all rules ordered by priority (highest first) then
// creation time, matching the fold order.
func (r *SQLiteRepository) ListRules(ctx context.Context) ([]CapacityRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM capacity_rules ORDER BY priority DESC, created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var rules []CapacityRule
	for rows.Next() {
		rule, scanErr := scanRuleRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning rule: %w", scanErr)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}
	return rules, nil
}

// CreateRule inserts a new rule.
func (r *SQLiteRepository) CreateRule(ctx context.Context, rule *CapacityRule) error {
	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("marshalling conditions: %w", err)
	}
	effectsJSON, err := json.Marshal(rule.Effects)
	if err != nil {
		return fmt.Errorf("marshalling effects: %w", err)
	}

	query := `
		INSERT INTO capacity_rules (
			id, name, description, priority, active, conditions, effects,
			valid_from, valid_to, created_by, created_at, last_modified, version, synced
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		nullableString(rule.Description),
		rule.Priority,
		boolToInt(rule.Active),
		string(conditionsJSON),
		string(effectsJSON),
		rule.ValidFrom.Format(time.RFC3339),
		nullableTime(rule.ValidTo),
		rule.CreatedBy,
		rule.CreatedAt.Format(time.RFC3339),
		rule.LastModified.Format(time.RFC3339),
		rule.Version,
		boolToInt(rule.Synced),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrRuleExists
		}
		return fmt.Errorf("inserting rule: %w", err)
	}
	return nil
}

// UpdateRule modifies an existing rule.
func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule *CapacityRule) error {
	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("marshalling conditions: %w", err)
	}
	effectsJSON, err := json.Marshal(rule.Effects)
	if err != nil {
		return fmt.Errorf("marshalling effects: %w", err)
	}

	query := `
		UPDATE capacity_rules SET
			name = ?, description = ?, priority = ?, active = ?,
			conditions = ?, effects = ?, valid_from = ?, valid_to = ?,
			last_modified = ?, version = ?, synced = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		rule.Name,
		nullableString(rule.Description),
		rule.Priority,
		boolToInt(rule.Active),
		string(conditionsJSON),
		string(effectsJSON),
		rule.ValidFrom.Format(time.RFC3339),
		nullableTime(rule.ValidTo),
		rule.LastModified.Format(time.RFC3339),
		rule.Version,
		boolToInt(rule.Synced),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// DeleteRule removes a rule by ID.
func (r *SQLiteRepository) DeleteRule(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM capacity_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}


// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRuleRow(scanner rowScanner) (*CapacityRule, error) {
	var rule CapacityRule
	var description, validTo sql.NullString
	var conditionsJSON, effectsJSON string
	var active, synced int
	var validFrom, createdAt, lastModified string

	err := scanner.Scan(
		&rule.ID,
		&rule.Name,
		&description,
		&rule.Priority,
		&active,
		&conditionsJSON,
		&effectsJSON,
		&validFrom,
		&validTo,
		&rule.CreatedBy,
		&createdAt,
		&lastModified,
		&rule.Version,
		&synced,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		rule.Description = &description.String
	}
	rule.Active = active != 0
	rule.Synced = synced != 0

	// Timestamps are stored as RFC3339 text.
	if t, parseErr := time.Parse(time.RFC3339, validFrom); parseErr == nil {
		rule.ValidFrom = t
	}
	if validTo.Valid {
		if t, parseErr := time.Parse(time.RFC3339, validTo.String); parseErr == nil {
			rule.ValidTo = &t
		}
	}
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		rule.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, lastModified); parseErr == nil {
		rule.LastModified = t
	}

	if conditionsJSON != "" && conditionsJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(conditionsJSON), &rule.Conditions); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling conditions: %w", jsonErr)
		}
	}
	if rule.Conditions == nil {
		rule.Conditions = []Condition{}
	}
	if effectsJSON != "" && effectsJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(effectsJSON), &rule.Effects); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling effects: %w", jsonErr)
		}
	}
	if rule.Effects == nil {
		rule.Effects = []Effect{}
	}

	return &rule, nil
}


func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
