package capacity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// overrideColumns is the SELECT column list for override queries.
const overrideColumns = `id, type, description, target, new_value, reason,
			valid_from, valid_to, authorized_by, authorized_at,
			requires_approval, approved_by, approved_at, synced`

// GetOverride retrieves an override by its unique identifier.
func (r *SQLiteRepository) GetOverride(ctx context.Context, id string) (*Override, error) {
	query := `SELECT ` + overrideColumns + ` FROM capacity_overrides WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	o, err := scanOverrideRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOverrideNotFound
		}
		return nil, fmt.Errorf("querying override by id: %w", err)
	}
	return o, nil
}

// ListOverrides retrieves all overrides ordered by authorisation time.
func (r *SQLiteRepository) ListOverrides(ctx context.Context) ([]Override, error) {
	query := `SELECT ` + overrideColumns + ` FROM capacity_overrides ORDER BY authorized_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying overrides: %w", err)
	}
	defer rows.Close()

	var overrides []Override
	for rows.Next() {
		o, scanErr := scanOverrideRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning override: %w", scanErr)
		}
		overrides = append(overrides, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating overrides: %w", err)
	}
	return overrides, nil
}

// CreateOverride inserts a new override.
func (r *SQLiteRepository) CreateOverride(ctx context.Context, o *Override) error {
	query := `
		INSERT INTO capacity_overrides (
			id, type, description, target, new_value, reason,
			valid_from, valid_to, authorized_by, authorized_at,
			requires_approval, approved_by, approved_at, synced
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		o.ID,
		string(o.Type),
		nullableString(o.Description),
		nullableString(o.Target),
		o.NewValue,
		o.Reason,
		o.ValidFrom.Format(time.RFC3339),
		nullableTime(o.ValidTo),
		o.AuthorizedBy,
		o.AuthorizedAt.Format(time.RFC3339),
		boolToInt(o.RequiresApproval),
		nullableString(o.ApprovedBy),
		nullableTime(o.ApprovedAt),
		boolToInt(o.Synced),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrOverrideExists
		}
		return fmt.Errorf("inserting override: %w", err)
	}
	return nil
}

// UpdateOverride modifies an existing override (approval, window changes).
func (r *SQLiteRepository) UpdateOverride(ctx context.Context, o *Override) error {
	query := `
		UPDATE capacity_overrides SET
			type = ?, description = ?, target = ?, new_value = ?, reason = ?,
			valid_from = ?, valid_to = ?, authorized_by = ?, authorized_at = ?,
			requires_approval = ?, approved_by = ?, approved_at = ?, synced = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(o.Type),
		nullableString(o.Description),
		nullableString(o.Target),
		o.NewValue,
		o.Reason,
		o.ValidFrom.Format(time.RFC3339),
		nullableTime(o.ValidTo),
		o.AuthorizedBy,
		o.AuthorizedAt.Format(time.RFC3339),
		boolToInt(o.RequiresApproval),
		nullableString(o.ApprovedBy),
		nullableTime(o.ApprovedAt),
		boolToInt(o.Synced),
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("updating override: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOverrideNotFound
	}
	return nil
}

// DeleteOverride removes an override by ID.
func (r *SQLiteRepository) DeleteOverride(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM capacity_overrides WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting override: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOverrideNotFound
	}
	return nil
}

func scanOverrideRow(scanner rowScanner) (*Override, error) {
	var o Override
	var typ string
	var description, target, validTo, approvedBy, approvedAt sql.NullString
	var validFrom, authorizedAt string
	var requiresApproval, synced int

	err := scanner.Scan(
		&o.ID,
		&typ,
		&description,
		&target,
		&o.NewValue,
		&o.Reason,
		&validFrom,
		&validTo,
		&o.AuthorizedBy,
		&authorizedAt,
		&requiresApproval,
		&approvedBy,
		&approvedAt,
		&synced,
	)
	if err != nil {
		return nil, err
	}

	o.Type = OverrideType(typ)
	if description.Valid {
		o.Description = &description.String
	}
	if target.Valid {
		o.Target = &target.String
	}
	o.RequiresApproval = requiresApproval != 0
	o.Synced = synced != 0
	if approvedBy.Valid {
		o.ApprovedBy = &approvedBy.String
	}
	o.ApprovedAt = parseNullableTime(approvedAt)
	o.ValidTo = parseNullableTime(validTo)

	if t, parseErr := time.Parse(time.RFC3339, validFrom); parseErr == nil {
		o.ValidFrom = t
	}
	if t, parseErr := time.Parse(time.RFC3339, authorizedAt); parseErr == nil {
		o.AuthorizedAt = t
	}

	return &o, nil
}
