package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Exists checks if a record exists for the identity on the given date
func (r *AttendanceRepository) Exists(ctx context.Context, identityID, date string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM attendance WHERE identity_id = $1 AND date = $2)",
		identityID, date,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendance exists: %w", err)
	}
	return exists, nil
}

// Insert stores the record unless one exists for (identity_id, date).
// The unique constraint makes the check and the write a single statement.
func (r *AttendanceRepository) Insert(ctx context.Context, rec *database.AttendanceRecord) (bool, error) {
	query := `
		INSERT INTO attendance (identity_id, display_name, date, time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity_id, date) DO NOTHING
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query, rec.IdentityID, rec.DisplayName, rec.Date, rec.Time).
		Scan(&rec.ID, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert attendance: %w", err)
	}
	return true, nil
}

// ListSince returns all records with date >= fromDate ordered by date, time and id
func (r *AttendanceRepository) ListSince(ctx context.Context, fromDate string) ([]database.AttendanceRecord, error) {
	query := `
		SELECT id, identity_id, display_name, date, time, created_at
		FROM attendance
		WHERE date >= $1
		ORDER BY date, time, id
	`

	rows, err := r.pool.Query(ctx, query, fromDate)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.IdentityID, &rec.DisplayName, &rec.Date, &rec.Time, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}

// Verify interface compliance
var _ database.AttendanceStore = (*AttendanceRepository)(nil)
