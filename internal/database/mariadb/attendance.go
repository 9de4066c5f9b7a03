package mariadb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// errDuplicateEntry is the MySQL/MariaDB error number for a unique key violation.
const errDuplicateEntry = 1062

// AttendanceRepository provides MariaDB-backed attendance storage
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new MariaDB attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Exists checks if a record exists for the identity on the given date
func (r *AttendanceRepository) Exists(ctx context.Context, identityID, date string) (bool, error) {
	var exists bool
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM attendance WHERE identity_id = ? AND date = ?)",
		identityID, date,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendance exists: %w", err)
	}
	return exists, nil
}

// Insert stores the record unless one exists for (identity_id, date).
// A duplicate key error from the unique index means the record already existed.
func (r *AttendanceRepository) Insert(ctx context.Context, rec *database.AttendanceRecord) (bool, error) {
	res, err := r.pool.db.ExecContext(ctx,
		"INSERT INTO attendance (identity_id, display_name, date, time) VALUES (?, ?, ?, ?)",
		rec.IdentityID, rec.DisplayName, rec.Date, rec.Time,
	)
	if isDuplicateEntry(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert attendance: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("read inserted id: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = time.Now()
	return true, nil
}

// ListSince returns all records with date >= fromDate ordered by date, time and id
func (r *AttendanceRepository) ListSince(ctx context.Context, fromDate string) ([]database.AttendanceRecord, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, identity_id, display_name, date, time, created_at
		FROM attendance
		WHERE date >= ?
		ORDER BY date, time, id
	`, fromDate)
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

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errDuplicateEntry
}

// Verify interface compliance
var _ database.AttendanceStore = (*AttendanceRepository)(nil)
