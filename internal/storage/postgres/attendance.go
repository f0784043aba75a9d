package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/classeye/classeye/internal/attendance"
	"github.com/classeye/classeye/internal/storage"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage.
// It doubles as the pipeline's attendance sink.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

var (
	_ storage.AttendanceStore = (*AttendanceRepository)(nil)
	_ attendance.Sink         = (*AttendanceRepository)(nil)
)

// Record upserts one attendance record. A manual record always wins;
// an automatic record never overwrites a manual override.
func (r *AttendanceRepository) Record(ctx context.Context, rec attendance.Record) error {
	query := `
		INSERT INTO attendance (class_id, date, student_id, name, time_marked, status, confidence, source, reason, marked_by)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (class_id, date, student_id) DO UPDATE SET
			name = EXCLUDED.name,
			time_marked = EXCLUDED.time_marked,
			status = EXCLUDED.status,
			confidence = EXCLUDED.confidence,
			source = EXCLUDED.source,
			reason = EXCLUDED.reason,
			marked_by = EXCLUDED.marked_by
		WHERE EXCLUDED.source = 'manual' OR attendance.source = 'automatic'
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ClassID, rec.Date, rec.StudentID, rec.Name, rec.Time,
		rec.Status, rec.Confidence, rec.Source, rec.Reason, rec.MarkedBy)
	if err != nil {
		return fmt.Errorf("record attendance: %w", err)
	}
	return nil
}

// Delete removes the record of one student for one class and date.
func (r *AttendanceRepository) Delete(ctx context.Context, classID, date, studentID string) error {
	query := "DELETE FROM attendance WHERE class_id = $1 AND date = $2::date AND student_id = $3"
	if _, err := r.pool.Exec(ctx, query, classID, date, studentID); err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return nil
}

const attendanceColumns = "class_id, date, student_id, name, time_marked, status, confidence, source, reason, marked_by"

func scanRecord(rows *sql.Rows) (attendance.Record, error) {
	var rec attendance.Record
	var date time.Time
	err := rows.Scan(&rec.ClassID, &date, &rec.StudentID, &rec.Name, &rec.Time,
		&rec.Status, &rec.Confidence, &rec.Source, &rec.Reason, &rec.MarkedBy)
	if err != nil {
		return rec, err
	}
	rec.Date = date.Format(attendance.DateFormat)
	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]attendance.Record, error) {
	var records []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}

// ListByClassDate returns the records of one class on one date,
// ordered by marking time.
func (r *AttendanceRepository) ListByClassDate(ctx context.Context, classID, date string) ([]attendance.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM attendance
		WHERE class_id = $1 AND date = $2::date
		ORDER BY time_marked, student_id
	`, attendanceColumns)

	rows, err := r.pool.Query(ctx, query, classID, date)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Range returns the records of one class between two dates inclusive.
func (r *AttendanceRepository) Range(ctx context.Context, classID, from, to string) ([]attendance.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM attendance
		WHERE class_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date, time_marked, student_id
	`, attendanceColumns)

	rows, err := r.pool.Query(ctx, query, classID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list attendance range: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// CountPresent returns how many students are marked present for a
// class on a date.
func (r *AttendanceRepository) CountPresent(ctx context.Context, classID, date string) (int, error) {
	query := `
		SELECT COUNT(*) FROM attendance
		WHERE class_id = $1 AND date = $2::date AND status = $3
	`

	var count int
	err := r.pool.QueryRow(ctx, query, classID, date, attendance.StatusPresent).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count present: %w", err)
	}
	return count, nil
}
