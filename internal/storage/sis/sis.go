// Package sis reads student rosters from the school information
// system, a MySQL database this service never writes to. Rows come
// from the sis_enrollments view: one row per active student with
// their class code and roll number.
package sis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Pool manages a read-only MySQL connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new SIS connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("SIS DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SIS database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SIS database: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing SIS connection: %w", err)
		}
	}
	return nil
}

// Student is one enrollment row from the school information system.
type Student struct {
	ID        string
	ClassCode string
	ClassName string
	FullName  string
	RollNo    string
}

// Students returns every active enrollment, ordered by class and
// student ID.
func (p *Pool) Students(ctx context.Context) ([]Student, error) {
	query := `
		SELECT student_id, class_code, class_name, full_name, roll_no
		FROM sis_enrollments
		WHERE active = 1
		ORDER BY class_code, student_id
	`
	return p.queryStudents(ctx, query)
}

// StudentsByClass returns the active enrollments of one class,
// ordered by student ID.
func (p *Pool) StudentsByClass(ctx context.Context, classCode string) ([]Student, error) {
	query := `
		SELECT student_id, class_code, class_name, full_name, roll_no
		FROM sis_enrollments
		WHERE active = 1 AND class_code = ?
		ORDER BY student_id
	`
	return p.queryStudents(ctx, query, classCode)
}

func (p *Pool) queryStudents(ctx context.Context, query string, args ...any) ([]Student, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.ClassCode, &s.ClassName, &s.FullName, &s.RollNo); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return students, nil
}

// Class is a teaching group as the school information system knows it.
type Class struct {
	Code string
	Name string
}

// Classes returns the distinct classes with at least one active
// enrollment.
func (p *Pool) Classes(ctx context.Context) ([]Class, error) {
	query := `
		SELECT DISTINCT class_code, class_name
		FROM sis_enrollments
		WHERE active = 1
		ORDER BY class_code
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	defer rows.Close()

	var classes []Class
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.Code, &c.Name); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classes: %w", err)
	}
	return classes, nil
}
