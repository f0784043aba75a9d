package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/classeye/classeye/internal/storage"
)

// ClassRepository provides PostgreSQL-backed class storage.
type ClassRepository struct {
	pool *Pool
}

// NewClassRepository creates a new PostgreSQL class repository.
func NewClassRepository(pool *Pool) *ClassRepository {
	return &ClassRepository{pool: pool}
}

var _ storage.ClassStore = (*ClassRepository)(nil)

// Get retrieves a class by ID, returns nil if not found.
func (r *ClassRepository) Get(ctx context.Context, id string) (*storage.Class, error) {
	query := "SELECT id, name, room, teacher, schedule, created_at FROM classes WHERE id = $1"

	var c storage.Class
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Room, &c.Teacher, &c.Schedule, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	return &c, nil
}

// List returns every class ordered by ID.
func (r *ClassRepository) List(ctx context.Context) ([]storage.Class, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, name, room, teacher, schedule, created_at FROM classes ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	var classes []storage.Class
	for rows.Next() {
		var c storage.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.Room, &c.Teacher, &c.Schedule, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classes: %w", err)
	}
	return classes, nil
}

// Upsert inserts or updates a class.
func (r *ClassRepository) Upsert(ctx context.Context, c storage.Class) error {
	query := `
		INSERT INTO classes (id, name, room, teacher, schedule)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			room = EXCLUDED.room,
			teacher = EXCLUDED.teacher,
			schedule = EXCLUDED.schedule
	`

	if _, err := r.pool.Exec(ctx, query, c.ID, c.Name, c.Room, c.Teacher, c.Schedule); err != nil {
		return fmt.Errorf("upsert class: %w", err)
	}
	return nil
}
