package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/classeye/classeye/internal/storage"
)

// StudentRepository provides PostgreSQL-backed student storage.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

var _ storage.StudentStore = (*StudentRepository)(nil)

const studentColumns = "id, class_id, name, roll_no, embedding, dim, model, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (*storage.Student, error) {
	var s storage.Student
	var emb sql.NullString
	err := row.Scan(&s.ID, &s.ClassID, &s.Name, &s.RollNo, &emb, &s.Dim, &s.Model, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if emb.Valid && emb.String != "" {
		var vec pgvector.Vector
		if err := vec.Scan(emb.String); err != nil {
			return nil, fmt.Errorf("parse embedding: %w", err)
		}
		s.Embedding = vec.Slice()
	}
	return &s, nil
}

// Get retrieves a student by ID, returns nil if not found.
func (r *StudentRepository) Get(ctx context.Context, id string) (*storage.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)

	s, err := scanStudent(r.pool.QueryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return s, nil
}

// ListByClass returns every student of a class ordered by ID.
func (r *StudentRepository) ListByClass(ctx context.Context, classID string) ([]storage.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE class_id = $1 ORDER BY id", studentColumns)

	rows, err := r.pool.Query(ctx, query, classID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	return collectStudents(rows)
}

// All returns every student across classes ordered by class and ID.
func (r *StudentRepository) All(ctx context.Context) ([]storage.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students ORDER BY class_id, id", studentColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	return collectStudents(rows)
}

func collectStudents(rows *sql.Rows) ([]storage.Student, error) {
	var students []storage.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// Count returns the total number of students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM students").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// Upsert inserts or fully replaces a student, embedding included.
func (r *StudentRepository) Upsert(ctx context.Context, s storage.Student) error {
	query := `
		INSERT INTO students (id, class_id, name, roll_no, embedding, dim, model, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE SET
			class_id = EXCLUDED.class_id,
			name = EXCLUDED.name,
			roll_no = EXCLUDED.roll_no,
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			model = EXCLUDED.model,
			updated_at = NOW()
	`

	var emb any
	if s.HasEmbedding() {
		emb = pgvector.NewVector(s.Embedding)
	}
	if _, err := r.pool.Exec(ctx, query, s.ID, s.ClassID, s.Name, s.RollNo, emb, s.Dim, s.Model); err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

// UpsertProfile inserts or updates identity fields without touching a
// stored embedding.
func (r *StudentRepository) UpsertProfile(ctx context.Context, s storage.Student) error {
	query := `
		INSERT INTO students (id, class_id, name, roll_no, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			class_id = EXCLUDED.class_id,
			name = EXCLUDED.name,
			roll_no = EXCLUDED.roll_no,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, s.ID, s.ClassID, s.Name, s.RollNo); err != nil {
		return fmt.Errorf("upsert student profile: %w", err)
	}
	return nil
}

// Delete removes a student.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM students WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}
