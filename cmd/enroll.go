package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/classeye/classeye/internal/config"
	"github.com/classeye/classeye/internal/storage"
	"github.com/classeye/classeye/internal/storage/postgres"
	"github.com/classeye/classeye/internal/vision"
	"github.com/spf13/cobra"
)

// Portraits are bounded before hitting the detector; phone photos
// routinely exceed what it needs.
const (
	enrollMaxSize = 1600
	enrollQuality = 90
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <student-id> <photo>",
	Short: "Enroll a student from a portrait photo",
	Long: `Compute a face embedding from a portrait photo and store it for the
student. The photo must contain exactly one face.

Students imported from the school information system keep their name,
class and roll number; enrollment only attaches the embedding. For new
students pass --class and --name.

Examples:
  # Attach a face to a student synced from the SIS
  classeye enroll s-1042 portraits/jana.jpg

  # Enroll a brand new student
  classeye enroll s-9001 portraits/petr.jpg --class math-101 --name "Petr Novak" --roll 12`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("class", "", "Class the student belongs to")
	enrollCmd.Flags().String("name", "", "Student display name")
	enrollCmd.Flags().String("roll", "", "Roll number within the class")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	studentID, photoPath := args[0], args[1]

	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	students := postgres.NewStudentRepository(pool)
	ctx := context.Background()

	existing, err := students.Get(ctx, studentID)
	if err != nil {
		return fmt.Errorf("failed to look up student: %w", err)
	}

	student := storage.Student{ID: studentID}
	if existing != nil {
		student = *existing
	}
	if v := mustGetString(cmd, "class"); v != "" {
		student.ClassID = v
	}
	if v := mustGetString(cmd, "name"); v != "" {
		student.Name = v
	}
	if v := mustGetString(cmd, "roll"); v != "" {
		student.RollNo = v
	}
	if student.ClassID == "" {
		return fmt.Errorf("student %s is not in the database, pass --class to create them", studentID)
	}
	if student.Name == "" {
		student.Name = studentID
	}

	detector := vision.NewClient(cfg.Detector.URL, cfg.Recognition.EmbeddingDim, cfg.Detector.Timeout)
	face, model, err := embedPortrait(ctx, detector, photoPath)
	if err != nil {
		return err
	}

	student.Embedding = face.Embedding
	student.Dim = len(face.Embedding)
	student.Model = model

	warnNearDuplicate(ctx, students, student.ID, face.Embedding, cfg.Recognition.Tolerance)

	if err := students.Upsert(ctx, student); err != nil {
		return fmt.Errorf("failed to store student: %w", err)
	}

	fmt.Printf("Enrolled %s (%s), detection score %.2f\n", student.Name, student.ID, face.Score)
	return nil
}

// warnNearDuplicate flags a new embedding that sits inside the
// matching tolerance of another student. Two students this close will
// confuse the attendance matcher, usually because the same person was
// enrolled under two IDs or two photos got swapped. Best effort, the
// enrollment itself proceeds either way.
func warnNearDuplicate(ctx context.Context, students storage.StudentReader, studentID string, embedding []float32, tolerance float64) {
	all, err := students.All(ctx)
	if err != nil {
		return
	}

	index := storage.NewFaceIndex()
	if err := index.Build(all); err != nil {
		return
	}

	// k=2 because the student's own previous embedding may be the
	// nearest hit when re-enrolling.
	matches, err := index.Search(embedding, 2)
	if err != nil {
		return
	}
	for _, m := range matches {
		if m.Student.ID == studentID {
			continue
		}
		if m.Distance <= tolerance {
			fmt.Printf("Warning: this face is within matching tolerance of %s (%s), distance %.3f\n",
				m.Student.Name, m.Student.ID, m.Distance)
		}
		return
	}
}

// embedPortrait reads a portrait, bounds its size and returns the
// single face found in it together with the detector's model tag.
func embedPortrait(ctx context.Context, detector *vision.Client, path string) (vision.Face, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return vision.Face{}, "", fmt.Errorf("failed to read photo: %w", err)
	}

	resized, err := vision.FitWithin(data, enrollMaxSize, enrollQuality)
	if err != nil {
		return vision.Face{}, "", fmt.Errorf("failed to prepare photo: %w", err)
	}

	faces, model, err := detector.DetectWithModel(ctx, resized)
	if err != nil {
		return vision.Face{}, "", fmt.Errorf("face detection failed: %w", err)
	}
	if len(faces) == 0 {
		return vision.Face{}, "", errors.New("no face found in the photo")
	}
	if len(faces) > 1 {
		return vision.Face{}, "", fmt.Errorf("found %d faces, enrollment needs exactly one", len(faces))
	}
	return faces[0], model, nil
}
