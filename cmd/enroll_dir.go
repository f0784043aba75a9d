package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/classeye/classeye/internal/config"
	"github.com/classeye/classeye/internal/storage"
	"github.com/classeye/classeye/internal/storage/postgres"
	"github.com/classeye/classeye/internal/vision"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollDirCmd = &cobra.Command{
	Use:   "enroll-dir <class-id> <directory>",
	Short: "Enroll a whole class from a directory of portraits",
	Long: `Enroll every portrait in a directory for one class. File names encode
the student: <student-id>_<display name>.jpg, for example
"s-1042_Jana Dvorakova.jpg". PNG portraits work too.

Portraits that fail (no face, several faces, detector errors) are
reported at the end and skipped; the rest of the class still enrolls.

Examples:
  # Enroll the whole class with 4 concurrent detector calls
  classeye enroll-dir math-101 ./portraits/math-101

  # Slow detector, go easy on it
  classeye enroll-dir math-101 ./portraits/math-101 --concurrency 1`,
	Args: cobra.ExactArgs(2),
	RunE: runEnrollDir,
}

func init() {
	rootCmd.AddCommand(enrollDirCmd)

	enrollDirCmd.Flags().Int("concurrency", 4, "Number of parallel detector calls")
}

// portraitFile is one enrollment candidate parsed from a file name.
type portraitFile struct {
	path      string
	studentID string
	name      string
}

// listPortraits scans a directory for <student-id>_<name> image files.
func listPortraits(dir string) ([]portraitFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var portraits []portraitFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
			continue
		}

		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		id, name, ok := strings.Cut(base, "_")
		if !ok || id == "" {
			fmt.Printf("Skipping %s: file name must be <student-id>_<name>%s\n", e.Name(), ext)
			continue
		}
		if name == "" {
			name = id
		}

		portraits = append(portraits, portraitFile{
			path:      filepath.Join(dir, e.Name()),
			studentID: id,
			name:      name,
		})
	}
	return portraits, nil
}

func runEnrollDir(cmd *cobra.Command, args []string) error {
	classID, dir := args[0], args[1]
	concurrency := mustGetInt(cmd, "concurrency")

	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	portraits, err := listPortraits(dir)
	if err != nil {
		return err
	}
	if len(portraits) == 0 {
		return fmt.Errorf("no portraits found in %s", dir)
	}
	fmt.Printf("Found %d portraits for class %s\n\n", len(portraits), classID)

	pool, err := postgres.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	students := postgres.NewStudentRepository(pool)
	detector := vision.NewClient(cfg.Detector.URL, cfg.Recognition.EmbeddingDim, cfg.Detector.Timeout)
	ctx := context.Background()

	bar := progressbar.NewOptions(len(portraits),
		progressbar.OptionSetDescription("Enrolling students"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("portraits"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var mu sync.Mutex
	var enrolled int
	var failures []string

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, p := range portraits {
		wg.Add(1)
		go func(p portraitFile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := enrollPortrait(ctx, detector, students, classID, p)

			mu.Lock()
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(p.path), err))
			} else {
				enrolled++
			}
			mu.Unlock()
			_ = bar.Add(1)
		}(p)
	}

	wg.Wait()
	_ = bar.Finish()

	fmt.Printf("\n\nEnrolled: %d\n", enrolled)
	if len(failures) > 0 {
		fmt.Printf("Failed:   %d\n", len(failures))
		for _, f := range failures {
			fmt.Printf("  %s\n", f)
		}
	}
	return nil
}

// enrollPortrait stores the embedding for one portrait. A student
// already known from the SIS keeps their roll number; the class and
// name follow the directory and file name.
func enrollPortrait(ctx context.Context, detector *vision.Client, students storage.StudentStore, classID string, p portraitFile) error {
	existing, err := students.Get(ctx, p.studentID)
	if err != nil {
		return fmt.Errorf("failed to look up student: %w", err)
	}

	student := storage.Student{ID: p.studentID}
	if existing != nil {
		student = *existing
	}
	student.ClassID = classID
	student.Name = p.name

	face, model, err := embedPortrait(ctx, detector, p.path)
	if err != nil {
		return err
	}

	student.Embedding = face.Embedding
	student.Dim = len(face.Embedding)
	student.Model = model

	if err := students.Upsert(ctx, student); err != nil {
		return fmt.Errorf("failed to store student: %w", err)
	}
	return nil
}
