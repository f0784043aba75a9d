package cmd

import (
	"errors"
	"fmt"

	"github.com/classeye/classeye/internal/config"
	"github.com/classeye/classeye/internal/storage"
	"github.com/classeye/classeye/internal/storage/postgres"
	"github.com/classeye/classeye/internal/storage/sis"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var rosterImportCmd = &cobra.Command{
	Use:   "import [class-id]",
	Short: "Import students from the school information system",
	Long: `Copy classes and student profiles from the school information system
into the attendance database. With a class ID only that class is
imported, without one the whole school is.

Profiles only; stored face embeddings are never touched, so importing
is always safe to repeat.

Examples:
  # Import one class
  classeye roster import math-101

  # Import every class
  classeye roster import`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRosterImport,
}

func init() {
	rosterCmd.AddCommand(rosterImportCmd)
}

func runRosterImport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.SIS.DSN == "" {
		return errors.New("SIS_DSN environment variable is required")
	}

	pool, err := postgres.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	fmt.Println("Connecting to the school information system...")
	sisPool, err := sis.NewPool(cfg.SIS.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to SIS: %w", err)
	}
	defer sisPool.Close()

	ctx := cmd.Context()
	var enrollments []sis.Student
	if len(args) == 1 {
		enrollments, err = sisPool.StudentsByClass(ctx, args[0])
	} else {
		enrollments, err = sisPool.Students(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to read enrollments: %w", err)
	}
	if len(enrollments) == 0 {
		if len(args) == 1 {
			return fmt.Errorf("class %s has no active enrollments", args[0])
		}
		fmt.Println("No active enrollments found.")
		return nil
	}

	fmt.Printf("Found %d enrollments to import\n\n", len(enrollments))

	bar := progressbar.NewOptions(len(enrollments),
		progressbar.OptionSetDescription("Importing students"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("students"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	students := postgres.NewStudentRepository(pool)
	classes := postgres.NewClassRepository(pool)

	var imported, classCount int
	var failures []string
	seenClasses := make(map[string]bool)
	for _, e := range enrollments {
		if !seenClasses[e.ClassCode] {
			seenClasses[e.ClassCode] = true
			err := classes.Upsert(ctx, storage.Class{ID: e.ClassCode, Name: e.ClassName})
			if err != nil {
				failures = append(failures, fmt.Sprintf("class %s: %v", e.ClassCode, err))
			} else {
				classCount++
			}
		}

		// UpsertProfile keeps any stored embedding intact.
		err := students.UpsertProfile(ctx, storage.Student{
			ID:      e.ID,
			ClassID: e.ClassCode,
			Name:    e.FullName,
			RollNo:  e.RollNo,
		})
		if err != nil {
			failures = append(failures, fmt.Sprintf("student %s: %v", e.ID, err))
		} else {
			imported++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Printf("\n\nImported %d students across %d classes\n", imported, classCount)
	if len(failures) > 0 {
		fmt.Printf("Failed:   %d\n", len(failures))
		for _, f := range failures {
			fmt.Printf("  %s\n", f)
		}
	}
	return nil
}
