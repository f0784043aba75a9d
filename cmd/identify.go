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

var identifyCmd = &cobra.Command{
	Use:   "identify <photo>",
	Short: "Identify the faces in a photo against all enrolled students",
	Long: `Detect the faces in a photo and look each one up in the school-wide
face index. Useful for checking what a camera would see, or for
finding out who an unlabeled portrait belongs to.

Examples:
  classeye identify hallway.jpg
  classeye identify hallway.jpg --top 5`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().Int("top", 3, "Number of nearest students to show per face")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	photoPath := args[0]
	top := mustGetInt(cmd, "top")

	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	students := postgres.NewStudentRepository(pool)

	all, err := students.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to load students: %w", err)
	}

	index := storage.NewFaceIndex()
	if err := index.Build(all); err != nil {
		return fmt.Errorf("failed to build face index: %w", err)
	}
	if index.Len() == 0 {
		return errors.New("no enrolled students to match against")
	}
	fmt.Printf("Face index ready with %d students\n", index.Len())

	data, err := os.ReadFile(photoPath)
	if err != nil {
		return fmt.Errorf("failed to read photo: %w", err)
	}
	resized, err := vision.FitWithin(data, enrollMaxSize, enrollQuality)
	if err != nil {
		return fmt.Errorf("failed to prepare photo: %w", err)
	}

	detector := vision.NewClient(cfg.Detector.URL, cfg.Recognition.EmbeddingDim, cfg.Detector.Timeout)
	faces, err := detector.Detect(ctx, resized)
	if err != nil {
		return fmt.Errorf("face detection failed: %w", err)
	}
	if len(faces) == 0 {
		fmt.Println("No faces found")
		return nil
	}

	fmt.Printf("Found %d face(s)\n", len(faces))
	for i, face := range faces {
		fmt.Printf("\nFace %d (score %.2f):\n", i+1, face.Score)

		matches, err := index.Search(face.Embedding, top)
		if err != nil {
			return fmt.Errorf("index search failed: %w", err)
		}
		for _, m := range matches {
			marker := " "
			if m.Distance <= cfg.Recognition.Tolerance {
				marker = "*"
			}
			fmt.Printf("  %s %-24s %-12s distance %.3f\n", marker, m.Student.Name, m.Student.ID, m.Distance)
		}
	}

	fmt.Println("\n* = within matching tolerance")
	return nil
}
