package cmd

import (
	"errors"
	"fmt"

	"github.com/classeye/classeye/internal/config"
	"github.com/classeye/classeye/internal/storage/postgres"
	"github.com/spf13/cobra"
)

var rosterListCmd = &cobra.Command{
	Use:   "list <class-id>",
	Short: "Print the roster of one class",
	Long: `Print the students of one class as the attendance database knows
them, with a marker for students whose face is enrolled.`,
	Args: cobra.ExactArgs(1),
	RunE: runRosterList,
}

func init() {
	rosterCmd.AddCommand(rosterListCmd)
}

func runRosterList(cmd *cobra.Command, args []string) error {
	classID := args[0]

	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := cmd.Context()
	cls, err := postgres.NewClassRepository(pool).Get(ctx, classID)
	if err != nil {
		return fmt.Errorf("failed to look up class: %w", err)
	}
	if cls == nil {
		return fmt.Errorf("class %s not found", classID)
	}

	roster, err := postgres.NewStudentRepository(pool).ListByClass(ctx, classID)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	fmt.Printf("%s (%s)\n", cls.Name, cls.ID)
	if cls.Teacher != "" {
		fmt.Printf("  Teacher: %s\n", cls.Teacher)
	}
	if cls.Room != "" {
		fmt.Printf("  Room:    %s\n", cls.Room)
	}
	if len(roster) == 0 {
		fmt.Println("\nNo students in this class")
		return nil
	}

	fmt.Printf("\n  %-14s %-24s %-6s %s\n", "ID", "Name", "Roll", "Face")
	enrolled := 0
	for _, s := range roster {
		face := "-"
		if s.HasEmbedding() {
			face = "enrolled"
			enrolled++
		}
		fmt.Printf("  %-14s %-24s %-6s %s\n", s.ID, s.Name, s.RollNo, face)
	}
	fmt.Printf("\n%d students, %d with an enrolled face\n", len(roster), enrolled)
	return nil
}
