package cmd

import (
	"errors"
	"fmt"

	"github.com/classeye/classeye/internal/config"
	"github.com/classeye/classeye/internal/storage/postgres"
	"github.com/classeye/classeye/internal/storage/sis"
	"github.com/spf13/cobra"
)

var rosterSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh all classes from the school information system",
	Long: `Run one full roster sync from the school information system.
Classes and student profiles are created or updated; stored face
embeddings are never touched. The serve command runs the same sync
on a schedule when SYNC_SCHEDULE is set.`,
	RunE: runRosterSync,
}

func init() {
	rosterCmd.AddCommand(rosterSyncCmd)
}

func runRosterSync(cmd *cobra.Command, args []string) error {
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

	importer := sis.NewImporter(
		sisPool,
		postgres.NewStudentRepository(pool),
		postgres.NewClassRepository(pool),
		newLogger(),
	)

	stats, err := importer.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("roster sync failed: %w", err)
	}

	fmt.Printf("Synced %d classes and %d students", stats.Classes, stats.Students)
	if stats.Failed > 0 {
		fmt.Printf(" (%d rows failed)", stats.Failed)
	}
	fmt.Println()
	return nil
}
