package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/classeye/classeye/internal/capture"
	"github.com/classeye/classeye/internal/config"
	"github.com/classeye/classeye/internal/insights"
	"github.com/classeye/classeye/internal/pipeline"
	"github.com/classeye/classeye/internal/schedule"
	"github.com/classeye/classeye/internal/storage"
	"github.com/classeye/classeye/internal/storage/postgres"
	"github.com/classeye/classeye/internal/storage/sis"
	"github.com/classeye/classeye/internal/vision"
	"github.com/classeye/classeye/internal/web"
	"github.com/classeye/classeye/internal/web/handlers"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance engine and web dashboard",
	Long: `Start the ClassEye server.
The server watches classroom cameras, marks attendance as enrolled
students appear on them, and serves the teacher dashboard with the
live annotated stream and the attendance API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides CLASSEYE_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides CLASSEYE_HOST)")
}

// resolveHostPort applies flag overrides on top of the environment
// configuration.
func resolveHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Server.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Server.Host = host
	}
}

// newCameraSource builds the capture source for a class. Classes
// without a configured camera fall back to a generated feed so the
// rest of the system stays usable without hardware.
func newCameraSource(cfg *config.Config, classID string) capture.Source {
	if url := cfg.Camera.URLFor(classID); url != "" {
		return capture.NewNetcam(url)
	}
	return capture.NewSynthetic(640, 480, 15, 0)
}

// buildInsights assembles the summary service from whichever AI
// providers have credentials configured. With none it still answers
// through the deterministic fallback.
func buildInsights(ctx context.Context, cfg *config.Config, log *slog.Logger) *insights.Service {
	var providers []insights.Provider
	if cfg.Gemini.APIKey != "" {
		p, err := insights.NewGeminiProvider(ctx, cfg.Gemini.APIKey)
		if err != nil {
			log.Error("gemini provider unavailable", "err", err)
		} else {
			providers = append(providers, p)
			fmt.Println("Insights: Gemini enabled")
		}
	}
	if cfg.OpenAI.Token != "" {
		providers = append(providers, insights.NewOpenAIProvider(cfg.OpenAI.Token))
		fmt.Println("Insights: OpenAI enabled")
	}
	return insights.NewService(log, providers...)
}

// buildRosterSync wires the scheduled SIS import when both the SIS
// connection and a schedule are configured. Returns nils when the
// sync is disabled.
func buildRosterSync(cfg *config.Config, students storage.StudentStore, classes storage.ClassStore, log *slog.Logger) (*schedule.Scheduler, *sis.Pool, error) {
	if cfg.SIS.DSN == "" || cfg.Sync.Schedule == "" {
		return nil, nil, nil
	}

	sisPool, err := sis.NewPool(cfg.SIS.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to SIS: %w", err)
	}

	sched := schedule.New(log)
	importer := sis.NewImporter(sisPool, students, classes, log)
	if err := sched.AddRosterSync(cfg.Sync.Schedule, importer); err != nil {
		sisPool.Close()
		return nil, nil, fmt.Errorf("failed to schedule roster sync: %w", err)
	}

	sched.Start()
	fmt.Printf("Roster sync scheduled (%s)\n", cfg.Sync.Schedule)
	return sched, sisPool, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveHostPort(cmd, cfg)
	log := newLogger()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	students := postgres.NewStudentRepository(pool)
	records := postgres.NewAttendanceRepository(pool)
	classes := postgres.NewClassRepository(pool)

	detector := vision.NewClient(cfg.Detector.URL, cfg.Recognition.EmbeddingDim, cfg.Detector.Timeout)
	broadcaster := handlers.NewBroadcaster()

	sessions := pipeline.NewManager(pipeline.Deps{
		NewSource: func(classID string) capture.Source {
			return newCameraSource(cfg, classID)
		},
		Detector:     detector,
		Roster:       storage.NewRosterSource(students),
		Sink:         records,
		Publisher:    broadcaster,
		EmbeddingDim: cfg.Recognition.EmbeddingDim,
		Tolerance:    cfg.Recognition.Tolerance,
		Cooldown:     cfg.Recognition.Cooldown(),
		Pipeline: pipeline.Config{
			FrameSkip:    cfg.Recognition.FrameSkip,
			Downscale:    cfg.Recognition.Downscale,
			JPEGQuality:  cfg.Stream.JPEGQuality,
			BufferFrames: cfg.Stream.BufferFrames,
		},
		Log: log,
	})

	service := buildInsights(cmd.Context(), cfg, log)

	sched, sisPool, err := buildRosterSync(cfg, students, classes, log)
	if err != nil {
		return err
	}
	if sisPool != nil {
		defer sisPool.Close()
	}

	server := web.NewServer(cfg, web.Deps{
		Sessions:    sessions,
		Broadcaster: broadcaster,
		Students:    students,
		Attendance:  records,
		Classes:     classes,
		Insights:    service,
		Log:         log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		sessions.StopAll()
		if sched != nil {
			sched.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting ClassEye on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
