package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rasnes/dhis2-duckdb-framework/config"
	"github.com/rasnes/dhis2-duckdb-framework/pipeline"
	"github.com/rasnes/dhis2-duckdb-framework/utils"
	"github.com/spf13/cobra"
)

func newScheduleCmd() *cobra.Command {
	var cronExpr string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Runs the dashboard pipeline for the current year on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}
			if cronExpr == "" {
				cronExpr = cfg.Schedule.Cron
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler, err := newScheduler(ctx, cronExpr, func(ctx context.Context) error {
				return runScheduledTDB(ctx, cfg, log)
			}, log)
			if err != nil {
				return err
			}

			log.Info(fmt.Sprintf("Scheduling dashboard pipeline with cron %q", cronExpr))
			scheduler.StartAsync()
			<-ctx.Done()
			scheduler.Stop()
			log.Info("Scheduler stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (defaults to schedule.cron)")

	return cmd
}

// newScheduler registers job under cronExpr. Runs never overlap: a run that
// is due while the previous one is still going is skipped.
func newScheduler(ctx context.Context, cronExpr string, job func(context.Context) error, log *slog.Logger) (*gocron.Scheduler, error) {
	if cronExpr == "" {
		return nil, fmt.Errorf("no cron expression configured")
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	_, err := scheduler.Cron(cronExpr).Do(func() {
		if err := job(ctx); err != nil {
			log.Error(fmt.Sprintf("Scheduled run failed: %v", err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("error scheduling job with cron %q: %w", cronExpr, err)
	}

	return scheduler, nil
}

func runScheduledTDB(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	timeProvider := utils.RealTimeProvider{}
	p, cleanup, err := newPipeline(ctx, cfg, log, timeProvider)
	if err != nil {
		return fmt.Errorf("error creating pipeline: %w", err)
	}
	defer cleanup()

	_, err = p.RunTDB(ctx, pipeline.Params{
		Year:            timeProvider.Now().Year(),
		DownloadRoutine: true,
		DownloadMape:    true,
		DownloadPop:     true,
		RunNotebooks:    true,
		Upload:          true,
	})
	return err
}
