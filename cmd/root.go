package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/rasnes/dhis2-duckdb-framework/archive"
	"github.com/rasnes/dhis2-duckdb-framework/config"
	"github.com/rasnes/dhis2-duckdb-framework/dashboard"
	"github.com/rasnes/dhis2-duckdb-framework/logger"
	"github.com/rasnes/dhis2-duckdb-framework/pipeline"
	"github.com/rasnes/dhis2-duckdb-framework/utils"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dhis2etl",
	Short: "etl cli for DHIS2 analytics extracts",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newTDBCmd())
	rootCmd.AddCommand(newCustomCmd())
	rootCmd.AddCommand(newPeriodsCmd())
	rootCmd.AddCommand(newScheduleCmd())
}

func isRunningOnGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

func initializeConfigAndLogger() (*config.Config, *slog.Logger, error) {
	log := logger.NewLogger()
	if !isRunningOnGitHubActions() {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Error(fmt.Sprintf("Error loading .env file: %v", err))
			return nil, nil, err
		}
	}

	// 1. Open the base configuration file
	baseConfigFile, err := os.Open("config.base.yaml")
	if err != nil {
		log.Error(fmt.Sprintf("Error opening base config file: %v", err))
		return nil, nil, err
	}
	defer baseConfigFile.Close()

	// 2. Prepare environment-specific config reader (if needed)
	env := os.Getenv("APP_ENV")
	var envConfig io.Reader
	envConfigFilename := fmt.Sprintf("config.%s.yaml", env)
	if _, err := os.Stat(envConfigFilename); err == nil {
		envConfigFile, err := os.Open(envConfigFilename)
		if err != nil {
			log.Error(fmt.Sprintf("Error opening environment config file: %v", err))
			return nil, nil, err
		}
		defer envConfigFile.Close()
		envConfig = envConfigFile
	}

	// 3. Create the config
	cfg, err := config.NewConfig(baseConfigFile, envConfig, env)
	if err != nil {
		log.Error(fmt.Sprintf("Error reading config: %v", err))
		return nil, nil, err
	}

	return cfg, log, nil
}

// newPipeline builds the pipeline and attaches the dashboard publisher and
// the S3 archiver when they are configured. The returned cleanup closes
// everything that was opened.
func newPipeline(ctx context.Context, cfg *config.Config, log *slog.Logger, timeProvider utils.TimeProvider) (*pipeline.Pipeline, func(), error) {
	p, err := pipeline.NewPipeline(cfg, log, timeProvider)
	if err != nil {
		return nil, nil, err
	}
	cleanup := p.Close

	if dsn := os.Getenv("DASHBOARD_DSN"); dsn != "" {
		publisher, err := dashboard.NewPublisher(ctx, dsn, cfg.Dashboard.Table, log)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := publisher.EnsureTable(ctx); err != nil {
			publisher.Close()
			cleanup()
			return nil, nil, err
		}
		p.Publisher = publisher
		closePipeline := cleanup
		cleanup = func() {
			publisher.Close()
			closePipeline()
		}
	}

	if cfg.Archive.Bucket != "" {
		archiver, err := archive.NewS3Archiver(ctx, &cfg.Archive, log)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		p.Archiver = archiver
	}

	return p, cleanup, nil
}
