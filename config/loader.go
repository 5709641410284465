package config

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Extract   ExtractConfig
	DHIS2     DHIS2Config `mapstructure:"dhis2"`
	DuckDB    DuckDBConfig
	Workspace WorkspaceConfig
	TDB       TDBConfig `mapstructure:"tdb"`
	Custom    CustomConfig
	Notebook  NotebookConfig
	Dashboard DashboardConfig
	Archive   ArchiveConfig
	Schedule  ScheduleConfig
	Env       string
}

type ExtractConfig struct {
	Backoff        BackoffConfig
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

type BackoffConfig struct {
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
	RetryMax     int           `mapstructure:"retry_max"`
}

type DHIS2Config struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BatchConfig caps the number of items per dimension in a single analytics
// request. Zero means no cap.
type BatchConfig struct {
	MaxDX int `mapstructure:"max_dx"`
	MaxOU int `mapstructure:"max_ou"`
	MaxPE int `mapstructure:"max_pe"`
}

type DuckDBConfig struct {
	Path              string   `mapstructure:"path"`
	ConnInitFnQueries []string `mapstructure:"conn_init_fn_queries"`
}

type WorkspaceConfig struct {
	FilesPath string `mapstructure:"files_path"`
}

// TDBConfig configures the routine dashboard pipeline. Paths are relative to
// ProjectRoot, which is itself relative to the workspace files path.
type TDBConfig struct {
	ProjectRoot       string         `mapstructure:"project_root"`
	DEMappingFile     string         `mapstructure:"de_mapping_file"`
	RawDataDir        string         `mapstructure:"raw_data_dir"`
	InputNotebook     string         `mapstructure:"input_notebook"`
	OutputNotebookDir string         `mapstructure:"output_notebook_dir"`
	EpiWeekSystem     string         `mapstructure:"epi_week_system"`
	OrgUnitLevels     map[string]int `mapstructure:"org_unit_levels"`
	Batch             BatchConfig    `mapstructure:"batch"`
}

type CustomConfig struct {
	DataElements  []string    `mapstructure:"data_elements"`
	StartPeriod   string      `mapstructure:"start_period"`
	OrgUnitLevels []int       `mapstructure:"org_unit_levels"`
	OutputDir     string      `mapstructure:"output_dir"`
	Batch         BatchConfig `mapstructure:"batch"`
}

type NotebookConfig struct {
	Executable string `mapstructure:"executable"`
}

type DashboardConfig struct {
	Table string `mapstructure:"table"`
}

type ArchiveConfig struct {
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// NewConfig loads the configuration from the provided base config reader
// and merges it with the environment-specific configuration.
func NewConfig(baseConfigReader io.Reader, envConfigReader io.Reader, env string) (*Config, error) {
	if env == "" { // Use the provided 'env' or default to "dev"
		env = "dev"
	}

	viper.SetConfigType("yaml")

	// Read the base configuration
	if err := viper.ReadConfig(baseConfigReader); err != nil {
		return nil, fmt.Errorf("error reading base config: %w", err)
	}

	// Merge with environment-specific configuration (only if provided)
	if envConfigReader != nil {
		if err := viper.MergeConfig(envConfigReader); err != nil {
			log.Printf("Error merging environment-specific config: %s", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	config.Env = env

	return &config, nil
}

// WorkspacePath joins elem onto the workspace files path.
func (c *Config) WorkspacePath(elem ...string) string {
	return filepath.Join(append([]string{c.Workspace.FilesPath}, elem...)...)
}

// TDBPath joins elem onto the dashboard project root inside the workspace.
func (c *Config) TDBPath(elem ...string) string {
	return c.WorkspacePath(append([]string{c.TDB.ProjectRoot}, elem...)...)
}

// OrgUnitLevel returns the org unit level extracted for mode, falling back to
// fallback when the mode has no configured level.
func (c *TDBConfig) OrgUnitLevel(mode string, fallback int) int {
	if level, ok := c.OrgUnitLevels[mode]; ok && level > 0 {
		return level
	}
	return fallback
}
