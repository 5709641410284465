package notebook

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rasnes/dhis2-duckdb-framework/utils"
)

const timestampLayout = "2006-01-02_15:04:05"

// Runner executes parameterised Jupyter notebooks with papermill.
type Runner struct {
	Executable   string
	Logger       *slog.Logger
	timeProvider utils.TimeProvider
	command      func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewRunner(executable string, logger *slog.Logger, timeProvider utils.TimeProvider) *Runner {
	if executable == "" {
		executable = "papermill"
	}
	return &Runner{
		Executable:   executable,
		Logger:       logger,
		timeProvider: timeProvider,
		command:      exec.CommandContext,
	}
}

// Run executes the input notebook and writes the executed copy to outputDir
// as <input file name>_OUTPUT_<UTC timestamp>.ipynb. It returns the output
// path.
func (r *Runner) Run(ctx context.Context, input, outputDir string, params map[string]any) (string, error) {
	if _, err := os.Stat(input); err != nil {
		return "", fmt.Errorf("error reading input notebook: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("error creating notebook output directory: %w", err)
	}

	output := OutputPath(input, outputDir, r.timeProvider.Now())
	args := append([]string{input, output}, paramArgs(params)...)

	r.Logger.Info(fmt.Sprintf("Running notebook %s", filepath.Base(input)), "output", output)

	var stderr bytes.Buffer
	cmd := r.command(ctx, r.Executable, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("error running notebook %s: %w: %s", input, err, strings.TrimSpace(stderr.String()))
	}

	return output, nil
}

// OutputPath names the executed notebook after the full input file name,
// extension included, and the UTC time:
// LAUNCHER-auto.ipynb_OUTPUT_2024-03-08_13:05:09.ipynb.
func OutputPath(input, outputDir string, now time.Time) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s_OUTPUT_%s.ipynb", filepath.Base(input), now.UTC().Format(timestampLayout)))
}

// paramArgs renders params as papermill "-p key value" pairs, sorted by key.
// Booleans are written as Python literals.
func paramArgs(params map[string]any) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, 3*len(keys))
	for _, k := range keys {
		var value string
		switch v := params[k].(type) {
		case bool:
			if v {
				value = "True"
			} else {
				value = "False"
			}
		default:
			value = fmt.Sprint(v)
		}
		args = append(args, "-p", k, value)
	}
	return args
}
