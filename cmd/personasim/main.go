// Package main implements the personasim CLI for running persona-driven
// recruiter evaluation conversations.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/personasim/internal/batch"
	"github.com/fyrsmithlabs/personasim/internal/config"
	"github.com/fyrsmithlabs/personasim/internal/logging"
	"github.com/fyrsmithlabs/personasim/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string

	personaPath  string
	scenarioPath string
	outputDir    string
	sutPrompt    string
	seed         int64
	temperature  float64
	topP         float64
	maxTurns     int
	timeoutSec   int

	matrixPath  string
	concurrency int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "personasim",
	Short: "Persona-driven conversation simulator for recruiter assistants",
	Long: `personasim drives scripted multi-turn conversations between a persona
proxy (a simulated hiring manager) and a recruiter assistant under test,
makes every behavioral decision deterministically from a seed, and
classifies the outcome.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file (optional)")

	runCmd.Flags().StringVar(&personaPath, "persona", "", "path to persona YAML file (required)")
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "path to scenario YAML file (required)")
	runCmd.Flags().StringVar(&outputDir, "output", "", "output directory for transcripts")
	runCmd.Flags().StringVar(&sutPrompt, "sut-prompt", "", "path to SUT system prompt file")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "deterministic RNG seed for per-turn decisions")
	runCmd.Flags().Float64Var(&temperature, "temperature", -1, "sampling temperature (e.g. 0.0..1.2)")
	runCmd.Flags().Float64Var(&topP, "top_p", -1, "nucleus sampling top_p (0..1]")
	runCmd.Flags().IntVar(&maxTurns, "max-turns", 0, "override the configured turn limit")
	runCmd.Flags().IntVar(&timeoutSec, "timeout", 0, "conversation timeout in seconds")
	_ = runCmd.MarkFlagRequired("persona")
	_ = runCmd.MarkFlagRequired("scenario")

	batchCmd.Flags().StringVar(&matrixPath, "matrix", "", "path to batch matrix JSON file (required)")
	batchCmd.Flags().StringVar(&outputDir, "output", "", "output directory for transcripts")
	batchCmd.Flags().StringVar(&sutPrompt, "sut-prompt", "", "path to SUT system prompt file")
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 4, "maximum runs in flight")
	_ = batchCmd.MarkFlagRequired("matrix")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(versionCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single persona simulation",
	Long: `Run a single persona simulation against the configured endpoints.

Examples:
  # Deterministic run
  personasim run --persona personas/skeptical_cto.yaml \
    --scenario scenarios/urgent_backfill.yaml \
    --seed 12345 --temperature 0.0 --top_p 1.0

  # With a custom recruiter prompt
  personasim run --persona p.yaml --scenario s.yaml \
    --sut-prompt prompts/recruiter_v1.txt`,
	RunE: runSingle,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a matrix of persona simulations in parallel",
	Long: `Run every (persona, scenario, seed) triple listed in a JSON matrix
file, with bounded parallelism. Each run writes its own transcript and
appends to the shared run summary file.

The matrix file is a JSON array of items:
  [{"persona": "personas/a.yaml", "scenario": "scenarios/b.yaml", "seed": 1}]`,
	RunE: runBatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("personasim by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func runSingle(cmd *cobra.Command, args []string) error {
	ctx, runner, logger, shutdown, err := setup()
	if err != nil {
		return err
	}
	defer shutdown()

	item := batch.Item{
		PersonaPath:  personaPath,
		ScenarioPath: scenarioPath,
		Seed:         seed,
		MaxTurns:     maxTurns,
	}
	if temperature >= 0 {
		item.Temperature = &temperature
	}
	if topP > 0 {
		item.TopP = &topP
	}
	if timeoutSec > 0 {
		item.Timeout = time.Duration(timeoutSec) * time.Second
	}

	ir := runner.RunOne(ctx, item)
	if ir.Err != nil {
		logger.Error("run failed", zap.Error(ir.Err))
		return ir.Err
	}

	printOutcome(ir)
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, runner, logger, shutdown, err := setup()
	if err != nil {
		return err
	}
	defer shutdown()

	items, err := loadMatrix(matrixPath)
	if err != nil {
		return err
	}
	logger.Info("starting batch", zap.Int("items", len(items)), zap.Int("concurrency", concurrency))

	results, err := runner.Run(ctx, items, concurrency)
	if err != nil {
		return err
	}

	var failed int
	for _, ir := range results {
		if ir.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "run %s: %v\n", ir.RunID, ir.Err)
			continue
		}
		printOutcome(ir)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed hard", failed, len(results))
	}
	return nil
}

// setup loads configuration, applies flag overrides and wires the shared
// runner. The returned shutdown func flushes the logger and telemetry.
func setup() (context.Context, *batch.Runner, *zap.Logger, func(), error) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.Load(configPath)
	if err != nil {
		cancel()
		return nil, nil, nil, nil, err
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if sutPrompt != "" {
		cfg.Output.SUTPromptPath = sutPrompt
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		cancel()
		return nil, nil, nil, nil, err
	}

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		cancel()
		return nil, nil, nil, nil, err
	}

	runner, err := batch.NewRunner(cfg, logger, tel)
	if err != nil {
		cancel()
		return nil, nil, nil, nil, err
	}

	shutdown := func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
		shutdownCancel()
		_ = logger.Sync()
		cancel()
	}
	return ctx, runner, logger, shutdown, nil
}

func loadMatrix(path string) ([]batch.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read matrix file: %w", err)
	}
	var raw []struct {
		Persona  string   `json:"persona"`
		Scenario string   `json:"scenario"`
		Seed     int64    `json:"seed"`
		MaxTurns int      `json:"max_turns"`
		Timeout  int      `json:"timeout_seconds"`
		Temp     *float64 `json:"temperature"`
		TopP     *float64 `json:"top_p"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse matrix file: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("matrix file %s lists no runs", path)
	}

	items := make([]batch.Item, 0, len(raw))
	for i, r := range raw {
		if r.Persona == "" || r.Scenario == "" {
			return nil, fmt.Errorf("matrix item %d: persona and scenario are required", i)
		}
		item := batch.Item{
			PersonaPath:  r.Persona,
			ScenarioPath: r.Scenario,
			Seed:         r.Seed,
			MaxTurns:     r.MaxTurns,
			Temperature:  r.Temp,
			TopP:         r.TopP,
		}
		if r.Timeout > 0 {
			item.Timeout = time.Duration(r.Timeout) * time.Second
		}
		items = append(items, item)
	}
	return items, nil
}

func printOutcome(ir batch.ItemResult) {
	res := ir.Result
	fmt.Printf("Saved: %s\n", ir.MDPath)
	fmt.Printf("Conversation Outcome: %s (Level: %d%%)\n",
		res.Outcome.Status, res.Outcome.CompletionPercent)
	fmt.Printf("Conversation Duration: %.1fs over %d turns\n",
		res.Elapsed.Seconds(), res.Turn)
	if len(res.Outcome.Issues) > 0 {
		fmt.Printf("Issues: %v\n", res.Outcome.Issues)
	}
}
