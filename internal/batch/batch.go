// Package batch executes simulation runs: a single persona/scenario pair or
// a whole matrix of (persona, scenario, seed) triples in parallel. Runs share
// nothing but configuration, so parallelism needs no locking.
package batch

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/personasim/internal/agent"
	"github.com/fyrsmithlabs/personasim/internal/config"
	"github.com/fyrsmithlabs/personasim/internal/engine"
	"github.com/fyrsmithlabs/personasim/internal/extractor"
	"github.com/fyrsmithlabs/personasim/internal/logging"
	"github.com/fyrsmithlabs/personasim/internal/persona"
	"github.com/fyrsmithlabs/personasim/internal/telemetry"
	"github.com/fyrsmithlabs/personasim/internal/transcript"
)

// BuildVersion is stamped into run summary records. Overridden at link time.
var BuildVersion = "dev"

// Item is one run request: a persona/scenario pair and an optional seed
// override (0 means use the configured or derived seed).
type Item struct {
	BatchID      string
	PersonaPath  string
	ScenarioPath string
	Seed         int64

	// Overrides for the configured sampling parameters; nil means use the
	// configured value.
	Temperature *float64
	TopP        *float64
	MaxTurns    int
	Timeout     time.Duration
}

// ItemResult pairs a run request with what came out of it. Err is set only
// for hard failures (validation, system faults, I/O); a run that merely
// failed its conversation still has Err == nil and a Result.
type ItemResult struct {
	Item    Item
	RunID   string
	Result  *engine.Result
	Summary transcript.Summary
	MDPath  string
	Err     error
}

// Runner executes runs against one loaded configuration.
type Runner struct {
	cfg    *config.Config
	log    *zap.Logger
	writer *transcript.Writer
	tel    *telemetry.Telemetry
}

// NewRunner wires a runner. The telemetry instance may be disabled but must
// not be nil.
func NewRunner(cfg *config.Config, log *zap.Logger, tel *telemetry.Telemetry) (*Runner, error) {
	if log == nil {
		log = zap.NewNop()
	}
	writer, err := transcript.NewWriter(cfg.Output.Dir)
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, log: log, writer: writer, tel: tel}, nil
}

// RunOne executes a single simulation run end to end: load the persona and
// scenario, drive the conversation, persist the transcript and emit the
// summary record.
func (r *Runner) RunOne(ctx context.Context, item Item) ItemResult {
	runID := newRunID()
	ir := ItemResult{Item: item, RunID: runID}

	p, err := persona.LoadPersona(item.PersonaPath)
	if err != nil {
		ir.Err = fmt.Errorf("load persona: %w", err)
		return ir
	}
	s, err := persona.LoadScenario(item.ScenarioPath)
	if err != nil {
		ir.Err = fmt.Errorf("load scenario: %w", err)
		return ir
	}

	log := r.log.With(logging.RunFields(runID, p.Name, s.Title)...)

	engCfg, err := r.engineConfig(item)
	if err != nil {
		ir.Err = err
		return ir
	}

	proxy, sut, err := r.buildClients()
	if err != nil {
		ir.Err = err
		return ir
	}

	orch, err := engine.NewOrchestrator(engCfg, p, s, proxy, sut, extractor.NewHeuristicExtractor(), log)
	if err != nil {
		ir.Err = err
		return ir
	}

	tracer := r.tel.Tracer("personasim/batch")
	ctx, span := tracer.Start(ctx, "simulation.run", trace.WithAttributes(
		telemetry.RunAttributes(runID, p.Name, s.Title, engCfg.Seed, 0, 0, 0)...,
	))
	defer span.End()

	res, runErr := orch.Run(ctx)
	ir.Result = res
	if runErr != nil {
		ir.Err = runErr
	}

	span.SetAttributes(telemetry.RunAttributes(runID, p.Name, s.Title, engCfg.Seed,
		res.Contract.ClarifyingQuestionProb, res.Contract.TangentProbAfterField, res.Contract.HesitationInsertProb)...)
	span.SetAttributes(telemetry.OutcomeAttributes(string(res.Outcome.Status),
		res.Outcome.CompletionPercent, res.Turn, res.Outcome.TotalFailures, res.Elapsed)...)

	RecordRun(res)

	mdPath, _, err := r.writer.Save(runID, p, s, res)
	if err != nil {
		log.Error("failed to save transcript", zap.Error(err))
		if ir.Err == nil {
			ir.Err = err
		}
	}
	ir.MDPath = mdPath

	sum := transcript.NewSummary(runID, BuildVersion, p, s, engCfg, res)
	sum.BatchID = item.BatchID
	if sc := span.SpanContext(); sc.HasTraceID() {
		sum.TraceID = sc.TraceID().String()
	}
	if _, err := r.writer.WriteSummary(sum); err != nil {
		log.Error("failed to write run summary", zap.Error(err))
		if ir.Err == nil {
			ir.Err = err
		}
	}
	ir.Summary = sum

	return ir
}

// Run executes all items with at most concurrency in flight. Individual run
// failures are reported per item; the returned error covers only setup-level
// faults that abort the whole batch.
func (r *Runner) Run(ctx context.Context, items []Item, concurrency int) ([]ItemResult, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	batchID := uuid.NewString()

	results := make([]ItemResult, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, item := range items {
		i, item := i, item
		if item.BatchID == "" {
			item.BatchID = batchID
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = ItemResult{Item: item, Err: err}
				return nil
			}
			results[i] = r.RunOne(ctx, item)
			return nil
		})
	}

	// Workers never return errors; Wait only observes context cancellation.
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (r *Runner) engineConfig(item Item) (engine.Config, error) {
	rc := r.cfg.Run

	seed := item.Seed
	if seed == 0 {
		seed = rc.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	temp := rc.Temperature
	if item.Temperature != nil {
		temp = *item.Temperature
	}
	topP := rc.TopP
	if item.TopP != nil {
		topP = *item.TopP
	}

	maxTurns := rc.MaxTurns
	if item.MaxTurns > 0 {
		maxTurns = item.MaxTurns
	}
	timeout := rc.Timeout.Duration()
	if item.Timeout > 0 {
		timeout = item.Timeout
	}

	sutPrompt, err := r.loadSUTPrompt()
	if err != nil {
		return engine.Config{}, err
	}

	sutEP := r.cfg.ResolveSUT()
	proxyEP := r.cfg.ResolveProxy()

	return engine.Config{
		MaxTurns:       maxTurns,
		Timeout:        timeout,
		RequestTimeout: rc.RequestTimeout.Duration(),
		RetryAttempts:  rc.RetryAttempts,
		RetryDelay:     rc.RetryDelay.Duration(),
		MinTurns:       rc.MinTurns,
		Seed:           seed,
		Policy: engine.Policy{
			BudgetBoost:     rc.BudgetBoost,
			TangentCooldown: rc.TangentCooldown,
		},
		ProxyParams: agent.Params{Model: proxyEP.Model, Temperature: temp, TopP: topP},
		SUTParams:   agent.Params{Model: sutEP.Model, Temperature: temp, TopP: topP},
		SUTPrompt:   sutPrompt,
		FieldSpec:   extractor.DefaultFieldSpec(),
	}, nil
}

func (r *Runner) buildClients() (proxy, sut agent.Client, err error) {
	reqTimeout := r.cfg.Run.RequestTimeout.Duration()

	proxyEP := r.cfg.ResolveProxy()
	proxy, err = agent.NewOpenAIClient(agent.Config{
		BaseURL:      proxyEP.BaseURL,
		APIKey:       proxyEP.APIKey.Value(),
		Timeout:      reqTimeout,
		ExtraHeaders: r.extraHeaders(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build proxy client: %w", err)
	}

	sutEP := r.cfg.ResolveSUT()
	sut, err = agent.NewOpenAIClient(agent.Config{
		BaseURL:      sutEP.BaseURL,
		APIKey:       sutEP.APIKey.Value(),
		Timeout:      reqTimeout,
		ExtraHeaders: r.extraHeaders(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build sut client: %w", err)
	}
	return proxy, sut, nil
}

// extraHeaders returns the OpenRouter attribution headers when routing
// through OpenRouter; other providers need none.
func (r *Runner) extraHeaders() map[string]string {
	if r.cfg.API.Provider != config.ProviderOpenRouter {
		return nil
	}
	return map[string]string{
		"HTTP-Referer": "https://github.com/fyrsmithlabs/personasim",
		"X-Title":      "personasim",
	}
}

func (r *Runner) loadSUTPrompt() (string, error) {
	path := r.cfg.Output.SUTPromptPath
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read sut prompt %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func newRunID() string {
	return time.Now().UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8]
}
