// Package transcript persists finished runs: a human-readable markdown
// rendering, an append-only JSONL turn log, and a machine-parseable run
// summary record.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fyrsmithlabs/personasim/internal/engine"
	"github.com/fyrsmithlabs/personasim/internal/persona"
)

var (
	slugSpaces  = regexp.MustCompile(`\s+`)
	slugInvalid = regexp.MustCompile(`[^a-z0-9_-]`)
)

// Slugify lowercases a name and strips everything that is not safe in a
// filename.
func Slugify(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = slugSpaces.ReplaceAllString(value, "-")
	return slugInvalid.ReplaceAllString(value, "")
}

// BaseName builds the shared file stem for one run's artifacts.
func BaseName(runID, personaName, scenarioTitle string) string {
	return fmt.Sprintf("%s__%s__%s", runID, Slugify(personaName), Slugify(scenarioTitle))
}

// Writer writes run artifacts under a single output directory.
type Writer struct {
	dir string
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Save writes the markdown transcript and the JSONL turn log for a run.
// It returns the two paths written.
func (w *Writer) Save(runID string, p *persona.Persona, s *persona.Scenario, res *engine.Result) (mdPath, jsonlPath string, err error) {
	base := BaseName(runID, p.Name, s.Title)

	mdPath = filepath.Join(w.dir, base+".md")
	if err := os.WriteFile(mdPath, []byte(ToMarkdown(runID, p, s, res)), 0o644); err != nil {
		return "", "", fmt.Errorf("write markdown transcript: %w", err)
	}

	jsonlPath = filepath.Join(w.dir, base+".jsonl")
	f, err := os.Create(jsonlPath)
	if err != nil {
		return "", "", fmt.Errorf("create jsonl transcript: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	for i := range res.Turns {
		if err := enc.Encode(&res.Turns[i]); err != nil {
			return "", "", fmt.Errorf("encode turn %d: %w", res.Turns[i].Index, err)
		}
	}
	return mdPath, jsonlPath, nil
}

// ToMarkdown renders the conversation as a readable document, one block
// per turn, with the outcome appended.
func ToMarkdown(runID string, p *persona.Persona, s *persona.Scenario, res *engine.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transcript %s\n\n", runID)
	fmt.Fprintf(&b, "**Persona:** %s\n\n", p.Name)
	fmt.Fprintf(&b, "**Scenario:** %s\n\n", s.Title)

	for _, t := range res.Turns {
		fmt.Fprintf(&b, "**%s**: %s\n\n", roleTitle(t.Role), t.Text)
	}

	fmt.Fprintf(&b, "---\n\n")
	fmt.Fprintf(&b, "**Outcome:** %s (%d%% complete, %d turns, %s)\n",
		res.Outcome.Status, res.Outcome.CompletionPercent, res.Turn, res.Elapsed.Round(time.Millisecond))
	return b.String()
}

func roleTitle(r engine.Role) string {
	switch r {
	case engine.RoleProxy:
		return "Proxy"
	case engine.RoleSUT:
		return "Sut"
	}
	return string(r)
}

// Summary is the machine-parseable record emitted once per run.
type Summary struct {
	BatchID       string  `json:"batch_id,omitempty"`
	ItemID        string  `json:"item_id"`
	BuildVersion  string  `json:"build_version"`
	Deterministic bool    `json:"deterministic"`
	Persona       string  `json:"persona"`
	PersonaVer    string  `json:"persona_version,omitempty"`
	Scenario      string  `json:"scenario"`
	ScenarioVer   string  `json:"scenario_version,omitempty"`
	SUTModel      string  `json:"sut_model"`
	ProxyModel    string  `json:"proxy_model"`
	Seed          int64   `json:"seed"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	Status        string  `json:"status"`
	State         string  `json:"state"`
	Turns         int     `json:"turns"`
	RuntimeSec    float64 `json:"runtime_seconds"`
	Completion    int     `json:"completion_percent"`
	TotalTokens   int     `json:"total_tokens"`
	Error         string  `json:"error,omitempty"`
	TraceID       string  `json:"trace_id,omitempty"`
	LatencyP95Sec float64 `json:"latency_p95_seconds,omitempty"`
}

// NewSummary assembles the run summary record from a finished run.
// Deterministic mode holds when temperature is 0 and top_p is 1.
func NewSummary(runID, buildVersion string, p *persona.Persona, s *persona.Scenario, cfg engine.Config, res *engine.Result) Summary {
	var errMsg string
	for _, f := range res.Outcome.Failures {
		if f.Category == engine.FailureValidation || f.Category == engine.FailureSystem {
			errMsg = f.ErrorMessage
			break
		}
	}

	return Summary{
		ItemID:        runID,
		BuildVersion:  buildVersion,
		Deterministic: cfg.SUTParams.Temperature == 0 && cfg.SUTParams.TopP == 1 && cfg.ProxyParams.Temperature == 0 && cfg.ProxyParams.TopP == 1,
		Persona:       p.Name,
		PersonaVer:    p.Version,
		Scenario:      s.Title,
		ScenarioVer:   s.Version,
		SUTModel:      cfg.SUTParams.Model,
		ProxyModel:    cfg.ProxyParams.Model,
		Seed:          cfg.Seed,
		Temperature:   cfg.SUTParams.Temperature,
		TopP:          cfg.SUTParams.TopP,
		Status:        string(res.Outcome.Status),
		State:         string(res.State),
		Turns:         res.Turn,
		RuntimeSec:    res.Elapsed.Seconds(),
		Completion:    res.Outcome.CompletionPercent,
		TotalTokens:   res.Usage.TotalTokens,
		Error:         errMsg,
	}
}

// WriteSummary appends the summary as one JSON line to the shared
// summaries file in the output directory.
func (w *Writer) WriteSummary(sum Summary) (string, error) {
	path := filepath.Join(w.dir, "run_summaries.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open summaries file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(sum); err != nil {
		return "", fmt.Errorf("encode run summary: %w", err)
	}
	return path, nil
}
