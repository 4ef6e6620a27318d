package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/personasim/internal/agent"
	"github.com/fyrsmithlabs/personasim/internal/extractor"
	"github.com/fyrsmithlabs/personasim/internal/persona"
)

// Success criteria a scenario may name. Unknown criteria are a validation
// error caught before the loop starts.
const (
	CriterionAllFields        = "all_mandatory_fields_captured"
	CriterionSummaryProvided  = "summary_provided"
	CriterionSummaryConfirmed = "summary_confirmed"
)

// Config holds the run parameters of one orchestrated conversation.
type Config struct {
	MaxTurns       int
	Timeout        time.Duration // whole-conversation wall clock
	RequestTimeout time.Duration // per client call, independent of Timeout
	RetryAttempts  int
	RetryDelay     time.Duration
	MinTurns       int // below this, an unsuccessful run counts as abandonment

	Seed   int64
	Policy Policy

	ProxyParams agent.Params
	SUTParams   agent.Params

	// SUTPrompt is the recruiter system prompt. Empty uses the built-in
	// fallback.
	SUTPrompt string

	FieldSpec extractor.FieldSpec
}

// Validate checks the configuration before the state machine starts.
func (c *Config) Validate() error {
	if c.MaxTurns <= 0 {
		return &ValidationError{Err: fmt.Errorf("max turns must be positive, got %d", c.MaxTurns)}
	}
	if c.Timeout <= 0 {
		return &ValidationError{Err: fmt.Errorf("conversation timeout must be positive, got %s", c.Timeout)}
	}
	if c.RetryAttempts < 0 {
		return &ValidationError{Err: fmt.Errorf("retry attempts must be >= 0, got %d", c.RetryAttempts)}
	}
	for _, p := range []agent.Params{c.ProxyParams, c.SUTParams} {
		if p.Model == "" {
			return &ValidationError{Err: fmt.Errorf("model identifier required for both agent roles")}
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			return &ValidationError{Err: fmt.Errorf("temperature must be in [0,2], got %v", p.Temperature)}
		}
		if p.TopP <= 0 || p.TopP > 1 {
			return &ValidationError{Err: fmt.Errorf("top_p must be in (0,1], got %v", p.TopP)}
		}
	}
	if len(c.FieldSpec) == 0 {
		return &ValidationError{Err: fmt.Errorf("mandatory field spec must not be empty")}
	}
	return nil
}

// Result is everything a finished run produces.
type Result struct {
	State    State
	Outcome  Outcome
	Turns    []Turn
	Contract Contract
	Captured map[string]string
	Usage    agent.Usage
	Elapsed  time.Duration
	Turn     int // last turn index reached
}

// Orchestrator drives one conversation to completion or failure. A single
// run is strictly sequential; independent runs share nothing and may
// execute concurrently.
type Orchestrator struct {
	cfg        Config
	persona    *persona.Persona
	scenario   *persona.Scenario
	proxy      agent.Client
	sut        agent.Client
	extractor  extractor.Extractor
	classifier *Classifier
	log        *zap.Logger

	criteria []string
}

// NewOrchestrator wires a run. The clients and the extractor are the run's
// external collaborators; a nil logger falls back to a no-op.
func NewOrchestrator(cfg Config, p *persona.Persona, s *persona.Scenario, proxy, sut agent.Client, ext extractor.Extractor, log *zap.Logger) (*Orchestrator, error) {
	if proxy == nil || sut == nil {
		return nil, &ValidationError{Err: fmt.Errorf("both agent clients are required")}
	}
	if ext == nil {
		return nil, &ValidationError{Err: fmt.Errorf("field extractor is required")}
	}
	if log == nil {
		log = zap.NewNop()
	}

	criteria := s.SuccessCriteria
	if len(criteria) == 0 {
		criteria = []string{CriterionAllFields, CriterionSummaryProvided, CriterionSummaryConfirmed}
	}

	return &Orchestrator{
		cfg:        cfg,
		persona:    p,
		scenario:   s,
		proxy:      proxy,
		sut:        sut,
		extractor:  ext,
		classifier: NewClassifier(cfg.MinTurns),
		log:        log,
		criteria:   criteria,
	}, nil
}

// Run executes the conversation state machine. It always returns a Result;
// the error is non-nil only for validation failures and unrecoverable
// system faults, which also surface in the result's failure list.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	// INITIALIZING: pre-flight validation, contract, state reset.
	if err := o.preflight(); err != nil {
		res := &Result{State: StateFailed}
		res.Outcome = o.assembleOutcome(StateFailed, NewConversationState(), []FailureRecord{{
			Category:     FailureValidation,
			Reason:       "pre-flight configuration validation failed",
			ErrorMessage: err.Error(),
		}})
		return res, err
	}

	contract := BuildContract(o.persona, o.scenario, o.cfg.Seed, o.cfg.Policy)
	controller := NewTurnController(contract, o.cfg.Policy)
	state := NewConversationState()

	maxTurns := o.cfg.MaxTurns
	if o.scenario.MaxTurns > 0 {
		maxTurns = o.scenario.MaxTurns
	}

	o.log.Info("run initialized",
		zap.String("persona", o.persona.Name),
		zap.String("scenario", o.scenario.Title),
		zap.Int64("seed", contract.Seed),
		zap.Float64("clarifying_question_prob", contract.ClarifyingQuestionProb),
		zap.Float64("tangent_prob_after_field", contract.TangentProbAfterField),
		zap.Int("max_turns", maxTurns),
	)

	var (
		failures []FailureRecord
		usage    agent.Usage
		messages []agent.Message // shared wire history: proxy=user, sut=assistant
	)

	terminal := StateRunning
	prevCaptured := 0

	// RUNNING loop, once per turn.
	for terminal == StateRunning {
		state.TurnIndex++
		turnLog := o.log.With(zap.Int("turn", state.TurnIndex))

		fieldCaptured := len(state.CapturedFields) > prevCaptured
		prevCaptured = len(state.CapturedFields)
		decision := controller.Decide(state, fieldCaptured)
		turnLog.Debug("turn decision",
			zap.Bool("clarify_allowed", decision.ClarifyAllowed),
			zap.Bool("tangent_allowed", decision.TangentAllowed),
		)

		// Proxy turn: decision block appended to its system context.
		proxyReply, err := o.invokeProxy(ctx, messages, contract, decision)
		if err != nil {
			failures = append(failures, o.classifier.ClassifyClientError(RoleProxy, state.TurnIndex, err))
			terminal = StateFailed
			break
		}
		usage.Add(proxyReply.Usage)
		proxyTurn := o.appendTurn(state, RoleProxy, proxyReply, decision)
		messages = append(messages, agent.Message{Role: agent.RoleUser, Content: proxyReply.Text})
		failures = append(failures, o.classifier.InspectTurn(proxyTurn)...)

		if state.SUTProvidedSummary && IsConfirmation(proxyReply.Text) {
			state.ProxyConfirmed = true
		}

		// SUT turn: replies to the proxy's new message.
		sutReply, err := o.invokeSUT(ctx, messages, state.TurnIndex == 1)
		if err != nil {
			failures = append(failures, o.classifier.ClassifyClientError(RoleSUT, state.TurnIndex, err))
			terminal = StateFailed
			break
		}
		usage.Add(sutReply.Usage)
		sutReply.Text = EnforceSingleQuestion(sutReply.Text, state.TurnIndex == 1)
		sutTurn := o.appendTurn(state, RoleSUT, sutReply, nil)
		messages = append(messages, agent.Message{Role: agent.RoleAssistant, Content: sutReply.Text})
		failures = append(failures, o.classifier.InspectTurn(sutTurn)...)

		if IsSummary(sutReply.Text) {
			state.SUTProvidedSummary = true
			turnLog.Info("SUT provided role summary")
		}

		// Field extraction over the updated conversation.
		if err := o.extractFields(ctx, state); err != nil {
			sysErr := &SystemError{Err: err}
			failures = append(failures, FailureRecord{
				Category:     FailureSystem,
				Reason:       "field extraction failed",
				ErrorMessage: sysErr.Error(),
				TurnOccurred: state.TurnIndex,
			})
			terminal = StateFailed
			res := o.finish(StateFailed, state, contract, failures, usage)
			return res, sysErr
		}

		// Termination predicates, in priority order.
		switch {
		case o.criteriaSatisfied(state):
			terminal = StateCompletedSuccess
		case state.SUTProvidedSummary && state.ProxyConfirmed:
			// Conversation closed naturally but some criteria unmet.
			terminal = StateCompletedPartial
		case state.Elapsed() >= o.cfg.Timeout:
			terminal = StateTimedOut
		case state.TurnIndex >= maxTurns:
			terminal = StateMaxTurnsExhausted
		}
	}

	return o.finish(terminal, state, contract, failures, usage), nil
}

func (o *Orchestrator) preflight() error {
	if err := o.cfg.Validate(); err != nil {
		return err
	}
	if err := o.persona.Validate(); err != nil {
		return &ValidationError{Err: err}
	}
	if err := o.scenario.Validate(); err != nil {
		return &ValidationError{Err: err}
	}
	for _, c := range o.criteria {
		switch c {
		case CriterionAllFields, CriterionSummaryProvided, CriterionSummaryConfirmed:
		default:
			return &ValidationError{Err: fmt.Errorf("unknown success criterion %q", c)}
		}
	}
	return nil
}

func (o *Orchestrator) invokeProxy(ctx context.Context, history []agent.Message, contract Contract, decision *TurnDecision) (*agent.Reply, error) {
	system := BuildProxySystemPrompt(o.persona, o.scenario, contract, decision)

	msgs := make([]agent.Message, 0, len(history)+2)
	msgs = append(msgs, agent.Message{Role: agent.RoleSystem, Content: system})
	if len(history) == 0 && strings.TrimSpace(o.scenario.EntryContext) != "" {
		// Ground the opening proxy message in the scenario's entry context.
		msgs = append(msgs, agent.Message{Role: agent.RoleUser, Content: strings.TrimSpace(o.scenario.EntryContext)})
	} else {
		msgs = append(msgs, history...)
	}

	return o.callWithRetry(ctx, o.proxy, msgs, o.cfg.ProxyParams)
}

func (o *Orchestrator) invokeSUT(ctx context.Context, history []agent.Message, firstTurn bool) (*agent.Reply, error) {
	system := BuildSUTSystemPrompt(o.cfg.SUTPrompt, firstTurn)

	msgs := make([]agent.Message, 0, len(history)+1)
	msgs = append(msgs, agent.Message{Role: agent.RoleSystem, Content: system})
	msgs = append(msgs, history...)

	return o.callWithRetry(ctx, o.sut, msgs, o.cfg.SUTParams)
}

// callWithRetry retries transient failures up to the configured limit with
// a fixed delay. Permanent failures escalate immediately.
func (o *Orchestrator) callWithRetry(ctx context.Context, client agent.Client, msgs []agent.Message, params agent.Params) (*agent.Reply, error) {
	var lastErr error
	for attempt := 0; attempt <= o.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(o.cfg.RetryDelay):
			case <-ctx.Done():
				return nil, &agent.TransientError{Err: ctx.Err()}
			}
		}

		reply, err := func() (*agent.Reply, error) {
			reqCtx := ctx
			if o.cfg.RequestTimeout > 0 {
				var cancel context.CancelFunc
				reqCtx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
				defer cancel()
			}
			return client.Send(reqCtx, msgs, params)
		}()
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if agent.IsPermanent(err) {
			return nil, err
		}
		o.log.Warn("transient client error, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", o.cfg.RetryAttempts+1),
			zap.Error(err),
		)
	}
	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}

func (o *Orchestrator) appendTurn(state *ConversationState, role Role, reply *agent.Reply, decision *TurnDecision) *Turn {
	state.Turns = append(state.Turns, Turn{
		Index:     state.TurnIndex,
		Role:      role,
		Text:      reply.Text,
		Model:     reply.Model,
		Timestamp: time.Now().UTC(),
		Usage:     reply.Usage,
		Decision:  decision,
	})
	return &state.Turns[len(state.Turns)-1]
}

// extractFields merges newly found fields into the captured set. The set
// only ever grows: a field once captured is never dropped, keeping capture
// monotonic across turns.
func (o *Orchestrator) extractFields(ctx context.Context, state *ConversationState) error {
	var sb strings.Builder
	for _, t := range state.Turns {
		sb.WriteString(t.Text)
		sb.WriteString(" ")
	}

	found, err := o.extractor.Extract(ctx, sb.String(), o.cfg.FieldSpec)
	if err != nil {
		return err
	}
	for name, value := range found {
		if _, ok := state.CapturedFields[name]; !ok {
			state.CapturedFields[name] = value
		}
	}
	return nil
}

func (o *Orchestrator) criteriaSatisfied(state *ConversationState) bool {
	for _, c := range o.criteria {
		switch c {
		case CriterionAllFields:
			if len(state.CapturedFields) < len(o.cfg.FieldSpec) {
				return false
			}
		case CriterionSummaryProvided:
			if !state.SUTProvidedSummary {
				return false
			}
		case CriterionSummaryConfirmed:
			if !state.ProxyConfirmed {
				return false
			}
		}
	}
	return true
}

func (o *Orchestrator) missingFields(state *ConversationState) []string {
	var missing []string
	for name := range o.cfg.FieldSpec {
		if _, ok := state.CapturedFields[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// finish runs the classifier's final pass and assembles the outcome.
func (o *Orchestrator) finish(terminal State, state *ConversationState, contract Contract, failures []FailureRecord, usage agent.Usage) *Result {
	failures = append(failures, o.classifier.InspectFinal(FinalInput{
		State:         terminal,
		Elapsed:       state.Elapsed(),
		Timeout:       o.cfg.Timeout,
		TurnsTaken:    state.TurnIndex,
		FieldSpecSize: len(o.cfg.FieldSpec),
		Captured:      state.CapturedFields,
		MissingFields: o.missingFields(state),
	})...)

	res := &Result{
		State:    terminal,
		Turns:    state.Turns,
		Contract: contract,
		Captured: state.CapturedFields,
		Usage:    usage,
		Elapsed:  state.Elapsed(),
		Turn:     state.TurnIndex,
	}
	res.Outcome = o.assembleOutcome(terminal, state, failures)

	o.log.Info("run finished",
		zap.String("state", string(terminal)),
		zap.String("outcome", string(res.Outcome.Status)),
		zap.Int("completion_percent", res.Outcome.CompletionPercent),
		zap.Int("turns", state.TurnIndex),
		zap.Duration("elapsed", res.Elapsed),
		zap.Int("failures", res.Outcome.TotalFailures),
	)
	return res
}

func (o *Orchestrator) assembleOutcome(terminal State, state *ConversationState, failures []FailureRecord) Outcome {
	out := Outcome{
		State:             terminal,
		CompletionPercent: CompletionPercent(len(state.CapturedFields), len(o.cfg.FieldSpec)),
		Failures:          failures,
		TotalFailures:     len(failures),
	}

	switch terminal {
	case StateCompletedSuccess:
		out.Status = OutcomeSuccess
	case StateCompletedPartial:
		out.Status = OutcomePartial
	default:
		out.Status = OutcomeFailed
	}

	if state.SUTProvidedSummary {
		out.SuccessIndicators = append(out.SuccessIndicators, "role_summary_provided")
	}
	if state.ProxyConfirmed {
		out.SuccessIndicators = append(out.SuccessIndicators, "user_confirmed_summary")
	}

	switch terminal {
	case StateTimedOut:
		out.Issues = append(out.Issues, "conversation_timeout")
	case StateMaxTurnsExhausted:
		out.Issues = append(out.Issues, "max_turns_exhausted")
	case StateFailed:
		out.Issues = append(out.Issues, "run_failed")
	}
	if !state.SUTProvidedSummary {
		out.Issues = append(out.Issues, "no_role_summary_provided")
	} else if !state.ProxyConfirmed {
		out.Issues = append(out.Issues, "user_did_not_confirm")
	}

	return out
}
