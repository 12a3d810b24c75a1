// Package rules provides the CEL-Go based flag rule engine. Flag rules
// are operator-defined boolean expressions over a measurement and its
// scored outcome; a matching rule attaches its display tag to the audit.
package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/cashout-watch/kestrel/internal/domain"
	"github.com/cashout-watch/kestrel/internal/scoring"
)

// Engine is the CEL-based flag rule engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.FlagRule
	Program cel.Program
}

// NewEngine creates a new flag rule engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment with measurement and outcome variables
	env, err := cel.NewEnv(
		cel.Variable("applied_amount", cel.DoubleType),
		cel.Variable("received_amount", cel.DoubleType),
		cel.Variable("applied_currency", cel.StringType),
		cel.Variable("received_currency", cel.StringType),
		// duration_minutes is -1.0 when the duration is unavailable
		cel.Variable("duration_minutes", cel.DoubleType),
		// loss_pct is the effective loss percentage; has_loss_pct tells
		// whether it was computable at all
		cel.Variable("loss_pct", cel.DoubleType),
		cel.Variable("has_loss_pct", cel.BoolType),
		cel.Variable("severe_loss", cel.BoolType),
		cel.Variable("kyc_status", cel.StringType),
		cel.Variable("settlement_status", cel.StringType),
		cel.Variable("total_score", cel.IntType),
		cel.Variable("overall_code", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without loading it.
func (e *Engine) ValidateRule(cfg *domain.FlagRule) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.FlagRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(configs []*domain.FlagRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateInput holds the data flag rules are evaluated against.
type EvaluateInput struct {
	TenantID      string
	MeasurementID string
	Measurement   *domain.Measurement
	Outcome       *scoring.Outcome
}

// EvaluateAll evaluates all loaded rules in parallel.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.FlagResult, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	activation := buildActivation(input)

	// Parallel evaluation bounded by a semaphore
	results := make([]domain.FlagResult, len(rules))
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	return results, nil
}

// buildActivation flattens the measurement and outcome into CEL variables.
func buildActivation(input *EvaluateInput) map[string]any {
	m := input.Measurement
	out := input.Outcome

	durationMinutes := -1.0
	if out.DurationMinutes != nil {
		durationMinutes = *out.DurationMinutes
	}

	lossPct := 0.0
	hasLossPct := false
	severeLoss := false
	if fx := out.Fx(); fx != nil && fx.Err == "" {
		severeLoss = fx.SevereLoss
		if pct := fx.EffectiveLossPct(); pct != nil {
			lossPct = pct.InexactFloat64()
			hasLossPct = true
		}
	}

	return map[string]any{
		"applied_amount":    m.AppliedAmount.InexactFloat64(),
		"received_amount":   m.ReceivedAmount.InexactFloat64(),
		"applied_currency":  m.AppliedCurrency,
		"received_currency": m.ReceivedCurrency,
		"duration_minutes":  durationMinutes,
		"loss_pct":          lossPct,
		"has_loss_pct":      hasLossPct,
		"severe_loss":       severeLoss,
		"kyc_status":        m.KycStatus,
		"settlement_status": m.SettlementStatus,
		"total_score":       int64(out.Overall.TotalScore),
		"overall_code":      out.Overall.OverallCode,
	}
}

// evaluateRule evaluates a single rule and returns the result.
func evaluateRule(rule *CompiledRule, activation map[string]any) domain.FlagResult {
	start := time.Now()

	result := domain.FlagResult{
		RuleID:   rule.Config.ID,
		Severity: rule.Config.Severity,
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Err = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	if matched, ok := out.(types.Bool); ok && bool(matched) {
		result.Matched = true
		result.Tag = rule.Config.Tag
	}
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.FlagRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.FlagRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.FlagRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.FlagRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
