// Package rules provides the CEL-Go based advisory rule engine.
// Advisory rules are tenant-defined expressions over the facts of a
// finished analysis; when one fires it attaches an advisory to the
// record. Advisories never change the score, the risk tier, or the
// scorer's own triggered rules.
package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-integrity/kestrel/internal/domain"
)

// Engine compiles and evaluates advisory rules.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates an advisory rule engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment exposing analysis facts
	env, err := cel.NewEnv(
		cel.Variable("score", cel.IntType),
		cel.Variable("risk", cel.StringType),
		cel.Variable("predatory", cel.BoolType),
		cel.Variable("match_confidence", cel.DoubleType),
		cel.Variable("funding_count", cel.IntType),
		cel.Variable("coi_count", cel.IntType),
		cel.Variable("affiliation_count", cel.IntType),
		cel.Variable("commercial_funding", cel.BoolType),
		cel.Variable("commercial_affiliation", cel.BoolType),
		cel.Variable("promotional", cel.BoolType),
		cel.Variable("has_issn", cel.BoolType),
		cel.Variable("has_doi", cel.BoolType),
		cel.Variable("has_journal", cel.BoolType),
		cel.Variable("dimensions", cel.MapType(cel.StringType, cel.IntType)),
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

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// Evaluate runs all loaded rules against the analysis result in
// parallel and returns the advisories that fired, in rule ID order
// within the evaluation batch. An expression that errors at runtime
// is skipped; a bad rule must not block the analysis.
func (e *Engine) Evaluate(result *domain.AnalysisResult) []domain.Advisory {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := activationFor(result)

	fired := make([]*domain.Advisory, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			out, _, err := r.Program.Eval(activation)
			if err != nil {
				return
			}
			if b, ok := out.(types.Bool); ok && bool(b) {
				fired[idx] = &domain.Advisory{
					RuleID:   r.Config.ID,
					Name:     r.Config.Name,
					Severity: r.Config.Severity,
					Message:  r.Config.Description,
				}
			}
		}(i, rule)
	}

	wg.Wait()

	var advisories []domain.Advisory
	for _, adv := range fired {
		if adv != nil {
			advisories = append(advisories, *adv)
		}
	}
	// Stable output order regardless of map iteration
	sort.Slice(advisories, func(i, j int) bool {
		return advisories[i].RuleID < advisories[j].RuleID
	})
	return advisories
}

// activationFor flattens an analysis result into CEL variables.
func activationFor(result *domain.AnalysisResult) map[string]any {
	dims := make(map[string]int, len(result.Categories))
	for _, c := range result.Categories {
		dims[c.Name] = c.Score
	}

	commercialFunding := false
	commercialAffiliation := false
	promotional := false
	for _, c := range result.Categories {
		switch c.Name {
		case "Funding-Outcome Alignment":
			commercialFunding = c.Score > 0
		case "Author-Institution Network":
			commercialAffiliation = c.Score > 0
		case "Textual Bias":
			promotional = c.Score > 0
		}
	}

	return map[string]any{
		"score":                  result.Score,
		"risk":                   string(result.OverallRisk),
		"predatory":              result.Evidence.PredatoryCheck.PredatoryFlag,
		"match_confidence":       result.Evidence.PredatoryCheck.Confidence,
		"funding_count":          len(result.Evidence.Funding),
		"coi_count":              len(result.Evidence.COIStatements),
		"affiliation_count":      len(result.Evidence.Affiliations),
		"commercial_funding":     commercialFunding,
		"commercial_affiliation": commercialAffiliation,
		"promotional":            promotional,
		"has_issn":               result.Evidence.Metadata.ISSN != "",
		"has_doi":                result.Evidence.Metadata.DOI != "",
		"has_journal":            result.Evidence.Metadata.Journal != "",
		"dimensions":             dims,
	}
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
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
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
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

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
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
