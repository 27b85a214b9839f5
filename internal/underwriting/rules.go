package underwriting

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/brokerops/ocpd-engine/internal/domain"
)

// RuleEngine evaluates tenant-configured CEL referral rules on top of the
// built-in triggers. Rules are compiled once and hot-reloadable.
type RuleEngine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	historyGetter HistoryGetter
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.UnderwritingRule
	Program cel.Program
}

// HistoryGetter returns the number of quotes an applicant requested within
// the given window, for the quote_count rule variable.
type HistoryGetter func(ctx context.Context, tenantID, applicantID string, windowDays int) (int64, error)

// NewRuleEngine creates a new CEL rule engine. The history getter may be
// nil, in which case quote_count is always zero.
func NewRuleEngine(historyGetter HistoryGetter) (*RuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("sum_insured", cel.DoubleType),
		cel.Variable("territorial_scope", cel.StringType),
		cel.Variable("years_in_business", cel.IntType),
		cel.Variable("fleet_size", cel.IntType),
		cel.Variable("claim_count", cel.IntType),
		cel.Variable("high_value_goods", cel.BoolType),
		cel.Variable("unattended_parking", cel.BoolType),
		cel.Variable("selected_clauses", cel.ListType(cel.StringType)),
		cel.Variable("clause_count", cel.IntType),
		cel.Variable("base_premium", cel.DoubleType),
		cel.Variable("total_premium", cel.DoubleType),
		cel.Variable("variant", cel.StringType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("quote_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &RuleEngine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		historyGetter: historyGetter,
	}, nil
}

// ValidateRule compiles a rule without mutating the loaded set.
func (e *RuleEngine) ValidateRule(rule *domain.UnderwritingRule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *RuleEngine) LoadRule(rule *domain.UnderwritingRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.compiledRules[rule.ID] = compiled
	return nil
}

// LoadRules compiles and loads every enabled rule.
func (e *RuleEngine) LoadRules(rules []*domain.UnderwritingRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules replaces the loaded rule set atomically.
func (e *RuleEngine) ReloadRules(rules []*domain.UnderwritingRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// GetLoadedRules returns the currently loaded rules.
func (e *RuleEngine) GetLoadedRules() []*domain.UnderwritingRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.UnderwritingRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// RuleCount returns the number of loaded rules.
func (e *RuleEngine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// Close clears the engine.
func (e *RuleEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

// EvalContext carries the quote data a rule evaluation runs against.
type EvalContext struct {
	TenantID    string
	ApplicantID string
	Input       domain.CalculationInput
	Result      domain.CalculationResult

	// HistoryWindowDays bounds the quote_count lookup; zero disables it.
	HistoryWindowDays int
}

// Evaluate runs every loaded rule against the quote and returns the
// referral reasons of rules that fired, in rule-ID order so the output is
// deterministic. A rule that errors at runtime is skipped; referral rules
// fail open towards auto-approval because the built-in triggers already
// cover the mandatory policy.
func (e *RuleEngine) Evaluate(ctx context.Context, ec *EvalContext) []string {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Rule.ID < rules[j].Rule.ID })

	var quoteCount int64
	if e.historyGetter != nil && ec.HistoryWindowDays > 0 && ec.ApplicantID != "" {
		count, err := e.historyGetter(ctx, ec.TenantID, ec.ApplicantID, ec.HistoryWindowDays)
		if err == nil {
			quoteCount = count
		}
	}

	clauses := make([]string, 0, len(ec.Input.SelectedClauses))
	for _, t := range ec.Input.SelectedClauses {
		clauses = append(clauses, string(t))
	}

	activation := map[string]any{
		"sum_insured":        ec.Input.SumInsured.InexactFloat64(),
		"territorial_scope":  string(ec.Input.TerritorialScope),
		"years_in_business":  int64(ec.Input.YearsInBusiness),
		"fleet_size":         int64(ec.Input.FleetSize),
		"claim_count":        int64(ec.Input.APK.ClaimsLastThreeYears),
		"high_value_goods":   ec.Input.APK.HighValueGoods,
		"unattended_parking": ec.Input.APK.UnattendedParking,
		"selected_clauses":   clauses,
		"clause_count":       int64(len(clauses)),
		"base_premium":       ec.Result.Breakdown.BasePremium.InexactFloat64(),
		"total_premium":      ec.Result.Breakdown.Total.InexactFloat64(),
		"variant":            string(ec.Result.Breakdown.Variant),
		"risk_level":         string(ec.Result.RiskLevel),
		"quote_count":        quoteCount,
	}

	var reasons []string
	for _, rule := range rules {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			continue
		}
		if fired, ok := out.(types.Bool); ok && bool(fired) {
			reasons = append(reasons, rule.Rule.Reason)
		}
	}

	return reasons
}

func (e *RuleEngine) compileRule(rule *domain.UnderwritingRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{
		Rule:    rule,
		Program: program,
	}, nil
}
