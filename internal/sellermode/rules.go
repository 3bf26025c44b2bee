package sellermode

import (
	"fmt"
	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"
)

// Signals: agregat per seller dalam window recompute.
type Signals struct {
	OrderCount     int64
	RTOCount       int64
	ComplaintCount int64
	Balance        decimal.Decimal
}

func (s Signals) RTORate() float64 {
	if s.OrderCount == 0 {
		return 0
	}
	return float64(s.RTOCount) / float64(s.OrderCount)
}

// Rule: ekspresi CEL boolean atas variabel order_count, rto_count, rto_rate,
// complaint_count, balance. Rule pertama yang true menentukan mode.
type Rule struct {
	Mode Mode
	Expr string
}

// DefaultRules urut dari paling berat.
func DefaultRules() []Rule {
	return []Rule{
		{Mode: Isolated, Expr: `order_count >= 20 && rto_rate >= 0.5`},
		{Mode: FinancialRisk, Expr: `balance < -1000000.0`},
		{Mode: StabilityLimited, Expr: `order_count >= 20 && rto_rate >= 0.3`},
		{Mode: QualityIssue, Expr: `complaint_count >= 10`},
		{Mode: Watch, Expr: `order_count >= 5 && rto_rate >= 0.15`},
	}
}

type compiledRule struct {
	mode Mode
	prg  cel.Program
}

type RuleEvaluator struct {
	rules []compiledRule
}

func NewRuleEvaluator(rules []Rule) (*RuleEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("order_count", cel.IntType),
		cel.Variable("rto_count", cel.IntType),
		cel.Variable("complaint_count", cel.IntType),
		cel.Variable("rto_rate", cel.DoubleType),
		cel.Variable("balance", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	out := &RuleEvaluator{}
	for _, r := range rules {
		if _, err := Parse(string(r.Mode)); err != nil {
			return nil, err
		}
		ast, iss := env.Compile(r.Expr)
		if iss.Err() != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Mode, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %s: expression must be bool, got %s", r.Mode, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Mode, err)
		}
		out.rules = append(out.rules, compiledRule{mode: r.Mode, prg: prg})
	}
	return out, nil
}

func (e *RuleEvaluator) Evaluate(s Signals) (Mode, error) {
	balance, _ := s.Balance.Float64()
	vars := map[string]any{
		"order_count":     s.OrderCount,
		"rto_count":       s.RTOCount,
		"complaint_count": s.ComplaintCount,
		"rto_rate":        s.RTORate(),
		"balance":         balance,
	}
	for _, r := range e.rules {
		val, _, err := r.prg.Eval(vars)
		if err != nil {
			return "", fmt.Errorf("eval rule %s: %w", r.mode, err)
		}
		if b, ok := val.Value().(bool); ok && b {
			return r.mode, nil
		}
	}
	return Normal, nil
}

// MergeRules: override per mode dari config; string kosong = pakai default.
func MergeRules(overrides map[Mode]string) []Rule {
	rules := DefaultRules()
	for i, r := range rules {
		if expr := overrides[r.Mode]; expr != "" {
			rules[i].Expr = expr
		}
	}
	return rules
}
