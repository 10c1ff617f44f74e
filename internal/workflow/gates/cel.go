package gates

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"procureflow/internal/workflow/models"
)

// CELGate evaluates a CEL expression against a record snapshot. The expression
// must yield a bool; true means the transition is blocked. Compilation happens
// once at registration, so a malformed expression fails startup rather than a
// live request.
type CELGate struct {
	name    string
	program cel.Program
	reason  string
}

// NewCELGate compiles expr in an environment exposing the snapshot fields a
// gate may inspect.
func NewCELGate(name, expr, reason string) (*CELGate, error) {
	env, err := cel.NewEnv(
		cel.Variable("record_type", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("risk_score", cel.DoubleType),
		cel.Variable("has_risk_acceptance", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile gate %s: %w", name, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("gate %s: expression must yield bool, got %s", name, ast.OutputType())
	}

	program, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program gate %s: %w", name, err)
	}

	return &CELGate{name: name, program: program, reason: reason}, nil
}

func (g *CELGate) Name() string { return g.name }

// Evaluate runs the compiled program against the snapshot.
func (g *CELGate) Evaluate(record *models.Record) (Decision, error) {
	out, _, err := g.program.Eval(map[string]any{
		"record_type":         string(record.Type),
		"status":              string(record.Status),
		"risk_level":          string(record.RiskLevel),
		"risk_score":          record.RiskScore,
		"has_risk_acceptance": record.HasRiskAcceptance(),
	})
	if err != nil {
		return Decision{}, fmt.Errorf("eval gate %s: %w", g.name, err)
	}
	blocked, ok := out.Value().(bool)
	if !ok {
		return Decision{}, fmt.Errorf("gate %s: result not bool", g.name)
	}
	if blocked {
		return Blocked(g.reason), nil
	}
	return Clear(), nil
}
