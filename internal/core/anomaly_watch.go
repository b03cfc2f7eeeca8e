package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// AnomalyWatch pairs a name with a compiled CEL predicate evaluated against a
// snapshot metric map. Expressions reference metrics through the `snap`
// variable, e.g. `snap["budget_utilization"] > 1.1`.
type AnomalyWatch struct {
	Name    string
	Expr    string
	program cel.Program
}

func newAnomalyCELEnv() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("snap", cel.MapType(cel.StringType, cel.DoubleType)))
}

// CompileAnomalyWatch compiles and type-checks the expression once; the
// program is reused for every subsequent snapshot.
func CompileAnomalyWatch(name, expr string) (AnomalyWatch, error) {
	name = strings.TrimSpace(name)
	expr = strings.TrimSpace(expr)
	if name == "" {
		return AnomalyWatch{}, errors.New("anomaly watch name required")
	}
	if expr == "" {
		return AnomalyWatch{}, errors.New("anomaly watch expression required")
	}
	env, err := newAnomalyCELEnv()
	if err != nil {
		return AnomalyWatch{}, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return AnomalyWatch{}, fmt.Errorf("compile watch %s: %w", name, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return AnomalyWatch{}, fmt.Errorf("watch %s must evaluate to bool, got %s", name, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return AnomalyWatch{}, fmt.Errorf("program watch %s: %w", name, err)
	}
	return AnomalyWatch{Name: name, Expr: expr, program: program}, nil
}

// Triggered evaluates the watch against the snapshot metric map.
func (w AnomalyWatch) Triggered(metrics map[string]float64) (bool, error) {
	if w.program == nil {
		return false, fmt.Errorf("watch %s not compiled", w.Name)
	}
	out, _, err := w.program.Eval(map[string]any{"snap": metrics})
	if err != nil {
		return false, fmt.Errorf("eval watch %s: %w", w.Name, err)
	}
	fired, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("watch %s returned non-bool", w.Name)
	}
	return fired, nil
}

// DefaultAnomalyWatches returns the built-in watch set.
func DefaultAnomalyWatches() ([]AnomalyWatch, error) {
	specs := []struct{ name, expr string }{
		{"budget_overrun", `snap["budget_utilization"] > 1.1`},
		{"schedule_slip", `snap["schedule_slip_days"] > 30.0`},
		{"engagement_collapse", `snap["engagement_score"] < 0.2 && snap["milestone_completion"] < 0.5`},
	}
	watches := make([]AnomalyWatch, 0, len(specs))
	for _, s := range specs {
		w, err := CompileAnomalyWatch(s.name, s.expr)
		if err != nil {
			return nil, err
		}
		watches = append(watches, w)
	}
	return watches, nil
}
