package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/yairfalse/sweeper/types"
)

// regoQuery wraps a prepared OPA query for a single rule. Rego rules
// are an extension point for teams whose preservation criteria outgrow
// the declarative matchers; the module must define data.sweeper.preserve.
type regoQuery struct {
	prepared rego.PreparedEvalQuery
}

// compileRego compiles a rule's rego module once at load time so that
// per-resource evaluation stays deterministic and allocation-light.
func compileRego(name, module string) (*regoQuery, error) {
	prepared, err := rego.New(
		rego.Query("data.sweeper.preserve"),
		rego.Module(name+".rego", module),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to compile rego module: %w", err)
	}
	return &regoQuery{prepared: prepared}, nil
}

// Preserve evaluates the query against a resource. An evaluation error
// resolves to preserve: the policy engine never lets a broken rule
// widen the delete set.
func (q *regoQuery) Preserve(res *types.Resource) bool {
	results, err := q.prepared.Eval(context.Background(), rego.EvalInput(regoInput(res)))
	if err != nil {
		return true
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false
	}
	preserve, ok := results[0].Expressions[0].Value.(bool)
	return ok && preserve
}

// regoInput flattens a resource into the shape policies evaluate.
func regoInput(res *types.Resource) map[string]any {
	return map[string]any{
		"id":      res.ID,
		"type":    res.Type,
		"service": res.Service,
		"region":  res.Region,
		"account": res.Account,
		"name":    res.Name,
		"arn":     res.ARN,
		"global":  res.Global,
		"tags":    res.Tags,
	}
}
