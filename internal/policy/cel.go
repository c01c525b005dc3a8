// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/kusari-oss/mend/internal/core/models"
)

// Rule is a compiled review rule
type Rule struct {
	Name       string
	Expression string
	program    cel.Program
}

// RuleCompiler compiles CEL expressions over an `issue` variable
type RuleCompiler struct {
	env *cel.Env
}

// NewRuleCompiler creates a compiler with the issue environment
func NewRuleCompiler() (*RuleCompiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("issue", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %w", err)
	}
	return &RuleCompiler{env: env}, nil
}

// Compile parses, type-checks and plans one rule
func (c *RuleCompiler) Compile(rule models.PolicyRule) (*Rule, error) {
	ast, iss := c.env.Parse(rule.When)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("error parsing rule %s: %w", rule.Name, iss.Err())
	}

	checked, iss := c.env.Check(ast)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("error type-checking rule %s: %w", rule.Name, iss.Err())
	}

	program, err := c.env.Program(checked)
	if err != nil {
		return nil, fmt.Errorf("error compiling rule %s: %w", rule.Name, err)
	}

	return &Rule{Name: rule.Name, Expression: rule.When, program: program}, nil
}

// Matches evaluates the rule against an issue
func (r *Rule) Matches(issue models.Issue) (bool, error) {
	result, _, err := r.program.Eval(map[string]interface{}{
		"issue": issueVars(issue),
	})
	if err != nil {
		return false, fmt.Errorf("error evaluating rule %s: %w", r.Name, err)
	}

	if result.Type() != types.BoolType {
		return false, fmt.Errorf("rule %s did not evaluate to a boolean", r.Name)
	}

	return result.Value().(bool), nil
}

// issueVars exposes an issue to CEL using its serialized field names
func issueVars(issue models.Issue) map[string]interface{} {
	return map[string]interface{}{
		"kind":         string(issue.Kind),
		"severity":     string(issue.Severity),
		"message":      issue.Message,
		"file_path":    issue.FilePath,
		"line_number":  int64(issue.LineNumber),
		"origin_check": issue.OriginCheck,
	}
}
