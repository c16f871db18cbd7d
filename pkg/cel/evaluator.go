package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// Variables available to envelope policy expressions.
const (
	VarSender     = "sender"
	VarRecipients = "recipients"
	VarClient     = "client"
	VarHeaders    = "headers"
	VarSize       = "message_size"
)

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable(VarSender, cel.StringType),
		cel.Variable(VarRecipients, cel.ListType(cel.StringType)),
		cel.Variable(VarClient, cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable(VarHeaders, cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable(VarSize, cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// Compile checks that expression is a boolean predicate and returns its
// program.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}

func (e *Evaluator) Validate(expression string) error {
	_, err := e.Compile(expression)
	return err
}

func Eval(ctx context.Context, program cel.Program, vars map[string]interface{}) (bool, error) {
	result, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	matched, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return matched, nil
}
