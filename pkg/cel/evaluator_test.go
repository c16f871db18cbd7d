package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vars() map[string]interface{} {
	return map[string]interface{}{
		VarSender:     "alice@example.com",
		VarRecipients: []string{"bob@example.com", "carol@blocked.example"},
		VarClient: map[string]string{
			"ip":       "192.0.2.1",
			"name":     "[192.0.2.1]",
			"protocol": "HTTP",
		},
		VarHeaders: map[string]string{"subject": "hello"},
		VarSize:    int64(512),
	}
}

func TestCompile(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "sender comparison", expr: `sender == "alice@example.com"`},
		{name: "recipient macro", expr: `recipients.exists(r, r.endsWith("@example.com"))`},
		{name: "non bool output", expr: `sender`, wantErr: true},
		{name: "syntax error", expr: `sender ==`, wantErr: true},
		{name: "undefined variable", expr: `payload.status == "x"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eval.Compile(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEval(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		expr string
		want bool
	}{
		{expr: PolicyExpressionExamples["null_sender"], want: false},
		{expr: PolicyExpressionExamples["recipient_domain"], want: true},
		{expr: PolicyExpressionExamples["plain_http"], want: true},
		{expr: PolicyExpressionExamples["unresolved_client"], want: true},
		{expr: PolicyExpressionExamples["missing_subject"], want: false},
		{expr: PolicyExpressionExamples["oversized"], want: false},
		{expr: PolicyExpressionExamples["ehlo_mismatch"], want: false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			program, err := eval.Compile(tt.expr)
			require.NoError(t, err)

			got, err := Eval(context.Background(), program, vars())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPolicyExpressionExamplesCompile(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	for name, expr := range PolicyExpressionExamples {
		assert.NoError(t, eval.Validate(expr), name)
	}
}

func TestEval_MissingVariable(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	program, err := eval.Compile(`sender == ""`)
	require.NoError(t, err)

	_, err = Eval(context.Background(), program, map[string]interface{}{})
	assert.Error(t, err)
}
