package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"mailedge/internal/config"
	"mailedge/internal/envelope"
	"mailedge/internal/logger"
	celeval "mailedge/pkg/cel"
	"mailedge/pkg/metrics"
)

type rule struct {
	name    string
	program cel.Program
}

// RulePolicy refuses an envelope when any configured expression matches it.
type RulePolicy struct {
	rules  []rule
	logger logger.Logger
}

func NewRulePolicy(rules []config.PolicyRuleConfig, log logger.Logger) (*RulePolicy, error) {
	eval, err := celeval.NewEvaluator()
	if err != nil {
		return nil, err
	}

	p := &RulePolicy{logger: log}
	for _, r := range rules {
		program, err := eval.Compile(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", r.Name, err)
		}
		p.rules = append(p.rules, rule{name: r.Name, program: program})
	}
	return p, nil
}

// Apply fails open: a rule that errors during evaluation is logged and
// skipped.
func (p *RulePolicy) Apply(ctx context.Context, env *envelope.Envelope) error {
	if len(p.rules) == 0 {
		return nil
	}

	vars := policyVars(env)
	for _, r := range p.rules {
		matched, err := celeval.Eval(ctx, r.program, vars)
		if err != nil {
			p.logger.WarnwCtx(ctx, "Policy evaluation failed", "rule", r.name, "error", err)
			continue
		}
		if matched {
			metrics.PolicyRejectionsTotal.WithLabelValues(r.name).Inc()
			p.logger.InfowCtx(ctx, "Envelope refused by policy", "rule", r.name)
			return &Error{Reason: "refused by policy " + r.name}
		}
	}
	return nil
}

func policyVars(env *envelope.Envelope) map[string]interface{} {
	client := map[string]string{
		"ip":       env.Client.IP,
		"name":     env.Client.Name,
		"protocol": env.Client.Protocol,
	}
	if env.Client.Host != "" {
		client["host"] = env.Client.Host
	}

	headers := make(map[string]string, env.Header.Len())
	fields := env.Header.Fields()
	for fields.Next() {
		key := strings.ToLower(fields.Key())
		if _, ok := headers[key]; !ok {
			headers[key] = fields.Value()
		}
	}

	size := int64(len(env.Body))
	if msg, err := env.Bytes(); err == nil {
		size = int64(len(msg))
	}

	return map[string]interface{}{
		celeval.VarSender:     env.Sender,
		celeval.VarRecipients: env.Recipients,
		celeval.VarClient:     client,
		celeval.VarHeaders:    headers,
		celeval.VarSize:       size,
	}
}
