package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ignite/creative-optimizer/internal/domain"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPolicy is wrapped by every policy validation failure.
var ErrInvalidPolicy = errors.New("invalid policy")

// LoadPolicy reads a policy file (YAML or JSON) and validates it.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy %s: %w", path, err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// ParsePolicy decodes and validates a policy. Unknown keys are rejected so a
// misspelled field fails loudly instead of silently defaulting.
func ParsePolicy(data []byte) (*Policy, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Policy
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	p.normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePolicy writes the policy in the same shape ParsePolicy reads.
func SavePolicy(path string, p Policy) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling policy: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (p *Policy) normalize() {
	for i := range p.Rules {
		r := &p.Rules[i]
		if op := r.Operator.Canonical(); op != "" {
			r.Operator = op
		}
		r.Action = domain.Action(strings.ToUpper(strings.TrimSpace(string(r.Action))))
		r.Metric = strings.ToLower(strings.TrimSpace(r.Metric))
	}
	if p.DefaultAction != "" {
		p.DefaultAction = domain.Action(strings.ToUpper(string(p.DefaultAction)))
	}
	p.Cluster.RankMetric = strings.ToLower(strings.TrimSpace(p.Cluster.RankMetric))
}

// Validate reports every problem with the policy at once.
func (p Policy) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if p.MinSampleSize <= 0 {
		add("min_sample_size must be positive")
	}
	if p.ConfidentSampleSize < 0 {
		add("confident_sample_size must not be negative")
	}
	if p.DefaultAction != "" && !p.DefaultAction.Valid() {
		add("default_action %q is not one of SCALE, PAUSE, MAINTAIN, WATCH", p.DefaultAction)
	}
	if p.Cluster.MinSampleSize <= 0 {
		add("cluster.min_sample_size must be positive")
	}
	if p.Cluster.TopK <= 0 {
		add("cluster.top_k must be positive")
	}
	if p.Cluster.RankMetric != "" && !domain.KnownMetric(p.Cluster.RankMetric) {
		add("cluster.rank_metric %q is unknown", p.Cluster.RankMetric)
	}

	names := make(map[string]bool, len(p.Rules))
	for i, r := range p.Rules {
		label := fmt.Sprintf("rules[%d]", i)
		if r.Name != "" {
			label += " (" + r.Name + ")"
		}
		if r.Name == "" {
			add("%s: name is required", label)
		} else if names[r.Name] {
			add("%s: duplicate name", label)
		}
		names[r.Name] = true

		if r.Metric == "" {
			add("%s: metric is required", label)
		} else if !domain.KnownMetric(r.Metric) {
			add("%s: unknown metric %q", label, r.Metric)
		}
		op := r.Operator.Canonical()
		switch {
		case r.Operator == "":
			add("%s: operator is required", label)
		case op == "":
			add("%s: invalid operator %q", label, r.Operator)
		case op != OpIsUndefined && r.Threshold == nil:
			add("%s: threshold is required for operator %s", label, op)
		}
		if r.Action == "" {
			add("%s: action is required", label)
		} else if !r.Action.Valid() {
			add("%s: invalid action %q", label, r.Action)
		}
	}
	for _, msg := range priorityInversions(p.Rules) {
		add("%s", msg)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPolicy, strings.Join(problems, "; "))
	}
	return nil
}

// priorityInversions lists rules whose priority puts them above a rule with a
// more conservative action. Priorities may order rules within an action or
// tie actions together, but a PAUSE signal is never outranked by SCALE.
func priorityInversions(rules []Rule) []string {
	var out []string
	for _, lo := range rules {
		if !lo.Action.Valid() {
			continue
		}
		for _, hi := range rules {
			if !hi.Action.Valid() || hi.Action.Conservatism() <= lo.Action.Conservatism() {
				continue
			}
			if lo.EffectivePriority() > hi.EffectivePriority() {
				out = append(out, fmt.Sprintf("rule %q (%s, priority %d) outranks more conservative rule %q (%s, priority %d)",
					lo.Name, lo.Action, lo.EffectivePriority(), hi.Name, hi.Action, hi.EffectivePriority()))
			}
		}
	}
	return out
}
