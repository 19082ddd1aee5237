// Package engine turns KPI records into scale/pause/maintain/watch
// recommendations by evaluating an ordered, data-driven rule policy.
package engine

import (
	"strings"

	"github.com/ignite/creative-optimizer/internal/domain"
)

// Operator is a rule comparison operator.
type Operator string

const (
	OpGt          Operator = "gt"
	OpGte         Operator = "gte"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpEq          Operator = "eq"
	OpNe          Operator = "ne"
	OpIsUndefined Operator = "is_undefined"
)

var operatorAliases = map[string]Operator{
	"gt": OpGt, ">": OpGt,
	"gte": OpGte, ">=": OpGte,
	"lt": OpLt, "<": OpLt,
	"lte": OpLte, "<=": OpLte,
	"eq": OpEq, "==": OpEq, "=": OpEq,
	"ne": OpNe, "!=": OpNe,
	"is_undefined": OpIsUndefined,
}

// Canonical returns the canonical form of the operator, or "" if unknown.
func (o Operator) Canonical() Operator {
	return operatorAliases[strings.ToLower(strings.TrimSpace(string(o)))]
}

// Rule is one policy entry: when Metric compares to Threshold under Operator,
// the rule votes for Action. Rules with a higher Priority are decisive over
// lower ones; by default a rule's priority is the conservatism of its action,
// so PAUSE rules outrank SCALE rules. An explicit priority may reorder rules
// of one action or tie actions, but Validate rejects one that lifts a rule
// above a more conservative rule.
type Rule struct {
	Name      string        `yaml:"name" json:"name"`
	Metric    string        `yaml:"metric" json:"metric"`
	Operator  Operator      `yaml:"operator" json:"operator"`
	Threshold *float64      `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Action    domain.Action `yaml:"action" json:"action"`
	Priority  *int          `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// EffectivePriority is the explicit priority, or the action's conservatism.
func (r Rule) EffectivePriority() int {
	if r.Priority != nil {
		return *r.Priority
	}
	return r.Action.Conservatism()
}

func (r Rule) threshold() float64 {
	if r.Threshold == nil {
		return 0
	}
	return *r.Threshold
}

// Matches reports whether the observed value satisfies the rule. Comparison
// operators never match an undefined value.
func (r Rule) Matches(v domain.Ratio) bool {
	op := r.Operator.Canonical()
	if op == OpIsUndefined {
		return !v.Defined
	}
	if !v.Defined {
		return false
	}
	t := r.threshold()
	switch op {
	case OpGt:
		return v.Value > t
	case OpGte:
		return v.Value >= t
	case OpLt:
		return v.Value < t
	case OpLte:
		return v.Value <= t
	case OpEq:
		return v.Value == t
	case OpNe:
		return v.Value != t
	}
	return false
}

// ClusterPolicy configures the cluster analyzer and the insight summary.
type ClusterPolicy struct {
	MinSampleSize int64  `yaml:"min_sample_size" json:"min_sample_size"`
	TopK          int    `yaml:"top_k" json:"top_k"`
	RankMetric    string `yaml:"rank_metric,omitempty" json:"rank_metric,omitempty"`
}

// Policy is the full decision configuration. It is data, loaded from a file,
// and must validate before a cycle starts.
type Policy struct {
	Rules               []Rule        `yaml:"rules" json:"rules"`
	MinSampleSize       int64         `yaml:"min_sample_size" json:"min_sample_size"`
	ConfidentSampleSize int64         `yaml:"confident_sample_size,omitempty" json:"confident_sample_size,omitempty"`
	DefaultAction       domain.Action `yaml:"default_action,omitempty" json:"default_action,omitempty"`
	Cluster             ClusterPolicy `yaml:"cluster" json:"cluster"`
}

// RankMetric is the metric clusters are ranked by (roas unless configured).
func (p Policy) RankMetric() string {
	if p.Cluster.RankMetric == "" {
		return domain.MetricROAS
	}
	return p.Cluster.RankMetric
}

// confidentSampleSize is the sample at which confidence becomes high.
func (p Policy) confidentSampleSize() int64 {
	if p.ConfidentSampleSize > 0 {
		return p.ConfidentSampleSize
	}
	return p.MinSampleSize * 10
}

func (p Policy) defaultAction() domain.Action {
	if p.DefaultAction == "" {
		return domain.ActionMaintain
	}
	return p.DefaultAction
}
