package engine

import (
	"sort"

	"github.com/ignite/creative-optimizer/internal/domain"
)

// GateRuleName labels the minimum-sample-size gate in a rationale.
const GateRuleName = "min_sample_size"

// OrderedRules returns the rules in evaluation order: priority descending,
// file order within a priority.
func (p Policy) OrderedRules() []Rule {
	rules := append([]Rule(nil), p.Rules...)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].EffectivePriority() > rules[j].EffectivePriority()
	})
	return rules
}

// evaluate returns every rule that matches the KPI, in evaluation order.
func evaluate(kpi domain.KPIRecord, rules []Rule) []domain.RuleMatch {
	matches := []domain.RuleMatch{}
	for _, r := range rules {
		observed := kpi.Metric(r.Metric)
		if !r.Matches(observed) {
			continue
		}
		matches = append(matches, domain.RuleMatch{
			Rule:      r.Name,
			Metric:    r.Metric,
			Operator:  string(r.Operator.Canonical()),
			Threshold: r.threshold(),
			Observed:  observed,
			Action:    r.Action,
			Priority:  r.EffectivePriority(),
		})
	}
	return matches
}

// resolve picks the action from the matched rules: the highest-priority group
// is decisive, and within it the most conservative action wins.
func resolve(matches []domain.RuleMatch, fallback domain.Action) domain.Action {
	if len(matches) == 0 {
		return fallback
	}
	top := matches[0].Priority
	action := matches[0].Action
	for _, m := range matches[1:] {
		if m.Priority != top {
			break
		}
		if m.Action.Conservatism() > action.Conservatism() {
			action = m.Action
		}
	}
	return action
}
