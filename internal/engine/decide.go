package engine

import (
	"github.com/ignite/creative-optimizer/internal/domain"
)

// Decide applies the policy to one KPI record. It is deterministic: the same
// record and policy always yield an identical recommendation.
//
// A record whose sample size is below the policy minimum is always WATCH with
// insufficient_data confidence, however extreme its other metrics are.
func Decide(kpi domain.KPIRecord, policy Policy) domain.Recommendation {
	return decide(kpi, policy, policy.OrderedRules())
}

// DecideAll decides every record, preserving input order.
func DecideAll(kpis []domain.KPIRecord, policy Policy) []domain.Recommendation {
	rules := policy.OrderedRules()
	out := make([]domain.Recommendation, 0, len(kpis))
	for _, k := range kpis {
		out = append(out, decide(k, policy, rules))
	}
	return out
}

func decide(kpi domain.KPIRecord, policy Policy, rules []Rule) domain.Recommendation {
	rec := domain.Recommendation{
		AdID:        kpi.Key,
		SampleSize:  kpi.SampleSize,
		EvaluatedAt: kpi.AsOf,
	}

	if kpi.SampleSize < policy.MinSampleSize {
		rec.Action = domain.ActionWatch
		rec.Confidence = domain.ConfidenceInsufficient
		rec.Rationale = []domain.RuleMatch{{
			Rule:      GateRuleName,
			Metric:    "sample_size",
			Operator:  string(OpLt),
			Threshold: float64(policy.MinSampleSize),
			Observed:  domain.Ratio{Value: float64(kpi.SampleSize), Defined: true},
			Action:    domain.ActionWatch,
			Priority:  domain.ActionWatch.Conservatism(),
		}}
		return rec
	}

	matches := evaluate(kpi, rules)
	rec.Rationale = matches
	rec.Action = resolve(matches, policy.defaultAction())
	rec.Confidence = domain.ConfidenceHigh
	if kpi.SampleSize < policy.confidentSampleSize() {
		rec.Confidence = domain.ConfidenceModerate
	}
	return rec
}
