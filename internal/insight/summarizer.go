// Package insight assembles decisions and cluster summaries into the payload
// handed to brief generation. It selects and orders; it computes nothing new.
package insight

import (
	"sort"

	"github.com/ignite/creative-optimizer/internal/cluster"
	"github.com/ignite/creative-optimizer/internal/domain"
)

// Summarize builds the insight payload. Per dimension it keeps at most topK
// clusters, the highest-lift ones among those that are confident and have a
// defined lift. Dimensions keep the order in which clusters first list them.
// Every recommendation is carried over as given.
func Summarize(recs []domain.Recommendation, clusters []domain.ClusterSummary, topK int) domain.InsightPayload {
	payload := domain.InsightPayload{
		TopK:            topK,
		Recommendations: append([]domain.Recommendation{}, recs...),
		ActionCounts:    CountActions(recs),
		Dimensions:      []domain.DimensionInsight{},
	}
	for _, r := range recs {
		if r.EvaluatedAt.After(payload.AsOf) {
			payload.AsOf = r.EvaluatedAt
		}
	}

	index := make(map[string]int)
	for _, c := range clusters {
		i, ok := index[c.Dimension]
		if !ok {
			i = len(payload.Dimensions)
			index[c.Dimension] = i
			payload.Dimensions = append(payload.Dimensions, domain.DimensionInsight{
				Dimension: c.Dimension,
				Clusters:  []domain.ClusterSummary{},
			})
		}
		if c.LowConfidence || !c.RankLift.Defined {
			continue
		}
		payload.Dimensions[i].Clusters = append(payload.Dimensions[i].Clusters, c)
	}
	for i := range payload.Dimensions {
		d := &payload.Dimensions[i]
		sort.SliceStable(d.Clusters, func(a, b int) bool { return cluster.Ranks(d.Clusters[a], d.Clusters[b]) })
		if k := max(topK, 0); len(d.Clusters) > k {
			d.Clusters = d.Clusters[:k]
		}
	}
	return payload
}

// CountActions tallies recommendations per action. Every action is present.
func CountActions(recs []domain.Recommendation) map[domain.Action]int {
	counts := map[domain.Action]int{
		domain.ActionScale:    0,
		domain.ActionPause:    0,
		domain.ActionMaintain: 0,
		domain.ActionWatch:    0,
	}
	for _, r := range recs {
		counts[r.Action]++
	}
	return counts
}
