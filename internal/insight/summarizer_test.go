package insight

import (
	"testing"
	"time"

	"github.com/ignite/creative-optimizer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lift(v float64) domain.Ratio { return domain.Ratio{Value: v, Defined: true} }

func clusterOf(dim, value string, rank int, l domain.Ratio, low bool) domain.ClusterSummary {
	return domain.ClusterSummary{Dimension: dim, Value: value, Rank: rank, RankLift: l, LowConfidence: low}
}

func TestSummarize_SelectsTopConfidentClusters(t *testing.T) {
	clusters := []domain.ClusterSummary{
		clusterOf("format", "video", 1, lift(2.0), false),
		clusterOf("format", "gif", 2, lift(1.5), true),
		clusterOf("format", "static", 3, lift(0.8), false),
		clusterOf("format", "carousel", 4, lift(0.5), false),
		clusterOf("format", "text", 5, domain.Undefined, false),
		clusterOf("hook", "question", 1, lift(1.2), true),
	}

	payload := Summarize(nil, clusters, 2)

	require.Len(t, payload.Dimensions, 2)
	format := payload.Dimensions[0]
	assert.Equal(t, "format", format.Dimension)
	require.Len(t, format.Clusters, 2)
	assert.Equal(t, "video", format.Clusters[0].Value)
	assert.Equal(t, "static", format.Clusters[1].Value)

	hook := payload.Dimensions[1]
	assert.Equal(t, "hook", hook.Dimension)
	assert.Empty(t, hook.Clusters, "low-confidence clusters never reach the brief")
	assert.Equal(t, 2, payload.TopK)
}

func TestSummarize_PicksHighestLiftRegardlessOfInputOrder(t *testing.T) {
	clusters := []domain.ClusterSummary{
		clusterOf("format", "low", 0, lift(0.5), false),
		clusterOf("format", "mid", 0, lift(1.1), false),
		clusterOf("format", "high", 0, lift(2.0), false),
	}

	payload := Summarize(nil, clusters, 2)

	require.Len(t, payload.Dimensions, 1)
	got := payload.Dimensions[0].Clusters
	require.Len(t, got, 2)
	assert.Equal(t, "high", got[0].Value)
	assert.Equal(t, "mid", got[1].Value)
	assert.Equal(t, "low", clusters[0].Value, "input is not reordered")

	assert.Empty(t, Summarize(nil, clusters, 0).Dimensions[0].Clusters)
}

func TestSummarize_CarriesAllRecommendations(t *testing.T) {
	t1 := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.AddDate(0, 0, 1)
	recs := []domain.Recommendation{
		{AdID: "a", Action: domain.ActionScale, EvaluatedAt: t1},
		{AdID: "b", Action: domain.ActionWatch, EvaluatedAt: t2},
		{AdID: "c", Action: domain.ActionWatch, EvaluatedAt: t1},
	}

	payload := Summarize(recs, nil, 3)

	assert.Equal(t, recs, payload.Recommendations)
	assert.Equal(t, t2, payload.AsOf)
	assert.Equal(t, map[domain.Action]int{
		domain.ActionScale: 1, domain.ActionPause: 0, domain.ActionMaintain: 0, domain.ActionWatch: 2,
	}, payload.ActionCounts)
	assert.False(t, payload.Empty())

	recs[0].Action = domain.ActionPause
	assert.Equal(t, domain.ActionScale, payload.Recommendations[0].Action, "payload owns its slice")
}

func TestSummarize_Empty(t *testing.T) {
	payload := Summarize(nil, nil, 3)
	assert.True(t, payload.Empty())
	assert.NotNil(t, payload.Recommendations)
	assert.NotNil(t, payload.Dimensions)
}
