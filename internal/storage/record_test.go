package storage

import (
	"context"
	"testing"
	"time"

	"github.com/ignite/creative-optimizer/internal/domain"
	"github.com/ignite/creative-optimizer/internal/optimizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(id string, at time.Time, actions map[string]domain.Action) *optimizer.Result {
	res := &optimizer.Result{CycleID: id, SnapshotID: "snap-" + id, Level: domain.LevelAd}
	for _, ad := range []string{"ad-1", "ad-2", "ad-3"} {
		if a, ok := actions[ad]; ok {
			res.Recommendations = append(res.Recommendations, domain.Recommendation{AdID: ad, Action: a, EvaluatedAt: at})
		}
	}
	res.Insight = domain.InsightPayload{AsOf: at, Recommendations: res.Recommendations}
	return res
}

func TestRecordResult_TracksDrift(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	t1 := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.AddDate(0, 0, 1)

	first, err := s.RecordResult(ctx, result("c1", t1, map[string]domain.Action{
		"ad-1": domain.ActionScale, "ad-2": domain.ActionMaintain,
	}), t1)
	require.NoError(t, err)
	assert.Len(t, first.Changes, 2, "every ad is new in the first cycle")

	second, err := s.RecordResult(ctx, result("c2", t2, map[string]domain.Action{
		"ad-1": domain.ActionPause, "ad-2": domain.ActionMaintain, "ad-3": domain.ActionWatch,
	}), t2)
	require.NoError(t, err)
	require.Len(t, second.Changes, 2)
	assert.Equal(t, domain.ActionChange{AdID: "ad-1", Previous: domain.ActionScale, Current: domain.ActionPause, Since: t2}, second.Changes[0])
	assert.Equal(t, "ad-3", second.Changes[1].AdID)

	history, err := s.History(ctx, "ad-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ActionScale, history[0].Recommendation.Action)
	assert.Equal(t, domain.ActionPause, history[1].Recommendation.Action)

	insight, err := s.LatestInsight(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c2", insight.CycleID)
}
