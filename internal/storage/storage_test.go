package storage

import (
	"context"
	"testing"
	"time"

	"github.com/ignite/creative-optimizer/internal/config"
	"github.com/ignite/creative-optimizer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (*Storage, config.StorageConfig) {
	cfg := config.StorageConfig{
		Type:      "local",
		LocalPath: t.TempDir(),
	}

	s, err := New(cfg)
	require.NoError(t, err)
	return s, cfg
}

func cycle(id string, at time.Time, recs ...domain.Recommendation) CycleRecord {
	return CycleRecord{CycleID: id, RecordedAt: at, Level: domain.LevelAd, Recommendations: recs}
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestSaveCycleAppendsHistory(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	t1 := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.AddDate(0, 0, 7)

	require.NoError(t, s.SaveCycle(ctx, cycle("c1", t1,
		domain.Recommendation{AdID: "ad-1", Action: domain.ActionWatch},
		domain.Recommendation{AdID: "ad-2", Action: domain.ActionMaintain})))
	require.NoError(t, s.SaveCycle(ctx, cycle("c2", t2,
		domain.Recommendation{AdID: "ad-1", Action: domain.ActionScale})))

	hist, err := s.History(ctx, "ad-1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "c1", hist[0].CycleID)
	assert.Equal(t, domain.ActionWatch, hist[0].Recommendation.Action)
	assert.Equal(t, "c2", hist[1].CycleID)
	assert.Equal(t, domain.ActionScale, hist[1].Recommendation.Action)

	latest, err := s.LatestCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c2", latest.CycleID)
}

func TestHistoryNotFound(t *testing.T) {
	s, _ := newTestStorage(t)
	_, err := s.History(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.LatestCycle(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.LatestInsight(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistorySurvivesRestart(t *testing.T) {
	s, cfg := newTestStorage(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveCycle(ctx, cycle("c1", at, domain.Recommendation{AdID: "ad/1", Action: domain.ActionPause})))
	require.NoError(t, s.SaveInsight(ctx, InsightRecord{CycleID: "c1", RecordedAt: at, Payload: domain.InsightPayload{TopK: 3}}))

	reopened, err := New(cfg)
	require.NoError(t, err)

	hist, err := reopened.History(ctx, "ad/1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, domain.ActionPause, hist[0].Recommendation.Action)

	latest, err := reopened.LatestCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c1", latest.CycleID)

	insight, err := reopened.LatestInsight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, insight.Payload.TopK)
}

func TestSaveInsightReplacesLatest(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveInsight(ctx, InsightRecord{CycleID: "c1"}))
	require.NoError(t, s.SaveInsight(ctx, InsightRecord{CycleID: "c2"}))

	latest, err := s.LatestInsight(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c2", latest.CycleID)
}

func TestSaveBrief(t *testing.T) {
	s, cfg := newTestStorage(t)
	require.NoError(t, s.SaveBrief(context.Background(), BriefRecord{CycleID: "c1", Text: "Lead with a question hook."}))

	var got BriefRecord
	require.NoError(t, s.loadFromFile("briefs", "c1", &got))
	assert.Equal(t, "Lead with a question hook.", got.Text)
	assert.NotEmpty(t, cfg.LocalPath)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "a%2Fb", safeName("a/b"))
	assert.Equal(t, "..%2Fetc%2Fpasswd", safeName("../etc/passwd"))
	assert.Equal(t, "a%5Cb", safeName(`a\b`))
	assert.NotEqual(t, safeName("a/b"), safeName("a_b"))
	assert.NotEqual(t, safeName("a/b"), safeName("a%2Fb"))
}

func TestHistoryKeepsSimilarAdIDsApart(t *testing.T) {
	s, cfg := newTestStorage(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveCycle(ctx, cycle("c1", at,
		domain.Recommendation{AdID: "a/b", Action: domain.ActionScale},
		domain.Recommendation{AdID: "a_b", Action: domain.ActionPause},
	)))

	reopened, err := New(cfg)
	require.NoError(t, err)
	for ad, want := range map[string]domain.Action{"a/b": domain.ActionScale, "a_b": domain.ActionPause} {
		hist, err := reopened.History(ctx, ad)
		require.NoError(t, err, ad)
		require.Len(t, hist, 1, ad)
		assert.Equal(t, want, hist[0].Recommendation.Action, ad)
	}
}
