package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ignite/creative-optimizer/internal/briefgen"
	"github.com/ignite/creative-optimizer/internal/config"
	"github.com/ignite/creative-optimizer/internal/datanorm"
	"github.com/ignite/creative-optimizer/internal/domain"
	"github.com/ignite/creative-optimizer/internal/engine"
	"github.com/ignite/creative-optimizer/internal/pkg/distlock"
	"github.com/ignite/creative-optimizer/internal/source"
	"github.com/ignite/creative-optimizer/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rowsSource struct {
	rows []datanorm.RawRow
	err  error
}

func (s *rowsSource) Name() string { return "test" }

func (s *rowsSource) Fetch(ctx context.Context) ([]datanorm.RawRow, error) {
	return s.rows, s.err
}

type staticGenerator struct{ calls int }

func (g *staticGenerator) Model() string { return "static" }

func (g *staticGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	return "brief", nil
}

var asOf = time.Date(2026, 10, 10, 9, 0, 0, 0, time.UTC)

func dailyRow(ad, day string, spend, revenue float64, conversions int, hook string) datanorm.RawRow {
	return datanorm.RawRow{
		"ad_id": ad, "campaign_id": "camp", "date": day,
		"spend": spend, "impressions": 10000, "clicks": 150,
		"conversions": conversions, "revenue": revenue, "hook": hook,
	}
}

func testPolicy(t *testing.T) engine.Policy {
	p, err := engine.ParsePolicy([]byte(`
min_sample_size: 1000
default_action: MAINTAIN
rules:
  - name: roas_below_breakeven
    metric: roas
    operator: lt
    threshold: 1
    action: PAUSE
  - name: roas_strong
    metric: roas
    operator: gte
    threshold: 3
    action: SCALE
cluster:
  min_sample_size: 1000
  top_k: 3
  rank_metric: roas
`))
	require.NoError(t, err)
	return *p
}

func newRunner(t *testing.T, src source.Source) (*CycleRunner, *storage.Storage) {
	store, err := storage.New(config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	cr := NewCycleRunner(config.AnalysisConfig{WindowDays: 7, Level: "ad"}, testPolicy(t), []source.Source{src}, store)
	cr.now = func() time.Time { return asOf }
	return cr, store
}

func TestCycleRunner_RunOnce(t *testing.T) {
	src := &rowsSource{rows: []datanorm.RawRow{
		dailyRow("ad-1", "2026-10-08", 100, 450, 9, "question"),
		dailyRow("ad-2", "2026-10-08", 100, 50, 1, "statement"),
		dailyRow("ad-3", "2026-10-01", 100, 900, 9, "question"), // outside the window
	}}
	cr, store := newRunner(t, src)
	gen := &staticGenerator{}
	prompts, err := briefgen.NewPromptBuilder("")
	require.NoError(t, err)
	cr.SetBriefService(briefgen.NewService(prompts, gen, nil))

	rec, err := cr.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.Recommendations, 2)
	assert.Equal(t, domain.ActionScale, rec.Recommendations[0].Action)
	assert.Equal(t, domain.ActionPause, rec.Recommendations[1].Action)
	assert.Equal(t, domain.LastDays(asOf, 7), rec.Window)
	assert.Equal(t, 1, gen.calls)

	insight, err := store.LatestInsight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rec.CycleID, insight.CycleID)
	assert.Equal(t, Stats{CyclesRun: 1}, cr.Stats())
}

func TestCycleRunner_SourceFailure(t *testing.T) {
	cr, _ := newRunner(t, &rowsSource{err: errors.New("api down")})

	_, err := cr.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api down")
	assert.Equal(t, int64(1), cr.Stats().Errors)
}

func TestCycleRunner_SkipsWhenLocked(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cr, _ := newRunner(t, &rowsSource{rows: []datanorm.RawRow{}})
	cr.SetRedisClient(client)

	held := distlock.NewRedisLock(client, distlock.CycleKey(cr.Window(), domain.LevelAd), time.Minute)
	ok, err := held.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = cr.RunOnce(context.Background())
	assert.ErrorIs(t, err, distlock.ErrLockHeld)
	assert.Equal(t, int64(1), cr.Stats().CyclesSkipped)

	require.NoError(t, held.Release(context.Background()))
	_, err = cr.RunOnce(context.Background())
	assert.NoError(t, err)
}

func TestCycleRunner_StartStop(t *testing.T) {
	cr, store := newRunner(t, &rowsSource{rows: []datanorm.RawRow{dailyRow("ad-1", "2026-10-08", 100, 450, 9, "question")}})
	cr.analysis.IntervalSeconds = 3600

	require.NoError(t, cr.Start())
	assert.Error(t, cr.Start())
	assert.Eventually(t, func() bool {
		_, err := store.LatestCycle(context.Background())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	cr.Stop()
	cr.Stop()
}
