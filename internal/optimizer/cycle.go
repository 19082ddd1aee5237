// Package optimizer runs one analysis cycle: normalize a snapshot, compute
// KPIs, decide per ad and analyze clusters in parallel, then summarize.
//
// A cycle only reads its snapshot and its options, so any number of cycles
// can run at once.
package optimizer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/creative-optimizer/internal/cluster"
	"github.com/ignite/creative-optimizer/internal/datanorm"
	"github.com/ignite/creative-optimizer/internal/domain"
	"github.com/ignite/creative-optimizer/internal/engine"
	"github.com/ignite/creative-optimizer/internal/insight"
	"github.com/ignite/creative-optimizer/internal/kpi"
	"github.com/ignite/creative-optimizer/internal/pkg/logger"
)

// ErrInvalidOptions is returned for cycle options that cannot be run.
var ErrInvalidOptions = errors.New("invalid cycle options")

// Options configures a cycle.
type Options struct {
	Window domain.Window
	// Level selects the roll-up reported in Result.KPIs. Decisions and
	// clusters are always per ad.
	Level      domain.AggregationLevel
	Dimensions []string
	Policy     engine.Policy
}

// Validate checks the options and the policy before any row is touched.
func (o Options) Validate() error {
	if err := o.Policy.Validate(); err != nil {
		return err
	}
	if o.Level != "" && !o.Level.Valid() {
		return fmt.Errorf("%w: unknown aggregation level %q", ErrInvalidOptions, o.Level)
	}
	if !o.Window.Valid() {
		return fmt.Errorf("%w: window end %s is not after start %s", ErrInvalidOptions,
			o.Window.End.Format(time.RFC3339), o.Window.Start.Format(time.RFC3339))
	}
	return nil
}

func (o Options) level() domain.AggregationLevel {
	if o.Level == "" {
		return domain.LevelAd
	}
	return o.Level
}

// Result is the complete output of one cycle.
type Result struct {
	CycleID         string                  `json:"cycle_id"`
	SnapshotID      string                  `json:"snapshot_id"`
	Window          domain.Window           `json:"window"`
	Level           domain.AggregationLevel `json:"level"`
	Records         int                     `json:"records"`
	Rejects         []domain.Reject         `json:"rejects"`
	KPIs            []domain.KPIRecord      `json:"kpis"`
	Recommendations []domain.Recommendation `json:"recommendations"`
	Clusters        []domain.ClusterSummary `json:"clusters"`
	Insight         domain.InsightPayload   `json:"insight"`
}

// Run executes one cycle against the snapshot. It fails only when the
// options or the policy are invalid; bad rows end up in Result.Rejects.
func Run(s *Snapshot, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		s = &Snapshot{}
	}

	res := &Result{
		CycleID:    uuid.New().String(),
		SnapshotID: s.ID,
		Window:     opts.Window,
		Level:      opts.level(),
	}
	logger.Info("optimization cycle started",
		"cycle_id", res.CycleID, "snapshot_id", s.ID, "rows", s.Len(), "agg_level", string(res.Level))

	records, rejects := datanorm.Normalize(s.rows)
	res.Records = len(records)
	res.Rejects = rejects

	adKPIs := kpi.Compute(records, opts.Window, domain.LevelAd)
	res.KPIs = adKPIs
	if res.Level != domain.LevelAd {
		res.KPIs = kpi.Compute(records, opts.Window, res.Level)
	}

	// Attributes are read from the same records the KPIs were computed from.
	windowed := inWindow(records, opts.Window)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.Recommendations = engine.DecideAll(adKPIs, opts.Policy)
	}()
	go func() {
		defer wg.Done()
		res.Clusters = cluster.Analyze(windowed, adKPIs, opts.Dimensions, cluster.Options{
			MinSampleSize: opts.Policy.Cluster.MinSampleSize,
			RankMetric:    opts.Policy.RankMetric(),
		})
	}()
	wg.Wait()

	res.Insight = insight.Summarize(res.Recommendations, res.Clusters, opts.Policy.Cluster.TopK)
	counts := res.Insight.ActionCounts
	totals := kpi.Totals(records, opts.Window)
	totals.SuccessfulAds = counts[domain.ActionScale]
	res.Insight.Totals = &totals

	logger.Info("optimization cycle finished",
		"cycle_id", res.CycleID,
		"records", res.Records,
		"rejects", len(res.Rejects),
		"ads", len(adKPIs),
		"scale", counts[domain.ActionScale],
		"pause", counts[domain.ActionPause],
		"maintain", counts[domain.ActionMaintain],
		"watch", counts[domain.ActionWatch],
		"clusters", len(res.Clusters))
	return res, nil
}

func inWindow(records []domain.PerformanceRecord, w domain.Window) []domain.PerformanceRecord {
	out := make([]domain.PerformanceRecord, 0, len(records))
	for _, r := range records {
		if w.Contains(r.DateRange) {
			out = append(out, r)
		}
	}
	return out
}

// RunWindows runs one cycle per window concurrently over the same snapshot
// and returns the results in window order. base supplies everything but the
// window.
func RunWindows(s *Snapshot, base Options, windows ...domain.Window) ([]*Result, error) {
	for _, w := range windows {
		opts := base
		opts.Window = w
		if err := opts.Validate(); err != nil {
			return nil, err
		}
	}

	results := make([]*Result, len(windows))
	errs := make([]error, len(windows))
	var wg sync.WaitGroup
	for i, w := range windows {
		wg.Add(1)
		go func(i int, w domain.Window) {
			defer wg.Done()
			opts := base
			opts.Window = w
			results[i], errs[i] = Run(s, opts)
		}(i, w)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}
