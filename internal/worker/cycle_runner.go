package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/creative-optimizer/internal/briefgen"
	"github.com/ignite/creative-optimizer/internal/config"
	"github.com/ignite/creative-optimizer/internal/domain"
	"github.com/ignite/creative-optimizer/internal/engine"
	"github.com/ignite/creative-optimizer/internal/optimizer"
	"github.com/ignite/creative-optimizer/internal/pkg/distlock"
	"github.com/ignite/creative-optimizer/internal/pkg/logger"
	"github.com/ignite/creative-optimizer/internal/source"
	"github.com/ignite/creative-optimizer/internal/storage"
	"github.com/redis/go-redis/v9"
)

// cycleLockTTL bounds how long a crashed worker can block a window.
const cycleLockTTL = 15 * time.Minute

// CycleRunner periodically fetches every source, runs one optimization
// cycle over the trailing window and persists its outputs.
type CycleRunner struct {
	analysis config.AnalysisConfig
	policy   engine.Policy
	sources  []source.Source
	store    *storage.Storage
	briefs   *briefgen.Service // optional

	redisClient *redis.Client // optional; nil falls back to PG advisory locks
	db          *sql.DB       // optional; nil falls back to an in-process lock
	now         func() time.Time

	// Stats
	cyclesRun     int64
	cyclesSkipped int64
	errors        int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// Stats is a point-in-time view of the runner counters.
type Stats struct {
	CyclesRun     int64 `json:"cycles_run"`
	CyclesSkipped int64 `json:"cycles_skipped"`
	Errors        int64 `json:"errors"`
}

// NewCycleRunner creates a runner.
func NewCycleRunner(analysis config.AnalysisConfig, policy engine.Policy, sources []source.Source, store *storage.Storage) *CycleRunner {
	return &CycleRunner{
		analysis: analysis,
		policy:   policy,
		sources:  sources,
		store:    store,
		now:      time.Now,
	}
}

// SetRedisClient sets the Redis client for distributed locking.
func (cr *CycleRunner) SetRedisClient(client *redis.Client) {
	cr.redisClient = client
}

// SetDB sets the PostgreSQL handle used for advisory locks when Redis is absent.
func (cr *CycleRunner) SetDB(db *sql.DB) {
	cr.db = db
}

// SetBriefService enables brief generation after each cycle.
func (cr *CycleRunner) SetBriefService(briefs *briefgen.Service) {
	cr.briefs = briefs
}

// Start runs one cycle immediately and then one per interval.
func (cr *CycleRunner) Start() error {
	cr.mu.Lock()
	if cr.running {
		cr.mu.Unlock()
		return fmt.Errorf("cycle runner already running")
	}
	cr.running = true
	cr.ctx, cr.cancel = context.WithCancel(context.Background())
	cr.mu.Unlock()

	logger.Info("cycle runner starting", "interval", cr.analysis.Interval().String(), "sources", len(cr.sources))

	cr.wg.Add(1)
	go cr.loop()
	return nil
}

// Stop gracefully stops the runner, waiting for an in-flight cycle.
func (cr *CycleRunner) Stop() {
	cr.mu.Lock()
	if !cr.running {
		cr.mu.Unlock()
		return
	}
	cr.running = false
	cr.mu.Unlock()

	cr.cancel()
	cr.wg.Wait()
	s := cr.Stats()
	logger.Info("cycle runner stopped", "cycles", s.CyclesRun, "skipped", s.CyclesSkipped, "errors", s.Errors)
}

// Stats returns the runner counters.
func (cr *CycleRunner) Stats() Stats {
	return Stats{
		CyclesRun:     atomic.LoadInt64(&cr.cyclesRun),
		CyclesSkipped: atomic.LoadInt64(&cr.cyclesSkipped),
		Errors:        atomic.LoadInt64(&cr.errors),
	}
}

func (cr *CycleRunner) loop() {
	defer cr.wg.Done()

	interval := cr.analysis.Interval()
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cr.tick()
	for {
		select {
		case <-cr.ctx.Done():
			return
		case <-ticker.C:
			cr.tick()
		}
	}
}

func (cr *CycleRunner) tick() {
	if _, err := cr.RunOnce(cr.ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("cycle failed", "error", err.Error())
	}
}

// Window returns the trailing analysis window ending at today's boundary.
func (cr *CycleRunner) Window() domain.Window {
	return domain.LastDays(cr.now().UTC(), cr.analysis.WindowDays)
}

// RunOnce runs a single locked cycle. It returns distlock.ErrLockHeld when
// another worker is already running the same window.
func (cr *CycleRunner) RunOnce(ctx context.Context) (*storage.CycleRecord, error) {
	opts := optimizer.Options{
		Window:     cr.Window(),
		Level:      domain.AggregationLevel(cr.analysis.Level),
		Dimensions: cr.analysis.Dimensions,
		Policy:     cr.policy,
	}
	if opts.Level == "" {
		opts.Level = domain.LevelAd
	}
	lock := distlock.NewLock(cr.redisClient, cr.db, distlock.CycleKey(opts.Window, opts.Level), cycleLockTTL)

	var rec *storage.CycleRecord
	err := distlock.Run(ctx, lock, func(ctx context.Context) error {
		var err error
		rec, err = cr.runLocked(ctx, opts)
		return err
	})
	switch {
	case errors.Is(err, distlock.ErrLockHeld):
		atomic.AddInt64(&cr.cyclesSkipped, 1)
		logger.Info("cycle already running elsewhere", "window_start", opts.Window.Start.Format("2006-01-02"))
		return nil, err
	case err != nil:
		atomic.AddInt64(&cr.errors, 1)
		return nil, err
	}
	atomic.AddInt64(&cr.cyclesRun, 1)
	return rec, nil
}

func (cr *CycleRunner) runLocked(ctx context.Context, opts optimizer.Options) (*storage.CycleRecord, error) {
	rows, _, err := source.FetchAll(ctx, cr.sources)
	if err != nil {
		return nil, fmt.Errorf("fetching sources: %w", err)
	}

	now := cr.now()
	res, err := optimizer.Run(optimizer.NewSnapshot(rows, now), opts)
	if err != nil {
		return nil, err
	}
	rec, err := cr.store.RecordResult(ctx, res, now)
	if err != nil {
		return nil, fmt.Errorf("recording cycle: %w", err)
	}
	for _, c := range rec.Changes {
		if c.Previous != "" && c.Current != "" {
			logger.Info("decision changed", "ad_id", c.AdID, "previous", string(c.Previous), "current", string(c.Current))
		}
	}

	if cr.briefs != nil {
		cr.generateBrief(ctx, res)
	}
	return rec, nil
}

// generateBrief never fails the cycle; a brief is a best-effort extra.
func (cr *CycleRunner) generateBrief(ctx context.Context, res *optimizer.Result) {
	brief, err := cr.briefs.Generate(ctx, res.Insight)
	if errors.Is(err, briefgen.ErrEmptyPayload) {
		logger.Info("no insight to brief", "cycle_id", res.CycleID)
		return
	}
	if err != nil {
		logger.Warn("brief generation failed", "cycle_id", res.CycleID, "error", err.Error())
		return
	}
	err = cr.store.SaveBrief(ctx, storage.BriefRecord{
		CycleID:     res.CycleID,
		Model:       brief.Model,
		Text:        brief.Text,
		PayloadHash: brief.PayloadHash,
		CreatedAt:   brief.CreatedAt,
	})
	if err != nil {
		logger.Warn("saving brief failed", "cycle_id", res.CycleID, "error", err.Error())
	}
}
