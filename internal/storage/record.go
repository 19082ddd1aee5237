package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/creative-optimizer/internal/engine"
	"github.com/ignite/creative-optimizer/internal/optimizer"
	"github.com/ignite/creative-optimizer/internal/pkg/logger"
)

// RecordResult persists one cycle: the decision drift against the latest
// stored cycle, the appended recommendation history and the insight payload.
func (s *Storage) RecordResult(ctx context.Context, res *optimizer.Result, at time.Time) (*CycleRecord, error) {
	rec := CycleRecord{
		CycleID:         res.CycleID,
		SnapshotID:      res.SnapshotID,
		Window:          res.Window,
		Level:           res.Level,
		RecordedAt:      at.UTC(),
		Records:         res.Records,
		Rejects:         res.Rejects,
		Recommendations: res.Recommendations,
	}

	prev, err := s.LatestCycle(ctx)
	switch {
	case err == nil:
		rec.Changes = engine.Drift(prev.Recommendations, res.Recommendations)
	case errors.Is(err, ErrNotFound):
		rec.Changes = engine.Drift(nil, res.Recommendations)
	default:
		return nil, err
	}

	if err := s.SaveCycle(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.SaveInsight(ctx, InsightRecord{CycleID: rec.CycleID, RecordedAt: rec.RecordedAt, Payload: res.Insight}); err != nil {
		return nil, err
	}

	logger.Info("cycle recorded", "cycle_id", rec.CycleID, "recommendations", len(rec.Recommendations), "changes", len(rec.Changes))
	return &rec, nil
}
