// Package source fetches raw ad-performance rows from spreadsheets, object
// storage, the Meta Graph API and the warehouse. Sources only fetch; every
// row goes through datanorm.Normalize inside the cycle.
package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/creative-optimizer/internal/datanorm"
	"github.com/ignite/creative-optimizer/internal/pkg/logger"
)

// ErrUnsupportedSource is returned for a source kind this build cannot read.
var ErrUnsupportedSource = errors.New("unsupported source")

// Source produces raw rows for one snapshot.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]datanorm.RawRow, error)
}

// Result is the outcome of one source fetch.
type Result struct {
	Source   string        `json:"source"`
	Rows     int           `json:"rows"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// FetchAll queries every source concurrently and concatenates their rows in
// source order. A failing source is reported in its Result and skipped; the
// error is non-nil only when every source failed.
func FetchAll(ctx context.Context, sources []Source) ([]datanorm.RawRow, []Result, error) {
	rows := make([][]datanorm.RawRow, len(sources))
	results := make([]Result, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			start := time.Now()
			r, err := src.Fetch(ctx)
			results[i] = Result{Source: src.Name(), Rows: len(r), Duration: time.Since(start), Err: err}
			if err != nil {
				logger.Warn("source fetch failed", "source", src.Name(), "error", err.Error())
				return
			}
			rows[i] = r
		}(i, src)
	}
	wg.Wait()

	var merged []datanorm.RawRow
	var errs []error
	for i, r := range rows {
		if results[i].Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", results[i].Source, results[i].Err))
			continue
		}
		merged = append(merged, r...)
		logger.Info("source fetched", "source", results[i].Source, "rows", len(r), "duration", results[i].Duration.String())
	}
	if len(sources) > 0 && len(errs) == len(sources) {
		return nil, results, errors.Join(errs...)
	}
	if merged == nil {
		merged = []datanorm.RawRow{}
	}
	return merged, results, nil
}
