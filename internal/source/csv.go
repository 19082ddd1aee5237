package source

import (
	"context"
	"fmt"
	"os"

	"github.com/ignite/creative-optimizer/internal/datanorm"
	"github.com/ignite/creative-optimizer/internal/pkg/logger"
)

// CSVFile reads one local CSV export.
type CSVFile struct {
	Path string
}

// Name implements Source.
func (c *CSVFile) Name() string { return "csv:" + c.Path }

// Fetch implements Source.
func (c *CSVFile) Fetch(ctx context.Context) ([]datanorm.RawRow, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", c.Path, err)
	}
	defer f.Close()

	rows, skipped, err := datanorm.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", c.Path, err)
	}
	if skipped > 0 {
		logger.Warn("skipped malformed csv lines", "path", c.Path, "lines", skipped)
	}
	return rows, nil
}
