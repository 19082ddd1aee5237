package optimizer

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignite/creative-optimizer/internal/datanorm"
)

// Snapshot is a read-only copy of the upstream rows a cycle runs against.
// Rows arriving later go into a new snapshot; an in-flight cycle never sees
// them.
type Snapshot struct {
	ID      string
	TakenAt time.Time
	rows    []datanorm.RawRow
}

// NewSnapshot copies rows so the caller may keep mutating its own slice.
func NewSnapshot(rows []datanorm.RawRow, takenAt time.Time) *Snapshot {
	return &Snapshot{
		ID:      uuid.New().String(),
		TakenAt: takenAt,
		rows:    copyRows(rows),
	}
}

// Len is the number of raw rows.
func (s *Snapshot) Len() int { return len(s.rows) }

// Rows returns a copy of the snapshot rows.
func (s *Snapshot) Rows() []datanorm.RawRow { return copyRows(s.rows) }

func copyRows(rows []datanorm.RawRow) []datanorm.RawRow {
	out := make([]datanorm.RawRow, len(rows))
	for i, r := range rows {
		if r == nil {
			continue
		}
		c := make(datanorm.RawRow, len(r))
		for k, v := range r {
			c[k] = v
		}
		out[i] = c
	}
	return out
}
