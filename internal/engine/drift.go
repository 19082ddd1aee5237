package engine

import (
	"sort"

	"github.com/ignite/creative-optimizer/internal/domain"
)

// Drift lists ads whose action differs between two recommendation sets,
// including ads that appear in only one of them. Output is sorted by ad.
func Drift(previous, current []domain.Recommendation) []domain.ActionChange {
	prev := make(map[string]domain.Recommendation, len(previous))
	for _, r := range previous {
		prev[r.AdID] = r
	}
	cur := make(map[string]domain.Recommendation, len(current))
	for _, r := range current {
		cur[r.AdID] = r
	}

	ids := make([]string, 0, len(prev)+len(cur))
	for id := range prev {
		ids = append(ids, id)
	}
	for id := range cur {
		if _, ok := prev[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	changes := []domain.ActionChange{}
	for _, id := range ids {
		p, hadPrev := prev[id]
		c, hasCur := cur[id]
		if hadPrev && hasCur && p.Action == c.Action {
			continue
		}
		change := domain.ActionChange{AdID: id, Previous: p.Action, Current: c.Action, Since: c.EvaluatedAt}
		if !hasCur {
			change.Since = p.EvaluatedAt
		}
		changes = append(changes, change)
	}
	return changes
}
