package cluster

import (
	"sort"

	"github.com/ignite/creative-optimizer/internal/domain"
)

type attrSource struct {
	rng   domain.DateRange
	value string
}

// resolveAttributes picks one value per (ad, dimension). When an ad's records
// disagree, the record with the latest date range wins and a tie goes to the
// lexically smallest value, so input order never matters.
func resolveAttributes(records []domain.PerformanceRecord, ads map[string]domain.KPIRecord) map[string]map[string]string {
	picked := make(map[string]map[string]attrSource)
	for _, r := range records {
		if _, ok := ads[r.AdID]; !ok {
			continue
		}
		for name, v := range r.Attributes {
			if v == "" {
				continue
			}
			dims, ok := picked[r.AdID]
			if !ok {
				dims = make(map[string]attrSource)
				picked[r.AdID] = dims
			}
			cur, ok := dims[name]
			if !ok || newer(r.DateRange, v, cur) {
				dims[name] = attrSource{rng: r.DateRange, value: v}
			}
		}
	}

	out := make(map[string]map[string]string, len(picked))
	for ad, dims := range picked {
		vals := make(map[string]string, len(dims))
		for name, src := range dims {
			vals[name] = src.value
		}
		out[ad] = vals
	}
	return out
}

func newer(rng domain.DateRange, value string, cur attrSource) bool {
	if !rng.End.Equal(cur.rng.End) {
		return rng.End.After(cur.rng.End)
	}
	if !rng.Start.Equal(cur.rng.Start) {
		return rng.Start.After(cur.rng.Start)
	}
	return value < cur.value
}

func observedDimensions(attrs map[string]map[string]string) []string {
	set := make(map[string]struct{})
	for _, dims := range attrs {
		for name := range dims {
			set[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
