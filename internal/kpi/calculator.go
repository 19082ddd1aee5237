// Package kpi derives rate and efficiency metrics from normalized
// performance records.
//
// Every ratio is a ratio of sums: records are summed per aggregation key first
// and divided afterwards, so small-sample ads never get the weight of large
// ones. A zero denominator yields domain.Undefined. Compute is a pure
// function of its arguments.
package kpi

import (
	"sort"
	"time"

	"github.com/ignite/creative-optimizer/internal/domain"
)

type bucket struct {
	totals    domain.Totals
	coverage  domain.DateRange
	count     int
	campaign  string
	campaigns int
}

// KeyFor returns the aggregation key of a record at the given level, or ""
// when the record does not participate in that roll-up.
func KeyFor(r domain.PerformanceRecord, level domain.AggregationLevel) string {
	switch level {
	case domain.LevelAdSet:
		return r.AdSetID
	case domain.LevelCampaign:
		return r.CampaignID
	default:
		return r.AdID
	}
}

// Compute returns one KPIRecord per distinct aggregation key among the
// records inside window, sorted by key. An unknown level aggregates by ad.
func Compute(records []domain.PerformanceRecord, window domain.Window, level domain.AggregationLevel) []domain.KPIRecord {
	if !level.Valid() {
		level = domain.LevelAd
	}

	buckets := make(map[string]*bucket)
	var latest time.Time
	for _, r := range records {
		if !window.Contains(r.DateRange) {
			continue
		}
		key := KeyFor(r, level)
		if key == "" {
			continue
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{coverage: r.DateRange, campaign: r.CampaignID, campaigns: 1}
			buckets[key] = b
		}
		b.totals.Add(r)
		b.count++
		if r.DateRange.Start.Before(b.coverage.Start) {
			b.coverage.Start = r.DateRange.Start
		}
		if r.DateRange.End.After(b.coverage.End) {
			b.coverage.End = r.DateRange.End
		}
		if r.CampaignID != b.campaign && b.campaigns == 1 {
			b.campaigns = 2
		}
		if r.DateRange.End.After(latest) {
			latest = r.DateRange.End
		}
	}

	asOf := latest
	if !window.End.IsZero() {
		asOf = window.End
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.KPIRecord, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		kpi := FromTotals(k, level, b.totals)
		kpi.Coverage = b.coverage
		kpi.AsOf = asOf
		kpi.RecordCount = b.count
		if level != domain.LevelCampaign && b.campaigns == 1 {
			kpi.CampaignID = b.campaign
		}
		if level == domain.LevelCampaign {
			kpi.CampaignID = k
		}
		out = append(out, kpi)
	}
	return out
}

// FromTotals derives the ratio metrics for one key from its summed totals.
func FromTotals(key string, level domain.AggregationLevel, t domain.Totals) domain.KPIRecord {
	return domain.KPIRecord{
		Key:        key,
		Level:      level,
		Totals:     t,
		CTR:        t.Ratio(domain.MetricCTR),
		CPC:        t.Ratio(domain.MetricCPC),
		CPM:        t.Ratio(domain.MetricCPM),
		CPA:        t.Ratio(domain.MetricCPA),
		ROAS:       t.Ratio(domain.MetricROAS),
		HookRate:   t.Ratio(domain.MetricHookRate),
		HoldRate:   t.Ratio(domain.MetricHoldRate),
		SampleSize: t.Impressions,
	}
}

// Index maps KPI records by key.
func Index(kpis []domain.KPIRecord) map[string]domain.KPIRecord {
	idx := make(map[string]domain.KPIRecord, len(kpis))
	for _, k := range kpis {
		idx[k.Key] = k
	}
	return idx
}
