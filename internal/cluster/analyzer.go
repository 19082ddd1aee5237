// Package cluster groups ads by creative attribute value and measures how each
// group performs against the whole population.
//
// Grouping is exact and categorical: every distinct value of a dimension is
// one cluster. Group metrics are pooled (the ratio of the members' summed
// totals) and lift is group / baseline, where the baseline is pooled over
// every ad in the KPI set, the group under test included.
package cluster

import (
	"sort"

	"github.com/ignite/creative-optimizer/internal/domain"
)

// Options tunes an analysis.
type Options struct {
	// MinSampleSize marks clusters with fewer impressions as low confidence.
	MinSampleSize int64
	// RankMetric orders clusters within a dimension. Defaults to roas.
	RankMetric string
	// Metrics are reported in MeanKPI and Lift. Defaults to every ratio metric.
	Metrics []string
}

func (o Options) rankMetric() string {
	if o.RankMetric == "" {
		return domain.MetricROAS
	}
	return o.RankMetric
}

func (o Options) metrics() []string {
	if len(o.Metrics) > 0 {
		return o.Metrics
	}
	return domain.RatioMetrics
}

type group struct {
	value   string
	members []string
	totals  domain.Totals
}

// Analyze returns the clusters of every requested dimension: dimensions in
// the order given, clusters ranked by lift on the rank metric within each.
// kpis must be ad-level; an ad contributes to a dimension only when it has a
// value for it. With no dimensions, every attribute seen on the ads is used.
//
// The result does not depend on the order of records or kpis.
func Analyze(records []domain.PerformanceRecord, kpis []domain.KPIRecord, dimensions []string, opts Options) []domain.ClusterSummary {
	byAd := make(map[string]domain.KPIRecord, len(kpis))
	var all domain.Totals
	for _, k := range kpis {
		if _, dup := byAd[k.Key]; dup {
			continue
		}
		byAd[k.Key] = k
		all.Merge(k.Totals)
	}
	if len(byAd) == 0 {
		return []domain.ClusterSummary{}
	}

	attrs := resolveAttributes(records, byAd)
	if len(dimensions) == 0 {
		dimensions = observedDimensions(attrs)
	}

	metrics := opts.metrics()
	rank := opts.rankMetric()
	baseline := make(map[string]domain.Ratio, len(metrics)+1)
	for _, m := range metrics {
		baseline[m] = all.Ratio(m)
	}
	baseline[rank] = all.Ratio(rank)

	ads := make([]string, 0, len(byAd))
	for id := range byAd {
		ads = append(ads, id)
	}
	sort.Strings(ads)

	out := []domain.ClusterSummary{}
	seen := make(map[string]bool, len(dimensions))
	for _, dim := range dimensions {
		if dim == "" || seen[dim] {
			continue
		}
		seen[dim] = true

		groups := make(map[string]*group)
		for _, id := range ads {
			v, ok := attrs[id][dim]
			if !ok {
				continue
			}
			g, ok := groups[v]
			if !ok {
				g = &group{value: v}
				groups[v] = g
			}
			g.members = append(g.members, id)
			g.totals.Merge(byAd[id].Totals)
		}

		summaries := make([]domain.ClusterSummary, 0, len(groups))
		for _, g := range groups {
			summaries = append(summaries, summarize(dim, g, byAd, baseline, metrics, rank, opts.MinSampleSize))
		}
		rankClusters(summaries)
		out = append(out, summaries...)
	}
	return out
}

func summarize(dim string, g *group, byAd map[string]domain.KPIRecord, baseline map[string]domain.Ratio, metrics []string, rank string, minSample int64) domain.ClusterSummary {
	s := domain.ClusterSummary{
		Dimension:   dim,
		Value:       g.value,
		MemberAdIDs: g.members,
		MeanKPI:     make(map[string]domain.Ratio, len(metrics)),
		Lift:        make(map[string]domain.Ratio, len(metrics)),
		RankMetric:  rank,
		SampleSize:  g.totals.Impressions,
	}
	for _, m := range metrics {
		s.MeanKPI[m] = g.totals.Ratio(m)
		s.Lift[m] = Lift(s.MeanKPI[m], baseline[m])
	}
	s.RankLift = Lift(g.totals.Ratio(rank), baseline[rank])
	s.LowConfidence = s.SampleSize < minSample

	base := baseline[rank]
	if base.Defined {
		winners := 0
		for _, id := range g.members {
			if v := byAd[id].Metric(rank); v.Defined && v.Value >= base.Value {
				winners++
			}
		}
		s.WinnerShare = float64(winners) / float64(len(g.members))
	}
	return s
}

// Lift is group / baseline. It is undefined when either side is undefined or
// the baseline is zero.
func Lift(group, baseline domain.Ratio) domain.Ratio {
	if !group.Defined || !baseline.Defined {
		return domain.Undefined
	}
	return domain.Div(group.Value, baseline.Value)
}

// Ranks reports whether a ranks ahead of b: higher rank lift first, undefined
// lifts last, then larger sample, then value.
func Ranks(a, b domain.ClusterSummary) bool {
	la, lb := a.RankLift, b.RankLift
	if la.Defined != lb.Defined {
		return la.Defined
	}
	if la.Defined && la.Value != lb.Value {
		return la.Value > lb.Value
	}
	if a.SampleSize != b.SampleSize {
		return a.SampleSize > b.SampleSize
	}
	return a.Value < b.Value
}

// rankClusters sorts by Ranks and numbers the clusters from 1.
func rankClusters(s []domain.ClusterSummary) {
	sort.Slice(s, func(i, j int) bool { return Ranks(s[i], s[j]) })
	for i := range s {
		s[i].Rank = i + 1
	}
}
