package kpi

import "github.com/ignite/creative-optimizer/internal/domain"

// Totals summarises a dataset the way the performance overview reports it:
// summed counters plus pooled rates over everything in the window.
func Totals(records []domain.PerformanceRecord, window domain.Window) domain.PerformanceTotals {
	var t domain.Totals
	ads := make(map[string]struct{})
	campaigns := make(map[string]struct{})
	for _, r := range records {
		if !window.Contains(r.DateRange) {
			continue
		}
		t.Add(r)
		ads[r.AdID] = struct{}{}
		campaigns[r.CampaignID] = struct{}{}
	}
	return domain.PerformanceTotals{
		Ads:         len(ads),
		Campaigns:   len(campaigns),
		Spend:       t.Spend,
		Revenue:     t.Revenue,
		Impressions: t.Impressions,
		Clicks:      t.Clicks,
		Conversions: t.Conversions,
		CTR:         t.Ratio(domain.MetricCTR),
		CPC:         t.Ratio(domain.MetricCPC),
		CPM:         t.Ratio(domain.MetricCPM),
		CPA:         t.Ratio(domain.MetricCPA),
		ROAS:        t.Ratio(domain.MetricROAS),
	}
}
