package domain

import "time"

// AggregationLevel selects the key KPIs are rolled up by.
type AggregationLevel string

const (
	LevelAd       AggregationLevel = "ad"
	LevelAdSet    AggregationLevel = "ad_set"
	LevelCampaign AggregationLevel = "campaign"
)

// Valid reports whether the level is a known roll-up.
func (l AggregationLevel) Valid() bool {
	switch l {
	case LevelAd, LevelAdSet, LevelCampaign:
		return true
	}
	return false
}

// Metric names addressable by policy rules and cluster ranking.
const (
	MetricCTR         = "ctr"
	MetricCPC         = "cpc"
	MetricCPM         = "cpm"
	MetricCPA         = "cpa"
	MetricROAS        = "roas"
	MetricHookRate    = "hook_rate"
	MetricHoldRate    = "hold_rate"
	MetricSpend       = "spend"
	MetricImpressions = "impressions"
	MetricClicks      = "clicks"
	MetricConversions = "conversions"
	MetricRevenue     = "revenue"
)

// RatioMetrics lists the derived ratio metrics in report order.
var RatioMetrics = []string{MetricCTR, MetricCPC, MetricCPM, MetricCPA, MetricROAS, MetricHookRate, MetricHoldRate}

// KnownMetric reports whether name is a metric a KPIRecord can answer.
func KnownMetric(name string) bool {
	switch name {
	case MetricCTR, MetricCPC, MetricCPM, MetricCPA, MetricROAS, MetricHookRate, MetricHoldRate,
		MetricSpend, MetricImpressions, MetricClicks, MetricConversions, MetricRevenue:
		return true
	}
	return false
}

// Totals are summed raw counters behind a KPI.
type Totals struct {
	Spend        float64 `json:"spend"`
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
	Conversions  int64   `json:"conversions"`
	Revenue      float64 `json:"revenue"`
	Video3sViews int64   `json:"video_3s_views"`
	ThruPlays    int64   `json:"thruplays"`
}

// Add accumulates one record's counters.
func (t *Totals) Add(r PerformanceRecord) {
	t.Spend += r.Spend
	t.Impressions += r.Impressions
	t.Clicks += r.Clicks
	t.Conversions += r.Conversions
	t.Revenue += r.Revenue
	t.Video3sViews += r.Video3sViews
	t.ThruPlays += r.ThruPlays
}

// Merge accumulates another set of totals.
func (t *Totals) Merge(o Totals) {
	t.Spend += o.Spend
	t.Impressions += o.Impressions
	t.Clicks += o.Clicks
	t.Conversions += o.Conversions
	t.Revenue += o.Revenue
	t.Video3sViews += o.Video3sViews
	t.ThruPlays += o.ThruPlays
}

// Ratio computes a derived metric from the totals (ratio of sums).
func (t Totals) Ratio(metric string) Ratio {
	switch metric {
	case MetricCTR:
		return Div(float64(t.Clicks), float64(t.Impressions))
	case MetricCPC:
		return Div(t.Spend, float64(t.Clicks))
	case MetricCPM:
		return Div(t.Spend, float64(t.Impressions)).Scale(1000)
	case MetricCPA:
		return Div(t.Spend, float64(t.Conversions))
	case MetricROAS:
		return Div(t.Revenue, t.Spend)
	case MetricHookRate:
		return Div(float64(t.Video3sViews), float64(t.Impressions))
	case MetricHoldRate:
		return Div(float64(t.ThruPlays), float64(t.Video3sViews))
	case MetricSpend:
		return Ratio{Value: t.Spend, Defined: true}
	case MetricImpressions:
		return Ratio{Value: float64(t.Impressions), Defined: true}
	case MetricClicks:
		return Ratio{Value: float64(t.Clicks), Defined: true}
	case MetricConversions:
		return Ratio{Value: float64(t.Conversions), Defined: true}
	case MetricRevenue:
		return Ratio{Value: t.Revenue, Defined: true}
	}
	return Undefined
}

// KPIRecord holds derived metrics for one aggregation key over a window.
// It is replaced wholesale on every refresh, never mutated.
type KPIRecord struct {
	Key         string           `json:"key"`
	Level       AggregationLevel `json:"level"`
	CampaignID  string           `json:"campaign_id,omitempty"`
	Coverage    DateRange        `json:"coverage"`
	AsOf        time.Time        `json:"as_of"`
	RecordCount int              `json:"record_count"`
	Totals      Totals           `json:"totals"`
	CTR         Ratio            `json:"ctr"`
	CPC         Ratio            `json:"cpc"`
	CPM         Ratio            `json:"cpm"`
	CPA         Ratio            `json:"cpa"`
	ROAS        Ratio            `json:"roas"`
	HookRate    Ratio            `json:"hook_rate"`
	HoldRate    Ratio            `json:"hold_rate"`
	SampleSize  int64            `json:"sample_size"`
}

// Metric returns the named metric. Unknown names are undefined.
func (k KPIRecord) Metric(name string) Ratio {
	switch name {
	case MetricCTR:
		return k.CTR
	case MetricCPC:
		return k.CPC
	case MetricCPM:
		return k.CPM
	case MetricCPA:
		return k.CPA
	case MetricROAS:
		return k.ROAS
	case MetricHookRate:
		return k.HookRate
	case MetricHoldRate:
		return k.HoldRate
	}
	return k.Totals.Ratio(name)
}

// PerformanceTotals summarises a whole dataset for reporting. SuccessfulAds
// counts ads decided SCALE, the ones meeting the policy's scale criteria; it
// stays zero until decisions exist.
type PerformanceTotals struct {
	Ads           int     `json:"ads"`
	Campaigns     int     `json:"campaigns"`
	SuccessfulAds int     `json:"successful_ads"`
	Spend         float64 `json:"spend"`
	Revenue       float64 `json:"revenue"`
	Impressions   int64   `json:"impressions"`
	Clicks        int64   `json:"clicks"`
	Conversions   int64   `json:"conversions"`
	CTR           Ratio   `json:"ctr"`
	CPC           Ratio   `json:"cpc"`
	CPM           Ratio   `json:"cpm"`
	CPA           Ratio   `json:"cpa"`
	ROAS          Ratio   `json:"roas"`
}
