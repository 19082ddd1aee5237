package domain

import "time"

// ClusterSummary is the performance signature of one attribute value.
type ClusterSummary struct {
	Dimension     string           `json:"attribute_key"`
	Value         string           `json:"attribute_value"`
	MemberAdIDs   []string         `json:"member_ad_ids"`
	MeanKPI       map[string]Ratio `json:"mean_kpi"`
	Lift          map[string]Ratio `json:"lift_vs_baseline"`
	RankMetric    string           `json:"rank_metric"`
	RankLift      Ratio            `json:"rank_lift"`
	Rank          int              `json:"rank"`
	WinnerShare   float64          `json:"winner_share"`
	SampleSize    int64            `json:"sample_size"`
	LowConfidence bool             `json:"low_confidence"`
}

// DimensionInsight holds the highest-lift confident clusters of a dimension.
type DimensionInsight struct {
	Dimension string           `json:"dimension"`
	Clusters  []ClusterSummary `json:"clusters"`
}

// InsightPayload is the structured input to brief generation.
type InsightPayload struct {
	AsOf            time.Time          `json:"as_of"`
	TopK            int                `json:"top_k"`
	Recommendations []Recommendation   `json:"recommendations"`
	ActionCounts    map[Action]int     `json:"action_counts"`
	Dimensions      []DimensionInsight `json:"dimensions"`
	Totals          *PerformanceTotals `json:"totals,omitempty"`
}

// Empty reports whether the payload carries nothing to brief on.
func (p InsightPayload) Empty() bool {
	if len(p.Recommendations) > 0 {
		return false
	}
	for _, d := range p.Dimensions {
		if len(d.Clusters) > 0 {
			return false
		}
	}
	return true
}
