package domain

import (
	"time"
)

// DateRange is a half-open interval [Start, End).
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the range is non-empty.
func (d DateRange) Valid() bool {
	return !d.Start.IsZero() && d.End.After(d.Start)
}

// Key is a stable string form used for identity and sorting.
func (d DateRange) Key() string {
	return d.Start.UTC().Format(time.RFC3339) + "/" + d.End.UTC().Format(time.RFC3339)
}

// Window restricts a KPI computation. A zero Start or End leaves that side open.
type Window struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Contains reports whether the whole date range lies inside the window.
func (w Window) Contains(d DateRange) bool {
	if !w.Start.IsZero() && d.Start.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && d.End.After(w.End) {
		return false
	}
	return true
}

// Valid reports whether the window bounds are ordered.
func (w Window) Valid() bool {
	if w.Start.IsZero() || w.End.IsZero() {
		return true
	}
	return w.End.After(w.Start)
}

// LastDays returns the window of the n whole days ending at the day boundary
// of asOf (exclusive).
func LastDays(asOf time.Time, n int) Window {
	end := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	return Window{Start: end.AddDate(0, 0, -n), End: end}
}

// PerformanceRecord is one observation window for one ad. Identity is
// (AdID, DateRange). Records are immutable once built by the normalizer.
type PerformanceRecord struct {
	AdID         string            `json:"ad_id"`
	AdSetID      string            `json:"ad_set_id,omitempty"`
	CampaignID   string            `json:"campaign_id"`
	DateRange    DateRange         `json:"date_range"`
	Spend        float64           `json:"spend"`
	Impressions  int64             `json:"impressions"`
	Clicks       int64             `json:"clicks"`
	Conversions  int64             `json:"conversions"`
	Revenue      float64           `json:"revenue"`
	Video3sViews int64             `json:"video_3s_views,omitempty"`
	ThruPlays    int64             `json:"thruplays,omitempty"`
	Attributes   map[string]string `json:"creative_attributes,omitempty"`
}

// Identity returns the (ad_id, date_range) key.
func (r PerformanceRecord) Identity() string {
	return r.AdID + "|" + r.DateRange.Key()
}

// Attribute returns a creative attribute value and whether it is present.
func (r PerformanceRecord) Attribute(name string) (string, bool) {
	v, ok := r.Attributes[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// RejectReason is the reason code for a row the normalizer refused.
type RejectReason string

const (
	RejectMissingField       RejectReason = "missing_field"
	RejectTypeError          RejectReason = "type_error"
	RejectInvariantViolation RejectReason = "invariant_violation"
	RejectDuplicate          RejectReason = "duplicate"
)

// Reject pairs a raw row with the reason it was dropped.
type Reject struct {
	Row    map[string]any `json:"row"`
	Index  int            `json:"index"`
	Reason RejectReason   `json:"reason"`
	Field  string         `json:"field,omitempty"`
	Detail string         `json:"detail,omitempty"`
}
