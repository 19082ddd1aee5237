package datanorm

// RawRow is one untyped input row: a flat mapping of column name to scalar
// value, the common shape of a spreadsheet row and an ad-platform record.
type RawRow map[string]any

// CanonicalField is a normalized field name used across all import sources.
type CanonicalField string

const (
	FieldAdID         CanonicalField = "ad_id"
	FieldAdSetID      CanonicalField = "ad_set_id"
	FieldCampaignID   CanonicalField = "campaign_id"
	FieldStart        CanonicalField = "date_start"
	FieldEnd          CanonicalField = "date_end"
	FieldStop         CanonicalField = "date_stop" // inclusive last day, as ad platforms report it
	FieldDate         CanonicalField = "date"
	FieldSpend        CanonicalField = "spend"
	FieldImpressions  CanonicalField = "impressions"
	FieldClicks       CanonicalField = "clicks"
	FieldConversions  CanonicalField = "conversions"
	FieldRevenue      CanonicalField = "revenue"
	FieldVideo3sViews CanonicalField = "video_3s_views"
	FieldThruPlays    CanonicalField = "thruplays"
)

// AttributeLengthBucket is the derived attribute for creative duration.
const AttributeLengthBucket = "length_bucket"

// Summary counts the outcome of one Normalize call.
type Summary struct {
	TotalRows int            `json:"total_rows"`
	Records   int            `json:"records"`
	Rejected  map[string]int `json:"rejected"`
}
