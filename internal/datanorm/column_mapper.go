package datanorm

import (
	"sort"
	"strings"
)

// columnAliases maps lowercase header names to canonical fields.
// When multiple raw headers mean the same thing, they all map here.
var columnAliases = map[string]CanonicalField{
	// Ad
	"ad_id":   FieldAdID,
	"adid":    FieldAdID,
	"ad id":   FieldAdID,
	"ad":      FieldAdID,
	"ad_name": FieldAdID, // sheets exported without ids key on the ad name
	"ad name": FieldAdID,

	// Ad set
	"ad_set_id":   FieldAdSetID,
	"adset_id":    FieldAdSetID,
	"ad set id":   FieldAdSetID,
	"ad_set":      FieldAdSetID,
	"adset":       FieldAdSetID,
	"ad_set_name": FieldAdSetID,
	"ad set name": FieldAdSetID,

	// Campaign
	"campaign_id":   FieldCampaignID,
	"campaignid":    FieldCampaignID,
	"campaign id":   FieldCampaignID,
	"campaign":      FieldCampaignID,
	"campaign_name": FieldCampaignID,
	"campaign name": FieldCampaignID,

	// Dates
	"date_start":       FieldStart,
	"start":            FieldStart,
	"start_date":       FieldStart,
	"reporting_starts": FieldStart,
	"reporting starts": FieldStart,
	"date_end":         FieldEnd,
	"end":              FieldEnd,
	"end_date":         FieldEnd,
	"date_stop":        FieldStop,
	"reporting_ends":   FieldStop,
	"reporting ends":   FieldStop,
	"date":             FieldDate,
	"day":              FieldDate,

	// Money
	"spend":              FieldSpend,
	"cost":               FieldSpend,
	"amount_spent":       FieldSpend,
	"amount spent":       FieldSpend,
	"amount spent (usd)": FieldSpend,
	"revenue":            FieldRevenue,
	"purchase_value":     FieldRevenue,
	"conversion_value":   FieldRevenue,

	"purchases conversion value": FieldRevenue,

	// Counts
	"impressions": FieldImpressions,
	"impr":        FieldImpressions,
	"clicks":      FieldClicks,
	"link_clicks": FieldClicks,
	"link clicks": FieldClicks,
	"conversions": FieldConversions,
	"purchases":   FieldConversions,
	"bookings":    FieldConversions,
	"results":     FieldConversions,

	// Video
	"video_3s_views":     FieldVideo3sViews,
	"3_second_views":     FieldVideo3sViews,
	"video_play_actions": FieldVideo3sViews,
	"thruplays":          FieldThruPlays,
	"thruplay":           FieldThruPlays,

	"3-second video plays":           FieldVideo3sViews,
	"video_thruplay_watched_actions": FieldThruPlays,
}

// creativeColumns are raw headers carried into creative_attributes as-is.
var creativeColumns = map[string]bool{
	"format":         true,
	"hook":           true,
	"hook_type":      true,
	"cta":            true,
	"length_bucket":  true,
	"length_seconds": true,
	"angle":          true,
	"offer":          true,
	"placement":      true,
	"audience":       true,
}

const attributePrefix = "attr_"

// ColumnMapping holds the resolved mapping from raw column names to canonical
// fields and creative attribute names.
type ColumnMapping struct {
	FieldMap     map[string]CanonicalField // raw column -> canonical field
	AttributeMap map[string]string         // raw column -> attribute name
	Order        []string                  // raw columns in resolution order
}

// MapColumns resolves the columns of one row. Columns are visited in sorted
// order so that when two raw headers map to the same field the result does
// not depend on map iteration.
func MapColumns(columns []string) *ColumnMapping {
	m := &ColumnMapping{
		FieldMap:     make(map[string]CanonicalField, len(columns)),
		AttributeMap: make(map[string]string),
	}
	sorted := append([]string(nil), columns...)
	sort.Strings(sorted)
	m.Order = sorted

	for _, raw := range sorted {
		normalized := normalizeHeader(raw)
		if field, ok := columnAliases[normalized]; ok {
			m.FieldMap[raw] = field
			continue
		}
		if strings.HasPrefix(normalized, attributePrefix) {
			name := strings.TrimPrefix(normalized, attributePrefix)
			if name != "" {
				m.AttributeMap[raw] = name
			}
			continue
		}
		if creativeColumns[normalized] {
			m.AttributeMap[raw] = normalized
		}
	}
	return m
}

func normalizeHeader(h string) string {
	normalized := strings.ToLower(strings.TrimSpace(h))
	// Remove surrounding quotes
	normalized = strings.Trim(normalized, "\"'")
	return normalized
}
