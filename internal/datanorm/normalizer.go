package datanorm

import (
	"fmt"
	"strconv"

	"github.com/ignite/creative-optimizer/internal/domain"
	"github.com/ignite/creative-optimizer/internal/pkg/logger"
	"golang.org/x/text/cases"
)

// requiredFields are the columns fixed by the input contract. The date range
// may instead come from a single FieldDate column.
var requiredFields = []CanonicalField{
	FieldAdID, FieldCampaignID, FieldSpend, FieldImpressions, FieldClicks, FieldConversions, FieldRevenue,
}

// rowError is a per-row failure; it never escapes Normalize.
type rowError struct {
	reason domain.RejectReason
	field  CanonicalField
	detail string
}

func (e *rowError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.reason, e.field, e.detail)
}

func missing(f CanonicalField) *rowError {
	return &rowError{reason: domain.RejectMissingField, field: f, detail: "required field absent"}
}

func typeError(f CanonicalField, err error) *rowError {
	return &rowError{reason: domain.RejectTypeError, field: f, detail: err.Error()}
}

func violation(f CanonicalField, detail string) *rowError {
	return &rowError{reason: domain.RejectInvariantViolation, field: f, detail: detail}
}

// Normalize validates and coerces raw rows into performance records.
//
// A malformed row is rejected with a reason code and the batch continues; an
// empty input yields empty outputs. When two rows share (ad_id, date_range)
// the later row in the input wins and the earlier one is rejected as a
// duplicate.
func Normalize(rows []RawRow) ([]domain.PerformanceRecord, []domain.Reject) {
	records, rejects, _ := NormalizeWithSummary(rows)
	return records, rejects
}

// NormalizeWithSummary is Normalize plus per-reason counts.
func NormalizeWithSummary(rows []RawRow) ([]domain.PerformanceRecord, []domain.Reject, Summary) {
	summary := Summary{TotalRows: len(rows), Rejected: map[string]int{}}
	if len(rows) == 0 {
		return []domain.PerformanceRecord{}, []domain.Reject{}, summary
	}

	// cases.Caser is stateful; one per call keeps Normalize safe for concurrent use.
	folder := cases.Fold()

	type parsed struct {
		index  int
		record domain.PerformanceRecord
	}
	var (
		valid   []parsed
		rejects []domain.Reject
		latest  = make(map[string]int) // identity -> index in valid
	)

	for i, row := range rows {
		rec, rerr := normalizeRow(row, folder)
		if rerr != nil {
			rejects = append(rejects, reject(row, i, rerr.reason, string(rerr.field), rerr.detail))
			continue
		}
		latest[rec.Identity()] = len(valid)
		valid = append(valid, parsed{index: i, record: rec})
	}

	records := make([]domain.PerformanceRecord, 0, len(valid))
	for pos, p := range valid {
		winner := latest[p.record.Identity()]
		if winner != pos {
			superseded := valid[winner].index
			logger.Debug("duplicate performance row",
				"ad_id", p.record.AdID, "date_range", p.record.DateRange.Key(),
				"row", p.index, "superseded_by", superseded)
			rejects = append(rejects, reject(rows[p.index], p.index, domain.RejectDuplicate, "",
				"superseded by row "+strconv.Itoa(superseded)))
			continue
		}
		records = append(records, p.record)
	}

	if rejects == nil {
		rejects = []domain.Reject{}
	}
	sortRejects(rejects)
	for _, r := range rejects {
		summary.Rejected[string(r.Reason)]++
	}
	summary.Records = len(records)

	logger.Info("normalized performance rows",
		"rows", len(rows), "records", len(records), "rejects", len(rejects))
	return records, rejects, summary
}

func reject(row RawRow, index int, reason domain.RejectReason, field, detail string) domain.Reject {
	cp := make(map[string]any, len(row))
	for k, v := range row {
		cp[k] = v
	}
	return domain.Reject{Row: cp, Index: index, Reason: reason, Field: field, Detail: detail}
}

// sortRejects orders rejects by input position (insertion sort; batches are small
// and already almost sorted).
func sortRejects(rs []domain.Reject) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j].Index < rs[j-1].Index; j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}

// resolveFields picks one raw value per canonical field. A column whose name is
// exactly the canonical name wins; otherwise the first non-blank column in
// sorted order.
func resolveFields(row RawRow, mapping *ColumnMapping) map[CanonicalField]any {
	values := make(map[CanonicalField]any, len(mapping.FieldMap))
	exact := make(map[CanonicalField]bool, len(mapping.FieldMap))
	for _, raw := range mapping.Order {
		field, ok := mapping.FieldMap[raw]
		if !ok || isBlank(row[raw]) || exact[field] {
			continue
		}
		if normalizeHeader(raw) == string(field) {
			values[field] = row[raw]
			exact[field] = true
			continue
		}
		if _, seen := values[field]; !seen {
			values[field] = row[raw]
		}
	}
	return values
}

func normalizeRow(row RawRow, folder cases.Caser) (domain.PerformanceRecord, *rowError) {
	var rec domain.PerformanceRecord

	columns := make([]string, 0, len(row))
	for k := range row {
		columns = append(columns, k)
	}
	mapping := MapColumns(columns)
	values := resolveFields(row, mapping)

	for _, f := range requiredFields {
		if _, ok := values[f]; !ok {
			return rec, missing(f)
		}
	}

	var err error
	if rec.AdID, err = parseIdentifier(values[FieldAdID]); err != nil {
		return rec, typeError(FieldAdID, err)
	}
	if rec.CampaignID, err = parseIdentifier(values[FieldCampaignID]); err != nil {
		return rec, typeError(FieldCampaignID, err)
	}
	if v, ok := values[FieldAdSetID]; ok {
		if rec.AdSetID, err = parseIdentifier(v); err != nil {
			return rec, typeError(FieldAdSetID, err)
		}
	}

	if rerr := parseRange(values, &rec); rerr != nil {
		return rec, rerr
	}

	if rec.Spend, err = parseNumber(values[FieldSpend]); err != nil {
		return rec, typeError(FieldSpend, err)
	}
	if rec.Revenue, err = parseNumber(values[FieldRevenue]); err != nil {
		return rec, typeError(FieldRevenue, err)
	}
	counts := []struct {
		field CanonicalField
		dst   *int64
		opt   bool
	}{
		{FieldImpressions, &rec.Impressions, false},
		{FieldClicks, &rec.Clicks, false},
		{FieldConversions, &rec.Conversions, false},
		{FieldVideo3sViews, &rec.Video3sViews, true},
		{FieldThruPlays, &rec.ThruPlays, true},
	}
	for _, c := range counts {
		v, ok := values[c.field]
		if !ok && c.opt {
			continue
		}
		if *c.dst, err = parseCount(v); err != nil {
			return rec, typeError(c.field, err)
		}
		if *c.dst < 0 {
			return rec, violation(c.field, "negative count")
		}
	}

	if rec.Spend < 0 {
		return rec, violation(FieldSpend, "negative spend")
	}
	if rec.Revenue < 0 {
		return rec, violation(FieldRevenue, "negative revenue")
	}
	if rec.Clicks > rec.Impressions {
		return rec, violation(FieldClicks,
			fmt.Sprintf("clicks %d exceed impressions %d", rec.Clicks, rec.Impressions))
	}

	rec.Attributes = attributes(row, mapping, folder)
	return rec, nil
}

func parseRange(values map[CanonicalField]any, rec *domain.PerformanceRecord) *rowError {
	startRaw, hasStart := values[FieldStart]
	endRaw, hasEnd := values[FieldEnd]
	stopRaw, hasStop := values[FieldStop]
	dateRaw, hasDate := values[FieldDate]

	switch {
	case hasStart && hasEnd:
		start, err := parseDate(startRaw)
		if err != nil {
			return typeError(FieldStart, err)
		}
		end, err := parseDate(endRaw)
		if err != nil {
			return typeError(FieldEnd, err)
		}
		rec.DateRange = domain.DateRange{Start: start, End: end}
	case hasStart && hasStop:
		start, err := parseDate(startRaw)
		if err != nil {
			return typeError(FieldStart, err)
		}
		stop, err := parseDate(stopRaw)
		if err != nil {
			return typeError(FieldStop, err)
		}
		rec.DateRange = domain.DateRange{Start: start, End: stop.AddDate(0, 0, 1)}
	case hasDate:
		day, err := parseDate(dateRaw)
		if err != nil {
			return typeError(FieldDate, err)
		}
		rec.DateRange = domain.DateRange{Start: day, End: day.AddDate(0, 0, 1)}
	case hasStart:
		return missing(FieldEnd)
	default:
		return missing(FieldStart)
	}

	if !rec.DateRange.Valid() {
		return violation(FieldEnd, "date range end is not after start")
	}
	return nil
}

func attributes(row RawRow, mapping *ColumnMapping, folder cases.Caser) map[string]string {
	if len(mapping.AttributeMap) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(mapping.AttributeMap))
	for _, raw := range mapping.Order {
		name, ok := mapping.AttributeMap[raw]
		if !ok || isBlank(row[raw]) {
			continue
		}
		if name == "length_seconds" {
			if secs, err := parseNumber(row[raw]); err == nil {
				if bucket := lengthBucket(secs); bucket != "" {
					if _, explicit := attrs[AttributeLengthBucket]; !explicit {
						attrs[AttributeLengthBucket] = bucket
					}
				}
			}
			continue
		}
		if v := attributeValue(folder, row[raw]); v != "" {
			attrs[name] = v
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
