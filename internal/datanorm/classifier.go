package datanorm

import (
	"strings"
)

// Classification says what kind of export a file holds.
type Classification string

const (
	ClassPerformance Classification = "performance"
	ClassSummary     Classification = "summary"
	ClassUnknown     Classification = "unknown"
)

var summaryKeywords = []string{"summary", "total", "overview", "pivot"}

// Classify decides from a file name and its header whether an export carries
// per-ad performance rows. Account summaries and pivots share most columns
// with performance exports but have no ad id, and are skipped.
func Classify(key string, header []string) Classification {
	fields := make(map[CanonicalField]bool)
	for _, f := range MapColumns(header).FieldMap {
		fields[f] = true
	}
	has := func(f CanonicalField) bool { return fields[f] }

	if !has(FieldAdID) {
		keyLower := strings.ToLower(key)
		for _, kw := range summaryKeywords {
			if strings.Contains(keyLower, kw) {
				return ClassSummary
			}
		}
		return ClassUnknown
	}
	if has(FieldSpend) || has(FieldImpressions) {
		return ClassPerformance
	}
	return ClassUnknown
}
