package datanorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		headers  []string
		want     Classification
	}{
		{"meta ads manager export", "exports/2026-10-01.csv", []string{"Ad ID", "Campaign ID", "Reporting starts", "Amount spent (USD)", "Impressions"}, ClassPerformance},
		{"sheet keyed by ad name", "creative-tracker.csv", []string{"Ad name", "Impressions", "Format"}, ClassPerformance},
		{"account summary", "weekly-summary.csv", []string{"Campaign name", "Amount spent (USD)", "Impressions"}, ClassSummary},
		{"unrelated file", "notes.csv", []string{"owner", "comment"}, ClassUnknown},
		{"ad list without metrics", "ads.csv", []string{"ad_id", "format", "cta"}, ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.filename, tt.headers))
		})
	}
}
