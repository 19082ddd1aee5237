package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ignite/creative-optimizer/internal/config"
	"github.com/ignite/creative-optimizer/internal/datanorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	name string
	rows []datanorm.RawRow
	err  error
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Fetch(ctx context.Context) ([]datanorm.RawRow, error) {
	return s.rows, s.err
}

func TestFetchAll_SourceOrder(t *testing.T) {
	a := &staticSource{name: "a", rows: []datanorm.RawRow{{"ad_id": "1"}, {"ad_id": "2"}}}
	b := &staticSource{name: "b", err: errors.New("boom")}
	c := &staticSource{name: "c", rows: []datanorm.RawRow{{"ad_id": "3"}}}

	rows, results, err := FetchAll(context.Background(), []Source{a, b, c})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "1", rows[0]["ad_id"])
	assert.Equal(t, "3", rows[2]["ad_id"])

	require.Len(t, results, 3)
	assert.Equal(t, 2, results[0].Rows)
	assert.Error(t, results[1].Err)
	assert.Equal(t, "c", results[2].Source)
}

func TestFetchAll_AllFailed(t *testing.T) {
	_, _, err := FetchAll(context.Background(), []Source{
		&staticSource{name: "a", err: errors.New("down")},
		&staticSource{name: "b", err: errors.New("down")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: down")
	assert.Contains(t, err.Error(), "b: down")
}

func TestFetchAll_NoSources(t *testing.T) {
	rows, results, err := FetchAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, results)
}

func TestCSVFile_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ads.csv")
	require.NoError(t, os.WriteFile(path, []byte("ad_id,spend,impressions\nad-1,10,1000\n\nad-2,5,400\n"), 0o644))

	rows, err := (&CSVFile{Path: path}).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ad-2", rows[1]["ad_id"])
	assert.Equal(t, "400", rows[1]["impressions"])
}

func TestCSVFile_Missing(t *testing.T) {
	_, err := (&CSVFile{Path: filepath.Join(t.TempDir(), "nope.csv")}).Fetch(context.Background())
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Sources.CSV = config.CSVSourceConfig{Enabled: true, Path: "ads.csv"}

	sources, closer, err := FromConfig(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "csv:ads.csv", sources[0].Name())
	assert.NoError(t, closer())
}

func TestFromConfig_Incomplete(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*config.Config)
	}{
		{"csv without path", func(c *config.Config) { c.Sources.CSV.Enabled = true }},
		{"meta without token", func(c *config.Config) {
			c.Sources.Meta = config.MetaSourceConfig{Enabled: true, AccountID: "123"}
		}},
		{"sheets without key", func(c *config.Config) {
			c.Sources.Sheets = config.SheetsSourceConfig{Enabled: true, SpreadsheetID: "sheet"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			tt.setup(cfg)
			_, _, err := FromConfig(context.Background(), cfg)
			assert.ErrorIs(t, err, ErrUnsupportedSource)
		})
	}
}
