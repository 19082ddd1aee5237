package source

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/creative-optimizer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConnectionString(t *testing.T) {
	cfg := ParseConnectionString("scheme=https;ACCOUNT=acme-xy123;HOST=acme.snowflakecomputing.com;port=443;USER=svc;PASSWORD=secret;DB=ADS.PUBLIC;WAREHOUSE=COMPUTE_WH")
	assert.Equal(t, "acme-xy123", cfg.Account)
	assert.Equal(t, "svc", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "ADS", cfg.Database)
	assert.Equal(t, "PUBLIC", cfg.Schema)
	assert.Equal(t, "COMPUTE_WH", cfg.Warehouse)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "u:p@acct/db/sch?warehouse=wh", DSN(config.SnowflakeSourceConfig{
		Account: "acct", User: "u", Password: "p", Database: "db", Schema: "sch", Warehouse: "wh",
	}))
	assert.Equal(t, "svc:override@acct/ADS/", DSN(config.SnowflakeSourceConfig{
		ConnectionString: "ACCOUNT=acct;USER=svc;PASSWORD=secret;DB=ADS",
		Password:         "override",
	}))
}

func TestNewWarehouse_RejectsTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"", "ads; DROP TABLE x", "a.b.c.d", "1ads"} {
		_, err := NewWarehouse(db, table, 7)
		assert.Error(t, err, table)
	}
	_, err = NewWarehouse(db, "ADS.PUBLIC.AD_PERFORMANCE_DAILY", 7)
	assert.NoError(t, err)
}

func TestWarehouse_Fetch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w, err := NewWarehouse(db, "AD_PERFORMANCE_DAILY", 7)
	require.NoError(t, err)
	w.now = func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }

	day := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"AD_ID", "CAMPAIGN_ID", "DATE_START", "DATE_STOP", "SPEND", "IMPRESSIONS", "HOOK"}).
		AddRow([]byte("ad-1"), "c1", day, day, "12.50", int64(1000), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM AD_PERFORMANCE_DAILY WHERE DATE_START >= ?")).
		WithArgs("2025-03-03").
		WillReturnRows(rows)

	got, err := w.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ad-1", got[0]["ad_id"])
	assert.Equal(t, "2025-03-08", got[0]["date_stop"])
	assert.Equal(t, int64(1000), got[0]["impressions"])
	assert.NotContains(t, got[0], "hook")
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, "snowflake:AD_PERFORMANCE_DAILY", w.Name())
}

func TestWarehouse_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w, err := NewWarehouse(db, "ADS", 3)
	require.NoError(t, err)
	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	_, err = w.Fetch(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}
