package source

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ignite/creative-optimizer/internal/config"
	"github.com/ignite/creative-optimizer/internal/datanorm"
	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*){0,2}$`)

// Warehouse reads daily ad performance rows from a Snowflake table.
type Warehouse struct {
	db       *sql.DB
	table    string
	lookback int
	now      func() time.Time
}

// ParseConnectionString extracts credentials from a connection string of the
// form ACCOUNT=xxx;USER=zzz;PASSWORD=www;DB=database.schema;
func ParseConnectionString(connStr string) config.SnowflakeSourceConfig {
	parts := make(map[string]string)
	for _, part := range strings.Split(connStr, ";") {
		if idx := strings.IndexByte(part, '='); idx > 0 {
			parts[part[:idx]] = part[idx+1:]
		}
	}

	database, schema, _ := strings.Cut(parts["DB"], ".")
	return config.SnowflakeSourceConfig{
		Account:   parts["ACCOUNT"],
		User:      parts["USER"],
		Password:  parts["PASSWORD"],
		Database:  database,
		Schema:    schema,
		Warehouse: parts["WAREHOUSE"],
	}
}

// DSN builds the driver DSN: user:password@account/database/schema?warehouse=xxx
func DSN(cfg config.SnowflakeSourceConfig) string {
	if cfg.ConnectionString != "" {
		parsed := ParseConnectionString(cfg.ConnectionString)
		if cfg.Password != "" {
			parsed.Password = cfg.Password
		}
		if cfg.Warehouse != "" {
			parsed.Warehouse = cfg.Warehouse
		}
		cfg = parsed
	}
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s", cfg.User, cfg.Password, cfg.Account, cfg.Database, cfg.Schema)
	if cfg.Warehouse != "" {
		dsn += "?warehouse=" + cfg.Warehouse
	}
	return dsn
}

// OpenWarehouse opens a Snowflake connection pool for the configured table.
func OpenWarehouse(cfg config.SnowflakeSourceConfig, lookbackDays int) (*Warehouse, error) {
	db, err := sql.Open("snowflake", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open snowflake connection: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	w, err := NewWarehouse(db, cfg.Table, lookbackDays)
	if err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

// NewWarehouse wraps an open database handle.
func NewWarehouse(db *sql.DB, table string, lookbackDays int) (*Warehouse, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid warehouse table name %q", table)
	}
	if lookbackDays <= 0 {
		lookbackDays = 7
	}
	return &Warehouse{db: db, table: table, lookback: lookbackDays, now: time.Now}, nil
}

// Name implements Source.
func (w *Warehouse) Name() string { return "snowflake:" + w.table }

// Close closes the database connection.
func (w *Warehouse) Close() error {
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

// Fetch implements Source. Column names are lowercased so the column
// mapper sees the same keys as a CSV export.
func (w *Warehouse) Fetch(ctx context.Context) ([]datanorm.RawRow, error) {
	since := w.now().UTC().AddDate(0, 0, -w.lookback).Format("2006-01-02")
	query := fmt.Sprintf(`SELECT * FROM %s WHERE DATE_START >= ? ORDER BY DATE_START, AD_ID`, w.table)

	rows, err := w.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", w.table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	for i, c := range cols {
		cols[i] = strings.ToLower(c)
	}

	out := []datanorm.RawRow{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(datanorm.RawRow, len(cols))
		for i, c := range cols {
			switch v := values[i].(type) {
			case nil:
				continue
			case []byte:
				row[c] = string(v)
			case time.Time:
				row[c] = v.UTC().Format("2006-01-02")
			default:
				row[c] = v
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
