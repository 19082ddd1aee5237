package source

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/creative-optimizer/internal/config"
	"github.com/ignite/creative-optimizer/internal/storage"
)

// FromConfig builds every enabled source. The returned closer releases
// warehouse connections.
func FromConfig(ctx context.Context, cfg *config.Config) ([]Source, func() error, error) {
	var sources []Source
	var warehouses []*Warehouse
	closer := func() error {
		var first error
		for _, w := range warehouses {
			if err := w.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	sc := cfg.Sources
	if sc.CSV.Enabled {
		if sc.CSV.Path == "" {
			return nil, closer, fmt.Errorf("%w: csv source requires a path", ErrUnsupportedSource)
		}
		sources = append(sources, &CSVFile{Path: sc.CSV.Path})
	}
	if sc.S3CSV.Enabled {
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Storage, sc.S3CSV.Region)
		if err != nil {
			return nil, closer, err
		}
		sources = append(sources, NewS3CSV(s3.NewFromConfig(awsCfg), sc.S3CSV.Bucket, sc.S3CSV.Prefix))
	}
	if sc.Sheets.Enabled {
		if sc.Sheets.SpreadsheetID == "" || sc.Sheets.ClientEmail == "" || sc.Sheets.PrivateKey == "" {
			return nil, closer, fmt.Errorf("%w: sheets source requires spreadsheet_id and service account credentials", ErrUnsupportedSource)
		}
		sources = append(sources, NewSheets(ctx, sc.Sheets))
	}
	if sc.Meta.Enabled {
		if sc.Meta.AccountID == "" || sc.Meta.AccessToken == "" {
			return nil, closer, fmt.Errorf("%w: meta source requires account_id and access_token", ErrUnsupportedSource)
		}
		sources = append(sources, NewMeta(ctx, sc.Meta))
	}
	if sc.Snowflake.Enabled {
		w, err := OpenWarehouse(sc.Snowflake, cfg.Analysis.WindowDays)
		if err != nil {
			return nil, closer, err
		}
		warehouses = append(warehouses, w)
		sources = append(sources, w)
	}
	return sources, closer, nil
}
