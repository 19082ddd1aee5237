package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignite/creative-optimizer/internal/config"
	"github.com/ignite/creative-optimizer/internal/datanorm"
	"github.com/ignite/creative-optimizer/internal/pkg/httpretry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"
)

const (
	sheetsBaseURL  = "https://sheets.googleapis.com"
	googleTokenURL = "https://oauth2.googleapis.com/token"
	sheetsScope    = "https://www.googleapis.com/auth/spreadsheets.readonly"
)

// Sheets reads a spreadsheet range whose first row is the header.
type Sheets struct {
	client        httpretry.HTTPDoer
	baseURL       string
	spreadsheetID string
	rangeName     string
}

type valueRange struct {
	Range  string  `json:"range"`
	Values [][]any `json:"values"`
}

// NewSheets creates a Sheets source authenticated with a service account.
func NewSheets(ctx context.Context, cfg config.SheetsSourceConfig) *Sheets {
	jwtCfg := &jwt.Config{
		Email:      cfg.ClientEmail,
		PrivateKey: []byte(cfg.PrivateKey),
		Scopes:     []string{sheetsScope},
		TokenURL:   googleTokenURL,
	}
	return NewSheetsWithClient(httpretry.NewRetryClient(jwtCfg.Client(ctx), 3), cfg)
}

// NewSheetsWithClient creates a Sheets source on an already authorized client.
func NewSheetsWithClient(client httpretry.HTTPDoer, cfg config.SheetsSourceConfig) *Sheets {
	base := cfg.BaseURL
	if base == "" {
		base = sheetsBaseURL
	}
	return &Sheets{
		client:        client,
		baseURL:       strings.TrimRight(base, "/"),
		spreadsheetID: cfg.SpreadsheetID,
		rangeName:     cfg.Range,
	}
}

// StaticToken returns an HTTP client authorized with a fixed bearer token.
func StaticToken(ctx context.Context, token string) *http.Client {
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
}

// Name implements Source.
func (s *Sheets) Name() string { return "sheets:" + s.spreadsheetID + "!" + s.rangeName }

// Fetch implements Source.
func (s *Sheets) Fetch(ctx context.Context) ([]datanorm.RawRow, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?valueRenderOption=UNFORMATTED_VALUE&dateTimeRenderOption=FORMATTED_STRING",
		s.baseURL, url.PathEscape(s.spreadsheetID), url.PathEscape(s.rangeName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheets request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sheets returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var vr valueRange
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("decoding sheets response: %w", err)
	}
	return rowsFromValues(vr.Values), nil
}

// rowsFromValues turns a header row plus data rows into raw rows. The API
// drops trailing empty cells, so short rows are allowed.
func rowsFromValues(values [][]any) []datanorm.RawRow {
	rows := []datanorm.RawRow{}
	if len(values) == 0 {
		return rows
	}
	header := make([]string, len(values[0]))
	for i, h := range values[0] {
		header[i] = strings.TrimSpace(fmt.Sprint(h))
	}
	for _, line := range values[1:] {
		row := make(datanorm.RawRow, len(header))
		empty := true
		for i, v := range line {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
			row[header[i]] = v
			empty = false
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows
}
