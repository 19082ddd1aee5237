package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/creative-optimizer/internal/config"
	"github.com/ignite/creative-optimizer/internal/datanorm"
	"github.com/ignite/creative-optimizer/internal/pkg/httpretry"
)

const metaFields = "ad_id,adset_id,campaign_id,date_start,date_stop,spend,impressions,inline_link_clicks,actions,action_values,video_thruplay_watched_actions"

// purchase action types in the order they are preferred.
var purchaseActions = []string{"purchase", "omni_purchase", "offsite_conversion.fb_pixel_purchase"}

// Meta reads daily ad-level insights from the Graph API.
type Meta struct {
	client     httpretry.HTTPDoer
	baseURL    string
	apiVersion string
	accountID  string
	lookback   int
	now        func() time.Time
}

type metaAction struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

type metaInsight struct {
	AdID        string       `json:"ad_id"`
	AdSetID     string       `json:"adset_id"`
	CampaignID  string       `json:"campaign_id"`
	DateStart   string       `json:"date_start"`
	DateStop    string       `json:"date_stop"`
	Spend       string       `json:"spend"`
	Impressions string       `json:"impressions"`
	LinkClicks  string       `json:"inline_link_clicks"`
	Actions     []metaAction `json:"actions"`
	Values      []metaAction `json:"action_values"`
	ThruPlays   []metaAction `json:"video_thruplay_watched_actions"`
}

type metaPage struct {
	Data   []metaInsight `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// NewMeta creates a Meta insights source. The access token is sent as a
// bearer header.
func NewMeta(ctx context.Context, cfg config.MetaSourceConfig) *Meta {
	base := StaticToken(ctx, cfg.AccessToken)
	base.Timeout = cfg.Timeout()
	return NewMetaWithClient(httpretry.NewRetryClient(base, 3), cfg)
}

// NewMetaWithClient creates a Meta source on an already authorized client.
func NewMetaWithClient(client httpretry.HTTPDoer, cfg config.MetaSourceConfig) *Meta {
	account := cfg.AccountID
	if !strings.HasPrefix(account, "act_") {
		account = "act_" + account
	}
	lookback := cfg.LookbackDays
	if lookback <= 0 {
		lookback = 7
	}
	return &Meta{
		client:     client,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion: cfg.APIVersion,
		accountID:  account,
		lookback:   lookback,
		now:        time.Now,
	}
}

// Name implements Source.
func (m *Meta) Name() string { return "meta:" + m.accountID }

// Fetch implements Source. One row is emitted per ad per day, following
// paging cursors until the last page.
func (m *Meta) Fetch(ctx context.Context) ([]datanorm.RawRow, error) {
	today := m.now().UTC().Truncate(24 * time.Hour)
	timeRange, _ := json.Marshal(map[string]string{
		"since": today.AddDate(0, 0, -m.lookback).Format("2006-01-02"),
		"until": today.AddDate(0, 0, -1).Format("2006-01-02"),
	})
	q := url.Values{}
	q.Set("level", "ad")
	q.Set("time_increment", "1")
	q.Set("time_range", string(timeRange))
	q.Set("fields", metaFields)
	q.Set("limit", "500")
	next := fmt.Sprintf("%s/%s/%s/insights?%s", m.baseURL, m.apiVersion, m.accountID, q.Encode())

	rows := []datanorm.RawRow{}
	for next != "" {
		page, err := m.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, in := range page.Data {
			rows = append(rows, in.row())
		}
		next = page.Paging.Next
	}
	return rows, nil
}

func (m *Meta) fetchPage(ctx context.Context, endpoint string) (*metaPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("meta insights request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading meta response: %w", err)
	}
	var page metaPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decoding meta response (status %d): %w", resp.StatusCode, err)
	}
	if page.Error != nil {
		return nil, fmt.Errorf("meta api error %d: %s", page.Error.Code, page.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("meta returned %d", resp.StatusCode)
	}
	return &page, nil
}

func (in metaInsight) row() datanorm.RawRow {
	row := datanorm.RawRow{
		"ad_id":       in.AdID,
		"ad_set_id":   in.AdSetID,
		"campaign_id": in.CampaignID,
		"date_start":  in.DateStart,
		"date_stop":   in.DateStop,
		"spend":       orZero(in.Spend),
		"impressions": orZero(in.Impressions),
		"clicks":      orZero(in.LinkClicks),
		"conversions": firstAction(in.Actions, purchaseActions...),
		"revenue":     firstAction(in.Values, purchaseActions...),
	}
	if v := firstAction(in.Actions, "video_view"); v != "0" {
		row["video_3s_views"] = v
	}
	if v := firstAction(in.ThruPlays, "video_view"); v != "0" {
		row["thruplays"] = v
	}
	return row
}

// firstAction returns the value of the first listed action type present,
// or "0" when none is reported.
func firstAction(actions []metaAction, types ...string) string {
	for _, t := range types {
		for _, a := range actions {
			if a.ActionType == t {
				if _, err := strconv.ParseFloat(a.Value, 64); err == nil {
					return a.Value
				}
			}
		}
	}
	return "0"
}

// orZero fills metrics the API omits when nothing happened.
func orZero(v string) string {
	if v == "" {
		return "0"
	}
	return v
}
