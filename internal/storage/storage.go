package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ignite/creative-optimizer/internal/config"
	"github.com/ignite/creative-optimizer/internal/domain"
	"github.com/ignite/creative-optimizer/internal/pkg/logger"
)

// ErrNotFound is returned when nothing has been stored under a key yet.
var ErrNotFound = errors.New("not found")

// CycleRecord is the persisted outcome of one optimization cycle.
type CycleRecord struct {
	CycleID         string                  `json:"cycle_id"`
	SnapshotID      string                  `json:"snapshot_id"`
	Window          domain.Window           `json:"window"`
	Level           domain.AggregationLevel `json:"level"`
	RecordedAt      time.Time               `json:"recorded_at"`
	Records         int                     `json:"records"`
	Rejects         []domain.Reject         `json:"rejects"`
	Recommendations []domain.Recommendation `json:"recommendations"`
	Changes         []domain.ActionChange   `json:"changes"`
}

// HistoryEntry is one past recommendation for an ad.
type HistoryEntry struct {
	CycleID        string                `json:"cycle_id"`
	RecordedAt     time.Time             `json:"recorded_at"`
	Recommendation domain.Recommendation `json:"recommendation"`
}

// InsightRecord is a stored insight payload.
type InsightRecord struct {
	CycleID    string                `json:"cycle_id"`
	RecordedAt time.Time             `json:"recorded_at"`
	Payload    domain.InsightPayload `json:"payload"`
}

// BriefRecord is a generated creative brief.
type BriefRecord struct {
	CycleID     string    `json:"cycle_id"`
	Model       string    `json:"model"`
	Text        string    `json:"text"`
	PayloadHash string    `json:"payload_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Storage persists cycle outputs. Recommendation history is append-only:
// nothing ever rewrites or removes an entry.
type Storage struct {
	config config.StorageConfig
	mu     sync.RWMutex

	// AWS storage (optional)
	aws *AWSStorage

	history       map[string][]HistoryEntry
	latestCycle   *CycleRecord
	latestInsight *InsightRecord
}

// New creates a new Storage instance
func New(cfg config.StorageConfig) (*Storage, error) {
	s := &Storage{
		config:  cfg,
		history: make(map[string][]HistoryEntry),
	}

	ctx := context.Background()

	switch cfg.Type {
	case "aws":
		awsStorage, err := NewAWSStorage(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("initializing AWS storage: %w", err)
		}
		s.aws = awsStorage

	case "local":
		if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
		if err := s.loadFromDisk(); err != nil {
			// Not fatal - start with an empty history
			logger.Warn("could not load stored history", "path", cfg.LocalPath, "error", err.Error())
		}

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}

	return s, nil
}

// SaveCycle appends every recommendation of the cycle to its ad's history and
// records the cycle as the latest one.
func (s *Storage) SaveCycle(ctx context.Context, rec CycleRecord) error {
	entries := make([]HistoryEntry, 0, len(rec.Recommendations))
	for _, r := range rec.Recommendations {
		entries = append(entries, HistoryEntry{CycleID: rec.CycleID, RecordedAt: rec.RecordedAt, Recommendation: r})
	}

	if s.aws != nil {
		if err := s.aws.AppendHistory(ctx, entries); err != nil {
			return err
		}
		if err := s.aws.SaveToS3(ctx, cycleKey(rec.RecordedAt, rec.CycleID), rec); err != nil {
			return err
		}
		if err := s.aws.SaveToS3(ctx, "cycles/latest.json", rec); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]bool)
	for _, e := range entries {
		s.history[e.Recommendation.AdID] = append(s.history[e.Recommendation.AdID], e)
		touched[e.Recommendation.AdID] = true
	}
	latest := rec
	s.latestCycle = &latest

	if s.aws == nil {
		for adID := range touched {
			if err := s.saveToFile("history", adID, s.history[adID]); err != nil {
				return fmt.Errorf("saving history for %s: %w", adID, err)
			}
		}
		if err := s.saveToFile("cycles", rec.CycleID, rec); err != nil {
			return fmt.Errorf("saving cycle: %w", err)
		}
		if err := s.saveToFile("cycles", "latest", rec); err != nil {
			return fmt.Errorf("saving cycle: %w", err)
		}
	}
	return nil
}

// LatestCycle returns the most recently saved cycle.
func (s *Storage) LatestCycle(ctx context.Context) (*CycleRecord, error) {
	s.mu.RLock()
	latest := s.latestCycle
	s.mu.RUnlock()
	if latest != nil {
		out := *latest
		return &out, nil
	}

	if s.aws != nil {
		var rec CycleRecord
		if err := s.aws.GetFromS3(ctx, "cycles/latest.json", &rec); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return &rec, nil
	}
	return nil, ErrNotFound
}

// History returns every stored recommendation for an ad, oldest first.
func (s *Storage) History(ctx context.Context, adID string) ([]HistoryEntry, error) {
	if s.aws != nil {
		entries, err := s.aws.QueryHistory(ctx, adID)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, ErrNotFound
		}
		return entries, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.history[adID]
	if !ok || len(entries) == 0 {
		return nil, ErrNotFound
	}
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

// SaveInsight stores the insight payload of a cycle and marks it latest.
func (s *Storage) SaveInsight(ctx context.Context, rec InsightRecord) error {
	if s.aws != nil {
		if err := s.aws.SaveToS3(ctx, insightKey(rec.RecordedAt, rec.CycleID), rec); err != nil {
			return err
		}
		if err := s.aws.SaveToS3(ctx, "insights/latest.json", rec); err != nil {
			return err
		}
	} else {
		if err := s.saveToFile("insights", rec.CycleID, rec); err != nil {
			return fmt.Errorf("saving insight: %w", err)
		}
		if err := s.saveToFile("insights", "latest", rec); err != nil {
			return fmt.Errorf("saving insight: %w", err)
		}
	}

	s.mu.Lock()
	latest := rec
	s.latestInsight = &latest
	s.mu.Unlock()
	return nil
}

// LatestInsight returns the most recently saved insight payload.
func (s *Storage) LatestInsight(ctx context.Context) (*InsightRecord, error) {
	s.mu.RLock()
	latest := s.latestInsight
	s.mu.RUnlock()
	if latest != nil {
		out := *latest
		return &out, nil
	}

	var rec InsightRecord
	var err error
	if s.aws != nil {
		err = s.aws.GetFromS3(ctx, "insights/latest.json", &rec)
	} else {
		err = s.loadFromFile("insights", "latest", &rec)
		if errors.Is(err, os.ErrNotExist) {
			err = ErrNotFound
		}
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveBrief stores a generated brief next to its cycle.
func (s *Storage) SaveBrief(ctx context.Context, rec BriefRecord) error {
	if s.aws != nil {
		return s.aws.SaveToS3(ctx, fmt.Sprintf("briefs/%s.json", rec.CycleID), rec)
	}
	if err := s.saveToFile("briefs", rec.CycleID, rec); err != nil {
		return fmt.Errorf("saving brief: %w", err)
	}
	return nil
}

func cycleKey(at time.Time, cycleID string) string {
	return fmt.Sprintf("cycles/%s/%s.json", at.UTC().Format("2006/01/02"), cycleID)
}

func insightKey(at time.Time, cycleID string) string {
	return fmt.Sprintf("insights/%s/%s.json", at.UTC().Format("2006/01/02"), cycleID)
}

// saveToFile saves data to a JSON file
func (s *Storage) saveToFile(category, key string, data interface{}) error {
	dir := filepath.Join(s.config.LocalPath, category)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path := filepath.Join(dir, safeName(key)+".json")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// loadFromFile loads data from a JSON file
func (s *Storage) loadFromFile(category, key string, data interface{}) error {
	path := filepath.Join(s.config.LocalPath, category, safeName(key)+".json")

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(data)
}

// loadFromDisk loads existing history and the latest outputs from disk
func (s *Storage) loadFromDisk() error {
	historyDir := filepath.Join(s.config.LocalPath, "history")
	if entries, err := os.ReadDir(historyDir); err == nil {
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			data, err := os.ReadFile(filepath.Join(historyDir, entry.Name()))
			if err != nil {
				continue
			}
			adID, err := url.PathUnescape(strings.TrimSuffix(entry.Name(), ".json"))
			if err != nil {
				continue
			}
			var hist []HistoryEntry
			if err := json.Unmarshal(data, &hist); err != nil || len(hist) == 0 {
				continue
			}
			s.history[adID] = hist
		}
	}

	var cycle CycleRecord
	if err := s.loadFromFile("cycles", "latest", &cycle); err == nil {
		s.latestCycle = &cycle
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	var insight InsightRecord
	if err := s.loadFromFile("insights", "latest", &insight); err == nil {
		s.latestInsight = &insight
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// safeName escapes a key into a single file name. The encoding is reversible
// so distinct keys never share a file.
func safeName(key string) string {
	return url.PathEscape(key)
}

// GetAWSStorage returns the underlying AWS storage (for direct access if needed)
func (s *Storage) GetAWSStorage() *AWSStorage {
	return s.aws
}
