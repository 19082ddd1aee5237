package briefgen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/creative-optimizer/internal/domain"
	"github.com/ignite/creative-optimizer/internal/pkg/logger"
)

// ErrEmptyPayload is returned when an insight carries nothing to brief on.
var ErrEmptyPayload = errors.New("insight payload is empty")

// Brief is one generated creative brief.
type Brief struct {
	Text        string    `json:"text"`
	Model       string    `json:"model"`
	PayloadHash string    `json:"payload_hash"`
	Cached      bool      `json:"cached"`
	CreatedAt   time.Time `json:"created_at"`
}

// Service renders, generates and caches briefs.
type Service struct {
	prompts   *PromptBuilder
	generator Generator
	cache     *Cache
	now       func() time.Time
}

// NewService creates a brief service. cache may be nil.
func NewService(prompts *PromptBuilder, generator Generator, cache *Cache) *Service {
	return &Service{prompts: prompts, generator: generator, cache: cache, now: time.Now}
}

// PayloadHash is the hex SHA-256 of the payload's JSON encoding.
func PayloadHash(p domain.InsightPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Generate produces the brief for a payload, serving it from cache when the
// same payload was briefed before. Cache failures are logged and ignored.
func (s *Service) Generate(ctx context.Context, p domain.InsightPayload) (*Brief, error) {
	if p.Empty() {
		return nil, ErrEmptyPayload
	}
	hash, err := PayloadHash(p)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		text, ok, err := s.cache.Get(ctx, hash)
		if err != nil {
			logger.Warn("brief cache unavailable", "error", err.Error())
		} else if ok {
			return &Brief{Text: text, Model: s.generator.Model(), PayloadHash: hash, Cached: true, CreatedAt: s.now().UTC()}, nil
		}
	}

	prompt, err := s.prompts.Build(p)
	if err != nil {
		return nil, err
	}
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, hash, text); err != nil {
			logger.Warn("brief cache unavailable", "error", err.Error())
		}
	}
	return &Brief{Text: text, Model: s.generator.Model(), PayloadHash: hash, CreatedAt: s.now().UTC()}, nil
}
