package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/creative-optimizer/internal/briefgen"
	"github.com/ignite/creative-optimizer/internal/datanorm"
	"github.com/ignite/creative-optimizer/internal/domain"
	"github.com/ignite/creative-optimizer/internal/engine"
	"github.com/ignite/creative-optimizer/internal/optimizer"
	"github.com/ignite/creative-optimizer/internal/pkg/distlock"
	"github.com/ignite/creative-optimizer/internal/pkg/httputil"
	"github.com/ignite/creative-optimizer/internal/storage"
)

// Handlers serves the optimization endpoints.
type Handlers struct {
	store  *storage.Storage
	policy engine.Policy
	briefs *briefgen.Service // nil disables POST /api/briefs
	now    func() time.Time
}

// NewHandlers creates handlers bound to a loaded policy.
func NewHandlers(store *storage.Storage, policy engine.Policy, briefs *briefgen.Service) *Handlers {
	return &Handlers{store: store, policy: policy, briefs: briefs, now: time.Now}
}

// CycleRequest is the body of POST /api/cycles. Dates are YYYY-MM-DD; an
// omitted bound leaves the window open on that side.
type CycleRequest struct {
	Rows       []datanorm.RawRow `json:"rows"`
	Start      string            `json:"start,omitempty"`
	End        string            `json:"end,omitempty"`
	Level      string            `json:"level,omitempty"`
	Dimensions []string          `json:"dimensions,omitempty"`
}

// CycleResponse is the outcome of a cycle run through the API.
type CycleResponse struct {
	*optimizer.Result
	Changes []domain.ActionChange `json:"changes"`
}

func (req CycleRequest) window() (domain.Window, error) {
	var w domain.Window
	var err error
	if req.Start != "" {
		if w.Start, err = time.Parse("2006-01-02", req.Start); err != nil {
			return w, fmt.Errorf("invalid start date %q", req.Start)
		}
	}
	if req.End != "" {
		if w.End, err = time.Parse("2006-01-02", req.End); err != nil {
			return w, fmt.Errorf("invalid end date %q", req.End)
		}
	}
	return w, nil
}

// RunCycle runs one cycle over the posted rows and records it.
//
//	POST /api/cycles
func (h *Handlers) RunCycle(w http.ResponseWriter, r *http.Request) {
	var req CycleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	window, err := req.window()
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	opts := optimizer.Options{
		Window:     window,
		Level:      domain.AggregationLevel(req.Level),
		Dimensions: req.Dimensions,
		Policy:     h.policy,
	}
	if err := opts.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var resp CycleResponse
	lock := distlock.NewLocalLock(distlock.CycleKey(window, opts.Level))
	err = distlock.Run(r.Context(), lock, func(ctx context.Context) error {
		now := h.now()
		res, err := optimizer.Run(optimizer.NewSnapshot(req.Rows, now), opts)
		if err != nil {
			return err
		}
		rec, err := h.store.RecordResult(ctx, res, now)
		if err != nil {
			return err
		}
		resp = CycleResponse{Result: res, Changes: rec.Changes}
		return nil
	})
	switch {
	case errors.Is(err, distlock.ErrLockHeld):
		httputil.Conflict(w, "a cycle for this window is already running")
	case errors.Is(err, engine.ErrInvalidPolicy), errors.Is(err, optimizer.ErrInvalidOptions):
		httputil.BadRequest(w, err.Error())
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.Created(w, resp)
	}
}

// GetPolicy returns the loaded decision policy with rules in evaluation order.
//
//	GET /api/policy
func (h *Handlers) GetPolicy(w http.ResponseWriter, r *http.Request) {
	p := h.policy
	p.Rules = h.policy.OrderedRules()
	httputil.OK(w, p)
}

// GetHistory returns every recorded recommendation for one ad.
//
//	GET /api/recommendations/{adID}/history
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	adID := chi.URLParam(r, "adID")
	entries, err := h.store.History(r.Context(), adID)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.NotFound(w, fmt.Sprintf("no recommendations recorded for ad %q", adID))
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"ad_id": adID, "history": entries})
}

// GetLatestInsight returns the insight payload of the latest cycle.
//
//	GET /api/insights/latest
func (h *Handlers) GetLatestInsight(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.LatestInsight(r.Context())
	if errors.Is(err, storage.ErrNotFound) {
		httputil.NotFound(w, "no insight recorded yet")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, rec)
}

// GenerateBrief drafts a creative brief from the latest insight.
//
//	POST /api/briefs
func (h *Handlers) GenerateBrief(w http.ResponseWriter, r *http.Request) {
	if h.briefs == nil {
		httputil.ServiceUnavailable(w, "brief generation is not enabled")
		return
	}
	rec, err := h.store.LatestInsight(r.Context())
	if errors.Is(err, storage.ErrNotFound) {
		httputil.NotFound(w, "no insight recorded yet")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	brief, err := h.briefs.Generate(r.Context(), rec.Payload)
	if errors.Is(err, briefgen.ErrEmptyPayload) {
		httputil.Conflict(w, "latest insight has nothing to brief on")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	err = h.store.SaveBrief(r.Context(), storage.BriefRecord{
		CycleID:     rec.CycleID,
		Model:       brief.Model,
		Text:        brief.Text,
		PayloadHash: brief.PayloadHash,
		CreatedAt:   brief.CreatedAt,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, map[string]interface{}{"cycle_id": rec.CycleID, "brief": brief})
}
