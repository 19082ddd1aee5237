// Package briefgen turns an insight payload into a creative brief using a
// hosted text model. The engine treats it as an opaque collaborator: it
// only ever sees the structured payload.
package briefgen

import (
	"fmt"
	"strings"

	"github.com/ignite/creative-optimizer/internal/domain"
	"github.com/osteele/liquid"
)

// DefaultPromptTemplate is the liquid template rendered for each brief.
const DefaultPromptTemplate = `You are a performance creative strategist. Write a short creative brief for the next round of ads.
Use only the data below. Do not invent metrics.

Data as of {{ as_of }}.
{% if totals %}Account totals: {{ totals.ads }} ads ({{ totals.successful_ads }} meeting the scale criteria), spend {{ totals.spend }}, revenue {{ totals.revenue }}, ROAS {{ totals.roas }}, CPA {{ totals.cpa }}, CTR {{ totals.ctr | pct }}.
{% endif %}
Decisions this cycle:{% for a in actions %} {{ a.action }}={{ a.count }}{% endfor %}
{% for r in recommendations %}- {{ r.ad_id }}: {{ r.action }} ({{ r.confidence }}){% if r.rules != "" %} because {{ r.rules }}{% endif %}
{% endfor %}
Creative attributes that outperform the account baseline:
{% for d in dimensions %}## {{ d.name }}
{% for c in d.clusters %}{{ c.rank }}. {{ c.value }}: {{ c.rank_metric }} lift {{ c.lift }}x over {{ c.members }} ads, {{ c.winner_share | pct }} of them at or above baseline
{% endfor %}{% endfor %}
Write: 1) what to keep doing 2) what to stop 3) three concrete creative concepts that combine the winning attributes.`

// PromptBuilder renders insight payloads into model prompts.
type PromptBuilder struct {
	tpl *liquid.Template
}

// NewPromptBuilder compiles a prompt template. An empty template uses
// DefaultPromptTemplate.
func NewPromptBuilder(template string) (*PromptBuilder, error) {
	if template == "" {
		template = DefaultPromptTemplate
	}
	engine := liquid.NewEngine()
	// Percent filter: {{ 0.125 | pct }} -> 12.5%
	engine.RegisterFilter("pct", func(value interface{}) string {
		switch v := value.(type) {
		case float64:
			return trimFloat(v*100) + "%"
		case string:
			return v
		default:
			return fmt.Sprintf("%v", value)
		}
	})

	tpl, err := engine.ParseString(template)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}
	return &PromptBuilder{tpl: tpl}, nil
}

// Build renders the prompt for one payload.
func (b *PromptBuilder) Build(p domain.InsightPayload) (string, error) {
	out, err := b.tpl.RenderString(bindings(p))
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return out, nil
}

// bindings flattens the payload into template variables. Ratios are
// rendered up front so undefined values read as "n/a".
func bindings(p domain.InsightPayload) map[string]interface{} {
	actions := make([]map[string]interface{}, 0, len(p.ActionCounts))
	for _, a := range []domain.Action{domain.ActionScale, domain.ActionMaintain, domain.ActionWatch, domain.ActionPause} {
		actions = append(actions, map[string]interface{}{"action": string(a), "count": p.ActionCounts[a]})
	}

	recs := make([]map[string]interface{}, 0, len(p.Recommendations))
	for _, r := range p.Recommendations {
		rules := make([]string, 0, len(r.Rationale))
		for _, m := range r.Rationale {
			rules = append(rules, fmt.Sprintf("%s: %s=%s %s %s", m.Rule, m.Metric, ratio(m.Observed), m.Operator, trimFloat(m.Threshold)))
		}
		recs = append(recs, map[string]interface{}{
			"ad_id":      r.AdID,
			"action":     string(r.Action),
			"confidence": string(r.Confidence),
			"rules":      strings.Join(rules, "; "),
		})
	}

	dims := make([]map[string]interface{}, 0, len(p.Dimensions))
	for _, d := range p.Dimensions {
		clusters := make([]map[string]interface{}, 0, len(d.Clusters))
		for _, c := range d.Clusters {
			clusters = append(clusters, map[string]interface{}{
				"value":        c.Value,
				"rank":         c.Rank,
				"rank_metric":  c.RankMetric,
				"lift":         ratio(c.RankLift),
				"members":      len(c.MemberAdIDs),
				"winner_share": c.WinnerShare,
				"sample_size":  c.SampleSize,
				"kpis":         ratioMap(c.MeanKPI),
			})
		}
		dims = append(dims, map[string]interface{}{"name": d.Dimension, "clusters": clusters})
	}

	out := map[string]interface{}{
		"as_of":           p.AsOf.UTC().Format("2006-01-02"),
		"top_k":           p.TopK,
		"actions":         actions,
		"recommendations": recs,
		"dimensions":      dims,
	}
	if t := p.Totals; t != nil {
		out["totals"] = map[string]interface{}{
			"ads":            t.Ads,
			"successful_ads": t.SuccessfulAds,
			"campaigns":      t.Campaigns,
			"spend":          trimFloat(t.Spend),
			"revenue":        trimFloat(t.Revenue),
			"impressions":    t.Impressions,
			"conversions":    t.Conversions,
			"roas":           ratio(t.ROAS),
			"cpa":            ratio(t.CPA),
			"ctr":            ratioValue(t.CTR),
		}
	}
	return out
}

func ratioMap(m map[string]domain.Ratio) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = ratio(v)
	}
	return out
}

func ratio(r domain.Ratio) string {
	v, ok := r.Get()
	if !ok {
		return "n/a"
	}
	return trimFloat(v)
}

// ratioValue keeps defined ratios numeric so filters can scale them.
func ratioValue(r domain.Ratio) interface{} {
	v, ok := r.Get()
	if !ok {
		return "n/a"
	}
	return v
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
