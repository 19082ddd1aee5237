package engine

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ignite/creative-optimizer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2026, 10, 8, 0, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }
func p(v int) *int         { return &v }

func testPolicy() Policy {
	return Policy{
		MinSampleSize: 100,
		Rules: []Rule{
			{Name: "roas_strong", Metric: "roas", Operator: OpGte, Threshold: f(3), Action: domain.ActionScale},
			{Name: "roas_weak", Metric: "roas", Operator: OpLt, Threshold: f(1), Action: domain.ActionPause},
			{Name: "ctr_high", Metric: "ctr", Operator: OpGt, Threshold: f(0.02), Action: domain.ActionScale},
			{Name: "cpa_high", Metric: "cpa", Operator: OpGt, Threshold: f(50), Action: domain.ActionPause},
		},
		Cluster: ClusterPolicy{MinSampleSize: 500, TopK: 3},
	}
}

func kpiRecord(key string, impressions int64, ctr, cpa, roas domain.Ratio) domain.KPIRecord {
	return domain.KPIRecord{
		Key:        key,
		Level:      domain.LevelAd,
		AsOf:       asOf,
		SampleSize: impressions,
		Totals:     domain.Totals{Impressions: impressions},
		CTR:        ctr,
		CPA:        cpa,
		ROAS:       roas,
	}
}

func r(v float64) domain.Ratio { return domain.Ratio{Value: v, Defined: true} }

func TestDecide_Scale(t *testing.T) {
	rec := Decide(kpiRecord("ad-1", 500, r(0.05), r(10), r(5)), testPolicy())

	assert.Equal(t, "ad-1", rec.AdID)
	assert.Equal(t, domain.ActionScale, rec.Action)
	assert.Equal(t, domain.ConfidenceModerate, rec.Confidence)
	assert.Equal(t, asOf, rec.EvaluatedAt)
	require.Len(t, rec.Rationale, 2)
	assert.Equal(t, "roas_strong", rec.Rationale[0].Rule)
	assert.Equal(t, "ctr_high", rec.Rationale[1].Rule)
}

func TestDecide_SampleGateForcesWatch(t *testing.T) {
	tests := []struct {
		name string
		kpi  domain.KPIRecord
	}{
		{"extremely good", kpiRecord("ad-2", 10, r(0.9), r(0.1), r(100))},
		{"extremely bad", kpiRecord("ad-2", 99, r(0), domain.Undefined, r(0))},
		{"zero sample", kpiRecord("ad-2", 0, domain.Undefined, domain.Undefined, domain.Undefined)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Decide(tt.kpi, testPolicy())
			assert.Equal(t, domain.ActionWatch, rec.Action)
			assert.Equal(t, domain.ConfidenceInsufficient, rec.Confidence)
			require.Len(t, rec.Rationale, 1)
			assert.Equal(t, GateRuleName, rec.Rationale[0].Rule)
		})
	}
}

func TestDecide_PauseBeatsScale(t *testing.T) {
	// High CTR (scale signal) and very high CPA (pause signal) together.
	rec := Decide(kpiRecord("ad-3", 5000, r(0.05), r(80), r(2)), testPolicy())

	assert.Equal(t, domain.ActionPause, rec.Action)
	require.Len(t, rec.Rationale, 2)
	assert.Equal(t, "cpa_high", rec.Rationale[0].Rule, "pause rules are evaluated first")
	assert.Equal(t, "ctr_high", rec.Rationale[1].Rule)
}

func TestDecide_EqualPriorityTieGoesConservative(t *testing.T) {
	policy := testPolicy()
	policy.Rules = []Rule{
		{Name: "pause_on_roas", Metric: "roas", Operator: OpLt, Threshold: f(0.5), Action: domain.ActionPause, Priority: p(10)},
		{Name: "scale_on_roas", Metric: "roas", Operator: OpGt, Threshold: f(2), Action: domain.ActionScale, Priority: p(5)},
		{Name: "watch_on_ctr", Metric: "ctr", Operator: OpLt, Threshold: f(0.01), Action: domain.ActionWatch, Priority: p(5)},
		{Name: "maintain_on_cpa", Metric: "cpa", Operator: OpGt, Threshold: f(0), Action: domain.ActionMaintain, Priority: p(5)},
	}
	require.NoError(t, policy.Validate())

	rec := Decide(kpiRecord("ad-4", 1000, r(0.005), r(5), r(3)), policy)

	assert.Equal(t, domain.ActionWatch, rec.Action)
	assert.Len(t, rec.Rationale, 3, "every matching rule is recorded")
}

func TestValidate_RejectsScaleOutrankingPause(t *testing.T) {
	policy := testPolicy()
	policy.Rules[0].Priority = p(10) // roas_strong (SCALE) above roas_weak (PAUSE, default 4)

	err := policy.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
	assert.Contains(t, err.Error(), `"roas_strong" (SCALE, priority 10) outranks more conservative rule "roas_weak"`)

	_, err = ParsePolicy([]byte(`
min_sample_size: 10
cluster: {min_sample_size: 10, top_k: 1}
rules:
  - {name: boost, metric: roas, operator: gte, threshold: 0, action: SCALE, priority: 10}
  - {name: stop, metric: roas, operator: lt, threshold: 1, action: PAUSE}
`))
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestDecide_ValidPolicyNeverScalesOverPause(t *testing.T) {
	// Tying SCALE with the default PAUSE priority is allowed.
	policy := Policy{
		MinSampleSize: 100,
		Rules: []Rule{
			{Name: "scale_any", Metric: "roas", Operator: OpGte, Threshold: f(0), Action: domain.ActionScale, Priority: p(4)},
			{Name: "pause_weak", Metric: "roas", Operator: OpLt, Threshold: f(1), Action: domain.ActionPause},
		},
		Cluster: ClusterPolicy{MinSampleSize: 1, TopK: 1},
	}
	require.NoError(t, policy.Validate())

	rec := Decide(kpiRecord("ad-9", 5000, r(0.01), r(10), r(0.5)), policy)
	assert.Equal(t, domain.ActionPause, rec.Action)
	assert.Len(t, rec.Rationale, 2)
}

func TestDecide_DefaultAction(t *testing.T) {
	rec := Decide(kpiRecord("ad-5", 100000, r(0.01), r(20), r(2)), testPolicy())

	assert.Equal(t, domain.ActionMaintain, rec.Action)
	assert.Equal(t, domain.ConfidenceHigh, rec.Confidence)
	assert.NotNil(t, rec.Rationale)
	assert.Empty(t, rec.Rationale)
}

func TestDecide_UndefinedMetricNeverMatchesComparisons(t *testing.T) {
	policy := testPolicy()
	policy.Rules = append(policy.Rules,
		Rule{Name: "no_conversions", Metric: "cpa", Operator: OpIsUndefined, Action: domain.ActionWatch})

	rec := Decide(kpiRecord("ad-6", 1000, r(0.01), domain.Undefined, r(2)), policy)

	assert.Equal(t, domain.ActionWatch, rec.Action)
	require.Len(t, rec.Rationale, 1)
	assert.Equal(t, "no_conversions", rec.Rationale[0].Rule)
	assert.False(t, rec.Rationale[0].Observed.Defined)
}

func TestDecide_IsDeterministic(t *testing.T) {
	kpi := kpiRecord("ad-7", 5000, r(0.05), r(80), r(4))
	policy := testPolicy()

	a, err := json.Marshal(Decide(kpi, policy))
	require.NoError(t, err)
	b, err := json.Marshal(Decide(kpi, policy))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecideAll_PreservesOrder(t *testing.T) {
	kpis := []domain.KPIRecord{
		kpiRecord("a", 10, r(0), r(0), r(0)),
		kpiRecord("b", 1000, r(0.05), r(10), r(5)),
	}
	recs := DecideAll(kpis, testPolicy())
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].AdID)
	assert.Equal(t, domain.ActionWatch, recs[0].Action)
	assert.Equal(t, domain.ActionScale, recs[1].Action)
}

func TestParsePolicy_Valid(t *testing.T) {
	data := []byte(`
min_sample_size: 100
rules:
  - {name: low_roas, metric: ROAS, operator: "<", threshold: 1, action: pause}
  - {name: high_roas, metric: roas, operator: ">=", threshold: 3, action: SCALE}
cluster:
  min_sample_size: 1000
  top_k: 2
`)
	policy, err := ParsePolicy(data)
	require.NoError(t, err)

	require.Len(t, policy.Rules, 2)
	assert.Equal(t, OpLt, policy.Rules[0].Operator)
	assert.Equal(t, domain.ActionPause, policy.Rules[0].Action)
	assert.Equal(t, "roas", policy.Rules[0].Metric)
	assert.Equal(t, "roas", policy.RankMetric())
}

func TestParsePolicy_AcceptsJSON(t *testing.T) {
	data := []byte(`{"min_sample_size": 50, "rules": [{"name": "x", "metric": "ctr", "operator": "gt", "threshold": 0.1, "action": "SCALE"}], "cluster": {"min_sample_size": 10, "top_k": 1}}`)
	policy, err := ParsePolicy(data)
	require.NoError(t, err)
	assert.Equal(t, int64(50), policy.MinSampleSize)
}

func TestParsePolicy_Invalid(t *testing.T) {
	base := "cluster: {min_sample_size: 10, top_k: 1}\nmin_sample_size: 10\n"
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty document", "", "invalid policy"},
		{"unknown field", base + "rulez: []\n", "rulez"},
		{"invalid operator", base + "rules: [{name: a, metric: roas, operator: approx, threshold: 1, action: SCALE}]", "invalid operator"},
		{"missing operator", base + "rules: [{name: a, metric: roas, threshold: 1, action: SCALE}]", "operator is required"},
		{"missing threshold", base + "rules: [{name: a, metric: roas, operator: gt, action: SCALE}]", "threshold is required"},
		{"unknown metric", base + "rules: [{name: a, metric: vibes, operator: gt, threshold: 1, action: SCALE}]", "unknown metric"},
		{"missing action", base + "rules: [{name: a, metric: roas, operator: gt, threshold: 1}]", "action is required"},
		{"invalid action", base + "rules: [{name: a, metric: roas, operator: gt, threshold: 1, action: BOOST}]", "invalid action"},
		{"missing name", base + "rules: [{metric: roas, operator: gt, threshold: 1, action: SCALE}]", "name is required"},
		{"duplicate name", base + "rules: [{name: a, metric: roas, operator: gt, threshold: 1, action: SCALE}, {name: a, metric: ctr, operator: gt, threshold: 1, action: SCALE}]", "duplicate name"},
		{"no min sample", "cluster: {min_sample_size: 10, top_k: 1}\nrules: []\n", "min_sample_size must be positive"},
		{"no top k", "min_sample_size: 10\ncluster: {min_sample_size: 10}\n", "top_k must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPolicy))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveAndLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	original := testPolicy()

	require.NoError(t, SavePolicy(path, original))
	loaded, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, original, *loaded)
}

func TestLoadPolicy_ExampleFile(t *testing.T) {
	path := filepath.Join("..", "..", "policy.example.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("example policy not present")
	}
	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.NotEmpty(t, policy.Rules)
}

func TestOrderedRules(t *testing.T) {
	ordered := testPolicy().OrderedRules()
	names := make([]string, len(ordered))
	for i, r := range ordered {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"roas_weak", "cpa_high", "roas_strong", "ctr_high"}, names)
}

func TestDrift(t *testing.T) {
	later := asOf.AddDate(0, 0, 7)
	previous := []domain.Recommendation{
		{AdID: "a", Action: domain.ActionWatch, EvaluatedAt: asOf},
		{AdID: "b", Action: domain.ActionScale, EvaluatedAt: asOf},
		{AdID: "gone", Action: domain.ActionMaintain, EvaluatedAt: asOf},
	}
	current := []domain.Recommendation{
		{AdID: "a", Action: domain.ActionScale, EvaluatedAt: later},
		{AdID: "b", Action: domain.ActionScale, EvaluatedAt: later},
		{AdID: "new", Action: domain.ActionWatch, EvaluatedAt: later},
	}

	changes := Drift(previous, current)
	require.Len(t, changes, 3)
	assert.Equal(t, domain.ActionChange{AdID: "a", Previous: domain.ActionWatch, Current: domain.ActionScale, Since: later}, changes[0])
	assert.Equal(t, domain.ActionChange{AdID: "gone", Previous: domain.ActionMaintain, Since: asOf}, changes[1])
	assert.Equal(t, domain.ActionChange{AdID: "new", Current: domain.ActionWatch, Since: later}, changes[2])
}
