package domain

import "time"

// Action is the decision emitted per ad.
type Action string

const (
	ActionScale    Action = "SCALE"
	ActionPause    Action = "PAUSE"
	ActionMaintain Action = "MAINTAIN"
	ActionWatch    Action = "WATCH"
)

// Valid reports whether the action is one of the four decisions.
func (a Action) Valid() bool {
	return a.Conservatism() > 0
}

// Conservatism ranks actions: PAUSE > WATCH > MAINTAIN > SCALE. Unknown is 0.
func (a Action) Conservatism() int {
	switch a {
	case ActionPause:
		return 4
	case ActionWatch:
		return 3
	case ActionMaintain:
		return 2
	case ActionScale:
		return 1
	}
	return 0
}

// Confidence grades how much the sample size supports a decision.
type Confidence string

const (
	ConfidenceInsufficient Confidence = "insufficient_data"
	ConfidenceModerate     Confidence = "moderate"
	ConfidenceHigh         Confidence = "high"
)

// RuleMatch records one rule that fired during a decision.
type RuleMatch struct {
	Rule      string  `json:"rule"`
	Metric    string  `json:"metric"`
	Operator  string  `json:"operator"`
	Threshold float64 `json:"threshold"`
	Observed  Ratio   `json:"observed"`
	Action    Action  `json:"action"`
	Priority  int     `json:"priority"`
}

// Recommendation is one decision for one ad. Prior recommendations are kept
// as history by the storage layer; a recommendation is never updated.
type Recommendation struct {
	AdID        string      `json:"ad_id"`
	Action      Action      `json:"action"`
	Confidence  Confidence  `json:"confidence"`
	Rationale   []RuleMatch `json:"rationale"`
	SampleSize  int64       `json:"sample_size"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// ActionChange describes an ad whose decision differs between two cycles.
type ActionChange struct {
	AdID     string    `json:"ad_id"`
	Previous Action    `json:"previous,omitempty"`
	Current  Action    `json:"current,omitempty"`
	Since    time.Time `json:"since"`
}
