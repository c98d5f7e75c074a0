package model

import "time"

// StageTrace records one engine stage of a pipeline execution.
type StageTrace struct {
	Engine     string         `json:"engine"`
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
	DurationMs int64          `json:"durationMs"`
	Input      map[string]any `json:"input,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
}

// Outcome is the terminal state of an execution record.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// ExecutionRecord is the audit record of one engine run. It is created at
// run start, appended to by each stage, persisted once at run end, and never
// mutated afterward.
type ExecutionRecord struct {
	CorrelationID       string       `json:"correlationId"`
	InputText           string       `json:"inputText"`
	MatchedSkillID      string       `json:"matchedSkillId,omitempty"`
	Stages              []StageTrace `json:"stages"`
	Result              *ParseResult `json:"result,omitempty"`
	AggregateConfidence float64      `json:"aggregateConfidence,omitempty"`
	DurationMs          int64        `json:"durationMs"`
	Outcome             Outcome      `json:"outcome"`
	ErrorDetail         string       `json:"errorDetail,omitempty"`
	CreatedAt           time.Time    `json:"createdAt"`
}
