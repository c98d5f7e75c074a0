package model

// AttributeSource records which engine produced an attribute value.
type AttributeSource string

const (
	SourcePattern AttributeSource = "pattern"
	SourceTable   AttributeSource = "table"
	SourceRule    AttributeSource = "rule"
	SourceDefault AttributeSource = "default"
)

// Per-source confidence constants. Confidence is fixed per source, not
// learned; the only combination is the arithmetic mean at the result level.
const (
	ConfidencePattern = 0.9
	ConfidenceTable   = 1.0
	ConfidenceRule    = 1.0
	ConfidenceDefault = 0.5

	// ConfidenceNoMatch is the aggregate confidence of the degenerate result
	// produced when no skill matches the input.
	ConfidenceNoMatch = 0.3
)

// ExtractedAttribute is one typed attribute value with provenance.
type ExtractedAttribute struct {
	Value       Scalar          `json:"value"`
	Confidence  float64         `json:"confidence"`
	Source      AttributeSource `json:"source"`
	Unit        string          `json:"unit,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	Description string          `json:"description,omitempty"`
}

// ParseResult is the structured output of one pipeline execution.
type ParseResult struct {
	MaterialName string                        `json:"materialName"`
	CommonName   string                        `json:"commonName,omitempty"`
	Category     Category                      `json:"category"`
	Attributes   map[string]ExtractedAttribute `json:"attributes"`
	StandardCode string                        `json:"standardCode,omitempty"`
	Confidence   float64                       `json:"confidence"`
	NeedsReview  bool                          `json:"needsReview,omitempty"`
}

// ParseResponse is what Runtime.Execute returns to callers: the matched
// skill (empty if the default path ran), the structured result, and the
// per-stage trace.
type ParseResponse struct {
	CorrelationID  string       `json:"correlationId"`
	MatchedSkillID string       `json:"matchedSkillId,omitempty"`
	MatchScore     float64      `json:"matchScore"`
	Result         *ParseResult `json:"result"`
	Stages         []StageTrace `json:"stages"`
	DurationMs     int64        `json:"durationMs"`
}
