package model

import "time"

// Difficulty grades how hard a benchmark case is for the engine.
type Difficulty string

const (
	DifficultyEasy        Difficulty = "easy"
	DifficultyMedium      Difficulty = "medium"
	DifficultyHard        Difficulty = "hard"
	DifficultyAdversarial Difficulty = "adversarial"
)

// Difficulties lists all grades in ascending order of hardness. The order is
// load-bearing: difficulty distributions assign rounding remainders to the
// first entry.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyAdversarial}

// DatasetSourceType records how a dataset's cases came to be.
type DatasetSourceType string

const (
	DatasetSeed      DatasetSourceType = "seed"
	DatasetGenerated DatasetSourceType = "generated"
	DatasetMixed     DatasetSourceType = "mixed"
)

// DatasetStatus is the lifecycle state of a dataset.
type DatasetStatus string

const (
	DatasetDraft    DatasetStatus = "draft"
	DatasetReady    DatasetStatus = "ready"
	DatasetArchived DatasetStatus = "archived"
)

// CaseSourceType records how a single case was produced.
type CaseSourceType string

const (
	CaseSeed      CaseSourceType = "seed"
	CaseTableEnum CaseSourceType = "table_enum"
	CaseTemplate  CaseSourceType = "template"
	CaseNoise     CaseSourceType = "noise"
)

// RunStatus is the lifecycle state of a benchmark run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ResultStatus grades one case's outcome within a run.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultPartial ResultStatus = "partial"
	ResultFailed  ResultStatus = "failed"
	ResultError   ResultStatus = "error"
)

// Dataset groups labeled cases for evaluation.
type Dataset struct {
	ID              string            `json:"id"`
	Code            string            `json:"code"`
	Name            string            `json:"name"`
	SkillID         string            `json:"skillId,omitempty"`
	SourceType      DatasetSourceType `json:"sourceType"`
	DifficultyStats map[string]int    `json:"difficultyStats,omitempty"`
	TotalCases      int               `json:"totalCases"`
	Status          DatasetStatus     `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// ExpectedAttribute is one labeled attribute of a case. Tolerance, when set,
// enables relative-error matching for numeric values.
type ExpectedAttribute struct {
	Value     Scalar   `json:"value"`
	Unit      string   `json:"unit,omitempty"`
	Tolerance *float64 `json:"tolerance,omitempty"`
}

// Case is one labeled (input, expected output) pair.
type Case struct {
	ID                 string                       `json:"id"`
	DatasetID          string                       `json:"datasetId"`
	Code               string                       `json:"code"`
	InputText          string                       `json:"inputText"`
	ExpectedSkillID    string                       `json:"expectedSkillId,omitempty"`
	ExpectedAttributes map[string]ExpectedAttribute `json:"expectedAttributes"`
	ExpectedCategory   *Category                    `json:"expectedCategory,omitempty"`
	Difficulty         Difficulty                   `json:"difficulty"`
	SourceType         CaseSourceType               `json:"sourceType"`
	SourceRef          map[string]any               `json:"sourceRef,omitempty"`
	Active             bool                         `json:"active"`
	CreatedAt          time.Time                    `json:"createdAt"`
}

// EvalConfig tunes how a run scores actual against expected output.
type EvalConfig struct {
	Tolerance      float64 `json:"tolerance" yaml:"tolerance"`
	PartialMatch   bool    `json:"partialMatch" yaml:"partial_match"`
	SkipSkillMatch bool    `json:"skipSkillMatch" yaml:"skip_skill_match"`
}

// Run is one execution of the evaluation engine over a dataset's active
// cases. Results are append-only; only the aggregate counters advance.
type Run struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	DatasetID      string     `json:"datasetId"`
	Name           string     `json:"name"`
	Config         EvalConfig `json:"config"`
	Status         RunStatus  `json:"status"`
	TotalCases     int        `json:"totalCases"`
	CompletedCases int        `json:"completedCases"`
	Metrics        *Metrics   `json:"metrics,omitempty"`
	ErrorDetail    string     `json:"errorDetail,omitempty"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// AttributeScore is the per-attribute outcome of matching actual vs expected.
type AttributeScore struct {
	Expected  *Scalar `json:"expected,omitempty"`
	Actual    *Scalar `json:"actual,omitempty"`
	Match     bool    `json:"match"`
	Score     float64 `json:"score"`
	MatchType string  `json:"matchType"`
}

// Result is the scored outcome of one case within a run. Never edited after
// creation.
type Result struct {
	ID               string                        `json:"id"`
	RunID            string                        `json:"runId"`
	CaseID           string                        `json:"caseId"`
	ActualSkillID    string                        `json:"actualSkillId,omitempty"`
	ActualAttributes map[string]ExtractedAttribute `json:"actualAttributes,omitempty"`
	ActualCategory   *Category                     `json:"actualCategory,omitempty"`
	ActualConfidence *float64                      `json:"actualConfidence,omitempty"`
	DurationMs       int64                         `json:"durationMs"`
	SkillMatch       *bool                         `json:"skillMatch,omitempty"`
	AttributeScores  map[string]AttributeScore     `json:"attributeScores,omitempty"`
	OverallScore     float64                       `json:"overallScore"`
	Status           ResultStatus                  `json:"status"`
	ErrorDetail      string                        `json:"errorDetail,omitempty"`
	CreatedAt        time.Time                     `json:"createdAt"`
}

// OverallMetrics summarizes a completed run.
type OverallMetrics struct {
	TotalCases      int     `json:"totalCases"`
	Accuracy        float64 `json:"accuracy"`
	PartialAccuracy float64 `json:"partialAccuracy"`
	SkillMatchRate  float64 `json:"skillMatchRate"`
	AvgConfidence   float64 `json:"avgConfidence"`
	AvgScore        float64 `json:"avgScore"`
	AvgDurationMs   float64 `json:"avgDurationMs"`
}

// DifficultyMetrics breaks run outcomes down by case difficulty.
type DifficultyMetrics struct {
	Count    int     `json:"count"`
	Accuracy float64 `json:"accuracy"`
	AvgScore float64 `json:"avgScore"`
}

// AttributeMetrics breaks run outcomes down by attribute name.
type AttributeMetrics struct {
	Total           int     `json:"total"`
	ExactMatch      float64 `json:"exactMatch"`
	WithinTolerance float64 `json:"withinTolerance"`
	MissingRate     float64 `json:"missingRate"`
}

// Metrics is the snapshot computed once at run completion.
type Metrics struct {
	Overall      OverallMetrics               `json:"overall"`
	ByDifficulty map[string]DifficultyMetrics `json:"byDifficulty"`
	ByAttribute  map[string]AttributeMetrics  `json:"byAttribute"`
	ByStatus     map[string]int               `json:"byStatus"`
}
