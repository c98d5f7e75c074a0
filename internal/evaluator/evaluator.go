// Package evaluator runs benchmark datasets through the parsing pipeline and
// scores the output against each case's expectations. Runs are resumable
// units of work: progress checkpoints persist periodically and results are
// append-only.
package evaluator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/skill-engine/internal/model"
)

// Executor is the parsing pipeline surface the evaluator drives.
type Executor interface {
	Execute(ctx context.Context, inputText string) (*model.ParseResponse, error)
}

// Store is the persistence surface the evaluator needs.
type Store interface {
	GetDataset(ctx context.Context, code string) (*model.Dataset, error)
	CountActiveCases(ctx context.Context, datasetID string) (int, error)
	ListCases(ctx context.Context, datasetID string, activeOnly bool) ([]model.Case, error)
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	UpdateRun(ctx context.Context, run *model.Run) error
	AppendResult(ctx context.Context, result *model.Result) error
}

// Evaluator creates and executes benchmark runs.
type Evaluator struct {
	store           Store
	executor        Executor
	checkpointEvery int
}

// New returns an Evaluator that checkpoints run progress every
// checkpointEvery cases; values below 1 fall back to the default of 10.
func New(store Store, executor Executor, checkpointEvery int) *Evaluator {
	if checkpointEvery < 1 {
		checkpointEvery = 10
	}
	return &Evaluator{store: store, executor: executor, checkpointEvery: checkpointEvery}
}

// CreateRun registers a pending run over the dataset's active cases. The
// dataset must exist, not be archived, and hold at least one active case.
func (e *Evaluator) CreateRun(ctx context.Context, datasetCode, name string, cfg model.EvalConfig) (*model.Run, error) {
	dataset, err := e.store.GetDataset(ctx, datasetCode)
	if err != nil {
		return nil, eris.Wrapf(err, "evaluator: load dataset %s", datasetCode)
	}
	if dataset.Status == model.DatasetArchived {
		return nil, eris.Errorf("evaluator: dataset %s is archived", datasetCode)
	}
	active, err := e.store.CountActiveCases(ctx, dataset.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "evaluator: count active cases for %s", datasetCode)
	}
	if active == 0 {
		return nil, eris.Errorf("evaluator: dataset %s has no active cases", datasetCode)
	}

	if name == "" {
		name = dataset.Name + " run"
	}
	run := &model.Run{
		ID:         uuid.NewString(),
		Code:       runCode(),
		DatasetID:  dataset.ID,
		Name:       name,
		Config:     cfg,
		Status:     model.RunPending,
		TotalCases: active,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "evaluator: create run")
	}
	return run, nil
}

// ExecuteRun drives a run to completion. Completed runs return their stored
// state unchanged; a run already in flight is rejected. Per-case failures
// are isolated into error results; only infrastructure failures abort the
// run, marking it failed.
func (e *Evaluator) ExecuteRun(ctx context.Context, runID string) (*model.Run, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "evaluator: load run %s", runID)
	}
	switch run.Status {
	case model.RunCompleted:
		return run, nil
	case model.RunRunning:
		return nil, eris.Errorf("evaluator: run %s is already executing", run.Code)
	}

	cases, err := e.store.ListCases(ctx, run.DatasetID, true)
	if err != nil {
		return nil, eris.Wrapf(err, "evaluator: list cases for run %s", run.Code)
	}
	if len(cases) == 0 {
		return nil, eris.Errorf("evaluator: run %s has no active cases to execute", run.Code)
	}

	started := time.Now().UTC()
	run.Status = model.RunRunning
	run.StartedAt = &started
	run.TotalCases = len(cases)
	run.CompletedCases = 0
	run.ErrorDetail = ""
	if err := e.store.UpdateRun(ctx, run); err != nil {
		return nil, eris.Wrapf(err, "evaluator: start run %s", run.Code)
	}

	matcher := &Matcher{Tolerance: run.Config.Tolerance, PartialMatch: run.Config.PartialMatch}

	results := make([]model.Result, 0, len(cases))
	for i := range cases {
		c := &cases[i]
		result := e.evaluateCase(ctx, run, c, matcher)
		if err := e.store.AppendResult(ctx, &result); err != nil {
			return nil, e.markFailed(ctx, run, eris.Wrapf(err, "evaluator: append result for case %s", c.Code))
		}
		results = append(results, result)
		run.CompletedCases = i + 1

		if run.CompletedCases%e.checkpointEvery == 0 {
			if err := e.store.UpdateRun(ctx, run); err != nil {
				zap.L().Warn("evaluator: checkpoint failed",
					zap.String("run", run.Code),
					zap.Int("completed", run.CompletedCases),
					zap.Error(err),
				)
			}
		}
	}

	completed := time.Now().UTC()
	run.Metrics = computeMetrics(results, cases)
	run.Status = model.RunCompleted
	run.CompletedAt = &completed
	if err := e.store.UpdateRun(ctx, run); err != nil {
		return nil, e.markFailed(ctx, run, eris.Wrapf(err, "evaluator: finalize run %s", run.Code))
	}

	zap.L().Info("evaluator: run complete",
		zap.String("run", run.Code),
		zap.Int("cases", run.TotalCases),
		zap.Float64("accuracy", run.Metrics.Overall.Accuracy),
		zap.Duration("elapsed", completed.Sub(started)),
	)
	return run, nil
}

// Metrics returns the metrics snapshot of a completed run.
func (e *Evaluator) Metrics(ctx context.Context, runID string) (*model.Metrics, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "evaluator: load run %s", runID)
	}
	if run.Status != model.RunCompleted {
		return nil, eris.Errorf("evaluator: run %s is %s, metrics require completion", run.Code, run.Status)
	}
	return run.Metrics, nil
}

// evaluateCase executes one case and scores it. Panics and executor errors
// become error results; they never abort the run.
func (e *Evaluator) evaluateCase(ctx context.Context, run *model.Run, c *model.Case, matcher *Matcher) (result model.Result) {
	result = model.Result{
		ID:        uuid.NewString(),
		RunID:     run.ID,
		CaseID:    c.ID,
		CreatedAt: time.Now().UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			result.Status = model.ResultError
			result.ErrorDetail = fmt.Sprintf("panic: %v", r)
			zap.L().Error("evaluator: case panicked",
				zap.String("run", run.Code),
				zap.String("case", c.Code),
				zap.Any("panic", r),
			)
		}
	}()

	start := time.Now()
	resp, err := e.executor.Execute(ctx, c.InputText)
	result.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = model.ResultError
		result.ErrorDetail = err.Error()
		return result
	}

	result.ActualSkillID = resp.MatchedSkillID
	var actualAttrs map[string]model.ExtractedAttribute
	if resp.Result != nil {
		actualAttrs = resp.Result.Attributes
		category := resp.Result.Category
		confidence := resp.Result.Confidence
		result.ActualCategory = &category
		result.ActualConfidence = &confidence
	}

	if !run.Config.SkipSkillMatch && c.ExpectedSkillID != "" {
		matched := resp.MatchedSkillID == c.ExpectedSkillID
		result.SkillMatch = &matched
	}

	result.ActualAttributes = actualAttrs
	result.AttributeScores, result.OverallScore = matcher.ScoreAttributes(c.ExpectedAttributes, actualAttrs)
	result.Status = gradeStatus(result.SkillMatch, result.OverallScore)
	return result
}

// gradeStatus grades a scored case. A wrong skill fails outright regardless
// of attribute scores.
func gradeStatus(skillMatch *bool, score float64) model.ResultStatus {
	if skillMatch != nil && !*skillMatch {
		return model.ResultFailed
	}
	if score >= 0.9 {
		return model.ResultSuccess
	}
	if score >= 0.5 {
		return model.ResultPartial
	}
	return model.ResultFailed
}

// markFailed records an infrastructure failure on the run and returns the
// original error for propagation.
func (e *Evaluator) markFailed(ctx context.Context, run *model.Run, cause error) error {
	run.Status = model.RunFailed
	run.ErrorDetail = cause.Error()
	if err := e.store.UpdateRun(ctx, run); err != nil {
		zap.L().Error("evaluator: failed to record run failure",
			zap.String("run", run.Code),
			zap.Error(err),
		)
	}
	return cause
}

func runCode() string {
	return "RUN_" + time.Now().Format("20060102150405") + "_" + strings.ToUpper(uuid.NewString()[:6])
}
