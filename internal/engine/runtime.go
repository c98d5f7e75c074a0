// Package engine implements the skill runtime: a sequential pipeline that
// turns a free-text material description into a structured, standards-aligned
// attribute set using a declarative skill DSL.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/skill-engine/internal/model"
)

// SkillSource supplies the candidate skill set and accepts audit records.
// Satisfied by store.Store.
type SkillSource interface {
	ListSkills(ctx context.Context, domain string, status model.SkillStatus) ([]model.Skill, error)
	AppendExecutionRecord(ctx context.Context, rec *model.ExecutionRecord) error
}

// Runtime executes the full parse pipeline: select → extract → derive →
// rules → category → build. Each invocation is independent; a Runtime is
// safe for concurrent use.
type Runtime struct {
	source          SkillSource
	reviewThreshold float64
}

// NewRuntime returns a Runtime reading skills from source. reviewThreshold
// applies when a skill's DSL does not set its own low-confidence threshold.
func NewRuntime(source SkillSource, reviewThreshold float64) *Runtime {
	return &Runtime{source: source, reviewThreshold: reviewThreshold}
}

// Execute runs the pipeline over one input text. The per-stage trace is
// persisted as an ExecutionRecord; persistence failures are logged, not
// propagated, so a working parse is never lost to an audit write.
func (r *Runtime) Execute(ctx context.Context, inputText string) (*model.ParseResponse, error) {
	start := time.Now()
	correlationID := uuid.NewString()
	tr := &tracer{}

	resp, err := r.execute(ctx, inputText, tr)
	durationMs := time.Since(start).Milliseconds()

	rec := &model.ExecutionRecord{
		CorrelationID: correlationID,
		InputText:     inputText,
		Stages:        tr.stages,
		DurationMs:    durationMs,
		Outcome:       model.OutcomeSuccess,
		CreatedAt:     time.Now().UTC(),
	}
	if err != nil {
		rec.Outcome = model.OutcomeFailed
		rec.ErrorDetail = err.Error()
		r.persist(ctx, rec)
		return nil, err
	}

	resp.CorrelationID = correlationID
	resp.Stages = tr.stages
	resp.DurationMs = durationMs
	rec.MatchedSkillID = resp.MatchedSkillID
	rec.Result = resp.Result
	rec.AggregateConfidence = resp.Result.Confidence
	r.persist(ctx, rec)

	return resp, nil
}

func (r *Runtime) execute(ctx context.Context, inputText string, tr *tracer) (*model.ParseResponse, error) {
	skill, score, err := r.selectSkill(ctx, inputText, tr)
	if err != nil {
		return nil, err
	}

	if skill == nil {
		// No skill matched. Not an error: a degenerate low-confidence result.
		return &model.ParseResponse{
			MatchScore: score,
			Result:     DefaultResult(inputText),
		}, nil
	}

	dsl := skill.DSL

	// 1. Attribute extraction.
	stageStart := time.Now()
	attrs := ExtractAttributes(inputText, dsl)
	tr.record(stageExtract, stageStart,
		map[string]any{"inputText": inputText},
		map[string]any{"attributes": snapshotAttributes(attrs)},
	)

	// 2. Table derivation.
	stageStart = time.Now()
	found := DeriveFromTables(attrs, dsl)
	tr.record(stageTables, stageStart,
		map[string]any{"tableCount": len(dsl.Tables)},
		map[string]any{"derived": found},
	)

	// 3. Rule mapping.
	stageStart = time.Now()
	applied := ApplyRules(attrs, dsl)
	tr.record(stageRules, stageStart,
		map[string]any{"ruleCount": len(dsl.Rules)},
		map[string]any{"applied": applied},
	)

	// 4. Category mapping. Copied verbatim from the DSL.
	stageStart = time.Now()
	tr.record(stageCategory, stageStart,
		nil,
		map[string]any{"category": dsl.Category},
	)

	// 5. Structured output.
	stageStart = time.Now()
	result := BuildResult(inputText, attrs, dsl, r.reviewThreshold)
	tr.record(stageBuilder, stageStart,
		nil,
		map[string]any{"materialName": result.MaterialName, "confidence": result.Confidence},
	)

	return &model.ParseResponse{
		MatchedSkillID: skill.ID,
		MatchScore:     score,
		Result:         result,
	}, nil
}

// selectSkill loads active skills (falling back to all skills when none are
// active) and scores them against the input.
func (r *Runtime) selectSkill(ctx context.Context, inputText string, tr *tracer) (*model.Skill, float64, error) {
	stageStart := time.Now()

	candidates, err := r.source.ListSkills(ctx, "", model.SkillActive)
	if err != nil {
		return nil, 0, eris.Wrap(err, "engine: list active skills")
	}
	if len(candidates) == 0 {
		candidates, err = r.source.ListSkills(ctx, "", "")
		if err != nil {
			return nil, 0, eris.Wrap(err, "engine: list skills")
		}
	}

	skill, score := SelectSkill(inputText, candidates)

	matched := ""
	if skill != nil {
		matched = skill.ID
	}
	tr.record(stageSelector, stageStart,
		map[string]any{"inputText": inputText, "candidates": len(candidates)},
		map[string]any{"matchedSkill": matched, "score": score},
	)

	return skill, score, nil
}

func (r *Runtime) persist(ctx context.Context, rec *model.ExecutionRecord) {
	if err := r.source.AppendExecutionRecord(ctx, rec); err != nil {
		zap.L().Warn("engine: append execution record failed",
			zap.String("correlation_id", rec.CorrelationID),
			zap.Error(err),
		)
	}
}
