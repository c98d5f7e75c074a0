package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/skill-engine/internal/model"
)

// fakeSource serves a fixed skill set and captures persisted records.
type fakeSource struct {
	active     []model.Skill
	all        []model.Skill
	listErr    error
	persistErr error
	records    []*model.ExecutionRecord
}

func (f *fakeSource) ListSkills(_ context.Context, _ string, status model.SkillStatus) ([]model.Skill, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if status == model.SkillActive {
		return f.active, nil
	}
	return f.all, nil
}

func (f *fakeSource) AppendExecutionRecord(_ context.Context, rec *model.ExecutionRecord) error {
	if f.persistErr != nil {
		return f.persistErr
	}
	f.records = append(f.records, rec)
	return nil
}

func TestRuntime_Execute(t *testing.T) {
	src := &fakeSource{active: []model.Skill{pipeSkill()}}
	rt := NewRuntime(src, 0.7)

	resp, err := rt.Execute(context.Background(), "PVC-U管 DN100 PN1.6")
	require.NoError(t, err)
	assert.Equal(t, "skill-pipe", resp.MatchedSkillID)
	assert.NotEmpty(t, resp.CorrelationID)

	result := resp.Result
	require.NotNil(t, result)
	assert.Equal(t, "PVC-U管DN100", result.MaterialName)
	assert.Equal(t, "管材", result.Category.Primary)

	// Extraction, tables, and rules all contribute attributes.
	assert.Contains(t, result.Attributes, "公称直径")
	assert.Contains(t, result.Attributes, "公称外径")
	assert.Contains(t, result.Attributes, "最小壁厚")
	assert.Contains(t, result.Attributes, "壁厚偏差")
	assert.Contains(t, result.Attributes, "连接方式")

	// One trace entry per pipeline stage, in execution order.
	require.Len(t, resp.Stages, 6)
	names := make([]string, len(resp.Stages))
	for i, s := range resp.Stages {
		names[i] = s.Engine
	}
	assert.Equal(t, []string{
		"SkillSelector", "ExtractEngine", "TableEngine",
		"RuleEngine", "CategoryEngine", "StructBuilder",
	}, names)

	// The execution was persisted with the parse outcome.
	require.Len(t, src.records, 1)
	rec := src.records[0]
	assert.Equal(t, model.OutcomeSuccess, rec.Outcome)
	assert.Equal(t, "skill-pipe", rec.MatchedSkillID)
	assert.Equal(t, resp.CorrelationID, rec.CorrelationID)
	assert.Equal(t, result.Confidence, rec.AggregateConfidence)
}

func TestRuntime_Execute_NoSkillMatch(t *testing.T) {
	src := &fakeSource{}
	rt := NewRuntime(src, 0.7)

	resp, err := rt.Execute(context.Background(), "完全无关的描述")
	require.NoError(t, err)
	assert.Empty(t, resp.MatchedSkillID)
	assert.Equal(t, "未分类", resp.Result.Category.Primary)
	assert.Equal(t, model.ConfidenceNoMatch, resp.Result.Confidence)

	// Only the selector stage ran.
	require.Len(t, resp.Stages, 1)
	assert.Equal(t, "SkillSelector", resp.Stages[0].Engine)
}

func TestRuntime_Execute_FallsBackToAllSkills(t *testing.T) {
	draft := pipeSkill()
	draft.Status = model.SkillDraft
	src := &fakeSource{all: []model.Skill{draft}}
	rt := NewRuntime(src, 0.7)

	resp, err := rt.Execute(context.Background(), "PVC-U管 DN100")
	require.NoError(t, err)
	assert.Equal(t, "skill-pipe", resp.MatchedSkillID)
}

func TestRuntime_Execute_ListError(t *testing.T) {
	src := &fakeSource{listErr: errors.New("db down")}
	rt := NewRuntime(src, 0.7)

	_, err := rt.Execute(context.Background(), "PVC-U管 DN100")
	require.Error(t, err)

	// The failure itself is still recorded when persistence works.
	require.Len(t, src.records, 1)
	assert.Equal(t, model.OutcomeFailed, src.records[0].Outcome)
	assert.NotEmpty(t, src.records[0].ErrorDetail)
}

func TestRuntime_Execute_PersistFailureNonFatal(t *testing.T) {
	src := &fakeSource{
		active:     []model.Skill{pipeSkill()},
		persistErr: errors.New("audit log unavailable"),
	}
	rt := NewRuntime(src, 0.7)

	resp, err := rt.Execute(context.Background(), "PVC-U管 DN100")
	require.NoError(t, err)
	assert.Equal(t, "skill-pipe", resp.MatchedSkillID)
}
