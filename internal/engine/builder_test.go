package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/skill-engine/internal/model"
)

func TestBuildResult(t *testing.T) {
	dsl := pipeDSL()
	attrs := map[string]model.ExtractedAttribute{
		"材质":   {Value: model.StrScalar("PVC-U"), Confidence: model.ConfidencePattern, Source: model.SourcePattern},
		"公称直径": {Value: model.NumScalar(100), Confidence: model.ConfidencePattern, Source: model.SourcePattern},
	}

	result := BuildResult("PVC-U管 DN100", attrs, dsl, 0.7)
	assert.Equal(t, "PVC-U管DN100", result.MaterialName)
	assert.Equal(t, "PVC-U给水管", result.CommonName)
	assert.Equal(t, "管材", result.Category.Primary)
	assert.Equal(t, "GB/T 10002.1", result.StandardCode)
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	assert.False(t, result.NeedsReview)
}

func TestBuildResult_FittingDomainNoun(t *testing.T) {
	dsl := pipeDSL()
	dsl.Domain = "fitting"
	attrs := map[string]model.ExtractedAttribute{
		"材质": {Value: model.StrScalar("PVC-U"), Confidence: model.ConfidencePattern, Source: model.SourcePattern},
	}

	result := BuildResult("PVC-U弯头", attrs, dsl, 0.7)
	assert.Equal(t, "PVC-U件", result.MaterialName)
}

func TestBuildResult_NoAttributesTruncatesInput(t *testing.T) {
	long := strings.Repeat("管", 30)
	result := BuildResult(long, map[string]model.ExtractedAttribute{}, pipeDSL(), 0.7)

	assert.Equal(t, strings.Repeat("管", 20), result.MaterialName)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestBuildResult_NeedsReview(t *testing.T) {
	dsl := pipeDSL()
	attrs := map[string]model.ExtractedAttribute{
		"材质": {Value: model.StrScalar("PVC-U"), Confidence: model.ConfidenceDefault, Source: model.SourceDefault},
	}

	// Mean confidence 0.5 sits below the DSL threshold 0.6.
	result := BuildResult("管", attrs, dsl, 0.9)
	assert.True(t, result.NeedsReview)

	// Without the review requirement the flag never sets.
	dsl.Fallback.HumanReviewRequired = false
	result = BuildResult("管", attrs, dsl, 0.9)
	assert.False(t, result.NeedsReview)
}

func TestBuildResult_ThresholdFallsBackToDefault(t *testing.T) {
	dsl := pipeDSL()
	dsl.Fallback.LowConfidenceThreshold = 0
	attrs := map[string]model.ExtractedAttribute{
		"材质": {Value: model.StrScalar("PVC-U"), Confidence: model.ConfidenceDefault, Source: model.SourceDefault},
	}

	result := BuildResult("管", attrs, dsl, 0.8)
	assert.True(t, result.NeedsReview)
}

func TestBuildResult_CommonNameSynthesized(t *testing.T) {
	dsl := pipeDSL()
	dsl.Category.CanonicalName = ""
	attrs := map[string]model.ExtractedAttribute{
		"材质": {Value: model.StrScalar("PVC-U"), Confidence: model.ConfidencePattern, Source: model.SourcePattern},
	}

	result := BuildResult("PVC-U管", attrs, dsl, 0.7)
	assert.Equal(t, "工业用PVC-U管材", result.CommonName)
}

func TestDefaultResult(t *testing.T) {
	long := strings.Repeat("料", 60)
	result := DefaultResult(long)

	assert.Equal(t, strings.Repeat("料", 50), result.MaterialName)
	assert.Equal(t, "未分类", result.Category.Primary)
	assert.Equal(t, model.ConfidenceNoMatch, result.Confidence)
	assert.Empty(t, result.Attributes)
}

func TestAggregateConfidence(t *testing.T) {
	assert.Equal(t, 0.5, aggregateConfidence(nil))

	attrs := map[string]model.ExtractedAttribute{
		"a": {Confidence: 0.9},
		"b": {Confidence: 1.0},
		"c": {Confidence: 0.5},
	}
	require.InDelta(t, 0.8, aggregateConfidence(attrs), 1e-9)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "短文本", truncateRunes("短文本", 20))
	assert.Equal(t, "一二", truncateRunes("一二三", 2))
}
