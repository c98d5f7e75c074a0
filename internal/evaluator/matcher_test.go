package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/skill-engine/internal/model"
)

func extracted(v model.Scalar) model.ExtractedAttribute {
	return model.ExtractedAttribute{Value: v, Confidence: 0.9, Source: model.SourcePattern}
}

func TestMatcher_ExactMatch(t *testing.T) {
	m := &Matcher{Tolerance: 0.05}
	expected := map[string]model.ExpectedAttribute{
		"公称直径": {Value: model.NumScalar(100)},
		"材质":   {Value: model.StrScalar("PVC-U")},
	}
	actual := map[string]model.ExtractedAttribute{
		"公称直径": extracted(model.NumScalar(100)),
		"材质":   extracted(model.StrScalar("PVC-U")),
	}

	scores, overall := m.ScoreAttributes(expected, actual)
	assert.Equal(t, 1.0, overall)
	for name, s := range scores {
		assert.True(t, s.Match, name)
		assert.Equal(t, MatchExact, s.MatchType, name)
	}
}

func TestMatcher_NormalizedMatch(t *testing.T) {
	m := &Matcher{}

	// Full-width digits, case, and separators all fold away.
	s := m.scoreValue(model.ExpectedAttribute{Value: model.StrScalar("DN100")}, model.StrScalar("ＤＮ１００"))
	assert.Equal(t, MatchNormalized, s.MatchType)
	assert.True(t, s.Match)
	assert.Equal(t, 1.0, s.Score)

	s = m.scoreValue(model.ExpectedAttribute{Value: model.StrScalar("PVC-U")}, model.StrScalar("pvc u"))
	assert.Equal(t, MatchNormalized, s.MatchType)
}

func TestMatcher_ZeroExpectedMatchesZeroActual(t *testing.T) {
	m := &Matcher{Tolerance: 0.05}

	s := m.scoreValue(model.ExpectedAttribute{Value: model.NumScalar(0)}, model.StrScalar("0.0"))
	require.Equal(t, MatchTolerance, s.MatchType)
	assert.True(t, s.Match)
	assert.Equal(t, 1.0, s.Score)
}

func TestMatcher_ToleranceMatch(t *testing.T) {
	m := &Matcher{Tolerance: 0.05}

	s := m.scoreValue(model.ExpectedAttribute{Value: model.NumScalar(5.3)}, model.NumScalar(5.4))
	require.Equal(t, MatchTolerance, s.MatchType)
	assert.True(t, s.Match)
	// relErr 0.1/5.3 against tolerance 0.05 degrades the score linearly.
	assert.InDelta(t, 0.8113, s.Score, 0.001)

	// Exactly at the boundary scores 0.5.
	s = m.scoreValue(model.ExpectedAttribute{Value: model.NumScalar(100)}, model.NumScalar(105))
	require.Equal(t, MatchTolerance, s.MatchType)
	assert.InDelta(t, 0.5, s.Score, 1e-9)

	// Beyond the boundary the tolerance policy declines.
	s = m.scoreValue(model.ExpectedAttribute{Value: model.NumScalar(100)}, model.NumScalar(250))
	assert.Equal(t, MatchMismatch, s.MatchType)
}

func TestMatcher_PerAttributeToleranceOverride(t *testing.T) {
	m := &Matcher{Tolerance: 0.01}
	tol := 0.1

	s := m.scoreValue(model.ExpectedAttribute{Value: model.NumScalar(100), Tolerance: &tol}, model.NumScalar(105))
	assert.Equal(t, MatchTolerance, s.MatchType)
}

func TestMatcher_ToleranceRequiresNumbers(t *testing.T) {
	m := &Matcher{Tolerance: 0.05}

	s := m.scoreValue(model.ExpectedAttribute{Value: model.StrScalar("S5")}, model.StrScalar("S8"))
	assert.NotEqual(t, MatchTolerance, s.MatchType)

	// Relative error is undefined against a zero expectation, so anything
	// other than an exact numeric zero declines.
	s = m.scoreValue(model.ExpectedAttribute{Value: model.NumScalar(0)}, model.NumScalar(0.01))
	assert.NotEqual(t, MatchTolerance, s.MatchType)
}

func TestMatcher_FuzzyMatch(t *testing.T) {
	m := &Matcher{PartialMatch: true}

	s := m.scoreValue(model.ExpectedAttribute{Value: model.StrScalar("承插粘接连接")}, model.StrScalar("承插粘接"))
	require.Equal(t, MatchFuzzy, s.MatchType)
	// Fuzzy hits are half-credit and never count as a match.
	assert.False(t, s.Match)
	assert.Greater(t, s.Score, 0.25)
	assert.LessOrEqual(t, s.Score, 0.5)
}

func TestMatcher_FuzzyRequiresPartialMatch(t *testing.T) {
	m := &Matcher{Tolerance: 0.05, PartialMatch: false}

	// A near-miss earns nothing when partial matching is disabled.
	s := m.scoreValue(model.ExpectedAttribute{Value: model.StrScalar("承插粘接连接")}, model.StrScalar("承插粘接"))
	assert.Equal(t, MatchMismatch, s.MatchType)
	assert.False(t, s.Match)
	assert.Equal(t, 0.0, s.Score)
}

func TestMatcher_Mismatch(t *testing.T) {
	m := &Matcher{Tolerance: 0.05}

	s := m.scoreValue(model.ExpectedAttribute{Value: model.StrScalar("PVC-U")}, model.StrScalar("钢"))
	assert.Equal(t, MatchMismatch, s.MatchType)
	assert.False(t, s.Match)
	assert.Equal(t, 0.0, s.Score)
}

func TestMatcher_MissingAttribute(t *testing.T) {
	m := &Matcher{}
	expected := map[string]model.ExpectedAttribute{
		"公称直径": {Value: model.NumScalar(100)},
		"材质":   {Value: model.StrScalar("PVC-U")},
	}
	actual := map[string]model.ExtractedAttribute{
		"材质": extracted(model.StrScalar("PVC-U")),
	}

	scores, overall := m.ScoreAttributes(expected, actual)
	assert.Equal(t, MatchMissing, scores["公称直径"].MatchType)
	assert.Nil(t, scores["公称直径"].Actual)
	assert.InDelta(t, 0.5, overall, 1e-9)
}

func TestMatcher_ExtrasRecordedNotScored(t *testing.T) {
	m := &Matcher{}
	expected := map[string]model.ExpectedAttribute{
		"公称直径": {Value: model.NumScalar(100)},
	}
	actual := map[string]model.ExtractedAttribute{
		"公称直径": extracted(model.NumScalar(100)),
		"连接方式": extracted(model.StrScalar("承插粘接")),
	}

	scores, overall := m.ScoreAttributes(expected, actual)
	assert.Equal(t, 1.0, overall)

	extra, ok := scores[ExtraAttrPrefix+"连接方式"]
	require.True(t, ok)
	assert.Equal(t, MatchExtra, extra.MatchType)
	assert.False(t, extra.Match)
}

func TestMatcher_NoExpectationsScoresZero(t *testing.T) {
	m := &Matcher{}
	scores, overall := m.ScoreAttributes(nil, map[string]model.ExtractedAttribute{
		"材质": extracted(model.StrScalar("PVC-U")),
	})
	// Nothing to validate against means the case cannot pass.
	assert.Equal(t, 0.0, overall)
	assert.Len(t, scores, 1)
	assert.Equal(t, MatchExtra, scores[ExtraAttrPrefix+"材质"].MatchType)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "dn100", normalize("ＤＮ１００"))
	assert.Equal(t, "pvcu", normalize("PVC-U"))
	assert.Equal(t, "s5", normalize(" S_5 "))
}

func TestCharOverlap(t *testing.T) {
	assert.Equal(t, 1.0, charOverlap("abc", "cba"))
	assert.Equal(t, 0.0, charOverlap("abc", "xyz"))
	assert.Equal(t, 0.0, charOverlap("", "abc"))
	assert.InDelta(t, 0.5, charOverlap("ab", "abcd"), 1e-9)
}
