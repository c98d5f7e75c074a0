package evaluator

import (
	"math"
	"strings"

	"golang.org/x/text/width"

	"github.com/sells-group/skill-engine/internal/model"
)

// Match types as recorded on attribute scores.
const (
	MatchExact      = "exact"
	MatchNormalized = "normalized"
	MatchTolerance  = "tolerance"
	MatchFuzzy      = "fuzzy"
	MatchMismatch   = "mismatch"
	MatchMissing    = "missing"
	MatchExtra      = "extra"
)

// ExtraAttrPrefix marks actual attributes the case did not expect. Extras
// are recorded for inspection but never scored.
const ExtraAttrPrefix = "_extra_"

// fuzzyThreshold is the minimum character-set overlap for a fuzzy hit.
const fuzzyThreshold = 0.5

// Matcher scores actual attribute values against a case's expectations.
// Policies are tried in order: exact, normalized, tolerance, fuzzy.
type Matcher struct {
	// Tolerance is the default relative tolerance for numeric comparison,
	// used when the expected attribute carries none of its own.
	Tolerance float64
	// PartialMatch enables the fuzzy policy, which grants partial credit
	// for near-miss values. Exact, normalized, and tolerance matching
	// always run.
	PartialMatch bool
}

// ScoreAttributes scores every expected attribute and records unexpected
// actual attributes under the extra prefix. The overall score is the mean
// over expected attributes only; a case with no expectations scores 0.0,
// since there is nothing to validate the output against.
func (m *Matcher) ScoreAttributes(expected map[string]model.ExpectedAttribute, actual map[string]model.ExtractedAttribute) (map[string]model.AttributeScore, float64) {
	scores := make(map[string]model.AttributeScore, len(expected))

	total := 0.0
	for name, exp := range expected {
		expValue := exp.Value
		act, ok := actual[name]
		if !ok {
			scores[name] = model.AttributeScore{Expected: &expValue, MatchType: MatchMissing}
			continue
		}
		actValue := act.Value
		score := m.scoreValue(exp, actValue)
		score.Expected = &expValue
		score.Actual = &actValue
		scores[name] = score
		total += score.Score
	}

	for name, act := range actual {
		if _, ok := expected[name]; ok {
			continue
		}
		actValue := act.Value
		scores[ExtraAttrPrefix+name] = model.AttributeScore{Actual: &actValue, MatchType: MatchExtra}
	}

	if len(expected) == 0 {
		return scores, 0.0
	}
	return scores, total / float64(len(expected))
}

// scoreValue applies the match policies in order and returns the first hit.
func (m *Matcher) scoreValue(exp model.ExpectedAttribute, act model.Scalar) model.AttributeScore {
	if exp.Value.Equal(act) {
		return model.AttributeScore{Match: true, Score: 1.0, MatchType: MatchExact}
	}

	expNorm := normalize(exp.Value.String())
	actNorm := normalize(act.String())
	if expNorm == actNorm {
		return model.AttributeScore{Match: true, Score: 1.0, MatchType: MatchNormalized}
	}

	if score, ok := m.toleranceScore(exp, act); ok {
		return model.AttributeScore{Match: true, Score: score, MatchType: MatchTolerance}
	}

	if m.PartialMatch {
		if overlap := charOverlap(expNorm, actNorm); overlap > fuzzyThreshold {
			return model.AttributeScore{Score: 0.5 * overlap, MatchType: MatchFuzzy}
		}
	}

	return model.AttributeScore{MatchType: MatchMismatch}
}

// toleranceScore compares numerically within a relative tolerance. The score
// degrades linearly from 1.0 at zero error to 0.5 at the tolerance boundary.
// Zero expected values admit only an exact numeric zero, since relative error
// is undefined there.
func (m *Matcher) toleranceScore(exp model.ExpectedAttribute, act model.Scalar) (float64, bool) {
	expNum, ok := exp.Value.Float()
	if !ok {
		return 0, false
	}
	actNum, ok := act.Float()
	if !ok {
		return 0, false
	}
	if expNum == 0 {
		if actNum == 0 {
			return 1.0, true
		}
		return 0, false
	}

	tol := m.Tolerance
	if exp.Tolerance != nil {
		tol = *exp.Tolerance
	}
	if tol <= 0 {
		return 0, false
	}

	relErr := math.Abs(actNum-expNum) / math.Abs(expNum)
	if relErr > tol {
		return 0, false
	}
	return 1.0 - 0.5*(relErr/tol), true
}

var normReplacer = strings.NewReplacer(" ", "", "-", "", "_", "")

// normalize folds full-width characters to their half-width forms, lowercases,
// and strips separator characters. "ＤＮ１００" and "dn100" compare equal.
func normalize(s string) string {
	return normReplacer.Replace(strings.ToLower(width.Narrow.String(s)))
}

// charOverlap is the Jaccard similarity of the two strings' rune sets.
func charOverlap(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	setA := runeSet(a)
	setB := runeSet(b)

	inter := 0
	for r := range setA {
		if setB[r] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func runeSet(s string) map[rune]bool {
	set := make(map[rune]bool, len(s))
	for _, r := range s {
		set[r] = true
	}
	return set
}
