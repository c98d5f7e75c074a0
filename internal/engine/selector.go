package engine

import (
	"sort"
	"strings"

	"github.com/sells-group/skill-engine/internal/model"
)

// Scoring weights for recognition signals. Regex patterns carry more weight
// than plain keywords.
const (
	keywordWeight = 1.0
	patternWeight = 1.5
)

// SelectSkill scores every candidate against the input text and returns the
// best match with its normalized score, or (nil, 0) when nothing scores
// above zero.
//
// Candidates are visited in descending priority and compared with strict >,
// so a tie keeps the higher-priority skill.
func SelectSkill(text string, candidates []model.Skill) (*model.Skill, float64) {
	ordered := make([]model.Skill, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	var best *model.Skill
	bestScore := 0.0
	for i := range ordered {
		s := &ordered[i]
		if s.DSL == nil {
			continue
		}
		score := recognitionScore(text, &s.DSL.Recognition)
		if score > bestScore {
			bestScore = score
			best = s
		}
	}
	return best, bestScore
}

// recognitionScore sums keyword and pattern hits, normalized by the signal
// count and clamped to 1.0.
func recognitionScore(text string, rec *model.Recognition) float64 {
	maxScore := float64(len(rec.Keywords) + len(rec.Patterns))
	if maxScore < 1 {
		maxScore = 1
	}

	lower := strings.ToLower(text)
	score := 0.0
	for _, kw := range rec.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			score += keywordWeight
		}
	}
	for _, re := range rec.CompiledPatterns() {
		if re.MatchString(text) {
			score += patternWeight
		}
	}

	normalized := score / maxScore
	if normalized > 1.0 {
		normalized = 1.0
	}
	return normalized
}
