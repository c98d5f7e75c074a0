package evaluator

import (
	"strings"

	"github.com/sells-group/skill-engine/internal/model"
)

// computeMetrics aggregates a run's results into the metrics snapshot stored
// on the completed run. Extra attributes are excluded from every aggregate.
func computeMetrics(results []model.Result, cases []model.Case) *model.Metrics {
	difficultyByCase := make(map[string]model.Difficulty, len(cases))
	for _, c := range cases {
		difficultyByCase[c.ID] = c.Difficulty
	}

	metrics := &model.Metrics{
		ByDifficulty: map[string]model.DifficultyMetrics{},
		ByAttribute:  map[string]model.AttributeMetrics{},
		ByStatus:     map[string]int{},
	}

	var (
		success, partial      int
		skillChecked, skillOK int
		confSum               float64
		confCount             int
		scoreSum, durationSum float64
	)

	type diffAgg struct {
		count   int
		success int
		score   float64
	}
	byDifficulty := map[model.Difficulty]*diffAgg{}

	type attrAgg struct {
		total     int
		exact     int
		tolerance int
		missing   int
	}
	byAttribute := map[string]*attrAgg{}

	for _, r := range results {
		metrics.ByStatus[string(r.Status)]++
		scoreSum += r.OverallScore
		durationSum += float64(r.DurationMs)

		switch r.Status {
		case model.ResultSuccess:
			success++
		case model.ResultPartial:
			partial++
		}

		if r.SkillMatch != nil {
			skillChecked++
			if *r.SkillMatch {
				skillOK++
			}
		}
		if r.ActualConfidence != nil {
			confSum += *r.ActualConfidence
			confCount++
		}

		difficulty := difficultyByCase[r.CaseID]
		agg, ok := byDifficulty[difficulty]
		if !ok {
			agg = &diffAgg{}
			byDifficulty[difficulty] = agg
		}
		agg.count++
		agg.score += r.OverallScore
		if r.Status == model.ResultSuccess {
			agg.success++
		}

		for name, score := range r.AttributeScores {
			if strings.HasPrefix(name, ExtraAttrPrefix) {
				continue
			}
			aa, ok := byAttribute[name]
			if !ok {
				aa = &attrAgg{}
				byAttribute[name] = aa
			}
			aa.total++
			switch score.MatchType {
			case MatchExact, MatchNormalized:
				aa.exact++
				aa.tolerance++
			case MatchTolerance:
				aa.tolerance++
			case MatchMissing:
				aa.missing++
			}
		}
	}

	total := len(results)
	if total > 0 {
		metrics.Overall = model.OverallMetrics{
			TotalCases:      total,
			Accuracy:        float64(success) / float64(total),
			PartialAccuracy: float64(success+partial) / float64(total),
			AvgScore:        scoreSum / float64(total),
			AvgDurationMs:   durationSum / float64(total),
		}
	}
	if skillChecked > 0 {
		metrics.Overall.SkillMatchRate = float64(skillOK) / float64(skillChecked)
	}
	if confCount > 0 {
		metrics.Overall.AvgConfidence = confSum / float64(confCount)
	}

	for difficulty, agg := range byDifficulty {
		metrics.ByDifficulty[string(difficulty)] = model.DifficultyMetrics{
			Count:    agg.count,
			Accuracy: float64(agg.success) / float64(agg.count),
			AvgScore: agg.score / float64(agg.count),
		}
	}
	for name, aa := range byAttribute {
		metrics.ByAttribute[name] = model.AttributeMetrics{
			Total:           aa.total,
			ExactMatch:      float64(aa.exact) / float64(aa.total),
			WithinTolerance: float64(aa.tolerance) / float64(aa.total),
			MissingRate:     float64(aa.missing) / float64(aa.total),
		}
	}

	return metrics
}
