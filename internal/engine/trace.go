package engine

import (
	"time"

	"github.com/sells-group/skill-engine/internal/model"
)

// Stage names as they appear in execution traces.
const (
	stageSelector = "SkillSelector"
	stageExtract  = "ExtractEngine"
	stageTables   = "TableEngine"
	stageRules    = "RuleEngine"
	stageCategory = "CategoryEngine"
	stageBuilder  = "StructBuilder"
)

// tracer accumulates per-stage snapshots for one execution. One tracer per
// run; never shared.
type tracer struct {
	stages []model.StageTrace
}

// record appends one completed stage.
func (t *tracer) record(engine string, start time.Time, input, output map[string]any) {
	end := time.Now()
	t.stages = append(t.stages, model.StageTrace{
		Engine:     engine,
		Start:      start,
		End:        end,
		DurationMs: end.Sub(start).Milliseconds(),
		Input:      input,
		Output:     output,
	})
}

// snapshotAttributes copies the attribute map into a trace-friendly form.
func snapshotAttributes(attrs map[string]model.ExtractedAttribute) map[string]any {
	out := make(map[string]any, len(attrs))
	for name, a := range attrs {
		out[name] = map[string]any{
			"value":      a.Value.String(),
			"confidence": a.Confidence,
			"source":     string(a.Source),
		}
	}
	return out
}
