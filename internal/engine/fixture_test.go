package engine

import (
	"github.com/sells-group/skill-engine/internal/model"
)

// pipeDSL builds a compiled pressure-pipe skill payload covering every
// derivation path: extraction patterns, all four lookup tables, and a rule.
func pipeDSL() *model.Definition {
	dv := model.StrScalar("PVC-U")
	d := &model.Definition{
		Domain:       "pipe",
		StandardCode: "GB/T 10002.1",
		Recognition: model.Recognition{
			Keywords: []string{"PVC-U", "管"},
			Patterns: []string{`DN\s*\d+`},
		},
		Attributes: []model.AttributeSpec{
			{Name: "公称直径", Type: model.AttrDimension, Unit: "mm", Patterns: []string{`DN\s*(\d+)`}},
			{Name: "公称压力", Type: model.AttrPerformance, Unit: "MPa", Patterns: []string{`PN\s*([\d.]+)`}},
			{Name: "材质", Type: model.AttrMaterial, Patterns: []string{`PVC-U|UPVC`}, DefaultValue: &dv},
		},
		Tables: map[string]model.Table{
			TableDNOuterDiameter: {
				Columns: []string{"DN", "外径"},
				Rows: [][]model.Scalar{
					{model.NumScalar(50), model.NumScalar(63)},
					{model.NumScalar(100), model.NumScalar(110)},
				},
			},
			TableSeriesMapping: {
				Columns: []string{"PN", "系列", "C"},
				Rows: [][]model.Scalar{
					{model.NumScalar(1.0), model.StrScalar("S8"), model.NumScalar(2)},
					{model.NumScalar(1.6), model.StrScalar("S5"), model.NumScalar(2)},
				},
			},
			TableDimensions: {
				Columns: []string{"公称外径(mm)", "S5系列壁厚", "S8系列壁厚"},
				Rows: [][]model.Scalar{
					{model.NumScalar(63), model.NumScalar(1.9), model.NumScalar(1.6)},
					{model.NumScalar(110), model.NumScalar(3.2), model.NumScalar(2.7)},
				},
			},
			TableWallTolerance: {
				Columns: []string{"壁厚范围", "正偏差"},
				Rows: [][]model.Scalar{
					{model.StrScalar("1.0-3.0"), model.NumScalar(0.4)},
					{model.StrScalar("3.1-4.0"), model.NumScalar(0.5)},
				},
			},
		},
		Rules: []model.Rule{
			{Source: "材质", Target: "连接方式", Map: map[string]string{"PVC-U": "承插粘接"}},
		},
		Category: model.Category{
			Primary:       "管材",
			Secondary:     "塑料管材",
			CanonicalName: "PVC-U给水管",
		},
		Fallback: model.Fallback{
			LowConfidenceThreshold: 0.6,
			HumanReviewRequired:    true,
		},
	}
	d.Compile()
	return d
}

func pipeSkill() model.Skill {
	return model.Skill{
		ID:       "skill-pipe",
		Name:     "gb-t-10002-pvc-pipe",
		Domain:   "pipe",
		Priority: 10,
		Status:   model.SkillActive,
		DSL:      pipeDSL(),
	}
}
