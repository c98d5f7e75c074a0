package generator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/skill-engine/internal/engine"
	"github.com/sells-group/skill-engine/internal/model"
)

// fakeStore serves one skill and one dataset and records created cases.
type fakeStore struct {
	skill   *model.Skill
	dataset *model.Dataset
	cases   []model.Case
	updated *model.Dataset
}

func (f *fakeStore) GetSkill(_ context.Context, _ string) (*model.Skill, error) {
	return f.skill, nil
}

func (f *fakeStore) GetDataset(_ context.Context, _ string) (*model.Dataset, error) {
	return f.dataset, nil
}

func (f *fakeStore) UpdateDataset(_ context.Context, dataset *model.Dataset) error {
	f.updated = dataset
	return nil
}

func (f *fakeStore) CreateCases(_ context.Context, cases []model.Case) error {
	f.cases = append(f.cases, cases...)
	return nil
}

func pipeSkillFixture() *model.Skill {
	dv := model.StrScalar("PVC-U")
	dsl := &model.Definition{
		Domain: "pipe",
		Attributes: []model.AttributeSpec{
			{Name: attrDiameter, Type: model.AttrDimension, Unit: "mm", Patterns: []string{`DN(\d+)`}},
			{Name: attrMaterial, Type: model.AttrMaterial, Patterns: []string{`PVC-U`}, DefaultValue: &dv},
		},
		Tables: map[string]model.Table{
			engine.TableDimensions: {
				Columns: []string{"公称外径(mm)", "S5系列壁厚", "S8系列壁厚"},
				Rows: [][]model.Scalar{
					{model.NumScalar(63), model.NumScalar(1.9), model.NumScalar(1.6)},
					{model.NumScalar(110), model.NumScalar(3.2), model.NumScalar(2.7)},
				},
			},
		},
		Category: model.Category{Primary: "管材"},
	}
	dsl.Compile()
	return &model.Skill{ID: "skill-pipe", Name: "pvc-pipe", Domain: "pipe", Status: model.SkillActive, DSL: dsl}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		skill: pipeSkillFixture(),
		dataset: &model.Dataset{
			ID:     "ds-1",
			Code:   "DS_PIPE",
			Status: model.DatasetDraft,
		},
	}
}

func TestGenerateFromSkill(t *testing.T) {
	st := newFakeStore()
	g := New(st, 42)

	stats, err := g.GenerateFromSkill(context.Background(), "skill-pipe", "DS_PIPE", Options{Count: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, stats.GeneratedCount)
	assert.Equal(t, 4, stats.TotalCombinations)

	// Default split over 10 cases.
	assert.Equal(t, 4, stats.ByDifficulty["easy"])
	assert.Equal(t, 3, stats.ByDifficulty["medium"])
	assert.Equal(t, 2, stats.ByDifficulty["hard"])
	assert.Equal(t, 1, stats.ByDifficulty["adversarial"])

	require.Len(t, st.cases, 10)
	for _, c := range st.cases {
		assert.True(t, strings.HasPrefix(c.Code, "GEN_"))
		assert.Equal(t, "ds-1", c.DatasetID)
		assert.Equal(t, "skill-pipe", c.ExpectedSkillID)
		assert.Equal(t, model.CaseTableEnum, c.SourceType)
		assert.True(t, c.Active)
		assert.NotEmpty(t, c.InputText)
		require.NotNil(t, c.ExpectedCategory)
		assert.Equal(t, "管材", c.ExpectedCategory.Primary)

		od, ok := c.ExpectedAttributes[attrOuterDiameter]
		require.True(t, ok)
		assert.Equal(t, "mm", od.Unit)
		require.NotNil(t, od.Tolerance)
		assert.Equal(t, defaultTolerance, *od.Tolerance)
	}

	// The dataset statistics advance and the draft becomes ready.
	require.NotNil(t, st.updated)
	assert.Equal(t, 10, st.updated.TotalCases)
	assert.Equal(t, model.DatasetReady, st.updated.Status)
	assert.Equal(t, 4, st.updated.DifficultyStats["easy"])
}

func TestGenerateFromSkill_CustomDistribution(t *testing.T) {
	st := newFakeStore()
	g := New(st, 42)

	stats, err := g.GenerateFromSkill(context.Background(), "skill-pipe", "DS_PIPE", Options{
		Count:                  10,
		DifficultyDistribution: map[string]int{"easy": 33, "hard": 67},
	})
	require.NoError(t, err)

	// 33% and 67% of 10 floor to 3 and 6; the remainder lands on the first
	// named grade.
	assert.Equal(t, 4, stats.ByDifficulty["easy"])
	assert.Equal(t, 6, stats.ByDifficulty["hard"])
	assert.NotContains(t, stats.ByDifficulty, "medium")
}

func TestGenerateFromSkill_ArchivedDataset(t *testing.T) {
	st := newFakeStore()
	st.dataset.Status = model.DatasetArchived
	g := New(st, 42)

	_, err := g.GenerateFromSkill(context.Background(), "skill-pipe", "DS_PIPE", Options{Count: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archived")
}

func TestGenerateFromSkill_NothingToEnumerate(t *testing.T) {
	st := newFakeStore()
	st.skill.DSL = &model.Definition{
		Domain: "pipe",
		Attributes: []model.AttributeSpec{
			{Name: attrDiameter, Type: model.AttrDimension, Patterns: []string{`DN(\d+)`}},
		},
	}

	_, err := New(st, 42).GenerateFromSkill(context.Background(), "skill-pipe", "DS_PIPE", Options{Count: 5})
	require.Error(t, err)
}

func TestGenerateFromSkill_DeterministicUnderFixedSeed(t *testing.T) {
	first := newFakeStore()
	_, err := New(first, 7).GenerateFromSkill(context.Background(), "skill-pipe", "DS_PIPE", Options{Count: 20, IncludeNoise: true})
	require.NoError(t, err)

	second := newFakeStore()
	_, err = New(second, 7).GenerateFromSkill(context.Background(), "skill-pipe", "DS_PIPE", Options{Count: 20, IncludeNoise: true})
	require.NoError(t, err)

	require.Len(t, second.cases, len(first.cases))
	for i := range first.cases {
		assert.Equal(t, first.cases[i].InputText, second.cases[i].InputText)
		assert.Equal(t, first.cases[i].Difficulty, second.cases[i].Difficulty)
	}
}

func TestGenerateFromSkill_VariantsChangeWording(t *testing.T) {
	opts := Options{Count: 40, DifficultyDistribution: map[string]int{"easy": 100}}

	plain := newFakeStore()
	_, err := New(plain, 7).GenerateFromSkill(context.Background(), "skill-pipe", "DS_PIPE", opts)
	require.NoError(t, err)

	withVariants := opts
	withVariants.IncludeVariants = true
	varied := newFakeStore()
	_, err = New(varied, 7).GenerateFromSkill(context.Background(), "skill-pipe", "DS_PIPE", withVariants)
	require.NoError(t, err)

	// Easy cases render one canonical phrasing per combination; variants
	// introduce wording outside that set.
	canonical := map[string]bool{}
	for _, c := range plain.cases {
		canonical[c.InputText] = true
	}
	variantSeen := false
	for _, c := range varied.cases {
		if !canonical[c.InputText] {
			variantSeen = true
			break
		}
	}
	assert.True(t, variantSeen)
}

func TestGenerateFromTemplate(t *testing.T) {
	st := newFakeStore()
	g := New(st, 42)

	tmpl := Template{
		ID:      "tpl-pipe",
		Pattern: "{材质}管 DN{公称直径}",
		Values: map[string][]string{
			"材质":   {"PVC-U"},
			"公称直径": {"100", "50"},
		},
	}

	stats, err := g.GenerateFromTemplate(context.Background(), tmpl, "DS_PIPE", 2, model.DifficultyEasy, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.GeneratedCount)
	assert.Equal(t, 2, stats.ByDifficulty["easy"])
	assert.Equal(t, 2, stats.BySource[string(model.CaseTemplate)])

	require.Len(t, st.cases, 2)
	for _, c := range st.cases {
		assert.True(t, strings.HasPrefix(c.Code, "TPL_"))
		assert.Equal(t, model.CaseTemplate, c.SourceType)
		assert.Equal(t, "tpl-pipe", c.SourceRef["template_id"])
		assert.Contains(t, c.InputText, "DN")
		assert.Contains(t, c.ExpectedAttributes, "公称直径")
	}
}

func TestGenerateFromTemplate_RequiresPattern(t *testing.T) {
	_, err := New(newFakeStore(), 42).GenerateFromTemplate(context.Background(), Template{ID: "x"}, "DS_PIPE", 2, model.DifficultyEasy, false)
	require.Error(t, err)
}

func TestDifficultyCounts_Default(t *testing.T) {
	counts := difficultyCounts(nil, 100)
	assert.Equal(t, 40, counts[model.DifficultyEasy])
	assert.Equal(t, 30, counts[model.DifficultyMedium])
	assert.Equal(t, 20, counts[model.DifficultyHard])
	assert.Equal(t, 10, counts[model.DifficultyAdversarial])

	// The adversarial bucket absorbs rounding leftovers.
	counts = difficultyCounts(nil, 7)
	total := 0
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, 7, total)
}

func TestDifficultyCounts_Custom(t *testing.T) {
	counts := difficultyCounts(map[string]int{"easy": 50, "medium": 50}, 10)
	assert.Equal(t, 5, counts[model.DifficultyEasy])
	assert.Equal(t, 5, counts[model.DifficultyMedium])
	assert.NotContains(t, counts, model.DifficultyHard)
}

func TestExpectedAttributes(t *testing.T) {
	dsl := pipeSkillFixture().DSL
	attrs := map[string]model.Scalar{
		attrDiameter: model.NumScalar(100),
		attrMaterial: model.StrScalar("PVC-U"),
	}

	expected := expectedAttributes(attrs, dsl)

	dn := expected[attrDiameter]
	assert.Equal(t, "mm", dn.Unit)
	require.NotNil(t, dn.Tolerance)
	assert.Equal(t, defaultTolerance, *dn.Tolerance)

	// Non-numeric attributes carry no tolerance.
	mat := expected[attrMaterial]
	assert.Nil(t, mat.Tolerance)
}

func TestCaseCode(t *testing.T) {
	code := caseCode("GEN")
	parts := strings.Split(code, "_")
	require.Len(t, parts, 3)
	assert.Equal(t, "GEN", parts[0])
	assert.Len(t, parts[1], 8)
	assert.Len(t, parts[2], 8)
	assert.Equal(t, strings.ToUpper(code), code)
}
