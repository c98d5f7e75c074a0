package generator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/skill-engine/internal/engine"
	"github.com/sells-group/skill-engine/internal/model"
)

func dimensionDSL() *model.Definition {
	d := &model.Definition{
		Domain: "pipe",
		Tables: map[string]model.Table{
			engine.TableDimensions: {
				Columns: []string{"公称外径(mm)", "S5系列壁厚", "S8系列壁厚"},
				Rows: [][]model.Scalar{
					{model.NumScalar(63), model.NumScalar(1.9), model.NumScalar(1.6)},
					{model.NumScalar(110), model.NumScalar(3.2), model.NumScalar(2.7)},
				},
			},
		},
	}
	return d
}

func TestTableCombinations(t *testing.T) {
	combos := tableCombinations(dimensionDSL(), 100)

	// Two rows times two thickness columns.
	require.Len(t, combos, 4)
	for _, c := range combos {
		assert.Contains(t, c.attrs, attrOuterDiameter)
		assert.Contains(t, c.attrs, attrWallThickness)
		assert.Equal(t, engine.TableDimensions, c.sourceRef["table"])
	}

	assert.Equal(t, 1.9, combos[0].attrs[attrWallThickness].Num)
	assert.Equal(t, 1.6, combos[1].attrs[attrWallThickness].Num)
}

func TestTableCombinations_PressureFromColumnHeader(t *testing.T) {
	d := &model.Definition{
		Domain: "pipe",
		Tables: map[string]model.Table{
			engine.TableDimensions: {
				Columns: []string{"DN", "壁厚PN1.6", "壁厚PN1.0"},
				Rows: [][]model.Scalar{
					{model.NumScalar(100), model.NumScalar(3.2), model.NumScalar(2.7)},
				},
			},
		},
	}

	combos := tableCombinations(d, 100)
	require.Len(t, combos, 2)

	// The pressure class comes from the column header, not the cell.
	assert.Equal(t, 100.0, combos[0].attrs[attrDiameter].Num)
	assert.Equal(t, 1.6, combos[0].attrs[attrPressure].Num)
	assert.Equal(t, 3.2, combos[0].attrs[attrWallThickness].Num)
	assert.Equal(t, 1.0, combos[1].attrs[attrPressure].Num)
	assert.Equal(t, 2.7, combos[1].attrs[attrWallThickness].Num)
}

func TestTableCombinations_SkipsZeroCells(t *testing.T) {
	d := dimensionDSL()
	tbl := d.Tables[engine.TableDimensions]
	tbl.Rows = [][]model.Scalar{
		{model.NumScalar(63), model.NumScalar(1.9), {}},
	}
	d.Tables[engine.TableDimensions] = tbl

	combos := tableCombinations(d, 100)
	assert.Len(t, combos, 1)
}

func TestTableCombinations_NoDimensionTable(t *testing.T) {
	assert.Nil(t, tableCombinations(&model.Definition{Domain: "pipe"}, 100))
}

func TestTableCombinations_Limit(t *testing.T) {
	combos := tableCombinations(dimensionDSL(), 3)
	assert.Len(t, combos, 3)
}

func TestValueDomains(t *testing.T) {
	spec := model.StrScalar("PVC-U")
	d := dimensionDSL()
	d.Attributes = []model.AttributeSpec{
		{Name: "连接方式", Type: model.AttrSpecification, AllowedValues: []model.Scalar{model.StrScalar("承插粘接"), model.StrScalar("热熔连接")}},
		{Name: attrMaterial, Type: model.AttrMaterial, DefaultValue: &spec},
	}

	domains := valueDomains(d)

	assert.Len(t, domains["连接方式"], 2)
	assert.Len(t, domains[attrMaterial], 1)
	// Both thickness columns collapse into one deduplicated domain.
	assert.Len(t, domains[attrOuterDiameter], 2)
	assert.Len(t, domains[attrWallThickness], 4)
}

func TestDomainCombinations(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	domains := map[string][]model.Scalar{
		"a": {model.NumScalar(1), model.NumScalar(2)},
		"b": {model.StrScalar("x")},
	}

	combos := domainCombinations(domains, 10, rng)
	require.Len(t, combos, 2)
	for _, c := range combos {
		assert.Len(t, c.attrs, 2)
		assert.Equal(t, "value_domains", c.sourceRef["source"])
	}

	assert.Len(t, domainCombinations(domains, 1, rng), 1)
	assert.Nil(t, domainCombinations(nil, 10, rng))
}

func TestNormalizeColumnName(t *testing.T) {
	assert.Equal(t, attrDiameter, normalizeColumnName("DN"))
	assert.Equal(t, attrOuterDiameter, normalizeColumnName("公称外径(mm)"))
	assert.Equal(t, attrPressure, normalizeColumnName("PN1.6"))
	assert.Equal(t, attrWallThickness, normalizeColumnName("S5系列壁厚"))
	assert.Equal(t, "长度", normalizeColumnName("长度(m)"))
	// Unknown headers keep their name minus the unit suffix.
	assert.Equal(t, "颜色", normalizeColumnName("颜色(RAL)"))
	assert.Equal(t, "", normalizeColumnName(""))
}

func TestAppendUnique(t *testing.T) {
	values := appendUnique(nil, model.NumScalar(100))
	values = appendUnique(values, model.NumScalar(100))
	values = appendUnique(values, model.NumScalar(110))
	assert.Len(t, values, 2)
}
