package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinition() *Definition {
	dv := StrScalar("PVC-U")
	return &Definition{
		Domain: "pipe",
		Recognition: Recognition{
			Keywords: []string{"PVC-U", "管"},
			Patterns: []string{`DN\d+`},
		},
		Attributes: []AttributeSpec{
			{Name: "公称直径", Type: AttrDimension, Unit: "mm", Patterns: []string{`DN(\d+)`}},
			{Name: "材质", Type: AttrMaterial, DefaultValue: &dv},
		},
		Tables: map[string]Table{
			"dn_outer_diameter_map": {
				Columns: []string{"DN", "外径"},
				Rows:    [][]Scalar{{NumScalar(100), NumScalar(110)}},
			},
		},
		Rules: []Rule{
			{Source: "材质", Target: "连接方式", Map: map[string]string{"PVC-U": "承插粘接"}},
		},
		Category: Category{Primary: "管材"},
	}
}

func TestDefinition_Validate(t *testing.T) {
	require.NoError(t, validDefinition().Validate())
}

func TestDefinition_Validate_Failures(t *testing.T) {
	t.Run("missing domain", func(t *testing.T) {
		d := validDefinition()
		d.Domain = ""
		assert.Error(t, d.Validate())
	})

	t.Run("duplicate attribute name", func(t *testing.T) {
		d := validDefinition()
		d.Attributes = append(d.Attributes, d.Attributes[0])
		assert.Error(t, d.Validate())
	})

	t.Run("unknown attribute type", func(t *testing.T) {
		d := validDefinition()
		d.Attributes[0].Type = "shape"
		assert.Error(t, d.Validate())
	})

	t.Run("attribute with neither patterns nor default", func(t *testing.T) {
		d := validDefinition()
		d.Attributes[0].Patterns = nil
		assert.Error(t, d.Validate())
	})

	t.Run("misaligned table row", func(t *testing.T) {
		d := validDefinition()
		tbl := d.Tables["dn_outer_diameter_map"]
		tbl.Rows = append(tbl.Rows, []Scalar{NumScalar(50)})
		d.Tables["dn_outer_diameter_map"] = tbl
		assert.Error(t, d.Validate())
	})

	t.Run("rule without map", func(t *testing.T) {
		d := validDefinition()
		d.Rules[0].Map = nil
		assert.Error(t, d.Validate())
	})
}

func TestDefinition_Compile_DropsInvalidPatterns(t *testing.T) {
	d := validDefinition()
	d.Attributes[0].Patterns = []string{`DN(\d+)`, `([unclosed`}
	d.Compile()

	// The invalid pattern is dropped, the valid one survives.
	assert.Len(t, d.Attributes[0].CompiledPatterns(), 1)
}

func TestDefinition_Compile_CaseInsensitive(t *testing.T) {
	d := validDefinition()
	d.Compile()

	re := d.Attributes[0].CompiledPatterns()[0]
	assert.True(t, re.MatchString("dn100"))
	assert.True(t, re.MatchString("DN100"))
}

func TestDefinition_AttributeOrderSurvivesJSON(t *testing.T) {
	d := validDefinition()
	raw, err := json.Marshal(d)
	require.NoError(t, err)

	loaded, err := LoadSkillDSL(raw)
	require.NoError(t, err)
	require.Len(t, loaded.Attributes, 2)
	assert.Equal(t, "公称直径", loaded.Attributes[0].Name)
	assert.Equal(t, "材质", loaded.Attributes[1].Name)
}

func TestLoadSkillDSL_RejectsInvalid(t *testing.T) {
	_, err := LoadSkillDSL([]byte(`{"domain":""}`))
	assert.Error(t, err)

	_, err = LoadSkillDSL([]byte(`not json`))
	assert.Error(t, err)
}

func TestDefinition_Attribute(t *testing.T) {
	d := validDefinition()
	assert.NotNil(t, d.Attribute("材质"))
	assert.Nil(t, d.Attribute("不存在"))
}
