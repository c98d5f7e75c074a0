package engine

import (
	"strings"

	"github.com/sells-group/skill-engine/internal/model"
)

// Attribute names the struct builder reads when synthesizing a canonical
// material name.
const (
	attrMaterial = "材质"
)

// BuildResult assembles the final structured result: the skill's static
// category, the aggregate confidence, and a synthesized canonical name.
func BuildResult(inputText string, attrs map[string]model.ExtractedAttribute, dsl *model.Definition, defaultReviewThreshold float64) *model.ParseResult {
	confidence := aggregateConfidence(attrs)

	// Canonical name: material, then the domain noun, then "DN{diameter}".
	var parts []string
	if m, ok := attrs[attrMaterial]; ok {
		parts = append(parts, m.Value.String())
	}
	if dsl.Domain == "pipe" {
		parts = append(parts, "管")
	} else {
		parts = append(parts, "件")
	}
	if d, ok := attrs[attrDiameter]; ok {
		parts = append(parts, "DN"+d.Value.String())
	}

	materialName := strings.Join(parts, "")
	if len(attrs) == 0 {
		materialName = truncateRunes(inputText, 20)
	}

	commonName := dsl.Category.CanonicalName
	if commonName == "" {
		if m, ok := attrs[attrMaterial]; ok {
			commonName = "工业用" + m.Value.String() + "管材"
		}
	}

	threshold := dsl.Fallback.LowConfidenceThreshold
	if threshold == 0 {
		threshold = defaultReviewThreshold
	}

	return &model.ParseResult{
		MaterialName: materialName,
		CommonName:   commonName,
		Category:     dsl.Category,
		Attributes:   attrs,
		StandardCode: dsl.StandardCode,
		Confidence:   confidence,
		NeedsReview:  dsl.Fallback.HumanReviewRequired && confidence < threshold,
	}
}

// DefaultResult is the degenerate low-confidence result returned when no
// skill matches the input at all.
func DefaultResult(inputText string) *model.ParseResult {
	return &model.ParseResult{
		MaterialName: truncateRunes(inputText, 50),
		Category:     model.Category{Primary: "未分类"},
		Attributes:   map[string]model.ExtractedAttribute{},
		Confidence:   model.ConfidenceNoMatch,
	}
}

// aggregateConfidence is the flat arithmetic mean across all attributes,
// regardless of source or required flag. No attributes at all means 0.5.
func aggregateConfidence(attrs map[string]model.ExtractedAttribute) float64 {
	if len(attrs) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, a := range attrs {
		sum += a.Confidence
	}
	return sum / float64(len(attrs))
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
