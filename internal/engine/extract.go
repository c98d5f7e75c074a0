package engine

import (
	"regexp"

	"github.com/sells-group/skill-engine/internal/model"
)

var numericValueRe = regexp.MustCompile(`^\d+(\.\d+)?$`)

// ExtractAttributes applies each attribute spec's pattern list to the input
// text. Patterns run in declared order and the first match consumes the
// attribute. Attributes with no match fall back to their default value when
// one exists; otherwise they are omitted entirely.
func ExtractAttributes(text string, dsl *model.Definition) map[string]model.ExtractedAttribute {
	attrs := make(map[string]model.ExtractedAttribute)

	for i := range dsl.Attributes {
		spec := &dsl.Attributes[i]

		var value model.Scalar
		confidence := 0.0
		source := model.SourceDefault
		found := false

		for _, re := range spec.CompiledPatterns() {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			raw := m[0]
			if len(m) > 1 && m[1] != "" {
				raw = m[1]
			}
			value = coerce(raw, spec.Type)
			confidence = model.ConfidencePattern
			source = model.SourcePattern
			found = true
			break
		}

		if !found && spec.DefaultValue != nil {
			value = *spec.DefaultValue
			confidence = model.ConfidenceDefault
			source = model.SourceDefault
			found = true
		}

		if !found {
			continue
		}

		attrs[spec.Name] = model.ExtractedAttribute{
			Value:       value,
			Confidence:  confidence,
			Source:      source,
			Unit:        spec.Unit,
			DisplayName: displayName(spec),
			Description: spec.Description,
		}
	}

	return attrs
}

// coerce converts dimension values that look like plain numbers (digits with
// at most one decimal point) to numeric scalars. Everything else passes
// through as a string.
func coerce(raw string, typ model.AttributeType) model.Scalar {
	if typ == model.AttrDimension && numericValueRe.MatchString(raw) {
		if f, ok := model.StrScalar(raw).Float(); ok {
			return model.NumScalar(f)
		}
	}
	return model.StrScalar(raw)
}

func displayName(spec *model.AttributeSpec) string {
	if spec.DisplayName != "" {
		return spec.DisplayName
	}
	return spec.Name
}
