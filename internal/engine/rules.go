package engine

import "github.com/sells-group/skill-engine/internal/model"

// ApplyRules runs the skill's value-to-value derivations. A rule fires only
// when its source attribute is present and its target name is not already
// taken: rules introduce new attributes, they never overwrite extraction or
// table output. Returns the names of the rules that fired.
func ApplyRules(attrs map[string]model.ExtractedAttribute, dsl *model.Definition) []string {
	var applied []string

	for _, rule := range dsl.Rules {
		src, ok := attrs[rule.Source]
		if !ok {
			continue
		}
		if _, taken := attrs[rule.Target]; taken {
			continue
		}
		derived, ok := rule.Map[src.Value.String()]
		if !ok {
			continue
		}
		attrs[rule.Target] = model.ExtractedAttribute{
			Value:       model.StrScalar(derived),
			Confidence:  model.ConfidenceRule,
			Source:      model.SourceRule,
			Unit:        rule.Unit,
			DisplayName: ruleDisplayName(rule),
			Description: rule.Description,
		}
		applied = append(applied, rule.Source+"→"+rule.Target)
	}

	return applied
}

func ruleDisplayName(rule model.Rule) string {
	if rule.DisplayName != "" {
		return rule.DisplayName
	}
	return rule.Target
}
