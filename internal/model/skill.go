package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// SkillStatus is the lifecycle state of a skill.
type SkillStatus string

const (
	SkillDraft      SkillStatus = "draft"
	SkillTesting    SkillStatus = "testing"
	SkillActive     SkillStatus = "active"
	SkillDeprecated SkillStatus = "deprecated"
)

// Skill is a versioned, declarative ruleset compiled from one standards
// document. Immutable once loaded into a run; a new DSL payload is a new
// version, never an in-place edit.
type Skill struct {
	ID           string      `json:"id" yaml:"id"`
	Name         string      `json:"name" yaml:"name"`
	StandardCode string      `json:"standardCode,omitempty" yaml:"standardCode,omitempty"`
	Domain       string      `json:"domain" yaml:"domain"`
	Priority     int         `json:"priority" yaml:"priority"`
	DSLVersion   string      `json:"dslVersion" yaml:"dslVersion"`
	Status       SkillStatus `json:"status" yaml:"status"`
	DSL          *Definition `json:"dsl" yaml:"dsl"`
	CreatedAt    time.Time   `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt    time.Time   `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// LoadSkillDSL decodes a stored DSL payload, validates it, and compiles its
// patterns. Invalid payloads are rejected so a broken skill never reaches the
// execution path.
func LoadSkillDSL(raw []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, eris.Wrap(err, "skill: decode dsl")
	}
	if err := def.Validate(); err != nil {
		return nil, eris.Wrap(err, "skill: invalid dsl")
	}
	def.Compile()
	return &def, nil
}
