package model

import (
	"regexp"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// AttributeType classifies what kind of attribute a spec extracts.
type AttributeType string

const (
	AttrDimension     AttributeType = "dimension"
	AttrMaterial      AttributeType = "material"
	AttrPerformance   AttributeType = "performance"
	AttrSpecification AttributeType = "specification"
	AttrCategory      AttributeType = "category"
)

// Recognition holds the signals used to score a skill against input text.
// They are never used for extraction.
type Recognition struct {
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Patterns []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`

	compiled []*regexp.Regexp
}

// CompiledPatterns returns the recognition regexes that compiled successfully.
func (r *Recognition) CompiledPatterns() []*regexp.Regexp { return r.compiled }

// AttributeSpec defines how one attribute is extracted from input text.
// Patterns are tried in declared order; the first match wins.
type AttributeSpec struct {
	Name          string        `json:"name" yaml:"name"`
	Type          AttributeType `json:"type" yaml:"type"`
	Unit          string        `json:"unit,omitempty" yaml:"unit,omitempty"`
	Patterns      []string      `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	Required      bool          `json:"required,omitempty" yaml:"required,omitempty"`
	DefaultValue  *Scalar       `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	AllowedValues []Scalar      `json:"allowedValues,omitempty" yaml:"allowedValues,omitempty"`
	DisplayName   string        `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Description   string        `json:"description,omitempty" yaml:"description,omitempty"`

	compiled []*regexp.Regexp
}

// CompiledPatterns returns the extraction regexes that compiled successfully,
// in declared order.
func (a *AttributeSpec) CompiledPatterns() []*regexp.Regexp { return a.compiled }

// Table is a named 2-D lookup table. Row values align positionally with
// Columns; that alignment is part of the persisted contract.
type Table struct {
	Columns []string   `json:"columns" yaml:"columns"`
	Rows    [][]Scalar `json:"rows" yaml:"rows"`
}

// Rule maps values of a source attribute to a new derived attribute.
// Rules only ever introduce new attribute names.
type Rule struct {
	Source      string            `json:"source" yaml:"source"`
	Target      string            `json:"target" yaml:"target"`
	Map         map[string]string `json:"map" yaml:"map"`
	Unit        string            `json:"unit,omitempty" yaml:"unit,omitempty"`
	DisplayName string            `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
}

// Category is the fixed category hierarchy a skill assigns to its matches.
type Category struct {
	Primary       string `json:"primary" yaml:"primary"`
	Secondary     string `json:"secondary,omitempty" yaml:"secondary,omitempty"`
	Tertiary      string `json:"tertiary,omitempty" yaml:"tertiary,omitempty"`
	Quaternary    string `json:"quaternary,omitempty" yaml:"quaternary,omitempty"`
	CategoryID    string `json:"categoryId,omitempty" yaml:"categoryId,omitempty"`
	CanonicalName string `json:"canonicalName,omitempty" yaml:"canonicalName,omitempty"`
}

// Fallback configures low-confidence handling for a skill's results.
type Fallback struct {
	LowConfidenceThreshold float64 `json:"lowConfidenceThreshold,omitempty" yaml:"lowConfidenceThreshold,omitempty"`
	HumanReviewRequired    bool    `json:"humanReviewRequired,omitempty" yaml:"humanReviewRequired,omitempty"`
}

// Definition is the declarative DSL payload owned by a Skill. Attributes are
// a list, not a map, so declared order survives serialization exactly.
type Definition struct {
	Domain       string           `json:"domain" yaml:"domain"`
	StandardCode string           `json:"standardCode,omitempty" yaml:"standardCode,omitempty"`
	Recognition  Recognition      `json:"recognition" yaml:"recognition"`
	Attributes   []AttributeSpec  `json:"attributes" yaml:"attributes"`
	Tables       map[string]Table `json:"tables,omitempty" yaml:"tables,omitempty"`
	Rules        []Rule           `json:"rules,omitempty" yaml:"rules,omitempty"`
	Category     Category         `json:"category" yaml:"category"`
	Fallback     Fallback         `json:"fallback" yaml:"fallback"`
}

// Attribute returns the spec with the given name, or nil.
func (d *Definition) Attribute(name string) *AttributeSpec {
	for i := range d.Attributes {
		if d.Attributes[i].Name == name {
			return &d.Attributes[i]
		}
	}
	return nil
}

// Validate checks the structural invariants of a DSL payload. A skill whose
// payload fails validation is quarantined at load, not executed.
func (d *Definition) Validate() error {
	if d.Domain == "" {
		return eris.New("dsl: domain is required")
	}
	seen := make(map[string]bool, len(d.Attributes))
	for i := range d.Attributes {
		a := &d.Attributes[i]
		if a.Name == "" {
			return eris.Errorf("dsl: attribute %d has no name", i)
		}
		if seen[a.Name] {
			return eris.Errorf("dsl: duplicate attribute %q", a.Name)
		}
		seen[a.Name] = true
		switch a.Type {
		case AttrDimension, AttrMaterial, AttrPerformance, AttrSpecification, AttrCategory:
		default:
			return eris.Errorf("dsl: attribute %q has unknown type %q", a.Name, a.Type)
		}
		if len(a.Patterns) == 0 && a.DefaultValue == nil {
			return eris.Errorf("dsl: attribute %q has neither patterns nor a default", a.Name)
		}
	}
	for name, t := range d.Tables {
		if len(t.Columns) == 0 {
			return eris.Errorf("dsl: table %q has no columns", name)
		}
		for i, row := range t.Rows {
			if len(row) != len(t.Columns) {
				return eris.Errorf("dsl: table %q row %d has %d values for %d columns", name, i, len(row), len(t.Columns))
			}
		}
	}
	for i, r := range d.Rules {
		if r.Source == "" || r.Target == "" {
			return eris.Errorf("dsl: rule %d needs source and target", i)
		}
		if len(r.Map) == 0 {
			return eris.Errorf("dsl: rule %d (%s→%s) has an empty map", i, r.Source, r.Target)
		}
	}
	return nil
}

// Compile pre-compiles every recognition and extraction pattern once.
// Patterns that fail to compile are dropped with a warning; extraction
// continues with the remaining patterns. All extraction patterns match
// case-insensitively, as the compiled artifacts assume.
func (d *Definition) Compile() {
	d.Recognition.compiled = compilePatterns(d.Recognition.Patterns, "recognition")
	for i := range d.Attributes {
		a := &d.Attributes[i]
		a.compiled = compilePatterns(a.Patterns, a.Name)
	}
}

func compilePatterns(patterns []string, owner string) []*regexp.Regexp {
	if len(patterns) == 0 {
		return nil
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			zap.L().Warn("dsl: dropping invalid pattern",
				zap.String("owner", owner),
				zap.String("pattern", p),
				zap.Error(err),
			)
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}
