package model

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Scalar is a table/attribute value that is either numeric or a string.
// It marshals back to the same JSON/YAML shape it was read from, which keeps
// stored DSL payloads byte-stable across a store→load cycle.
type Scalar struct {
	Num   float64
	Str   string
	IsNum bool
}

// Num returns a numeric Scalar.
func NumScalar(f float64) Scalar { return Scalar{Num: f, IsNum: true} }

// StrScalar returns a string Scalar.
func StrScalar(s string) Scalar { return Scalar{Str: s} }

// String renders the scalar as text. Numbers use the shortest representation
// that round-trips ("100", "5.3").
func (s Scalar) String() string {
	if s.IsNum {
		return strconv.FormatFloat(s.Num, 'g', -1, 64)
	}
	return s.Str
}

// Float returns the numeric value. Strings that parse as numbers count as
// numeric, matching how table keys like "1.6" behave in lookups.
func (s Scalar) Float() (float64, bool) {
	if s.IsNum {
		return s.Num, true
	}
	f, err := strconv.ParseFloat(s.Str, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IsZero reports whether the scalar holds no value at all.
func (s Scalar) IsZero() bool {
	return !s.IsNum && s.Str == ""
}

// Equal compares two scalars. Numeric-vs-numeric compares values, everything
// else compares the rendered text.
func (s Scalar) Equal(o Scalar) bool {
	if s.IsNum && o.IsNum {
		return s.Num == o.Num
	}
	if s.IsNum != o.IsNum {
		return false
	}
	return s.Str == o.Str
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	if s.IsNum {
		return json.Marshal(s.Num)
	}
	return json.Marshal(s.Str)
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*s = Scalar{Num: f, IsNum: true}
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = Scalar{Str: str}
		return nil
	}
	return eris.Errorf("scalar: cannot decode %s", string(data))
}

func (s Scalar) MarshalYAML() (any, error) {
	if s.IsNum {
		return s.Num, nil
	}
	return s.Str, nil
}

func (s *Scalar) UnmarshalYAML(node *yaml.Node) error {
	var f float64
	if err := node.Decode(&f); err == nil && node.Tag != "!!str" {
		*s = Scalar{Num: f, IsNum: true}
		return nil
	}
	var str string
	if err := node.Decode(&str); err == nil {
		*s = Scalar{Str: str}
		return nil
	}
	return eris.Errorf("scalar: cannot decode yaml node %q", node.Value)
}
