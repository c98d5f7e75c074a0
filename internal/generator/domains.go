package generator

import (
	"math/rand"
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/skill-engine/internal/engine"
	"github.com/sells-group/skill-engine/internal/model"
)

// Attribute names used when labeling generated combinations.
const (
	attrDiameter      = "公称直径"
	attrPressure      = "公称压力"
	attrOuterDiameter = "公称外径"
	attrWallThickness = "壁厚"
	attrMaterial      = "材质"
)

// combination is one labeled attribute set derived from a skill's DSL,
// with provenance back to the table cell that produced it.
type combination struct {
	attrs     map[string]model.Scalar
	sourceRef map[string]any
}

// columnPressureRe pulls the pressure class out of a wall-thickness column
// header like "壁厚PN1.6".
var columnPressureRe = regexp.MustCompile(`PN?([\d.]+)`)

// tableCombinations enumerates the dimension table into labeled attribute
// combinations. Tables with several wall-thickness-per-pressure-class
// columns expand each row into one combination per column, tagged with the
// pressure value parsed from the column header.
func tableCombinations(dsl *model.Definition, limit int) []combination {
	dim, ok := dsl.Tables[engine.TableDimensions]
	if !ok {
		return nil
	}

	var thicknessCols []int
	for i, col := range dim.Columns {
		if strings.Contains(col, "壁厚") || strings.Contains(col, "厚") {
			thicknessCols = append(thicknessCols, i)
		}
	}

	var combos []combination
	for rowIdx, row := range dim.Rows {
		base := make(map[string]model.Scalar, len(dim.Columns))
		for colIdx, col := range dim.Columns {
			if colIdx >= len(row) {
				continue
			}
			if name := normalizeColumnName(col); name != "" {
				base[name] = row[colIdx]
			}
		}

		if len(thicknessCols) > 0 {
			for _, colIdx := range thicknessCols {
				if colIdx >= len(row) || row[colIdx].IsZero() {
					continue
				}
				attrs := make(map[string]model.Scalar, len(base)+2)
				for k, v := range base {
					attrs[k] = v
				}
				attrs[attrWallThickness] = row[colIdx]
				if m := columnPressureRe.FindStringSubmatch(dim.Columns[colIdx]); m != nil {
					if f, ok := model.StrScalar(m[1]).Float(); ok {
						attrs[attrPressure] = model.NumScalar(f)
					}
				}
				combos = append(combos, combination{
					attrs: attrs,
					sourceRef: map[string]any{
						"table": engine.TableDimensions,
						"row":   rowIdx,
						"col":   colIdx,
					},
				})
			}
		} else {
			combos = append(combos, combination{
				attrs: base,
				sourceRef: map[string]any{
					"table": engine.TableDimensions,
					"row":   rowIdx,
				},
			})
		}

		if len(combos) >= limit {
			break
		}
	}

	if len(combos) > limit {
		combos = combos[:limit]
	}
	return combos
}

// valueDomains collects the union of every attribute's values: table columns
// first, then enumerated/default values from the attribute specs.
func valueDomains(dsl *model.Definition) map[string][]model.Scalar {
	domains := make(map[string][]model.Scalar)

	tableNames := make([]string, 0, len(dsl.Tables))
	for name := range dsl.Tables {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	for _, tableName := range tableNames {
		table := dsl.Tables[tableName]
		for colIdx, col := range table.Columns {
			name := normalizeColumnName(col)
			if name == "" {
				continue
			}
			for _, row := range table.Rows {
				if colIdx >= len(row) || row[colIdx].IsZero() {
					continue
				}
				domains[name] = appendUnique(domains[name], row[colIdx])
			}
		}
	}

	for i := range dsl.Attributes {
		spec := &dsl.Attributes[i]
		if len(spec.AllowedValues) > 0 {
			domains[spec.Name] = spec.AllowedValues
		} else if spec.DefaultValue != nil && len(domains[spec.Name]) == 0 {
			domains[spec.Name] = []model.Scalar{*spec.DefaultValue}
		}
	}

	return domains
}

// domainCombinations takes a bounded random sample of the Cartesian product
// of the value domains.
func domainCombinations(domains map[string][]model.Scalar, limit int, rng *rand.Rand) []combination {
	if len(domains) == 0 {
		return nil
	}

	keys := make([]string, 0, len(domains))
	for k := range domains {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Enumerate the full product up to a hard cap, then sample.
	const enumCap = 10000
	all := []map[string]model.Scalar{{}}
	for _, key := range keys {
		values := domains[key]
		next := make([]map[string]model.Scalar, 0, len(all)*len(values))
		for _, partial := range all {
			for _, v := range values {
				combo := make(map[string]model.Scalar, len(partial)+1)
				for k, pv := range partial {
					combo[k] = pv
				}
				combo[key] = v
				next = append(next, combo)
				if len(next) >= enumCap {
					break
				}
			}
			if len(next) >= enumCap {
				break
			}
		}
		all = next
	}

	if len(all) > limit {
		rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
		all = all[:limit]
	}

	combos := make([]combination, 0, len(all))
	for _, attrs := range all {
		combos = append(combos, combination{
			attrs:     attrs,
			sourceRef: map[string]any{"source": "value_domains"},
		})
	}
	return combos
}

// columnNameAliases maps table column headers to canonical attribute names.
// Ordered: substring matching must be deterministic.
var columnNameAliases = []struct{ alias, name string }{
	{"DN", attrDiameter},
	{"dn", attrDiameter},
	{"外径", attrOuterDiameter},
	{"PN", attrPressure},
	{"pn", attrPressure},
	{"壁厚", attrWallThickness},
	{"长度", "长度"},
	{"规格", "规格"},
}

var parentheticalRe = regexp.MustCompile(`\([^)]*\)`)

// normalizeColumnName maps a column header to a canonical attribute name,
// stripping unit suffixes like "(mm)". Empty result means the column does
// not label an attribute.
func normalizeColumnName(col string) string {
	if col == "" {
		return ""
	}
	for _, entry := range columnNameAliases {
		if strings.Contains(col, entry.alias) {
			return entry.name
		}
	}
	return strings.TrimSpace(parentheticalRe.ReplaceAllString(col, ""))
}

func appendUnique(values []model.Scalar, v model.Scalar) []model.Scalar {
	for _, existing := range values {
		if existing.Equal(v) {
			return values
		}
	}
	return append(values, v)
}
