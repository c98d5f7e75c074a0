package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/skill-engine/internal/model"
)

// Well-known table names within a skill's DSL payload. These are part of the
// compiled artifact's contract.
const (
	TableDNOuterDiameter = "dn_outer_diameter_map"
	TableSeriesMapping   = "series_mapping"
	TableDimensions      = "dimension_table"
	TableWallTolerance   = "wall_thickness_tolerance"
)

// Attribute names the derivation chain reads and writes.
const (
	attrDiameter      = "公称直径"
	attrPressure      = "公称压力"
	attrOuterDiameter = "公称外径"
	attrSeries        = "管系列"
	attrWallThickness = "最小壁厚"
	attrWallTolerance = "壁厚偏差"
)

// DeriveFromTables chains the extracted attributes through the skill's
// lookup tables: DN → outer diameter, PN → pipe series, (outer diameter,
// series) → minimum wall thickness, wall thickness → tolerance. Each step
// depends on the previous one having produced a value; a missing upstream
// value skips the dependent steps without error.
//
// Every derived attribute carries a description citing the originating
// table. That provenance is part of the output contract, not debug text.
func DeriveFromTables(attrs map[string]model.ExtractedAttribute, dsl *model.Definition) map[string]string {
	found := make(map[string]string)
	if len(dsl.Tables) == 0 {
		return found
	}

	dn, hasDN := attrFloat(attrs, attrDiameter)
	pn, hasPN := attrFloat(attrs, attrPressure)

	// 1. DN → outer diameter.
	if hasDN {
		if table, ok := dsl.Tables[TableDNOuterDiameter]; ok {
			if row := lookupRow(table, dn); row != nil {
				od := row[1]
				attrs[attrOuterDiameter] = model.ExtractedAttribute{
					Value:       od,
					Confidence:  model.ConfidenceTable,
					Source:      model.SourceTable,
					Unit:        "mm",
					DisplayName: "公称外径Φ(mm)",
					Description: fmt.Sprintf("表2规定DN%s对应的公称外径d_n为%smm", formatNum(dn), od),
				}
				found[attrOuterDiameter] = od.String()
			}
		}
	}

	// 2. PN → pipe series. The design coefficient in the third column feeds
	// the explanation only, never further computation.
	var series string
	if hasPN {
		if table, ok := dsl.Tables[TableSeriesMapping]; ok {
			if row := lookupRow(table, pn); row != nil {
				series = row[1].String()
				designCoeff := "2"
				if len(row) > 2 {
					designCoeff = row[2].String()
				}
				attrs[attrSeries] = model.ExtractedAttribute{
					Value:       row[1],
					Confidence:  model.ConfidenceTable,
					Source:      model.SourceTable,
					DisplayName: "管系列(S)",
					Description: fmt.Sprintf("附录B显示当设计系数C=%s时，PN%s对应%s系列", designCoeff, formatNum(pn), series),
				}
				found[attrSeries] = series
			}
		}
	}

	// 3. (outer diameter, series) → minimum wall thickness. The dimension
	// table's column is located by substring match on the series label.
	od, hasOD := attrFloat(attrs, attrOuterDiameter)
	if hasOD && series != "" {
		if table, ok := dsl.Tables[TableDimensions]; ok {
			col := seriesColumn(table.Columns, series)
			if col > 0 {
				if row := lookupRow(table, od); row != nil && len(row) > col {
					wall := row[col]
					attrs[attrWallThickness] = model.ExtractedAttribute{
						Value:       wall,
						Confidence:  model.ConfidenceTable,
						Source:      model.SourceTable,
						Unit:        "mm",
						DisplayName: "最小壁厚(e_min)",
						Description: fmt.Sprintf("表1规定外径%smm且为%s系列时，最小壁厚为%smm", formatNum(od), series, wall),
					}
					found[attrWallThickness] = wall.String()

					// 4. Wall thickness → tolerance, scanned by "min-max"
					// range keys.
					if wallF, ok := wall.Float(); ok {
						if tolTable, ok := dsl.Tables[TableWallTolerance]; ok {
							if tol, ok := lookupRange(tolTable, wallF); ok {
								attrs[attrWallTolerance] = model.ExtractedAttribute{
									Value:       model.StrScalar("+" + tol.String()),
									Confidence:  model.ConfidenceTable,
									Source:      model.SourceTable,
									Unit:        "mm",
									DisplayName: "壁厚偏差",
									Description: fmt.Sprintf("表1规定外径%smm且为%s系列时，壁厚正偏差为%smm", formatNum(od), series, tol),
								}
								found[attrWallTolerance] = tol.String()
							}
						}
					}
				}
			}
		}
	}

	return found
}

// attrFloat returns the numeric value of a present attribute.
func attrFloat(attrs map[string]model.ExtractedAttribute, name string) (float64, bool) {
	a, ok := attrs[name]
	if !ok {
		return 0, false
	}
	return a.Value.Float()
}

// lookupRow finds the first row whose first column equals the numeric key.
func lookupRow(table model.Table, key float64) []model.Scalar {
	for _, row := range table.Rows {
		if len(row) < 2 {
			continue
		}
		if k, ok := row[0].Float(); ok && k == key {
			return row
		}
	}
	return nil
}

// seriesColumn locates the column whose header contains the series label.
// Returns -1 when no column matches.
func seriesColumn(columns []string, series string) int {
	for i, col := range columns {
		if strings.Contains(col, series) {
			return i
		}
	}
	return -1
}

// lookupRange scans a table whose first column holds "min-max" string keys
// and returns the second column of the first range containing the value.
func lookupRange(table model.Table, value float64) (model.Scalar, bool) {
	for _, row := range table.Rows {
		if len(row) < 2 {
			continue
		}
		min, max, ok := parseRange(row[0].String())
		if !ok {
			continue
		}
		if min <= value && value <= max {
			return row[1], true
		}
	}
	return model.Scalar{}, false
}

// parseRange splits "6.1-10.0" into its bounds.
func parseRange(s string) (min, max float64, ok bool) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	min, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	max, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	return min, max, true
}

// formatNum renders a numeric key the way it appears in standards text.
func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
