package excel

import (
	"fmt"
	"math"
	"sort"

	"gocalib/domain/elicitation"
	"gocalib/internal/sweep"

	"github.com/xuri/excelize/v2"
)

// WriteTables saves each result table to its own sheet, unstacked so that
// every row is one (case, axis, DM, weight source) and every score source is
// a column.
func WriteTables(path string, tables []*sweep.ResultTable) error {
	if len(tables) == 0 {
		return fmt.Errorf("no tables to write")
	}
	f := excelize.NewFile()
	defer f.Close()

	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.Name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(t.Name); err != nil {
			return err
		}
		if err := writeTable(f, t); err != nil {
			return fmt.Errorf("sheet %s: %w", t.Name, err)
		}
	}
	return f.SaveAs(path)
}

type rowKey struct {
	Case, Axis, DM, WeightSource string
}

func writeTable(f *excelize.File, t *sweep.ResultTable) error {
	var rows []rowKey
	seenRows := make(map[rowKey]bool)
	seenCols := make(map[string]bool)
	var scoreCols []string
	for _, k := range t.Keys() {
		rk := rowKey{k.Case, k.Axis, k.DM, k.WeightSource}
		if !seenRows[rk] {
			seenRows[rk] = true
			rows = append(rows, rk)
		}
		if !seenCols[k.ScoreSource] {
			seenCols[k.ScoreSource] = true
			scoreCols = append(scoreCols, k.ScoreSource)
		}
	}
	sort.Strings(scoreCols)

	header := []interface{}{t.Columns[0], t.Columns[1], t.Columns[2], t.Columns[3]}
	for _, c := range scoreCols {
		header = append(header, c)
	}
	if err := setRow(f, t.Name, 1, header); err != nil {
		return err
	}

	for i, rk := range rows {
		values := []interface{}{rk.Case, rk.Axis, rk.DM, rk.WeightSource}
		for _, c := range scoreCols {
			v, ok := t.Get(sweep.Key{Case: rk.Case, Axis: rk.Axis, DM: rk.DM, WeightSource: rk.WeightSource, ScoreSource: c})
			if !ok {
				values = append(values, nil)
				continue
			}
			values = append(values, v)
		}
		if err := setRow(f, t.Name, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

// WriteProject saves a project in the long format ReadProject accepts
func WriteProject(path string, p *elicitation.Project) error {
	f := excelize.NewFile()
	defer f.Close()

	cfg := DefaultWorkbookConfig()
	header := []interface{}{cfg.ExpertColumn, cfg.ItemColumn, cfg.ScaleColumn, cfg.RealizationColumn}
	for _, l := range p.Levels {
		header = append(header, fmt.Sprintf("%g", l))
	}
	if err := setRow(f, cfg.Sheet, 1, header); err != nil {
		return err
	}

	row := 2
	for _, e := range p.Experts {
		for _, it := range p.Items {
			est, ok := e.Estimate(it.ID)
			if !ok {
				continue
			}
			scale := it.Scale
			if scale == "" {
				scale = elicitation.ScaleUniform
			}
			values := []interface{}{e.ID.String(), it.ID.String(), string(scale), nil}
			if it.Realization != nil {
				values[3] = *it.Realization
			}
			for _, v := range est.Values {
				if math.IsNaN(v) {
					values = append(values, nil)
					continue
				}
				values = append(values, v)
			}
			if err := setRow(f, cfg.Sheet, row, values); err != nil {
				return err
			}
			row++
		}
	}
	return f.SaveAs(path)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
