package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/internal"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	config   WorkbookConfig
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, config WorkbookConfig, logger *internal.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	if config.Sheet == "" {
		config.Sheet = DefaultWorkbookConfig().Sheet
	}
	return &DataReader{filePath: filePath, fileType: fileType, config: config, logger: logger.With("excel")}
}

// ReadData reads data from Excel or CSV files into structured format
func (r *DataReader) ReadData() (*ExcelData, error) {
	r.logger.Debug("reading %s file %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s file %s", core.ErrNotFound, strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcelData reads the configured sheet into structured format
func (r *DataReader) readExcelData() (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.config.Sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.config.Sheet, err)
	}
	r.logger.Debug("%s read in %.2fms (%d rows)", r.config.Sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: Excel file must have at least a header row and one data row", core.ErrInsufficientData)
	}
	return r.processRows(rows)
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: CSV file must have at least a header row and one data row", core.ErrInsufficientData)
	}
	return r.processRows(rows)
}

// processRows converts raw string rows into ExcelData format
func (r *DataReader) processRows(rows [][]string) (*ExcelData, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	var dataRows []RawRowData
	for i := 1; i < len(rows); i++ {
		rowData := make(RawRowData)
		empty := true
		for j, value := range rows[i] {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(value)
				if rowData[headers[j]] != "" {
					empty = false
				}
			}
		}
		if !empty {
			dataRows = append(dataRows, rowData)
		}
	}

	r.logger.Debug("%s file processed (%d columns, %d rows)", strings.ToUpper(r.fileType), len(headers), len(dataRows))
	return &ExcelData{Headers: headers, Rows: dataRows}, nil
}

// ReadProject reads the file and assembles an elicitation project named name
func (r *DataReader) ReadProject(name string) (*elicitation.Project, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	return r.ToProject(data, name)
}

// ToProject builds a project from long-format rows: one row per (expert,
// item) with the item's scale and realization repeated on each row. Empty or
// "nan" quantile cells are missing answers. Experts and items keep the order
// of first appearance.
func (r *DataReader) ToProject(data *ExcelData, name string) (*elicitation.Project, error) {
	cols, err := r.levelColumns(data.Headers)
	if err != nil {
		return nil, err
	}
	levels := make(elicitation.Levels, len(cols))
	for i, c := range cols {
		levels[i] = c.Level
	}
	if err := levels.Validate(); err != nil {
		return nil, err
	}

	p := &elicitation.Project{Name: name, Levels: levels}
	items := make(map[core.ItemID]int)
	experts := make(map[core.ExpertID]*elicitation.Expert)

	for i, row := range data.Rows {
		line := i + 2
		expertID, err := core.ParseExpertID(cell(row, r.config.ExpertColumn))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", core.ErrMalformedEstimate, line, err)
		}
		itemID, err := core.ParseItemID(cell(row, r.config.ItemColumn))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", core.ErrMalformedEstimate, line, err)
		}

		idx, seen := items[itemID]
		if !seen {
			item, err := r.item(itemID, row, line)
			if err != nil {
				return nil, err
			}
			idx = len(p.Items)
			items[itemID] = idx
			p.Items = append(p.Items, item)
		} else if rv, ok, _ := parseNumber(cell(row, r.config.RealizationColumn)); ok {
			if prev := p.Items[idx].Realization; prev == nil || *prev != rv {
				r.logger.Warn("row %d: realization of item %s differs from its first row, keeping the first", line, itemID)
			}
		}

		e, ok := experts[expertID]
		if !ok {
			e = &elicitation.Expert{ID: expertID, Estimates: make(map[core.ItemID]elicitation.Estimate)}
			experts[expertID] = e
			p.Experts = append(p.Experts, e)
		}
		if _, dup := e.Estimates[itemID]; dup {
			return nil, fmt.Errorf("%w: row %d: duplicate answer of expert %s for item %s", core.ErrMalformedEstimate, line, expertID, itemID)
		}

		values := make([]float64, len(cols))
		for j, c := range cols {
			v, ok, err := parseNumber(row[c.Header])
			if err != nil {
				return nil, core.NewMalformedEstimateError(expertID, itemID, fmt.Sprintf("row %d column %s: %v", line, c.Header, err))
			}
			if !ok {
				v = math.NaN()
			}
			values[j] = v
		}
		e.Estimates[itemID] = elicitation.Estimate{Values: values}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	r.logger.Info("project %s: %d experts, %d items (%d seeds), %d levels", name, len(p.Experts), len(p.Items), len(p.SeedItems()), len(levels))
	return p, nil
}

func (r *DataReader) item(id core.ItemID, row RawRowData, line int) (elicitation.Item, error) {
	item := elicitation.Item{ID: id, Description: cell(row, r.config.DescriptionColumn), Scale: elicitation.ScaleUniform}
	switch strings.ToLower(cell(row, r.config.ScaleColumn)) {
	case "", "uni", "uniform", "lin", "linear":
	case "log", "logarithmic":
		item.Scale = elicitation.ScaleLog
	default:
		return item, fmt.Errorf("%w: row %d: unknown scale %q", core.ErrMalformedEstimate, line, cell(row, r.config.ScaleColumn))
	}
	v, ok, err := parseNumber(cell(row, r.config.RealizationColumn))
	if err != nil {
		return item, fmt.Errorf("%w: row %d: realization: %v", core.ErrMalformedEstimate, line, err)
	}
	if ok {
		item.Realization = &v
	}
	return item, nil
}

// levelColumns finds the quantile columns and orders them by level
func (r *DataReader) levelColumns(headers []string) ([]levelColumn, error) {
	known := map[string]bool{
		strings.ToLower(r.config.ExpertColumn):      true,
		strings.ToLower(r.config.ItemColumn):        true,
		strings.ToLower(r.config.ScaleColumn):       true,
		strings.ToLower(r.config.RealizationColumn): true,
		strings.ToLower(r.config.DescriptionColumn): true,
	}
	for _, c := range []string{r.config.ExpertColumn, r.config.ItemColumn} {
		if !containsFold(headers, c) {
			return nil, fmt.Errorf("%w: missing column %q", core.ErrMalformedEstimate, c)
		}
	}

	var cols []levelColumn
	for _, h := range headers {
		if known[strings.ToLower(h)] {
			continue
		}
		level, ok := parseLevel(h)
		if !ok {
			r.logger.Debug("ignoring column %q", h)
			continue
		}
		cols = append(cols, levelColumn{Header: h, Level: level})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Level < cols[j].Level })
	return cols, nil
}

// parseLevel reads "5", "5%", "p5", "0.05" as the probability 0.05
func parseLevel(h string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(h))
	s = strings.TrimPrefix(s, "p")
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if v >= 1 {
		v /= 100
	}
	if v >= 1 {
		return 0, false
	}
	return v, true
}

// parseNumber returns ok=false for empty and "nan" cells
func parseNumber(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "na") {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) {
		return 0, false, nil
	}
	return v, true, nil
}

func containsFold(headers []string, want string) bool {
	for _, h := range headers {
		if strings.EqualFold(h, want) {
			return true
		}
	}
	return false
}

// cell looks a column up by header, ignoring case
func cell(row RawRowData, name string) string {
	if v, ok := row[name]; ok {
		return v
	}
	for k, v := range row {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
