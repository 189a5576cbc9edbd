package excel

// WorkbookConfig names the sheet and columns of a project workbook. Every
// other column whose header parses as a probability ("5", "5%", "0.05",
// "p50") holds the quantile at that level.
type WorkbookConfig struct {
	Sheet             string `json:"sheet" yaml:"sheet"`
	ExpertColumn      string `json:"expert_column" yaml:"expert_column"`
	ItemColumn        string `json:"item_column" yaml:"item_column"`
	ScaleColumn       string `json:"scale_column" yaml:"scale_column"`
	RealizationColumn string `json:"realization_column" yaml:"realization_column"`
	DescriptionColumn string `json:"description_column" yaml:"description_column"`
}

// DefaultWorkbookConfig returns the column layout written by the export commands
func DefaultWorkbookConfig() WorkbookConfig {
	return WorkbookConfig{
		Sheet:             "Sheet1",
		ExpertColumn:      "expert",
		ItemColumn:        "item",
		ScaleColumn:       "scale",
		RealizationColumn: "realization",
		DescriptionColumn: "description",
	}
}
