package sweep

import (
	"sort"
	"sync"

	"gocalib/ports"
)

// Key addresses one value of a result table. Axis is the distribution or
// the calibration method held fixed, depending on the table.
type Key struct {
	Case         string `json:"case"`
	Axis         string `json:"axis"`
	DM           string `json:"dm"`
	WeightSource string `json:"weight_source"`
	ScoreSource  string `json:"score_source"`
}

// ResultTable is a sparse table of scalar results indexed by Key
type ResultTable struct {
	Name string `json:"name"`
	// Columns names the five key fields in Key order.
	Columns [5]string       `json:"columns"`
	Values  map[Key]float64 `json:"-"`
}

// NewResultTable creates an empty table
func NewResultTable(name string, columns [5]string) *ResultTable {
	return &ResultTable{Name: name, Columns: columns, Values: make(map[Key]float64)}
}

// Set stores a value
func (t *ResultTable) Set(k Key, v float64) {
	t.Values[k] = v
}

// Get returns a value
func (t *ResultTable) Get(k Key) (float64, bool) {
	v, ok := t.Values[k]
	return v, ok
}

// Keys returns the keys in lexical order of their fields
func (t *ResultTable) Keys() []Key {
	keys := make([]Key, 0, len(t.Values))
	for k := range t.Values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Case != b.Case {
			return a.Case < b.Case
		}
		if a.Axis != b.Axis {
			return a.Axis < b.Axis
		}
		if a.DM != b.DM {
			return a.DM < b.DM
		}
		if a.WeightSource != b.WeightSource {
			return a.WeightSource < b.WeightSource
		}
		return a.ScoreSource < b.ScoreSource
	})
	return keys
}

// Table names
const (
	TableDistribution = "DM_distribution_results"
	TableMethod       = "DM_results_SA_only"
	TableMethodInfo   = "DM_results_SA_info"
)

// Accumulator collects the three sweep tables
type Accumulator struct {
	mu sync.Mutex
	// ByDistribution holds DM calibration with weights from one distribution
	// scored under another, per calibration method.
	ByDistribution *ResultTable
	// ByMethod holds DM calibration with weights from one method scored by
	// another, per distribution.
	ByMethod *ResultTable
	// ByMethodInfo is ByMethod with the DM combination score.
	ByMethodInfo *ResultTable
}

// NewAccumulator creates empty tables
func NewAccumulator() *Accumulator {
	return &Accumulator{
		ByDistribution: NewResultTable(TableDistribution, [5]string{"Study", "SA_method", "DM", "Distribution_weight", "Distribution_score"}),
		ByMethod:       NewResultTable(TableMethod, [5]string{"Study", "Distribution", "DM", "SA_weight", "SA_score"}),
		ByMethodInfo:   NewResultTable(TableMethodInfo, [5]string{"Study", "Distribution", "DM", "SA_weight", "SA_score"}),
	}
}

// Tables returns the tables in export order
func (a *Accumulator) Tables() []*ResultTable {
	return []*ResultTable{a.ByDistribution, a.ByMethod, a.ByMethodInfo}
}

// Merge copies every value of other into a
func (a *Accumulator) Merge(other *Accumulator) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, t := range other.Tables() {
		dst := a.Tables()[i]
		for k, v := range t.Values {
			dst.Set(k, v)
		}
	}
}

// Len returns the total number of values
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lenLocked()
}

func (a *Accumulator) lenLocked() int {
	n := 0
	for _, t := range a.Tables() {
		n += len(t.Values)
	}
	return n
}

// Rows flattens every table for persistence, in table then key order
func (a *Accumulator) Rows() []ports.ScoreRow {
	a.mu.Lock()
	defer a.mu.Unlock()
	rows := make([]ports.ScoreRow, 0, a.lenLocked())
	for _, t := range a.Tables() {
		for _, k := range t.Keys() {
			rows = append(rows, ports.ScoreRow{
				Table:        t.Name,
				CaseName:     k.Case,
				Axis:         k.Axis,
				DM:           k.DM,
				WeightSource: k.WeightSource,
				ScoreSource:  k.ScoreSource,
				Value:        t.Values[k],
			})
		}
	}
	return rows
}

// FromRows rebuilds an accumulator from stored rows. Rows of unknown tables
// are ignored.
func FromRows(rows []ports.ScoreRow) *Accumulator {
	acc := NewAccumulator()
	byName := make(map[string]*ResultTable)
	for _, t := range acc.Tables() {
		byName[t.Name] = t
	}
	for _, r := range rows {
		if t, ok := byName[r.Table]; ok {
			t.Set(Key{Case: r.CaseName, Axis: r.Axis, DM: r.DM, WeightSource: r.WeightSource, ScoreSource: r.ScoreSource}, r.Value)
		}
	}
	return acc
}
