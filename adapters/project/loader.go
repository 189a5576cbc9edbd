// Package project loads elicitation studies from a cases directory. A case is
// stored as <name>.json, or as a <name>.xlsx / <name>.csv workbook.
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocalib/adapters/excel"
	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/internal"
	"gocalib/ports"
)

// projectFile is the JSON layout. Missing answers are null, which plain
// float64 slices cannot carry.
type projectFile struct {
	Name    string             `json:"name"`
	Levels  elicitation.Levels `json:"levels"`
	Items   []elicitation.Item `json:"items"`
	Experts []expertFile       `json:"experts"`
}

type expertFile struct {
	ID        core.ExpertID              `json:"id"`
	Name      string                     `json:"name,omitempty"`
	Estimates map[core.ItemID][]*float64 `json:"estimates"`
}

// Loader implements ports.ProjectLoader over a directory
type Loader struct {
	dir      string
	workbook excel.WorkbookConfig
	logger   *internal.Logger
}

var _ ports.ProjectLoader = (*Loader)(nil)

// NewLoader creates a loader for the given cases directory
func NewLoader(dir string, logger *internal.Logger) *Loader {
	return &Loader{dir: dir, workbook: excel.DefaultWorkbookConfig(), logger: logger.With("project")}
}

// WithWorkbookConfig overrides the workbook column layout
func (l *Loader) WithWorkbookConfig(cfg excel.WorkbookConfig) *Loader {
	out := *l
	out.workbook = cfg
	return &out
}

// Load reads a case by name, trying JSON first and then workbooks
func (l *Loader) Load(ctx context.Context, caseName string) (*elicitation.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, ext := range []string{".json", ".xlsx", ".csv"} {
		path := filepath.Join(l.dir, caseName+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		l.logger.Debug("loading case %s from %s", caseName, path)
		if ext == ".json" {
			return ReadFile(path)
		}
		return excel.NewDataReader(path, l.workbook, l.logger).ReadProject(caseName)
	}
	return nil, core.NewNotFoundError("case", caseName)
}

// LoadAll loads every named case; names that fail are reported together
func (l *Loader) LoadAll(ctx context.Context, names []string) ([]*elicitation.Project, error) {
	var (
		out  []*elicitation.Project
		errs []string
	)
	for _, name := range names {
		p, err := l.Load(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		out = append(out, p)
	}
	if len(errs) > 0 {
		return out, fmt.Errorf("failed to load %d case(s): %s", len(errs), strings.Join(errs, "; "))
	}
	return out, nil
}

// List returns the case names found in the directory
func (l *Loader) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".json" && ext != ".xlsx" && ext != ".csv" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadFile decodes a JSON project
func ReadFile(path string) (*elicitation.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf projectFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrMalformedEstimate, path, err)
	}

	p := &elicitation.Project{Name: pf.Name, Levels: pf.Levels, Items: pf.Items}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	for _, ef := range pf.Experts {
		e := &elicitation.Expert{ID: ef.ID, Name: ef.Name, Estimates: make(map[core.ItemID]elicitation.Estimate, len(ef.Estimates))}
		for id, vals := range ef.Estimates {
			values := make([]float64, len(vals))
			for i, v := range vals {
				if v == nil {
					values[i] = math.NaN()
					continue
				}
				values[i] = *v
			}
			e.Estimates[id] = elicitation.Estimate{Values: values}
		}
		p.Experts = append(p.Experts, e)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// WriteFile encodes a project as indented JSON
func WriteFile(path string, p *elicitation.Project) error {
	pf := projectFile{Name: p.Name, Levels: p.Levels, Items: p.Items}
	for _, e := range p.Experts {
		ef := expertFile{ID: e.ID, Name: e.Name, Estimates: make(map[core.ItemID][]*float64, len(e.Estimates))}
		for id, est := range e.Estimates {
			vals := make([]*float64, len(est.Values))
			for i, v := range est.Values {
				if !math.IsNaN(v) && !math.IsInf(v, 0) {
					vals[i] = &v
				}
			}
			ef.Estimates[id] = vals
		}
		pf.Experts = append(pf.Experts, ef)
	}
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
