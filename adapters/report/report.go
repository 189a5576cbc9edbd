// Package report renders run summaries as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gocalib/domain/scoring"
	"gocalib/internal/interpolation"
	"gocalib/internal/montecarlo"
	"gocalib/internal/sweep"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"
)

// Report accumulates Markdown sections
type Report struct {
	title string
	buf   bytes.Buffer
}

// New creates a report with a top-level title
func New(title string) *Report {
	r := &Report{title: title}
	fmt.Fprintf(&r.buf, "# %s\n\n", title)
	return r
}

// group is one row of a sweep summary
type group struct {
	axis, dm string
	native   bool
}

// AddSweep summarises each result table across cases: for every axis and
// decision maker, native scores (weights and score from the same source) are
// reported apart from transplanted ones.
func (r *Report) AddSweep(acc *sweep.Accumulator) error {
	fmt.Fprintf(&r.buf, "## Decision-maker sweep\n\n")
	for _, t := range acc.Tables() {
		fmt.Fprintf(&r.buf, "### %s\n\n", t.Name)
		if len(t.Values) == 0 {
			r.buf.WriteString("No values.\n\n")
			continue
		}

		values := make(map[group]stats.Float64Data)
		var order []group
		for _, k := range t.Keys() {
			g := group{axis: k.Axis, dm: k.DM, native: k.WeightSource == k.ScoreSource}
			if _, ok := values[g]; !ok {
				order = append(order, g)
			}
			values[g] = append(values[g], t.Values[k])
		}
		sort.SliceStable(order, func(i, j int) bool {
			a, b := order[i], order[j]
			if a.axis != b.axis {
				return a.axis < b.axis
			}
			if a.dm != b.dm {
				return a.dm < b.dm
			}
			return a.native && !b.native
		})

		fmt.Fprintf(&r.buf, "| %s | DM | Pairing | Values | Mean | Median | Min | Max |\n", t.Columns[1])
		r.buf.WriteString("|---|---|---|---:|---:|---:|---:|---:|\n")
		for _, g := range order {
			d := values[g]
			s, err := describe(d)
			if err != nil {
				return fmt.Errorf("%s %s/%s: %w", t.Name, g.axis, g.dm, err)
			}
			pairing := "transplant"
			if g.native {
				pairing = "native"
			}
			fmt.Fprintf(&r.buf, "| %s | %s | %s | %d | %s | %s | %s | %s |\n",
				g.axis, g.dm, pairing, len(d), num(s.mean), num(s.median), num(s.min), num(s.max))
		}
		r.buf.WriteString("\n")
	}
	return nil
}

// AddSimulation tabulates the Monte Carlo trajectories at the shortest,
// middle and full sample sizes
func (r *Report) AddSimulation(res *montecarlo.Result) error {
	fmt.Fprintf(&r.buf, "## Calibration scores under synthetic bias\n\n")
	fmt.Fprintf(&r.buf, "%d trials per archetype, up to %d realizations, levels %v.\n\n",
		res.Config.Trials, res.Config.N, []float64(res.Config.Levels))

	summaries, err := res.Summaries()
	if err != nil {
		return err
	}
	for _, method := range scoring.Methods {
		byArch, ok := summaries[method]
		if !ok {
			continue
		}
		fmt.Fprintf(&r.buf, "### %s\n\n", method)
		r.buf.WriteString("| Archetype | Beta(a, b) | Mean (first) | Mean (middle) | Mean (last) | P05 (last) | P95 (last) | Decreasing |\n")
		r.buf.WriteString("|---|---|---:|---:|---:|---:|---:|---|\n")
		for _, arch := range res.Config.Archetypes {
			s := byArch[arch.Name]
			if len(s) == 0 {
				continue
			}
			first, mid, last := s[0], s[len(s)/2], s[len(s)-1]
			trend := "-"
			if len(s) > 1 {
				dec, err := res.TrendDecreasing(method, arch.Name)
				if err != nil {
					return err
				}
				if dec {
					trend = "yes"
				} else {
					trend = "no"
				}
			}
			fmt.Fprintf(&r.buf, "| %s | (%g, %g) | %s (n=%d) | %s (n=%d) | %s (n=%d) | %s | %s | %s |\n",
				arch.Name, arch.A, arch.B,
				num(first.Mean), first.N, num(mid.Mean), mid.N, num(last.Mean), last.N,
				num(last.P05), num(last.P95), trend)
		}
		r.buf.WriteString("\n")
	}
	return nil
}

// AddInterpolation summarises CDF(original value) - level per dropped level
// and distribution
func (r *Report) AddInterpolation(diffs interpolation.Differences) error {
	fmt.Fprintf(&r.buf, "## Missing-percentile interpolation\n\n")
	if len(diffs) == 0 {
		r.buf.WriteString("No five-percentile cases.\n\n")
		return nil
	}
	keys := make([]string, 0, len(diffs))
	for k := range diffs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r.buf.WriteString("| Series | Values | Mean | Std dev | Mean abs |\n")
	r.buf.WriteString("|---|---:|---:|---:|---:|\n")
	for _, k := range keys {
		d := stats.Float64Data(diffs[k])
		if len(d) == 0 {
			continue
		}
		mean, err := d.Mean()
		if err != nil {
			return err
		}
		sd, err := d.StandardDeviation()
		if err != nil {
			return err
		}
		abs := make(stats.Float64Data, len(d))
		for i, v := range d {
			abs[i] = math.Abs(v)
		}
		meanAbs, err := abs.Mean()
		if err != nil {
			return err
		}
		fmt.Fprintf(&r.buf, "| %s | %d | %s | %s | %s |\n", k, len(d), num(mean), num(sd), num(meanAbs))
	}
	r.buf.WriteString("\n")
	return nil
}

// Markdown returns the report source
func (r *Report) Markdown() []byte {
	return append([]byte(nil), r.buf.Bytes()...)
}

// HTML renders the report as a complete page
func (r *Report) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: r.title,
	})
	return markdown.ToHTML(r.Markdown(), p, renderer)
}

// WriteFiles writes <base>.md and <base>.html into dir
func (r *Report) WriteFiles(dir, base string) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	mdPath := filepath.Join(dir, base+".md")
	htmlPath := filepath.Join(dir, base+".html")
	if err := os.WriteFile(mdPath, r.Markdown(), 0o644); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(htmlPath, r.HTML(), 0o644); err != nil {
		return "", "", err
	}
	return mdPath, htmlPath, nil
}

type description struct {
	mean, median, min, max float64
}

func describe(d stats.Float64Data) (description, error) {
	var s description
	var err error
	if s.mean, err = d.Mean(); err != nil {
		return s, err
	}
	if s.median, err = d.Median(); err != nil {
		return s, err
	}
	if s.min, err = d.Min(); err != nil {
		return s, err
	}
	if s.max, err = d.Max(); err != nil {
		return s, err
	}
	return s, nil
}

func num(v float64) string {
	if math.Abs(v) < 1e-3 && v != 0 {
		return fmt.Sprintf("%.2e", v)
	}
	return fmt.Sprintf("%.3f", v)
}
