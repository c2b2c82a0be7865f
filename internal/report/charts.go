package report

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/inspection.report/internal/rr"
)

// Chart is one rendered figure of the report.
type Chart struct {
	// Name is the file stem, e.g. "repeatability".
	Name string
	Plot *plot.Plot
}

// Render encodes the chart as png, svg or pdf.
func (c Chart) Render(w io.Writer, width, height vg.Length, format string) error {
	wt, err := c.Plot.WriterTo(width, height, format)
	if err != nil {
		return fmt.Errorf("chart %s: %w", c.Name, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("chart %s: %w", c.Name, err)
	}
	return nil
}

var (
	colorOK  = color.RGBA{R: 0x2e, G: 0x7d, B: 0x32, A: 0xff}
	colorNOK = color.RGBA{R: 0xc6, G: 0x28, B: 0x28, A: 0xff}
	colorNaN = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
)

// Charts builds every figure that has data: repeatability, concordance vs
// consensus, discordance ranking, OK/NOK vote counts, the concordance
// heatmap and OK/NOK tendency. topN bounds the image-level charts.
func Charts(a *rr.Analysis, topN int) ([]Chart, error) {
	builders := []struct {
		name  string
		build func(*rr.Analysis, int) (*plot.Plot, error)
	}{
		{"repeatability", repeatabilityChart},
		{"concordance", concordanceChart},
		{"discordance", discordanceChart},
		{"votes", voteCountsChart},
		{"heatmap", heatmapChart},
		{"tendency", tendencyChart},
	}
	var out []Chart
	for _, b := range builders {
		p, err := b.build(a, topN)
		if err != nil {
			return nil, fmt.Errorf("chart %s: %w", b.name, err)
		}
		if p != nil {
			out = append(out, Chart{Name: b.name, Plot: p})
		}
	}
	return out, nil
}

func percentAxis(p *plot.Plot) {
	p.Y.Min = 0
	p.Y.Max = 100
	p.Y.Label.Text = "%"
}

func repeatabilityChart(a *rr.Analysis, _ int) (*plot.Plot, error) {
	if len(a.Repeatability) == 0 {
		return nil, nil
	}
	names := operatorNames(a)
	values := make(plotter.Values, len(a.Repeatability))
	labels := make([]string, len(a.Repeatability))
	for i, r := range a.Repeatability {
		values[i] = r.ConsistencyPct
		labels[i] = operatorLabel(names, r.OperatorID)
	}

	p := plot.New()
	p.Title.Text = "Repeatability per operator"
	percentAxis(p)
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(labels...)
	return p, nil
}

func concordanceChart(a *rr.Analysis, _ int) (*plot.Plot, error) {
	repro := a.Reproducibility
	if repro == nil || len(repro.Operators) == 0 {
		return nil, nil
	}
	values := make(plotter.Values, len(repro.Operators))
	labels := make([]string, len(repro.Operators))
	for i, op := range repro.Operators {
		// An operator with no comparable image is drawn as an empty bar.
		if pct := repro.ConcordanceVsConsensus[op]; pct != nil {
			values[i] = *pct
		}
		labels[i] = operatorLabel(repro.OperatorNames, op)
	}

	p := plot.New()
	p.Title.Text = "Concordance with consensus"
	percentAxis(p)
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.Color(1)
	p.Add(bars)
	p.NominalX(labels...)
	return p, nil
}

func topItems(items []rr.ConfusionItem, topN int) []rr.ConfusionItem {
	if topN >= 0 && len(items) > topN {
		return items[:topN]
	}
	return items
}

func discordanceChart(a *rr.Analysis, topN int) (*plot.Plot, error) {
	items := topItems(a.Confusion, topN)
	if len(items) == 0 {
		return nil, nil
	}
	// Horizontal bars are drawn bottom-up, so the most confusing item is
	// added last to end up on top.
	n := len(items)
	values := make(plotter.Values, n)
	labels := make([]string, n)
	for i, it := range items {
		values[n-1-i] = it.Discordance
		labels[n-1-i] = imageLabel(it.Image, it.ImageName)
	}

	p := plot.New()
	p.Title.Text = "Most confusing images"
	p.X.Label.Text = "discordance"
	p.X.Min = 0
	p.X.Max = rr.MaxDiscordance
	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return nil, err
	}
	bars.Horizontal = true
	bars.Color = plotutil.Color(2)
	p.Add(bars)
	p.NominalY(labels...)
	return p, nil
}

func voteCountsChart(a *rr.Analysis, topN int) (*plot.Plot, error) {
	items := topItems(a.Confusion, topN)
	if len(items) == 0 {
		return nil, nil
	}
	ok := make(plotter.Values, len(items))
	nok := make(plotter.Values, len(items))
	labels := make([]string, len(items))
	for i, it := range items {
		ok[i] = float64(it.Votes.OK)
		nok[i] = float64(it.Votes.NOK)
		labels[i] = imageLabel(it.Image, it.ImageName)
	}

	p := plot.New()
	p.Title.Text = "OK / NOK votes per image"
	p.Y.Label.Text = "votes"
	okBars, err := plotter.NewBarChart(ok, vg.Points(16))
	if err != nil {
		return nil, err
	}
	okBars.Color = colorOK
	nokBars, err := plotter.NewBarChart(nok, vg.Points(16))
	if err != nil {
		return nil, err
	}
	nokBars.Color = colorNOK
	nokBars.StackOn(okBars)

	p.Add(okBars, nokBars)
	p.Legend.Add("OK", okBars)
	p.Legend.Add("NOK", nokBars)
	p.Legend.Top = true
	p.NominalX(labels...)
	return p, nil
}

// concordanceGrid adapts the operator x operator concordance matrix to
// plotter.GridXYZ. Missing cells are NaN.
type concordanceGrid struct {
	m *mat.Dense
}

func newConcordanceGrid(r *rr.ReproducibilityResult) concordanceGrid {
	n := len(r.Operators)
	m := mat.NewDense(n, n, nil)
	for i, a := range r.Operators {
		for j, b := range r.Operators {
			v := math.NaN()
			if pct := r.ConcordanceMatrix[a][b]; pct != nil {
				v = *pct
			}
			m.Set(i, j, v)
		}
	}
	return concordanceGrid{m: m}
}

func (g concordanceGrid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g concordanceGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g concordanceGrid) X(c int) float64    { return float64(c) }
func (g concordanceGrid) Y(r int) float64    { return float64(r) }

func heatmapChart(a *rr.Analysis, _ int) (*plot.Plot, error) {
	repro := a.Reproducibility
	if repro == nil || len(repro.Operators) == 0 {
		return nil, nil
	}
	labels := make([]string, len(repro.Operators))
	for i, op := range repro.Operators {
		labels[i] = operatorLabel(repro.OperatorNames, op)
	}

	hm := plotter.NewHeatMap(newConcordanceGrid(repro), palette.Heat(12, 1))
	hm.Min, hm.Max = 0, 100
	hm.NaN = colorNaN

	p := plot.New()
	p.Title.Text = "Concordance between operators (%)"
	p.Add(hm)
	p.NominalX(labels...)
	p.NominalY(labels...)
	return p, nil
}

func tendencyChart(a *rr.Analysis, _ int) (*plot.Plot, error) {
	if a.Reproducibility == nil {
		return nil, nil
	}
	tendency := a.Reproducibility.Tendency()
	if len(tendency) == 0 {
		return nil, nil
	}
	ok := make(plotter.Values, len(tendency))
	nok := make(plotter.Values, len(tendency))
	labels := make([]string, len(tendency))
	for i, t := range tendency {
		ok[i] = float64(t.OK)
		nok[i] = float64(t.NOK)
		labels[i] = operatorLabel(a.Reproducibility.OperatorNames, t.OperatorID)
	}

	w := vg.Points(14)
	p := plot.New()
	p.Title.Text = "OK / NOK tendency per operator"
	p.Y.Label.Text = "images"
	okBars, err := plotter.NewBarChart(ok, w)
	if err != nil {
		return nil, err
	}
	okBars.Color = colorOK
	okBars.Offset = -w / 2
	nokBars, err := plotter.NewBarChart(nok, w)
	if err != nil {
		return nil, err
	}
	nokBars.Color = colorNOK
	nokBars.Offset = w / 2

	p.Add(okBars, nokBars)
	p.Legend.Add("OK", okBars)
	p.Legend.Add("NOK", nokBars)
	p.Legend.Top = true
	p.NominalX(labels...)
	return p, nil
}
