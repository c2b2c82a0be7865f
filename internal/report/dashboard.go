package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/inspection.report/internal/rr"
)

var heatColors = []string{"#d73027", "#fc8d59", "#fee08b", "#d9ef8b", "#91cf60", "#1a9850"}

// RenderDashboard writes a self-contained HTML page with interactive
// versions of the report charts.
func RenderDashboard(w io.Writer, a *rr.Analysis, title string, topN int) error {
	page := components.NewPage()
	page.PageTitle = title

	if a.Reproducibility != nil && len(a.Reproducibility.Operators) > 0 {
		page.AddCharts(operatorBars(a), concordanceHeatmap(a.Reproducibility))
	}
	if items := topItems(a.Confusion, topN); len(items) > 0 {
		page.AddCharts(discordanceBars(items), voteBars(items))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}

func operatorBars(a *rr.Analysis) *charts.Bar {
	repro := a.Reproducibility
	names := operatorNames(a)
	repByOp := make(map[int64]float64, len(a.Repeatability))
	for _, r := range a.Repeatability {
		repByOp[r.OperatorID] = r.ConsistencyPct
	}

	labels := make([]string, len(repro.Operators))
	repeat := make([]opts.BarData, len(repro.Operators))
	concord := make([]opts.BarData, len(repro.Operators))
	for i, op := range repro.Operators {
		labels[i] = operatorLabel(names, op)
		if v, ok := repByOp[op]; ok {
			repeat[i] = opts.BarData{Value: v}
		} else {
			repeat[i] = opts.BarData{Value: "-"}
		}
		if pct := repro.ConcordanceVsConsensus[op]; pct != nil {
			concord[i] = opts.BarData{Value: *pct}
		} else {
			concord[i] = opts.BarData{Value: "-"}
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Operators", Subtitle: "repeatability and concordance with consensus (%)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 100}),
	)
	bar.SetXAxis(labels).
		AddSeries("repeatability", repeat).
		AddSeries("concordance", concord)
	return bar
}

func concordanceHeatmap(r *rr.ReproducibilityResult) *charts.HeatMap {
	labels := make([]string, len(r.Operators))
	for i, op := range r.Operators {
		labels[i] = operatorLabel(r.OperatorNames, op)
	}
	var data []opts.HeatMapData
	for i, a := range r.Operators {
		for j, b := range r.Operators {
			if pct := r.ConcordanceMatrix[a][b]; pct != nil {
				data = append(data, opts.HeatMapData{Value: [3]interface{}{i, j, *pct}})
			}
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Concordance between operators (%)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: labels}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        100,
			InRange:    &opts.VisualMapInRange{Color: heatColors},
		}),
	)
	hm.SetXAxis(labels).AddSeries("concordance", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}))
	return hm
}

func discordanceBars(items []rr.ConfusionItem) *charts.Bar {
	labels := make([]string, len(items))
	data := make([]opts.BarData, len(items))
	for i, it := range items {
		labels[i] = imageLabel(it.Image, it.ImageName)
		data[i] = opts.BarData{Value: it.Discordance}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Most confusing images", Subtitle: "discordance = 1 - max(OK, NOK) / total"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: rr.MaxDiscordance}),
	)
	bar.SetXAxis(labels).AddSeries("discordance", data)
	bar.XYReversal()
	return bar
}

func voteBars(items []rr.ConfusionItem) *charts.Bar {
	labels := make([]string, len(items))
	ok := make([]opts.BarData, len(items))
	nok := make([]opts.BarData, len(items))
	for i, it := range items {
		labels[i] = imageLabel(it.Image, it.ImageName)
		ok[i] = opts.BarData{Value: it.Votes.OK}
		nok[i] = opts.BarData{Value: it.Votes.NOK}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "OK / NOK votes per image"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
	)
	bar.SetXAxis(labels).
		AddSeries("OK", ok, charts.WithBarChartOpts(opts.BarChart{Stack: "votes"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#2e7d32"})).
		AddSeries("NOK", nok, charts.WithBarChartOpts(opts.BarChart{Stack: "votes"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#c62828"}))
	return bar
}
