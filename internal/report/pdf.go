package report

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgpdf"
)

// A4 portrait.
var (
	pageWidth  = 21 * vg.Centimeter
	pageHeight = 29.7 * vg.Centimeter
	pageMargin = 1.5 * vg.Centimeter
)

var monoFont = font.Font{Typeface: "Liberation", Variant: "Mono"}

// WritePDF writes a multi-page PDF: the summary text, paginated, followed
// by one chart per page.
func WritePDF(w io.Writer, title, summary string, charts []Chart) error {
	c := vgpdf.New(pageWidth, pageHeight)

	sty := text.Style{
		Color:   color.Black,
		Font:    font.From(monoFont, vg.Points(9)),
		Handler: plot.DefaultTextHandler,
	}
	titleSty := sty
	titleSty.Font = font.From(plot.DefaultFont, vg.Points(14))

	lineHeight := vg.Points(12)
	usable := pageHeight - 2*pageMargin - 2*lineHeight
	perPage := int(usable / lineHeight)
	if perPage < 1 {
		perPage = 1
	}

	lines := strings.Split(strings.TrimRight(summary, "\n"), "\n")
	for page := 0; page == 0 || page*perPage < len(lines); page++ {
		if page > 0 {
			c.NextPage()
		}
		dc := draw.New(c)
		y := pageHeight - pageMargin - lineHeight
		dc.FillText(titleSty, vg.Point{X: pageMargin, Y: y}, title)
		y -= 2 * lineHeight

		end := (page + 1) * perPage
		if end > len(lines) {
			end = len(lines)
		}
		for _, line := range lines[page*perPage : end] {
			dc.FillText(sty, vg.Point{X: pageMargin, Y: y}, line)
			y -= lineHeight
		}
	}

	for _, ch := range charts {
		c.NextPage()
		dc := draw.New(c)
		area := draw.Crop(dc, pageMargin, -pageMargin, pageMargin, -pageMargin)
		// Charts take the upper half of the page.
		area.Min.Y = area.Max.Y - (area.Max.Y-area.Min.Y)/2
		ch.Plot.Draw(area)
	}

	if _, err := c.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}
