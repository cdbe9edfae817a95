package svg

import (
	"errors"
	"fmt"
	"html/template"
	"strings"
)

// Ranking renders one horizontal bar per point, top to bottom in input order. The height
// grows with the number of rows; negative values draw as empty bars.
func Ranking(width int, rows []Point, opts RankingOpts) ([]byte, error) {
	if len(rows) == 0 {
		return nil, errors.New("svg: rows required")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	labelWidth := opts.LabelWidth
	if labelWidth <= 0 {
		labelWidth = DefaultLabelWidth
	}
	barColor := fallback(opts.BarColor, "#0ea5e9")
	axisColor := fallback(opts.AxisColor, "#475569")
	p := printer(opts.Locale)

	// room on the right for the value label
	chartWidth := float64(width) - 2*padding - labelWidth - 64
	if chartWidth <= 0 {
		return nil, errors.New("svg: viewport too small")
	}
	height := int(2*padding + rowHeight*float64(len(rows)))

	_, maxVal := bounds(rows)
	if maxVal <= 0 {
		maxVal = 1
	}
	left := padding + labelWidth

	titleID := makeID(opts.Title, "ranking-title")
	descID := makeID(opts.Title, "ranking-desc")

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s">`, width, height, titleID, descID)
	fmt.Fprintf(&b, `<title id="%s">%s</title>`, titleID, template.HTMLEscapeString(fallback(opts.Title, "Ranking")))
	fmt.Fprintf(&b, `<desc id="%s">%s</desc>`, descID, template.HTMLEscapeString(fallback(opts.Description, "Ranked values")))
	fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="1"></line>`, left, padding, left, padding+rowHeight*float64(len(rows)), axisColor)

	for i, row := range rows {
		top := padding + float64(i)*rowHeight
		barWidth := max(row.Value, 0) / maxVal * chartWidth
		label := template.HTMLEscapeString(row.Label)
		value := template.HTMLEscapeString(formatTick(p, row.Value))
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="11" text-anchor="end">%s</text>`, left-6, top+rowHeight/2+4, axisColor, label)
		fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" aria-label="%s %s"></rect>`, left, top+3, barWidth, rowHeight-6, barColor, label, value)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="start">%s</text>`, left+barWidth+4, top+rowHeight/2+4, axisColor, value)
	}

	b.WriteString("</svg>")
	return []byte(b.String()), nil
}
