// Package svg renders the dashboard charts as standalone SVG documents.
package svg

import "golang.org/x/text/language"

// Point is one labelled value of a series.
type Point struct {
	Label string
	Value float64
}

// LineOpts customises the line chart renderer.
type LineOpts struct {
	Title       string
	Description string
	StrokeColor string
	FillColor   string
	AxisColor   string
	GridColor   string
	Padding     float64
	ShowDots    bool
	TickCount   int
	Locale      language.Tag
}

// RankingOpts customises the horizontal ranking renderer.
type RankingOpts struct {
	Title       string
	Description string
	BarColor    string
	AxisColor   string
	LabelWidth  float64
	Padding     float64
	Locale      language.Tag
}

// Defaults for the dashboard charts.
const (
	DefaultWidth      = 720
	DefaultHeight     = 240
	DefaultPadding    = 24.0
	DefaultTicks      = 6
	DefaultLabelWidth = 160.0
	rowHeight         = 22.0
)
