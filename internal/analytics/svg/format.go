package svg

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func bounds(points []Point) (float64, float64) {
	minVal := points[0].Value
	maxVal := points[0].Value
	for _, p := range points[1:] {
		minVal = math.Min(minVal, p.Value)
		maxVal = math.Max(maxVal, p.Value)
	}
	return minVal, maxVal
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

// formatTick abbreviates large values and groups digits for the locale.
func formatTick(p *message.Printer, v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000_000:
		return p.Sprintf("%.1fB", v/1_000_000_000)
	case abs >= 1_000_000:
		return p.Sprintf("%.1fM", v/1_000_000)
	case abs >= 10_000:
		return p.Sprintf("%.1fk", v/1_000)
	case almostEqual(v, math.Round(v)):
		return p.Sprintf("%.0f", v)
	default:
		return p.Sprintf("%.2f", v)
	}
}

func printer(tag language.Tag) *message.Printer {
	if tag == language.Und {
		tag = language.English
	}
	return message.NewPrinter(tag)
}
