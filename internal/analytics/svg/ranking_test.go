package svg

import (
	"strings"
	"testing"
)

func TestRankingDrawsOneBarPerRow(t *testing.T) {
	rows := []Point{{Label: "North", Value: 5000}, {Label: "South", Value: 2500}, {Label: "Unknown Branch", Value: 0}}
	out, err := Ranking(0, rows, RankingOpts{Title: "Top branches"})
	if err != nil {
		t.Fatalf("ranking renderer error: %v", err)
	}
	output := string(out)
	if strings.Count(output, "<rect") != len(rows) {
		t.Fatalf("expected %d bars, got %s", len(rows), output)
	}
	if !strings.Contains(output, "Unknown Branch") {
		t.Fatalf("expected row label")
	}
	if !strings.Contains(output, `viewBox="0 0 720 114"`) {
		t.Fatalf("expected height to follow row count, got %s", output)
	}
}

func TestRankingRejectsEmptyRows(t *testing.T) {
	if _, err := Ranking(0, nil, RankingOpts{}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Ranking(100, []Point{{Label: "x", Value: 1}}, RankingOpts{}); err == nil {
		t.Fatal("expected viewport error")
	}
}
