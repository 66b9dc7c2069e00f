package layout

import (
	"testing"

	"github.com/labelinsight/label-insight/internal/core/domain"
)

func lineAt(text string, leftX, topY, width, height float64) domain.OCRLine {
	return domain.OCRLine{
		Text:       text,
		Confidence: 0.9,
		Box: [4]domain.Point{
			{X: leftX, Y: topY},
			{X: leftX + width, Y: topY},
			{X: leftX + width, Y: topY + height},
			{X: leftX, Y: topY + height},
		},
	}
}

func TestRowsEmptyInput(t *testing.T) {
	rows := NewReconstructor().Rows(nil)
	if len(rows) != 0 {
		t.Fatalf("expected no rows for empty input, got %d", len(rows))
	}
}

func TestRowsClustersByVerticalCenter(t *testing.T) {
	// Heights of 10 give a global threshold of 6: centers at 10 and 12 share
	// a row, the center at 60 starts a new one.
	lines := []domain.OCRLine{
		lineAt("Energy", 0, 5, 40, 10),
		lineAt("250kcal", 50, 7, 40, 10),
		lineAt("Sugar", 0, 55, 40, 10),
	}

	rows := NewReconstructor().Rows(lines)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if len(rows[0].Lines) != 2 || len(rows[1].Lines) != 1 {
		t.Fatalf("unexpected row sizes: %d, %d", len(rows[0].Lines), len(rows[1].Lines))
	}
	if rows[1].Lines[0].Text != "Sugar" {
		t.Fatalf("expected second row to hold the lower line, got %q", rows[1].Lines[0].Text)
	}
}

func TestRowsOrderedLeftToRight(t *testing.T) {
	lines := []domain.OCRLine{
		lineAt("right", 100, 0, 40, 10),
		lineAt("left", 0, 1, 40, 10),
		lineAt("middle", 50, 2, 40, 10),
	}

	rows := NewReconstructor().Rows(lines)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	want := []string{"left", "middle", "right"}
	for i, w := range want {
		if rows[0].Lines[i].Text != w {
			t.Fatalf("position %d: expected %q, got %q", i, w, rows[0].Lines[i].Text)
		}
	}
}

func TestRowsEmittedTopToBottom(t *testing.T) {
	lines := []domain.OCRLine{
		lineAt("third", 0, 200, 40, 10),
		lineAt("first", 0, 0, 40, 10),
		lineAt("second", 0, 100, 40, 10),
	}

	rows := NewReconstructor().Rows(lines)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	previous := -1.0
	for i, row := range rows {
		mean := 0.0
		for _, line := range row.Lines {
			mean += line.CenterY()
		}
		mean /= float64(len(row.Lines))
		if mean < previous {
			t.Fatalf("row %d out of vertical order: %f < %f", i, mean, previous)
		}
		previous = mean
	}
	if rows[0].Lines[0].Text != "first" || rows[2].Lines[0].Text != "third" {
		t.Fatalf("unexpected row order: %q, %q", rows[0].Lines[0].Text, rows[2].Lines[0].Text)
	}
}

func TestRowsZeroHeightLinesEachBecomeOwnRow(t *testing.T) {
	// Degenerate boxes give a zero threshold, so no two lines ever cluster.
	lines := []domain.OCRLine{
		lineAt("a", 0, 10, 40, 0),
		lineAt("b", 0, 10, 40, 0),
		lineAt("c", 0, 10, 40, 0),
	}

	rows := NewReconstructor().Rows(lines)
	if len(rows) != 3 {
		t.Fatalf("expected one row per line, got %d rows", len(rows))
	}
}
