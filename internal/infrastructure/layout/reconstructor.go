package layout

import (
	"sort"

	"github.com/labelinsight/label-insight/internal/core/domain"
)

// thresholdFactor scales the global average line height into the vertical
// distance within which two lines are considered the same row.
const thresholdFactor = 0.6

// Reconstructor groups OCR lines into visually ordered rows using a single
// global clustering threshold. Labels mixing very large and very small fonts
// can be mis-clustered; that is an accepted property of the heuristic.
type Reconstructor struct{}

func NewReconstructor() *Reconstructor {
	return &Reconstructor{}
}

// Rows clusters lines into rows ordered top to bottom, each row ordered left
// to right. With zero input lines it returns an empty slice; with all-zero
// line heights the threshold degenerates to zero and every line becomes its
// own row.
func (r *Reconstructor) Rows(lines []domain.OCRLine) []domain.OCRRow {
	if len(lines) == 0 {
		return []domain.OCRRow{}
	}

	sorted := make([]domain.OCRLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CenterY() < sorted[j].CenterY()
	})

	threshold := thresholdFactor * averageHeight(sorted)

	rows := make([]domain.OCRRow, 0, len(sorted))
	buffer := []domain.OCRLine{sorted[0]}
	bufferSum := sorted[0].CenterY()

	for _, line := range sorted[1:] {
		mean := bufferSum / float64(len(buffer))
		if abs(line.CenterY()-mean) < threshold {
			buffer = append(buffer, line)
			bufferSum += line.CenterY()
			continue
		}
		rows = append(rows, finishRow(buffer))
		buffer = []domain.OCRLine{line}
		bufferSum = line.CenterY()
	}
	rows = append(rows, finishRow(buffer))

	return rows
}

func finishRow(lines []domain.OCRLine) domain.OCRRow {
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].LeftX() < lines[j].LeftX()
	})
	return domain.OCRRow{Lines: lines}
}

func averageHeight(lines []domain.OCRLine) float64 {
	total := 0.0
	for _, line := range lines {
		total += line.Height()
	}
	return total / float64(len(lines))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
