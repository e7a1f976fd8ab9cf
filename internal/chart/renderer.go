package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"finmentor/internal/domain"
)

const (
	defaultChartWidth  = 960
	defaultChartHeight = 640
	maxRiskScore       = 100
)

var (
	colBackground = color.RGBA{R: 250, G: 252, B: 255, A: 255}
	colGrid       = color.RGBA{R: 225, G: 232, B: 240, A: 255}
	colAxis       = color.RGBA{R: 58, G: 64, B: 90, A: 255}
	colBand       = color.RGBA{R: 104, G: 122, B: 146, A: 255}
	colOverall    = color.RGBA{R: 62, G: 106, B: 214, A: 255}

	colSeverityNone   = color.RGBA{R: 176, G: 190, B: 204, A: 255}
	colSeverityLow    = color.RGBA{R: 18, G: 140, B: 126, A: 255}
	colSeverityMedium = color.RGBA{R: 255, G: 149, B: 0, A: 255}
	colSeverityHigh   = color.RGBA{R: 210, G: 61, B: 87, A: 255}
)

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderRiskChart draws one bar per risk dimension, colored by severity,
// with a marker line at the overall score. Output is PNG bytes.
func (r *Renderer) RenderRiskChart(report *domain.Report) ([]byte, error) {
	if report == nil || len(report.Risks) == 0 {
		return nil, fmt.Errorf("need at least one risk item to render chart")
	}

	img := image.NewRGBA(image.Rect(0, 0, defaultChartWidth, defaultChartHeight))
	fillRect(img, img.Bounds(), colBackground)

	plotRect := image.Rect(60, 30, defaultChartWidth-30, defaultChartHeight-60)
	drawGrid(img, plotRect, len(report.Risks), 5)

	drawRiskBars(img, plotRect, report.Risks)
	drawHorizontalValueLine(img, plotRect, report.OverallScore(), 0, maxRiskScore, colOverall)

	// Severity band guides at the banded-policy cutoffs.
	drawHorizontalValueLine(img, plotRect, 30, 0, maxRiskScore, colBand)
	drawHorizontalValueLine(img, plotRect, 60, 0, maxRiskScore, colBand)

	drawLine(img, plotRect.Min.X, plotRect.Max.Y, plotRect.Max.X, plotRect.Max.Y, colAxis)
	drawLine(img, plotRect.Min.X, plotRect.Min.Y, plotRect.Min.X, plotRect.Max.Y, colAxis)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawRiskBars(img *image.RGBA, rect image.Rectangle, risks []domain.RiskItem) {
	slotWidth := rect.Dx() / max(1, len(risks))
	barWidth := max(8, (slotWidth*6)/10)

	for i, risk := range risks {
		centerX := rect.Min.X + slotWidth*i + slotWidth/2
		topY := mapValueToY(risk.Score, 0, maxRiskScore, rect)
		if rect.Max.Y-topY < 2 {
			topY = rect.Max.Y - 2
		}

		barRect := image.Rect(centerX-barWidth/2, topY, centerX+barWidth/2+1, rect.Max.Y)
		fillRect(img, barRect, severityColor(risk.Severity))
	}
}

func severityColor(s domain.Severity) color.RGBA {
	switch s {
	case domain.SeverityHigh:
		return colSeverityHigh
	case domain.SeverityMedium:
		return colSeverityMedium
	case domain.SeverityLow:
		return colSeverityLow
	}
	return colSeverityNone
}

func drawGrid(img *image.RGBA, rect image.Rectangle, verticalLines, horizontalLines int) {
	for i := 0; i <= verticalLines; i++ {
		x := rect.Min.X + (rect.Dx()*i)/max(1, verticalLines)
		drawLine(img, x, rect.Min.Y, x, rect.Max.Y, colGrid)
	}
	for i := 0; i <= horizontalLines; i++ {
		y := rect.Min.Y + (rect.Dy()*i)/max(1, horizontalLines)
		drawLine(img, rect.Min.X, y, rect.Max.X, y, colGrid)
	}
}

func drawHorizontalValueLine(img *image.RGBA, rect image.Rectangle, value, minV, maxV float64, col color.RGBA) {
	y := mapValueToY(value, minV, maxV, rect)
	drawLine(img, rect.Min.X, y, rect.Max.X, y, col)
}

func mapValueToY(value, minV, maxV float64, rect image.Rectangle) int {
	if maxV <= minV {
		return rect.Max.Y
	}
	ratio := (value - minV) / (maxV - minV)
	ratio = math.Max(0, math.Min(1, ratio))
	return rect.Max.Y - int(ratio*float64(rect.Dy()-1))
}

func fillRect(img *image.RGBA, rect image.Rectangle, col color.RGBA) {
	r := rect.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if image.Pt(x0, y0).In(img.Bounds()) {
			img.SetRGBA(x0, y0, col)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
