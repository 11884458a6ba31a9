package render

import (
	"context"
	"unicode"
)

const (
	glyphAdvance = 12
	spaceAdvance = 10
	glyphWidth   = 8
	glyphHeight  = 12
	strokeWidth  = 2
	penPressure  = 0.8
)

// Handwriting draws one short slanted stroke per visible character. It is a
// placeholder for a real glyph engine and never fails.
type Handwriting struct{}

func (Handwriting) Render(_ context.Context, in Input) (StrokeBatch, error) {
	color := in.Color
	if color == "" {
		color = "#000000"
	}
	batch := StrokeBatch{Position: in.Origin, Strokes: []Stroke{}}
	offset := 0.0
	for _, r := range in.Content {
		if unicode.IsSpace(r) {
			offset += spaceAdvance
			continue
		}
		x := in.Origin.X + offset
		y := in.Origin.Y
		batch.Strokes = append(batch.Strokes, Stroke{
			Points: []Point{
				{X: x, Y: y, Pressure: penPressure},
				{X: x + glyphWidth, Y: y + glyphHeight, Pressure: penPressure},
			},
			Color: color,
			Width: strokeWidth,
		})
		offset += glyphAdvance
	}
	return batch, nil
}
