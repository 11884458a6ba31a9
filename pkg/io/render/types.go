package render

import "context"

type Point struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Pressure float64 `json:"pressure"`
}

type Stroke struct {
	Points []Point `json:"points"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
}

type Origin struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokeBatch is what the client animates for one board action.
type StrokeBatch struct {
	Strokes        []Stroke `json:"strokes"`
	Position       Origin   `json:"position"`
	AnimationSpeed float64  `json:"animation_speed"`
}

func (b StrokeBatch) PointCount() int {
	n := 0
	for _, s := range b.Strokes {
		n += len(s.Points)
	}
	return n
}

type Input struct {
	Content  string
	Color    string
	Origin   Origin
	MaxWidth float64
}

type Renderer interface {
	Render(ctx context.Context, in Input) (StrokeBatch, error)
}
