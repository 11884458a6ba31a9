package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/xtutor/pkg/Logger"
)

func TestHandwritingStub(t *testing.T) {
	b, err := Handwriting{}.Render(context.Background(), Input{Content: "a b", Origin: Origin{X: 80, Y: 140}})
	require.NoError(t, err)
	require.Len(t, b.Strokes, 2)
	assert.Equal(t, 4, b.PointCount())

	first := b.Strokes[0]
	assert.Equal(t, Point{X: 80, Y: 140, Pressure: 0.8}, first.Points[0])
	assert.Equal(t, Point{X: 88, Y: 152, Pressure: 0.8}, first.Points[1])
	assert.Equal(t, "#000000", first.Color)

	// "a" advances 12, the space 10
	assert.Equal(t, float64(80+22), b.Strokes[1].Points[0].X)
}

func TestPlainMath(t *testing.T) {
	cases := map[string]string{
		`\frac{a}{b}`:      "(a)/(b)",
		`\sqrt{x}`:         "sqrt(x)",
		`x^2`:              "x ^ 2",
		`\alpha + \beta`:   "alpha + beta",
		`f_{n}`:            "f _ (n)",
		``:                 "math",
		`\int_0^1 x \, dx`: "int _ 0 ^ 1 x \\, dx",
	}
	for in, want := range cases {
		assert.Equal(t, want, PlainMath(in), in)
	}
}

func TestMathRendererRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mathRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, `x^2`, req.Latex)
		_ = json.NewEncoder(w).Encode(StrokeBatch{Strokes: []Stroke{{Points: []Point{{X: 1, Y: 2}}}}})
	}))
	defer srv.Close()

	m := NewMath(srv.URL, time.Second, Logger.NewNop())
	b, err := m.Render(context.Background(), Input{Content: "x^2", Origin: Origin{X: 80, Y: 300}})
	require.NoError(t, err)
	require.Len(t, b.Strokes, 1)
	assert.Equal(t, Origin{X: 80, Y: 300}, b.Position)
}

func TestMathRendererFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewMath(srv.URL, time.Second, Logger.NewNop())
	b, err := m.Render(context.Background(), Input{Content: `\frac{1}{2}`})
	require.NoError(t, err)
	// "(1)/(2)" has seven visible characters
	assert.Len(t, b.Strokes, 7)

	unset := NewMath("", time.Second, Logger.NewNop())
	b, err = unset.Render(context.Background(), Input{Content: `x`})
	require.NoError(t, err)
	assert.Len(t, b.Strokes, 1)
}

func TestSetFor(t *testing.T) {
	m := NewMath("", time.Second, Logger.NewNop())
	s := Set{Text: Handwriting{}, Math: m}
	assert.Equal(t, m, s.For("latex"))
	assert.Equal(t, Handwriting{}, s.For("text"))
	assert.Equal(t, Handwriting{}, Set{}.For("latex"))
}
