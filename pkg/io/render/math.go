package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/xpanvictor/xtutor/pkg/Logger"
)

var (
	reFrac    = regexp.MustCompile(`\\frac\{([^{}]*)\}\{([^{}]*)\}`)
	reSqrt    = regexp.MustCompile(`\\sqrt\{([^{}]*)\}`)
	reCommand = regexp.MustCompile(`\\([a-zA-Z]+)`)
	reSpaces  = regexp.MustCompile(`\s+`)
)

// PlainMath turns LaTeX into something readable as plain handwriting.
func PlainMath(latex string) string {
	s := reFrac.ReplaceAllString(latex, "($1)/($2)")
	s = reSqrt.ReplaceAllString(s, "sqrt($1)")
	s = reCommand.ReplaceAllString(s, "$1")
	s = strings.NewReplacer("{", "(", "}", ")", "^", " ^ ", "_", " _ ").Replace(s)
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	if s == "" {
		return "math"
	}
	return s
}

type mathRequest struct {
	Latex    string  `json:"latex"`
	Color    string  `json:"color"`
	Origin   Origin  `json:"origin"`
	MaxWidth float64 `json:"max_width,omitempty"`
}

// Math asks an external typesetting service for strokes and falls back to
// handwriting the plain-text form when the service is missing or fails.
type Math struct {
	baseURL  string
	client   *http.Client
	fallback Renderer
	logger   *Logger.Logger
}

func NewMath(baseURL string, timeout time.Duration, logger *Logger.Logger) *Math {
	return &Math{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		fallback: Handwriting{},
		logger:   logger,
	}
}

func (m *Math) Render(ctx context.Context, in Input) (StrokeBatch, error) {
	if m.baseURL != "" {
		batch, err := m.remote(ctx, in)
		if err == nil && len(batch.Strokes) > 0 {
			return batch, nil
		}
		if err != nil {
			m.logger.Warnf("math render failed, using plain fallback: %v", err)
		}
	}
	plain := in
	plain.Content = PlainMath(in.Content)
	return m.fallback.Render(ctx, plain)
}

func (m *Math) remote(ctx context.Context, in Input) (StrokeBatch, error) {
	body, err := json.Marshal(mathRequest{Latex: in.Content, Color: in.Color, Origin: in.Origin, MaxWidth: in.MaxWidth})
	if err != nil {
		return StrokeBatch{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return StrokeBatch{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return StrokeBatch{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return StrokeBatch{}, fmt.Errorf("math renderer: %s: %s", resp.Status, string(b))
	}

	var batch StrokeBatch
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return StrokeBatch{}, fmt.Errorf("decode strokes: %w", err)
	}
	batch.Position = in.Origin
	return batch, nil
}

// Set picks a renderer by action format.
type Set struct {
	Text Renderer
	Math Renderer
}

func (s Set) For(format string) Renderer {
	if format == "latex" && s.Math != nil {
		return s.Math
	}
	if s.Text != nil {
		return s.Text
	}
	return Handwriting{}
}
