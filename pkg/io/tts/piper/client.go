package piper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/xpanvictor/xtutor/pkg/io/tts"
)

// Piper talks to a wyoming-piper style HTTP server.
type Piper struct {
	BaseURL string       // e.g. "http://tts:5000"
	Client  *http.Client // inject; default if nil
	Voice   string
}

func New(baseURL, voice string, client *http.Client) *Piper {
	if client == nil {
		client = &http.Client{}
	}
	return &Piper{BaseURL: strings.TrimRight(baseURL, "/"), Voice: voice, Client: client}
}

// Stream implements tts.Synthesizer.
func (p *Piper) Stream(ctx context.Context, text string) (io.ReadCloser, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}

	// GET /api/text-to-speech?text=...&voice=... streams a WAV body on success.
	u, err := url.Parse(p.BaseURL + "/api/text-to-speech")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("text", text)
	if p.Voice != "" {
		q.Set("voice", p.Voice)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("piper request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("piper http %d: %s", resp.StatusCode, string(b))
	}
	return resp.Body, nil
}
