package elevenlabs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/xtutor/pkg/io/tts"
)

func TestStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/"+DefaultVoice+"/stream", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("xi-api-key"))
		assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))

		var req speechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Text)
		assert.Equal(t, DefaultModel, req.ModelID)
		assert.Equal(t, 0.75, req.VoiceSettings.SimilarityBoost)

		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	c := New("key", srv.URL, "", "", nil)
	rc, err := c.Stream(context.Background(), "hello")
	require.NoError(t, err)
	defer rc.Close()

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "ID3audio", string(b))
}

func TestStreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("key", srv.URL, "", "", nil)
	_, err := c.Stream(context.Background(), "hello")
	assert.ErrorContains(t, err, "401")

	_, err = c.Stream(context.Background(), "  ")
	assert.ErrorIs(t, err, tts.ErrEmptyText)
}
