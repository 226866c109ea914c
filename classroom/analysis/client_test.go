package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, path string, h http.HandlerFunc) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+path, h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second)
}

func TestSpeechToText(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		want    string
		wantErr error
	}{
		{name: "json object", answer: `{"text":"what is entropy"}`, want: "what is entropy"},
		{name: "plain text", answer: "namaste\n", want: "namaste"},
		{name: "unable to transcribe is a value", answer: `"unable to transcribe"`, want: "unable to transcribe"},
		{name: "literal error", answer: "error", wantErr: pkg.ErrExternalCallFailed},
		{name: "empty", answer: `{"text":""}`, wantErr: pkg.ErrExternalCallFailed},
		{name: "missing key", answer: `{"transcript":"x"}`, wantErr: pkg.ErrExternalCallFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, "/speech-to-text", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "hi-IN", r.FormValue("language"))
				file, header, err := r.FormFile("file")
				require.NoError(t, err)
				defer file.Close()
				assert.Equal(t, "audio.webm", header.Filename)
				assert.Equal(t, "audio/webm;codecs=opus", header.Header.Get("Content-Type"))
				_, _ = io.WriteString(w, tt.answer)
			})

			got, err := c.SpeechToText(context.Background(), []byte("opus"), "audio/webm;codecs=opus", "hi-IN")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImageToDoubts_NumberAnswer(t *testing.T) {
	c := newTestClient(t, "/doubts-analysis", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"doubts": 3}`)
	})

	got, err := c.ImageToDoubts(context.Background(), []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "3", got)
}

func TestImageToRollNumbers(t *testing.T) {
	c := newTestClient(t, "/mcq-analysis", func(w http.ResponseWriter, r *http.Request) {
		var rolls []int
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("rollNumbers")), &rolls))
		assert.Equal(t, []int{2, 4, 5}, rolls)
		assert.Equal(t, "5", r.FormValue("class_limit"))

		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "attendance_image.png", header.Filename)

		_, _ = io.WriteString(w, `{"extracted_roll_numbers":[4,2]}`)
	})

	got, err := c.ImageToRollNumbers(context.Background(), []byte("png"), "image/png", []int{2, 4, 5}, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2}, got)
}

func TestImageToRollNumbers_Malformed(t *testing.T) {
	c := newTestClient(t, "/mcq-analysis", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"rolls":[1]}`)
	})

	_, err := c.ImageToRollNumbers(context.Background(), nil, "image/png", nil, 3)
	assert.ErrorIs(t, err, pkg.ErrExternalCallFailed)
}

func TestSummarize(t *testing.T) {
	c := newTestClient(t, "/filter-messages", func(w http.ResponseWriter, r *http.Request) {
		var req map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b", "c"}, req["messages"])
		_, _ = io.WriteString(w, `{"messages":["a and b","c"]}`)
	})

	got, err := c.Summarize(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a and b", "c"}, got)

	empty, err := c.Summarize(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestServiceFailures(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		c := newTestClient(t, "/doubts-analysis", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		})
		_, err := c.ImageToDoubts(context.Background(), nil, "image/png")
		assert.ErrorIs(t, err, pkg.ErrExternalCallFailed)
	})

	t.Run("timeout", func(t *testing.T) {
		block := make(chan struct{})
		mux := http.NewServeMux()
		mux.HandleFunc("POST /doubts-analysis", func(w http.ResponseWriter, r *http.Request) {
			<-block
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)
		t.Cleanup(func() { close(block) })

		c := New(srv.URL, 50*time.Millisecond)
		_, err := c.ImageToDoubts(context.Background(), nil, "image/png")
		assert.ErrorIs(t, err, pkg.ErrExternalCallFailed)
	})
}
