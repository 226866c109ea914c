package storeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "tok-1", 2*time.Second)
}

func TestFind_SendsQueryAndBearer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/lectures", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var filter map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("query")), &filter))
		assert.Equal(t, map[string]any{"course": "c1"}, filter)

		pkg.JSON(w, http.StatusOK, []models.Lecture{{ID: "l1", CourseID: "c1", Name: "Intro"}})
	})
	c := newTestClient(t, mux)

	var lectures []models.Lecture
	require.NoError(t, c.Find(context.Background(), "lectures", map[string]any{"course": "c1"}, &lectures))

	require.Len(t, lectures, 1)
	assert.Equal(t, "Intro", lectures[0].Name)
}

func TestCreateUpdateDelete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/messages", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		pkg.JSON(w, http.StatusCreated, models.Message{ID: "m-1", CorrelationID: req.CorrelationID, Room: req.Room, Text: req.Text})
	})
	mux.HandleFunc("PATCH /api/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "m-1", r.PathValue("id"))
		pkg.JSON(w, http.StatusOK, models.Message{ID: "m-1", Text: "edited"})
	})
	mux.HandleFunc("DELETE /api/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		pkg.JSON(w, http.StatusOK, map[string]string{"message": "message deleted"})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	var created models.Message
	require.NoError(t, c.Create(ctx, "messages", models.CreateMessageRequest{CorrelationID: "corr-1", Room: "c1", Text: "hi"}, &created))
	assert.Equal(t, "m-1", created.ID)
	assert.Equal(t, "corr-1", created.CorrelationID)

	var updated models.Message
	require.NoError(t, c.Update(ctx, "messages", "m-1", models.UpdateMessageRequest{Text: "edited"}, &updated))
	assert.Equal(t, "edited", updated.Text)

	require.NoError(t, c.Delete(ctx, "messages", "m-1"))
	require.NoError(t, c.Create(ctx, "messages", models.CreateMessageRequest{Room: "c1", Text: "no out"}, nil))
}

func TestErrorsMapToSentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "bad request", err: fmt.Errorf("%w: text is required", pkg.ErrBadRequest), want: pkg.ErrValidation},
		{name: "division guard", err: pkg.ErrDivisionGuard, want: pkg.ErrValidation},
		{name: "forbidden", err: pkg.ErrForbidden, want: pkg.ErrForbidden},
		{name: "not found", err: pkg.ErrNotFound, want: pkg.ErrNotFound},
		{name: "rate limited", err: pkg.ErrTooManyReqs, want: pkg.ErrTooManyReqs},
		{name: "server error", err: fmt.Errorf("disk full"), want: pkg.ErrNetworkFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/doubts", func(w http.ResponseWriter, r *http.Request) {
				pkg.Error(w, tt.err)
			})
			c := newTestClient(t, mux)

			err := c.Create(context.Background(), "doubts", map[string]any{"doubts": 1}, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUnreachableStore(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(srv.URL, "", time.Second)

	err := c.Find(context.Background(), "messages", nil, &[]models.Message{})
	assert.ErrorIs(t, err, pkg.ErrNetworkFailure)
}

func TestMalformedResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/courses", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>proxy error</html>")
	})
	c := newTestClient(t, mux)

	err := c.Find(context.Background(), "courses", nil, &[]models.Course{})
	assert.ErrorIs(t, err, pkg.ErrNetworkFailure)
}

func TestUpload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "materials-file", r.URL.Query().Get("bucket"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "notes.pdf", header.Filename)
		assert.Equal(t, "pdf-bytes", string(data))

		pkg.JSON(w, http.StatusCreated, map[string]any{"url": "http://store/api/uploads/materials-file/ab_notes.pdf"})
	})
	c := newTestClient(t, mux)

	url, err := c.Upload(context.Background(), "materials-file", "notes.pdf", strings.NewReader("pdf-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "http://store/api/uploads/materials-file/ab_notes.pdf", url)
}

func TestLogin_KeepsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		pkg.JSON(w, http.StatusOK, map[string]any{
			"access_token":  "fresh",
			"refresh_token": "refresh",
			"user":          map[string]any{"id": "u1", "username": "asha"},
		})
	})
	mux.HandleFunc("GET /api/courses", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		pkg.JSON(w, http.StatusOK, []models.Course{})
	})
	c := newTestClient(t, mux)

	tokens, err := c.Login(context.Background(), "asha", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "u1", tokens.User.ID)

	require.NoError(t, c.Find(context.Background(), "courses", nil, &[]models.Course{}))
}
