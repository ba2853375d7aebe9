package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photodiary/server/internal/ai"
	"github.com/photodiary/server/internal/app"
	"github.com/photodiary/server/internal/gateway"
	"github.com/photodiary/server/internal/models"
	"github.com/photodiary/server/internal/services"
	"github.com/photodiary/server/internal/state"
	"github.com/photodiary/server/internal/testutil"
)

type server struct {
	handler http.Handler
	app     *app.App
	repo    *testutil.FlakyRepo
	gen     *testutil.FakeGenerator
}

func newServer(t *testing.T, gen ai.Generator) *server {
	t.Helper()
	clock := testutil.FixedClock()
	s := &server{repo: &testutil.FlakyRepo{PhotoRepo: testutil.NewTestRepository(t, clock)}}
	if fake, ok := gen.(*testutil.FakeGenerator); ok {
		s.gen = fake
	}
	gw := gateway.New(s.repo, services.NewMemoryBlobStore(""), gateway.Options{Now: clock.Now})
	s.app = app.New(gw, app.Config{Generator: gen})
	t.Cleanup(s.app.Shutdown)
	s.handler = NewRouter(RouterConfig{
		App:            s.app,
		MaxUploadBytes: 1024,
		Ping:           func(context.Context) error { return nil },
	})
	return s
}

func (s *server) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *server) upload(t *testing.T, description, tags string) models.Photo {
	t.Helper()
	body, ct := multipartBody(t, "beach.jpg", []byte("jpeg-bytes"), map[string]string{
		"description": description,
		"tags":        tags,
	})
	rec := s.do(t, http.MethodPost, "/api/photos", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var photo models.Photo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &photo))
	return photo
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newServer(t, ai.Unavailable{})
	rec := s.do(t, http.MethodGet, "/api/health", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[models.HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.False(t, resp.AI)
}

func TestPhotos_UploadAndList(t *testing.T) {
	s := newServer(t, ai.Unavailable{})

	photo := s.upload(t, "Beach day", "beach, sunset")
	assert.Equal(t, []string{"beach", "sunset"}, photo.Tags)

	rec := s.do(t, http.MethodGet, "/api/photos", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[models.PhotoListResponse](t, rec)
	assert.Equal(t, "loaded", list.Status)
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Groups, 1)
	require.Len(t, list.Groups[0].Photos, 1)
	assert.Equal(t, "Beach day", list.Groups[0].Photos[0].Description)

	rec = s.do(t, http.MethodGet, "/api/photos?q=mountain", nil, "")
	list = decode[models.PhotoListResponse](t, rec)
	assert.Equal(t, 0, list.Matches)
	assert.Equal(t, 1, list.Total)
	assert.Empty(t, list.Groups)
}

func TestPhotos_UploadValidation(t *testing.T) {
	s := newServer(t, ai.Unavailable{})

	tests := []struct {
		name     string
		filename string
		data     []byte
		desc     string
		field    string
	}{
		{"missing file", "", nil, "Beach day", "file"},
		{"missing description", "beach.jpg", []byte("x"), " ", "description"},
		{"too large", "beach.jpg", bytes.Repeat([]byte("x"), 2048), "Beach day", "file"},
		{"unsupported type", "notes.txt", []byte("x"), "Beach day", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.filename, tt.data, map[string]string{"description": tt.desc})
			rec := s.do(t, http.MethodPost, "/api/photos", body, ct)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.field, decode[models.ErrorResponse](t, rec).Field)
		})
	}
	assert.Empty(t, s.app.Photos().Snapshot().Photos)

	t.Run("not multipart", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/photos", bytes.NewBufferString("{}"), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPhotos_UploadRemoteFailure(t *testing.T) {
	s := newServer(t, ai.Unavailable{})
	s.repo.Set("Add", errors.New("permission denied"))

	body, ct := multipartBody(t, "beach.jpg", []byte("jpeg-bytes"), map[string]string{"description": "Beach day"})
	rec := s.do(t, http.MethodPost, "/api/photos", body, ct)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, state.MsgUploadFailed, decode[models.ErrorResponse](t, rec).Error)
	assert.NotContains(t, rec.Body.String(), "permission denied")
}

func TestPhotos_Favorite(t *testing.T) {
	s := newServer(t, ai.Unavailable{})
	photo := s.upload(t, "Beach day", "")

	rec := s.do(t, http.MethodPost, "/api/photos/"+photo.ID+"/favorite", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.ToggleFavoriteResponse](t, rec).IsFavorite)

	s.repo.Set("SetFavorite", errors.New("offline"))
	rec = s.do(t, http.MethodPost, "/api/photos/"+photo.ID+"/favorite", nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, state.MsgFavoriteFailed, decode[models.ErrorResponse](t, rec).Error)

	p, _ := s.app.Photos().Photo(photo.ID)
	assert.True(t, p.IsFavorite)

	rec = s.do(t, http.MethodPost, "/api/photos/missing/favorite", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPhotos_DeleteAndRefresh(t *testing.T) {
	s := newServer(t, ai.Unavailable{})
	photo := s.upload(t, "Beach day", "")

	rec := s.do(t, http.MethodDelete, "/api/photos/"+photo.ID, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/photos/"+photo.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.repo.Set("List", errors.New("offline"))
	rec = s.do(t, http.MethodPost, "/api/photos/refresh", nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	list := decode[models.PhotoListResponse](t, rec)
	assert.Equal(t, "error", list.Status)
	assert.Equal(t, state.MsgLoadFailed, list.Error)
}

func TestThread(t *testing.T) {
	gen := &testutil.FakeGenerator{CommentOut: "Stunning! 🌅"}
	s := newServer(t, gen)
	photo := s.upload(t, "Beach day", "")

	rec := s.do(t, http.MethodGet, "/api/thread/comments", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/photos/"+photo.ID+"/open", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	thread := decode[models.ThreadResponse](t, rec)
	assert.Equal(t, photo.ID, thread.PhotoID)
	assert.True(t, thread.Loaded)
	assert.Empty(t, thread.Comments)

	rec = s.do(t, http.MethodPost, "/api/thread/comments", bytes.NewBufferString(`{"text":"Great day"}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)
	comment := decode[models.CommentResponse](t, rec)
	assert.Equal(t, "Great day", comment.Text)
	assert.Equal(t, models.UserAuthor, comment.Username)
	assert.Equal(t, string(state.CommentConfirmed), comment.Status)

	rec = s.do(t, http.MethodPost, "/api/thread/comments", bytes.NewBufferString(`{"text":"  "}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/thread/ai-comment", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Stunning! 🌅", decode[models.DraftResponse](t, rec).Text)

	rec = s.do(t, http.MethodGet, "/api/thread/comments", nil, "")
	thread = decode[models.ThreadResponse](t, rec)
	require.Len(t, thread.Comments, 1)

	list := decode[models.PhotoListResponse](t, s.do(t, http.MethodGet, "/api/photos", nil, ""))
	assert.Equal(t, 1, list.Groups[0].Photos[0].CommentCount)

	rec = s.do(t, http.MethodDelete, "/api/thread", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/thread/ai-comment", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThread_CommentFailure(t *testing.T) {
	s := newServer(t, ai.Unavailable{})
	photo := s.upload(t, "Beach day", "")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/photos/"+photo.ID+"/open", nil, "").Code)

	s.repo.Set("AddComment", errors.New("offline"))
	rec := s.do(t, http.MethodPost, "/api/thread/comments", bytes.NewBufferString(`{"text":"hello"}`), "application/json")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, state.MsgCommentFailed, decode[models.ErrorResponse](t, rec).Error)

	thread := decode[models.ThreadResponse](t, s.do(t, http.MethodGet, "/api/thread/comments", nil, ""))
	assert.Empty(t, thread.Comments)

	rec = s.do(t, http.MethodDelete, "/api/thread/comments/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAI_Unavailable(t *testing.T) {
	s := newServer(t, ai.Unavailable{})
	photo := s.upload(t, "Beach day", "")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/photos/"+photo.ID+"/open", nil, "").Code)

	rec := s.do(t, http.MethodPost, "/api/thread/ai-comment", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body, ct := multipartBody(t, "beach.jpg", []byte("jpeg-bytes"), nil)
	rec = s.do(t, http.MethodPost, "/api/ai/caption", body, ct)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAI_Caption(t *testing.T) {
	gen := &testutil.FakeGenerator{CaptionOut: &ai.Caption{Text: "Golden hour", Tags: []string{"Sunset", "beach"}}}
	s := newServer(t, gen)

	body, ct := multipartBody(t, "beach.jpg", []byte("jpeg-bytes"), nil)
	rec := s.do(t, http.MethodPost, "/api/ai/caption", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.CaptionResponse](t, rec)
	assert.Equal(t, "Golden hour", resp.Caption)
	assert.Equal(t, []string{"sunset", "beach"}, resp.Tags)

	body, ct = multipartBody(t, "", nil, nil)
	rec = s.do(t, http.MethodPost, "/api/ai/caption", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAI_CaptionRejectsOversizeImage(t *testing.T) {
	gen := &testutil.FakeGenerator{CaptionOut: &ai.Caption{Text: "Golden hour"}}
	s := newServer(t, gen)

	body, ct := multipartBody(t, "beach.jpg", bytes.Repeat([]byte("x"), 1025), nil)
	rec := s.do(t, http.MethodPost, "/api/ai/caption", body, ct)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file", decode[models.ErrorResponse](t, rec).Field)
	assert.Zero(t, gen.Calls())
}

func TestVersion(t *testing.T) {
	s := newServer(t, ai.Unavailable{})
	rec := s.do(t, http.MethodGet, "/api/version", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	info := decode[BuildInfo](t, rec)
	assert.NotEmpty(t, info.Version)
	assert.True(t, strings.HasPrefix(info.GoVersion, "go"))
}
