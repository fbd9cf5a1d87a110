package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/blob"
	"checkin/internal/metrics"
	"checkin/internal/participant"
)

var jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")

type fixedQR struct{}

func (fixedQR) PNG(string) ([]byte, error) { return []byte("\x89PNG\r\n\x1a\nqr"), nil }

type testServer struct {
	router  *gin.Engine
	svc     *participant.Service
	repo    *participant.MemoryRepository
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, qr participant.QRRenderer, maxUpload int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := participant.NewMemoryRepository()
	svc := participant.NewService(repo, participant.NewBlobImages(blob.NewMemory()), qr, "http://checkin.test", nil)
	m := metrics.New(prometheus.NewRegistry())

	r := gin.New()
	h := New(svc, Options{MaxUploadBytes: maxUpload, Metrics: m})
	require.NoError(t, h.Mount(r))
	return &testServer{router: r, svc: svc, repo: repo, metrics: m}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (s *testServer) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func uploadRequest(t *testing.T, fields map[string]string, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func (s *testServer) register(t *testing.T, name string) string {
	t.Helper()
	w := s.do(uploadRequest(t, map[string]string{"name": name}, "photo.jpg", jpegBytes))
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	loc := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/user_added/"), loc)
	return strings.TrimPrefix(loc, "/user_added/")
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body["error"]
}

func TestAliceCheckIn(t *testing.T) {
	s := newTestServer(t, nil, 0)
	id := s.register(t, "Alice")

	w := s.get("/participant/" + id)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Alice")
	assert.Contains(t, w.Body.String(), `<td id="status">Not Entered Yet</td>`)
	assert.Contains(t, w.Body.String(), "unknown@example.com")

	w = s.postForm("/update_status/"+id, url.Values{"status": {"In Campus"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	w = s.get("/dashboard")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<b id="in-campus">1</b>`)
	assert.Contains(t, w.Body.String(), `<b id="outside-campus">0</b>`)
	assert.Contains(t, w.Body.String(), `<b id="total">1</b>`)
	assert.Contains(t, w.Body.String(), `src="/image/`+id+`"`)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Registrations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.StatusUpdates.WithLabelValues("In Campus")))
}

func TestUploadForm(t *testing.T) {
	s := newTestServer(t, nil, 0)
	w := s.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `enctype="multipart/form-data"`)
	assert.Contains(t, w.Body.String(), `name="file"`)
}

func TestUploadWithoutFile(t *testing.T) {
	s := newTestServer(t, nil, 0)
	w := s.do(uploadRequest(t, map[string]string{"name": "Alice"}, "", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no file provided", errorBody(t, w))

	all, err := s.repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUploadEmptyFile(t *testing.T) {
	s := newTestServer(t, nil, 0)
	w := s.do(uploadRequest(t, nil, "photo.jpg", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorBody(t, w), "invalid input")
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t, nil, 1024)
	w := s.do(uploadRequest(t, nil, "photo.jpg", bytes.Repeat([]byte("x"), 4096)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestParticipantIDErrors(t *testing.T) {
	s := newTestServer(t, nil, 0)

	w := s.get("/participant/not-an-id")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, participant.ErrMalformedID.Error(), errorBody(t, w))

	w = s.get("/participant/65f1c0ffee00000000000000")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, participant.ErrNotFound.Error(), errorBody(t, w))
}

func TestUpdateStatusErrors(t *testing.T) {
	s := newTestServer(t, nil, 0)
	id := s.register(t, "Bob")

	for _, status := range []string{"", "Not Entered Yet", "Teleported"} {
		w := s.postForm("/update_status/"+id, url.Values{"status": {status}})
		assert.Equal(t, http.StatusBadRequest, w.Code, status)
	}
	w := s.postForm("/update_status/not-an-id", url.Values{"status": {"In Campus"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.postForm("/update_status/65f1c0ffee00000000000000", url.Values{"status": {"In Campus"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	p, err := s.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, participant.StatusNotEntered, p.Status)
}

func TestImageRoutes(t *testing.T) {
	s := newTestServer(t, nil, 0)
	id := s.register(t, "Carol")

	for _, path := range []string{"/image/" + id, "/get_image/" + id} {
		w := s.get(path)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
		assert.Equal(t, jpegBytes, w.Body.Bytes())
	}

	bare := &participant.Participant{Name: "No Photo", Filename: "x.jpg", Status: participant.StatusNotEntered}
	require.NoError(t, s.repo.Insert(context.Background(), bare))
	w := s.get("/get_image/" + bare.ID)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/image/zzz").Code)
}

func TestUserAddedShowsQRCode(t *testing.T) {
	s := newTestServer(t, fixedQR{}, 0)
	id := s.register(t, "Dana")

	w := s.get("/user_added/" + id)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `src="data:image/png;base64,`)
	assert.Contains(t, w.Body.String(), "Dana")

	w = s.get("/qr/" + id)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestUserAddedToleratesUnknownID(t *testing.T) {
	s := newTestServer(t, nil, 0)
	w := s.get("/user_added/whatever")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "whatever")
	assert.NotContains(t, w.Body.String(), `id="qr"`)
}

func TestQRDisabled(t *testing.T) {
	s := newTestServer(t, nil, 0)
	id := s.register(t, "Eve")
	assert.Equal(t, http.StatusNotFound, s.get("/qr/"+id).Code)
}

func TestStatusPage(t *testing.T) {
	s := newTestServer(t, nil, 0)
	w := s.get("/status/In%20Campus")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<p id="status">In Campus</p>`)
}

func TestWipe(t *testing.T) {
	s := newTestServer(t, nil, 0)
	s.register(t, "A")
	s.register(t, "B")

	w := s.get("/wipe")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/wipe"`)

	w = s.do(httptest.NewRequest(http.MethodPost, "/wipe", nil))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = s.get("/dashboard")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<b id="total">0</b>`)
	assert.Contains(t, w.Body.String(), "No participants yet.")
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Wipes))
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil, 0)
	w := s.get("/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","store":true}`, w.Body.String())
}

func TestErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(nil, Options{})
	cases := map[error]int{
		participant.ErrMalformedID:  http.StatusBadRequest,
		participant.ErrInvalidInput: http.StatusBadRequest,
		participant.ErrNotFound:     http.StatusNotFound,
		participant.ErrNoImage:      http.StatusNotFound,
		participant.ErrQRDisabled:   http.StatusNotFound,
		assert.AnError:              http.StatusInternalServerError,
	}
	for err, code := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
		h.fail(c, err)
		assert.Equal(t, code, w.Code, err.Error())
		assert.Equal(t, err.Error(), errorBody(t, w))
	}
}
