package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/robertodauria/speedtest/pkg/speedtest/payload"
	"github.com/robertodauria/speedtest/pkg/speedtest/results"
	"github.com/robertodauria/speedtest/pkg/speedtest/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, fn echo.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := fn(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func assertNoCache(t *testing.T, h http.Header) {
	t.Helper()
	assert.Equal(t, "no-store, no-cache, must-revalidate, proxy-revalidate", h.Get("Cache-Control"))
	assert.Equal(t, "no-cache", h.Get("Pragma"))
	assert.Equal(t, "0", h.Get("Expires"))
}

func TestHandler_Ping(t *testing.T) {
	h := New(spec.MaxDownloadSize, spec.MaxUploadSize)
	rec := serve(t, h.Ping, httptest.NewRequest(http.MethodGet, "/ping?t=123", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, spec.PongMessage, rec.Body.String())
	assertNoCache(t, rec.Header())
}

func TestHandler_Download(t *testing.T) {
	h := New(spec.MaxDownloadSize, spec.MaxUploadSize)
	for _, size := range []int{1, 1000, 1_000_000} {
		url := "/download?size=" + strconv.Itoa(size) + "&t=abc"
		rec := serve(t, h.Download, httptest.NewRequest(http.MethodGet, url, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, spec.OctetStream, rec.Header().Get("Content-Type"))
		assert.Equal(t, strconv.Itoa(size), rec.Header().Get("Content-Length"))
		assert.Equal(t, size, rec.Body.Len())
		assert.Equal(t, strings.Repeat(string(rune(payload.Filler)), size), rec.Body.String())
		assertNoCache(t, rec.Header())
	}
}

func TestHandler_DownloadDefaultSize(t *testing.T) {
	h := New(spec.MaxDownloadSize, spec.MaxUploadSize)
	rec := serve(t, h.Download, httptest.NewRequest(http.MethodGet, "/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, spec.DefaultDownloadSize, rec.Body.Len())
}

func TestHandler_DownloadInvalidSize(t *testing.T) {
	h := New(1000, spec.MaxUploadSize)
	for _, size := range []string{"0", "-1", "abc", "1001", "1e6"} {
		rec := serve(t, h.Download, httptest.NewRequest(http.MethodGet, "/download?size="+size, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "size %q", size)
		assertNoCache(t, rec.Header())
	}
}

func TestHandler_Upload(t *testing.T) {
	h := New(spec.MaxDownloadSize, 1000)
	for _, n := range []int{0, 1, 500, 1000} {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("a", n)))
		req.Header.Set("Content-Type", spec.OctetStream)
		rec := serve(t, h.Upload, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp results.UploadResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(n), resp.Received)
		assertNoCache(t, rec.Header())
	}
}

func TestHandler_UploadTooLarge(t *testing.T) {
	h := New(spec.MaxDownloadSize, 1000)

	// Declared length above the cap.
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("a", 1001)))
	rec := serve(t, h.Upload, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.NotContains(t, rec.Body.String(), "received")
	assertNoCache(t, rec.Header())

	// Unknown length, detected while reading.
	body, err := payload.Generate(5000)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/upload", io.NopCloser(body))
	req.ContentLength = -1
	rec = serve(t, h.Upload, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.NotContains(t, rec.Body.String(), "received")
	assertNoCache(t, rec.Header())
}
