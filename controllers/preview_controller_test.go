package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newPreviewRouter(timeout time.Duration) *gin.Engine {
	r := newTestEngine()
	pc := &PreviewController{
		client:   &http.Client{},
		timeout:  timeout,
		maxBytes: 150000,
	}
	r.GET("/api/preview", pc.GetPreview)
	return r
}

func getPreview(r *gin.Engine, target string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, "/api/preview?url="+url.QueryEscape(target), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPreviewExtractsOpenGraph(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head>
			<title>Fallback Title</title>
			<meta property="og:title" content="OG Title"/>
			<meta property="og:description" content="OG Description"/>
			<meta property="og:image" content="/img/cover.png"/>
		</head><body></body></html>`))
	}))
	defer upstream.Close()

	r := newPreviewRouter(2 * time.Second)
	w := getPreview(r, upstream.URL+"/page")
	assert.Equal(t, http.StatusOK, w.Code)

	var meta previewMeta
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, "OG Title", meta.Title)
	assert.Equal(t, "OG Description", meta.Description)
	assert.Equal(t, upstream.URL+"/img/cover.png", meta.Image)
}

func TestPreviewFallsBackToTitleTag(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Plain Title</title></head><body></body></html>`))
	}))
	defer upstream.Close()

	r := newPreviewRouter(2 * time.Second)
	w := getPreview(r, upstream.URL)
	assert.Equal(t, http.StatusOK, w.Code)

	var meta previewMeta
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, "Plain Title", meta.Title)
	assert.Empty(t, meta.Image)
}

func TestPreviewRejectsBadURL(t *testing.T) {
	r := newPreviewRouter(2 * time.Second)

	for _, target := range []string{"", "notaurl", "ftp://example.com/file"} {
		w := getPreview(r, target)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "error")
	}
}

func TestPreviewUpstreamNotFound(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer upstream.Close()

	r := newPreviewRouter(2 * time.Second)
	w := getPreview(r, upstream.URL)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "page not found or unavailable")
}

func TestPreviewRejectsNonHTML(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer upstream.Close()

	r := newPreviewRouter(2 * time.Second)
	w := getPreview(r, upstream.URL)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not an HTML page")
}

func TestPreviewTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer upstream.Close()

	r := newPreviewRouter(50 * time.Millisecond)
	w := getPreview(r, upstream.URL)
	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	assert.Contains(t, w.Body.String(), "request timeout")
}

func TestResolveImageURL(t *testing.T) {
	cases := []struct {
		image string
		page  string
		want  string
	}{
		{"//cdn.example.com/a.png", "https://example.com/p", "https://cdn.example.com/a.png"},
		{"https://cdn.example.com/a.png", "https://example.com/p", "https://cdn.example.com/a.png"},
		{"/img/a.png", "https://example.com/deep/page", "https://example.com/img/a.png"},
		{"a.png", "https://example.com/deep/page", "https://example.com/deep/a.png"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, resolveImageURL(c.image, c.page))
	}
}
