package controllers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"

	"github.com/keyshelf/keyshelf/config"
	"github.com/keyshelf/keyshelf/utils"
)

const previewUserAgent = "Mozilla/5.0 (compatible; LinkPreview/1.0)"

// PreviewController fetches a page and extracts Open Graph metadata for
// client-side link cards. The fetch is bounded by a timeout and a byte cap.
type PreviewController struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

// NewPreviewController creates a PreviewController from configuration.
func NewPreviewController() *PreviewController {
	cfg := config.Get()
	return &PreviewController{
		client:   &http.Client{},
		timeout:  time.Duration(cfg.PreviewTimeoutMs) * time.Millisecond,
		maxBytes: int64(cfg.PreviewMaxBytes),
	}
}

type previewMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// GetPreview handles GET /preview?url=...
func (p *PreviewController) GetPreview(ctx *gin.Context) {
	target, ok := validPreviewURL(ctx.Query("url"))
	if !ok {
		utils.FailPreview(ctx, http.StatusBadRequest, "invalid or missing url parameter")
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		utils.FailPreview(ctx, http.StatusBadRequest, "invalid or missing url parameter")
		return
	}
	req.Header.Set("User-Agent", previewUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			utils.FailPreview(ctx, http.StatusRequestTimeout, "request timeout")
			return
		}
		utils.FailPreview(ctx, http.StatusInternalServerError, "failed to fetch preview")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		utils.FailPreview(ctx, http.StatusNotFound, "page not found or unavailable")
		return
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "text/html") {
		utils.FailPreview(ctx, http.StatusBadRequest, "url is not an HTML page")
		return
	}

	// Cap the body before parsing; pages beyond the limit are truncated.
	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			utils.FailPreview(ctx, http.StatusRequestTimeout, "request timeout")
			return
		}
		utils.FailPreview(ctx, http.StatusInternalServerError, "failed to fetch preview")
		return
	}

	meta := extractPreviewMeta(body)
	if meta.Image != "" {
		meta.Image = resolveImageURL(meta.Image, target)
	}
	ctx.JSON(http.StatusOK, meta)
}

// validPreviewURL accepts absolute http/https URLs only.
func validPreviewURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

// extractPreviewMeta pulls og:title/og:description/og:image, with the page
// <title> as the title fallback.
func extractPreviewMeta(body []byte) previewMeta {
	var meta previewMeta
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return meta
	}

	if v, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		meta.Title = strings.TrimSpace(v)
	}
	if v, ok := doc.Find("meta[property='og:description']").Attr("content"); ok {
		meta.Description = strings.TrimSpace(v)
	}
	if v, ok := doc.Find("meta[property='og:image']").Attr("content"); ok {
		meta.Image = strings.TrimSpace(v)
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return meta
}

// resolveImageURL makes the extracted image usable from another origin:
// protocol-relative URLs are upgraded to https, relative paths are resolved
// against the page URL.
func resolveImageURL(image, pageURL string) string {
	image = strings.TrimSpace(image)
	if strings.HasPrefix(image, "//") {
		return "https:" + image
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return image
	}
	ref, err := url.Parse(image)
	if err != nil {
		return image
	}
	return base.ResolveReference(ref).String()
}
