// Package proxy streams a remote video back to the client as a file download.
// Browsers cannot fetch Instagram CDN URLs directly because of Referer and
// CORS checks, so the bytes are relayed through this service.
package proxy

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tidwall/match"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"reelgrab/pkg/config"
	"reelgrab/pkg/errors"
	"reelgrab/pkg/instagram"
	"reelgrab/pkg/logger"
	"reelgrab/pkg/tracing"
)

// passthroughHeaders are copied from the upstream response when present
var passthroughHeaders = []string{"Content-Length", "Content-Range"}

// Proxy relays a single upstream GET per request
type Proxy struct {
	client       *http.Client
	allowedHosts []string
	userAgent    string
	logger       logger.Logger
	now          func() time.Time
}

// New creates a download proxy
func New(cfg config.DownloadConfig, log logger.Logger) *Proxy {
	if log == nil {
		log = logger.GetLogger()
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = instagram.DesktopUserAgent
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	return &Proxy{
		client:       &http.Client{Transport: transport},
		allowedHosts: cfg.AllowedHosts,
		userAgent:    ua,
		logger:       log,
		now:          time.Now,
	}
}

// SetHTTPClient replaces the upstream client
func (p *Proxy) SetHTTPClient(c *http.Client) {
	p.client = c
}

// Open fetches rawURL, forwarding rangeHeader when set. Only 200 and 206 are
// accepted; the caller must close the returned body.
func (p *Proxy) Open(ctx context.Context, rawURL, rangeHeader string) (resp *http.Response, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "proxy.Open",
		trace.WithAttributes(attribute.Bool("http.range", rangeHeader != "")))
	defer tracing.End(span, &err)

	if err = p.checkURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDownloadProtocol, "failed to create request")
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Referer", instagram.Referer)
	req.Header.Set("Accept", "*/*")
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err = p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDownloadProtocol, "upstream request failed")
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, errors.Newf(errors.ErrorTypeDownloadProtocol, "upstream returned %d", resp.StatusCode).WithCode(resp.StatusCode)
	}
	return resp, nil
}

// checkURL returns a 400-class error for unusable or disallowed URLs
func (p *Proxy) checkURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New(errors.ErrorTypeUnrecognizedFormat, "Video URL must be an absolute http(s) URL").WithCode(http.StatusBadRequest)
	}
	if !p.hostAllowed(u.Hostname()) {
		return errors.Newf(errors.ErrorTypeInvalidDomain, "Host %s is not allowed", u.Hostname()).WithCode(http.StatusBadRequest)
	}
	return nil
}

func (p *Proxy) hostAllowed(host string) bool {
	if len(p.allowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, pattern := range p.allowedHosts {
		if match.Match(host, strings.ToLower(strings.TrimSpace(pattern))) {
			return true
		}
	}
	return false
}

// ServeHTTP handles GET /api/download?url=&filename=
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	q := r.URL.Query()
	videoURL := strings.TrimSpace(q.Get("url"))
	if videoURL == "" {
		writeError(w, http.StatusBadRequest, errors.MsgVideoURLRequired)
		return
	}
	filename := SanitizeFilename(q.Get("filename"), p.now())

	resp, err := p.Open(r.Context(), videoURL, r.Header.Get("Range"))
	if err != nil {
		if errors.TypeOf(err) == errors.ErrorTypeDownloadProtocol {
			p.logger.WithError(err).WithField("url", videoURL).Warn("Download proxy upstream failed")
			writeError(w, http.StatusInternalServerError, errors.MsgDownloadProtocol)
			return
		}
		var e *errors.Error
		msg := err.Error()
		if stderrors.As(err, &e) {
			msg = e.Message
		}
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	defer resp.Body.Close()

	h := w.Header()
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	h.Set("Content-Type", contentType)
	for _, k := range passthroughHeaders {
		if v := resp.Header.Get(k); v != "" {
			h.Set(k, v)
		}
	}
	acceptRanges := resp.Header.Get("Accept-Ranges")
	if acceptRanges == "" {
		acceptRanges = "bytes"
	}
	h.Set("Accept-Ranges", acceptRanges)
	h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")

	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}

	n, err := io.Copy(w, resp.Body)
	fields := map[string]interface{}{
		"status":   resp.StatusCode,
		"bytes":    n,
		"filename": filename,
	}
	if err != nil {
		// Headers are already sent.
		if r.Context().Err() != nil {
			p.logger.DebugWithFields("Download client disconnected", fields)
			return
		}
		p.logger.WithError(err).WarnWithFields("Download stream interrupted", fields)
		return
	}
	p.logger.DebugWithFields("Download streamed", fields)
}

// SanitizeFilename reduces name to a quote-free base name. An empty result
// becomes instareel_<unix-ms>.mp4.
func SanitizeFilename(name string, now time.Time) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == "/" || name == ".." {
		return fmt.Sprintf("instareel_%d.mp4", now.UnixMilli())
	}
	return name
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
