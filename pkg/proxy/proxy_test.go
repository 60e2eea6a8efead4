package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"reelgrab/pkg/config"
	"reelgrab/pkg/errors"
	"reelgrab/pkg/instagram"
	"reelgrab/pkg/logger"
)

func newProxy(cfg config.DownloadConfig) *Proxy {
	p := New(cfg, logger.NewNopLogger())
	p.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return p
}

func downloadRequest(upstream, filename string) *http.Request {
	q := url.Values{}
	if upstream != "" {
		q.Set("url", upstream)
	}
	if filename != "" {
		q.Set("filename", filename)
	}
	return httptest.NewRequest(http.MethodGet, "/api/download?"+q.Encode(), nil)
}

func decodeError(t *testing.T, body io.Reader) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	return payload["error"]
}

func TestProxyStreamsFullBody(t *testing.T) {
	var got http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", "10")
		w.Write([]byte("0123456789"))
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	newProxy(config.DownloadConfig{}).ServeHTTP(rec, downloadRequest(upstream.URL+"/v.mp4", "my reel.mp4"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0123456789", rec.Body.String())
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename="my reel.mp4"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.Equal(t, "0", rec.Header().Get("Expires"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))

	assert.Equal(t, instagram.DesktopUserAgent, got.Get("User-Agent"))
	assert.Equal(t, instagram.Referer, got.Get("Referer"))
	assert.Equal(t, "*/*", got.Get("Accept"))
	assert.Empty(t, got.Get("Range"))
}

func TestProxyRangePassthrough(t *testing.T) {
	var gotRange string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.Header().Set("Content-Range", "bytes 0-1023/5000")
		w.Header().Set("Content-Length", "1024")
		w.Header().Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte(strings.Repeat("x", 1024)))
	}))
	defer upstream.Close()

	req := downloadRequest(upstream.URL+"/v.mp4", "")
	req.Header.Set("Range", "bytes=0-1023")
	rec := httptest.NewRecorder()
	newProxy(config.DownloadConfig{}).ServeHTTP(rec, req)

	assert.Equal(t, "bytes=0-1023", gotRange)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 0-1023/5000", rec.Header().Get("Content-Range"))
	assert.Equal(t, "1024", rec.Header().Get("Content-Length"))
	assert.Equal(t, 1024, rec.Body.Len())
	assert.Equal(t, `attachment; filename="instareel_1700000000123.mp4"`, rec.Header().Get("Content-Disposition"))
}

func TestProxyDefaultsContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte("abc"))
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	newProxy(config.DownloadConfig{}).ServeHTTP(rec, downloadRequest(upstream.URL, ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
}

func TestProxyUpstreamFailure(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusFound, http.StatusBadGateway} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Location", "/elsewhere")
				w.WriteHeader(status)
				w.Write([]byte("VIDEO-BYTES-MUST-NOT-LEAK"))
			}))
			defer upstream.Close()

			p := newProxy(config.DownloadConfig{})
			p.SetHTTPClient(&http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			}})

			rec := httptest.NewRecorder()
			p.ServeHTTP(rec, downloadRequest(upstream.URL, ""))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, rec.Body.String(), "VIDEO-BYTES")
			assert.Equal(t, errors.MsgDownloadProtocol, decodeError(t, rec.Body))
			assert.Empty(t, rec.Header().Get("Content-Disposition"))
		})
	}
}

func TestProxyTransportFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := upstream.URL
	upstream.Close()

	rec := httptest.NewRecorder()
	newProxy(config.DownloadConfig{}).ServeHTTP(rec, downloadRequest(addr+"/v.mp4", ""))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errors.MsgDownloadProtocol, decodeError(t, rec.Body))
}

func TestProxyBadRequests(t *testing.T) {
	p := newProxy(config.DownloadConfig{})

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, downloadRequest("", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.MsgVideoURLRequired, decodeError(t, rec.Body))

	rec = httptest.NewRecorder()
	p.ServeHTTP(rec, downloadRequest("file:///etc/passwd", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/download?url=https://x/v.mp4", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProxyAllowedHosts(t *testing.T) {
	p := newProxy(config.DownloadConfig{AllowedHosts: []string{"*.cdninstagram.com", "*.fbcdn.net"}})

	assert.True(t, p.hostAllowed("scontent-lhr8-1.cdninstagram.com"))
	assert.True(t, p.hostAllowed("video.xx.fbcdn.net"))
	assert.True(t, p.hostAllowed("SCONTENT.CDNINSTAGRAM.COM"))
	assert.False(t, p.hostAllowed("evil.example.com"))

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, downloadRequest("https://evil.example.com/v.mp4", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec.Body), "not allowed")

	assert.True(t, newProxy(config.DownloadConfig{}).hostAllowed("anything.example"))
}

func TestOpen(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer upstream.Close()

	p := newProxy(config.DownloadConfig{})

	resp, err := p.Open(context.Background(), upstream.URL+"/v.mp4", "")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))

	_, err = p.Open(context.Background(), upstream.URL+"/missing", "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeDownloadProtocol, errors.TypeOf(err))
}

func TestSanitizeFilename(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	tests := []struct {
		in   string
		want string
	}{
		{"reel.mp4", "reel.mp4"},
		{"", "instareel_1700000000123.mp4"},
		{"   ", "instareel_1700000000123.mp4"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\clip.mp4`, "clip.mp4"},
		{`say "hi".mp4`, "say hi.mp4"},
		{"line\nbreak.mp4", "linebreak.mp4"},
		{"..", "instareel_1700000000123.mp4"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in, now), tt.in)
	}
}
