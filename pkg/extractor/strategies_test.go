package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"reelgrab/pkg/auth"
	"reelgrab/pkg/config"
	"reelgrab/pkg/errors"
	"reelgrab/pkg/extractor/markup"
	"reelgrab/pkg/instagram"
	"reelgrab/pkg/logger"
)

type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func htmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": {"text/html"}},
	}
}

func stubClient(t *testing.T, status int, body string, seen *http.Request) *http.Client {
	t.Helper()
	return &http.Client{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		if seen != nil {
			*seen = *req.Clone(req.Context())
		}
		resp := htmlResponse(status, body)
		resp.Request = req
		return resp, nil
	}}}
}

var testRef = instagram.Reference{SourceURL: "https://www.instagram.com/reel/Cxyz123/", Shortcode: "Cxyz123"}

func TestParsePostPageUnescapes(t *testing.T) {
	page := `<script>{"video_url":"https:\/\/cdn.example\/v.mp4","display_url":"https:\/\/cdn.example\/t.jpg"}</script>`
	res := ParsePostPage(page)
	require.NotNil(t, res)
	assert.Equal(t, "https://cdn.example/v.mp4", res.VideoURL)
	assert.Equal(t, "https://cdn.example/t.jpg", res.ThumbnailOrEmpty())
	assert.Equal(t, instagram.DefaultTitle, res.Title)
}

func TestParsePostPagePatternOrder(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			name: "playback_url",
			page: `{"playback_url":"https:\/\/cdn.example\/p.mp4?x=1\u0026y=2"}`,
			want: "https://cdn.example/p.mp4?x=1&y=2",
		},
		{
			name: "double escaped video_url",
			page: `{\"video_url\":\"https:\\/\\/cdn.example\\/d.mp4\"}`,
			want: "https://cdn.example/d.mp4",
		},
		{
			name: "ld+json contentUrl",
			page: `<script type="application/ld+json">{"contentUrl":"https://cdn.example/ld.mp4"}</script>`,
			want: "https://cdn.example/ld.mp4",
		},
		{
			name: "og:video",
			page: `<meta property="og:video" content="https://cdn.example/og.mp4" />`,
			want: "https://cdn.example/og.mp4",
		},
		{
			name: "og:video:secure_url",
			page: `<meta property="og:video:secure_url" content="https://cdn.example/secure.mp4" />`,
			want: "https://cdn.example/secure.mp4",
		},
		{
			name: "non mp4 match falls through",
			page: `{"video_url":"https:\/\/cdn.example\/manifest.mpd"}<meta property="og:video" content="https://cdn.example/og.mp4" />`,
			want: "https://cdn.example/og.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParsePostPage(tt.page)
			require.NotNil(t, res)
			assert.Equal(t, tt.want, res.VideoURL)
		})
	}

	assert.Nil(t, ParsePostPage(`<html><title>Login • Instagram</title></html>`))
}

func TestPageScrapeAttempt(t *testing.T) {
	var seen http.Request
	p := NewPageScrape(config.ScrapeConfig{Timeout: 5 * time.Second}, logger.NewNopLogger())
	p.Client().SetHTTPClient(stubClient(t, http.StatusOK, `{"video_url":"https:\/\/cdn.example\/v.mp4"}`, &seen))

	res, err := p.Attempt(context.Background(), testRef)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/v.mp4", res.VideoURL)
	assert.Nil(t, res.Thumbnail)

	assert.Equal(t, "https://www.instagram.com/p/Cxyz123/", seen.URL.String())
	assert.Equal(t, instagram.MobileUserAgent, seen.Header.Get("User-Agent"))
	assert.Equal(t, "document", seen.Header.Get("Sec-Fetch-Dest"))
	assert.Equal(t, "navigate", seen.Header.Get("Sec-Fetch-Mode"))
	assert.Equal(t, "none", seen.Header.Get("Sec-Fetch-Site"))
	assert.Equal(t, instagram.Referer, seen.Header.Get("Referer"))
}

func TestPageScrapeFailures(t *testing.T) {
	p := NewPageScrape(config.ScrapeConfig{Timeout: 5 * time.Second}, logger.NewNopLogger())

	p.Client().SetHTTPClient(stubClient(t, http.StatusOK, "<html>login</html>", nil))
	_, err := p.Attempt(context.Background(), testRef)
	assert.Equal(t, errors.ErrorTypeVideoNotFound, errors.TypeOf(err))

	p.Client().SetHTTPClient(stubClient(t, http.StatusTooManyRequests, "", nil))
	_, err = p.Attempt(context.Background(), testRef)
	assert.Equal(t, errors.ErrorTypeRateLimit, errors.TypeOf(err))
}

func TestEmbedAttempt(t *testing.T) {
	var seen http.Request
	e := NewEmbed(config.ScrapeConfig{Timeout: 5 * time.Second}, logger.NewNopLogger())
	e.Client().SetHTTPClient(stubClient(t, http.StatusOK,
		`window.__additionalDataLoaded('extra',{"video_url":"https:\/\/cdn.example\/e.mp4?a=1\u0026b=2"});`, &seen))

	res, err := e.Attempt(context.Background(), testRef)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/e.mp4?a=1&b=2", res.VideoURL)
	assert.Nil(t, res.Thumbnail)
	assert.Equal(t, "https://www.instagram.com/p/Cxyz123/embed/captioned/", seen.URL.String())
	assert.Equal(t, "text/html", seen.Header.Get("Accept"))

	e.Client().SetHTTPClient(stubClient(t, http.StatusOK, "<html>no video</html>", nil))
	_, err = e.Attempt(context.Background(), testRef)
	assert.Equal(t, errors.ErrorTypeVideoNotFound, errors.TypeOf(err))
}

func TestSessionCookiesAttached(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Extraction.Strategies = []string{config.StrategyPage, config.StrategyEmbed}

	o, err := Build(cfg, &auth.Session{SessionID: "sess123", CSRFToken: "csrf456"}, logger.NewNopLogger())
	require.NoError(t, err)

	for _, s := range o.strategies {
		var c *instagram.Client
		switch v := s.(type) {
		case *PageScrape:
			c = v.Client()
		case *Embed:
			c = v.Client()
		}
		require.NotNil(t, c)
		assert.Equal(t, "sessionid=sess123; csrftoken=csrf456", c.Header("Cookie"))
		assert.Equal(t, "csrf456", c.Header("X-CSRFToken"))
	}
}

func TestBuild(t *testing.T) {
	cfg := config.DefaultConfig()
	o, err := Build(cfg, nil, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"thirdparty", "page", "embed"}, o.Strategies())

	cfg.Extraction.Strategies = []string{config.StrategyBrowser}
	o, err = Build(cfg, nil, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"browser"}, o.Strategies())

	cfg.Browser.CandidatePolicy = "longest"
	_, err = Build(cfg, nil, logger.NewNopLogger())
	assert.Error(t, err)
	cfg.Browser.CandidatePolicy = "first-seen"

	cfg.Extraction.Strategies = []string{"carrier-pigeon"}
	_, err = Build(cfg, nil, logger.NewNopLogger())
	assert.Error(t, err)

	cfg.Extraction.Strategies = nil
	_, err = Build(cfg, nil, logger.NewNopLogger())
	assert.Error(t, err)

	cfg.Extraction.Strategies = []string{config.StrategyThirdParty}
	cfg.ThirdParty.Parser = "xpath"
	_, err = Build(cfg, nil, logger.NewNopLogger())
	assert.Error(t, err)
}

const downloaderFragment = `<ul class="download-box"><li><div class="download-items__thumb">` +
	`<img src="https://cdn.saveig.app/thumb.jpg" class="download-items__thumb-img"></div>` +
	`<div class="download-items__btn"><a href="https://dl.saveig.app/v.mp4?token=abc&amp;dl=1" title="Download Video">Download</a></div></li></ul>`

func TestThirdPartyAttempt(t *testing.T) {
	for _, parser := range []string{"regex", "dom"} {
		t.Run(parser, func(t *testing.T) {
			var form map[string][]string
			var headers http.Header
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.NoError(t, r.ParseForm())
				form = r.PostForm
				headers = r.Header.Clone()
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"status": "ok", "data": downloaderFragment})
			}))
			defer srv.Close()

			p, err := markup.New(parser)
			require.NoError(t, err)
			tp := NewThirdParty(config.ThirdPartyConfig{
				Endpoint: srv.URL + "/api/ajaxSearch",
				Origin:   "https://saveig.app",
				Timeout:  5 * time.Second,
			}, p, logger.NewNopLogger())

			res, err := tp.Attempt(context.Background(), testRef)
			require.NoError(t, err)
			assert.Equal(t, "https://dl.saveig.app/v.mp4?token=abc&dl=1", res.VideoURL)
			assert.Equal(t, "https://cdn.saveig.app/thumb.jpg", res.ThumbnailOrEmpty())

			assert.Equal(t, []string{testRef.SourceURL}, form["q"])
			assert.Equal(t, []string{"media"}, form["t"])
			assert.Equal(t, []string{"en"}, form["lang"])
			assert.Equal(t, "XMLHttpRequest", headers.Get("X-Requested-With"))
			assert.Equal(t, "https://saveig.app", headers.Get("Origin"))
			assert.Equal(t, "https://saveig.app/en", headers.Get("Referer"))
			assert.Equal(t, "*/*", headers.Get("Accept"))
			assert.Equal(t, "application/x-www-form-urlencoded; charset=UTF-8", headers.Get("Content-Type"))
		})
	}
}

func TestThirdPartyFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType errors.ErrorType
	}{
		{"server error", http.StatusInternalServerError, `{}`, errors.ErrorTypeServerError},
		{"not json", http.StatusOK, `<html>cloudflare</html>`, errors.ErrorTypeParsing},
		{"missing data", http.StatusOK, `{"status":"error","mess":"private"}`, errors.ErrorTypeVideoNotFound},
		{"no link", http.StatusOK, `{"data":"<p>Sorry, this media is private.</p>"}`, errors.ErrorTypeVideoNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tp := NewThirdParty(config.ThirdPartyConfig{Endpoint: srv.URL, Timeout: 5 * time.Second}, nil, logger.NewNopLogger())
			res, err := tp.Attempt(context.Background(), testRef)
			assert.Nil(t, res)
			assert.Equal(t, tt.wantType, errors.TypeOf(err))
		})
	}
}

func TestCleanEscapedURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`https:\/\/cdn.example\/v.mp4`, "https://cdn.example/v.mp4"},
		{`https://cdn.example/v.mp4?a=1\u0026b=2`, "https://cdn.example/v.mp4?a=1&b=2"},
		{`https:\\/\\/cdn.example\\/v.mp4`, "https://cdn.example/v.mp4"},
		{`https://cdn.example/v.mp4`, "https://cdn.example/v.mp4"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanEscapedURL(tt.in), tt.in)
	}
}
