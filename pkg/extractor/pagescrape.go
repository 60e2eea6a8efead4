package extractor

import (
	"context"
	"regexp"
	"time"

	"reelgrab/pkg/config"
	"reelgrab/pkg/errors"
	"reelgrab/pkg/instagram"
	"reelgrab/pkg/logger"
)

// postPagePatterns are tried in order against the post page markup
var postPagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`"video_url":"([^"]+)"`),
	regexp.MustCompile(`"playback_url":"([^"]+)"`),
	regexp.MustCompile(`\\"video_url\\":\\"([^"]+)\\"`),
	regexp.MustCompile(`"contentUrl":"([^"]+)"`),
	regexp.MustCompile(`<meta property="og:video" content="([^"]+)"`),
	regexp.MustCompile(`<meta property="og:video:secure_url" content="([^"]+)"`),
}

var displayURLPattern = regexp.MustCompile(`"display_url":"([^"]+)"`)

// PageScrape fetches the public post page and searches the embedded JSON and
// Open Graph tags for a video URL.
type PageScrape struct {
	client  *instagram.Client
	timeout time.Duration
}

// NewPageScrape creates the post page strategy
func NewPageScrape(cfg config.ScrapeConfig, log logger.Logger) *PageScrape {
	client := instagram.NewClient(cfg.Timeout, log)
	client.SetHeaders(map[string]string{
		"Sec-Fetch-Dest": "document",
		"Sec-Fetch-Mode": "navigate",
		"Sec-Fetch-Site": "none",
	})
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &PageScrape{client: client, timeout: cfg.Timeout}
}

// Client exposes the HTTP client so callers can attach a session
func (p *PageScrape) Client() *instagram.Client { return p.client }

func (p *PageScrape) Name() string { return config.StrategyPage }

func (p *PageScrape) Attempt(ctx context.Context, ref instagram.Reference) (*instagram.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	page, err := p.client.GetText(ctx, instagram.PostURL(ref.Shortcode))
	if err != nil {
		return nil, err
	}

	result := ParsePostPage(page)
	if result == nil {
		return nil, errors.New(errors.ErrorTypeVideoNotFound, "no video URL in post page")
	}
	return result, nil
}

// ParsePostPage runs the ordered pattern list over a post page. The first
// cleaned match that is an http URL containing .mp4 wins; a non-matching
// candidate falls through to the next pattern.
func ParsePostPage(page string) *instagram.Result {
	for _, re := range postPagePatterns {
		m := re.FindStringSubmatch(page)
		if m == nil {
			continue
		}
		videoURL := CleanEscapedURL(m[1])
		if !looksLikeVideo(videoURL) {
			continue
		}

		var thumbnail string
		if tm := displayURLPattern.FindStringSubmatch(page); tm != nil {
			thumbnail = CleanEscapedURL(tm[1])
		}
		return instagram.NewResult(videoURL, thumbnail)
	}
	return nil
}
