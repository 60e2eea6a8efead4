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

var embedVideoPattern = regexp.MustCompile(`"video_url":"([^"]+)"`)

// Embed scrapes the captioned embed page, which is often served without a login wall
type Embed struct {
	client  *instagram.Client
	timeout time.Duration
}

// NewEmbed creates the embed page strategy
func NewEmbed(cfg config.ScrapeConfig, log logger.Logger) *Embed {
	client := instagram.NewClient(cfg.Timeout, log)
	client.SetHeader("Accept", "text/html")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Embed{client: client, timeout: cfg.Timeout}
}

// Client exposes the HTTP client so callers can attach a session
func (e *Embed) Client() *instagram.Client { return e.client }

func (e *Embed) Name() string { return config.StrategyEmbed }

func (e *Embed) Attempt(ctx context.Context, ref instagram.Reference) (*instagram.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	page, err := e.client.GetText(ctx, instagram.EmbedURL(ref.Shortcode))
	if err != nil {
		return nil, err
	}

	m := embedVideoPattern.FindStringSubmatch(page)
	if m == nil {
		return nil, errors.New(errors.ErrorTypeVideoNotFound, "no video_url in embed page")
	}
	return instagram.NewResult(CleanEscapedURL(m[1]), ""), nil
}
