package extractor

import (
	"context"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"reelgrab/pkg/config"
	"reelgrab/pkg/errors"
	"reelgrab/pkg/extractor/markup"
	"reelgrab/pkg/instagram"
	"reelgrab/pkg/logger"
)

// ThirdParty delegates extraction to a public downloader site that answers
// with a JSON envelope whose "data" field is an HTML fragment.
type ThirdParty struct {
	client   *instagram.Client
	endpoint string
	parser   markup.Parser
	timeout  time.Duration
	logger   logger.Logger
}

// NewThirdParty creates the downloader-site strategy
func NewThirdParty(cfg config.ThirdPartyConfig, parser markup.Parser, log logger.Logger) *ThirdParty {
	if log == nil {
		log = logger.GetLogger()
	}
	if parser == nil {
		parser = markup.RegexParser{}
	}

	client := instagram.NewClient(cfg.Timeout, log)
	origin := cfg.Origin
	if origin == "" {
		if u, err := url.Parse(cfg.Endpoint); err == nil {
			origin = u.Scheme + "://" + u.Host
		}
	}
	client.SetHeaders(map[string]string{
		"User-Agent":       instagram.MobileUserAgent,
		"Accept":           "*/*",
		"X-Requested-With": "XMLHttpRequest",
		"Origin":           origin,
		"Referer":          origin + "/en",
	})

	return &ThirdParty{
		client:   client,
		endpoint: cfg.Endpoint,
		parser:   parser,
		timeout:  cfg.Timeout,
		logger:   log,
	}
}

func (t *ThirdParty) Name() string { return config.StrategyThirdParty }

func (t *ThirdParty) Attempt(ctx context.Context, ref instagram.Reference) (*instagram.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body, err := t.client.PostForm(ctx, t.endpoint, url.Values{
		"q":    {ref.SourceURL},
		"t":    {"media"},
		"lang": {"en"},
	})
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, errors.New(errors.ErrorTypeParsing, "downloader response is not JSON")
	}
	fragment := gjson.GetBytes(body, "data")
	if fragment.Type != gjson.String || fragment.String() == "" {
		return nil, errors.New(errors.ErrorTypeVideoNotFound, "downloader response has no markup")
	}

	links, err := t.parser.Parse(fragment.String())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParsing, "downloader markup")
	}
	if links.Video == "" {
		return nil, errors.New(errors.ErrorTypeVideoNotFound, "no download link in downloader markup")
	}

	return instagram.NewResult(links.Video, links.Thumbnail), nil
}
