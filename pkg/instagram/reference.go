package instagram

import (
	"net/url"
	"regexp"
	"strings"

	"reelgrab/pkg/errors"
)

// DefaultTitle is the title reported for every extracted reel
const DefaultTitle = "Instagram Reel"

var shortcodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`instagram\.com/(?:p|reel|reels)/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`instagram\.com/tv/([A-Za-z0-9_-]+)`),
}

// Reference identifies the reel a request is about. It is immutable once parsed.
type Reference struct {
	SourceURL string
	Shortcode string
}

// ParseReelURL validates that raw points into Instagram's post, reel or tv
// namespace and extracts the shortcode. It performs no network access.
func ParseReelURL(raw string) (Reference, error) {
	raw = strings.TrimSpace(raw)

	if !strings.Contains(raw, "instagram.com") {
		return Reference{}, errors.New(errors.ErrorTypeInvalidDomain, errors.MsgInvalidDomain)
	}

	for _, re := range shortcodePatterns {
		if m := re.FindStringSubmatch(raw); m != nil {
			return Reference{SourceURL: raw, Shortcode: m[1]}, nil
		}
	}

	return Reference{}, errors.New(errors.ErrorTypeUnrecognizedFormat, errors.MsgUnrecognizedFormat)
}

// Result is the output of a successful extraction
type Result struct {
	VideoURL  string  `json:"video_url"`
	Title     string  `json:"title"`
	Thumbnail *string `json:"thumbnail"`
}

// NewResult builds a Result with the default title; an empty thumbnail serialises as null
func NewResult(videoURL, thumbnail string) *Result {
	r := &Result{VideoURL: videoURL, Title: DefaultTitle}
	if thumbnail != "" {
		r.Thumbnail = &thumbnail
	}
	return r
}

// ThumbnailOrEmpty returns the thumbnail URL or ""
func (r *Result) ThumbnailOrEmpty() string {
	if r == nil || r.Thumbnail == nil {
		return ""
	}
	return *r.Thumbnail
}

// ValidateVideoURL checks that u is an absolute http(s) URL with a host
func ValidateVideoURL(u string) error {
	if u == "" {
		return errors.New(errors.ErrorTypeVideoNotFound, "empty video URL")
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeParsing, "malformed video URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.Newf(errors.ErrorTypeParsing, "video URL scheme %q is not http(s)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New(errors.ErrorTypeParsing, "video URL has no host")
	}
	return nil
}
