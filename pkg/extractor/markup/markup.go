// Package markup extracts download links from the HTML fragment returned by
// third-party downloader sites. The format is not under our control, so the
// parsing is behind an interface and can be swapped from configuration.
package markup

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Links holds what a downloader fragment offers for one reel
type Links struct {
	Video     string
	Thumbnail string
}

// Parser pulls Links out of a markup fragment
type Parser interface {
	Parse(fragment string) (Links, error)
}

// New returns the parser registered under name ("regex" or "dom")
func New(name string) (Parser, error) {
	switch name {
	case "", "regex":
		return RegexParser{}, nil
	case "dom":
		return DOMParser{}, nil
	default:
		return nil, fmt.Errorf("unknown markup parser %q", name)
	}
}

var (
	downloadHref = regexp.MustCompile(`(?i)href="([^"]+)"[^>]*download`)
	thumbSrc     = regexp.MustCompile(`(?i)src="([^"]+)"[^>]*class="[^"]*thumb`)
)

// RegexParser matches the first href followed by a "download" marker in the
// same tag, and the first img src followed by a thumb class.
type RegexParser struct{}

func (RegexParser) Parse(fragment string) (Links, error) {
	var links Links
	if m := downloadHref.FindStringSubmatch(fragment); m != nil {
		links.Video = html.UnescapeString(m[1])
	}
	if m := thumbSrc.FindStringSubmatch(fragment); m != nil {
		links.Thumbnail = html.UnescapeString(m[1])
	}
	return links, nil
}

// DOMParser walks the fragment with goquery. An anchor counts as a download
// link when any attribute other than href mentions "download".
type DOMParser struct{}

func (DOMParser) Parse(fragment string) (Links, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return Links{}, fmt.Errorf("parse markup: %w", err)
	}

	var links Links
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !mentionsDownload(s) {
			return true
		}
		links.Video = strings.TrimSpace(s.AttrOr("href", ""))
		return links.Video == ""
	})

	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(s.AttrOr("class", "")), "thumb") {
			return true
		}
		links.Thumbnail = strings.TrimSpace(s.AttrOr("src", ""))
		return links.Thumbnail == ""
	})

	return links, nil
}

func mentionsDownload(s *goquery.Selection) bool {
	if len(s.Nodes) == 0 {
		return false
	}
	for _, attr := range s.Nodes[0].Attr {
		if attr.Key == "href" {
			continue
		}
		if strings.Contains(strings.ToLower(attr.Key), "download") ||
			strings.Contains(strings.ToLower(attr.Val), "download") {
			return true
		}
	}
	return false
}
