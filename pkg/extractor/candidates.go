package extractor

import (
	"fmt"
	"strings"
	"sync"
)

// CandidatePolicy picks the video URL to return from everything the browser
// intercepted. Candidates arrive in observation order.
type CandidatePolicy interface {
	Name() string
	Choose(candidates []string) string
}

// ShortestURL picks the shortest candidate; ties go to the first observed.
type ShortestURL struct{}

func (ShortestURL) Name() string { return "shortest-url" }

func (ShortestURL) Choose(candidates []string) string {
	best := ""
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if best == "" || len(c) < len(best) {
			best = c
		}
	}
	return best
}

// FirstSeen picks the earliest intercepted candidate
type FirstSeen struct{}

func (FirstSeen) Name() string { return "first-seen" }

func (FirstSeen) Choose(candidates []string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// PolicyByName resolves a configured policy name; empty means ShortestURL
func PolicyByName(name string) (CandidatePolicy, error) {
	switch name {
	case "", ShortestURL{}.Name():
		return ShortestURL{}, nil
	case FirstSeen{}.Name():
		return FirstSeen{}, nil
	default:
		return nil, fmt.Errorf("unknown candidate policy %q", name)
	}
}

// candidateSet collects unique URLs from concurrent event callbacks
type candidateSet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

func newCandidateSet() *candidateSet {
	return &candidateSet{seen: make(map[string]struct{})}
}

func (c *candidateSet) add(u string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[u]; ok {
		return false
	}
	c.seen[u] = struct{}{}
	c.order = append(c.order, u)
	return true
}

func (c *candidateSet) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *candidateSet) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// isVideoResponse reports whether an intercepted response carries mp4 media
func isVideoResponse(mimeType, u string) bool {
	return strings.Contains(strings.ToLower(mimeType), "video/mp4") || strings.Contains(u, ".mp4")
}
