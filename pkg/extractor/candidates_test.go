package extractor

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"reelgrab/pkg/config"
)

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("")
	assert.NoError(t, err)
	assert.Equal(t, "shortest-url", p.Name())

	p, err = PolicyByName("first-seen")
	assert.NoError(t, err)
	assert.Equal(t, "first-seen", p.Name())

	_, err = PolicyByName("longest")
	assert.Error(t, err)
}

func TestWithCandidatePolicy(t *testing.T) {
	b := NewBrowser(config.BrowserConfig{}, nil)
	assert.Equal(t, "shortest-url", b.policy.Name())

	b = NewBrowser(config.BrowserConfig{}, nil, WithCandidatePolicy(FirstSeen{}))
	assert.Equal(t, "first-seen", b.policy.Name())

	b = NewBrowser(config.BrowserConfig{}, nil, WithCandidatePolicy(nil))
	assert.Equal(t, "shortest-url", b.policy.Name())
}

func TestShortestURLPrefersShortest(t *testing.T) {
	long := "https://scontent.cdninstagram.com/v/" + strings.Repeat("a", 120-len("https://scontent.cdninstagram.com/v/")-4) + ".mp4"
	short := "https://scontent.cdninstagram.com/v/" + strings.Repeat("b", 80-len("https://scontent.cdninstagram.com/v/")-4) + ".mp4"
	assert.Len(t, long, 120)
	assert.Len(t, short, 80)

	assert.Equal(t, short, ShortestURL{}.Choose([]string{long, short}))
	assert.Equal(t, short, ShortestURL{}.Choose([]string{short, long}))
}

func TestShortestURLTieKeepsFirstSeen(t *testing.T) {
	a := "https://cdn.example/aaaa.mp4"
	b := "https://cdn.example/bbbb.mp4"
	assert.Equal(t, a, ShortestURL{}.Choose([]string{a, b}))
	assert.Equal(t, "", ShortestURL{}.Choose(nil))
	assert.Equal(t, "", ShortestURL{}.Choose([]string{""}))
}

func TestFirstSeen(t *testing.T) {
	assert.Equal(t, "https://x/1.mp4", FirstSeen{}.Choose([]string{"", "https://x/1.mp4", "https://x/22.mp4"}))
	assert.Equal(t, "", FirstSeen{}.Choose(nil))
}

func TestCandidateSetConcurrentAdds(t *testing.T) {
	set := newCandidateSet()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			set.add(fmt.Sprintf("https://cdn.example/%d.mp4", i%10))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, set.size())
	assert.Len(t, set.snapshot(), 10)
	assert.False(t, set.add("https://cdn.example/3.mp4"))
}

func TestIsVideoResponse(t *testing.T) {
	assert.True(t, isVideoResponse("video/mp4", "https://cdn.example/stream"))
	assert.True(t, isVideoResponse("Video/MP4", "https://cdn.example/stream"))
	assert.True(t, isVideoResponse("application/octet-stream", "https://cdn.example/v.mp4?bytestart=0"))
	assert.False(t, isVideoResponse("image/jpeg", "https://cdn.example/t.jpg"))
}

func TestChooseVideoFallsBackToVideoSrc(t *testing.T) {
	assert.Equal(t, "https://cdn.example/a.mp4", chooseVideo(ShortestURL{}, []string{"https://cdn.example/a.mp4"}, "https://cdn.example/src.mp4"))
	assert.Equal(t, "https://cdn.example/src.mp4", chooseVideo(ShortestURL{}, nil, "https://cdn.example/src.mp4"))
	assert.Equal(t, "", chooseVideo(ShortestURL{}, nil, "blob:https://www.instagram.com/x"))
}

func TestParsePageMetadata(t *testing.T) {
	meta, err := parsePageMetadata(`{"thumbnail":"https:\\/\\/scontent.cdninstagram.com\\/t.jpg","caption":"sunset","videoSrc":""}`)
	assert.NoError(t, err)
	assert.Equal(t, "https://scontent.cdninstagram.com/t.jpg", meta.Thumbnail)
	assert.Equal(t, "sunset", meta.Caption)
	assert.Empty(t, meta.VideoSrc)

	_, err = parsePageMetadata("undefined")
	assert.Error(t, err)
}

func TestResolveChromeBin(t *testing.T) {
	assert.Equal(t, "/opt/chrome", resolveChromeBin("/opt/chrome"))

	t.Setenv("CHROME_PATH", "/from/env/chrome")
	assert.Equal(t, "/from/env/chrome", resolveChromeBin(""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
}
