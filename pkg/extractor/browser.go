package extractor

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/tidwall/gjson"
	"reelgrab/pkg/config"
	"reelgrab/pkg/errors"
	"reelgrab/pkg/instagram"
	"reelgrab/pkg/logger"
	"reelgrab/pkg/pacing"
)

var commonChromePaths = []string{
	"/usr/bin/google-chrome",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

type viewport struct {
	width, height int
}

var viewports = []viewport{
	{1920, 1080},
	{1680, 1050},
	{1536, 864},
	{1440, 900},
	{1366, 768},
}

const hideWebdriverJS = `() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
}`

// pageMetadataJS collects thumbnail and caption from the rendered page. The
// <video> src is only read when the network listener saw nothing, and the
// display_url sweep is a last resort limited to Instagram CDNs.
const pageMetadataJS = `(noCandidates) => {
	const out = { thumbnail: "", caption: "", videoSrc: "" };
	for (const s of document.querySelectorAll('script[type="application/ld+json"]')) {
		try {
			const d = JSON.parse(s.textContent);
			const items = Array.isArray(d) ? d : [d];
			for (const it of items) {
				if (!out.thumbnail && it.thumbnailUrl) {
					out.thumbnail = Array.isArray(it.thumbnailUrl) ? it.thumbnailUrl[0] : it.thumbnailUrl;
				}
				if (!out.caption && (it.caption || it.description)) {
					out.caption = it.caption || it.description;
				}
			}
		} catch (e) {}
	}
	if (!out.thumbnail) {
		const og = document.querySelector('meta[property="og:image"]');
		if (og) out.thumbnail = og.getAttribute('content') || "";
	}
	if (!out.caption) {
		const m = document.documentElement.innerHTML.match(/"caption":\{"text":"([^"]*)"/);
		if (m) out.caption = m[1];
	}
	if (noCandidates) {
		const v = document.querySelector('video');
		if (v) out.videoSrc = v.currentSrc || v.src || "";
	}
	if (!out.thumbnail) {
		const m = document.documentElement.innerHTML.match(/"display_url":"(https:[^"]*(?:cdninstagram|fbcdn)[^"]*)"/);
		if (m) out.thumbnail = m[1];
	}
	return JSON.stringify(out);
}`

// pageMetadata is what the in-page script reports
type pageMetadata struct {
	Thumbnail string
	Caption   string
	VideoSrc  string
}

func parsePageMetadata(raw string) (pageMetadata, error) {
	if !gjson.Valid(raw) {
		return pageMetadata{}, errors.New(errors.ErrorTypeParsing, "page metadata is not JSON")
	}
	res := gjson.GetMany(raw, "thumbnail", "caption", "videoSrc")
	return pageMetadata{
		Thumbnail: CleanEscapedURL(res[0].String()),
		Caption:   res[1].String(),
		VideoSrc:  res[2].String(),
	}, nil
}

// defaultBrowserTimeout bounds an attempt when the config leaves Timeout unset
const defaultBrowserTimeout = 90 * time.Second

// launchFunc starts a browser process and returns its DevTools URL. release
// stops the process and removes its profile; it is nil when err is non-nil.
type launchFunc func(ctx context.Context) (controlURL string, release func(), err error)

// connectFunc attaches to a launched browser
type connectFunc func(ctx context.Context, controlURL string) (*rod.Browser, error)

// Browser drives a headless Chromium instance, records every mp4 response the
// post page loads and picks one according to its CandidatePolicy.
type Browser struct {
	cfg     config.BrowserConfig
	policy  CandidatePolicy
	logger  logger.Logger
	rng     *rand.Rand
	launch  launchFunc
	connect connectFunc
	postURL func(shortcode string) string
}

// BrowserOption configures a Browser
type BrowserOption func(*Browser)

// WithCandidatePolicy replaces the default ShortestURL policy
func WithCandidatePolicy(p CandidatePolicy) BrowserOption {
	return func(b *Browser) {
		if p != nil {
			b.policy = p
		}
	}
}

// NewBrowser creates the headless browser strategy
func NewBrowser(cfg config.BrowserConfig, log logger.Logger, opts ...BrowserOption) *Browser {
	if log == nil {
		log = logger.GetLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultBrowserTimeout
	}
	b := &Browser{
		cfg:     cfg,
		policy:  ShortestURL{},
		logger:  log,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		postURL: instagram.PostURL,
	}
	b.launch = b.launchChromium
	b.connect = connectBrowser
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Browser) Name() string { return config.StrategyBrowser }

func (b *Browser) Attempt(ctx context.Context, ref instagram.Reference) (result *instagram.Result, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	// Registered first so it runs after every release below.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errors.Newf(errors.ErrorTypeStrategyFailure, "browser session panicked: %v", r)
		}
	}()

	controlURL, release, err := b.launch(attemptCtx)
	if err != nil {
		return nil, b.failure(attemptCtx, err, "failed to launch browser")
	}
	defer release()

	browser, err := b.connect(attemptCtx, controlURL)
	if err != nil {
		return nil, b.failure(attemptCtx, err, "failed to connect to browser")
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, b.failure(attemptCtx, err, "failed to open page")
	}
	defer page.Close()

	if err := b.preparePage(page); err != nil {
		return nil, err
	}

	candidates := newCandidateSet()
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return nil, b.failure(attemptCtx, err, "failed to enable network events")
	}
	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) {
		if e.Response == nil {
			return
		}
		if isVideoResponse(e.Response.MIMEType, e.Response.URL) && candidates.add(e.Response.URL) {
			b.logger.DebugWithFields("Intercepted video response", map[string]interface{}{
				"shortcode": ref.Shortcode,
				"mime":      e.Response.MIMEType,
			})
		}
	})
	go wait()

	idle := page.Timeout(b.cfg.IdleTimeout).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)
	if err := page.Navigate(b.postURL(ref.Shortcode)); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "navigation failed")
	}
	idle()

	if err := pacing.Wait(attemptCtx, b.cfg.SettleDelay); err != nil {
		return nil, b.failure(attemptCtx, err, "browser attempt interrupted")
	}

	found := candidates.snapshot()
	obj, err := page.Eval(pageMetadataJS, len(found) == 0)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParsing, "failed to read page metadata")
	}
	meta, err := parsePageMetadata(obj.Value.Str())
	if err != nil {
		return nil, err
	}
	if meta.Caption != "" {
		b.logger.DebugWithFields("Caption found", map[string]interface{}{
			"shortcode": ref.Shortcode,
			"caption":   truncate(meta.Caption, 80),
		})
	}

	videoURL := chooseVideo(b.policy, found, meta.VideoSrc)
	if videoURL == "" {
		return nil, errors.New(errors.ErrorTypeVideoNotFound, "no video response observed")
	}

	b.logger.InfoWithFields("Browser picked video", map[string]interface{}{
		"shortcode":  ref.Shortcode,
		"candidates": len(found),
		"policy":     b.policy.Name(),
	})
	return instagram.NewResult(videoURL, meta.Thumbnail), nil
}

// failure wraps err as a strategy failure, naming the deadline when it expired
func (b *Browser) failure(ctx context.Context, err error, msg string) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		msg = fmt.Sprintf("%s: attempt exceeded %s", msg, b.cfg.Timeout)
	}
	return errors.Wrap(err, errors.ErrorTypeStrategyFailure, msg)
}

func (b *Browser) launchChromium(ctx context.Context) (string, func(), error) {
	l := b.newLauncher().Context(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		if l.PID() != 0 {
			// Launch already killed the process; drop its profile once it exits.
			go l.Cleanup()
		}
		return "", nil, err
	}
	return controlURL, func() {
		l.Kill()
		l.Cleanup()
	}, nil
}

func connectBrowser(ctx context.Context, controlURL string) (*rod.Browser, error) {
	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, err
	}
	return browser, nil
}

func (b *Browser) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(b.cfg.Headless).
		NoSandbox(b.cfg.NoSandbox).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")

	if bin := resolveChromeBin(b.cfg.Bin); bin != "" {
		l = l.Bin(bin)
	}
	if b.cfg.Proxy != "" {
		l = l.Proxy(b.cfg.Proxy)
	}
	return l
}

func (b *Browser) preparePage(page *rod.Page) error {
	ua := instagram.DesktopUserAgents[b.rng.Intn(len(instagram.DesktopUserAgents))]
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      ua,
		AcceptLanguage: "en-US,en;q=0.9",
	}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStrategyFailure, "failed to set user agent")
	}

	vp := viewports[b.rng.Intn(len(viewports))]
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.width,
		Height:            vp.height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStrategyFailure, "failed to set viewport")
	}

	if _, err := page.EvalOnNewDocument(hideWebdriverJS); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStrategyFailure, "failed to install init script")
	}
	return nil
}

// resolveChromeBin picks the browser binary: explicit config, CHROME_PATH,
// a well-known install location, then whatever the launcher can find.
// An empty result lets the launcher download its own build.
func resolveChromeBin(configured string) string {
	if configured != "" {
		return configured
	}
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, p := range commonChromePaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if p, ok := launcher.LookPath(); ok {
		return p
	}
	return ""
}

// chooseVideo applies policy to the intercepted candidates and falls back to
// the page's own <video> src when nothing was intercepted
func chooseVideo(policy CandidatePolicy, candidates []string, videoSrc string) string {
	if picked := policy.Choose(candidates); picked != "" {
		return picked
	}
	if strings.HasPrefix(videoSrc, "http") {
		return videoSrc
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return fmt.Sprintf("%s...", string(r[:n]))
}
