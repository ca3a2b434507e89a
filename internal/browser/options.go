package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/nexconsult/adres-api/internal/extraction"
)

// DefaultUserAgent is sent by every browser the service starts.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"

// Options configures a Chrome process.
type Options struct {
	Headless  bool
	UserAgent string
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
}

// AllocatorOptions returns the chromedp flags used for ADRES lookups.
func AllocatorOptions(o Options) []chromedp.ExecAllocatorOption {
	ua := o.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-features", "TranslateUI"),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(ua),
	}
	if o.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	return opts
}

// Launch starts a Chrome process and returns a driver on its first tab.
// cancel stops the process.
func Launch(parent context.Context, o Options, logger *logrus.Logger) (*ChromeDriver, context.CancelFunc, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, AllocatorOptions(o)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	d, err := NewChromeDriver(tabCtx, logger)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("launch chrome: %w", err)
	}
	return d, cancel, nil
}

// Selector renders a query as a CSS selector.
func Selector(q extraction.Query) string {
	switch q.Kind {
	case extraction.QueryID:
		return `[id="` + cssEscape(q.Value) + `"]`
	case extraction.QueryName:
		return `[name="` + cssEscape(q.Value) + `"]`
	default:
		return q.Value
	}
}

func cssEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// MergeOrder keeps the first-seen order of window handles: handles that
// vanished are dropped and new ones are appended in the order given.
func MergeOrder(order, current []string) []string {
	alive := make(map[string]bool, len(current))
	for _, h := range current {
		alive[h] = true
	}

	out := make([]string, 0, len(current))
	seen := make(map[string]bool, len(current))
	for _, h := range order {
		if alive[h] {
			out = append(out, h)
			seen[h] = true
		}
	}
	for _, h := range current {
		if !seen[h] {
			out = append(out, h)
			seen[h] = true
		}
	}
	return out
}

// SameDocument reports whether a frame target URL is the document an
// iframe src points at. Relative sources match on path and query.
func SameDocument(targetURL, src string) bool {
	if src == "" {
		return false
	}
	if targetURL == src {
		return true
	}
	t, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	s, err := url.Parse(src)
	if err != nil {
		return false
	}
	if s.IsAbs() && !strings.EqualFold(s.Host, t.Host) {
		return false
	}
	return strings.EqualFold(t.Path, s.Path) && (s.RawQuery == "" || t.RawQuery == s.RawQuery)
}
