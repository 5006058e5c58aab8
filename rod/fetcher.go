// Package rod fetches pages through a headless Chrome browser, for sites
// that assemble their content with scripts or frames.
package rod

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fwojciec/kura"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Ensure Fetcher implements kura.Fetcher at compile time.
var _ kura.Fetcher = (*Fetcher)(nil)

// DefaultFetchTimeout bounds a single navigation.
const DefaultFetchTimeout = 30 * time.Second

// DefaultRecycleAfter is the number of pages one browser serves before it
// is replaced.
const DefaultRecycleAfter = 100

// minPagesPerWorker keeps recycling rare when many workers share a browser.
const minPagesPerWorker = 25

// RecycleInterval returns how many pages a browser should serve during a
// crawl of at most maxPages pages (0 for no limit) run by concurrency
// workers. Zero means the browser is never replaced.
func RecycleInterval(maxPages, concurrency int) int {
	n := max(DefaultRecycleAfter, minPagesPerWorker*concurrency)
	if maxPages > 0 && maxPages <= n {
		return 0
	}
	return n
}

// Fetcher retrieves rendered HTML from URLs using Chrome browser automation.
// The returned bytes are the serialized DOM, which Chrome has already
// decoded to UTF-8.
//
// Chrome's resident memory grows over a long crawl even when every page is
// closed, so the browser is relaunched after recycleAfter pages. A relaunch
// only happens while no page is open, so concurrent fetches never lose
// their tab.
//
// Fetcher is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	fetchTimeout time.Duration
	recycleAfter int

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	served   int
	open     int
	closed   bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithFetchTimeout sets the timeout for a single fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.fetchTimeout = d
	}
}

// WithRecycleAfter relaunches the browser after n pages. Zero disables
// recycling.
func WithRecycleAfter(n int) Option {
	return func(f *Fetcher) {
		f.recycleAfter = n
	}
}

// NewFetcher launches a headless Chrome browser.
// Close must be called when the Fetcher is no longer needed.
//
// Returns ETRANSPORT if Chrome/Chromium cannot be found or launched.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		fetchTimeout: DefaultFetchTimeout,
		recycleAfter: DefaultRecycleAfter,
	}
	for _, opt := range opts {
		opt(f)
	}

	browser, l, err := launch()
	if err != nil {
		return nil, err
	}
	f.browser, f.launcher = browser, l
	return f, nil
}

// Fetch navigates to the URL and returns the rendered HTML.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := f.acquire()
	if err != nil {
		return nil, err
	}
	served := false
	defer func() { f.release(served) }()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, kura.Errorf(kura.ETRANSPORT, "open page: %v", err)
	}
	defer page.Close()

	ctx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
	defer cancel()
	page = page.Context(ctx)

	if err := page.Navigate(url); err != nil {
		return nil, fetchError(ctx, url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fetchError(ctx, url, err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fetchError(ctx, url, err)
	}
	served = true

	return []byte(html), nil
}

// Close shuts the browser down. Close is safe to call multiple times.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	return f.shutdown()
}

// LauncherPID returns the process ID of the current browser launcher, or 0
// once closed.
func (f *Fetcher) LauncherPID() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.launcher == nil {
		return 0
	}
	return f.launcher.PID()
}

// acquire returns the browser for one fetch, relaunching it first when it
// is due and idle. A failed relaunch keeps the old browser and is retried
// on the next fetch.
func (f *Fetcher) acquire() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, kura.Errorf(kura.EINVALID, "fetcher is closed")
	}
	if f.recycleAfter > 0 && f.served >= f.recycleAfter && f.open == 0 {
		if browser, l, err := launch(); err == nil {
			_ = f.shutdown()
			f.browser, f.launcher, f.served = browser, l, 0
		}
	}
	f.open++
	return f.browser, nil
}

func (f *Fetcher) release(served bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.open--
	if served {
		f.served++
	}
}

// shutdown closes the current browser and kills its launcher.
// Must be called with mu held.
func (f *Fetcher) shutdown() error {
	var err error
	if f.browser != nil {
		err = f.browser.Close()
		f.browser = nil
	}
	if f.launcher != nil {
		f.launcher.Kill()
		f.launcher = nil
	}
	return err
}

// launch starts a headless browser with flags that keep background tabs
// from being throttled.
func launch() (*rod.Browser, *launcher.Launcher, error) {
	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Set("disable-hang-monitor").
		Leakless(true).
		Headless(true)

	u, err := l.Launch()
	if err != nil {
		return nil, nil, kura.Errorf(kura.ETRANSPORT, "launch browser: %v", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, nil, kura.Errorf(kura.ETRANSPORT, "connect to browser: %v", err)
	}
	return browser, l, nil
}

// fetchError keeps context errors matchable with errors.Is and reports
// everything else as a transport failure.
func fetchError(ctx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("fetch %s: %w", url, ctxErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	return kura.Errorf(kura.ETRANSPORT, "fetch %s: %v", url, err)
}
