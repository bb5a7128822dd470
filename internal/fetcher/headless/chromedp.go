// Package headless contains page fetchers that render markup in a headless
// browser before the relay extracts Open Graph tags from it.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/ogrelay/internal/relay"
)

const (
	defaultNavigationTimeout = 45 * time.Second
	defaultMetadataWait      = 3 * time.Second

	metadataSelector = `meta[property="og:title"], meta[name="og:title"]`
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// MetadataWait bounds how long a render waits for og:title once the
	// document head is ready. Pages without it are returned as rendered.
	MetadataWait time.Duration
}

// page is what one browser render produced.
type page struct {
	html     string
	location string
	document documentResponse
}

// documentResponse is the network response that delivered the page.
type documentResponse struct {
	status  int
	headers http.Header
	url     string
}

type renderFunc func(ctx context.Context, request relay.FetchRequest) (page, error)

// Fetcher implements relay.Fetcher with a headless Chrome tab per fetch.
type Fetcher struct {
	cfg     Config
	slots   chan struct{}
	render  renderFunc
	release func()
}

// NewChromedp starts a Chrome allocator and returns a fetcher rendering pages
// in it. Close stops the browser.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	f := newFetcher(cfg, nil, allocCancel)
	browser := &chromeRenderer{
		allocator:    allocCtx,
		userAgent:    f.cfg.UserAgent,
		metadataWait: f.cfg.MetadataWait,
	}
	f.render = browser.render
	return f, nil
}

func newFetcher(cfg Config, render renderFunc, release func()) *Fetcher {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.MetadataWait <= 0 {
		cfg.MetadataWait = defaultMetadataWait
	}
	var slots chan struct{}
	if cfg.MaxParallel > 0 {
		slots = make(chan struct{}, cfg.MaxParallel)
	}
	return &Fetcher{cfg: cfg, slots: slots, render: render, release: release}
}

// Close stops the browser.
func (f *Fetcher) Close() {
	if f.release != nil {
		f.release()
	}
}

// Fetch renders request.URL and returns the DOM with the status and headers
// of the document response. Non-2xx documents are responses, not errors.
func (f *Fetcher) Fetch(ctx context.Context, request relay.FetchRequest) (relay.FetchResponse, error) {
	if err := f.acquire(ctx); err != nil {
		return relay.FetchResponse{}, err
	}
	defer f.releaseSlot()

	renderCtx, cancel := context.WithTimeout(ctx, f.cfg.NavigationTimeout)
	defer cancel()

	start := time.Now()
	p, err := f.render(renderCtx, request)
	if err != nil {
		return relay.FetchResponse{}, fmt.Errorf("render %s: %w", request.URL, err)
	}
	return p.response(request.URL, time.Since(start)), nil
}

func (p page) response(requestURL string, elapsed time.Duration) relay.FetchResponse {
	status := p.document.status
	if status == 0 {
		// No document response seen, e.g. served from the browser cache.
		status = http.StatusOK
	}
	headers := p.document.headers
	if headers == nil {
		headers = http.Header{}
	}
	finalURL := p.location
	if finalURL == "" {
		finalURL = p.document.url
	}
	if finalURL == "" {
		finalURL = requestURL
	}
	return relay.FetchResponse{
		URL:        finalURL,
		StatusCode: status,
		Headers:    headers,
		Body:       []byte(p.html),
		Duration:   elapsed,
	}
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.slots == nil {
		return nil
	}
	select {
	case f.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) releaseSlot() {
	if f.slots != nil {
		<-f.slots
	}
}

type chromeRenderer struct {
	allocator    context.Context
	userAgent    string
	metadataWait time.Duration
}

// render opens a tab, loads the page, waits for og:title up to metadataWait,
// and reads the final location and DOM.
func (c *chromeRenderer) render(ctx context.Context, request relay.FetchRequest) (page, error) {
	tabCtx, closeTab := chromedp.NewContext(c.allocator)
	defer closeTab()

	// The tab hangs off the allocator, so the caller's deadline is tied in
	// through a derived context.
	runCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	doc := &documentRecorder{}
	chromedp.ListenTarget(runCtx, doc.observe)

	var p page
	err := chromedp.Run(runCtx,
		c.networkSetup(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady("head", chromedp.ByQuery),
		waitForMetadata(c.metadataWait),
		chromedp.Location(&p.location),
		chromedp.OuterHTML("html", &p.html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return page{}, fmt.Errorf("chromedp run: %w", ctx.Err())
		}
		return page{}, fmt.Errorf("chromedp run: %w", err)
	}
	p.document = doc.snapshot()
	return p, nil
}

// networkSetup applies the request's User-Agent through the emulation domain
// and sends the remaining headers as extra HTTP headers.
func (c *chromeRenderer) networkSetup(headers http.Header) chromedp.Action {
	userAgent, extra := splitUserAgent(c.userAgent, headers)
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if userAgent != "" {
			if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(extra) > 0 {
			if err := network.SetExtraHTTPHeaders(networkHeaders(extra)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// waitForMetadata waits up to wait for an og:title meta tag. Running out of
// time is not an error; the page is read as it stands.
func waitForMetadata(wait time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if wait <= 0 {
			return nil
		}
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		err := chromedp.WaitReady(metadataSelector, chromedp.ByQuery).Do(waitCtx)
		if err != nil && ctx.Err() == nil {
			return nil
		}
		return err
	})
}

// documentRecorder keeps the first document response of a tab. Iframes also
// load documents; the top-level one always arrives first.
type documentRecorder struct {
	mu   sync.Mutex
	seen bool
	doc  documentResponse
}

func (d *documentRecorder) observe(ev any) {
	event, ok := ev.(*network.EventResponseReceived)
	if !ok || event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen {
		return
	}
	d.seen = true
	d.doc = documentResponse{
		status:  int(event.Response.Status),
		headers: httpHeaders(event.Response.Headers),
		url:     event.Response.URL,
	}
}

func (d *documentRecorder) snapshot() documentResponse {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc := d.doc
	doc.headers = doc.headers.Clone()
	return doc
}

func httpHeaders(src network.Headers) http.Header {
	headers := http.Header{}
	for key, value := range src {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []any:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	return headers
}

func splitUserAgent(fallback string, headers http.Header) (string, http.Header) {
	if headers == nil {
		return fallback, nil
	}
	extra := headers.Clone()
	userAgent := fallback
	if v := extra.Get("User-Agent"); v != "" {
		userAgent = v
	}
	extra.Del("User-Agent")
	return userAgent, extra
}

func networkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			headers[key] = values[0]
		default:
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
