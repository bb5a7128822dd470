package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ogrelay/internal/metrics"
)

// Config holds the upstream endpoints and request headers used by the ladder.
type Config struct {
	OEmbedEndpoint  string
	ProxyBase       string
	MirrorHost      string
	PageUserAgent   string
	OEmbedUserAgent string
	Accept          string
	AcceptLanguage  string
}

// DefaultConfig returns the production upstreams.
func DefaultConfig() Config {
	return Config{
		OEmbedEndpoint:  "https://www.instagram.com/oembed/",
		ProxyBase:       "https://r.jina.ai/",
		MirrorHost:      "ddinstagram.com",
		PageUserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36",
		OEmbedUserAgent: "ogrelay/1.0",
		Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		AcceptLanguage:  "en-US,en;q=0.8",
	}
}

// MaxPageFetches is the most page fetches one lookup makes after oEmbed: one
// direct, two proxy, one mirror and two mirror-via-proxy.
const MaxPageFetches = 6

type retrieveFunc func(ctx context.Context, target string) (Result, bool, error)

type strategy struct {
	source   Source
	retrieve retrieveFunc
}

// Relay walks the strategy ladder for a normalized Instagram URL. It holds no
// per-request state and is safe for concurrent use.
type Relay struct {
	cfg        Config
	api        Fetcher
	pages      Fetcher
	logger     *zap.Logger
	strategies []strategy
}

// New builds a Relay. api serves the oEmbed lookup; pages serves the markup
// strategies and defaults to api when nil.
func New(cfg Config, api Fetcher, pages Fetcher, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pages == nil {
		pages = api
	}
	r := &Relay{
		cfg:    cfg,
		api:    api,
		pages:  pages,
		logger: logger,
	}
	r.strategies = []strategy{
		{source: SourceOEmbed, retrieve: r.tryOEmbed},
		{source: SourceHTML, retrieve: r.pageStrategy(SourceHTML, directCandidates)},
		{source: SourceMirror, retrieve: r.pageStrategy(SourceMirror, r.proxyCandidates)},
		{source: SourceDDInstagram, retrieve: r.pageStrategy(SourceDDInstagram, r.mirrorCandidates)},
		{source: SourceDDMirror, retrieve: r.pageStrategy(SourceDDMirror, r.mirrorProxyCandidates)},
	}
	return r
}

// Lookup runs the ladder against target, which must already be normalized.
// Upstream failures only advance the ladder; an error means the lookup could
// not continue at all.
func (r *Relay) Lookup(ctx context.Context, target string) (Response, error) {
	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			return Response{}, fmt.Errorf("lookup canceled before %s: %w", s.source, err)
		}
		res, ok, err := s.retrieve(ctx, target)
		if err != nil {
			return Response{}, fmt.Errorf("%s strategy: %w", s.source, err)
		}
		if ok {
			metrics.ObserveLookup(string(s.source))
			r.logger.Debug("lookup resolved", zap.String("url", target), zap.String("source", string(s.source)))
			return Response{OK: true, Result: res, Source: s.source}, nil
		}
	}
	metrics.ObserveLookup(string(SourceEmpty))
	r.logger.Debug("lookup exhausted", zap.String("url", target))
	return EmptyResponse(), nil
}

type candidateFunc func(target string) ([]string, error)

func directCandidates(target string) ([]string, error) {
	return []string{target}, nil
}

func (r *Relay) proxyCandidates(target string) ([]string, error) {
	return ProxyURLs(r.cfg.ProxyBase, target), nil
}

func (r *Relay) mirrorCandidates(target string) ([]string, error) {
	mirror, err := MirrorURL(r.cfg.MirrorHost, target)
	if err != nil {
		return nil, err
	}
	return []string{mirror}, nil
}

func (r *Relay) mirrorProxyCandidates(target string) ([]string, error) {
	mirror, err := MirrorURL(r.cfg.MirrorHost, target)
	if err != nil {
		return nil, err
	}
	return ProxyURLs(r.cfg.ProxyBase, mirror), nil
}

// pageStrategy fetches each candidate in turn and stops at the first useful
// extraction.
func (r *Relay) pageStrategy(source Source, candidates candidateFunc) retrieveFunc {
	return func(ctx context.Context, target string) (Result, bool, error) {
		urls, err := candidates(target)
		if err != nil {
			return Result{}, false, err
		}
		for _, u := range urls {
			res, err := r.fetchPage(ctx, source, u)
			if err != nil {
				r.logger.Debug("page fetch failed",
					zap.String("source", string(source)),
					zap.String("url", u),
					zap.Error(err),
				)
				continue
			}
			if res.Useful() {
				return res, true, nil
			}
		}
		return Result{}, false, nil
	}
}

func (r *Relay) fetchPage(ctx context.Context, source Source, pageURL string) (Result, error) {
	start := time.Now()
	resp, err := r.pages.Fetch(ctx, FetchRequest{URL: pageURL, Headers: r.pageHeaders()})
	if err != nil {
		metrics.ObserveUpstream(string(source), metrics.OutcomeError, time.Since(start))
		return Result{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	markup := string(resp.Body)
	if resp.OK() {
		metrics.ObserveUpstream(string(source), metrics.OutcomeOK, time.Since(start))
	} else {
		metrics.ObserveUpstream(string(source), metrics.OutcomeStatus, time.Since(start))
		markup = PlaceholderMarkup
	}
	return ExtractOGAndText(markup), nil
}

func (r *Relay) pageHeaders() http.Header {
	headers := http.Header{}
	setHeader(headers, "User-Agent", r.cfg.PageUserAgent)
	setHeader(headers, "Accept-Language", r.cfg.AcceptLanguage)
	setHeader(headers, "Accept", r.cfg.Accept)
	return headers
}

func setHeader(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}
