// Package auto provides a page fetcher that probes over plain HTTP and
// re-renders in a headless browser only when the probe looks like a script
// shell.
package auto

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/ogrelay/internal/metrics"
	"github.com/JakeFAU/ogrelay/internal/relay"
)

// Detector decides whether a probe response needs a headless render.
type Detector interface {
	ShouldPromote(resp relay.FetchResponse) bool
}

// Fetcher implements relay.Fetcher with probe-then-promote semantics.
type Fetcher struct {
	probe    relay.Fetcher
	headless relay.Fetcher
	detector Detector
	logger   *zap.Logger
}

// New builds a promoting fetcher. A nil headless fetcher or detector turns it
// into a pass-through for probe.
func New(probe, headless relay.Fetcher, detector Detector, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		probe:    probe,
		headless: headless,
		detector: detector,
		logger:   logger,
	}
}

// Fetch returns the probe response unless the detector asks for promotion and
// the headless render succeeds.
func (f *Fetcher) Fetch(ctx context.Context, req relay.FetchRequest) (relay.FetchResponse, error) {
	resp, err := f.probe.Fetch(ctx, req)
	if err != nil {
		return relay.FetchResponse{}, err
	}
	if promoted, ok := f.maybePromote(ctx, req, resp); ok {
		return promoted, nil
	}
	return resp, nil
}

func (f *Fetcher) maybePromote(ctx context.Context, req relay.FetchRequest, resp relay.FetchResponse) (relay.FetchResponse, bool) {
	if f.headless == nil || f.detector == nil || !f.detector.ShouldPromote(resp) {
		return resp, false
	}

	rendered, err := f.headless.Fetch(ctx, req)
	if err != nil {
		metrics.ObservePromotion(metrics.OutcomeError)
		f.logger.Warn("headless promotion failed", zap.String("url", req.URL), zap.Error(err))
		return resp, false
	}
	if !rendered.OK() {
		metrics.ObservePromotion(metrics.OutcomeStatus)
		f.logger.Debug("headless promotion returned non-2xx",
			zap.String("url", req.URL),
			zap.Int("status", rendered.StatusCode),
		)
		return resp, false
	}
	metrics.ObservePromotion(metrics.OutcomeOK)
	f.logger.Debug("headless promotion applied", zap.String("url", req.URL))
	return rendered, true
}
