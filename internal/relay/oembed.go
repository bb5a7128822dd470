package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ogrelay/internal/metrics"
)

type oembedPayload struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// OEmbedURL builds the oEmbed lookup URL for target.
func OEmbedURL(endpoint, target string) string {
	return endpoint + "?omitscript=true&url=" + url.QueryEscape(target)
}

// tryOEmbed never returns an error: every upstream problem just moves the
// ladder on.
func (r *Relay) tryOEmbed(ctx context.Context, target string) (Result, bool, error) {
	lookupURL := OEmbedURL(r.cfg.OEmbedEndpoint, target)
	headers := http.Header{}
	setHeader(headers, "User-Agent", r.cfg.OEmbedUserAgent)
	headers.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.api.Fetch(ctx, FetchRequest{URL: lookupURL, Headers: headers})
	if err != nil {
		metrics.ObserveUpstream(string(SourceOEmbed), metrics.OutcomeError, time.Since(start))
		r.logger.Debug("oembed fetch failed", zap.String("url", lookupURL), zap.Error(err))
		return Result{}, false, nil
	}
	if !resp.OK() {
		metrics.ObserveUpstream(string(SourceOEmbed), metrics.OutcomeStatus, time.Since(start))
		r.logger.Debug("oembed non-2xx", zap.String("url", lookupURL), zap.Int("status", resp.StatusCode))
		return Result{}, false, nil
	}
	payload, err := decodeOEmbed(resp.Body)
	if err != nil {
		metrics.ObserveUpstream(string(SourceOEmbed), metrics.OutcomeDecodeError, time.Since(start))
		r.logger.Debug("oembed decode failed", zap.String("url", lookupURL), zap.Error(err))
		return Result{}, false, nil
	}
	metrics.ObserveUpstream(string(SourceOEmbed), metrics.OutcomeOK, time.Since(start))
	res, ok := payload.result()
	return res, ok, nil
}

func decodeOEmbed(body []byte) (oembedPayload, error) {
	var payload oembedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return oembedPayload{}, fmt.Errorf("decode oembed: %w", err)
	}
	return payload, nil
}

func (p oembedPayload) result() (Result, bool) {
	if p.Title == "" {
		return Result{}, false
	}
	var desc string
	if p.AuthorName != "" {
		desc = "By " + p.AuthorName + " — Instagram"
	}
	parts := []string{p.Title}
	if desc != "" {
		parts = append(parts, desc)
	}
	return Result{
		OGTitle: p.Title,
		OGDesc:  desc,
		OGImage: p.ThumbnailURL,
		Text:    strings.Join(parts, " | "),
	}, true
}
