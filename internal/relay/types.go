package relay

import (
	"context"
	"net/http"
	"time"
)

// Source tags which strategy produced a Response.
type Source string

// Source values reported to callers.
const (
	SourceOEmbed      Source = "oembed"
	SourceHTML        Source = "html"
	SourceMirror      Source = "mirror"
	SourceDDInstagram Source = "ddinstagram"
	SourceDDMirror    Source = "dd-mirror"
	SourceEmpty       Source = "empty"
)

// PlaceholderText is the text reported when nothing useful was found.
const PlaceholderText = "Instagram"

// MaxTextChars bounds Result.Text, counted in code points.
const MaxTextChars = 4000

// Result is the metadata extracted from one upstream source.
type Result struct {
	OGTitle string `json:"ogTitle"`
	OGDesc  string `json:"ogDesc"`
	OGImage string `json:"ogImage"`
	Text    string `json:"text"`
}

// Useful reports whether the result carries content worth returning.
func (r Result) Useful() bool {
	if r.OGTitle != "" || r.OGDesc != "" {
		return true
	}
	return r.Text != "" && r.Text != PlaceholderText
}

// Response is the JSON body returned on success paths.
type Response struct {
	OK bool `json:"ok"`
	Result
	Source Source `json:"source"`
}

// EmptyResponse is returned when every strategy is exhausted.
func EmptyResponse() Response {
	return Response{
		OK:     true,
		Result: Result{Text: PlaceholderText},
		Source: SourceEmpty,
	}
}

// FetchRequest captures everything needed to fetch an upstream URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the upstream answered with a 2xx status.
func (r FetchResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher fetches a URL and returns the body plus metadata. Non-2xx statuses
// are returned as responses, not errors.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}
