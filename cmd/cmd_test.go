package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/ogrelay/internal/app"
	"github.com/JakeFAU/ogrelay/internal/config"
	"github.com/JakeFAU/ogrelay/internal/relay"
)

type oembedFetcher struct{}

func (oembedFetcher) Fetch(_ context.Context, req relay.FetchRequest) (relay.FetchResponse, error) {
	return relay.FetchResponse{
		URL:        req.URL,
		StatusCode: http.StatusOK,
		Body:       []byte(`{"title":"Sunset","author_name":"alice","thumbnail_url":"https://cdn.test/a.jpg"}`),
	}, nil
}

func useFetcher(t *testing.T, f relay.Fetcher) {
	t.Helper()
	prev := newApp
	newApp = func(cfg config.Config) (*app.App, error) {
		return app.New(cfg, app.WithLogger(zap.NewNop()), app.WithFetchers(f, nil))
	}
	t.Cleanup(func() { newApp = prev })
}

func execute(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLookupCommand_PrintsResponse(t *testing.T) {
	useFetcher(t, oembedFetcher{})

	out, err := execute("lookup", "http://www.instagram.com/p/abc")
	require.NoError(t, err)

	var resp relay.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.True(t, resp.OK)
	require.Equal(t, relay.SourceOEmbed, resp.Source)
	require.Equal(t, "Sunset", resp.OGTitle)
	require.Equal(t, "By alice — Instagram", resp.OGDesc)
}

func TestLookupCommand_InvalidURL(t *testing.T) {
	useFetcher(t, oembedFetcher{})

	out, err := execute("lookup", "https://example.com/p/abc")
	require.ErrorIs(t, err, relay.ErrInvalidURL)
	require.Contains(t, out, "Provide a valid Instagram post URL.")
}

func TestLookupCommand_RequiresOneArg(t *testing.T) {
	_, err := execute("lookup")
	require.Error(t, err)
}

func TestLookupCommand_MissingConfig(t *testing.T) {
	useFetcher(t, oembedFetcher{})

	_, err := execute("lookup", "--config", "/does/not/exist.yaml", "https://www.instagram.com/p/abc/")
	require.Error(t, err)
	require.Contains(t, err.Error(), "load config")
}

func TestRunServer_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              "127.0.0.1:0",
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, time.Second, zap.NewNop()) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not return after cancel")
	}
}

func TestRunServer_ListenError(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}
	err = runServer(context.Background(), srv, time.Second, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "http server")
}
