package relay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"post url", "https://www.instagram.com/p/abc/", "https://www.instagram.com/p/abc/", true},
		{"trimmed", "  http://instagram.com/reel/xyz  ", "http://instagram.com/reel/xyz", true},
		{"uppercase scheme", "HTTPS://Instagram.com/p/abc", "HTTPS://Instagram.com/p/abc", true},
		{"empty", "", "", false},
		{"no scheme", "instagram.com/p/abc", "", false},
		{"ftp scheme", "ftp://instagram.com/p/abc", "", false},
		{"other host", "https://example.com/p/abc", "", false},
		{"host without slash", "https://instagram.com", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ValidateURL(tc.input)
			if !tc.ok {
				require.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"upgrade and slash", "http://instagram.com/p/abc", "https://instagram.com/p/abc/"},
		{"already slashed", "https://instagram.com/p/abc/", "https://instagram.com/p/abc/"},
		{"reel path", "https://www.instagram.com/reel/xyz", "https://www.instagram.com/reel/xyz/"},
		{"query kept", "https://instagram.com/p/abc?igsh=1", "https://instagram.com/p/abc/?igsh=1"},
		{"angle brackets", "<https://instagram.com/p/abc/>", "https://instagram.com/p/abc/"},
		{"uppercase http", "HTTP://instagram.com/p/abc/", "https://instagram.com/p/abc/"},
		{"profile path untouched", "https://instagram.com/someone", "https://instagram.com/someone"},
		{"nested post untouched", "https://instagram.com/p/abc/liked_by", "https://instagram.com/p/abc/liked_by"},
		{"unparseable kept", "https://instagram.com/p/%zz", "https://instagram.com/p/%zz"},
		{"encoded slash in id", "https://www.instagram.com/p/abc%2Fdef", "https://www.instagram.com/p/abc%2Fdef/"},
		{"encoded slash before id", "https://www.instagram.com/x/p%2Fabc", "https://www.instagram.com/x/p%2Fabc"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, NormalizeURL(tc.input))
		})
	}
}

func TestNormalizeURLIsStable(t *testing.T) {
	t.Parallel()

	once := NormalizeURL("http://instagram.com/p/abc")
	require.Equal(t, once, NormalizeURL(once))
}

func TestProxyURLs(t *testing.T) {
	t.Parallel()

	got := ProxyURLs("https://r.jina.ai/", "https://www.instagram.com/p/abc/")
	require.Equal(t, []string{
		"https://r.jina.ai/http://www.instagram.com/p/abc/",
		"https://r.jina.ai/https://www.instagram.com/p/abc/",
	}, got)
}

func TestMirrorURL(t *testing.T) {
	t.Parallel()

	got, err := MirrorURL("ddinstagram.com", "https://www.instagram.com/p/abc/?img_index=2")
	require.NoError(t, err)
	require.Equal(t, "https://ddinstagram.com/p/abc/?img_index=2", got)

	got, err = MirrorURL("ddinstagram.com", "https://instagram.com/reel/xyz/")
	require.NoError(t, err)
	require.Equal(t, "https://ddinstagram.com/reel/xyz/", got)

	_, err = MirrorURL("ddinstagram.com", "https://instagram.com/p/%zz")
	require.Error(t, err)
}
