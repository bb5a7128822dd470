package relay

import (
	"regexp"
	"strings"
)

// PlaceholderMarkup stands in for the body of a non-2xx page response so the
// extractor always has markup to parse. Its text extracts to exactly
// PlaceholderText, which Result.Useful rejects.
const PlaceholderMarkup = "<html><head><title>Instagram</title></head><body></body></html>"

type metaPattern struct {
	keyFirst     *regexp.Regexp
	contentFirst *regexp.Regexp
}

func newMetaPattern(key string) metaPattern {
	k := regexp.QuoteMeta(key)
	return metaPattern{
		keyFirst: regexp.MustCompile(
			`(?i)<meta[^>]+(?:property|name)=["']` + k + `["'][^>]*content=["']([^"']+)["'][^>]*>`,
		),
		contentFirst: regexp.MustCompile(
			`(?i)<meta[^>]+content=["']([^"']+)["'][^>]*(?:property|name)=["']` + k + `["'][^>]*>`,
		),
	}
}

func (p metaPattern) find(markup string) string {
	if m := p.keyFirst.FindStringSubmatch(markup); len(m) > 1 && m[1] != "" {
		return strings.TrimSpace(m[1])
	}
	if m := p.contentFirst.FindStringSubmatch(markup); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

var (
	ogTitlePattern = newMetaPattern("og:title")
	ogDescPattern  = newMetaPattern("og:description")
	ogImagePattern = newMetaPattern("og:image")

	scriptBlock = regexp.MustCompile(`(?i)<script[\s\S]*?</script>`)
	styleBlock  = regexp.MustCompile(`(?i)<style[\s\S]*?</style>`)
	anyTag      = regexp.MustCompile(`<[^>]+>`)
)

// ExtractOGAndText pulls og:title, og:description, and og:image out of markup
// and derives a whitespace-collapsed text excerpt with script and style
// contents removed.
func ExtractOGAndText(markup string) Result {
	return Result{
		OGTitle: ogTitlePattern.find(markup),
		OGDesc:  ogDescPattern.find(markup),
		OGImage: ogImagePattern.find(markup),
		Text:    plainText(markup),
	}
}

func plainText(markup string) string {
	text := scriptBlock.ReplaceAllString(markup, " ")
	text = styleBlock.ReplaceAllString(text, " ")
	text = anyTag.ReplaceAllString(text, " ")
	text = strings.Join(strings.Fields(text), " ")
	return truncate(text, MaxTextChars)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
