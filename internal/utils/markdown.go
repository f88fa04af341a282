package utils

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)
	policy = bluemonday.UGCPolicy()
)

func init() {
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.RequireNoReferrerOnLinks(true)
}

// RenderMarkdown converts user-authored markdown to sanitized HTML for
// the body_html response field. Rendered output is cached by content
// hash, so repeated reads of the same body skip the parse and
// sanitize passes.
func RenderMarkdown(source string) string {
	sum := sha1.Sum([]byte(source))
	key := "md:" + hex.EncodeToString(sum[:])
	if cached, ok := GetCache().Get(key).(string); ok {
		return cached
	}

	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(source), &buf); err != nil {
		return source // Fallback
	}
	rendered := string(policy.SanitizeBytes(buf.Bytes()))
	GetCache().Set(key, rendered, time.Hour)
	return rendered
}
