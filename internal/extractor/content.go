package extractor

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// Content is the extracted representation of one HTML document: the <body>
// subtree serialised back to markup, and a boilerplate-stripped plain-text
// rendition.
type Content struct {
	Body string
	Text string
}

// ExtractContent parses raw HTML and produces its body markup and cleaned
// text. The parsed document is returned so homepage callers can classify
// links without a second parse. Documents without a <body> yield an empty
// body; only input that cannot be parsed as HTML at all fails, with
// ErrParse.
func ExtractContent(raw []byte) (Content, *goquery.Document, *ErrorInfo) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return Content{}, nil, &ErrorInfo{Kind: ErrParse, Message: err.Error()}
	}

	var bodyHTML string
	if body := doc.Find("body").First(); body.Length() > 0 {
		bodyHTML, err = goquery.OuterHtml(body)
		if err != nil {
			return Content{}, nil, &ErrorInfo{Kind: ErrParse, Message: err.Error()}
		}
	}

	return Content{Body: bodyHTML, Text: cleanText(raw)}, doc, nil
}

// cleanText extracts the primary textual content, stripping navigation and
// other repeated chrome. When boilerplate removal comes back empty for a
// non-empty document, it falls back to a whitespace-normalised walk of the
// whole document so callers still get something usable.
func cleanText(raw []byte) string {
	result, err := trafilatura.Extract(bytes.NewReader(raw), trafilatura.Options{
		ExcludeTables: true,
	})
	if err == nil && result != nil && strings.TrimSpace(result.ContentText) != "" {
		return strings.TrimSpace(result.ContentText)
	}
	if err != nil {
		log.Debug().Err(err).Msg("Boilerplate extraction failed, using fallback")
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	return fallbackText(raw)
}

// fallbackText collects every text node outside script/style containers and
// collapses runs of whitespace.
func fallbackText(raw []byte) string {
	node, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)

	return strings.Join(strings.Fields(b.String()), " ")
}
