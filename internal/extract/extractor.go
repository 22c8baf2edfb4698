// Package extract implements C2: strip boilerplate from fetched HTML and
// return clean text plus basic metadata. Primary path is go-shiori's port
// of Mozilla Readability; a goquery densest-block heuristic is the
// fallback. Extracted HTML is sanitized with bluemonday before persistence.
package extract

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Options configures per-domain extraction behavior (spec §4.2).
type Options struct {
	FavorPrecision    bool
	IncludeTables     bool
	IncludeComments   bool
	Deduplicate       bool
}

func DefaultOptions() Options {
	return Options{FavorPrecision: false, IncludeTables: true, IncludeComments: false, Deduplicate: true}
}

// Extracted is C2's output.
type Extracted struct {
	Title       string
	Description string
	ImageURL    string
	Text        string
	Markdown    string
	HTML        string
}

type Extractor struct {
	sanitizer *bluemonday.Policy
}

func New() *Extractor {
	return &Extractor{sanitizer: bluemonday.UGCPolicy()}
}

// Extract never returns an error: on catastrophic failure it returns an
// Extracted with empty strings, letting the orchestrator carry on with
// user-supplied fields (spec §4.2).
func (e *Extractor) Extract(rawURL, html string, opts Options) Extracted {
	parsed, _ := url.Parse(rawURL)

	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		out := Extracted{
			Title:       article.Title,
			Description: article.Excerpt,
			ImageURL:    article.Image,
			Text:        strings.TrimSpace(article.TextContent),
			HTML:        e.sanitizer.Sanitize(article.Content),
		}
		out.Markdown = HTMLToMarkdown(out.HTML)
		e.fillDefaults(&out, rawURL, html)
		return out
	}

	return e.fallback(rawURL, html, opts)
}

// fallback selects the densest text block under a landmark element, per
// spec §4.2 step 2.
func (e *Extractor) fallback(rawURL, html string, opts Options) Extracted {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Extracted{}
	}

	candidates := []string{"article", "main", "[role=main]", "#content", ".content", ".post", ".article-body"}
	var best *goquery.Selection
	bestLen := 0
	for _, sel := range candidates {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > bestLen {
				bestLen = len(text)
				best = s
			}
		})
	}
	if best == nil {
		best = doc.Find("body")
	}

	if !opts.IncludeComments {
		best.Find("[class*=comment], [id*=comment]").Remove()
	}
	if !opts.IncludeTables {
		best.Find("table").Remove()
	}

	rawHTML, _ := best.Html()
	sanitized := e.sanitizer.Sanitize(rawHTML)

	out := Extracted{
		Text:     strings.TrimSpace(best.Text()),
		HTML:     sanitized,
		Markdown: HTMLToMarkdown(sanitized),
	}
	out.Title = strings.TrimSpace(doc.Find("title").First().Text())
	out.Description, _ = doc.Find("meta[name=description]").Attr("content")
	out.ImageURL, _ = doc.Find("meta[property='og:image']").Attr("content")
	e.fillDefaults(&out, rawURL, html)
	return out
}

// fillDefaults implements spec §4.2's "missing title -> derive from <h1> or
// URL path; missing description -> first paragraph (~240 chars)".
func (e *Extractor) fillDefaults(out *Extracted, rawURL, html string) {
	if strings.TrimSpace(out.Title) == "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
			if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
				out.Title = h1
			}
		}
		if out.Title == "" {
			out.Title = titleFromURL(rawURL)
		}
	}
	if strings.TrimSpace(out.Description) == "" {
		out.Description = firstParagraph(out.Text, 240)
	}
}

func titleFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return parsed.Host
	}
	parts := strings.Split(path, "/")
	last := parts[len(parts)-1]
	last = strings.ReplaceAll(last, "-", " ")
	last = strings.ReplaceAll(last, "_", " ")
	return last
}

func firstParagraph(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	parts := strings.SplitN(text, "\n\n", 2)
	p := strings.TrimSpace(parts[0])
	r := []rune(p)
	if len(r) > maxChars {
		return string(r[:maxChars])
	}
	return p
}
