package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HTMLToMarkdown renders sanitized article HTML to Markdown. No pack
// library converts HTML to Markdown — goldmark only parses Markdown, the
// opposite direction — so this is a small hand-written goquery walker.
func HTMLToMarkdown(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	var sb strings.Builder
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	body.Contents().Each(func(_ int, s *goquery.Selection) {
		renderNode(&sb, s)
	})
	return strings.TrimSpace(collapseBlankLines(sb.String()))
}

func renderNode(sb *strings.Builder, s *goquery.Selection) {
	for _, node := range s.Nodes {
		renderHTMLNode(sb, node)
	}
}

func renderHTMLNode(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "h1":
			sb.WriteString("\n# ")
			renderChildren(sb, n)
			sb.WriteString("\n\n")
			return
		case "h2":
			sb.WriteString("\n## ")
			renderChildren(sb, n)
			sb.WriteString("\n\n")
			return
		case "h3":
			sb.WriteString("\n### ")
			renderChildren(sb, n)
			sb.WriteString("\n\n")
			return
		case "p":
			sb.WriteString("\n")
			renderChildren(sb, n)
			sb.WriteString("\n\n")
			return
		case "br":
			sb.WriteString("\n")
			return
		case "strong", "b":
			sb.WriteString("**")
			renderChildren(sb, n)
			sb.WriteString("**")
			return
		case "em", "i":
			sb.WriteString("_")
			renderChildren(sb, n)
			sb.WriteString("_")
			return
		case "a":
			href := attr(n, "href")
			sb.WriteString("[")
			renderChildren(sb, n)
			sb.WriteString("](" + href + ")")
			return
		case "img":
			alt := attr(n, "alt")
			src := attr(n, "src")
			sb.WriteString("![" + alt + "](" + src + ")")
			return
		case "li":
			sb.WriteString("\n- ")
			renderChildren(sb, n)
			return
		case "ul", "ol":
			sb.WriteString("\n")
			renderChildren(sb, n)
			sb.WriteString("\n")
			return
		case "blockquote":
			sb.WriteString("\n> ")
			renderChildren(sb, n)
			sb.WriteString("\n")
			return
		case "code":
			sb.WriteString("`")
			renderChildren(sb, n)
			sb.WriteString("`")
			return
		case "pre":
			sb.WriteString("\n```\n")
			renderChildren(sb, n)
			sb.WriteString("\n```\n")
			return
		default:
			renderChildren(sb, n)
			return
		}
	default:
		renderChildren(sb, n)
	}
}

func renderChildren(sb *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderHTMLNode(sb, c)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, l := range lines {
		trimmed := strings.TrimRight(l, " \t")
		if strings.TrimSpace(trimmed) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
