package textgen

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var (
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
	// wrappingFenceRe matches output wrapped whole in a markdown or html fence.
	wrappingFenceRe = regexp.MustCompile("(?s)^```(?:markdown|md|html)?[ \\t]*\\n(.*?)\\n?```$")
)

// htmlTags are elements that mark model output as HTML rather than prose
// that happens to contain angle brackets.
var htmlTags = map[string]bool{
	"html": true, "body": true, "div": true, "p": true, "span": true, "br": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "table": true, "tr": true, "td": true, "th": true,
	"strong": true, "em": true, "b": true, "i": true, "a": true, "code": true, "pre": true,
	"blockquote": true, "section": true, "article": true, "script": true, "style": true,
}

// unsafeTags are removed before conversion.
var unsafeTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"object": true, "embed": true, "form": true, "input": true, "button": true,
}

// Converter turns model output into Markdown.
type Converter struct {
	converter *md.Converter
}

// NewConverter creates a converter with GitHub-flavoured tables and lists.
func NewConverter() *Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Converter{converter: converter}
}

// ToMarkdown returns content as Markdown. HTML is sanitised and converted;
// anything else is treated as Markdown already and only tidied.
func (c *Converter) ToMarkdown(content string) (string, error) {
	content = unwrapFence(strings.TrimSpace(content))
	if !LooksLikeHTML(content) {
		return cleanMarkdown(content), nil
	}
	markdown, err := c.converter.ConvertString(sanitize(content))
	if err != nil {
		return "", err
	}
	return cleanMarkdown(markdown), nil
}

// LooksLikeHTML reports whether s contains at least one known HTML element.
func LooksLikeHTML(s string) bool {
	if !strings.Contains(s, "<") {
		return false
	}
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if htmlTags[string(name)] {
				return true
			}
		}
	}
}

// sanitize drops unsafe elements, event handler attributes and script URLs,
// and returns the rendered body.
func sanitize(content string) string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return content
	}

	var toRemove []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if unsafeTags[n.Data] {
				toRemove = append(toRemove, n)
				return
			}
			attrs := n.Attr[:0]
			for _, a := range n.Attr {
				key := strings.ToLower(a.Key)
				if strings.HasPrefix(key, "on") {
					continue
				}
				if (key == "href" || key == "src") &&
					strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Val)), "javascript:") {
					continue
				}
				attrs = append(attrs, a)
			}
			n.Attr = attrs
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	for _, n := range toRemove {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}

	root := findElement(doc, "body")
	if root == nil {
		root = doc
	}
	var sb strings.Builder
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		_ = html.Render(&sb, child)
	}
	return sb.String()
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func unwrapFence(content string) string {
	if m := wrappingFenceRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return content
}

func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Title returns the first level-one heading of markdown, or "".
func Title(markdown string) string {
	for line := range strings.SplitSeq(markdown, "\n") {
		if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
