// Package htmltomarkdown renders page bodies as Markdown using
// JohannesKaufmann/html-to-markdown, with renderers for the hard line
// breaks and navigation links of the legacy site.
package htmltomarkdown

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/fwojciec/kura"
	"golang.org/x/net/html"
)

// Ensure Converter implements kura.Converter at compile time.
var _ kura.Converter = (*Converter)(nil)

// DefaultNavTokens mark an anchor as site navigation: back, next and
// table of contents.
var DefaultNavTokens = []string{"戻る", "次へ", "目次"}

// hardBreak stands in for <br> until conversion finishes, so that the
// trailing spaces of the Markdown hard break survive whitespace cleanup.
const hardBreak = "\uE000"

var hardBreakRe = regexp.MustCompile("[ \t]*" + hardBreak + "[ \t]*")

// Converter wraps html-to-markdown to convert HTML to Markdown.
type Converter struct {
	conv      *converter.Converter
	navTokens []string
}

// Option configures a Converter.
type Option func(*Converter)

// WithNavTokens replaces the words that mark an anchor as navigation.
// Navigation anchors render as [[text]](href).
func WithNavTokens(tokens ...string) Option {
	return func(c *Converter) {
		c.navTokens = tokens
	}
}

// NewConverter creates a new Converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{navTokens: DefaultNavTokens}
	for _, opt := range opts {
		opt(c)
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	conv.Register.RendererFor("br", converter.TagTypeInline, renderBreak, converter.PriorityEarly)
	conv.Register.RendererFor("a", converter.TagTypeInline, c.renderNavLink, converter.PriorityEarly)

	c.conv = conv
	return c
}

// Convert transforms HTML content into Markdown.
func (c *Converter) Convert(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", kura.Errorf(kura.EINVALID, "empty HTML input")
	}

	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return "", kura.Errorf(kura.EINVALID, "parse HTML: %v", err)
	}
	stripHardBreaks(doc)

	result, err := c.conv.ConvertNode(doc)
	if err != nil {
		return "", err
	}

	return hardBreakRe.ReplaceAllString(string(result), "  \n"), nil
}

// stripHardBreaks removes the placeholder from page text and attributes so
// that only rendered <br> elements produce it.
func stripHardBreaks(n *html.Node) {
	if strings.Contains(n.Data, hardBreak) {
		n.Data = strings.ReplaceAll(n.Data, hardBreak, "")
	}
	for i := range n.Attr {
		n.Attr[i].Val = strings.ReplaceAll(n.Attr[i].Val, hardBreak, "")
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		stripHardBreaks(child)
	}
}

func renderBreak(_ converter.Context, w converter.Writer, _ *html.Node) converter.RenderStatus {
	_, _ = w.WriteString(hardBreak)
	return converter.RenderSuccess
}

// renderNavLink renders anchors whose text contains a navigation token as
// [[text]](href). Other anchors fall through to the commonmark renderer.
func (c *Converter) renderNavLink(_ converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	href, ok := attr(n, "href")
	if !ok {
		return converter.RenderTryNext
	}

	text := strings.Join(strings.Fields(nodeText(n)), " ")
	if !c.isNav(text) {
		return converter.RenderTryNext
	}

	_, _ = w.WriteString("[[" + text + "]](" + strings.TrimSpace(href) + ")")
	return converter.RenderSuccess
}

func (c *Converter) isNav(text string) bool {
	for _, token := range c.navTokens {
		if token != "" && strings.Contains(text, token) {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}
