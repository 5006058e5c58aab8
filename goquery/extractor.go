// Package goquery extracts titles, bodies and links from legacy HTML pages
// using PuerkitoBio/goquery.
package goquery

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/kura"
)

// Ensure Extractor implements kura.Extractor at compile time.
var _ kura.Extractor = (*Extractor)(nil)

// DefaultChromeSelectors match site chrome removed before rendering the body.
const DefaultChromeSelectors = "nav, header, footer, .navigation, .header, .footer, #navigation, #header, #footer"

// DefaultExcludedHosts are third-party hosts never followed. Subdomains are
// excluded too.
var DefaultExcludedHosts = []string{"twitter.com", "x.com", "ask.fm", "theinterviews.jp"}

var (
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	commentRe    = regexp.MustCompile(`(?s)<!--.*?-->`)
)

// Extractor derives the title, Markdown body and same-origin links of a page.
type Extractor struct {
	converter     kura.Converter
	origin        string
	placeholder   string
	excludedHosts []string
	chrome        string
	titles        []TitleStrategy
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithOrigin sets the origin links must share to be followed.
// Defaults to the origin of each page's own URL.
func WithOrigin(origin string) Option {
	return func(e *Extractor) {
		e.origin = origin
	}
}

// WithPlaceholderTitle sets the <title> value that is ignored because every
// page carries it.
func WithPlaceholderTitle(title string) Option {
	return func(e *Extractor) {
		e.placeholder = title
	}
}

// WithExcludedHosts replaces the list of hosts whose links are dropped.
func WithExcludedHosts(hosts ...string) Option {
	return func(e *Extractor) {
		e.excludedHosts = hosts
	}
}

// WithChromeSelectors replaces the selectors removed from the body.
func WithChromeSelectors(selectors string) Option {
	return func(e *Extractor) {
		e.chrome = selectors
	}
}

// WithTitleStrategies replaces the title heuristics. "Untitled" is still
// used when none of them match.
func WithTitleStrategies(strategies ...TitleStrategy) Option {
	return func(e *Extractor) {
		e.titles = strategies
	}
}

// NewExtractor creates an Extractor that renders bodies with conv.
func NewExtractor(conv kura.Converter, opts ...Option) *Extractor {
	e := &Extractor{
		converter:     conv,
		placeholder:   DefaultPlaceholderTitle,
		excludedHosts: DefaultExcludedHosts,
		chrome:        DefaultChromeSelectors,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.titles == nil {
		e.titles = DefaultTitleStrategies(e.placeholder)
	}
	return e
}

// Extract parses html fetched from pageURL.
// Links are collected from the whole page, including navigation chrome,
// before the body is cleaned.
func (e *Extractor) Extract(html string, pageURL string) (*kura.ExtractResult, error) {
	page, err := url.Parse(pageURL)
	if err != nil || !page.IsAbs() {
		return nil, kura.Errorf(kura.EINVALID, "invalid page URL: %q", pageURL)
	}

	origin := e.origin
	if origin == "" {
		origin = pageURL
	}
	origin, err = kura.Origin(origin)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, kura.Errorf(kura.EINVALID, "failed to parse HTML: %v", err)
	}

	result := &kura.ExtractResult{
		Title: e.title(doc),
		Links: e.links(doc, page, origin),
	}

	doc.Find("script, style, noscript").Remove()
	if e.chrome != "" {
		doc.Find(e.chrome).Remove()
	}

	body := doc.Find("body")
	contentHTML, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("render body: %w", err)
	}
	result.ContentHTML = strings.TrimSpace(contentHTML)
	if result.ContentHTML == "" {
		return result, nil
	}

	markdown, err := e.converter.Convert(result.ContentHTML)
	if err != nil {
		if kura.ErrorCode(err) == kura.EINVALID {
			return result, nil
		}
		return nil, fmt.Errorf("convert body: %w", err)
	}
	result.Markdown = cleanMarkdown(markdown)

	return result, nil
}

func (e *Extractor) title(doc *goquery.Document) string {
	for _, s := range e.titles {
		if title, ok := s.Func(doc); ok {
			return title
		}
	}
	return UntitledTitle
}

// links returns the absolute same-origin targets of every anchor, without
// fragments, de-duplicated and sorted.
func (e *Extractor) links(doc *goquery.Document, page *url.URL, origin string) []string {
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || isNonHTTPLink(href) {
			return
		}

		resolved := resolveURL(page, href)
		if resolved == nil {
			return
		}
		if e.isExcludedHost(resolved.Hostname()) {
			return
		}
		if o, err := kura.Origin(resolved.String()); err != nil || o != origin {
			return
		}
		seen[resolved.String()] = struct{}{}
	})

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)
	return links
}

func (e *Extractor) isExcludedHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range e.excludedHosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// resolveURL resolves href against the page URL and strips the fragment.
// Returns nil if href cannot be parsed.
func resolveURL(base *url.URL, href string) *url.URL {
	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved
}

// isNonHTTPLink checks if a href is a non-HTTP link that should be skipped.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}

// cleanMarkdown collapses runs of blank lines, drops comment remnants and
// trims the result.
func cleanMarkdown(md string) string {
	md = commentRe.ReplaceAllString(md, "")
	md = blankLinesRe.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md)
}
