package fs

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fwojciec/kura"
	"gopkg.in/yaml.v3"
)

const (
	frontMatterFence = "---\n"
	dateLayout       = "2006-01-02"
)

// frontMatter is the header of a persisted document.
type frontMatter struct {
	Title   string `yaml:"title"`
	Source  string `yaml:"source"`
	Crawled string `yaml:"crawled,omitempty"`
}

// FormatDocument formats a document with a YAML front matter header.
// Values are double-quoted so line-oriented tooling can read them back.
// The crawl date is only included when withDate is set.
func FormatDocument(doc *kura.Document, withDate bool) (string, error) {
	header := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key, value string) {
		header.Content = append(header.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, Style: yaml.DoubleQuotedStyle},
		)
	}
	add("title", doc.Title)
	add("source", doc.Slug)
	if withDate {
		add("crawled", doc.FetchedAt.Format(dateLayout))
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(header); err != nil {
		return "", fmt.Errorf("encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString(frontMatterFence)
	b.Write(buf.Bytes())
	b.WriteString(frontMatterFence)
	b.WriteString("\n")
	b.WriteString(doc.Content)
	if doc.Content != "" && !strings.HasSuffix(doc.Content, "\n") {
		b.WriteString("\n")
	}
	return b.String(), nil
}

// ParseDocument parses a persisted document back into its title, slug,
// crawl date and body. The URL is not stored in the file and is left empty.
func ParseDocument(data []byte) (*kura.Document, error) {
	s := string(data)
	if !strings.HasPrefix(s, frontMatterFence) {
		return nil, kura.Errorf(kura.EINVALID, "missing front matter")
	}
	rest := s[len(frontMatterFence):]
	end := strings.Index(rest, "\n"+frontMatterFence)
	if end == -1 {
		return nil, kura.Errorf(kura.EINVALID, "unterminated front matter")
	}

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(rest[:end+1]), &fm); err != nil {
		return nil, kura.Errorf(kura.EINVALID, "invalid front matter: %v", err)
	}

	body := rest[end+1+len(frontMatterFence):]
	body = strings.TrimPrefix(body, "\n")

	doc := &kura.Document{
		Title:   fm.Title,
		Slug:    fm.Source,
		Content: strings.TrimSuffix(body, "\n"),
	}
	if fm.Crawled != "" {
		t, err := time.Parse(dateLayout, fm.Crawled)
		if err != nil {
			return nil, kura.Errorf(kura.EINVALID, "invalid crawl date %q", fm.Crawled)
		}
		doc.FetchedAt = t
	}
	return doc, nil
}

// ReadDocument reads and parses a persisted document from path.
func ReadDocument(path string) (*kura.Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, kura.Errorf(kura.ENOTFOUND, "document not found: %s", path)
	} else if err != nil {
		return nil, ioError("read", path, err)
	}
	return ParseDocument(data)
}
