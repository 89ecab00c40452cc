package webfetch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Augmentation limits: how many links are followed per application and
// how much of each page is inlined.
const (
	maxLinkedPages    = 3
	maxInlinedContent = 8000
)

var (
	urlRe            = regexp.MustCompile(`https://[^\s<>"')\]]+`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
)

// Augmenter fetches pages linked from application text and appends
// their readable content so the extractor and reviewers see it.
type Augmenter struct {
	fetcher   *Fetcher
	converter *md.Converter
	logger    *slog.Logger
}

// NewAugmenter creates an augmenter with the given fetch timeout and
// page size limit.
func NewAugmenter(timeout time.Duration, maxContentSize int64, logger *slog.Logger) *Augmenter {
	if logger == nil {
		logger = slog.Default()
	}
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Augmenter{
		fetcher:   NewFetcher(timeout, "grantcouncil/1.0", maxContentSize),
		converter: converter,
		logger:    logger,
	}
}

// Augment returns raw with the readable content of up to
// maxLinkedPages linked pages appended. Fetch failures are logged and
// skipped; the original text always comes back intact.
func (a *Augmenter) Augment(ctx context.Context, raw string) string {
	links := ExtractURLs(raw)
	if len(links) == 0 {
		return raw
	}
	if len(links) > maxLinkedPages {
		links = links[:maxLinkedPages]
	}

	var b strings.Builder
	b.WriteString(raw)

	for _, link := range links {
		body, err := a.fetcher.Fetch(ctx, link)
		if err != nil {
			a.logger.Debug("Linked page fetch skipped",
				"url", link,
				"error", err)
			continue
		}

		title, markdown, err := a.convert(body, link)
		if err != nil || markdown == "" {
			a.logger.Debug("Linked page conversion skipped",
				"url", link,
				"error", err)
			continue
		}
		if len(markdown) > maxInlinedContent {
			markdown = markdown[:maxInlinedContent] + "\n\n[content truncated]"
		}

		fmt.Fprintf(&b, "\n\n## Linked Content: %s\n", link)
		if title != "" {
			fmt.Fprintf(&b, "### %s\n", title)
		}
		b.WriteString(markdown)
	}

	return b.String()
}

// convert extracts the readable article from a page and renders it as
// markdown. When readability finds nothing it falls back to converting
// the stripped document body.
func (a *Augmenter) convert(body []byte, pageURL string) (title, markdown string, err error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", "", err
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err == nil && article.Content != "" {
		markdown, err = a.converter.ConvertString(article.Content)
		if err != nil {
			return "", "", err
		}
		return article.Title, cleanMarkdown(markdown), nil
	}

	cleaned := stripNonContent(body)
	markdown, err = a.converter.ConvertString(cleaned)
	if err != nil {
		return "", "", err
	}
	return extractTitle(body), cleanMarkdown(markdown), nil
}

// ExtractURLs returns the distinct HTTPS URLs in text, in order of
// first appearance, with trailing punctuation trimmed.
func ExtractURLs(text string) []string {
	var urls []string
	seen := make(map[string]bool)
	for _, match := range urlRe.FindAllString(text, -1) {
		link := strings.TrimRight(match, ".,;:!?")
		if seen[link] {
			continue
		}
		seen[link] = true
		urls = append(urls, link)
	}
	return urls
}

// stripNonContent removes script, style, and chrome elements and
// renders the body back to HTML.
func stripNonContent(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return string(content)
	}

	drop := map[string]bool{
		"nav": true, "header": true, "footer": true, "aside": true,
		"script": true, "style": true, "noscript": true, "iframe": true,
		"form": true, "input": true, "button": true,
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && drop[node.Data] {
			toRemove = append(toRemove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(doc)
	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return string(content)
	}
	return sb.String()
}

// extractTitle pulls the <title> text from an HTML document.
func extractTitle(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	var title string
	var find func(*html.Node)
	find = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	return title
}

// cleanMarkdown collapses excessive blank lines and trims trailing
// whitespace.
func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
