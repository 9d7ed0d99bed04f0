package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// noiseSelector 不屬於食譜內容的元素
const noiseSelector = "script, style, noscript, nav, footer, header, aside, form, iframe, svg"

// blockTags 之後需要換行的區塊元素
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "li": true, "br": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "dt": true, "dd": true, "blockquote": true, "pre": true, "main": true,
}

var headingTags = map[string]bool{"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true}

// HTML 網頁食譜
type HTML struct{}

func (HTML) Name() string { return "html" }

func (h HTML) Extract(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return h.FromReader(f)
}

// FromReader converts an HTML page to recipe text: one line per block element,
// list items as "- " bullets, and the canonical URL appended as a source line
// when the body has none.
func (HTML) FromReader(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	doc.Find(noiseSelector).Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var b strings.Builder
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" && root.Find("h1").Length() == 0 {
		b.WriteString(title)
		b.WriteString("\n")
	}
	for _, n := range root.Nodes {
		walk(&b, n)
	}

	text := collapseLines(b.String())
	if canonical := canonicalURL(doc); canonical != "" && !strings.Contains(text, "http") {
		text += "\nFuente: " + canonical
	}
	return text, nil
}

func walk(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		// 保留原本的前後空白，行內元素之間才不會黏在一起
		text := strings.Join(strings.Fields(n.Data), " ")
		if text == "" || n.Data[0] <= ' ' {
			b.WriteString(" ")
		}
		b.WriteString(text)
		if text != "" && n.Data[len(n.Data)-1] <= ' ' {
			b.WriteString(" ")
		}
		return
	case html.ElementNode:
		if n.Data == "br" {
			b.WriteString("\n")
			return
		}
		if blockTags[n.Data] {
			b.WriteString("\n")
		}
		if n.Data == "li" {
			b.WriteString("- ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(b, c)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		if headingTags[n.Data] {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
}

func collapseLines(s string) string {
	var lines []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" || line == "-" {
			if !blank && len(lines) > 0 {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		blank = false
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func canonicalURL(doc *goquery.Document) string {
	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok && href != "" {
		return strings.TrimSpace(href)
	}
	if content, ok := doc.Find(`meta[property="og:url"]`).Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}
