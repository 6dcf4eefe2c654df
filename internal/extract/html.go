package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	htmlContentSelector = "main, article, .article-content, #content, .content"
	htmlNoiseSelector   = "script, style, nav, header, footer"
)

// extractHTML returns the visible text of the page's main content area, one
// line per text block.
func extractHTML(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	doc.Find(htmlNoiseSelector).Remove()

	root := doc.Find(htmlContentSelector).First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var lines []string
	for _, line := range strings.Split(root.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
