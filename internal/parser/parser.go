package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultSelectors are tried in order until one yields text
var DefaultSelectors = []string{"article", "main", "[role='main']", "body"}

// stripped never contributes to corpus text
const stripped = "script, style, noscript, template"

// Parser extracts corpus text from HTML documents
type Parser struct {
	selectors []string
}

// New creates a Parser trying selectors in order, DefaultSelectors when none are given
func New(selectors ...string) *Parser {
	if len(selectors) == 0 {
		selectors = DefaultSelectors
	}
	return &Parser{selectors: selectors}
}

// ExtractText returns the text of the first selector that matches non-empty
// content. Text of sibling matches is joined with a single space.
func (p *Parser) ExtractText(reader io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	doc.Find(stripped).Remove()

	for _, selector := range p.selectors {
		parts := make([]string, 0)
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, " "), nil
		}
	}

	return "", fmt.Errorf("no text found for selectors %q", p.selectors)
}
