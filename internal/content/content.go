// Package content turns HTML into plain article text.
package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Region is one candidate content container, tried in order.
type Region struct {
	Name     string
	Selector string
}

// Regions lists the content containers searched on a rendered page:
// article-like region, main-content region, generic container, whole body.
var Regions = []Region{
	{Name: "article", Selector: "article, [itemprop='articleBody'], .article-body, .article__body"},
	{Name: "main", Selector: "main, [role='main']"},
	{Name: "content", Selector: "#content, .content, .post-content, .entry-content, .story-body"},
	{Name: "body", Selector: "body"},
}

// noise is stripped before reading text.
const noise = "script, style, noscript, iframe, svg, nav, header, footer, aside, form"

// FirstRegion returns the text of the first region whose text is longer than
// minLength, together with the region name. ok is false when none qualifies.
func FirstRegion(html string, minLength int) (text, region string, ok bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", false
	}
	doc.Find(noise).Remove()

	for _, r := range Regions {
		var best string
		doc.Find(r.Selector).Each(func(_ int, s *goquery.Selection) {
			if candidate := Normalize(s.Text()); len(candidate) > len(best) {
				best = candidate
			}
		})
		if len(best) > minLength {
			return best, r.Name, true
		}
	}
	return "", "", false
}

// ParagraphText joins the text of every paragraph-like element.
func ParagraphText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find(noise).Remove()

	var parts []string
	doc.Find("h1, h2, h3, p, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		if text := Normalize(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

// Normalize collapses runs of whitespace within lines and drops blank lines.
func Normalize(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
