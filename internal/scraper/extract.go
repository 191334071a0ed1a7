// Package scraper holds the HTML main-content extraction shared by the
// direct and browser scrapers.
package scraper

import (
	"io"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// noise is removed before conversion.
const noise = "script, style, noscript, template, iframe, svg, canvas, form, nav, header, footer, aside, [role=navigation], [role=banner], [role=contentinfo], [aria-hidden=true]"

// mainSelectors are tried in order; the first non-empty match wins.
var mainSelectors = []string{"main", "[role=main]", "article", "#content", ".content", "body"}

// MainContentMarkdown converts the main content of an HTML page to markdown.
// pageURL resolves relative links.
func MainContentMarkdown(pageURL string, r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find(noise).Remove()

	sel := doc.Selection
	for _, s := range mainSelectors {
		found := doc.Find(s).First()
		if found.Length() > 0 && strings.TrimSpace(found.Text()) != "" {
			sel = found
			break
		}
	}
	html, err := sel.Html()
	if err != nil {
		return "", err
	}

	conv := md.NewConverter(domainOf(pageURL), true, &md.Options{GetAbsoluteURL: resolver(pageURL)})
	markdown, err := conv.ConvertString(html)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(markdown), nil
}

// domainOf returns the host of pageURL. The converter only resolves links
// when it is given a non-empty domain.
func domainOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// resolver makes links absolute against the page they were found on,
// keeping its scheme.
func resolver(pageURL string) func(*goquery.Selection, string, string) string {
	base, err := url.Parse(pageURL)
	return func(_ *goquery.Selection, rawURL, domain string) string {
		if err != nil || base.Host == "" {
			return md.DefaultGetAbsoluteURL(nil, rawURL, domain)
		}
		ref, perr := url.Parse(rawURL)
		if perr != nil || ref.Scheme == "data" {
			return rawURL
		}
		return base.ResolveReference(ref).String()
	}
}
