package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	imageSelector   = "img[src]"
	faviconSelector = "head link[rel]"
	linkSelector    = "a[href]"
)

// Extraction holds the absolute URLs found on one page, in document order.
type Extraction struct {
	Images   []string
	Favicons []string
	Links    []string
}

// Extract collects image sources, favicon hrefs and anchor hrefs from doc,
// resolved against the document base. Values that are empty, cannot be
// parsed, or use a non-fetchable scheme are skipped.
// Extract does not modify doc and is safe for concurrent use.
func Extract(doc *Document) Extraction {
	base := doc.Base()
	return Extraction{
		Images:   collect(doc.Find(imageSelector), "src", base),
		Favicons: collect(doc.Find(faviconSelector).FilterFunction(isFaviconLink), "href", base),
		Links:    collect(doc.Find(linkSelector), "href", base),
	}
}

// isFaviconLink reports whether the rel attribute is "icon" or "shortcut icon".
// rel values are ASCII case-insensitive and surrounding whitespace is ignored.
func isFaviconLink(_ int, s *goquery.Selection) bool {
	rel := strings.TrimSpace(s.AttrOr("rel", ""))
	return strings.EqualFold(rel, "icon") || strings.EqualFold(rel, "shortcut icon")
}

func collect(sel *goquery.Selection, attr string, base *url.URL) []string {
	urls := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		val, _ := s.Attr(attr)
		if resolved := resolveURL(base, val); resolved != "" {
			urls = append(urls, resolved)
		}
	})
	return urls
}

// resolveURL resolves ref against base, returning "" when ref should be skipped.
func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:") {
		return ""
	}

	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
