package scrape

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// WebsiteStrategy selects how website presence is detected on a detail view.
type WebsiteStrategy string

// Website detection strategies.
const (
	// WebsitePresence looks for known "website" affordance selectors. The
	// boolean is reliable; the URL is filled only when the affordance itself
	// carries a usable href.
	WebsitePresence WebsiteStrategy = "presence"
	// WebsiteExtract walks outbound anchors and keeps the first URL that
	// survives the non-business domain denylist. A listing whose only
	// outbound link is a denylisted domain (e.g. a social profile) counts
	// as having no website.
	WebsiteExtract WebsiteStrategy = "extract"
)

// Phone fallback chain, tried in order against the rendered HTML.
var (
	telHrefPattern      = regexp.MustCompile(`href="tel:([^"]+)"`)
	labeledPhonePattern = regexp.MustCompile(`(?:Phone:|Call)\s*:?\s*(\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4})`)
	markupPhonePattern  = regexp.MustCompile(`>\s*(\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4})\s*<`)
	barePhonePattern    = regexp.MustCompile(`\b(\d{3}[-.\s]?\d{3}[-.\s]?\d{4})\b`)
)

// Address fallback chain. Both patterns require a street-type suffix token,
// abbreviated or spelled out, following a leading street number.
const streetSuffix = `St(?:reet)?|Ave(?:nue)?|R(?:d|oad)|Blvd|Boulevard|Dr(?:ive)?|Way|L(?:n|ane)|Pkwy|Parkway|Ct|Court|Cir(?:cle)?|Pl(?:ace)?`

var (
	spanAddressPattern   = regexp.MustCompile(`<span[^>]*>(\d+[^<]*(?:` + streetSuffix + `)\b[^<]*)</span>`)
	markupAddressPattern = regexp.MustCompile(`>(\d+[^<]+(?:` + streetSuffix + `)\b[^<]*)<`)
)

var ratingPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:[Ss]tars?|★)`)

// websiteAffordances are the known selectors a detail view uses to advertise
// the business's own website.
var websiteAffordances = []string{
	`a[data-tooltip="Open website"]`,
	`a[data-item-id="authority"]`,
	`a[aria-label*="Website"]`,
	`[aria-label*="Website"]`,
}

// websiteDenyHosts are domains that never count as a business website: the
// source's own properties plus map/social/video/review platforms.
var websiteDenyHosts = []string{
	"google.com",
	"gstatic.com",
	"googleusercontent.com",
	"maps.google.com",
	"facebook.com",
	"instagram.com",
	"youtube.com",
	"yelp.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"tiktok.com",
	"pinterest.com",
}

// Extractor turns a rendered detail view into a Record using ordered fallback
// strategies. A field whose strategies all miss is simply absent; nothing
// that happens during one field's extraction can fail another's.
type Extractor struct {
	strategy WebsiteStrategy
	logger   *zap.Logger
}

// NewExtractor builds an Extractor with the given website detection strategy.
func NewExtractor(strategy WebsiteStrategy, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strategy != WebsiteExtract {
		strategy = WebsitePresence
	}
	return &Extractor{strategy: strategy, logger: logger}
}

// Extract produces a best-effort Record from the rendered HTML of a detail
// view. displayName is the name already known from the listing card.
func (e *Extractor) Extract(html, displayName string) Record {
	rec := Record{Name: strings.TrimSpace(displayName)}

	// A parse failure only disables the selector-based strategies; the
	// regex fallbacks still run against the raw markup.
	var doc *goquery.Document
	if d, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		doc = d
	} else {
		e.logger.Debug("detail view did not parse as html", zap.Error(err))
	}

	e.field("phone", func() { rec.Phone = extractPhone(doc, html) })
	e.field("address", func() { rec.Address = extractAddress(html) })
	e.field("rating", func() { rec.Rating = extractRating(html) })
	e.field("website", func() {
		rec.HasWebsite, rec.WebsiteURL = e.extractWebsite(doc, html)
	})

	return rec
}

// field runs one extraction strategy chain, converting any panic into a
// missing field so the remaining fields still get extracted.
func (e *Extractor) field(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("field extraction panicked; treating as absent",
				zap.String("field", name), zap.Any("panic", r))
		}
	}()
	fn()
}

func extractPhone(doc *goquery.Document, html string) string {
	if doc != nil {
		if href, ok := doc.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
			if phone := normalizePhone(href); phone != "" {
				return phone
			}
		}
	}
	for _, pattern := range []*regexp.Regexp{
		telHrefPattern,
		labeledPhonePattern,
		markupPhonePattern,
		barePhonePattern,
	} {
		if m := pattern.FindStringSubmatch(html); m != nil {
			if phone := normalizePhone(m[1]); phone != "" {
				return phone
			}
		}
	}
	return ""
}

// normalizePhone strips the protocol-style prefix a tel anchor carries.
func normalizePhone(raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "tel:"))
}

func extractAddress(html string) string {
	for _, pattern := range []*regexp.Regexp{spanAddressPattern, markupAddressPattern} {
		if m := pattern.FindStringSubmatch(html); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func extractRating(html string) *float64 {
	m := ratingPattern.FindStringSubmatch(html)
	if m == nil {
		return nil
	}
	rating, err := strconv.ParseFloat(m[1], 64)
	if err != nil || rating < 0 || rating > 5 {
		// Not parseable as a sane rating; store absent, not an error.
		return nil
	}
	return &rating
}

func (e *Extractor) extractWebsite(doc *goquery.Document, html string) (bool, string) {
	if doc == nil {
		return false, ""
	}
	switch e.strategy {
	case WebsiteExtract:
		return extractWebsiteURL(doc)
	default:
		return detectWebsitePresence(doc)
	}
}

// detectWebsitePresence reports whether any known website affordance exists.
func detectWebsitePresence(doc *goquery.Document) (bool, string) {
	for _, selector := range websiteAffordances {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if href, ok := sel.Attr("href"); ok {
			if u := businessURL(href); u != "" {
				return true, u
			}
		}
		return true, ""
	}
	// The affordance is sometimes a bare labelled element with no usable
	// attributes at all.
	found := false
	doc.Find("a,button,span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == "Website" {
			found = true
			return false
		}
		return true
	})
	return found, ""
}

// extractWebsiteURL returns the first outbound anchor that survives the
// denylist of known non-business domains.
func extractWebsiteURL(doc *goquery.Document) (bool, string) {
	var website string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if u := businessURL(href); u != "" {
			website = u
			return false
		}
		return true
	})
	return website != "", website
}

// businessURL validates an href as an outbound business website URL,
// returning "" for relative links, non-http schemes, and denylisted hosts.
func businessURL(href string) string {
	parsed, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return ""
	}
	for _, deny := range websiteDenyHosts {
		if host == deny || strings.HasSuffix(host, "."+deny) {
			return ""
		}
	}
	return parsed.String()
}
