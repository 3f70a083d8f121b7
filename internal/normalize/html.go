package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	minParagraphLength  = 30
	maxNavigationLength = 50

	maxServices     = 15
	maxProducts     = 10
	maxPricing      = 10
	maxTestimonials = 5
)

var (
	tagPattern         = regexp.MustCompile(`<[^>]*>`)
	entityPattern      = regexp.MustCompile(`&[^;]+;`)
	emailPattern       = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
	northAmericaPhone  = regexp.MustCompile(`(\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})`)
	internationalPhone = regexp.MustCompile(`(\+\d{1,3}[-.\s]?)?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}`)

	navigationKeywords  = []string{"home", "about", "contact", "menu", "login", "register", "search"}
	serviceKeywords     = []string{"service", "solution", "development", "design", "consulting", "support", "implementation", "integration", "maintenance", "training"}
	productKeywords     = []string{"product", "software", "app", "tool", "platform", "system"}
	pricingKeywords     = []string{"price", "cost", "fee", "plan", "subscription", "$", "€", "£"}
	testimonialKeywords = []string{"testimonial", "review", "feedback", "customer says", "client says"}
)

// FAQEntry is a question found on a page. Answer is never populated.
type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// StructuredContent is the structural breakdown of one HTML page. Every string
// is tag-stripped and whitespace-normalized.
type StructuredContent struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Headings     []string   `json:"headings"`
	Paragraphs   []string   `json:"paragraphs"`
	Links        []string   `json:"links"`
	ContactInfo  []string   `json:"contact_info"`
	Services     []string   `json:"services"`
	Products     []string   `json:"products"`
	FAQ          []FAQEntry `json:"faq"`
	Pricing      []string   `json:"pricing"`
	Testimonials []string   `json:"testimonials"`
}

// ExtractStructuredContent parses html and pulls out the page structure. It
// never fails: a missing element leaves its field empty. Links are reported
// as written; sourceURL is not used to resolve them.
func ExtractStructuredContent(html, sourceURL string) StructuredContent {
	content := StructuredContent{
		Headings:     []string{},
		Paragraphs:   []string{},
		Links:        []string{},
		ContactInfo:  []string{},
		Services:     []string{},
		Products:     []string{},
		FAQ:          []FAQEntry{},
		Pricing:      []string{},
		Testimonials: []string{},
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		extractDocument(doc, &content)
	}

	content.ContactInfo = extractContactInfo(html)

	content.Services = filterByKeywords(content.Paragraphs, serviceKeywords, maxServices)
	content.Products = filterByKeywords(content.Paragraphs, productKeywords, maxProducts)
	content.Pricing = filterByKeywords(content.Paragraphs, pricingKeywords, maxPricing)
	content.Testimonials = filterByKeywords(content.Paragraphs, testimonialKeywords, maxTestimonials)

	return content
}

func extractDocument(doc *goquery.Document, content *StructuredContent) {
	if title := doc.Find("title").First(); title.Length() > 0 {
		content.Title = cleanSelection(title)
	}

	doc.Find("meta[name][content]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(s.AttrOr("name", "")), "description") {
			return true
		}
		content.Description = cleanText(s.AttrOr("content", ""))
		return false
	})

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if heading := cleanSelection(s); heading != "" {
			content.Headings = append(content.Headings, heading)
		}
	})

	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		paragraph := cleanSelection(s)
		if utf8.RuneCountInString(paragraph) >= minParagraphLength && !isNavigationText(paragraph) {
			content.Paragraphs = append(content.Paragraphs, paragraph)
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		text := cleanSelection(s)
		if text == "" || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		content.Links = append(content.Links, fmt.Sprintf("%s (%s)", text, href))
	})

	// Headings first, then <strong>, then <b>: each selector is scanned on
	// its own so the list groups questions by element kind.
	for _, selector := range []string{"h1, h2, h3, h4, h5, h6", "strong", "b"} {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if question := cleanSelection(s); strings.Contains(question, "?") {
				content.FAQ = append(content.FAQ, FAQEntry{Question: question})
			}
		})
	}
}

// extractContactInfo scans the raw markup, so addresses inside attributes
// (mailto: links) are found too. Matches are not deduplicated.
func extractContactInfo(html string) []string {
	info := []string{}
	for _, email := range emailPattern.FindAllString(html, -1) {
		info = append(info, "Email: "+email)
	}
	for _, pattern := range []*regexp.Regexp{northAmericaPhone, internationalPhone} {
		for _, phone := range pattern.FindAllString(html, -1) {
			info = append(info, "Phone: "+phone)
		}
	}
	return info
}

func filterByKeywords(paragraphs, keywords []string, limit int) []string {
	matches := []string{}
	for _, p := range paragraphs {
		if len(matches) == limit {
			break
		}
		if containsAny(strings.ToLower(p), keywords) {
			matches = append(matches, p)
		}
	}
	return matches
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

func isNavigationText(text string) bool {
	return utf8.RuneCountInString(text) < maxNavigationLength && containsAny(strings.ToLower(text), navigationKeywords)
}

// cleanSelection cleans the inner markup of the first node in s. Working on
// markup rather than Text() keeps a space where each tag was.
func cleanSelection(s *goquery.Selection) string {
	inner, err := s.Html()
	if err != nil {
		return cleanText(s.Text())
	}
	return cleanText(inner)
}

func cleanText(text string) string {
	text = tagPattern.ReplaceAllString(text, " ")
	text = entityPattern.ReplaceAllString(text, " ")
	return collapseWhitespace(text)
}
