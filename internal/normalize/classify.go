package normalize

import (
	"strings"
)

type ContentType string

const (
	ContentTypeBusiness  ContentType = "business"
	ContentTypeBlog      ContentType = "blog"
	ContentTypeEcommerce ContentType = "ecommerce"
	ContentTypePortfolio ContentType = "portfolio"
	ContentTypeUnknown   ContentType = "unknown"
)

const (
	defaultPageTitle       = "Website Content"
	defaultPageDescription = "Website content extracted successfully"

	summaryParagraphs = 5
	summaryLinks      = 10
)

// Checked in order; a page matching several categories gets the first.
var contentTypeRules = []struct {
	contentType ContentType
	keywords    []string
}{
	{ContentTypeEcommerce, []string{"shop", "buy", "cart", "product"}},
	{ContentTypeBlog, []string{"blog", "article", "post", "news"}},
	{ContentTypePortfolio, []string{"portfolio", "gallery", "work", "project"}},
	{ContentTypeBusiness, []string{"service", "company", "business", "about"}},
}

// DetermineContentType classifies a page from its title, description,
// headings and paragraphs.
func DetermineContentType(c StructuredContent) ContentType {
	text := strings.ToLower(strings.Join([]string{
		c.Title,
		c.Description,
		strings.Join(c.Headings, " "),
		strings.Join(c.Paragraphs, " "),
	}, " "))

	for _, rule := range contentTypeRules {
		if containsAny(text, rule.keywords) {
			return rule.contentType
		}
	}
	return ContentTypeUnknown
}

// GenerateContentSummary renders c as the plain-text document stored for a
// scraped page. Empty sections are left out.
func GenerateContentSummary(c StructuredContent, url string) string {
	var b strings.Builder

	section := func(header, body string) {
		b.WriteString(header)
		b.WriteString(body)
		b.WriteString("\n\n")
	}

	if url != "" {
		section("Website: ", url)
	}
	if c.Title != "" {
		section("Title: ", c.Title)
	}
	if c.Description != "" {
		section("Description: ", c.Description)
	}
	if len(c.Headings) > 0 {
		section("Main Sections:\n", bulletList(c.Headings))
	}
	if len(c.Paragraphs) > 0 {
		section("About Us:\n", strings.Join(firstN(c.Paragraphs, summaryParagraphs), "\n\n"))
	}
	if len(c.Services) > 0 {
		section("Services:\n", bulletList(c.Services))
	}
	if len(c.Products) > 0 {
		section("Products:\n", bulletList(c.Products))
	}
	if len(c.ContactInfo) > 0 {
		section("Contact Information:\n", strings.Join(c.ContactInfo, "\n"))
	}
	if len(c.FAQ) > 0 {
		questions := make([]string, len(c.FAQ))
		for i, entry := range c.FAQ {
			questions[i] = "Q: " + entry.Question
		}
		section("Frequently Asked Questions:\n", strings.Join(questions, "\n"))
	}
	if len(c.Pricing) > 0 {
		section("Pricing Information:\n", bulletList(c.Pricing))
	}
	if len(c.Testimonials) > 0 {
		section("Customer Testimonials:\n", bulletList(c.Testimonials))
	}
	if len(c.Links) > 0 {
		section("Important Links:\n", strings.Join(firstN(c.Links, summaryLinks), "\n"))
	}

	return strings.TrimSpace(b.String())
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

type PageMetadata struct {
	URL            string      `json:"url"`
	WordCount      int         `json:"word_count"`
	Headings       int         `json:"headings"`
	Paragraphs     int         `json:"paragraphs"`
	Links          int         `json:"links"`
	HasContactInfo bool        `json:"has_contact_info"`
	ContentType    ContentType `json:"content_type"`
}

// PageAnalysis is everything derived from one fetched page.
type PageAnalysis struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Summary     string            `json:"content"`
	Structure   StructuredContent `json:"structure"`
	Metadata    PageMetadata      `json:"metadata"`
}

// Analyze extracts, summarizes and classifies a page in one pass.
func Analyze(html, url string) *PageAnalysis {
	content := ExtractStructuredContent(html, url)
	summary := GenerateContentSummary(content, url)

	title := content.Title
	if title == "" {
		title = defaultPageTitle
	}
	description := content.Description
	if description == "" {
		description = defaultPageDescription
	}

	return &PageAnalysis{
		Title:       title,
		Description: description,
		Summary:     summary,
		Structure:   content,
		Metadata: PageMetadata{
			URL:            url,
			WordCount:      WordCount(summary),
			Headings:       len(content.Headings),
			Paragraphs:     len(content.Paragraphs),
			Links:          len(content.Links),
			HasContactInfo: len(content.ContactInfo) > 0,
			ContentType:    DetermineContentType(content),
		},
	}
}
