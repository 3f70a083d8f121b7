package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Acme   Widgets</title>
  <meta name="description" content="Quality widgets since 1999">
</head>
<body>
  <nav><p>Home | About | Contact</p></nav>
  <h1>Welcome to <em>Acme</em></h1>
  <h2>Do you ship overseas?</h2>
  <p>We provide consulting services for industrial widget design teams.</p>
  <p>Our product platform helps you track every widget in the warehouse.</p>
  <p>Short one.</p>
  <p>Plans start at $10 per month with a yearly subscription option.</p>
  <p>Great testimonial: the customer says Acme changed their business forever.</p>
  <p><strong>Is there a free trial?</strong> Yes, for fourteen whole days.</p>
  <a href="/pricing">Pricing</a>
  <a href="#top">Back to top</a>
  <a href="javascript:void(0)">Open menu</a>
  <a href="/empty"></a>
  <a href="mailto:sales@acme.com">Email us</a>
</body>
</html>`

func TestExtractStructuredContent_Page(t *testing.T) {
	c := ExtractStructuredContent(samplePage, "https://acme.test")

	assert.Equal(t, "Acme Widgets", c.Title)
	assert.Equal(t, "Quality widgets since 1999", c.Description)
	assert.Equal(t, []string{"Welcome to Acme", "Do you ship overseas?"}, c.Headings)

	require.Len(t, c.Paragraphs, 5)
	assert.Equal(t, "We provide consulting services for industrial widget design teams.", c.Paragraphs[0])
	assert.Equal(t, "Is there a free trial? Yes, for fourteen whole days.", c.Paragraphs[4])
	for _, p := range c.Paragraphs {
		assert.NotContains(t, p, "Home |")
		assert.NotEqual(t, "Short one.", p)
	}

	assert.Equal(t, []string{
		"Pricing (/pricing)",
		"Email us (mailto:sales@acme.com)",
	}, c.Links)

	assert.Contains(t, c.ContactInfo, "Email: sales@acme.com")

	assert.Contains(t, c.Services, c.Paragraphs[0])
	assert.Contains(t, c.Products, c.Paragraphs[1])
	assert.Contains(t, c.Pricing, c.Paragraphs[2])
	assert.Equal(t, []string{c.Paragraphs[3]}, c.Testimonials)

	assert.Equal(t, []FAQEntry{
		{Question: "Do you ship overseas?"},
		{Question: "Is there a free trial?"},
	}, c.FAQ)
}

func TestExtractStructuredContent_TitleOnly(t *testing.T) {
	c := ExtractStructuredContent("<title>Foo</title>", "")

	assert.Equal(t, "Foo", c.Title)
	assert.Empty(t, c.Description)
	assert.Empty(t, c.Headings)
	assert.Empty(t, c.Paragraphs)
	assert.Empty(t, c.Links)
	assert.NotNil(t, c.Headings)
	assert.NotNil(t, c.FAQ)
}

func TestExtractStructuredContent_NavigationParagraphExcluded(t *testing.T) {
	long := "<p>" + strings.Repeat("x", maxNavigationLength) + " home</p>"
	nav := "<p>Welcome home, please log in to continue</p>"
	c := ExtractStructuredContent(nav+long, "")

	require.Len(t, c.Paragraphs, 1)
	assert.True(t, strings.HasSuffix(c.Paragraphs[0], " home"))
}

func TestExtractStructuredContent_ParagraphLengthBoundary(t *testing.T) {
	exact := strings.Repeat("a", minParagraphLength)
	short := strings.Repeat("b", minParagraphLength-1)
	c := ExtractStructuredContent("<p>"+exact+"</p><p>"+short+"</p>", "")

	assert.Equal(t, []string{exact}, c.Paragraphs)
}

func TestExtractStructuredContent_ContactOrder(t *testing.T) {
	c := ExtractStructuredContent(`<p>Call 555-123-4567 or mail info@example.org</p>`, "")

	require.NotEmpty(t, c.ContactInfo)
	assert.Equal(t, "Email: info@example.org", c.ContactInfo[0])
	assert.Contains(t, c.ContactInfo, "Phone: 555-123-4567")
}

func TestExtractStructuredContent_KeywordCaps(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("<p>We offer a product and a service plan with a great review.</p>")
	}
	c := ExtractStructuredContent(b.String(), "")

	assert.Len(t, c.Paragraphs, 20)
	assert.Len(t, c.Services, maxServices)
	assert.Len(t, c.Products, maxProducts)
	assert.Len(t, c.Pricing, maxPricing)
	assert.Len(t, c.Testimonials, maxTestimonials)
}

func TestExtractStructuredContent_Malformed(t *testing.T) {
	assert.NotPanics(t, func() {
		c := ExtractStructuredContent("<html><p>unclosed <b>bold <<<>>> &&&", "")
		assert.Empty(t, c.Title)
	})
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", cleanText("  a<br/>b&nbsp;c \n"))
	assert.Equal(t, "", cleanText("<span></span>"))
}
