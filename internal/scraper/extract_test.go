package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html><head><title>Aven</title><script>var tracking = 1;</script></head>
<body>
  <header><nav><a href="/login">Sign in</a></nav></header>
  <main>
    <h1>Home Equity Visa Card</h1>
    <p>Rates as low as <strong>7.99%</strong>. See <a href="/rates">rates</a>.</p>
  </main>
  <footer>Copyright</footer>
</body></html>`

func TestMainContentMarkdown(t *testing.T) {
	out, err := MainContentMarkdown("https://www.aven.com", strings.NewReader(page))
	require.NoError(t, err)

	assert.Contains(t, out, "# Home Equity Visa Card")
	assert.Contains(t, out, "**7.99%**")
	assert.Contains(t, out, "(https://www.aven.com/rates)")
	assert.NotContains(t, out, "Sign in")
	assert.NotContains(t, out, "Copyright")
	assert.NotContains(t, out, "tracking")
}

func TestMainContentMarkdown_FallsBackToBody(t *testing.T) {
	out, err := MainContentMarkdown("https://www.aven.com", strings.NewReader(`<html><body><p>Just text</p></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Just text", out)
}

func TestMainContentMarkdown_ResolvesLinksAgainstPage(t *testing.T) {
	html := `<main><p>
		<a href="/rates">root</a>
		<a href="fees">sibling</a>
		<a href="../legal">parent</a>
		<a href="https://other.test/x">absolute</a>
		<img src="/card.png" alt="card">
	</p></main>`
	out, err := MainContentMarkdown("https://www.aven.com/support/faq", strings.NewReader(html))
	require.NoError(t, err)

	assert.Contains(t, out, "[root](https://www.aven.com/rates)")
	assert.Contains(t, out, "[sibling](https://www.aven.com/support/fees)")
	assert.Contains(t, out, "[parent](https://www.aven.com/legal)")
	assert.Contains(t, out, "[absolute](https://other.test/x)")
	assert.Contains(t, out, "![card](https://www.aven.com/card.png)")
	assert.NotContains(t, out, "%2F")
}
