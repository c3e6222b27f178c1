package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

func TestExtractor_Metadata(t *testing.T) {
	e := New()
	assert.Equal(t, "html", e.Name())
	assert.Equal(t, 50, e.Priority())
	assert.ElementsMatch(t, []string{"text/html", "application/xhtml+xml"}, e.SupportedMIMETypes())
}

func TestExtract_SectionsFromHeadings(t *testing.T) {
	page := `<!doctype html>
<html><head><title>Handbook</title><style>p{color:red}</style></head>
<body>
<nav><a href="/">Home</a></nav>
<p>Intro   paragraph.</p>
<h1>Enrolment</h1>
<p>Enrol before <b>March</b>.</p>
<h2>Refund policy</h2>
<ul><li><p>Full refund in week one.</p></li><li>Half refund in week two.</li></ul>
<script>var x = "hidden";</script>
</body></html>`

	sections, err := New().Extract(context.Background(), &driven.ExtractInput{Data: []byte(page), MIMEType: "text/html"})

	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, "Intro paragraph.", sections[0].Text)
	assert.Equal(t, "Enrolment", sections[1].Title)
	assert.Equal(t, "Enrolment\n\nEnrol before March.", sections[1].Text)
	assert.Equal(t, "Refund policy", sections[2].Title)
	assert.Equal(t, "Refund policy\n\nFull refund in week one.\n\nHalf refund in week two.", sections[2].Text)
	for _, s := range sections {
		assert.NotContains(t, s.Text, "hidden")
		assert.NotContains(t, s.Text, "Home")
	}
}

func TestExtract_BareBodyText(t *testing.T) {
	sections, err := New().Extract(context.Background(), &driven.ExtractInput{Data: []byte("<html><body>just text</body></html>")})
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "just text", sections[0].Text)
}

func TestExtract_NilInput(t *testing.T) {
	_, err := New().Extract(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
