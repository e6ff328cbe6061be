package htmlclean

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanHTML(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		input string
		max   int
		want  string
	}{
		"strips_tags_and_scripts": {
			input: `<div><p>Hello <strong>world</strong>!<script>bad()</script></p><p>Second&nbsp;line</p></div>`,
			max:   2048,
			want:  "Hello world! Second line",
		},
		"decodes_entities_and_collapses_whitespace": {
			input: "Hello\n\n&amp;nbsp;world\t!",
			max:   2048,
			want:  "Hello world!",
		},
		"keeps_invalid_markup_as_text": {
			input: "Hello &amp; welcome < invalid>",
			max:   2048,
			want:  "Hello & welcome < invalid>",
		},
		"truncates_to_max": {
			input: `<p>` + strings.Repeat("a", 700) + `</p>`,
			max:   0,
			want:  strings.Repeat("a", DefaultMaxLength),
		},
		"list_items_are_separated": {
			input: `<ul><li>Tenure</li><li>Promotion</li></ul>`,
			max:   100,
			want:  "Tenure Promotion",
		},
		"empty": {
			input: "   ",
			want:  "",
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CleanHTML(tc.input, tc.max))
		})
	}
}

func TestParsePage(t *testing.T) {
	t.Parallel()

	doc := `<!doctype html><html><head>
<title> Faculty Affairs | Dalhousie </title>
<meta name="description" content="Policies  for faculty members.">
</head><body><h1>Faculty</h1><p>Body text</p></body></html>`

	page, err := ParsePage(strings.NewReader(doc), 0)
	require.NoError(t, err)
	assert.Equal(t, "Faculty Affairs | Dalhousie", page.Title)
	assert.Equal(t, "Policies for faculty members.", page.Summary)
}

func TestParsePagePrefersOpenGraphTitle(t *testing.T) {
	t.Parallel()

	doc := `<html><head><meta property="og:title" content="Collective Agreement"><title>ignored</title></head>
<body><h1>Heading</h1></body></html>`

	page, err := ParsePage(strings.NewReader(doc), 0)
	require.NoError(t, err)
	assert.Equal(t, "Collective Agreement", page.Title)
}

func TestParsePageFallsBackToBody(t *testing.T) {
	t.Parallel()

	doc := `<html><body><h1>Research funding</h1><script>track()</script><p>Apply before <b>May 1</b>.</p></body></html>`

	page, err := ParsePage(strings.NewReader(doc), 20)
	require.NoError(t, err)
	assert.Equal(t, "Research funding", page.Title)
	assert.Equal(t, "Research funding App", page.Summary)
}
