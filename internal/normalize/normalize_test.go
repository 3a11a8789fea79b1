package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextLineEndings(t *testing.T) {
	got, err := Text("First line\r\nSecond line\nThird line\rFourth line", Options{})
	require.NoError(t, err)
	assert.Equal(t, "First line\nSecond line\nThird line\nFourth line", got)
}

func TestTextWhitespace(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trim", "  \n hello \n\n", "hello"},
		{"break runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"space runs", "a      b", "a  b"},
		{"tabs", "a\t\t\t\tb", "a  b"},
		{"trailing spaces", "a   \nb", "a\nb"},
		{"blank lines with spaces", "a\n  \n  \n  \nb", "a\n\nb"},
		{"keeps indentation", "list:\n  - item", "list:\n  - item"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text(tt.in, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextIdempotent(t *testing.T) {
	inputs := []string{
		"a \r\n\r\n\r\n b    c\t\t\t\n\n\n\nd  ",
		"<p>One</p>\n\n<div>  Two   three </div>",
		"plain text that is already normal.",
	}
	for _, in := range inputs {
		for _, strip := range []bool{false, true} {
			once, err := Text(in, Options{StripHTML: strip})
			require.NoError(t, err)
			twice, err := Text(once, Options{StripHTML: false})
			require.NoError(t, err)
			assert.Equal(t, once, twice)
		}
	}
}

func TestTextStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"inline", "Some <b>HTML</b> content", "Some HTML content"},
		{"paragraphs", "<p>One</p><p>Two</p>", "One\n\nTwo"},
		{"list", "<ul><li>a</li><li>b</li></ul>", "a\nb"},
		{"line break", "a<br>b", "a\nb"},
		{"script dropped", "<script>var x = 1;</script><p>kept</p>", "kept"},
		{"head dropped", "<html><head><title>T</title></head><body>body</body></html>", "body"},
		{"entities", "<p>fish &amp; chips</p>", "fish & chips"},
		{"source whitespace", "<p>wrapped\n   line</p>", "wrapped line"},
		{"table cells", "<table><tr><td>a</td><td>b</td></tr></table>", "a b"},
		{"pre keeps line breaks", "<pre>x\n  y</pre>", "x\ny"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text(tt.in, Options{StripHTML: true})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Title", "Title\n"},
		{"Title\n", "Title\n"},
		{"Title\r\n\r\n", "Title\n"},
		{"Line 1\rLine 2", "Line 1\nLine 2\n"},
		{"\n\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Header(tt.in))
		})
	}
}
