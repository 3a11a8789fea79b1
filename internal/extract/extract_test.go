package extract

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		want        Kind
		wantErr     bool
	}{
		{"plain text", "a.txt", "text/plain", KindText, false},
		{"charset parameter", "a", "text/plain; charset=utf-8", KindText, false},
		{"markdown type", "notes", "text/markdown", KindMarkdown, false},
		{"markdown extension", "README.md", "", KindMarkdown, false},
		{"html extension", "page.HTML", "", KindHTML, false},
		{"pdf", "doc.pdf", "application/pdf", KindPDF, false},
		{"octet stream falls back", "doc.pdf", "application/octet-stream", KindPDF, false},
		{"unknown extension", "image.png", "", "", true},
		{"unsupported type", "a.txt", "image/png", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(tt.filename, tt.contentType)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     string
		want     string
		kind     Kind
	}{
		{"plain", "a.txt", "hello\nworld", "hello\nworld", KindText},
		{"byte order mark", "a.txt", "\xef\xbb\xbfhello", "hello", KindText},
		{"invalid utf8", "a.txt", "a\xffb", "a�b", KindText},
		{"markdown untouched", "a.md", "# Title\n\nBody", "# Title\n\nBody", KindMarkdown},
		{"html flattened", "a.html", "<p>One</p><p>Two &amp; three</p>", "One\n\nTwo & three", KindHTML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, kind, err := Text(tt.filename, "", []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestTextRejectsBrokenPDF(t *testing.T) {
	_, kind, err := Text("doc.pdf", "application/pdf", []byte("not a pdf"))
	assert.Error(t, err)
	assert.Equal(t, KindPDF, kind)
}

// buildPDF assembles a minimal PDF whose numbered objects are given in
// order. Object 1 is the catalog.
func buildPDF(objects ...string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

func TestTextPDFPageTree(t *testing.T) {
	const catalog = "<< /Type /Catalog /Pages 2 0 R >>"
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{
			name: "single page without contents",
			data: buildPDF(catalog,
				"<< /Type /Pages /Count 1 /Kids [3 0 R] >>",
				"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>"),
		},
		{
			name: "nested pages node",
			data: buildPDF(catalog,
				"<< /Type /Pages /Count 2 /Kids [3 0 R] >>",
				"<< /Type /Pages /Parent 2 0 R /Count 2 /Kids [4 0 R 5 0 R] >>",
				"<< /Type /Page /Parent 3 0 R >>",
				"<< /Type /Page /Parent 3 0 R >>"),
		},
		{
			name:    "kids not an array",
			data:    buildPDF(catalog, "<< /Type /Pages /Count 1 /Kids 5 >>"),
			wantErr: true,
		},
		{
			name: "count larger than leaves",
			data: buildPDF(catalog,
				"<< /Type /Pages /Count 2 /Kids [3 0 R] >>",
				"<< /Type /Page /Parent 2 0 R >>"),
			wantErr: true,
		},
		{
			name: "inner count mismatch",
			data: buildPDF(catalog,
				"<< /Type /Pages /Count 1 /Kids [3 0 R] >>",
				"<< /Type /Pages /Parent 2 0 R /Count 3 /Kids [4 0 R] >>",
				"<< /Type /Page /Parent 3 0 R >>"),
			wantErr: true,
		},
		{
			name: "kids cycle back to root",
			data: buildPDF(catalog,
				"<< /Type /Pages /Count 1 /Kids [2 0 R] >>"),
			wantErr: true,
		},
		{
			name: "unknown kid type",
			data: buildPDF(catalog,
				"<< /Type /Pages /Count 1 /Kids [3 0 R] >>",
				"<< /Type /Font >>"),
			wantErr: true,
		},
		{
			name: "parent cycle",
			data: buildPDF(catalog,
				"<< /Type /Pages /Count 1 /Kids [3 0 R] >>",
				"<< /Type /Page /Parent 4 0 R >>",
				"<< /Type /Pages /Parent 3 0 R >>"),
			wantErr: true,
		},
		{
			name:    "missing page tree",
			data:    buildPDF("<< /Type /Catalog >>"),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, kind, err := Text("doc.pdf", "application/pdf", tt.data)
			assert.Equal(t, KindPDF, kind)
			if tt.wantErr {
				assert.ErrorIs(t, err, errMalformedPDF)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestTextUnsupported(t *testing.T) {
	_, _, err := Text("image.png", "", []byte{0x89, 'P', 'N', 'G'})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
