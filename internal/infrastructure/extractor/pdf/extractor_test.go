package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kirillkom/medbrief/internal/core/domain"
)

// buildPDF writes a minimal text PDF with one page per entry.
func buildPDF(pages ...string) []byte {
	var buf bytes.Buffer
	var offsets []int
	write := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, 0, len(pages))
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}
	write("<< /Type /Catalog /Pages 2 0 R >>")
	write(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	write("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pages {
		write(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		write(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestExtractTextJoinsPages(t *testing.T) {
	text, err := NewExtractor(0).ExtractText(context.Background(), buildPDF("Aspirin reduces risk", "Second page"))
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	first := strings.Index(text, "Aspirin reduces risk")
	second := strings.Index(text, "Second page")
	if first < 0 || second < 0 || second < first {
		t.Fatalf("unexpected text %q", text)
	}
	if !strings.Contains(text[first:second], "\n\n") {
		t.Fatalf("expected blank line between pages, got %q", text)
	}
	if text != strings.TrimSpace(text) {
		t.Fatalf("expected trimmed text")
	}
}

func TestExtractTextRejectsInvalidInput(t *testing.T) {
	cases := map[string][]byte{
		"empty":     nil,
		"not a pdf": []byte("this is plain text"),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewExtractor(0).ExtractText(context.Background(), data)
			if !domain.IsKind(err, domain.ErrExtraction) {
				t.Fatalf("expected extraction error, got %v", err)
			}
		})
	}
}

func TestExtractTextEnforcesPageLimit(t *testing.T) {
	_, err := NewExtractor(1).ExtractText(context.Background(), buildPDF("one", "two"))
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}
