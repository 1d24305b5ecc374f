package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/medbrief/internal/core/domain"
)

// Extractor reads the text layer of a PDF page by page. Scanned documents
// without a text layer yield an extraction error.
type Extractor struct {
	maxPages int
}

func NewExtractor(maxPages int) *Extractor {
	return &Extractor{maxPages: maxPages}
}

func (e *Extractor) ExtractText(ctx context.Context, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", domain.WrapError(domain.ErrExtraction, "extract pdf", errors.New("empty document"))
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.WrapError(domain.ErrExtraction, "extract pdf", fmt.Errorf("parser panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "open pdf", err)
	}

	pages := reader.NumPage()
	if e.maxPages > 0 && pages > e.maxPages {
		return "", domain.WrapError(domain.ErrExtraction, "extract pdf", fmt.Errorf("document has %d pages, limit is %d", pages, e.maxPages))
	}

	parts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", domain.WrapError(domain.ErrExtraction, fmt.Sprintf("extract page %d", i), err)
		}
		parts = append(parts, strings.TrimSpace(pageText))
	}

	text = strings.TrimSpace(strings.Join(parts, "\n\n"))
	if text == "" {
		return "", domain.WrapError(domain.ErrExtraction, "extract pdf", errors.New("no text layer found"))
	}
	return text, nil
}
