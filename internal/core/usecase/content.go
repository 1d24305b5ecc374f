package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
)

// ContentResolver turns one user input into the plain text sent for
// summarization.
type ContentResolver struct {
	extractor ports.PDFExtractor
	scraper   ports.Scraper
	messages  domain.Messages
}

func NewContentResolver(extractor ports.PDFExtractor, scraper ports.Scraper, messages domain.Messages) *ContentResolver {
	return &ContentResolver{
		extractor: extractor,
		scraper:   scraper,
		messages:  messages,
	}
}

func (r *ContentResolver) Resolve(ctx context.Context, recordID string, input domain.Input) (string, error) {
	if input.Mode == domain.InputModeFile {
		return r.resolveFile(ctx, input.File)
	}

	text := strings.TrimSpace(input.Text)
	if isAbsoluteURL(text) {
		return r.resolveURL(ctx, recordID, text), nil
	}
	return text, nil
}

func (r *ContentResolver) resolveFile(ctx context.Context, file *domain.FileInput) (string, error) {
	if file == nil || len(file.Data) == 0 {
		return "", domain.NewUserError(domain.ErrValidation, r.messages.Get(domain.MsgFileMissing), nil)
	}
	if r.extractor == nil {
		return "", domain.NewUserError(domain.ErrExtraction, r.messages.Get(domain.MsgExtraction), errors.New("pdf extractor is not configured"))
	}

	text, err := r.extractor.ExtractText(ctx, file.Data)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("no extractable text")
	}
	if err != nil {
		slog.Error("pdf_extraction_error", "file_name", file.Name, "error", err)
		return "", domain.NewUserError(domain.ErrExtraction, r.messages.Get(domain.MsgExtraction), err)
	}
	slog.Debug("pdf_extracted", "file_name", file.Name, "text_length", len(text))
	return text, nil
}

// resolveURL never fails: a scrape error or an empty page degrades to the raw
// URL so the automation endpoint still receives something to work with.
func (r *ContentResolver) resolveURL(ctx context.Context, recordID, target string) string {
	if r.scraper == nil {
		return target
	}

	text, err := r.scraper.Scrape(ctx, recordID, target)
	if err != nil {
		slog.Warn("scrape_fallback_raw_url", "record_id", recordID, "url", target, "error", err)
		return target
	}
	if strings.TrimSpace(text) == "" {
		slog.Warn("scrape_fallback_raw_url", "record_id", recordID, "url", target, "error", "empty text")
		return target
	}
	return text
}

func isAbsoluteURL(raw string) bool {
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return parsed.Host != ""
	default:
		return false
	}
}
