package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrEmptyPDF is returned for a zero-length payload.
var ErrEmptyPDF = errors.New("empty pdf data")

// Document is the text content of a PDF.
type Document struct {
	Text  string
	Pages int
}

// TextFromPDF concatenates the plain text of every page.
// Libraries used: github.com/ledongthuc/pdf (text) and github.com/pdfcpu/pdfcpu (page count).
func TextFromPDF(ctx context.Context, data []byte) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if len(data) == 0 {
		return Document{}, ErrEmptyPDF
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Document{}, fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return Document{}, fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return Document{}, fmt.Errorf("read pdf text: %w", err)
	}

	pages := reader.NumPage()
	if n, err := pageCount(data); err == nil {
		pages = n
	}
	return Document{Text: buf.String(), Pages: pages}, nil
}

func pageCount(data []byte) (int, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), cfg)
}

// Truncate keeps the first maxRunes characters of text. A non-positive limit keeps everything.
func Truncate(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	n := 0
	for i := range text {
		if n == maxRunes {
			return text[:i]
		}
		n++
	}
	return text
}

// Readable reports whether text holds more than minChars characters once trimmed.
func Readable(text string, minChars int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) > minChars
}
