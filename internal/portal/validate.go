package portal

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var pdfMagic = []byte("%PDF-")

// ValidatePDF rejects payloads of minBytes or less, payloads without the PDF header
// and documents pdfcpu cannot read in relaxed mode.
func ValidatePDF(data []byte, minBytes int) error {
	if len(data) <= minBytes {
		return fmt.Errorf("%w: %d bytes", ErrInvalidPDF, len(data))
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return fmt.Errorf("%w: missing %%PDF- header", ErrInvalidPDF)
	}
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(data), cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return nil
}
