package collab

import (
	"strings"

	"github.com/ledongthuc/pdf"

	"arxiv-refextract/internal/apperr"
)

// PDFTextReferenceExtractor reads a PDF page by page with ledongthuc/pdf
// and concatenates the plain text, the same library call sequence the
// pipeline's PDF reading used before extraction had its own package: open
// the file, walk NumPage, and pull GetPlainText off each page.
type PDFTextReferenceExtractor struct{}

// ExtractText implements PDFReferenceExtractor.
func (PDFTextReferenceExtractor) ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", apperr.Wrap(apperr.TextConversionFailed, "failed to open PDF for text extraction", err)
	}
	defer f.Close()

	var sb strings.Builder
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	if sb.Len() == 0 {
		return "", apperr.New(apperr.TextConversionFailed, "PDF produced no extractable text")
	}
	return sb.String(), nil
}
