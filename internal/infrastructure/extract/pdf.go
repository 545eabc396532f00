package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
)

// extractPDF produces one section per page so chunk metadata can carry the
// page number for source attribution.
func extractPDF(content []byte) ([]domain.Section, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := r.NumPage()
	sections := make([]domain.Section, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		sections = append(sections, domain.Section{Page: i, Text: text})
	}
	return sections, nil
}
