package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
)

// extractExcel produces one section per sheet, rows joined with tabs. The
// sheet position doubles as the page number for source attribution.
func extractExcel(content []byte) ([]domain.Section, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var sections []domain.Section
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}

		var b strings.Builder
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		sections = append(sections, domain.Section{Page: i + 1, Text: text})
	}
	return sections, nil
}
