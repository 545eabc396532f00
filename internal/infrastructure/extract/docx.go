package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
)

const docxDocumentPath = "word/document.xml"

// wtTag matches <w:t>text</w:t> including variants with attributes such as
// <w:t xml:space="preserve">.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// extractDOCX pulls all text nodes out of the OOXML document body. DOCX has
// no fixed pagination, so the whole body is a single unpaged section.
func extractDOCX(content []byte) ([]domain.Section, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open docx: not a zip: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != docxDocumentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		break
	}
	if docXML == nil {
		return nil, fmt.Errorf("%s not found", docxDocumentPath)
	}

	matches := wtTag.FindAllStringSubmatch(string(docXML), -1)
	if len(matches) == 0 {
		return nil, nil
	}

	var b strings.Builder
	for i, match := range matches {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(match[1]))
	}
	return []domain.Section{{Text: strings.TrimSpace(b.String())}}, nil
}
