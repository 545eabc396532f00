package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
)

// extractPlain returns the content as a single unpaged section. Invalid
// UTF-8 sequences are replaced rather than rejected.
func extractPlain(content []byte) ([]domain.Section, error) {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return []domain.Section{{Text: text}}, nil
}
