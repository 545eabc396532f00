package extract

import (
	"archive/zip"
	"bytes"
	"testing"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDocxTextNodes(t *testing.T) {
	// Runs carry attributes in real documents; the extraction must not
	// depend on attribute-free tags.
	content := buildDocx(t, `<w:document><w:body>`+
		`<w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">Hello </w:t></w:r>`+
		`<w:r><w:t>World</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>`+
		`</w:body></w:document>`)

	sections, err := extractDOCX(content)
	if err != nil {
		t.Fatalf("extractDOCX: %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(sections))
	}
	if sections[0].Text != "Hello World Second paragraph" {
		t.Fatalf("text = %q", sections[0].Text)
	}
}

func TestExtractDocxMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("word/other.xml"); err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	if _, err := extractDOCX(buf.Bytes()); err == nil {
		t.Fatal("expected error when document.xml is absent")
	}
}
