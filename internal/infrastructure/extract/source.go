// Package extract scans the document directory and pulls plain text out of
// the supported file formats.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
)

var supportedExtensions = map[string]struct{}{
	".pdf":  {},
	".docx": {},
	".doc":  {},
	".xlsx": {},
	".xls":  {},
	".txt":  {},
	".md":   {},
}

// Source reads corpus documents from a flat directory.
type Source struct {
	root string
}

func NewSource(root string) *Source {
	return &Source{root: root}
}

// ListFiles returns the supported files directly under the corpus
// directory, sorted by name. A missing directory is an empty corpus.
func (s *Source) ListFiles(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := supportedExtensions[ext]; !ok {
			continue
		}
		files = append(files, filepath.Join(s.root, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Fingerprint hashes the sorted (filename, mtime) pairs of the supported
// files. It changes when a file is added, removed, renamed or rewritten,
// without reading any file content.
func (s *Source) Fingerprint(ctx context.Context) (string, error) {
	files, err := s.ListFiles(ctx)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
		fmt.Fprintf(h, "%s|%d\n", filepath.Base(path), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Extract reads one file and returns its text split into sections. PDF and
// spreadsheet formats produce one section per page or sheet; flat formats
// produce a single unpaged section.
func (s *Source) Extract(_ context.Context, path string) (*domain.ExtractedDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var sections []domain.Section
	switch ext {
	case ".pdf":
		sections, err = extractPDF(content)
	case ".docx", ".doc":
		// Legacy .doc files saved by modern Word are OOXML inside; true
		// binary .doc fails here and the caller skips the file.
		sections, err = extractDOCX(content)
	case ".xlsx", ".xls":
		sections, err = extractExcel(content)
	default:
		sections, err = extractPlain(content)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}

	return &domain.ExtractedDocument{
		Filename: filepath.Base(path),
		FileType: strings.TrimPrefix(ext, "."),
		Sections: sections,
	}, nil
}
