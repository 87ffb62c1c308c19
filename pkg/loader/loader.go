// Package loader turns files on disk into text records with metadata,
// dispatching on the file extension.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// Record is one unit of loaded text. PDF files produce one record per page.
type Record struct {
	Text     string
	Metadata map[string]any
}

type Loader interface {
	Load(ctx context.Context, path, source string) ([]Record, error)
}

var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
	".log": true,
}

type FileLoader struct{}

func New() *FileLoader {
	return &FileLoader{}
}

// Load reads path and tags every record with source, defaulting to the base name.
// Text and PDF failures are returned; unknown extensions that cannot be read as
// text yield an empty slice and no error.
func (l *FileLoader) Load(ctx context.Context, path, source string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if source == "" {
		source = filepath.Base(path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case textExtensions[ext]:
		text, err := readText(path)
		if err != nil {
			return nil, fmt.Errorf("load text %s: %w", filepath.Base(path), err)
		}
		return single(text, source), nil
	case ext == ".pdf":
		return loadPDF(ctx, path, source)
	default:
		return loadFallback(path, source), nil
	}
}

func single(text, source string) []Record {
	if strings.TrimSpace(text) == "" {
		return []Record{}
	}
	return []Record{{Text: text, Metadata: map[string]any{"source": source}}}
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return normalize(data), nil
}

// normalize strips a UTF-8 BOM, replaces invalid sequences and folds CRLF to LF.
func normalize(data []byte) string {
	text := strings.TrimPrefix(string(data), "\ufeff")
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	return strings.ReplaceAll(text, "\r\n", "\n")
}

func loadFallback(path, source string) []Record {
	mtype, err := mimetype.DetectFile(path)
	if err != nil || !isText(mtype) {
		return []Record{}
	}
	text, err := readText(path)
	if err != nil {
		return []Record{}
	}
	return single(text, source)
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// DetectType returns the MIME type recorded in the document registry.
func DetectType(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mtype.String()
}
