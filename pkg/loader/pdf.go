package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// loadPDF yields one record per page that has text. Page numbers are 0-based.
func loadPDF(ctx context.Context, path, source string) (records []Record, err error) {
	defer func() {
		// The pdf reader panics on some malformed inputs
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("load pdf %s: malformed document: %v", filepath.Base(path), r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load pdf %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	records = []Record{}
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("load pdf %s page %d: %w", filepath.Base(path), i, err)
		}
		text = normalize([]byte(text))
		if strings.TrimSpace(text) == "" {
			continue
		}
		records = append(records, Record{
			Text: text,
			Metadata: map[string]any{
				"source": source,
				"page":   i - 1,
			},
		})
	}
	return records, nil
}
