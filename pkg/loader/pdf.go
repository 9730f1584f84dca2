package loader

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/duhu110/axiom/pkg/errs"
)

// loadPDF extracts text page-by-page, attaching {page, total_pages}
// metadata to each page's Document per spec.md §4.4. Pages with no
// extractable text are dropped rather than emitted empty.
func loadPDF(ctx context.Context, content []byte, metadata map[string]any) ([]Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, errs.New(errs.Validation, "open pdf", err)
	}

	total := reader.NumPage()
	docs := make([]Document, 0, total)
	for i := 1; i <= total; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, Document{
			Content: text,
			Metadata: withBase(metadata, map[string]any{
				"source":      "pdf",
				"page":        i,
				"total_pages": total,
			}),
		})
	}
	return docs, nil
}
