package loader

import (
	"bytes"
	"context"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/duhu110/axiom/pkg/errs"
)

// loadXLSX extracts one Document per sheet, joining rows with newlines
// and cells with tabs. Additive beyond spec.md's pdf/txt/md/docx set
// (see SPEC_FULL.md §2.2); empty sheets are skipped.
func loadXLSX(ctx context.Context, content []byte, metadata map[string]any) ([]Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, errs.New(errs.Validation, "open xlsx", err)
	}
	defer f.Close()

	var docs []Document
	for _, sheet := range f.GetSheetList() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		var b strings.Builder
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
		text := b.String()
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, Document{
			Content:  text,
			Metadata: withBase(metadata, map[string]any{"source": "xlsx", "sheet": sheet}),
		})
	}
	return docs, nil
}
