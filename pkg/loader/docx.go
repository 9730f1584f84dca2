package loader

import (
	"bytes"
	"context"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"github.com/duhu110/axiom/pkg/errs"
)

// loadDocx extracts a single Document of plain text from a .docx file.
func loadDocx(ctx context.Context, content []byte, metadata map[string]any) ([]Document, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	r, err := docx.ReadDocxFromMemory(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, errs.New(errs.Validation, "open docx", err)
	}
	defer r.Close()

	text := r.Editable().GetContent()
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []Document{{
		Content:  text,
		Metadata: withBase(metadata, map[string]any{"source": "docx"}),
	}}, nil
}
