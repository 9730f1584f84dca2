// Package loader extracts plain-text documents from uploaded knowledge-base
// files, keyed by file extension. Grounded on
// original_source/.../knowledgebase/core/loader.go's SUPPORTED_TYPES map,
// reborn here as a Go constructor registry.
package loader

import (
	"context"
	"strings"

	"github.com/duhu110/axiom/pkg/errs"
)

// Document is one extracted unit of text plus its provenance metadata.
// A single source file may expand into several Documents (one per PDF
// page, one per spreadsheet sheet); the splitter downstream treats each
// independently.
type Document struct {
	Content  string
	Metadata map[string]any
}

// Loader extracts Documents from a file's raw bytes.
type Loader interface {
	Load(ctx context.Context, content []byte, metadata map[string]any) ([]Document, error)
}

// LoaderFunc adapts a plain function to Loader.
type LoaderFunc func(ctx context.Context, content []byte, metadata map[string]any) ([]Document, error)

func (f LoaderFunc) Load(ctx context.Context, content []byte, metadata map[string]any) ([]Document, error) {
	return f(ctx, content, metadata)
}

// registry maps a normalized file type to its Loader. xlsx is additive
// beyond spec.md's pdf/txt/md/docx set.
var registry = map[string]Loader{
	"pdf":  LoaderFunc(loadPDF),
	"txt":  LoaderFunc(loadText),
	"md":   LoaderFunc(loadText),
	"docx": LoaderFunc(loadDocx),
	"xlsx": LoaderFunc(loadXLSX),
}

// For returns the Loader registered for the given file type.
func For(fileType string) (Loader, error) {
	l, ok := registry[strings.ToLower(fileType)]
	if !ok {
		return nil, errs.New(errs.Validation, "unsupported file type: "+fileType, nil)
	}
	return l, nil
}

// Load is a convenience wrapper around For(fileType).Load.
func Load(ctx context.Context, content []byte, fileType string, metadata map[string]any) ([]Document, error) {
	l, err := For(fileType)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, content, metadata)
}

// FileType derives the normalized file type from a filename's extension.
func FileType(filename string) (string, error) {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return "", errs.New(errs.Validation, "filename has no extension: "+filename, nil)
	}
	ext := strings.ToLower(filename[idx+1:])
	if _, ok := registry[ext]; !ok {
		return "", errs.New(errs.Validation, "unsupported file extension: "+ext, nil)
	}
	return ext, nil
}

// IsSupported reports whether filename's extension has a registered Loader.
func IsSupported(filename string) bool {
	_, err := FileType(filename)
	return err == nil
}

func withBase(meta map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+len(extra))
	for k, v := range meta {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
