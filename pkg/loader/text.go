package loader

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/duhu110/axiom/pkg/errs"
)

// fallbackEncodings mirrors original_source/.../loader.py's _load_text
// decode chain: utf-8 is tried first (checked separately below), then
// gbk, gb2312, latin-1 in order.
var fallbackEncodings = []encoding.Encoding{
	simplifiedchinese.GBK,
	simplifiedchinese.HZGB2312,
	charmap.ISO8859_1,
}

func decodeText(content []byte) (string, bool) {
	if utf8.Valid(content) {
		return string(content), true
	}
	for _, enc := range fallbackEncodings {
		if out, err := enc.NewDecoder().Bytes(content); err == nil {
			return string(out), true
		}
	}
	return "", false
}

// loadText handles txt/md uploads, trying each supported encoding in
// turn and returning a single Document on first success.
func loadText(ctx context.Context, content []byte, metadata map[string]any) ([]Document, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	text, ok := decodeText(content)
	if !ok {
		return nil, errs.New(errs.Validation, "unable to decode text file with supported encodings", nil)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []Document{{
		Content:  text,
		Metadata: withBase(metadata, map[string]any{"source": "text"}),
	}}, nil
}
