package splitter

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenLength returns a LengthFunc that measures text in model tokens
// rather than runes, for callers who want chunk_size budgeted against
// an LLM's context window instead of raw character count. Falls back
// to RuneLength if the encoding can't be loaded (e.g. no network
// access to fetch the BPE ranks on first use).
func TokenLength(encodingName string) LengthFunc {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return RuneLength
	}
	return func(s string) int {
		return len(enc.Encode(s, nil, nil))
	}
}
