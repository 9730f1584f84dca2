// Package splitter turns loaded Documents into length-bounded,
// overlapping chunks ready for embedding. Grounded on the teacher's
// pkg/context/chunking package (Chunker interface, Config.Validate
// idiom, OverlappingChunker's backward-walk overlap construction) but
// generalized from line-based to rune-based splitting, since this
// splitter recurses over punctuation/whitespace separators rather than
// newlines.
package splitter

import (
	"fmt"
	"strings"

	"github.com/duhu110/axiom/pkg/loader"
)

// LengthFunc measures a chunk candidate. The default is rune count,
// matching original_source's default character-count length function;
// a token-counting LengthFunc may be substituted for model-aware
// budgeting.
type LengthFunc func(s string) int

// RuneLength is the default LengthFunc.
func RuneLength(s string) int { return len([]rune(s)) }

// Config controls chunk size and overlap, validated the way the
// teacher's ChunkerConfig.Validate does.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	Length       LengthFunc
}

// Validate mirrors ChunkerConfig.Validate's three checks.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("splitter: chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("splitter: chunk overlap cannot be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("splitter: chunk overlap (%d) must be less than chunk size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.Length == nil {
		c.Length = RuneLength
	}
	return nil
}

// defaultSeparators is spec.md §4.4's exact ordered separator list,
// biased for Chinese text: paragraph, line, then sentence-ending and
// clause punctuation, then whitespace, then character-by-character.
var defaultSeparators = []string{"\n\n", "\n", "。", "!", "?", ";", ",", " ", ""}

// markdownSeparators additionally prefers heading and list boundaries
// before falling back to the default list.
var markdownSeparators = []string{
	"\n## ", "\n### ", "\n#### ", "\n- ", "\n* ", "\n\n", "\n", "。", "!", "?", ";", ",", " ", "",
}

// Split splits every Document's content into chunks, propagating each
// source document's metadata onto every chunk it produces, per spec.md
// §4.4's contract (length ≤ chunk_size under the length function;
// successive chunks overlap by at most `overlap`).
func Split(docs []loader.Document, fileType string, cfg Config) ([]loader.Document, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seps := defaultSeparators
	if fileType == "md" {
		seps = markdownSeparators
	}

	var out []loader.Document
	for _, doc := range docs {
		pieces := recursiveSplit(doc.Content, seps, cfg)
		for _, p := range pieces {
			if cfg.Length(p) == 0 {
				continue
			}
			out = append(out, loader.Document{
				Content:  p,
				Metadata: doc.Metadata,
			})
		}
	}
	return withOverlap(out, cfg), nil
}

// recursiveSplit implements the recursive-separator algorithm: split on
// the first separator in seps, then recurse into any piece still over
// chunk_size using the remaining separators, terminating at "" which
// splits rune-by-rune and therefore always produces pieces ≤ chunk_size.
func recursiveSplit(text string, seps []string, cfg Config) []string {
	if cfg.Length(text) <= cfg.ChunkSize {
		return []string{text}
	}
	if len(seps) == 0 {
		return splitByRune(text, cfg.ChunkSize)
	}

	sep, rest := seps[0], seps[1:]
	var parts []string
	if sep == "" {
		parts = splitByRune(text, cfg.ChunkSize)
	} else {
		parts = splitKeepSeparator(text, sep)
	}

	var out []string
	for _, p := range parts {
		if cfg.Length(p) <= cfg.ChunkSize {
			out = append(out, p)
			continue
		}
		out = append(out, recursiveSplit(p, rest, cfg)...)
	}
	return mergeSmallPieces(out, cfg)
}

// splitKeepSeparator splits on sep, re-attaching sep to the end of
// every piece but the last so punctuation stays with its sentence.
func splitKeepSeparator(text, sep string) []string {
	raw := strings.Split(text, sep)
	out := make([]string, 0, len(raw))
	for i, p := range raw {
		if i < len(raw)-1 {
			p += sep
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitByRune(text string, size int) []string {
	runes := []rune(text)
	if size <= 0 {
		return []string{text}
	}
	var out []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// mergeSmallPieces greedily packs adjacent small pieces back together
// up to chunk_size, so a recursive split on fine-grained separators
// (e.g. commas) doesn't leave a chunk per clause when several clauses
// fit together under the size budget.
func mergeSmallPieces(pieces []string, cfg Config) []string {
	var out []string
	var current string
	for _, p := range pieces {
		candidate := current + p
		if current != "" && cfg.Length(candidate) > cfg.ChunkSize {
			out = append(out, current)
			current = p
			continue
		}
		current = candidate
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// withOverlap prepends a trailing slice of the previous chunk to each
// subsequent chunk, up to chunk_overlap runes and never so many that the
// chunk's length exceeds chunk_size, grounded on the teacher's
// OverlappingChunker backward-walk-accumulate algorithm (generalized
// here from lines to runes).
func withOverlap(docs []loader.Document, cfg Config) []loader.Document {
	if cfg.ChunkOverlap <= 0 || len(docs) < 2 {
		return docs
	}
	out := make([]loader.Document, len(docs))
	out[0] = docs[0]
	for i := 1; i < len(docs); i++ {
		prevRunes := []rune(docs[i-1].Content)
		overlapLen := cfg.ChunkOverlap
		if overlapLen > len(prevRunes) {
			overlapLen = len(prevRunes)
		}
		for overlapLen > 0 && cfg.Length(string(prevRunes[len(prevRunes)-overlapLen:])+docs[i].Content) > cfg.ChunkSize {
			overlapLen--
		}
		overlap := string(prevRunes[len(prevRunes)-overlapLen:])
		out[i] = loader.Document{
			Content:  overlap + docs[i].Content,
			Metadata: docs[i].Metadata,
		}
	}
	return out
}
