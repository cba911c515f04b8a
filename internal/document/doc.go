package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/duybaohuynhtan/CareerAgent/internal/tika"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

const minRun = 6

// Stream and style names of the compound file that look like text.
var oleNoise = map[string]bool{
	"Root Entry":                 true,
	"WordDocument":               true,
	"SummaryInformation":         true,
	"DocumentSummaryInformation": true,
	"CompObj":                    true,
	"Microsoft Word-Dokument":    true,
	"Microsoft Word Document":    true,
	"MSWordDoc":                  true,
	"Word.Document.8":            true,
	"Times New Roman":            true,
	"Normal.dotm":                true,
}

func (e *Extractor) extractDOC(ctx context.Context, data []byte, name string) (string, error) {
	if !bytes.HasPrefix(data, oleMagic) {
		return "", fmt.Errorf("%w: not a Word 97-2003 document", ErrUnreadableDocument)
	}

	if e.tika != nil {
		text, err := e.tika.ExtractText(ctx, data, fileNameFor(name, ".doc"))
		if err == nil {
			return text, nil
		}
		if errors.Is(err, tika.ErrUnprocessable) {
			return "", fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
		}
		if errors.Is(err, tika.ErrTooLarge) {
			return "", fmt.Errorf("%w: %w", ErrPayloadTooLarge, err)
		}
		e.logger.Warn("tika extraction failed, falling back to text scan", zap.Error(err))
	}

	return scanDOC(data), nil
}

// scanDOC recovers readable runs from a binary Word file. Word stores text
// either as UTF-16LE or as single-byte cp1252; UTF-16 is tried first.
func scanDOC(data []byte) string {
	runs := utf16Runs(data)
	if len(strings.Join(runs, "")) < 20 {
		runs = byteRuns(data)
	}

	kept := make([]string, 0, len(runs))
	for _, run := range runs {
		run = strings.TrimSpace(run)
		if len([]rune(run)) < minRun || oleNoise[run] || !strings.ContainsFunc(run, unicode.IsLetter) {
			continue
		}
		kept = append(kept, run)
	}
	return strings.Join(kept, "\n")
}

func utf16Runs(data []byte) []string {
	var runs []string
	var current []uint16
	flush := func() {
		if len(current) >= minRun {
			runs = append(runs, string(utf16.Decode(current)))
		}
		current = current[:0]
	}
	for i := 0; i+1 < len(data); i += 2 {
		u := uint16(data[i]) | uint16(data[i+1])<<8
		if printableUTF16(rune(u)) {
			current = append(current, u)
			continue
		}
		flush()
	}
	flush()
	return runs
}

func byteRuns(data []byte) []string {
	decoder := charmap.Windows1252.NewDecoder()
	var runs []string
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= minRun {
			if s, err := decoder.Bytes(data[start:end]); err == nil {
				runs = append(runs, string(s))
			}
		}
		start = -1
	}
	for i, b := range data {
		if (b >= 0x20 && b != 0x7F) || b == '\t' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(data))
	return runs
}

// printableUTF16 keeps Latin, Greek, Cyrillic and Vietnamese letters plus
// typographic punctuation. Pairs of ASCII bytes decode above U+2100, so
// single-byte text is not mistaken for UTF-16.
func printableUTF16(r rune) bool {
	if r == '\t' {
		return true
	}
	if r < 0x20 || r == 0x7F {
		return false
	}
	if r >= 0x2000 && (r < 0x2010 || r > 0x2027) {
		return false
	}
	return unicode.IsPrint(r)
}

func fileNameFor(name, ext string) string {
	if strings.Contains(name, ".") && len(name) > len(ext) {
		return name
	}
	return "document" + ext
}
