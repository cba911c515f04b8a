// Package document turns uploaded résumé files into plain text. Extraction
// happens in memory only; nothing is written to disk.
package document

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxSize is the upload limit: 10 MiB.
const DefaultMaxSize int64 = 10 << 20

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOC  Format = "doc"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

var formats = map[string]Format{
	".pdf":  FormatPDF,
	".doc":  FormatDOC,
	".docx": FormatDOCX,
	".txt":  FormatTXT,
}

// textService extracts text out of process, e.g. an Apache Tika server.
type textService interface {
	ExtractText(ctx context.Context, data []byte, fileName string) (string, error)
}

type Extractor struct {
	maxSize int64
	tika    textService
	logger  *zap.Logger
}

type Option func(*Extractor)

func WithMaxSize(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxSize = n
		}
	}
}

// WithTika routes legacy .doc files through an external text service.
func WithTika(svc textService) Option {
	return func(e *Extractor) { e.tika = svc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{maxSize: DefaultMaxSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) MaxSize() int64 { return e.maxSize }

// SupportedExtensions lists the accepted extensions with a leading dot.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// FormatOf resolves a file name or bare extension ("pdf", ".PDF",
// "cv.pdf") to a supported format.
func FormatOf(nameOrExt string) (Format, error) {
	ext := strings.ToLower(strings.TrimSpace(nameOrExt))
	if e := filepath.Ext(ext); e != "" {
		ext = e
	} else if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	format, ok := formats[ext]
	if !ok {
		return "", fmt.Errorf("%w %q, allowed: %s", ErrUnsupportedFormat, ext, strings.Join(SupportedExtensions(), ", "))
	}
	return format, nil
}

// CheckSize reports ErrPayloadTooLarge for payloads at or above the limit.
func (e *Extractor) CheckSize(size int64) error {
	if size >= e.maxSize {
		return fmt.Errorf("%w: %d bytes, maximum is %d bytes", ErrPayloadTooLarge, size, e.maxSize)
	}
	return nil
}

// Extract returns the plain text of data. The extension is checked first,
// then the size; parsers only run on payloads that passed both.
func (e *Extractor) Extract(ctx context.Context, data []byte, nameOrExt string) (string, error) {
	format, err := FormatOf(nameOrExt)
	if err != nil {
		return "", err
	}

	if err := e.CheckSize(int64(len(data))); err != nil {
		return "", err
	}

	var text string
	switch format {
	case FormatPDF:
		text, err = extractPDF(data)
	case FormatDOCX:
		text, err = extractDOCX(data, e.maxSize)
	case FormatDOC:
		text, err = e.extractDOC(ctx, data, nameOrExt)
	case FormatTXT:
		text, err = decodeText(data)
	}
	if err != nil {
		return "", err
	}

	if int64(len(text)) > e.maxSize {
		return "", fmt.Errorf("%w: extracted text is %d bytes, maximum is %d bytes", ErrPayloadTooLarge, len(text), e.maxSize)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}

	e.logger.Debug("document extracted",
		zap.String("format", string(format)),
		zap.Int("bytes", len(data)),
		zap.Int("text_length", len(text)),
	)

	return text, nil
}
