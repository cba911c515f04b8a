package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxBody = "word/document.xml"
	// docxMarkupFactor bounds the inflated body relative to the text limit.
	docxMarkupFactor = 4
)

// extractDOCX walks the WordprocessingML body: w:t runs are text, w:tab and
// w:br are whitespace, and each w:p ends a line. The archive is only checked
// against the upload limit, so both the inflated body and the text gathered
// from it are capped as well.
func extractDOCX(data []byte, limit int64) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}

	var body *zip.File
	for _, f := range archive.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("%w: %s is missing", ErrUnreadableDocument, docxBody)
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}
	defer rc.Close()

	budget := limit * docxMarkupFactor
	inflated := &io.LimitedReader{R: rc, N: budget + 1}

	var out strings.Builder
	decoder := xml.NewDecoder(inflated)
	inText := false
	for {
		token, err := decoder.Token()
		if inflated.N <= 0 {
			return "", fmt.Errorf("%w: %s inflates past %d bytes", ErrPayloadTooLarge, docxBody, budget)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			case "br", "cr":
				out.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteByte('\n')
			}
		case xml.CharData:
			if !inText {
				continue
			}
			if int64(out.Len()+len(t)) > limit {
				return "", fmt.Errorf("%w: extracted text exceeds %d bytes", ErrPayloadTooLarge, limit)
			}
			out.Write(t)
		}
	}

	return out.String(), nil
}
