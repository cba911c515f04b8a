// Package tika talks to an Apache Tika server to turn office documents into
// plain text.
package tika

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnprocessable is returned when Tika understood the request but could not
// parse the document (encrypted or corrupt input).
var ErrUnprocessable = errors.New("tika could not parse document")

// ErrTooLarge is returned when the extracted text is longer than MaxText.
var ErrTooLarge = errors.New("tika text exceeds the limit")

// DefaultMaxText caps the text read back from the server.
const DefaultMaxText int64 = 10 << 20

var knownTypes = map[string]string{
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
}

type Client struct {
	ServerURL  string
	HTTPClient *http.Client
	// MaxText is the longest text accepted from the server, in bytes.
	MaxText int64
}

func NewClient(serverURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		ServerURL:  strings.TrimRight(serverURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		MaxText:    DefaultMaxText,
	}
}

// ExtractText uploads data to the /tika endpoint and returns the plain text
// rendition. The content type is inferred from fileName.
func (c *Client) ExtractText(ctx context.Context, data []byte, fileName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.ServerURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create tika request: %w", err)
	}

	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", detectMimeType(fileName))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call tika: %w", err)
	}
	defer resp.Body.Close()

	limit := c.MaxText
	if limit <= 0 {
		limit = DefaultMaxText
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("read tika response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if int64(len(body)) > limit {
			return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
		}
		return string(body), nil
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusUnsupportedMediaType:
		return "", fmt.Errorf("%w: %s", ErrUnprocessable, resp.Status)
	default:
		return "", fmt.Errorf("tika returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
}

func detectMimeType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return "application/octet-stream"
	}
	if known, ok := knownTypes[ext]; ok {
		return known
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}
