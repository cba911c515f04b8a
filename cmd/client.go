package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/duybaohuynhtan/CareerAgent/internal/api"
)

// apiClient talks to a running career-agent server on behalf of one session.
type apiClient struct {
	baseURL    string
	sessionID  string
	httpClient *http.Client
}

func newAPIClient(baseURL, sessionID string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		sessionID:  sessionID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// apiError is a non-2xx response. Message is what the server told the user.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *apiClient) Chat(ctx context.Context, message string) (*api.ChatResponse, error) {
	var resp api.ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat", api.ChatRequest{Message: message}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) History(ctx context.Context) (*api.HistoryResponse, error) {
	var resp api.HistoryResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/chat/history", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Clear(ctx context.Context) (*api.ClearResponse, error) {
	var resp api.ClearResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat/clear", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Models(ctx context.Context) (*api.ModelsResponse, error) {
	var resp api.ModelsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/models", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) SetModel(ctx context.Context, model string) (*api.ModelResponse, error) {
	var resp api.ModelResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/model", api.ModelRequest{Model: model}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upload sends the file at path as the session's résumé.
func (c *apiClient) Upload(ctx context.Context, path string) (*api.UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload/cv", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp api.UploadResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.sessionID != "" {
		req.Header.Set(api.SessionHeader, c.sessionID)
	}
	return req, nil
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var failure struct {
			Message  string `json:"message"`
			Response string `json:"response"`
			Error    string `json:"error"`
		}
		_ = json.Unmarshal(data, &failure)
		msg := firstNonEmpty(failure.Message, failure.Response, failure.Error, strings.TrimSpace(string(data)), http.StatusText(resp.StatusCode))
		return &apiError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
