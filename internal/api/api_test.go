package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/duybaohuynhtan/CareerAgent/internal/ai"
	"github.com/duybaohuynhtan/CareerAgent/internal/document"
	"github.com/duybaohuynhtan/CareerAgent/internal/document/doctest"
	"github.com/duybaohuynhtan/CareerAgent/internal/jobs"
	"github.com/duybaohuynhtan/CareerAgent/internal/orchestrator"
	"github.com/duybaohuynhtan/CareerAgent/internal/session"
	"github.com/duybaohuynhtan/CareerAgent/internal/tools"

	"github.com/stretchr/testify/require"
)

// fakeLLM answers a completion with respond and every analysis with
// analysis.
type fakeLLM struct {
	mu        sync.Mutex
	respond   func(req ai.CompletionRequest) (ai.Reply, error)
	analysis  string
	generated int
}

func (f *fakeLLM) Provider() string { return "fake" }

func (f *fakeLLM) Complete(_ context.Context, req ai.CompletionRequest) (ai.Reply, error) {
	return f.respond(req)
}

func (f *fakeLLM) Generate(context.Context, string, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated++
	return f.analysis, nil
}

type fakeJobs struct {
	mu  sync.Mutex
	got []jobs.Criteria
}

func (f *fakeJobs) Name() string { return "fake" }

func (f *fakeJobs) Search(_ context.Context, c jobs.Criteria) ([]jobs.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, c)
	return []jobs.Listing{
		{Title: "Backend Engineer", Company: "Acme", Location: c.Location, URL: "https://www.linkedin.com/jobs/view/1"},
		{Title: "Go Developer", Company: "Globex", Location: c.Location, URL: "https://www.linkedin.com/jobs/view/2"},
	}, nil
}

// searchThenSummarize calls search_jobs for the first user message and turns
// the tool result into the final answer.
func searchThenSummarize(req ai.CompletionRequest) (ai.Reply, error) {
	last := req.Messages[len(req.Messages)-1]
	if last.Result == nil {
		return ai.ToolCallRequest{
			ID:        "call-1",
			Name:      tools.SearchJobs,
			Arguments: map[string]any{"keywords": "backend", "location": "Berlin"},
		}, nil
	}

	var b strings.Builder
	listings, _ := last.Result.Output["listings"].([]map[string]any)
	fmt.Fprintf(&b, "I found %d jobs:\n", len(listings))
	for _, l := range listings {
		fmt.Fprintf(&b, "- %s at %s\n", l["title"], l["company"])
	}
	return ai.TextReply{Text: b.String()}, nil
}

type testServer struct {
	handler http.Handler
	llm     *fakeLLM
	jobs    *fakeJobs
	store   *session.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	registry, err := ai.NewRegistry("gemini-2.5-flash", ai.DefaultModels()...)
	require.NoError(t, err)

	llm := &fakeLLM{
		respond:  searchThenSummarize,
		analysis: `{"name": "Jane Doe", "skills": ["Go", "Kubernetes", "PostgreSQL"], "summary": "Backend engineer"}`,
	}
	backend := &fakeJobs{}
	store := session.NewStore(registry, 0, nil)
	analyzer := tools.NewAnalyzer(llm, 0, nil)
	toolset := tools.NewRegistry(analyzer, jobs.NewService(backend, jobs.ServiceOptions{}, nil), nil)
	extractor := document.New()
	orch := orchestrator.New(llm, toolset, store, extractor, analyzer, orchestrator.Options{}, nil)

	return &testServer{
		handler: NewRouter(NewHandler(orch, extractor.MaxSize(), "test", nil), RouterOptions{}),
		llm:     llm,
		jobs:    backend,
		store:   store,
	}
}

func (s *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, fileName string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload/cv", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	rec, body := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "healthy", body["status"])
	require.NotEmpty(t, body["timestamp"])
}

func TestUploadPDFReturnsAnalysis(t *testing.T) {
	srv := newTestServer(t)
	pdf := doctest.PDF("Jane Doe Backend Engineer", "Skills: Go Kubernetes PostgreSQL")

	rec, body := srv.do(t, uploadRequest(t, "resume.pdf", pdf))

	require.Equal(t, http.StatusOK, rec.Code, body)
	require.Equal(t, true, body["success"])
	require.NotEmpty(t, body["file_id"])
	analysis, _ := body["cv_analysis"].(string)
	require.Contains(t, analysis, "Go, Kubernetes, PostgreSQL")

	snap := srv.store.GetOrCreate(session.DefaultID).Snapshot()
	require.NotNil(t, snap.Document)
	require.Contains(t, snap.Document.Text, "Skills: Go Kubernetes PostgreSQL")
}

func TestUploadRejectsLargeFile(t *testing.T) {
	srv := newTestServer(t)

	rec, body := srv.do(t, uploadRequest(t, "resume.pdf", bytes.Repeat([]byte("a"), 15<<20)))

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, false, body["success"])
	require.Contains(t, body["message"], "size")
	require.Zero(t, srv.llm.generated)
	require.Nil(t, srv.store.GetOrCreate(session.DefaultID).Snapshot().Document)
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	srv := newTestServer(t)

	rec, body := srv.do(t, uploadRequest(t, "photo.png", []byte("png")))

	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	require.Equal(t, false, body["success"])
	require.NotEmpty(t, body["message"])
}

func TestUploadRejectsUnreadableAndEmpty(t *testing.T) {
	srv := newTestServer(t)

	rec, body := srv.do(t, uploadRequest(t, "resume.pdf", []byte("not a pdf at all")))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotEmpty(t, body["message"])

	rec, body = srv.do(t, uploadRequest(t, "resume.txt", []byte(" \n\t ")))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotEmpty(t, body["message"])
}

func TestUploadWithoutFile(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/upload/cv", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec, body := srv.do(t, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotEmpty(t, body["message"])
}

func TestChatSearchesJobs(t *testing.T) {
	srv := newTestServer(t)

	rec, body := srv.do(t, jsonRequest(t, http.MethodPost, "/api/chat", map[string]any{
		"message": "Find me backend jobs in Berlin",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])
	require.Contains(t, body["response"], "Backend Engineer at Acme")

	require.Len(t, srv.jobs.got, 1)
	require.Equal(t, "backend", srv.jobs.got[0].Keywords)
	require.Equal(t, "Berlin", srv.jobs.got[0].Location)
}

func TestChatBackendFailure(t *testing.T) {
	srv := newTestServer(t)
	srv.llm.respond = func(ai.CompletionRequest) (ai.Reply, error) {
		return nil, fmt.Errorf("%w: connection refused", ai.ErrBackendUnavailable)
	}

	rec, body := srv.do(t, jsonRequest(t, http.MethodPost, "/api/chat", map[string]any{"message": "hello"}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, body["success"])
	require.Equal(t, orchestrator.FailureMessage, body["response"])
	require.Contains(t, body["error"], "connection refused")
}

func TestChatValidation(t *testing.T) {
	srv := newTestServer(t)

	for name, payload := range map[string]any{
		"missing message": map[string]any{},
		"blank message":   map[string]any{"message": "   "},
		"bad history":     map[string]any{"message": "hi", "chatHistory": []map[string]any{{"role": "system", "content": "x"}}},
	} {
		t.Run(name, func(t *testing.T) {
			rec, body := srv.do(t, jsonRequest(t, http.MethodPost, "/api/chat", payload))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, false, body["success"])
			require.NotEmpty(t, body["message"])
		})
	}
}

func TestChatRejectsBusySession(t *testing.T) {
	srv := newTestServer(t)
	s := srv.store.GetOrCreate("busy")
	_, err := s.Acquire()
	require.NoError(t, err)
	defer s.Release()

	req := jsonRequest(t, http.MethodPost, "/api/chat", map[string]any{"message": "hello"})
	req.Header.Set(SessionHeader, "busy")
	rec, body := srv.do(t, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, false, body["success"])
}

func TestModelSelection(t *testing.T) {
	srv := newTestServer(t)

	rec, body := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/model", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gemini-2.5-flash", body["current_model"])
	require.Len(t, body["available_models"], len(ai.DefaultModels()))

	rec, body = srv.do(t, jsonRequest(t, http.MethodPost, "/api/model", map[string]any{"model": "unknown-model-x"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, false, body["success"])
	require.Equal(t, "gemini-2.5-flash", body["current_model"])
	require.Contains(t, body["message"], "unknown-model-x")

	_, _ = srv.do(t, jsonRequest(t, http.MethodPost, "/api/chat", map[string]any{"message": "Find me backend jobs in Berlin"}))
	require.NotEmpty(t, srv.store.GetOrCreate(session.DefaultID).Snapshot().History)

	rec, body = srv.do(t, jsonRequest(t, http.MethodPost, "/api/model", map[string]any{"model": "gemini-2.5-pro"}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, "gemini-2.5-pro", body["current_model"])
	require.Equal(t, "Model updated to gemini-2.5-pro. Chat history and files have been cleared.", body["message"])
	require.Empty(t, srv.store.GetOrCreate(session.DefaultID).Snapshot().History)
}

func TestListModels(t *testing.T) {
	srv := newTestServer(t)

	rec, body := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	models, _ := body["models"].([]any)
	require.Len(t, models, len(ai.DefaultModels()))
	first, _ := models[0].(map[string]any)
	require.Equal(t, "gemini-2.5-flash", first["id"])
	require.Equal(t, "Google", first["provider"])
	require.Nil(t, body["current_model"])
}

func TestListModelsReadsSessionFromHeaderOrCookie(t *testing.T) {
	srv := newTestServer(t)

	req := jsonRequest(t, http.MethodPost, "/api/model", map[string]any{"model": "gemini-2.5-pro"})
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "alice"})
	rec, _ := srv.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/models", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "alice"})
	_, body := srv.do(t, req)
	require.Equal(t, "gemini-2.5-pro", body["current_model"])

	req = httptest.NewRequest(http.MethodGet, "/api/models", nil)
	req.Header.Set(SessionHeader, "bob")
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "alice"})
	_, body = srv.do(t, req)
	require.Equal(t, "gemini-2.5-flash", body["current_model"])
}

func TestClearAndHistoryAreScopedBySession(t *testing.T) {
	srv := newTestServer(t)

	chat := func(id string) {
		req := jsonRequest(t, http.MethodPost, "/api/chat", map[string]any{"message": "Find me backend jobs in Berlin"})
		req.Header.Set(SessionHeader, id)
		rec, _ := srv.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	chat("alice")
	chat("bob")

	req := httptest.NewRequest(http.MethodPost, "/api/chat/clear", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "alice"})
	rec, body := srv.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Chat history and uploaded files cleared successfully", body["message"])

	req = httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	req.Header.Set(SessionHeader, "alice")
	_, body = srv.do(t, req)
	require.Empty(t, body["history"])

	req = httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	req.Header.Set(SessionHeader, "bob")
	_, body = srv.do(t, req)
	require.Len(t, body["history"], 2)
}
