package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/duybaohuynhtan/CareerAgent/internal/ai"
	"github.com/duybaohuynhtan/CareerAgent/internal/document"
	"github.com/duybaohuynhtan/CareerAgent/internal/jobs"
	"github.com/duybaohuynhtan/CareerAgent/internal/session"
	"github.com/duybaohuynhtan/CareerAgent/internal/tools"
)

const analysisJSON = `{"name": "Jane Doe", "skills": ["Go", "PostgreSQL"], "experience": [], "education": [], "summary": "Backend engineer"}`

type step struct {
	reply ai.Reply
	err   error
}

// scriptedBackend replays steps in order; once they run out it repeats
// always, or fails when always is nil.
type scriptedBackend struct {
	mu       sync.Mutex
	steps    []step
	always   ai.Reply
	generate string
	requests []ai.CompletionRequest
}

func (b *scriptedBackend) Provider() string { return "stub" }

func (b *scriptedBackend) Complete(_ context.Context, req ai.CompletionRequest) (ai.Reply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req.Messages = append([]ai.Message(nil), req.Messages...)
	b.requests = append(b.requests, req)
	if len(b.steps) > 0 {
		s := b.steps[0]
		b.steps = b.steps[1:]
		return s.reply, s.err
	}
	if b.always != nil {
		return b.always, nil
	}
	return nil, errors.New("script exhausted")
}

func (b *scriptedBackend) Generate(context.Context, string, string, string) (string, error) {
	return b.generate, nil
}

type recordingSearcher struct {
	mu  sync.Mutex
	got []jobs.Criteria
}

func (s *recordingSearcher) Search(_ context.Context, c jobs.Criteria) jobs.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, c)
	return jobs.Result{Criteria: c, Listings: []jobs.Listing{{
		Title:    "Backend Engineer",
		Company:  "Acme",
		Location: "Berlin",
		URL:      "https://www.linkedin.com/jobs/view/42",
	}}}
}

type fixture struct {
	orch     *Orchestrator
	backend  *scriptedBackend
	searcher *recordingSearcher
	store    *session.Store
}

func newFixture(t *testing.T, backend *scriptedBackend) *fixture {
	t.Helper()
	registry, err := ai.NewRegistry("gemini-2.5-flash", ai.DefaultModels()...)
	if err != nil {
		t.Fatalf("create registry: %v", err)
	}
	if backend.generate == "" {
		backend.generate = analysisJSON
	}

	store := session.NewStore(registry, 0, nil)
	searcher := &recordingSearcher{}
	analyzer := tools.NewAnalyzer(backend, 0, nil)
	toolset := tools.NewRegistry(analyzer, searcher, nil)

	return &fixture{
		orch:     New(backend, toolset, store, document.New(), analyzer, Options{}, nil),
		backend:  backend,
		searcher: searcher,
		store:    store,
	}
}

func searchCall(args map[string]any) ai.ToolCallRequest {
	return ai.ToolCallRequest{ID: "call-1", Name: tools.SearchJobs, Arguments: args}
}

func TestChatTextReply(t *testing.T) {
	f := newFixture(t, &scriptedBackend{steps: []step{{reply: ai.TextReply{Text: "Hello!"}}}})

	reply, err := f.orch.Chat(context.Background(), "s1", "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.Success || reply.Text != "Hello!" || reply.Model != "gemini-2.5-flash" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	history := f.store.GetOrCreate("s1").Snapshot().History
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[0].Role != session.RoleUser || history[0].Pending {
		t.Fatalf("user turn must be resolved: %+v", history[0])
	}
	if history[1].Role != session.RoleAssistant || history[1].Content != "Hello!" {
		t.Fatalf("unexpected assistant turn: %+v", history[1])
	}

	req := f.backend.requests[0]
	if len(req.Tools) != 2 || req.System == "" || req.Model != "gemini-2.5-flash" {
		t.Fatalf("unexpected completion request: %+v", req)
	}
}

func TestChatSearchJobs(t *testing.T) {
	f := newFixture(t, &scriptedBackend{steps: []step{
		{reply: searchCall(map[string]any{"keywords": "backend", "location": "Berlin"})},
		{reply: ai.TextReply{Text: "Found 1 job: Backend Engineer at Acme."}},
	}})

	reply, err := f.orch.Chat(context.Background(), "s1", "Find me backend jobs in Berlin", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.Success || len(reply.Invocations) != 1 {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	if len(f.searcher.got) != 1 {
		t.Fatalf("expected one search, got %d", len(f.searcher.got))
	}
	if got := f.searcher.got[0]; got.Keywords != "backend" || got.Location != "Berlin" {
		t.Fatalf("unexpected criteria: %+v", got)
	}

	second := f.backend.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != ai.RoleTool || last.Result == nil || last.Result.Output["count"] != 1 {
		t.Fatalf("expected tool result in context, got %+v", last)
	}
	if call := second[len(second)-2]; call.Call == nil || call.Call.Name != tools.SearchJobs {
		t.Fatalf("expected tool call echoed in context, got %+v", call)
	}
}

func TestChatStopsAtToolCallLimit(t *testing.T) {
	f := newFixture(t, &scriptedBackend{always: searchCall(map[string]any{"keywords": "go"})})

	reply, err := f.orch.Chat(context.Background(), "s1", "search forever", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.searcher.got) != DefaultMaxToolCalls {
		t.Fatalf("expected %d searches, got %d", DefaultMaxToolCalls, len(f.searcher.got))
	}
	if len(f.backend.requests) != DefaultMaxToolCalls+1 {
		t.Fatalf("expected %d completions, got %d", DefaultMaxToolCalls+1, len(f.backend.requests))
	}
	if !reply.Success || !strings.Contains(reply.Text, "limit") || !strings.Contains(reply.Text, "Backend Engineer") {
		t.Fatalf("expected partial answer, got %+v", reply)
	}
}

func TestChatUnknownToolIsRepromptedOnce(t *testing.T) {
	f := newFixture(t, &scriptedBackend{steps: []step{
		{reply: ai.ToolCallRequest{ID: "x", Name: "send_email"}},
		{reply: ai.TextReply{Text: "I cannot send emails."}},
	}})

	reply, err := f.orch.Chat(context.Background(), "s1", "email my CV", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.Success || reply.Text != "I cannot send emails." {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	msgs := f.backend.requests[1].Messages
	note := msgs[len(msgs)-1]
	if note.Result == nil || !strings.Contains(note.Result.Output["error"].(string), "does not exist") {
		t.Fatalf("expected error note for the model, got %+v", note)
	}
}

func TestChatUnknownToolTwiceFails(t *testing.T) {
	f := newFixture(t, &scriptedBackend{always: ai.ToolCallRequest{Name: "send_email"}})

	reply, err := f.orch.Chat(context.Background(), "s1", "email my CV", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Success || reply.Text != FailureMessage || !errors.Is(reply.Err, ErrUnknownTool) {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if len(f.backend.requests) != 2 {
		t.Fatalf("expected 2 completions, got %d", len(f.backend.requests))
	}

	history := f.store.GetOrCreate("s1").Snapshot().History
	if !history[len(history)-1].Failed {
		t.Fatalf("expected failed assistant turn")
	}
}

func TestChatInvalidArgumentsApologizes(t *testing.T) {
	f := newFixture(t, &scriptedBackend{steps: []step{
		{reply: searchCall(map[string]any{"location": "Berlin"})},
	}})

	reply, err := f.orch.Chat(context.Background(), "s1", "jobs in Berlin", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.Success || !strings.HasPrefix(reply.Text, "Sorry") || !strings.Contains(reply.Text, "keywords") {
		t.Fatalf("expected apology, got %+v", reply)
	}
	if len(f.searcher.got) != 0 || len(f.backend.requests) != 1 {
		t.Fatalf("invalid arguments must short-circuit the turn")
	}
}

func TestChatBackendFailureKeepsSessionUsable(t *testing.T) {
	f := newFixture(t, &scriptedBackend{steps: []step{
		{err: ai.ErrBackendUnavailable},
		{reply: ai.TextReply{Text: "Back online."}},
	}})

	reply, err := f.orch.Chat(context.Background(), "s1", "hello", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Success || reply.Text != FailureMessage || !errors.Is(reply.Err, ai.ErrBackendUnavailable) {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	reply, err = f.orch.Chat(context.Background(), "s1", "hello again", nil)
	if err != nil || !reply.Success {
		t.Fatalf("session must stay usable, got %+v, %v", reply, err)
	}

	for _, msg := range f.backend.requests[1].Messages {
		if msg.Content == FailureMessage {
			t.Fatalf("failed turns must not be sent to the model")
		}
	}
	history := f.store.GetOrCreate("s1").Snapshot().History
	if len(history) != 4 || !history[1].Failed || history[0].Pending {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestChatRejectsBusySession(t *testing.T) {
	f := newFixture(t, &scriptedBackend{always: ai.TextReply{Text: "ok"}})

	s := f.store.GetOrCreate("s1")
	if _, err := s.Acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer s.Release()

	if _, err := f.orch.Chat(context.Background(), "s1", "hello", nil); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
	if _, err := f.orch.AttachDocument(context.Background(), "s1", "cv.txt", []byte("text")); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
}

func TestChatSeedsEmptySession(t *testing.T) {
	f := newFixture(t, &scriptedBackend{always: ai.TextReply{Text: "ok"}})

	seed := []session.ChatTurn{
		{Role: session.RoleUser, Content: "I am a Go developer"},
		{Role: session.RoleAssistant, Content: "Nice to meet you"},
	}
	if _, err := f.orch.Chat(context.Background(), "s1", "what do I do?", seed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := f.backend.requests[0].Messages
	if len(msgs) != 3 || msgs[0].Content != "I am a Go developer" {
		t.Fatalf("expected seeded context, got %+v", msgs)
	}
	if len(f.store.GetOrCreate("s1").Snapshot().History) != 4 {
		t.Fatalf("expected seeded history plus the new exchange")
	}
}

func TestAttachDocument(t *testing.T) {
	f := newFixture(t, &scriptedBackend{steps: []step{
		{reply: ai.ToolCallRequest{ID: "a", Name: tools.AnalyzeDocument}},
		{reply: ai.TextReply{Text: "You are a backend engineer."}},
	}})

	result, err := f.orch.AttachDocument(context.Background(), "s1", "resume.txt", []byte("Jane Doe\nSkills: Go, PostgreSQL"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FileID == "" || result.Analysis == nil || result.Analysis.Name != "Jane Doe" {
		t.Fatalf("unexpected result: %+v", result)
	}

	snap := f.store.GetOrCreate("s1").Snapshot()
	if snap.Document == nil || snap.Document.FileID != result.FileID {
		t.Fatalf("document must be attached: %+v", snap.Document)
	}
	if len(snap.History) != 2 || !strings.Contains(snap.History[1].Content, "Go, PostgreSQL") {
		t.Fatalf("unexpected history: %+v", snap.History)
	}

	reply, err := f.orch.Chat(context.Background(), "s1", "analyze my CV", nil)
	if err != nil || !reply.Success {
		t.Fatalf("unexpected reply: %+v, %v", reply, err)
	}
	if inv := reply.Invocations[0]; inv.Err != nil || inv.Analysis == nil {
		t.Fatalf("analysis must use the attached document: %+v", inv)
	}
	if !strings.Contains(f.backend.requests[0].System, "resume.txt") {
		t.Fatalf("system instruction must mention the uploaded file")
	}
}

func TestAttachDocumentRejectsUnsupportedFormat(t *testing.T) {
	f := newFixture(t, &scriptedBackend{})

	_, err := f.orch.AttachDocument(context.Background(), "s1", "photo.png", []byte("png"))
	if !errors.Is(err, document.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
	snap := f.store.GetOrCreate("s1").Snapshot()
	if len(snap.History) != 0 || snap.Document != nil {
		t.Fatalf("session must stay untouched: %+v", snap)
	}
}
