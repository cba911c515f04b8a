package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/duybaohuynhtan/CareerAgent/internal/ai"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genai"
)

type fakeModels struct {
	mu       sync.Mutex
	queue    []fakeResponse
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeModels) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeResponse{resp: resp, err: err})
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = model
	f.contents = contents
	f.config = config
	if len(f.queue) == 0 {
		return nil, errors.New("no queued response")
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next.resp, next.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: string(genai.RoleModel), Parts: []*genai.Part{{Text: text}}},
	}}}
}

func callResponse(name string, args map[string]any) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: string(genai.RoleModel), Parts: []*genai.Part{
			{Text: "let me look"},
			{FunctionCall: &genai.FunctionCall{ID: "call-1", Name: name, Args: args}},
		}},
	}}}
}

func TestCompleteTextReply(t *testing.T) {
	fake := &fakeModels{}
	fake.enqueue(textResponse("  Hello there  "), nil)
	client := newClient(fake, 0, zap.NewNop())

	reply, err := client.Complete(context.Background(), ai.CompletionRequest{
		Model:  "gemini-2.5-flash",
		System: "be helpful",
		Messages: []ai.Message{
			{Role: ai.RoleUser, Content: "hi"},
			{Role: ai.RoleAssistant, Content: "hello"},
			{Role: ai.RoleUser, Content: "again"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, ok := reply.(ai.TextReply)
	if !ok || text.Text != "Hello there" {
		t.Fatalf("unexpected reply: %#v", reply)
	}

	if fake.model != "gemini-2.5-flash" {
		t.Fatalf("expected model to be forwarded, got %q", fake.model)
	}
	if len(fake.contents) != 3 || fake.contents[1].Role != "model" {
		t.Fatalf("expected assistant turn mapped to model role, got %+v", fake.contents)
	}
	if fake.config.SystemInstruction == nil || fake.config.SystemInstruction.Parts[0].Text != "be helpful" {
		t.Fatalf("expected system instruction, got %+v", fake.config.SystemInstruction)
	}
	if fake.config.Tools != nil {
		t.Fatalf("expected no tools when none declared")
	}
}

func TestCompleteFunctionCall(t *testing.T) {
	fake := &fakeModels{}
	fake.enqueue(callResponse("search_jobs", map[string]any{"keywords": "backend"}), nil)
	client := newClient(fake, 0, zap.NewNop())

	maxLimit := 10.0
	reply, err := client.Complete(context.Background(), ai.CompletionRequest{
		Model:    "m",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "find jobs"}},
		Tools: []ai.ToolDeclaration{{
			Name: "search_jobs",
			Parameters: map[string]ai.Param{
				"keywords": {Type: ai.ParamString},
				"limit":    {Type: ai.ParamInteger, Maximum: &maxLimit},
			},
			Required: []string{"keywords"},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call, ok := reply.(ai.ToolCallRequest)
	if !ok {
		t.Fatalf("expected tool call, got %#v", reply)
	}
	if call.Name != "search_jobs" || call.ID != "call-1" || call.Arguments["keywords"] != "backend" {
		t.Fatalf("unexpected call: %+v", call)
	}

	decl := fake.config.Tools[0].FunctionDeclarations[0]
	if decl.Parameters.Properties["limit"].Type != genai.TypeInteger {
		t.Fatalf("expected integer schema for limit")
	}
	if *decl.Parameters.Properties["limit"].Maximum != 10 {
		t.Fatalf("expected maximum to be forwarded")
	}
}

func TestCompleteWarnsOnParallelCalls(t *testing.T) {
	fake := &fakeModels{}
	fake.enqueue(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: string(genai.RoleModel), Parts: []*genai.Part{
			{FunctionCall: &genai.FunctionCall{ID: "call-1", Name: "search_jobs", Args: map[string]any{"keywords": "go"}}},
			{FunctionCall: &genai.FunctionCall{ID: "call-2", Name: "analyze_document"}},
			{FunctionCall: &genai.FunctionCall{ID: "call-3", Name: "search_jobs"}},
		}},
	}}}, nil)

	core, logs := observer.New(zapcore.WarnLevel)
	client := newClient(fake, 0, zap.New(core))

	reply, err := client.Complete(context.Background(), ai.CompletionRequest{
		Model:    "m",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "analyze my cv and find jobs"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call, ok := reply.(ai.ToolCallRequest); !ok || call.ID != "call-1" {
		t.Fatalf("expected the first call, got %#v", reply)
	}

	entries := logs.FilterMessage("gemini returned parallel function calls, running only the first").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["calls"] != int64(3) {
		t.Fatalf("expected 3 calls logged, got %v", fields["calls"])
	}
	skipped, _ := fields["skipped_tools"].([]any)
	if len(skipped) != 2 || skipped[0] != "analyze_document" || skipped[1] != "search_jobs" {
		t.Fatalf("unexpected skipped tools %v", fields["skipped_tools"])
	}
}

func TestCompleteSendsToolResults(t *testing.T) {
	fake := &fakeModels{}
	fake.enqueue(textResponse("done"), nil)
	client := newClient(fake, 0, zap.NewNop())

	call := &ai.ToolCallRequest{ID: "c1", Name: "search_jobs", Arguments: map[string]any{"keywords": "go"}}
	_, err := client.Complete(context.Background(), ai.CompletionRequest{
		Model: "m",
		Messages: []ai.Message{
			{Role: ai.RoleUser, Content: "find go jobs"},
			{Role: ai.RoleAssistant, Call: call},
			{Role: ai.RoleTool, Result: &ai.ToolResult{CallID: "c1", Name: "search_jobs", Output: map[string]any{"count": 0}}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fake.contents[1].Parts[0].FunctionCall; got == nil || got.Name != "search_jobs" {
		t.Fatalf("expected function call part, got %+v", fake.contents[1].Parts[0])
	}
	resp := fake.contents[2].Parts[0].FunctionResponse
	if resp == nil || resp.ID != "c1" || fake.contents[2].Role != "user" {
		t.Fatalf("expected function response from user role, got %+v", fake.contents[2])
	}
}

func TestBackendErrorsAreWrapped(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		resp *genai.GenerateContentResponse
		err  error
	}{
		{name: "api error", err: genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE", Message: "overloaded"}},
		{name: "transport error", err: errors.New("connection reset")},
		{name: "empty response", resp: &genai.GenerateContentResponse{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fake := &fakeModels{}
			fake.enqueue(tc.resp, tc.err)
			client := newClient(fake, 0, zap.NewNop())

			_, err := client.Complete(context.Background(), ai.CompletionRequest{
				Model:    "m",
				Messages: []ai.Message{{Role: ai.RoleUser, Content: "hi"}},
			})
			if !errors.Is(err, ai.ErrBackendUnavailable) {
				t.Fatalf("expected ErrBackendUnavailable, got %v", err)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	fake := &fakeModels{}
	fake.enqueue(textResponse("{\"name\":\"Ada\"}"), nil)
	client := newClient(fake, 0, zap.NewNop())

	out, err := client.Generate(context.Background(), "m", "extract", "resume text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "{\"name\":\"Ada\"}" {
		t.Fatalf("unexpected output %q", out)
	}
	if fake.contents[0].Parts[0].Text != "resume text" {
		t.Fatalf("expected prompt to be sent as user text")
	}

	if _, err := client.Generate(context.Background(), "m", "", "   "); err == nil {
		t.Fatalf("expected error for empty prompt")
	}
}
