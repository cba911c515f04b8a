package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/api/option"
)

type stubGenerator struct {
	reply  string
	err    error
	model  string
	prompt string
	calls  int
}

func (s *stubGenerator) Generate(_ context.Context, model, _, prompt string) (string, error) {
	s.calls++
	s.model = model
	s.prompt = prompt
	return s.reply, s.err
}

var parseHits = []Hit{
	{Title: "Acme hiring Backend Engineer in Berlin | LinkedIn", Link: "https://www.linkedin.com/jobs/view/11", Snippet: "Build APIs"},
	{Title: "Platform Engineer (Go) | LinkedIn", Link: "https://www.linkedin.com/jobs/view/22", Snippet: "Globex is hiring. Hybrid role in Munich."},
}

func TestManualParser(t *testing.T) {
	listings := ManualParser{}.Parse(context.Background(), parseHits)
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	if listings[0].Company != "Acme" || listings[0].Location != "Berlin" || listings[0].JobID != "11" {
		t.Fatalf("unexpected first listing %+v", listings[0])
	}
	if listings[1].Company != UnknownCompany || listings[1].Location != UnknownLocation {
		t.Fatalf("expected unknown placeholders, got %+v", listings[1])
	}
}

func TestLLMParser(t *testing.T) {
	gen := &stubGenerator{reply: "```json\n" + `[
		{"index": 1, "title": "Platform Engineer (Go) | LinkedIn", "company": "Globex", "location": "Munich"},
		{"index": 0, "title": "Backend Engineer", "company": "None", "location": "Berlin, Germany"}
	]` + "\n```"}

	listings := NewLLMParser(gen, "gemini-test", zap.NewNop()).Parse(context.Background(), parseHits)

	if gen.calls != 1 || gen.model != "gemini-test" {
		t.Fatalf("expected one call with the configured model, got %d calls model %q", gen.calls, gen.model)
	}
	if !strings.Contains(gen.prompt, `"url": "https://www.linkedin.com/jobs/view/22"`) || strings.Contains(gen.prompt, "{{HITS}}") {
		t.Fatalf("hits were not rendered into the prompt:\n%s", gen.prompt)
	}

	want := []Listing{
		{Title: "Backend Engineer", Company: "Acme", Location: "Berlin, Germany", URL: "https://www.linkedin.com/jobs/view/11", Snippet: "Build APIs", JobID: "11"},
		{Title: "Platform Engineer (Go)", Company: "Globex", Location: "Munich", URL: "https://www.linkedin.com/jobs/view/22", Snippet: "Globex is hiring. Hybrid role in Munich.", JobID: "22"},
	}
	for i := range want {
		if listings[i] != want[i] {
			t.Fatalf("listing %d:\n got %+v\nwant %+v", i, listings[i], want[i])
		}
	}
}

func TestLLMParserFallsBackPerHit(t *testing.T) {
	manual := ManualParser{}.Parse(context.Background(), parseHits)

	cases := []struct {
		name string
		gen  *stubGenerator
		want []Listing
	}{
		{
			name: "generator error",
			gen:  &stubGenerator{err: errors.New("quota exceeded")},
			want: manual,
		},
		{
			name: "not json",
			gen:  &stubGenerator{reply: "I could not find any jobs."},
			want: manual,
		},
		{
			name: "missing and malformed entries",
			gen: &stubGenerator{reply: `[
				{"index": 1, "company": "Globex"},
				{"title": "no index"},
				{"index": 7, "company": "out of range"},
				"garbage"
			]`},
			want: []Listing{manual[0], func() Listing { l := manual[1]; l.Company = "Globex"; return l }()},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			listings := NewLLMParser(tc.gen, "m", nil).Parse(context.Background(), parseHits)
			if len(listings) != len(tc.want) {
				t.Fatalf("expected %d listings, got %d", len(tc.want), len(listings))
			}
			for i := range tc.want {
				if listings[i] != tc.want[i] {
					t.Fatalf("listing %d:\n got %+v\nwant %+v", i, listings[i], tc.want[i])
				}
			}
		})
	}
}

func TestLLMParserSkipsEmptyHits(t *testing.T) {
	gen := &stubGenerator{}
	if listings := NewLLMParser(gen, "m", nil).Parse(context.Background(), nil); len(listings) != 0 {
		t.Fatalf("expected no listings, got %+v", listings)
	}
	if gen.calls != 0 {
		t.Fatalf("expected no model call for empty hits, got %d", gen.calls)
	}
}

func TestCSESearchWithLLMParser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"title": "Senior Go Developer | LinkedIn", "link": "https://www.linkedin.com/jobs/view/5", "snippet": "Initech, Austin TX"},
			},
		})
	}))
	defer srv.Close()

	gen := &stubGenerator{reply: `[{"index": 0, "title": "Senior Go Developer", "company": "Initech", "location": "Austin, TX"}]`}
	cse, err := NewCSE(context.Background(), CSEConfig{
		APIKey:   "key",
		EngineID: "engine",
		Parser:   NewLLMParser(gen, "m", nil),
	}, nil,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	listings, err := cse.Search(context.Background(), Criteria{Keywords: "go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listings) != 1 || listings[0].Company != "Initech" || listings[0].Location != "Austin, TX" || listings[0].JobID != "5" {
		t.Fatalf("unexpected listings %+v", listings)
	}
}
