// Package tools implements the capability tools the model may call during a
// chat turn: résumé analysis and job search.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/duybaohuynhtan/CareerAgent/internal/ai"
	"github.com/duybaohuynhtan/CareerAgent/internal/jobs"
	"github.com/duybaohuynhtan/CareerAgent/internal/logger"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	AnalyzeDocument = "analyze_document"
	SearchJobs      = "search_jobs"
)

// ArgumentError reports tool arguments that failed validation.
type ArgumentError struct {
	Tool string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

type searcher interface {
	Search(ctx context.Context, c jobs.Criteria) jobs.Result
}

// Env is the per-call context a tool may need from the session.
type Env struct {
	Model        string
	DocumentText string
}

// Invocation records one tool call within a chat turn.
type Invocation struct {
	Tool      string
	Arguments map[string]any
	Criteria  *jobs.Criteria
	Listings  []jobs.Listing
	Analysis  *AnalysisResult
	Err       error
}

type Registry struct {
	analyzer *Analyzer
	search   searcher
	logger   *zap.Logger
}

func NewRegistry(analyzer *Analyzer, search searcher, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{analyzer: analyzer, search: search, logger: log}
}

// Has reports whether name is a known tool.
func (r *Registry) Has(name string) bool {
	return name == AnalyzeDocument || name == SearchJobs
}

// Declarations describes both tools to the model.
func (r *Registry) Declarations() []ai.ToolDeclaration {
	minLimit, maxLimit := float64(1), float64(jobs.MaxLimit)
	return []ai.ToolDeclaration{
		{
			Name: AnalyzeDocument,
			Description: "Analyze the résumé the user uploaded and extract name, contact details, skills, " +
				"work experience and education. Call it without arguments to analyze the uploaded document, " +
				"or pass the résumé text when the user pasted it into the chat.",
			Parameters: map[string]ai.Param{
				"text": {Type: ai.ParamString, Description: "Résumé text pasted by the user. Omit to use the uploaded document."},
			},
		},
		{
			Name: SearchJobs,
			Description: "Search current job listings. Only fill the filters the user actually asked for; " +
				"never guess values.",
			Parameters: map[string]ai.Param{
				"keywords":         {Type: ai.ParamString, Description: "Role, skills or technologies to search for, e.g. \"backend developer\"."},
				"location":         {Type: ai.ParamString, Description: "City, region or country."},
				"experience_level": {Type: ai.ParamString, Description: "Seniority such as internship, entry level, junior, mid, senior, lead or director."},
				"company":          {Type: ai.ParamString, Description: "Company name."},
				"job_type":         {Type: ai.ParamString, Description: "Employment type such as full-time, part-time, contract or internship."},
				"work_arrangement": {Type: ai.ParamString, Description: "Remote, hybrid or on-site."},
				"date_range":       {Type: ai.ParamString, Description: "Posting age: d<days>, w<weeks>, m<months> or y<years>, e.g. w1."},
				"limit":            {Type: ai.ParamInteger, Description: "Number of listings to return.", Minimum: &minLimit, Maximum: &maxLimit},
			},
			Required: []string{"keywords"},
		},
	}
}

// Execute runs call. Argument validation failures are returned as
// *ArgumentError in Invocation.Err; every other failure is reported there too.
func (r *Registry) Execute(ctx context.Context, call ai.ToolCallRequest, env Env) Invocation {
	inv := Invocation{Tool: call.Name, Arguments: call.Arguments}
	log := r.logger.With(zap.String(logger.FieldTool, call.Name))

	switch call.Name {
	case AnalyzeDocument:
		text, err := textArgument(call.Arguments)
		if err != nil {
			inv.Err = &ArgumentError{Tool: call.Name, Err: err}
			break
		}
		if strings.TrimSpace(text) == "" {
			text = env.DocumentText
		}
		inv.Analysis, inv.Err = r.analyzer.Analyze(ctx, env.Model, text)
	case SearchJobs:
		criteria, err := DecodeCriteria(call.Arguments)
		if err != nil {
			inv.Err = &ArgumentError{Tool: call.Name, Err: err}
			break
		}
		result := r.search.Search(ctx, criteria)
		inv.Criteria = &result.Criteria
		inv.Listings = result.Listings
		inv.Err = result.Err
	default:
		inv.Err = fmt.Errorf("unknown tool %q", call.Name)
	}

	if inv.Err != nil {
		log.Warn("tool call failed", zap.Error(inv.Err))
	} else {
		log.Debug("tool call completed")
	}
	return inv
}

func textArgument(args map[string]any) (string, error) {
	v, ok := args["text"]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("text must be a string, got %T", v)
	}
	return s, nil
}

// DecodeCriteria converts loosely typed tool arguments into validated search
// criteria.
func DecodeCriteria(args map[string]any) (jobs.Criteria, error) {
	var criteria jobs.Criteria
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &criteria,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return criteria, err
	}
	if err := decoder.Decode(args); err != nil {
		return criteria, fmt.Errorf("decode arguments: %w", err)
	}
	criteria = criteria.Trimmed()
	if err := criteria.Validate(); err != nil {
		return criteria, err
	}
	return criteria, nil
}

// Output is the function response handed back to the model.
func (inv Invocation) Output() map[string]any {
	if inv.Err != nil {
		out := map[string]any{"error": inv.Err.Error()}
		if inv.Tool == SearchJobs {
			out["listings"] = []jobs.Listing{}
		}
		return out
	}

	switch {
	case inv.Analysis != nil:
		return map[string]any{
			"analysis":       inv.Analysis.Markdown(),
			"low_confidence": inv.Analysis.LowConfidence,
			"name":           inv.Analysis.Name,
			"skills":         inv.Analysis.Skills,
		}
	case inv.Criteria != nil:
		listings := make([]map[string]any, 0, len(inv.Listings))
		for _, l := range inv.Listings {
			listings = append(listings, map[string]any{
				"title":    l.Title,
				"company":  l.Company,
				"location": l.Location,
				"url":      l.URL,
				"snippet":  l.Snippet,
			})
		}
		return map[string]any{
			"keywords": inv.Criteria.Keywords,
			"count":    len(listings),
			"listings": listings,
		}
	default:
		return map[string]any{}
	}
}

// Summary renders the invocation for a user when the model could not write
// the final answer itself.
func (inv Invocation) Summary() string {
	if inv.Err != nil {
		return fmt.Sprintf("The %s step failed: %s.", inv.Tool, userError(inv.Err))
	}
	if inv.Analysis != nil {
		return inv.Analysis.Markdown()
	}
	if inv.Criteria == nil {
		return ""
	}
	if len(inv.Listings) == 0 {
		return fmt.Sprintf("No job listings found for %q.", inv.Criteria.Keywords)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d job listings for %q:\n", len(inv.Listings), inv.Criteria.Keywords)
	for i, l := range inv.Listings {
		fmt.Fprintf(&b, "%d. **%s** at %s (%s)", i+1, l.Title, l.Company, l.Location)
		if l.URL != "" {
			fmt.Fprintf(&b, " - %s", l.URL)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func userError(err error) string {
	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		return argErr.Err.Error()
	}
	return err.Error()
}
