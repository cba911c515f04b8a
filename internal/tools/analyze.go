package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "embed"

	"github.com/duybaohuynhtan/CareerAgent/internal/document"
	"github.com/duybaohuynhtan/CareerAgent/internal/logger"
	"github.com/duybaohuynhtan/CareerAgent/internal/util"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// ErrAnalysisFailed marks an analysis that produced nothing usable.
var ErrAnalysisFailed = errors.New("document analysis failed")

//go:embed prompts/analyze.md
var analyzeTemplate string

const (
	analyzeSystem       = "You extract structured résumé data and answer with JSON only."
	defaultMaxLogLength = 200
	none                = "None"
)

type generator interface {
	Provider() string
	Generate(ctx context.Context, model, system, prompt string) (string, error)
}

type Contact struct {
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Location string   `json:"location"`
	Links    []string `json:"links,omitempty"`
}

type Experience struct {
	Title   string `json:"title" mapstructure:"title"`
	Company string `json:"company" mapstructure:"company"`
	Period  string `json:"period" mapstructure:"period"`
	Summary string `json:"summary" mapstructure:"summary"`
}

type Education struct {
	Degree      string `json:"degree" mapstructure:"degree"`
	Institution string `json:"institution" mapstructure:"institution"`
	Period      string `json:"period" mapstructure:"period"`
}

// AnalysisResult is the structured summary of a résumé. When LowConfidence
// is set the structured fields may be incomplete and Raw holds the model
// output verbatim.
type AnalysisResult struct {
	Name          string       `json:"name"`
	Contact       Contact      `json:"contact"`
	Skills        []string     `json:"skills"`
	Experience    []Experience `json:"experience"`
	Education     []Education  `json:"education"`
	Summary       string       `json:"summary"`
	Raw           string       `json:"raw,omitempty"`
	LowConfidence bool         `json:"low_confidence"`
}

type Analyzer struct {
	llm       generator
	logger    *zap.Logger
	maxLogLen int
}

func NewAnalyzer(llm generator, maxLogLength int, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Analyzer{
		llm:       llm,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Analyze asks the model for a structured summary of text.
func (a *Analyzer) Analyze(ctx context.Context, model, text string) (*AnalysisResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, document.ErrEmptyDocument
	}

	log := logger.WithCommonFields(a.logger, a.llm.Provider(), model)
	prompt := strings.ReplaceAll(analyzeTemplate, "{{DOCUMENT}}", text)

	log.Debug("document analysis request",
		zap.Int("document_length", util.RuneLen(text)),
		zap.String("document_preview", util.TruncateForLog(text, a.maxLogLen)),
	)

	raw, err := a.llm.Generate(ctx, model, analyzeSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty model output", ErrAnalysisFailed)
	}

	log.Debug("document analysis response",
		zap.Int("response_length", util.RuneLen(raw)),
		zap.String("response_preview", util.TruncateForLog(raw, a.maxLogLen)),
	)

	result := parseAnalysis(raw)
	if result.LowConfidence {
		log.Warn("document analysis is incomplete, returning raw model output")
	}
	return result, nil
}

func parseAnalysis(raw string) *AnalysisResult {
	lowConfidence := &AnalysisResult{Raw: strings.TrimSpace(raw), LowConfidence: true}

	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return lowConfidence
	}

	result := &AnalysisResult{
		Name:    coerceString(data["name"]),
		Skills:  coerceStrings(data["skills"]),
		Summary: coerceString(data["summary"]),
	}

	if contact, ok := data["contact"].(map[string]any); ok {
		result.Contact = Contact{
			Email:    coerceString(contact["email"]),
			Phone:    coerceString(contact["phone"]),
			Location: coerceString(contact["location"]),
			Links:    coerceStrings(contact["links"]),
		}
	}

	if err := decodeLoose(data["experience"], &result.Experience); err != nil {
		result.LowConfidence = true
	}
	if err := decodeLoose(data["education"], &result.Education); err != nil {
		result.LowConfidence = true
	}

	if result.Name == "" || len(result.Skills) == 0 {
		result.LowConfidence = true
	}
	if result.LowConfidence {
		result.Raw = lowConfidence.Raw
	}
	return result
}

func decodeLoose(input, out any) error {
	if input == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// Markdown renders the result for chat display. Missing values read "None".
func (r *AnalysisResult) Markdown() string {
	var b strings.Builder

	if r.LowConfidence {
		b.WriteString("_Low confidence: some details could not be extracted reliably. Model output follows._\n\n")
		if r.Raw != "" {
			b.WriteString(r.Raw)
			b.WriteString("\n\n")
		}
		if r.Name == "" && len(r.Skills) == 0 && len(r.Experience) == 0 {
			return strings.TrimSpace(b.String())
		}
	}

	fmt.Fprintf(&b, "**Name:** %s\n", orNone(r.Name))
	fmt.Fprintf(&b, "**Email:** %s\n", orNone(r.Contact.Email))
	fmt.Fprintf(&b, "**Phone:** %s\n", orNone(r.Contact.Phone))
	fmt.Fprintf(&b, "**Location:** %s\n", orNone(r.Contact.Location))
	if len(r.Contact.Links) > 0 {
		fmt.Fprintf(&b, "**Links:** %s\n", strings.Join(r.Contact.Links, ", "))
	}

	b.WriteString("\n**Skills:** ")
	if len(r.Skills) == 0 {
		b.WriteString(none)
	} else {
		b.WriteString(strings.Join(r.Skills, ", "))
	}
	b.WriteString("\n")

	b.WriteString("\n**Experience:**\n")
	if len(r.Experience) == 0 {
		b.WriteString("- " + none + "\n")
	}
	for _, e := range r.Experience {
		fmt.Fprintf(&b, "- %s at %s (%s)", orNone(e.Title), orNone(e.Company), orNone(e.Period))
		if e.Summary != "" {
			fmt.Fprintf(&b, ": %s", e.Summary)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n**Education:**\n")
	if len(r.Education) == 0 {
		b.WriteString("- " + none + "\n")
	}
	for _, e := range r.Education {
		fmt.Fprintf(&b, "- %s, %s (%s)\n", orNone(e.Degree), orNone(e.Institution), orNone(e.Period))
	}

	fmt.Fprintf(&b, "\n**Summary:** %s", orNone(r.Summary))
	return b.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return none
	}
	return s
}
