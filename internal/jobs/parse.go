package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// Parsing methods for raw search hits.
const (
	ParseManual = "manual"
	ParseLLM    = "llm"
)

const parseSystem = "You extract job posting details from search results and answer with JSON only."

//go:embed prompts/parse_hits.md
var parseTemplate string

// Hit is one raw search engine result.
type Hit struct {
	Title   string `json:"title"`
	Link    string `json:"url"`
	Snippet string `json:"snippet"`
}

// HitParser turns raw hits into listings. It returns one listing per hit, in
// the same order.
type HitParser interface {
	Parse(ctx context.Context, hits []Hit) []Listing
}

type generator interface {
	Generate(ctx context.Context, model, system, prompt string) (string, error)
}

// ManualParser reads the title, company and location with fixed patterns.
type ManualParser struct{}

func (ManualParser) Parse(_ context.Context, hits []Hit) []Listing {
	listings := make([]Listing, 0, len(hits))
	for _, hit := range hits {
		listings = append(listings, FromSearchResult(hit.Title, hit.Link, hit.Snippet))
	}
	return listings
}

// LLMParser asks a model for the posting details of every hit in one call.
// Hits the model skips or answers badly keep the ManualParser result.
type LLMParser struct {
	llm    generator
	model  string
	logger *zap.Logger
}

func NewLLMParser(llm generator, model string, logger *zap.Logger) *LLMParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMParser{llm: llm, model: model, logger: logger}
}

type parsedHit struct {
	Index    int    `mapstructure:"index"`
	Title    string `mapstructure:"title"`
	Company  string `mapstructure:"company"`
	Location string `mapstructure:"location"`
}

type indexedHit struct {
	Index int `json:"index"`
	Hit
}

func (p *LLMParser) Parse(ctx context.Context, hits []Hit) []Listing {
	listings := ManualParser{}.Parse(ctx, hits)
	if len(hits) == 0 {
		return listings
	}

	parsed, err := p.ask(ctx, hits)
	if err != nil {
		p.logger.Warn("llm hit parsing failed, using manual parsing", zap.Int("hits", len(hits)), zap.Error(err))
		return listings
	}

	merged := 0
	for _, entry := range parsed {
		if entry.Index < 0 || entry.Index >= len(listings) {
			continue
		}
		listing := &listings[entry.Index]
		if title := cleanTitle(nullable(entry.Title)); title != "" {
			listing.Title = title
		}
		if company := nullable(entry.Company); company != "" {
			listing.Company = company
		}
		if location := nullable(entry.Location); location != "" {
			listing.Location = location
		}
		merged++
	}

	p.logger.Debug("llm hit parsing done", zap.Int("hits", len(hits)), zap.Int("parsed", merged))
	return listings
}

func (p *LLMParser) ask(ctx context.Context, hits []Hit) ([]parsedHit, error) {
	indexed := make([]indexedHit, len(hits))
	for i, hit := range hits {
		indexed[i] = indexedHit{Index: i, Hit: hit}
	}
	payload, err := json.MarshalIndent(indexed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode hits: %w", err)
	}

	raw, err := p.llm.Generate(ctx, p.model, parseSystem, strings.ReplaceAll(parseTemplate, "{{HITS}}", string(payload)))
	if err != nil {
		return nil, err
	}

	var entries []any
	if err := json.Unmarshal([]byte(extractArray(raw)), &entries); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}

	parsed := make([]parsedHit, 0, len(entries))
	for _, entry := range entries {
		var hit parsedHit
		hit.Index = -1
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &hit,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(entry); err != nil {
			p.logger.Debug("skipping malformed llm hit", zap.Error(err))
			continue
		}
		parsed = append(parsed, hit)
	}
	return parsed, nil
}

// extractArray strips markdown fences and any prose around the outermost
// JSON array.
func extractArray(raw string) string {
	raw = strings.TrimSpace(raw)
	if start, end := strings.Index(raw, "["), strings.LastIndex(raw, "]"); start != -1 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func nullable(s string) string {
	s = cleanText(s)
	if strings.EqualFold(s, "none") || strings.EqualFold(s, "null") || s == "N/A" {
		return ""
	}
	return s
}
