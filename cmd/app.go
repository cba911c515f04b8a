package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/duybaohuynhtan/CareerAgent/internal/ai/gemini"
	"github.com/duybaohuynhtan/CareerAgent/internal/api"
	"github.com/duybaohuynhtan/CareerAgent/internal/document"
	"github.com/duybaohuynhtan/CareerAgent/internal/headhunter"
	"github.com/duybaohuynhtan/CareerAgent/internal/jobs"
	"github.com/duybaohuynhtan/CareerAgent/internal/orchestrator"
	"github.com/duybaohuynhtan/CareerAgent/internal/session"
	"github.com/duybaohuynhtan/CareerAgent/internal/tika"
	"github.com/duybaohuynhtan/CareerAgent/internal/tools"

	"go.uber.org/zap"
)

// buildHandler assembles every component and returns the HTTP handler.
func buildHandler(ctx context.Context, config *Config, logger *zap.Logger) (*api.Handler, error) {
	registry, err := config.ModelRegistry()
	if err != nil {
		return nil, fmt.Errorf("building model registry: %w", err)
	}

	creds, err := config.Credentials()
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	llm, err := gemini.NewClient(ctx, creds.LLMKey, config.LLM.MaxLogLength, logger)
	if err != nil {
		return nil, err
	}

	maxSize := int64(config.Document.MaxSizeMB) << 20
	extractorOpts := []document.Option{
		document.WithMaxSize(maxSize),
		document.WithLogger(logger),
	}
	if url := strings.TrimSpace(config.Document.TikaURL); url != "" {
		tc := tika.NewClient(url, config.Document.TikaTimeout)
		tc.MaxText = maxSize
		extractorOpts = append(extractorOpts, document.WithTika(tc))
		logger.Info("legacy .doc files go through tika", zap.String("tika_url", url))
	}
	extractor := document.New(extractorOpts...)

	parsingModel := strings.TrimSpace(config.Search.ParsingModel)
	if parsingModel == "" {
		parsingModel = registry.Default()
	}
	search, err := newJobService(ctx, config.Search, creds, jobs.NewLLMParser(llm, parsingModel, logger), logger)
	if err != nil {
		return nil, err
	}

	analyzer := tools.NewAnalyzer(llm, config.LLM.MaxLogLength, logger)
	toolset := tools.NewRegistry(analyzer, search, logger)
	store := session.NewStore(registry, config.Session.TTL, logger)

	orch := orchestrator.New(llm, toolset, store, extractor, analyzer, orchestrator.Options{
		MaxToolCalls: config.LLM.MaxToolCalls,
		MaxLogLength: config.LLM.MaxLogLength,
	}, logger)

	logger.Info("assistant ready",
		zap.String("default_model", registry.Default()),
		zap.Strings("models", registry.IDs()),
		zap.Int("max_tool_calls", config.LLM.MaxToolCalls),
		zap.Any("filters", search.Filters()),
	)

	return api.NewHandler(orch, maxSize, version, logger), nil
}

// newJobService builds the configured backend. llmParser is used for search
// engine hits when search.parsing-method is llm.
func newJobService(ctx context.Context, config *SearchConfig, creds *Credentials, llmParser jobs.HitParser, logger *zap.Logger) (*jobs.Service, error) {
	var (
		backend jobs.Backend
		site    string
	)

	switch config.Provider {
	case searchProviderHeadhunter:
		hh := headhunter.New(logger, creds.HHToken, config.Headhunter.Area)
		if config.Headhunter.UserAgent != "" {
			hh.UserAgent = config.Headhunter.UserAgent
		}
		backend, site = hh, headhunter.Site
	default:
		var parser jobs.HitParser = jobs.ManualParser{}
		if config.ParsingMethod == jobs.ParseLLM && llmParser != nil {
			parser = llmParser
		}
		logger.Info("search hits parsing", zap.String("method", config.ParsingMethod))

		cse, err := jobs.NewCSE(ctx, jobs.CSEConfig{
			APIKey:       creds.SearchKey,
			EngineID:     creds.SearchScope,
			Site:         config.Site,
			DateRestrict: config.DateRestrict,
			Parser:       parser,
		}, logger)
		if err != nil {
			return nil, err
		}
		backend, site = cse, cse.Site()
	}

	filters := []jobs.Filter{
		jobs.NewSiteScope(site),
		jobs.NewDedupe(),
		jobs.NewExcludedCompanies(config.ExcludeCompanies),
	}
	for _, name := range config.DisabledFilters {
		jobs.DisableByName(filters, strings.TrimSpace(name), "disabled in config")
	}

	return jobs.NewService(backend, jobs.ServiceOptions{
		DefaultLimit: config.DefaultLimit,
		MaxLimit:     config.MaxLimit,
		Filters:      filters,
	}, logger), nil
}
