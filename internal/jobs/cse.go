package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

const (
	DefaultSite         = "linkedin.com/jobs"
	defaultDateRestrict = "m1"
)

// CSE searches job postings through a Google Programmable Search engine.
type CSE struct {
	service      *customsearch.Service
	engineID     string
	site         string
	dateRestrict string
	parser       HitParser
	logger       *zap.Logger
}

type CSEConfig struct {
	APIKey       string
	EngineID     string
	Site         string
	DateRestrict string
	// Parser reads listings out of the raw hits. Nil means ManualParser.
	Parser HitParser
}

func NewCSE(ctx context.Context, cfg CSEConfig, logger *zap.Logger, opts ...option.ClientOption) (*CSE, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("custom search api key is required")
	}
	if strings.TrimSpace(cfg.EngineID) == "" {
		return nil, errors.New("custom search engine id is required")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	service, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create custom search service: %w", err)
	}

	site := strings.TrimSpace(cfg.Site)
	if site == "" {
		site = DefaultSite
	}
	dateRestrict := strings.TrimSpace(cfg.DateRestrict)
	if dateRestrict == "" {
		dateRestrict = defaultDateRestrict
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := cfg.Parser
	if parser == nil {
		parser = ManualParser{}
	}

	return &CSE{
		service:      service,
		engineID:     strings.TrimSpace(cfg.EngineID),
		site:         site,
		dateRestrict: dateRestrict,
		parser:       parser,
		logger:       logger,
	}, nil
}

func (c *CSE) Name() string { return "google-cse" }

// Site is the domain path results are scoped to.
func (c *CSE) Site() string { return c.site }

func (c *CSE) Search(ctx context.Context, criteria Criteria) ([]Listing, error) {
	query := BuildQuery(c.site, criteria)
	num := ClampLimit(criteria.Limit, DefaultLimit, MaxLimit)

	dateRestrict := criteria.Trimmed().DateRange
	if dateRestrict == "" {
		dateRestrict = c.dateRestrict
	}

	c.logger.Debug("custom search request",
		zap.String("query", query),
		zap.Int("num", num),
		zap.Int("page", criteria.Page),
		zap.String("date_restrict", dateRestrict),
	)

	call := c.service.Cse.List().
		Cx(c.engineID).
		Q(query).
		Num(int64(num)).
		DateRestrict(dateRestrict).
		Safe("medium")
	if criteria.Page > 0 {
		call = call.Start(int64(criteria.Page*num + 1))
	}

	res, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: custom search: %w", ErrBackendUnavailable, err)
	}

	hits := make([]Hit, 0, len(res.Items))
	for _, item := range res.Items {
		if item == nil {
			continue
		}
		hits = append(hits, Hit{Title: item.Title, Link: item.Link, Snippet: item.Snippet})
	}
	listings := c.parser.Parse(ctx, hits)

	c.logger.Debug("custom search response", zap.Int("items", len(listings)))

	return listings, nil
}
