package jobs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Result always carries a usable slice. Err is set when the backend failed;
// Listings is empty in that case.
type Result struct {
	Criteria Criteria
	Listings []Listing
	Err      error
}

type Service struct {
	backend      Backend
	filters      []Filter
	defaultLimit int
	maxLimit     int
	logger       *zap.Logger
}

type ServiceOptions struct {
	DefaultLimit int
	MaxLimit     int
	Filters      []Filter
}

func NewService(backend Backend, opts ServiceOptions, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxLimit := ClampLimit(opts.MaxLimit, MaxLimit, MaxLimit)
	return &Service{
		backend:      backend,
		filters:      opts.Filters,
		defaultLimit: ClampLimit(opts.DefaultLimit, DefaultLimit, maxLimit),
		maxLimit:     maxLimit,
		logger:       logger.With(zap.String("search_backend", backend.Name())),
	}
}

// Normalize trims the criteria and clamps the limit.
func (s *Service) Normalize(c Criteria) Criteria {
	c = c.Trimmed()
	c.Limit = ClampLimit(c.Limit, s.defaultLimit, s.maxLimit)
	return c
}

// Search runs the backend and the filter pipeline. It never returns an error
// or panics into the caller; failures are reported through Result.Err.
func (s *Service) Search(ctx context.Context, c Criteria) (result Result) {
	c = s.Normalize(c)
	result = Result{Criteria: c, Listings: []Listing{}}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("search backend panicked", zap.Any("panic", r))
			result.Listings = []Listing{}
			result.Err = fmt.Errorf("%w: %v", ErrBackendUnavailable, r)
		}
	}()

	var listings, kept []Listing
	for page := 0; page < MaxPages; page++ {
		query := c
		query.Page = page

		batch, err := s.backend.Search(ctx, query)
		if err != nil {
			if !errors.Is(err, ErrBackendUnavailable) {
				err = fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
			}
			if page > 0 {
				s.logger.Warn("job search stopped paging", zap.Int("page", page), zap.Error(err))
				break
			}
			s.logger.Warn("job search failed", zap.String("keywords", c.Keywords), zap.Error(err))
			result.Err = err
			return result
		}

		listings = append(listings, batch...)
		kept = RunFilters(ctx, s.logger, s.filters, listings)
		if len(kept) >= c.Limit || len(batch) < c.Limit {
			break
		}
		s.logger.Debug("filters left too few listings, fetching next page",
			zap.Int("page", page+1),
			zap.Int("kept", len(kept)),
			zap.Int("limit", c.Limit),
		)
	}

	result.Listings = RunFilters(ctx, s.logger, []Filter{newLimit(c.Limit)}, kept)
	if result.Listings == nil {
		result.Listings = []Listing{}
	}

	s.logger.Info("job search completed",
		zap.String("keywords", c.Keywords),
		zap.Int("found", len(listings)),
		zap.Int("returned", len(result.Listings)),
	)

	return result
}

// Filters reports the configured post-filters.
func (s *Service) Filters() []Status {
	return Describe(s.filters)
}
