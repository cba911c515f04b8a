package jobs

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Filter is one post-processing step applied to search results.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(ctx context.Context, listings []Listing) ([]Listing, Step)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// RunFilters executes the enabled filters in order.
func RunFilters(ctx context.Context, logger *zap.Logger, steps []Filter, listings []Listing) []Listing {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}

		next, info := step.Apply(ctx, listings)
		if logger != nil && info.Dropped > 0 {
			logger.Debug("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}
		listings = next
	}
	return listings
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}
		statuses = append(statuses, Status{Name: step.Name(), Enabled: step.IsEnabled()})
	}
	return statuses
}

type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

func keep(listings []Listing, pred func(Listing) bool) ([]Listing, Step) {
	initial := len(listings)
	kept := make([]Listing, 0, initial)
	for _, l := range listings {
		if pred(l) {
			kept = append(kept, l)
		}
	}
	return kept, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}
}

type siteScopeFilter struct {
	toggle
	site string
}

// NewSiteScope drops results whose URL is not on the target site, such as
// company pages or profiles the search engine returns alongside postings.
func NewSiteScope(site string) Filter {
	return &siteScopeFilter{site: strings.ToLower(strings.TrimSpace(site))}
}

func (f *siteScopeFilter) Name() string { return "site_scope" }

func (f *siteScopeFilter) Apply(_ context.Context, listings []Listing) ([]Listing, Step) {
	if f.site == "" {
		return listings, Step{Initial: len(listings), Left: len(listings)}
	}
	return keep(listings, func(l Listing) bool {
		return strings.Contains(strings.ToLower(l.URL), f.site)
	})
}

func (f *siteScopeFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{"site": f.site}}
}

type dedupeFilter struct {
	toggle
}

// NewDedupe keeps the first occurrence of each posting, keyed by job id when
// known and by URL otherwise.
func NewDedupe() Filter {
	return &dedupeFilter{}
}

func (f *dedupeFilter) Name() string { return "dedupe" }

func (f *dedupeFilter) Apply(_ context.Context, listings []Listing) ([]Listing, Step) {
	seen := make(map[string]bool, len(listings))
	return keep(listings, func(l Listing) bool {
		key := l.JobID
		if key == "" {
			key = strings.TrimRight(strings.ToLower(l.URL), "/")
		}
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	})
}

type companiesFilter struct {
	toggle
	companies []string
}

// NewExcludedCompanies removes listings whose company matches one of the
// configured names, case-insensitively.
func NewExcludedCompanies(companies []string) Filter {
	normalized := make([]string, 0, len(companies))
	for _, c := range companies {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			normalized = append(normalized, c)
		}
	}
	return &companiesFilter{companies: normalized}
}

func (f *companiesFilter) Name() string { return "excluded_companies" }

func (f *companiesFilter) Apply(_ context.Context, listings []Listing) ([]Listing, Step) {
	if len(f.companies) == 0 {
		return listings, Step{Initial: len(listings), Left: len(listings)}
	}
	return keep(listings, func(l Listing) bool {
		company := strings.ToLower(l.Company)
		for _, excluded := range f.companies {
			if company == excluded {
				return false
			}
		}
		return true
	})
}

func (f *companiesFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{"companies": strings.Join(f.companies, ",")}}
}

type limitFilter struct {
	toggle
	limit int
}

func newLimit(limit int) Filter {
	return &limitFilter{limit: limit}
}

func (f *limitFilter) Name() string { return "limit" }

func (f *limitFilter) Apply(_ context.Context, listings []Listing) ([]Listing, Step) {
	initial := len(listings)
	if initial <= f.limit {
		return listings, Step{Initial: initial, Left: initial}
	}
	return listings[:f.limit], Step{Initial: initial, Dropped: initial - f.limit, Left: f.limit}
}

func (f *limitFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: true, Details: map[string]string{"limit": strconv.Itoa(f.limit)}}
}
