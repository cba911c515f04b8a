// Package jobs searches job listings on a single target site and normalizes
// the results.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrBackendUnavailable marks failures of the search backend.
var ErrBackendUnavailable = errors.New("search backend unavailable")

const (
	DefaultLimit = 5
	MaxLimit     = 10
	// MaxPages bounds how many result pages one search may fetch.
	MaxPages = 3

	UnknownCompany  = "Unknown Company"
	UnknownLocation = "Location not specified"
)

type Listing struct {
	Title    string `json:"title"`
	Company  string `json:"company"`
	Location string `json:"location"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	JobID    string `json:"job_id,omitempty"`
}

// Criteria are the search filters. Every non-empty filter must match.
type Criteria struct {
	Keywords        string `json:"keywords" mapstructure:"keywords" validate:"required"`
	Location        string `json:"location,omitempty" mapstructure:"location"`
	ExperienceLevel string `json:"experience_level,omitempty" mapstructure:"experience_level"`
	Company         string `json:"company,omitempty" mapstructure:"company"`
	JobType         string `json:"job_type,omitempty" mapstructure:"job_type"`
	WorkArrangement string `json:"work_arrangement,omitempty" mapstructure:"work_arrangement"`
	DateRange       string `json:"date_range,omitempty" mapstructure:"date_range" validate:"omitempty,daterange"`
	Limit           int    `json:"limit,omitempty" mapstructure:"limit"`
	// Page is the zero-based result page, each Limit listings long.
	Page int `json:"-" mapstructure:"-"`
}

// Backend runs one search against an external job source.
type Backend interface {
	Name() string
	Search(ctx context.Context, c Criteria) ([]Listing, error)
}

var dateRangePattern = regexp.MustCompile(`^[dwmy][1-9][0-9]*$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func criteriaValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("daterange", func(fl validator.FieldLevel) bool {
			return dateRangePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (c Criteria) Trimmed() Criteria {
	c.Keywords = strings.TrimSpace(c.Keywords)
	c.Location = strings.TrimSpace(c.Location)
	c.ExperienceLevel = strings.TrimSpace(c.ExperienceLevel)
	c.Company = strings.TrimSpace(c.Company)
	c.JobType = strings.TrimSpace(c.JobType)
	c.WorkArrangement = strings.TrimSpace(c.WorkArrangement)
	c.DateRange = strings.ToLower(strings.TrimSpace(c.DateRange))
	return c
}

// Validate reports the first invalid field in a readable form.
func (c Criteria) Validate() error {
	err := criteriaValidator().Struct(c.Trimmed())
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	switch fe := verrs[0]; fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fieldName(fe.Field()))
	case "daterange":
		return fmt.Errorf("%s %q must look like d7, w2, m1 or y1", fieldName(fe.Field()), fe.Value())
	default:
		return fmt.Errorf("%s is invalid", fieldName(fe.Field()))
	}
}

// ClampLimit applies def for non-positive values and caps at upper, which
// itself never exceeds MaxLimit.
func ClampLimit(limit, def, upper int) int {
	if upper <= 0 || upper > MaxLimit {
		upper = MaxLimit
	}
	if def <= 0 || def > upper {
		def = min(DefaultLimit, upper)
	}
	if limit <= 0 {
		limit = def
	}
	return min(limit, upper)
}

func fieldName(goName string) string {
	switch goName {
	case "Keywords":
		return "keywords"
	case "DateRange":
		return "date_range"
	default:
		return strings.ToLower(goName)
	}
}
