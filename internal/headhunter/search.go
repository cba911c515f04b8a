package headhunter

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/duybaohuynhtan/CareerAgent/internal/jobs"

	"github.com/mitchellh/mapstructure"
)

const (
	SearchPath = "/vacancies"
)

type SearchParams struct {
	Text string `hhparam:"text"`
	// hhparam is custom tag for reflect. Please see below.
	Areas       []int    `hhparam:"area"`
	OrderBy     string   `hhparam:"order_by"`
	SearchField string   `hhparam:"search_field"`
	Schedules   []string `hhparam:"schedule"`
	Employment  []string `hhparam:"employment"`
	PerPage     int      `hhparam:"per_page"`
	Page        int      `hhparam:"page"`
	Experience  string   `hhparam:"experience"`
	Period      int      `hhparam:"period"`
}

// Search implements jobs.Backend.
func (c *Client) Search(ctx context.Context, criteria jobs.Criteria) ([]jobs.Listing, error) {
	limit := jobs.ClampLimit(criteria.Limit, jobs.DefaultLimit, jobs.MaxLimit)
	params := c.paramsFor(criteria, limit)

	items, err := c.GetItems(ctx, c.APIURL+SearchPath, buildParams(params), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: hh.ru search: %w", jobs.ErrBackendUnavailable, err)
	}

	var vacancies []*Vacancy
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &vacancies,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create vacancy decoder: %w", err)
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("%w: decode vacancies: %w", jobs.ErrBackendUnavailable, err)
	}

	listings := make([]jobs.Listing, 0, len(vacancies))
	for _, v := range vacancies {
		if v == nil {
			continue
		}
		listings = append(listings, v.ToListing())
	}
	return listings, nil
}

// paramsFor maps the generic criteria onto hh.ru query parameters. Filters
// without a dictionary equivalent go into the text query as required phrases.
func (c *Client) paramsFor(criteria jobs.Criteria, limit int) *SearchParams {
	criteria = criteria.Trimmed()

	text := []string{criteria.Keywords}
	if criteria.Location != "" {
		text = append(text, fmt.Sprintf("AND %q", criteria.Location))
	}
	if criteria.Company != "" {
		text = append(text, fmt.Sprintf("AND COMPANY_NAME:(%s)", criteria.Company))
	}

	params := &SearchParams{
		Text:       strings.Join(text, " "),
		OrderBy:    "relevance",
		PerPage:    limit,
		Page:       criteria.Page,
		Experience: experienceID(criteria.ExperienceLevel),
		Period:     periodDays(criteria.DateRange),
	}
	if c.area > 0 {
		params.Areas = []int{c.area}
	}
	if schedule := scheduleID(criteria.WorkArrangement); schedule != "" {
		params.Schedules = []string{schedule}
	}
	if employment := employmentID(criteria.JobType); employment != "" {
		params.Employment = []string{employment}
	}
	if params.PerPage > perPage {
		params.PerPage = perPage
	}
	return params
}

func experienceID(level string) string {
	switch l := strings.ToLower(level); {
	case l == "":
		return ""
	case strings.Contains(l, "intern"), strings.Contains(l, "entry"), strings.Contains(l, "no experience"):
		return "noExperience"
	case strings.Contains(l, "lead"), strings.Contains(l, "principal"), strings.Contains(l, "director"):
		return "moreThan6"
	case strings.Contains(l, "senior"):
		return "between3And6"
	case strings.Contains(l, "junior"), strings.Contains(l, "mid"):
		return "between1And3"
	default:
		return ""
	}
}

func scheduleID(arrangement string) string {
	switch l := strings.ToLower(arrangement); {
	case strings.Contains(l, "remote"):
		return "remote"
	case strings.Contains(l, "hybrid"), strings.Contains(l, "flex"):
		return "flexible"
	case strings.Contains(l, "site"), strings.Contains(l, "office"):
		return "fullDay"
	default:
		return ""
	}
}

func employmentID(jobType string) string {
	switch l := strings.ToLower(jobType); {
	case strings.Contains(l, "full"):
		return "full"
	case strings.Contains(l, "part"):
		return "part"
	case strings.Contains(l, "contract"), strings.Contains(l, "project"):
		return "project"
	case strings.Contains(l, "intern"):
		return "probation"
	case strings.Contains(l, "volunteer"):
		return "volunteer"
	default:
		return ""
	}
}

// periodDays converts a d/w/m/y date range into days, capped at the 30 days
// hh.ru accepts.
func periodDays(dateRange string) int {
	if len(dateRange) < 2 {
		return 0
	}
	n, err := strconv.Atoi(dateRange[1:])
	if err != nil || n <= 0 {
		return 0
	}
	days := map[byte]int{'d': 1, 'w': 7, 'm': 30, 'y': 365}[dateRange[0]] * n
	return min(days, 30)
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	value := reflect.ValueOf(params).Elem()
	for _, field := range reflect.VisibleFields(value.Type()) {
		// Our custom tag is using here.
		key := field.Tag.Get("hhparam")
		if key == "" {
			continue
		}

		switch v := value.FieldByIndex(field.Index).Interface().(type) {
		case []int:
			for _, item := range v {
				q.Add(key, strconv.Itoa(item))
			}
		case []string:
			for _, item := range v {
				q.Add(key, item)
			}
		default:
			s := fmt.Sprintf("%v", v)
			if s != "" && s != "0" {
				q.Set(key, s)
			}
		}
	}

	return q
}
