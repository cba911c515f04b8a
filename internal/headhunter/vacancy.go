package headhunter

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/duybaohuynhtan/CareerAgent/internal/jobs"
)

type Vacancy struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Area struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"area,omitempty"`
	Salary *struct {
		From     int    `json:"from,omitempty"`
		To       int    `json:"to,omitempty"`
		Currency string `json:"currency,omitempty"`
	} `json:"salary,omitempty"`
	Employer struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"employer,omitempty"`
	Schedule struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"schedule,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	Snipet       struct {
		Requirement    string `json:"requirement,omitempty"`
		Responsibility string `json:"responsibility,omitempty"`
	} `json:"snippet,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

var highlightTag = regexp.MustCompile(`</?highlighttext>`)

// ToListing flattens the vacancy into the shared listing shape.
func (v *Vacancy) ToListing() jobs.Listing {
	company := strings.TrimSpace(v.Employer.Name)
	if company == "" {
		company = jobs.UnknownCompany
	}
	location := strings.TrimSpace(v.Area.Name)
	if location == "" {
		location = jobs.UnknownLocation
	}

	url := v.AlternateURL
	if url == "" && v.ID != "" {
		url = fmt.Sprintf("https://hh.ru/vacancy/%s", v.ID)
	}

	return jobs.Listing{
		Title:    strings.TrimSpace(v.Name),
		Company:  company,
		Location: location,
		URL:      url,
		Snippet:  v.snippet(),
		JobID:    v.ID,
	}
}

func (v *Vacancy) snippet() string {
	parts := make([]string, 0, 3)
	if s := v.salary(); s != "" {
		parts = append(parts, s)
	}
	for _, text := range []string{v.Snipet.Responsibility, v.Snipet.Requirement} {
		text = strings.TrimSpace(html.UnescapeString(highlightTag.ReplaceAllString(text, "")))
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func (v *Vacancy) salary() string {
	if v.Salary == nil {
		return ""
	}
	switch {
	case v.Salary.From > 0 && v.Salary.To > 0:
		return fmt.Sprintf("Salary %d-%d %s.", v.Salary.From, v.Salary.To, v.Salary.Currency)
	case v.Salary.From > 0:
		return fmt.Sprintf("Salary from %d %s.", v.Salary.From, v.Salary.Currency)
	case v.Salary.To > 0:
		return fmt.Sprintf("Salary up to %d %s.", v.Salary.To, v.Salary.Currency)
	default:
		return ""
	}
}
