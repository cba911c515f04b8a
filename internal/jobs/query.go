package jobs

import (
	"strings"
)

// BuildQuery scopes the search to site and appends every provided filter as
// a quoted phrase, so each one has to appear in a hit.
func BuildQuery(site string, c Criteria) string {
	c = c.Trimmed()

	parts := make([]string, 0, 7)
	if site = strings.TrimSpace(site); site != "" {
		parts = append(parts, "site:"+site)
	}
	if c.Keywords != "" {
		parts = append(parts, c.Keywords)
	}

	for _, filter := range []string{c.Location, c.ExperienceLevel, c.Company, c.JobType, c.WorkArrangement} {
		if filter == "" {
			continue
		}
		parts = append(parts, quote(filter))
	}

	return strings.Join(parts, " ")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "") + `"`
}
