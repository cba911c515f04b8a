package jobs

import (
	"html"
	"regexp"
	"strings"
)

var (
	jobIDPattern      = regexp.MustCompile(`/jobs/view/(?:.*-)?(\d+)`)
	hiringPattern     = regexp.MustCompile(`^(.+?) hiring (.+?)(?: in (.+))?$`)
	atPattern         = regexp.MustCompile(`^(.+?) at (.+)$`)
	locationPattern   = regexp.MustCompile(`(?i)\b(?:location|based in)\s*:?\s*([^.·|\n]+)`)
	siteSuffixPattern = regexp.MustCompile(`(?i)\s*[|\-–]\s*linkedin\s*$`)
	whitespace        = regexp.MustCompile(`\s+`)
)

// FromSearchResult turns a raw search hit into a Listing, reading the
// company and location out of the title when the site encodes them there.
func FromSearchResult(title, link, snippet string) Listing {
	title = cleanTitle(title)
	listing := Listing{
		Title:   title,
		URL:     strings.TrimSpace(link),
		Snippet: cleanText(snippet),
	}

	switch {
	case hiringPattern.MatchString(title):
		m := hiringPattern.FindStringSubmatch(title)
		listing.Company, listing.Title, listing.Location = m[1], m[2], m[3]
	case atPattern.MatchString(title):
		m := atPattern.FindStringSubmatch(title)
		listing.Title, listing.Company = m[1], m[2]
	case strings.Count(title, " - ") >= 1:
		parts := strings.Split(title, " - ")
		listing.Title, listing.Company = parts[0], parts[1]
		if len(parts) > 2 {
			listing.Location = parts[2]
		}
	}

	if listing.Location == "" {
		if m := locationPattern.FindStringSubmatch(listing.Snippet); m != nil {
			listing.Location = m[1]
		}
	}

	listing.Title = strings.TrimSpace(listing.Title)
	listing.Company = strings.TrimSpace(listing.Company)
	listing.Location = strings.TrimSpace(listing.Location)

	if listing.Company == "" {
		listing.Company = UnknownCompany
	}
	if listing.Location == "" {
		listing.Location = UnknownLocation
	}

	if m := jobIDPattern.FindStringSubmatch(listing.URL); m != nil {
		listing.JobID = m[1]
	}

	return listing
}

func cleanTitle(title string) string {
	title = cleanText(title)
	for {
		stripped := siteSuffixPattern.ReplaceAllString(title, "")
		if stripped == title {
			return title
		}
		title = strings.TrimSpace(stripped)
	}
}

func cleanText(s string) string {
	s = html.UnescapeString(s)
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
