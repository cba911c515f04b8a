// Package headhunter is a job search backend over the hh.ru vacancies API.
package headhunter

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL    = "https://api.hh.ru"
	userAgent = "CareerAgent/1.0 (career-agent@users.noreply.github.com)"
	// Site is the path every vacancy URL lives under.
	Site = "hh.ru/vacancy"
	// Max value for search per page.
	perPage = 100
)

type Client struct {
	token      string
	area       int
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

// New creates a client. area is the hh.ru region id searches are scoped to;
// zero searches everywhere.
func New(logger *zap.Logger, token string, area int) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		token:  token,
		area:   area,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

func (c *Client) Name() string { return "headhunter" }
