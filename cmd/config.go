package cmd

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/duybaohuynhtan/CareerAgent/internal/ai"
	"github.com/duybaohuynhtan/CareerAgent/internal/document"
	"github.com/duybaohuynhtan/CareerAgent/internal/jobs"
	"github.com/duybaohuynhtan/CareerAgent/internal/orchestrator"
	"github.com/duybaohuynhtan/CareerAgent/internal/secrets"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	searchProviderCSE        = "cse"
	searchProviderHeadhunter = "headhunter"
)

type Config struct {
	Server   *ServerConfig   `mapstructure:"server" validate:"required"`
	LLM      *LLMConfig      `mapstructure:"llm" validate:"required"`
	Search   *SearchConfig   `mapstructure:"search" validate:"required"`
	Document *DocumentConfig `mapstructure:"document" validate:"required"`
	Session  *SessionConfig  `mapstructure:"session" validate:"required"`
	Log      *LogConfig      `mapstructure:"log" validate:"required"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required,hostname_port"`
	AllowedOrigins  []string      `mapstructure:"allowed-origins"`
	ReadTimeout     time.Duration `mapstructure:"read-timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write-timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `mapstructure:"idle-timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout" validate:"gt=0"`
}

type LLMConfig struct {
	Provider     string     `mapstructure:"provider" validate:"oneof=gemini"`
	APIKey       string     `mapstructure:"api-key" json:"-"`
	APIKeyFile   string     `mapstructure:"api-key-file"`
	DefaultModel string     `mapstructure:"default-model"`
	Models       []ai.Model `mapstructure:"models" validate:"dive"`
	MaxToolCalls int        `mapstructure:"max-tool-calls" validate:"gte=1,lte=20"`
	MaxLogLength int        `mapstructure:"max-log-length" validate:"gte=0"`
}

type SearchConfig struct {
	Provider         string            `mapstructure:"provider" validate:"oneof=cse headhunter"`
	APIKey           string            `mapstructure:"api-key" json:"-"`
	APIKeyFile       string            `mapstructure:"api-key-file"`
	Scope            string            `mapstructure:"scope"`
	Site             string            `mapstructure:"site"`
	DateRestrict     string            `mapstructure:"date-restrict"`
	DefaultLimit     int               `mapstructure:"default-limit" validate:"gte=0,lte=10"`
	MaxLimit         int               `mapstructure:"max-limit" validate:"gte=0,lte=10"`
	ExcludeCompanies []string          `mapstructure:"exclude-companies"`
	DisabledFilters  []string          `mapstructure:"disabled-filters"`
	ParsingMethod    string            `mapstructure:"parsing-method" validate:"oneof=llm manual"`
	ParsingModel     string            `mapstructure:"parsing-model"`
	Headhunter       *HeadhunterConfig `mapstructure:"headhunter" validate:"required"`
}

type HeadhunterConfig struct {
	Token     string `mapstructure:"token" json:"-"`
	TokenFile string `mapstructure:"token-file"`
	Area      int    `mapstructure:"area" validate:"gte=0"`
	UserAgent string `mapstructure:"user-agent"`
}

type DocumentConfig struct {
	MaxSizeMB   int           `mapstructure:"max-size-mb" validate:"gte=1,lte=100"`
	TikaURL     string        `mapstructure:"tika-url" validate:"omitempty,url"`
	TikaTimeout time.Duration `mapstructure:"tika-timeout"`
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max-size-mb"`
	MaxBackups int    `mapstructure:"max-backups"`
	MaxAgeDays int    `mapstructure:"max-age-days"`
}

// Credentials are the resolved secrets needed at startup.
type Credentials struct {
	LLMKey      string
	SearchKey   string
	SearchScope string
	HHToken     string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed-origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.read-timeout", 15*time.Second)
	v.SetDefault("server.write-timeout", 120*time.Second)
	v.SetDefault("server.idle-timeout", 120*time.Second)
	v.SetDefault("server.shutdown-timeout", 30*time.Second)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.api-key", "")
	v.SetDefault("llm.api-key-file", "")
	v.SetDefault("llm.default-model", "")
	v.SetDefault("llm.max-tool-calls", orchestrator.DefaultMaxToolCalls)
	v.SetDefault("llm.max-log-length", 200)

	v.SetDefault("search.provider", searchProviderCSE)
	v.SetDefault("search.api-key", "")
	v.SetDefault("search.api-key-file", "")
	v.SetDefault("search.scope", "")
	v.SetDefault("search.site", "")
	v.SetDefault("search.date-restrict", "")
	v.SetDefault("search.default-limit", jobs.DefaultLimit)
	v.SetDefault("search.max-limit", jobs.MaxLimit)
	v.SetDefault("search.parsing-method", jobs.ParseLLM)
	v.SetDefault("search.parsing-model", "")
	v.SetDefault("search.headhunter.token", "")
	v.SetDefault("search.headhunter.token-file", "")
	v.SetDefault("search.headhunter.area", 0)
	v.SetDefault("search.headhunter.user-agent", "")

	v.SetDefault("document.max-size-mb", document.DefaultMaxSize>>20)
	v.SetDefault("document.tika-url", "")
	v.SetDefault("document.tika-timeout", 30*time.Second)

	v.SetDefault("session.ttl", 0)

	v.SetDefault("log.file", "")
	v.SetDefault("log.max-size-mb", 50)
	v.SetDefault("log.max-backups", 3)
	v.SetDefault("log.max-age-days", 14)
}

var (
	configValidatorOnce sync.Once
	configValidator     *validator.Validate
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}

	configValidatorOnce.Do(func() {
		configValidator = validator.New(validator.WithRequiredStructEnabled())
	})

	var errs []error
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s: invalid value %v (%s)", fe.Namespace(), fe.Value(), fe.Tag()))
		}
	}

	if c.LLM != nil {
		if _, err := c.ModelRegistry(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Search != nil && c.Search.DefaultLimit > 0 && c.Search.MaxLimit > 0 && c.Search.DefaultLimit > c.Search.MaxLimit {
		errs = append(errs, fmt.Errorf("search.default-limit %d exceeds search.max-limit %d", c.Search.DefaultLimit, c.Search.MaxLimit))
	}

	return errors.Join(errs...)
}

// ModelRegistry builds the model registry from the config, falling back to
// the built-in model list.
func (c *Config) ModelRegistry() (*ai.Registry, error) {
	models := append([]ai.Model(nil), c.LLM.Models...)
	if len(models) == 0 {
		models = ai.DefaultModels()
	}
	for i := range models {
		if strings.TrimSpace(models[i].Provider) == "" {
			models[i].Provider = "Google"
		}
	}
	return ai.NewRegistry(strings.TrimSpace(c.LLM.DefaultModel), models...)
}

// Credentials resolves every required secret. Missing ones are reported
// together so the operator can fix them in one go.
func (c *Config) Credentials() (*Credentials, error) {
	srcs := []secrets.Source{{
		Name:  "gemini api key",
		Value: c.LLM.APIKey,
		File:  c.LLM.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	}}

	switch c.Search.Provider {
	case searchProviderHeadhunter:
		srcs = append(srcs, secrets.Source{
			Name:  "headhunter token",
			Value: c.Search.Headhunter.Token,
			File:  c.Search.Headhunter.TokenFile,
			Env:   "HH_TOKEN",
		})
	default:
		srcs = append(srcs,
			secrets.Source{
				Name:  "custom search api key",
				Value: c.Search.APIKey,
				File:  c.Search.APIKeyFile,
				Env:   "CUSTOM_SEARCH_API_KEY",
			},
			secrets.Source{
				Name:  "search engine id",
				Value: c.Search.Scope,
				Env:   "GOOGLE_SEARCH_ENGINE_ID",
			},
		)
	}

	values, err := secrets.LoadAll(srcs...)
	if err != nil {
		return nil, err
	}

	creds := &Credentials{LLMKey: values[0]}
	if c.Search.Provider == searchProviderHeadhunter {
		creds.HHToken = values[1]
	} else {
		creds.SearchKey, creds.SearchScope = values[1], values[2]
	}
	return creds, nil
}
