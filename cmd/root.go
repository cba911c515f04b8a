package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "career-agent"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "career-agent is a chat assistant that analyzes résumés and searches for matching jobs",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is career-agent.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
	if err := bindEnv(viper.GetViper()); err != nil {
		log.Fatalf("binding environment variables: %v", err)
	}
}

func initConfig() {
	// A missing .env file is fine, credentials may come from the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless it was given explicitly.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

// bindEnv maps the well-known credential variables and lets every other key
// be overridden with CAREER_AGENT_<SECTION>_<KEY>.
func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("CAREER_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindings := map[string][]string{
		"llm.api-key":                  {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"llm.api-key-file":             {"GEMINI_API_KEY_FILE"},
		"search.api-key":               {"CUSTOM_SEARCH_API_KEY"},
		"search.api-key-file":          {"CUSTOM_SEARCH_API_KEY_FILE"},
		"search.scope":                 {"GOOGLE_SEARCH_ENGINE_ID"},
		"search.headhunter.token-file": {"HH_TOKEN_FILE"},
		"document.tika-url":            {"TIKA_URL"},
		"server.addr":                  {"CAREER_AGENT_ADDR"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
