package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "jobscout"
)

type Config struct {
	// Database is the PostgreSQL DSN.
	Database string `mapstructure:"database"`
	// Redis is the optional redis address for budget checkpoints.
	Redis string `mapstructure:"redis"`
	// MinScore is the floor for digests and the review command.
	MinScore int    `mapstructure:"min-score"`
	Schedule string `mapstructure:"schedule"`
	// Keywords extend the built-in query grids of the searchable sources.
	Keywords []string `mapstructure:"keywords"`

	Profile *ProfileConfig `mapstructure:"profile"`
	Sources *SourcesConfig `mapstructure:"sources"`
}

type ProfileConfig struct {
	// File is the YAML file with skills, seniority markers and company tiers.
	File string `mapstructure:"file"`
	// SponsorshipCSV is the H-1B approvals export.
	SponsorshipCSV string `mapstructure:"sponsorship-csv"`
}

type SourcesConfig struct {
	// LeverCompanies is the roster scraped through the Lever postings API.
	LeverCompanies []string `mapstructure:"lever-companies"`

	Adzuna     *AdzunaConfig     `mapstructure:"adzuna"`
	SerpAPI    *SerpAPIConfig    `mapstructure:"serpapi"`
	ActiveJobs *ActiveJobsConfig `mapstructure:"active-jobs"`
}

type AdzunaConfig struct {
	AppID      string `mapstructure:"app-id"`
	AppKeyFile string `mapstructure:"app-key-file"`
}

type SerpAPIConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
}

type ActiveJobsConfig struct {
	Keys []ActiveJobsKey `mapstructure:"keys"`
}

type ActiveJobsKey struct {
	Name    string `mapstructure:"name"`
	KeyFile string `mapstructure:"key-file"`
	Quota   int    `mapstructure:"quota"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobscout aggregates, scores and tracks new grad software job postings",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("database", "DATABASE_URL"); err != nil {
		log.Fatalf("binding DATABASE_URL environment variable: %v", err)
	}
	if err := viper.BindEnv("redis", "REDIS_ADDR"); err != nil {
		log.Fatalf("binding REDIS_ADDR environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobscout.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed by run, serve and review only.
	if runCmd.CalledAs() == "" && serveCmd.CalledAs() == "" && reviewCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
