package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variable overrides. A double
// underscore separates nesting levels, e.g. GARMINSYNC_GARMIN__TOKEN_FILE
// overrides garmin.token_file.
const EnvPrefix = "GARMINSYNC_"

// Config holds all application configuration
type Config struct {
	// Query API server
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// Metrics server
	MetricsEnabled bool   `koanf:"metrics_enabled"`
	MetricsHost    string `koanf:"metrics_host"`
	MetricsPort    int    `koanf:"metrics_port"`

	// Storage
	DatabasePath string `koanf:"database_path"`
	DataDir      string `koanf:"data_dir"`

	LogLevel string `koanf:"log_level"`

	Garmin   GarminConfig   `koanf:"garmin"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Calendar Calendar       `koanf:"calendar"`
}

// GarminConfig configures the vendor fetch service client
type GarminConfig struct {
	BaseURL string `koanf:"base_url"`
	// TokenFile points at a file containing the Garmin session token.
	// Obtaining the token (login, cookies) happens outside this program.
	TokenFile string `koanf:"token_file"`
	// RequestDelayMS is the fixed pause between vendor requests, to stay
	// under the vendor's informal rate limits.
	RequestDelayMS int `koanf:"request_delay_ms"`
	TimeoutSeconds int `koanf:"timeout_seconds"`
}

// PipelineConfig configures the weekly batch extractor
type PipelineConfig struct {
	// EpochStart is the first Monday with any data; it is the default
	// backfill start date.
	EpochStart string `koanf:"epoch_start"`
	// FetchExports controls whether per-activity binary exports
	// (gpx/tcx/lap csv) are downloaded alongside the detail blob.
	FetchExports bool `koanf:"fetch_exports"`
}

// Calendar is the declarative training calendar. Block and season date
// ranges cover whole days, inclusive of both endpoints.
type Calendar struct {
	TrainingBlocks []TrainingBlock `koanf:"training_blocks"`
	Seasons        []Season        `koanf:"seasons"`
}

// TrainingBlock is one named race-preparation window
type TrainingBlock struct {
	Name     string `koanf:"name"`
	Distance string `koanf:"distance"`
	Start    string `koanf:"start"` // 2006-01-02
	End      string `koanf:"end"`
}

// Season is one in-season date range; activities outside every season
// are flagged off-season
type Season struct {
	Start string `koanf:"start"`
	End   string `koanf:"end"`
}

func defaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           4210,
		MetricsEnabled: false,
		MetricsHost:    "localhost",
		MetricsPort:    9090,
		DatabasePath:   "./activities.db",
		DataDir:        "./data",
		LogLevel:       "info",
		Garmin: GarminConfig{
			BaseURL:        "https://connectapi.garmin.com",
			TokenFile:      "./garmin_token",
			RequestDelayMS: 500,
			TimeoutSeconds: 30,
		},
		Pipeline: PipelineConfig{
			EpochStart:   "2022-05-09",
			FetchExports: true,
		},
		Calendar: defaultCalendar(),
	}
}

// defaultCalendar ships the known training history so the binary works
// without a config file; a calendar section in the file replaces it
// wholesale.
func defaultCalendar() Calendar {
	return Calendar{
		TrainingBlocks: []TrainingBlock{
			{Name: "Magog 2022", Distance: "Olympic", Start: "2022-05-02", End: "2022-07-15"},
			{Name: "Esprint Montréal 2022", Distance: "Olympic", Start: "2022-05-02", End: "2022-09-09"},
			{Name: "Magog 2023", Distance: "Olympic", Start: "2023-01-06", End: "2023-07-14"},
			{Name: "Mont Tremblant 2023", Distance: "70.3", Start: "2023-01-06", End: "2023-08-19"},
			{Name: "Esprint Montréal 2023", Distance: "Sprint", Start: "2023-01-06", End: "2023-09-09"},
			{Name: "Mont Tremblant 2024", Distance: "Olympic", Start: "2023-01-06", End: "2024-06-21"},
			{Name: "Vitoria Gasteiz 2024", Distance: "140.6", Start: "2023-12-04", End: "2024-07-13"},
			{Name: "Santa Cruz 2025", Distance: "70.3", Start: "2024-12-30", End: "2025-09-06"},
			{Name: "Cervia 2025", Distance: "70.3", Start: "2024-12-30", End: "2025-09-20"},
		},
		Seasons: []Season{
			{Start: "2022-05-02", End: "2022-09-10"},
			{Start: "2023-01-06", End: "2023-09-10"},
			{Start: "2023-12-04", End: "2024-07-14"},
			{Start: "2024-12-30", End: "2025-09-21"},
		},
	}
}

// Load reads configuration in three layers: defaults, then the YAML file
// at path (a missing explicit path is an error; the default path is
// optional), then environment variables. It fails fast on malformed input.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) validate() error {
	var problems []string

	if c.DatabasePath == "" {
		problems = append(problems, "database_path must not be empty")
	}
	if c.DataDir == "" {
		problems = append(problems, "data_dir must not be empty")
	}
	if c.Garmin.BaseURL == "" {
		problems = append(problems, "garmin.base_url must not be empty")
	}
	if c.Pipeline.EpochStart == "" {
		problems = append(problems, "pipeline.epoch_start must not be empty")
	}
	for i, b := range c.Calendar.TrainingBlocks {
		if b.Name == "" {
			problems = append(problems, fmt.Sprintf("calendar.training_blocks[%d]: name must not be empty", i))
		}
		if b.Start == "" || b.End == "" {
			problems = append(problems, fmt.Sprintf("calendar.training_blocks[%d]: start and end are required", i))
		}
	}
	for i, s := range c.Calendar.Seasons {
		if s.Start == "" || s.End == "" {
			problems = append(problems, fmt.Sprintf("calendar.seasons[%d]: start and end are required", i))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
