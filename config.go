package main

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigDir = ".market-poster"

//go:embed config/settings.yaml
var defaultSettings string

// ConfigOverrides allows overriding embedded defaults with file paths
type ConfigOverrides struct {
	SettingsPath *string
}

// ConfigError is a fatal initialization error: a required identifier,
// token or setting is missing or invalid
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

func missing(field string) error {
	return &ConfigError{Field: field, Reason: "is required"}
}

// LanguageSettings describes one language variant of a news post
type LanguageSettings struct {
	Name      string `yaml:"name"`
	Code      string `yaml:"code"`
	Template  string `yaml:"template"`
	Translate bool   `yaml:"translate"`
}

// GraphSettings configures one Graph API host
type GraphSettings struct {
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"`
	Timeout    string `yaml:"timeout"`
}

// Settings represents the YAML configuration structure
type Settings struct {
	Feeds []string `yaml:"feeds"`
	Feed  struct {
		PerFeed      int    `yaml:"per_feed"`
		MaxItems     int    `yaml:"max_items"`
		SummaryLimit int    `yaml:"summary_limit"`
		Timeout      string `yaml:"timeout"`
	} `yaml:"feed"`
	Post struct {
		TitleLimit int `yaml:"title_limit"`
	} `yaml:"post"`
	Languages   []LanguageSettings `yaml:"languages"`
	Templates   map[string]string  `yaml:"templates"`
	Translation struct {
		Provider  string `yaml:"provider"`
		Endpoint  string `yaml:"endpoint"`
		LangPair  string `yaml:"langpair"`
		Timeout   string `yaml:"timeout"`
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"max_tokens"`
	} `yaml:"translation"`
	Facebook  GraphSettings `yaml:"facebook"`
	Instagram struct {
		GraphSettings `yaml:",inline"`
		ImageURL      string `yaml:"image_url"`
		Caption       string `yaml:"caption"`
		Language      string `yaml:"language"`
	} `yaml:"instagram"`
	Graph struct {
		MinInterval string `yaml:"min_interval"`
	} `yaml:"graph"`
	Sheets struct {
		Range            string `yaml:"range"`
		ValueInputOption string `yaml:"value_input_option"`
	} `yaml:"sheets"`
}

// FeedTimeout bounds a single feed fetch
func (s *Settings) FeedTimeout() time.Duration {
	return parseDuration(s.Feed.Timeout, 15*time.Second)
}

// TranslationTimeout bounds a single translation call
func (s *Settings) TranslationTimeout() time.Duration {
	return parseDuration(s.Translation.Timeout, 5*time.Second)
}

// MinGraphInterval is the minimum spacing between consecutive Graph API
// calls. "0" disables spacing.
func (s *Settings) MinGraphInterval() time.Duration {
	if d, err := time.ParseDuration(s.Graph.MinInterval); err == nil && d >= 0 {
		return d
	}
	return time.Second
}

// RequestTimeout returns the request timeout for this Graph host
func (g GraphSettings) RequestTimeout(fallback time.Duration) time.Duration {
	return parseDuration(g.Timeout, fallback)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// applyEnv applies the environment overrides the Instagram workflow honours
func (s *Settings) applyEnv(getenv func(string) string) {
	if v := getenv("GRAPH_API_VERSION"); v != "" {
		s.Instagram.APIVersion = v
	}
	if v := getenv("REQUEST_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			s.Instagram.Timeout = (time.Duration(secs) * time.Second).String()
		} else {
			log.Printf("Warning: REQUEST_TIMEOUT %q is not a positive number of seconds, ignoring", v)
		}
	}
}

// validate checks settings that would otherwise fail at publish time
func (s *Settings) validate() error {
	if s.Post.TitleLimit <= 0 {
		return &ConfigError{Field: "post.title_limit", Reason: "must be positive"}
	}
	for _, lang := range s.Languages {
		if lang.Name == "" {
			return missing("languages[].name")
		}
		if _, ok := s.Templates[lang.Template]; !ok {
			return &ConfigError{Field: "templates." + lang.Template, Reason: "is not defined for language " + lang.Name}
		}
	}
	return nil
}

// Credentials holds identifiers and tokens read from the environment once at startup
type Credentials struct {
	FacebookPageID        string
	FacebookPageToken     string
	InstagramAccountID    string
	InstagramToken        string
	GoogleSheetsID        string
	GoogleCredentialsJSON string
	AnthropicAPIKey       string
}

// LoadCredentials reads credentials from the process environment
func LoadCredentials(getenv func(string) string) Credentials {
	return Credentials{
		FacebookPageID:        getenv("FACEBOOK_PAGE_ID"),
		FacebookPageToken:     getenv("FACEBOOK_PAGE_TOKEN"),
		InstagramAccountID:    getenv("INSTAGRAM_BUSINESS_ACCOUNT_ID"),
		InstagramToken:        getenv("INSTAGRAM_PAGE_ACCESS_TOKEN"),
		GoogleSheetsID:        getenv("GOOGLE_SHEETS_ID"),
		GoogleCredentialsJSON: getenv("GOOGLE_CREDENTIALS_JSON"),
		AnthropicAPIKey:       getenv("ANTHROPIC_API_KEY"),
	}
}

// String never prints tokens or the credential blob
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{FacebookPageID: %q, InstagramAccountID: %q, GoogleSheetsID: %q, tokens: redacted}",
		c.FacebookPageID, c.InstagramAccountID, c.GoogleSheetsID)
}

// LoadSettings loads settings, honouring an explicit settings path override
func LoadSettings(overrides *ConfigOverrides) (*Settings, error) {
	var settings *Settings
	var err error
	if overrides != nil && overrides.SettingsPath != nil {
		// Explicit settings file must exist
		settings, err = loadSettingsRequired(*overrides.SettingsPath)
	} else {
		if err := ensureConfigExists(); err != nil {
			return nil, fmt.Errorf("ensuring config files exist: %w", err)
		}
		settings, err = loadSettings(filepath.Join(defaultConfigDir, "settings.yaml"))
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	settings.applyEnv(os.Getenv)
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// parseSettings decodes YAML on top of the embedded defaults so a partial
// file only overrides what it names
func parseSettings(data []byte) (*Settings, error) {
	var settings Settings
	if err := yaml.Unmarshal([]byte(defaultSettings), &settings); err != nil {
		return nil, fmt.Errorf("parsing embedded settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}
	return &settings, nil
}

// loadSettings loads settings from YAML file with fallback to defaults
func loadSettings(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return parseSettings(nil)
		}
		return nil, fmt.Errorf("reading settings file %s: %w", settingsPath, err)
	}
	return parseSettings(data)
}

// loadSettingsRequired loads settings from YAML file, failing if file doesn't exist
func loadSettingsRequired(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("reading settings file %s: %w", settingsPath, err)
	}
	return parseSettings(data)
}

// ensureConfigExists creates the config directory and writes settings.yaml if needed
func ensureConfigExists() error {
	if err := os.MkdirAll(defaultConfigDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	settingsFile := filepath.Join(defaultConfigDir, "settings.yaml")
	if _, err := os.Stat(settingsFile); os.IsNotExist(err) {
		if err := os.WriteFile(settingsFile, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("writing settings.yaml: %w", err)
		}
	}
	return nil
}
