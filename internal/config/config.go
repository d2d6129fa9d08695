// Package config provides configuration management for the application.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/miaou/internal/constants"
	apperrors "github.com/amaumene/miaou/internal/errors"
	"github.com/amaumene/miaou/pkg/security"
)

const (
	// Default configuration file name
	defaultConfigFile = "config.json"
	// Default directory of the magnet ledger
	defaultDatabaseDir = "."
)

// SeriesPriority orders the three series categories during selection.
type SeriesPriority string

const (
	// PriorityBroadest takes complete series, then seasons, then episodes.
	PriorityBroadest SeriesPriority = "broadest"
	// PrioritySpecific takes episodes, then seasons, then complete series.
	PrioritySpecific SeriesPriority = "specific"
)

// ParseSeriesPriority accepts the policy names and a few aliases.
func ParseSeriesPriority(s string) (SeriesPriority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "broadest", "series", "series-first":
		return PriorityBroadest, true
	case "specific", "episode", "episode-first":
		return PrioritySpecific, true
	}
	return "", false
}

// Config holds the application configuration.
// The server instance is loaded from the environment and an optional JSON
// file; each request derives its own copy through CreateFromUserData.
type Config struct {
	// API Keys
	TMDBAPIKey       string `json:"TMDB_API_KEY"`
	APIKeyAllDebrid  string `json:"API_KEY_ALLDEBRID"`
	SharewoodPasskey string `json:"SHAREWOOD_PASSKEY"`
	AccessKey        string `json:"ACCESS_KEY"`

	// Content filtering, ordered by preference
	ResToShow    []string `json:"RES_TO_SHOW"`
	LangToShow   []string `json:"LANG_TO_SHOW"`
	CodecsToShow []string `json:"CODECS_TO_SHOW"`

	FilesToShow    int            `json:"FILES_TO_SHOW"`
	Names          []string       `json:"NAMES"`
	SeriesPriority SeriesPriority `json:"SERIES_PRIORITY"`

	// Catalog id to extra search keywords
	CustomSearchKeywords map[string]string `json:"CUSTOM_SEARCH_KEYWORDS"`

	// Server settings
	Port           string `json:"PORT"`
	LogLevel       string `json:"LOG_LEVEL"`
	LogFile        string `json:"LOG_FILE"`
	DatabaseDir    string `json:"DATABASE_DIR"`
	CacheSize      int    `json:"CACHE_SIZE"`
	RetentionHours int    `json:"RETENTION_HOURS"`
}

// Load reads configuration from environment variables and optional JSON file.
// File values override the environment.
// Returns an error if the configuration is invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvOrDefault("PORT", constants.DefaultPort),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", constants.DefaultLogLevel),
		DatabaseDir: getEnvOrDefault("DATABASE_DIR", defaultDatabaseDir),
		CacheSize:   constants.DefaultCacheSize,
	}

	cfg.loadFromEnv()

	configFile := getEnvOrDefault("CONFIG_FILE", defaultConfigFile)
	if err := cfg.loadFromFile(configFile); err != nil {
		// Ignore file not found errors
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	c.TMDBAPIKey = os.Getenv("TMDB_API_KEY")
	c.APIKeyAllDebrid = os.Getenv("API_KEY_ALLDEBRID")
	c.SharewoodPasskey = os.Getenv("SHAREWOOD_PASSKEY")
	c.AccessKey = os.Getenv("ACCESS_KEY")
	c.LogFile = os.Getenv("LOG_FILE")

	if v := os.Getenv("RES_TO_SHOW"); v != "" {
		c.ResToShow = splitList(v)
	}
	if v := os.Getenv("LANG_TO_SHOW"); v != "" {
		c.LangToShow = splitList(v)
	}
	if v := os.Getenv("CODECS_TO_SHOW"); v != "" {
		c.CodecsToShow = splitList(v)
	}
	if v := os.Getenv("NAMES"); v != "" {
		c.Names = splitList(v)
	}
	if v := os.Getenv("CUSTOM_SEARCH_KEYWORDS"); v != "" {
		c.CustomSearchKeywords = ParseCustomKeywords(v)
	}
	if v, err := strconv.Atoi(os.Getenv("FILES_TO_SHOW")); err == nil {
		c.FilesToShow = v
	}
	if v, err := strconv.Atoi(os.Getenv("RETENTION_HOURS")); err == nil {
		c.RetentionHours = v
	}
	if v, err := strconv.Atoi(os.Getenv("CACHE_SIZE")); err == nil {
		c.CacheSize = v
	}
	if p, ok := ParseSeriesPriority(os.Getenv("SERIES_PRIORITY")); ok {
		c.SeriesPriority = p
	}
}

// loadFromFile loads configuration from a JSON file.
func (c *Config) loadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, c)
}

// Validate checks if the configuration is valid.
// Sets default values for missing optional fields.
func (c *Config) Validate() error {
	if len(c.ResToShow) == 0 {
		c.ResToShow = append([]string{}, constants.DefaultResolutions...)
	}
	if len(c.LangToShow) == 0 {
		c.LangToShow = append([]string{}, constants.DefaultLanguages...)
	}
	if len(c.CodecsToShow) == 0 {
		c.CodecsToShow = append([]string{}, constants.DefaultCodecs...)
	}
	if c.FilesToShow <= 0 {
		c.FilesToShow = constants.DefaultFilesToShow
	}
	if c.SeriesPriority == "" {
		c.SeriesPriority = PriorityBroadest
	}
	if _, ok := ParseSeriesPriority(string(c.SeriesPriority)); !ok {
		return fmt.Errorf("unknown SERIES_PRIORITY %q", c.SeriesPriority)
	}
	if c.RetentionHours < 0 {
		return fmt.Errorf("RETENTION_HOURS must not be negative")
	}
	if c.CacheSize <= 0 {
		c.CacheSize = constants.DefaultCacheSize
	}
	return nil
}

// RequireAPIKeys reports whether the keys needed to resolve streams are set.
func (c *Config) RequireAPIKeys() error {
	var missing []string
	if c.TMDBAPIKey == "" {
		missing = append(missing, "TMDB_API_KEY")
	}
	if c.APIKeyAllDebrid == "" {
		missing = append(missing, "API_KEY_ALLDEBRID")
	}
	if len(missing) > 0 {
		return apperrors.NewAPIKeyMissingError(strings.Join(missing, ", "))
	}
	return nil
}

// RetentionPeriod is how long uploaded magnets are kept before cleanup.
func (c *Config) RetentionPeriod() time.Duration {
	if c.RetentionHours <= 0 {
		return constants.DefaultRetentionPeriod
	}
	return time.Duration(c.RetentionHours) * time.Hour
}

// CreateFromUserData creates a config from user-provided data and existing config.
// User data takes precedence over base config values. The server access key
// is never inherited: the returned AccessKey is the one the user supplied.
func CreateFromUserData(userConfig map[string]interface{}, baseConfig *Config) *Config {
	cfg := &Config{}

	if baseConfig != nil {
		cfg.copyFrom(baseConfig)
	}
	cfg.AccessKey = ""

	cfg.applyUserConfig(userConfig)

	if err := cfg.Validate(); err != nil {
		cfg.SeriesPriority = PriorityBroadest
	}

	return cfg
}

// copyFrom copies all fields from another config.
func (c *Config) copyFrom(src *Config) {
	*c = *src
	c.ResToShow = append([]string{}, src.ResToShow...)
	c.LangToShow = append([]string{}, src.LangToShow...)
	c.CodecsToShow = append([]string{}, src.CodecsToShow...)
	c.Names = append([]string{}, src.Names...)
	if src.CustomSearchKeywords != nil {
		c.CustomSearchKeywords = make(map[string]string, len(src.CustomSearchKeywords))
		for k, v := range src.CustomSearchKeywords {
			c.CustomSearchKeywords[k] = v
		}
	}
}

// applyUserConfig applies user-provided configuration overrides.
func (c *Config) applyUserConfig(userConfig map[string]interface{}) {
	validator := security.NewAPIKeyValidator()

	if list, ok := stringList(userConfig["RES_TO_SHOW"]); ok {
		c.ResToShow = list
	}
	if list, ok := stringList(userConfig["LANG_TO_SHOW"]); ok {
		c.LangToShow = list
	}
	if list, ok := stringList(userConfig["CODECS_TO_SHOW"]); ok {
		c.CodecsToShow = list
	}
	if list, ok := stringList(userConfig["NAMES"]); ok {
		c.Names = list
	}

	if str, ok := userConfig["TMDB_API_KEY"].(string); ok && str != "" {
		c.TMDBAPIKey = validator.SanitizeAPIKey(str)
	}
	if str, ok := userConfig["API_KEY_ALLDEBRID"].(string); ok && str != "" {
		c.APIKeyAllDebrid = validator.SanitizeAPIKey(str)
	}
	if str, ok := userConfig["SHAREWOOD_PASSKEY"].(string); ok && str != "" {
		c.SharewoodPasskey = validator.SanitizeAPIKey(str)
	}
	if str, ok := userConfig["ACCESS_KEY"].(string); ok {
		c.AccessKey = strings.TrimSpace(str)
	}

	if n, ok := intValue(userConfig["FILES_TO_SHOW"]); ok && n > 0 {
		c.FilesToShow = n
	}
	if str, ok := userConfig["SERIES_PRIORITY"].(string); ok {
		if p, ok := ParseSeriesPriority(str); ok {
			c.SeriesPriority = p
		}
	}

	switch v := userConfig["CUSTOM_SEARCH_KEYWORDS"].(type) {
	case string:
		c.mergeKeywords(ParseCustomKeywords(v))
	case map[string]interface{}:
		kw := make(map[string]string, len(v))
		for id, words := range v {
			if s, ok := words.(string); ok {
				kw[id] = s
			}
		}
		c.mergeKeywords(kw)
	}
}

func (c *Config) mergeKeywords(kw map[string]string) {
	if len(kw) == 0 {
		return
	}
	if c.CustomSearchKeywords == nil {
		c.CustomSearchKeywords = make(map[string]string, len(kw))
	}
	for id, words := range kw {
		c.CustomSearchKeywords[id] = words
	}
}

// KeywordsFor returns the extra search keywords configured for catalogID.
func (c *Config) KeywordsFor(catalogID string) string {
	return c.CustomSearchKeywords[catalogID]
}

// ParseCustomKeywords reads "tt123=word word,tt456=other" into a map.
// Malformed pairs are skipped.
func ParseCustomKeywords(s string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		id, words, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		id = strings.TrimSpace(id)
		words = strings.TrimSpace(words)
		if id == "" || words == "" {
			continue
		}
		result[id] = words
	}
	return result
}

// stringList accepts a JSON array of strings or a comma separated string.
func stringList(val interface{}) ([]string, bool) {
	switch v := val.(type) {
	case []interface{}:
		return convertToStringSlice(v), true
	case []string:
		return append([]string{}, v...), true
	case string:
		return splitList(v), true
	}
	return nil, false
}

// convertToStringSlice converts interface slice to string slice.
func convertToStringSlice(arr []interface{}) []string {
	result := make([]string, 0, len(arr))
	for _, v := range arr {
		if str, ok := v.(string); ok {
			if str = strings.TrimSpace(str); str != "" {
				result = append(result, str)
			}
		}
	}
	return result
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

func intValue(val interface{}) (int, bool) {
	switch v := val.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

// getEnvOrDefault returns environment variable value or default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
