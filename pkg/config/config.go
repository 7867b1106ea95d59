package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the Instagram client.
type Config struct {
	// Instagram session and identity settings
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Operation identifier chains (rotated server-side, so data not code)
	Chains ChainsConfig `yaml:"chains" json:"chains"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Publish settings
	Publish PublishConfig `yaml:"publish" json:"publish"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// InstagramConfig holds session identity configuration.
type InstagramConfig struct {
	AppID      string        `yaml:"app_id" json:"app_id"`
	UserAgents []string      `yaml:"user_agents" json:"user_agents"`
	SessionID  string        `yaml:"session_id" json:"session_id"`
	CSRFToken  string        `yaml:"csrf_token" json:"csrf_token"`
	CookieFile string        `yaml:"cookie_file" json:"cookie_file"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// ChainsConfig holds the opaque operation identifiers (graphql doc_ids) per
// operation kind. Each list is an ordered candidate chain: the first entry
// that yields a valid payload wins. Instagram rotates these without notice,
// so they are loaded from configuration rather than compiled in.
type ChainsConfig struct {
	Post           []string `yaml:"post" json:"post"`
	UserPosts      []string `yaml:"user_posts" json:"user_posts"`
	Stories        []string `yaml:"stories" json:"stories"`
	Highlights     []string `yaml:"highlights" json:"highlights"`
	HighlightItems []string `yaml:"highlight_items" json:"highlight_items"`
	Like           []string `yaml:"like" json:"like"`
	Unlike         []string `yaml:"unlike" json:"unlike"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	PageDelayMin      time.Duration `yaml:"page_delay_min" json:"page_delay_min"`
	PageDelayMax      time.Duration `yaml:"page_delay_max" json:"page_delay_max"`
	DownloadDelayMin  time.Duration `yaml:"download_delay_min" json:"download_delay_min"`
	DownloadDelayMax  time.Duration `yaml:"download_delay_max" json:"download_delay_max"`
}

// OutputConfig holds output directory configuration.
type OutputConfig struct {
	BaseDirectory     string `yaml:"base_directory" json:"base_directory"`
	CreateUserFolders bool   `yaml:"create_user_folders" json:"create_user_folders"`
	OverwriteExisting bool   `yaml:"overwrite_existing" json:"overwrite_existing"`
}

// DownloadConfig holds download-specific configuration.
type DownloadConfig struct {
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts" json:"retry_attempts"`
	MaxPosts      int           `yaml:"max_posts" json:"max_posts"`
}

// PublishConfig holds publish-side configuration.
type PublishConfig struct {
	UploadTimeout   time.Duration `yaml:"upload_timeout" json:"upload_timeout"`
	CommentCooldown time.Duration `yaml:"comment_cooldown" json:"comment_cooldown"`
	GuardCapacity   int           `yaml:"guard_capacity" json:"guard_capacity"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults, including
// the doc_id chains known to work at the time of writing.
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			AppID: "936619743392459",
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
			},
			CookieFile: "cookies.json",
			Timeout:    15 * time.Second,
		},
		Chains: ChainsConfig{
			Post: []string{
				"8845758582119845",
				"7950326061742207",
				"9830740690327183",
				"9935000046557399",
				"10015901848480474",
				"23907016675582737",
				"24141963108832236",
				"24319041294395440",
				"29588494114099064",
				"29789987647283145",
				"29645355751775862",
			},
			UserPosts: []string{
				"9310670392322965",
				"17862778007156914",
				"17880305679164675",
				"17885113105037631",
			},
			Stories: []string{
				"25317500907894419",
				"17890626976041463",
				"17859317138994014",
				"17945255025108868",
			},
			Highlights: []string{
				"17864450716183058",
				"17965172502067288",
				"17913930445236500",
				"17862894953138603",
			},
			HighlightItems: []string{"25147404345163462"},
			Like:           []string{"23951234354462179"},
			Unlike:         []string{"9624975597538585"},
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			PageDelayMin:      2 * time.Second,
			PageDelayMax:      4 * time.Second,
			DownloadDelayMin:  500 * time.Millisecond,
			DownloadDelayMax:  1500 * time.Millisecond,
		},
		Output: OutputConfig{
			BaseDirectory:     "./downloads",
			CreateUserFolders: true,
			OverwriteExisting: false,
		},
		Download: DownloadConfig{
			Timeout:       30 * time.Second,
			RetryAttempts: 3,
			MaxPosts:      50,
		},
		Publish: PublishConfig{
			UploadTimeout:   120 * time.Second,
			CommentCooldown: 30 * time.Second,
			GuardCapacity:   256,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() error {
	if sessionID := os.Getenv("IGCLIENT_SESSION_ID"); sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if csrfToken := os.Getenv("IGCLIENT_CSRF_TOKEN"); csrfToken != "" {
		c.Instagram.CSRFToken = csrfToken
	}
	if cookieFile := os.Getenv("IGCLIENT_COOKIE_FILE"); cookieFile != "" {
		c.Instagram.CookieFile = cookieFile
	}
	if outputDir := os.Getenv("IGCLIENT_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if rpm := os.Getenv("IGCLIENT_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if logLevel := os.Getenv("IGCLIENT_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".igclient.yaml",
		".igclient.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "igclient", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "igclient", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".igclient.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Instagram.UserAgents) == 0 {
		errs = append(errs, errors.New("at least one user agent is required"))
	}
	if c.Instagram.AppID == "" {
		errs = append(errs, errors.New("app id is required"))
	}
	if len(c.Chains.Post) == 0 {
		errs = append(errs, errors.New("post identifier chain is empty"))
	}
	if len(c.Chains.UserPosts) == 0 {
		errs = append(errs, errors.New("user posts identifier chain is empty"))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.PageDelayMax < c.RateLimit.PageDelayMin {
		errs = append(errs, errors.New("page delay max must not be below min"))
	}
	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Publish.CommentCooldown <= 0 {
		errs = append(errs, errors.New("comment cooldown must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if sessionID, ok := flags["session-id"].(string); ok && sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if csrfToken, ok := flags["csrf-token"].(string); ok && csrfToken != "" {
		c.Instagram.CSRFToken = csrfToken
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if cookieFile, ok := flags["cookie-file"].(string); ok && cookieFile != "" {
		c.Instagram.CookieFile = cookieFile
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment variables > .env file > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igclient.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
