package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix shared by every environment variable the monitor reads
const EnvPrefix = "IGMONITOR_"

// Undated post policies
const (
	UndatedExclude = "exclude"
	UndatedKeep    = "keep"
)

// Config holds all configuration options for the Instagram monitor
type Config struct {
	// Browser connection
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Instagram scanning
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Report output
	Report ReportConfig `yaml:"report" json:"report"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Seen-post ledger
	Ledger LedgerConfig `yaml:"ledger" json:"ledger"`

	// Watch mode schedule
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
}

// BrowserConfig holds the DevTools connection parameters
type BrowserConfig struct {
	ExecPath            string        `yaml:"exec_path" json:"exec_path" env:"IGMONITOR_BROWSER_PATH" env-description:"browser executable used when launching"`
	UserDataDir         string        `yaml:"user_data_dir" json:"user_data_dir" env:"IGMONITOR_BROWSER_USER_DATA_DIR" env-description:"browser user-data directory holding the logged-in profile"`
	ProfileDir          string        `yaml:"profile_dir" json:"profile_dir" env:"IGMONITOR_BROWSER_PROFILE_DIR" env-description:"profile directory inside the user-data directory"`
	Host                string        `yaml:"host" json:"host" env:"IGMONITOR_BROWSER_HOST" env-description:"remote-debugging host"`
	Port                int           `yaml:"port" json:"port" env:"IGMONITOR_BROWSER_PORT" env-description:"remote-debugging port"`
	Scheme              string        `yaml:"scheme" json:"scheme" env:"IGMONITOR_BROWSER_SCHEME" env-description:"scheme of the remote-debugging endpoint"`
	LaunchIfUnavailable bool          `yaml:"launch_if_unavailable" json:"launch_if_unavailable" env:"IGMONITOR_BROWSER_LAUNCH" env-description:"launch a local browser when attaching fails"`
	KillExisting        bool          `yaml:"kill_existing" json:"kill_existing" env:"IGMONITOR_BROWSER_KILL_EXISTING" env-description:"stop running browser processes before launching"`
	Headless            bool          `yaml:"headless" json:"headless" env:"IGMONITOR_BROWSER_HEADLESS" env-description:"launch the browser without a window"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout" json:"connect_timeout" env:"IGMONITOR_BROWSER_CONNECT_TIMEOUT" env-description:"time allowed to attach or launch"`
	LoadDelay           time.Duration `yaml:"load_delay" json:"load_delay" env:"IGMONITOR_BROWSER_LOAD_DELAY" env-description:"wait after launching before connecting"`
	StartURL            string        `yaml:"start_url" json:"start_url" env:"IGMONITOR_BROWSER_START_URL" env-description:"page opened by a freshly launched browser"`
}

// InstagramConfig holds the scanning parameters
type InstagramConfig struct {
	BaseURL            string        `yaml:"base_url" json:"base_url" env:"IGMONITOR_INSTAGRAM_URL" env-description:"base site URL"`
	Accounts           []string      `yaml:"accounts" json:"accounts" env:"IGMONITOR_ACCOUNTS" env-separator:"," env-description:"comma separated account handles"`
	MaxPostsPerAccount int           `yaml:"max_posts_per_account" json:"max_posts_per_account" env:"IGMONITOR_MAX_POSTS_PER_ACCOUNT" env-description:"posts inspected per account"`
	LoadTimeout        time.Duration `yaml:"load_timeout" json:"load_timeout" env:"IGMONITOR_POST_LOAD_TIMEOUT" env-description:"page load timeout"`
	PostDelay          time.Duration `yaml:"post_delay" json:"post_delay" env:"IGMONITOR_POST_DELAY" env-description:"minimum delay between page loads"`
	AccountDelay       time.Duration `yaml:"account_delay" json:"account_delay" env:"IGMONITOR_ACCOUNT_DELAY" env-description:"extra delay between accounts"`
	NavigationAttempts int           `yaml:"navigation_attempts" json:"navigation_attempts" env:"IGMONITOR_NAVIGATION_ATTEMPTS" env-description:"attempts per page load"`
	ScrollSteps        int           `yaml:"scroll_steps" json:"scroll_steps" env:"IGMONITOR_SCROLL_STEPS" env-description:"profile grid scroll steps"`
	ScrollPause        time.Duration `yaml:"scroll_pause" json:"scroll_pause" env:"IGMONITOR_SCROLL_PAUSE" env-description:"pause between scroll steps"`
	MaxOldStreak       int           `yaml:"max_old_streak" json:"max_old_streak" env:"IGMONITOR_MAX_OLD_STREAK" env-description:"stop an account after this many consecutive old posts (0 disables)"`
}

// ReportConfig holds report rendering and output settings
type ReportConfig struct {
	OutputDir     string `yaml:"output_dir" json:"output_dir" env:"IGMONITOR_OUTPUT_DIR" env-description:"report output directory"`
	TemplatePath  string `yaml:"template_path" json:"template_path" env:"IGMONITOR_TEMPLATE_PATH" env-description:"custom HTML template (empty uses the built-in one)"`
	Timezone      string `yaml:"timezone" json:"timezone" env:"IGMONITOR_TIMEZONE" env-description:"IANA zone or +HH:MM offset for post dates"`
	MaxAgeDays    int    `yaml:"max_age_days" json:"max_age_days" env:"IGMONITOR_MAX_AGE_DAYS" env-description:"age window in days"`
	UndatedPolicy string `yaml:"undated_policy" json:"undated_policy" env:"IGMONITOR_UNDATED_POLICY" env-description:"exclude or keep posts without a timestamp"`
	OpenReport    bool   `yaml:"open_report" json:"open_report" env:"IGMONITOR_OPEN_REPORT" env-description:"open the report when the run finishes"`
	WriteJSON     bool   `yaml:"write_json" json:"write_json" env:"IGMONITOR_WRITE_JSON" env-description:"write a JSON sidecar next to the report"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" env:"IGMONITOR_LOG_LEVEL" env-description:"log level"`
	Dir   string `yaml:"dir" json:"dir" env:"IGMONITOR_LOG_DIR" env-description:"directory for per-run log files (empty disables)"`
	File  string `yaml:"file" json:"file" env:"IGMONITOR_LOG_FILE" env-description:"explicit log file path, overrides dir"`
}

// LedgerConfig holds the seen-post ledger settings
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"IGMONITOR_LEDGER_ENABLED" env-description:"hide posts reported by earlier runs"`
	Path    string `yaml:"path" json:"path" env:"IGMONITOR_LEDGER_PATH" env-description:"ledger file (empty uses the data directory)"`
}

// ScheduleConfig holds watch mode settings
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval" json:"interval" env:"IGMONITOR_SCHEDULE_INTERVAL" env-description:"interval between watch runs"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			ProfileDir:          "Default",
			Host:                "localhost",
			Port:                9222,
			Scheme:              "http",
			LaunchIfUnavailable: true,
			KillExisting:        false,
			Headless:            false,
			ConnectTimeout:      30 * time.Second,
			LoadDelay:           5 * time.Second,
			StartURL:            "https://www.instagram.com/",
		},
		Instagram: InstagramConfig{
			BaseURL:            "https://www.instagram.com/",
			Accounts:           []string{},
			MaxPostsPerAccount: 3,
			LoadTimeout:        20 * time.Second,
			PostDelay:          1500 * time.Millisecond,
			AccountDelay:       3 * time.Second,
			NavigationAttempts: 3,
			ScrollSteps:        10,
			ScrollPause:        350 * time.Millisecond,
			MaxOldStreak:       3,
		},
		Report: ReportConfig{
			OutputDir:     defaultOutputDir(),
			Timezone:      "Europe/Madrid",
			MaxAgeDays:    3,
			UndatedPolicy: UndatedExclude,
			OpenReport:    true,
			WriteJSON:     false,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   defaultOutputDir(),
		},
		Ledger: LedgerConfig{
			Enabled: false,
		},
		Schedule: ScheduleConfig{
			Interval: 6 * time.Hour,
		},
	}
}

func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./ig_helper"
	}
	return filepath.Join(home, "Desktop", "ig_helper")
}

// LoadFromEnv overlays environment variables (including values from .env files)
func (c *Config) LoadFromEnv() error {
	if err := cleanenv.ReadEnv(c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	c.Instagram.Accounts = normalizeHandles(c.Instagram.Accounts)
	return nil
}

// EnvHelp describes every environment variable the monitor reads
func (c *Config) EnvHelp() string {
	help, err := cleanenv.GetDescription(c, nil)
	if err != nil {
		return ""
	}
	return help
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
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

	c.Instagram.Accounts = normalizeHandles(c.Instagram.Accounts)
	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".igmonitor.yaml",
		".igmonitor.yml",
		"igmonitor.yaml",
	}
	if home != "" {
		locations = append(locations,
			filepath.Join(home, ".config", "igmonitor", "config.yaml"),
			filepath.Join(home, ".config", "igmonitor", "config.yml"),
			filepath.Join(home, ".igmonitor.yaml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Browser
	if c.Browser.Host == "" {
		errs = append(errs, errors.New("browser host is required"))
	}
	if c.Browser.Port <= 0 || c.Browser.Port > 65535 {
		errs = append(errs, fmt.Errorf("browser port %d is out of range", c.Browser.Port))
	}
	if c.Browser.Scheme != "http" && c.Browser.Scheme != "https" {
		errs = append(errs, fmt.Errorf("browser scheme must be http or https, got %q", c.Browser.Scheme))
	}
	if c.Browser.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("browser connect timeout must be positive"))
	}
	if c.Browser.LoadDelay < 0 {
		errs = append(errs, errors.New("browser load delay cannot be negative"))
	}

	// Instagram
	if u, err := url.Parse(c.Instagram.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid instagram base URL %q", c.Instagram.BaseURL))
	}
	if c.Instagram.MaxPostsPerAccount <= 0 {
		errs = append(errs, errors.New("max posts per account must be positive"))
	}
	if c.Instagram.LoadTimeout < time.Second {
		errs = append(errs, errors.New("page load timeout must be at least 1s"))
	}
	if c.Instagram.PostDelay < 0 || c.Instagram.AccountDelay < 0 || c.Instagram.ScrollPause < 0 {
		errs = append(errs, errors.New("delays cannot be negative"))
	}
	if c.Instagram.NavigationAttempts <= 0 {
		errs = append(errs, errors.New("navigation attempts must be positive"))
	}
	if c.Instagram.ScrollSteps < 0 {
		errs = append(errs, errors.New("scroll steps cannot be negative"))
	}
	if c.Instagram.MaxOldStreak < 0 {
		errs = append(errs, errors.New("max old streak cannot be negative"))
	}
	for _, a := range c.Instagram.Accounts {
		if !validHandle.MatchString(a) {
			errs = append(errs, fmt.Errorf("invalid account handle %q", a))
		}
	}

	// Report
	if c.Report.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Report.MaxAgeDays < 0 {
		errs = append(errs, errors.New("max age days cannot be negative"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Report.UndatedPolicy != UndatedExclude && c.Report.UndatedPolicy != UndatedKeep {
		errs = append(errs, fmt.Errorf("undated policy must be %q or %q", UndatedExclude, UndatedKeep))
	}
	if c.Report.TemplatePath != "" {
		if _, err := os.Stat(c.Report.TemplatePath); err != nil {
			errs = append(errs, fmt.Errorf("template not found: %s", c.Report.TemplatePath))
		}
	}

	// Logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	// Schedule
	if c.Schedule.Interval < time.Minute {
		errs = append(errs, errors.New("schedule interval must be at least 1m"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

var (
	validHandle  = regexp.MustCompile(`^[a-z0-9._]{1,30}$`)
	offsetLayout = regexp.MustCompile(`^(?:UTC)?([+-])(\d{1,2}):?(\d{2})?$`)
)

// Location resolves the configured timezone as an IANA name or a fixed offset
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Report.Timezone)
	switch strings.ToUpper(tz) {
	case "", "UTC", "Z":
		return time.UTC, nil
	case "LOCAL":
		return time.Local, nil
	}

	if m := offsetLayout.FindStringSubmatch(tz); m != nil {
		hours, _ := strconv.Atoi(m[2])
		minutes := 0
		if m[3] != "" {
			minutes, _ = strconv.Atoi(m[3])
		}
		if hours > 14 || minutes > 59 {
			return nil, fmt.Errorf("invalid timezone offset %q", tz)
		}
		offset := hours*3600 + minutes*60
		if m[1] == "-" {
			offset = -offset
		}
		return time.FixedZone(tz, offset), nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// MaxAge returns the age window as a duration
func (c *Config) MaxAge() time.Duration {
	return time.Duration(c.Report.MaxAgeDays) * 24 * time.Hour
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if days, ok := flags["days"].(int); ok && days >= 0 {
		c.Report.MaxAgeDays = days
	}
	if accounts, ok := flags["accounts"].([]string); ok && len(accounts) > 0 {
		c.Instagram.Accounts = normalizeHandles(accounts)
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Report.OutputDir = outputDir
	}
	if logDir, ok := flags["log-dir"].(string); ok && logDir != "" {
		c.Logging.Dir = logDir
	}
	if noOpen, ok := flags["no-open"].(bool); ok && noOpen {
		c.Report.OpenReport = false
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if headless, ok := flags["headless"].(bool); ok && headless {
		c.Browser.Headless = true
	}
	if policy, ok := flags["undated"].(string); ok && policy != "" {
		c.Report.UndatedPolicy = strings.ToLower(policy)
	}
	if maxPosts, ok := flags["max-posts"].(int); ok && maxPosts > 0 {
		c.Instagram.MaxPostsPerAccount = maxPosts
	}
	if every, ok := flags["every"].(time.Duration); ok && every > 0 {
		c.Schedule.Interval = every
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".igmonitor.env"))
	}

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func normalizeHandles(handles []string) []string {
	out := make([]string, 0, len(handles))
	seen := make(map[string]bool, len(handles))
	for _, h := range handles {
		h = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}
