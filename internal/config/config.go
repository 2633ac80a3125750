// Package config provides configuration management for ifcsync.
// It supports YAML or TOML configuration files, a .env file, environment
// variables, and sensible defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/klauern/ifcsync/internal/util"
)

// Config represents the complete ifcsync configuration.
type Config struct {
	// Source is the repository holding the Markdown documents
	Source SourceConfig `yaml:"source" toml:"source"`

	// Mirror is the static site repository receiving rendered pages
	Mirror MirrorConfig `yaml:"mirror" toml:"mirror"`

	// Render configures the rendering service
	Render RenderConfig `yaml:"render" toml:"render"`

	// Ledger configures the sync ledger
	Ledger LedgerConfig `yaml:"ledger" toml:"ledger"`

	// Detect configures change detection
	Detect DetectConfig `yaml:"detect" toml:"detect"`

	// VCS configures version control access
	VCS VCSConfig `yaml:"vcs" toml:"vcs"`

	// Output configures display preferences
	Output OutputConfig `yaml:"output" toml:"output"`
}

// SourceConfig locates the source documents.
type SourceConfig struct {
	Repo       string `yaml:"repo" toml:"repo" validate:"required"`
	DocsDir    string `yaml:"docs_dir" toml:"docs_dir" validate:"required"`
	ContentDir string `yaml:"content_dir" toml:"content_dir" validate:"required"`
}

// MirrorConfig locates the static mirror and where it is pushed.
type MirrorConfig struct {
	Repo       string `yaml:"repo" toml:"repo" validate:"required"`
	HTMLPrefix string `yaml:"html_prefix" toml:"html_prefix" validate:"required,startswith=/"`
	Remote     string `yaml:"remote" toml:"remote" validate:"required"`
	Branch     string `yaml:"branch" toml:"branch" validate:"required"`
}

// RenderConfig holds rendering service settings.
type RenderConfig struct {
	BaseURL string `yaml:"base_url" toml:"base_url" validate:"required,url"`
	// StartScript launches the service; relative paths resolve against the
	// source repository
	StartScript  string        `yaml:"start_script" toml:"start_script"`
	WorkDir      string        `yaml:"work_dir" toml:"work_dir"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" toml:"probe_timeout" validate:"gt=0"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" toml:"fetch_timeout" validate:"gt=0"`
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval" validate:"gt=0"`
	Attempts     int           `yaml:"attempts" toml:"attempts" validate:"gte=1"`
}

// LedgerConfig holds ledger settings.
type LedgerConfig struct {
	Path string `yaml:"path" toml:"path" validate:"required"`
}

// DetectConfig holds change detection settings.
type DetectConfig struct {
	// Window is how far back modification times are considered recent
	Window time.Duration `yaml:"window" toml:"window" validate:"gt=0"`
}

// VCSConfig selects the version control backend.
type VCSConfig struct {
	Backend     string `yaml:"backend" toml:"backend" validate:"oneof=shell go-git"`
	AuthorName  string `yaml:"author_name" toml:"author_name"`
	AuthorEmail string `yaml:"author_email" toml:"author_email" validate:"omitempty,email"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Color controls color output (auto, always, never)
	Color string `yaml:"color" toml:"color" validate:"oneof=auto always never"`
	// Progress shows a progress bar during sync on terminals
	Progress bool `yaml:"progress" toml:"progress"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Repo:       ".",
			DocsDir:    "docs_zh",
			ContentDir: "content_zh",
		},
		Mirror: MirrorConfig{
			HTMLPrefix: "/IFC/RELEASE/IFC4x3/HTML",
			Remote:     "origin",
			Branch:     "main",
		},
		Render: RenderConfig{
			BaseURL:      "http://127.0.0.1:5050",
			StartScript:  filepath.Join("code_zh", "start_zh_server.sh"),
			ProbeTimeout: 2 * time.Second,
			FetchTimeout: 30 * time.Second,
			PollInterval: time.Second,
			Attempts:     10,
		},
		Ledger: LedgerConfig{
			Path: filepath.Join(xdg.StateHome, "ifcsync", "sync_progress.json"),
		},
		Detect: DetectConfig{
			Window: 24 * time.Hour,
		},
		VCS: VCSConfig{
			Backend: "shell",
		},
		Output: OutputConfig{
			Color:    "auto",
			Progress: true,
		},
	}
}

// configFileName is the name of the default config file.
const configFileName = "config.yaml"

// FilePath returns the path to the default config file.
func FilePath() string {
	return filepath.Join(xdg.ConfigHome, "ifcsync", configFileName)
}

// Load loads the configuration from the default location, merging with
// defaults. A missing default file is not an error.
func Load() (*Config, error) {
	return load(FilePath(), false)
}

// LoadFromPath loads configuration from a specific path, which must exist.
func LoadFromPath(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, mustExist bool) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is the default config location or provided by the user
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.decode(path, data); err != nil {
			return nil, err
		}
	case os.IsNotExist(err) && !mustExist:
		// defaults with environment overrides
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	dotenv, err := readDotenv(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnvironment(dotenv)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readDotenv reads the .env file next to the config file. A missing file
// yields no values.
func readDotenv(configPath string) (map[string]string, error) {
	path := filepath.Join(filepath.Dir(configPath), ".env")
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return values, nil
}

// decode parses data over the defaults, picking the format by extension.
func (c *Config) decode(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse TOML config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}
	}
	return nil
}

// applyEnvironment applies environment variable overrides.
// Environment variables follow the pattern IFCSYNC_<SECTION>_<KEY>. Values
// from dotenv are used only for variables the process does not set.
func (c *Config) applyEnvironment(dotenv map[string]string) {
	getenv := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	// Source settings
	if v := getenv("IFCSYNC_SOURCE_REPO"); v != "" {
		c.Source.Repo = v
	}
	if v := getenv("IFCSYNC_SOURCE_DOCS_DIR"); v != "" {
		c.Source.DocsDir = v
	}
	if v := getenv("IFCSYNC_SOURCE_CONTENT_DIR"); v != "" {
		c.Source.ContentDir = v
	}

	// Mirror settings
	if v := getenv("IFCSYNC_MIRROR_REPO"); v != "" {
		c.Mirror.Repo = v
	}
	if v := getenv("IFCSYNC_MIRROR_REMOTE"); v != "" {
		c.Mirror.Remote = v
	}
	if v := getenv("IFCSYNC_MIRROR_BRANCH"); v != "" {
		c.Mirror.Branch = v
	}

	// Render settings
	if v := getenv("IFCSYNC_RENDER_BASE_URL"); v != "" {
		c.Render.BaseURL = v
	}
	if v := getenv("IFCSYNC_RENDER_START_SCRIPT"); v != "" {
		c.Render.StartScript = v
	}
	if v := getenv("IFCSYNC_RENDER_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Render.Attempts = n
		}
	}
	if v := getenv("IFCSYNC_RENDER_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Render.FetchTimeout = d
		}
	}

	// Ledger settings
	if v := getenv("IFCSYNC_LEDGER_PATH"); v != "" {
		c.Ledger.Path = v
	}

	// Detect settings
	if v := getenv("IFCSYNC_DETECT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Detect.Window = d
		}
	}

	// VCS settings
	if v := getenv("IFCSYNC_VCS_BACKEND"); v != "" {
		c.VCS.Backend = v
	}

	// Output settings
	if v := getenv("IFCSYNC_OUTPUT_COLOR"); v != "" {
		c.Output.Color = v
	}
	if v := getenv("IFCSYNC_OUTPUT_PROGRESS"); v != "" {
		c.Output.Progress = parseBool(v)
	}
}

// resolvePaths expands ~ and anchors the start script to the source repo.
func (c *Config) resolvePaths() {
	c.Source.Repo = util.ExpandHome(c.Source.Repo)
	c.Mirror.Repo = util.ExpandHome(c.Mirror.Repo)
	c.Ledger.Path = util.ExpandHome(c.Ledger.Path)
	c.Render.WorkDir = util.ExpandHome(c.Render.WorkDir)

	if c.Render.StartScript != "" {
		script := util.ExpandHome(c.Render.StartScript)
		if !filepath.IsAbs(script) {
			script = filepath.Join(c.Source.Repo, script)
		}
		c.Render.StartScript = script
	}
}

// ValidationError lists every invalid field.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Fields, ", ")
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	ve := &ValidationError{}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return ve
}

// parseBool parses a boolean from common string representations.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
