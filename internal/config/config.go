// Package config loads sagacheck settings. Sources are layered:
// built-in defaults, then a YAML file, then environment variables, then
// command-line flags (applied by the caller).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sagacheck/internal/apiclient"
)

// Environment variables read by Load.
const (
	EnvConfig  = "SAGACHECK_CONFIG"
	EnvBaseURL = "SAGACHECK_BASE_URL"
	EnvTimeout = "SAGACHECK_TIMEOUT"
)

// Defaults.
const (
	DefaultBaseURL     = "http://localhost:3000/api"
	DefaultTimeout     = apiclient.DefaultTimeout
	DefaultSuite       = "platform"
	DefaultPassword    = "SagaCheck123!"
	DefaultEmailDomain = "motosaga.test"
	DefaultFile        = "sagacheck.yaml"
)

// Config is the resolved configuration for a run.
type Config struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Delay       time.Duration `yaml:"delay"`
	Suite       string        `yaml:"suite"`
	Report      string        `yaml:"report"`  // artifact path; empty writes none
	History     string        `yaml:"history"` // SQLite path; empty disables history
	Password    string        `yaml:"password"`
	EmailDomain string        `yaml:"email_domain"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:     DefaultBaseURL,
		Timeout:     DefaultTimeout,
		Suite:       DefaultSuite,
		Password:    DefaultPassword,
		EmailDomain: DefaultEmailDomain,
	}
}

// FieldError is a validation failure for one configuration field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Load resolves defaults, the file at path (or $SAGACHECK_CONFIG, or
// ./sagacheck.yaml) and the environment. A missing file is an error only
// when it was named explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := true
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		path, explicit = DefaultFile, false
	}
	if err := loadFile(path, explicit, cfg); err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, explicit bool, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	defer f.Close()

	if err := Decode(f, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Decode overlays YAML from r onto cfg. Unknown keys are rejected.
func Decode(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables. lookup is os.LookupEnv outside
// of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &FieldError{Field: "timeout", Message: fmt.Sprintf("%s=%q is not a duration", EnvTimeout, v)}
		}
		c.Timeout = d
	}
	return nil
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &FieldError{Field: "base_url", Message: fmt.Sprintf("%q is not an http(s) URL", c.BaseURL)}
	}
	if c.Timeout <= 0 {
		return &FieldError{Field: "timeout", Message: "must be positive"}
	}
	if c.Delay < 0 {
		return &FieldError{Field: "delay", Message: "must not be negative"}
	}
	if strings.TrimSpace(c.Suite) == "" {
		return &FieldError{Field: "suite", Message: "must not be empty"}
	}
	if c.Password == "" {
		return &FieldError{Field: "password", Message: "must not be empty"}
	}
	if c.EmailDomain == "" || strings.ContainsAny(c.EmailDomain, "@ ") {
		return &FieldError{Field: "email_domain", Message: fmt.Sprintf("%q is not a domain", c.EmailDomain)}
	}
	return nil
}
