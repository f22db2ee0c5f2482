// Package config loads the grabsync YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/franksops/grabsync/jobconfig"
)

// Version is set at build time through -ldflags.
var Version = "dev"

// EnvConfig names the environment variable consulted when no --config is given.
const EnvConfig = "GRABSYNC_CONFIG"

// DefaultPath is the config location used when neither --config nor EnvConfig is set.
const DefaultPath = "~/.config/grabsync.yaml"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the full grabsync configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Client   ClientConfig   `yaml:"client"`
	Transfer TransferConfig `yaml:"transfer"`

	PathConfigurations []jobconfig.PathConfiguration `yaml:"pathConfigurations" validate:"required,min=1"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// ServerConfig addresses the source system.
type ServerConfig struct {
	Scheme   string `yaml:"scheme" validate:"oneof=file http https"`
	Host     string `yaml:"host" validate:"required_unless=Scheme file"`
	Port     string `yaml:"port" validate:"omitempty,numeric"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Bucket holds the content tree on S3-compatible sources.
	Bucket string `yaml:"bucket" validate:"required_unless=Scheme file"`

	// Root holds the content tree for the file scheme.
	Root string `yaml:"root" validate:"required_if=Scheme file"`
}

// ClientConfig describes the receiving repository.
type ClientConfig struct {
	Username    string `yaml:"username" validate:"required"`
	Destination string `yaml:"destination" validate:"required"`
	StateDir    string `yaml:"stateDir" validate:"required"`
}

type TransferConfig struct {
	Workers           int     `yaml:"workers" validate:"gt=0"`
	BufferSize        int     `yaml:"bufferSize" validate:"gt=0"`
	MaxItemsPerSecond float64 `yaml:"maxItemsPerSecond" validate:"gte=0"`
}

// Default returns a Config holding every default value.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{
			Scheme: "https",
		},
		Client: ClientConfig{
			StateDir: "~/.grabsync",
		},
		Transfer: TransferConfig{
			Workers:    16,
			BufferSize: 1024 * 1024,
		},
	}
}

// Resolve picks the config file location: the flag value, then EnvConfig,
// then DefaultPath. The result has ~ expanded.
func Resolve(flagValue string) (string, error) {
	p := flagValue
	if p == "" {
		p = os.Getenv(EnvConfig)
	}
	if p == "" {
		p = DefaultPath
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("unable to expand homedir: %w", err)
	}
	return expanded, nil
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist, override with --config: %w", path, err)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("issue parsing config file: %w", err)
	}

	for i, pc := range cfg.PathConfigurations {
		if pc.BatchSize == 0 {
			cfg.PathConfigurations[i].BatchSize = DefaultBatchSize
		}
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultBatchSize applies to path configurations that leave batchSize unset.
const DefaultBatchSize = 100

// Validate checks the whole configuration, including each path configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, pc := range c.PathConfigurations {
		if err := pc.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Client.StateDir, &c.Client.Destination, &c.Server.Root} {
		if *p == "" || strings.HasPrefix(*p, "s3://") {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("unable to expand homedir: %w", err)
		}
		*p = expanded
	}
	return nil
}

// SetupLogger builds the process logger from the log section and installs it
// as the slog default. Debug forces the debug level.
func SetupLogger(cfg LogConfig, debug bool, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}
	if debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
