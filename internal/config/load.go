package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "SLASHCORE_"

// FileSystem is the file access the loader needs. fstest.MapFS satisfies it.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Loader resolves a Config from defaults, a file and the environment.
type Loader struct {
	fs       FileSystem
	envFiles []string
	environ  map[string]string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFS sets the file system used for config and .env files.
func WithFS(fsys FileSystem) LoaderOption {
	return func(l *Loader) {
		l.fs = fsys
	}
}

// WithEnvFiles sets the .env files to read. Missing files are skipped.
func WithEnvFiles(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.envFiles = paths
	}
}

// WithEnviron replaces the process environment.
func WithEnviron(environ map[string]string) LoaderOption {
	return func(l *Loader) {
		l.environ = environ
	}
}

// NewLoader creates a loader that reads ".env" and the process environment.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		fs:       OSFS{},
		envFiles: []string{".env"},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves the configuration. An empty path or a missing file yields
// the defaults plus environment overrides.
func (l *Loader) Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := l.fs.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// File doesn't exist, not an error
		case err != nil:
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := Decode(bytes.NewReader(data), formatOf(path), &cfg); err != nil {
				var pe *ParseError
				if errors.As(err, &pe) {
					pe.Path = path
				}
				return Config{}, err
			}
		}
	}

	if err := l.applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays prefixed environment variables. Process variables win
// over .env values.
func (l *Loader) applyEnv(cfg *Config) error {
	environ := l.environ
	if environ == nil {
		environ = env.ToMap(os.Environ())
	}

	merged := make(map[string]string, len(environ))
	for _, path := range l.envFiles {
		data, err := l.fs.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading env file %s: %w", path, err)
		}
		values, err := godotenv.Parse(bytes.NewReader(data))
		if err != nil {
			return &ParseError{Path: path, Err: err}
		}
		for k, v := range values {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}
	for k, v := range environ {
		merged[k] = v
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: merged}); err != nil {
		return fmt.Errorf("%w: environment: %w", ErrValidationFailed, err)
	}
	return nil
}

// Decode reads one configuration document in the given format ("toml",
// "yaml" or "json") over the values already in cfg.
func Decode(r io.Reader, format string, cfg *Config) error {
	var err error
	switch format {
	case "toml":
		err = toml.NewDecoder(r).Decode(cfg)
	case "yaml":
		err = yaml.NewDecoder(r).Decode(cfg)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case "json":
		err = json.NewDecoder(r).Decode(cfg)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return &ParseError{Path: "<" + format + ">", Err: err}
	}
	return nil
}

// Encode writes cfg in the given format.
func Encode(w io.Writer, format string, cfg Config) error {
	switch format {
	case "toml":
		return toml.NewEncoder(w).Encode(cfg)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return strings.TrimPrefix(filepath.Ext(path), ".")
	}
}
