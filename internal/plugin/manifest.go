package plugin

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/hook"
)

// DefaultMain is the entry script used when a manifest names none.
const DefaultMain = "init.lua"

// ManifestFiles are the manifest names looked up in a plugin directory,
// in order.
var ManifestFiles = []string{"plugin.json", "plugin.yaml", "plugin.yml", "plugin.toml"}

//go:embed manifest.schema.json
var manifestSchema []byte

// namePattern validates manifest plugin names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// Manifest declares a file plugin. Handlers, middleware and hooks name
// global functions of the plugin's entry script.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	Main        string `json:"main,omitempty"`

	Commands   []CommandManifest    `json:"commands"`
	Middleware []MiddlewareManifest `json:"middleware,omitempty"`

	// Hooks maps "phase:command" keys to script function names.
	Hooks map[string][]string `json:"hooks,omitempty"`

	dir string
}

// CommandManifest declares one script-backed command.
type CommandManifest struct {
	Name        string              `json:"name"`
	Handler     string              `json:"handler"`
	Description string              `json:"description,omitempty"`
	Category    string              `json:"category,omitempty"`
	Aliases     []string            `json:"aliases,omitempty"`
	Permissions []string            `json:"permissions,omitempty"`
	Middleware  []string            `json:"middleware,omitempty"`
	Examples    []string            `json:"examples,omitempty"`
	Parameters  []command.Parameter `json:"parameters,omitempty"`
	Hidden      bool                `json:"hidden,omitempty"`
	Deprecated  bool                `json:"deprecated,omitempty"`
	Version     string              `json:"version,omitempty"`
	Author      string              `json:"author,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
}

// MiddlewareManifest declares one script-backed global middleware.
type MiddlewareManifest struct {
	Name     string `json:"name,omitempty"`
	Handler  string `json:"handler"`
	Priority *int   `json:"priority,omitempty"`
}

// PriorityOrDefault returns the declared priority or
// DefaultMiddlewarePriority.
func (m MiddlewareManifest) PriorityOrDefault() int {
	if m.Priority == nil {
		return DefaultMiddlewarePriority
	}
	return *m.Priority
}

// LoadManifest reads, schema-checks and validates a manifest file. The
// format follows the file extension.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// LoadManifestFromDir loads the first manifest file found in dir.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	path, err := FindManifest(dir)
	if err != nil {
		return nil, err
	}
	return LoadManifest(path)
}

// FindManifest returns the path of the manifest file in dir.
func FindManifest(dir string) (string, error) {
	for _, name := range ManifestFiles {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoManifest, dir)
}

// ParseManifest decodes a manifest in the format named by ext (".json",
// ".yaml", ".yml" or ".toml"), checks it against the manifest schema and
// validates it.
func ParseManifest(data []byte, ext string) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: manifest is empty", ErrInvalidManifest)
	}

	payload, err := toJSON(data, strings.ToLower(ext))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := validateSchema(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	var m Manifest
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func toJSON(data []byte, ext string) ([]byte, error) {
	var raw any
	switch ext {
	case ".json":
		if !json.Valid(data) {
			return nil, errors.New("malformed json")
		}
		return data, nil
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		normalized, err := normalizeYAML(raw)
		if err != nil {
			return nil, err
		}
		raw = normalized
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", ext)
	}
	return json.Marshal(raw)
}

func normalizeYAML(value any) (any, error) {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			normalized, err := normalizeYAML(val)
			if err != nil {
				return nil, err
			}
			out[key] = normalized
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			strKey, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("invalid yaml map key: %T", key)
			}
			normalized, err := normalizeYAML(val)
			if err != nil {
				return nil, err
			}
			out[strKey] = normalized
		}
		return out, nil
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			normalized, err := normalizeYAML(val)
			if err != nil {
				return nil, err
			}
			out[i] = normalized
		}
		return out, nil
	default:
		return value, nil
	}
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func validateSchema(payload []byte) error {
	schemaOnce.Do(func() {
		var doc any
		if err := json.Unmarshal(manifestSchema, &doc); err != nil {
			schemaErr = fmt.Errorf("parse schema json: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("manifest.schema.json", doc); err != nil {
			schemaErr = fmt.Errorf("load schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("manifest.schema.json")
	})
	if schemaErr != nil {
		return schemaErr
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("parse manifest json: %w", err)
	}
	return compiledSchema.Validate(doc)
}

func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = DefaultMain
	}
}

// Validate checks the rules the schema cannot express.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}
	if m.Version != "" {
		if _, err := semver.NewVersion(m.Version); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
		}
	}
	if filepath.Ext(m.Main) != ".lua" {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}
	if filepath.IsAbs(m.Main) || strings.HasPrefix(filepath.Clean(m.Main), "..") {
		return fmt.Errorf("%w: %s escapes the plugin directory", ErrInvalidMain, m.Main)
	}
	for key := range m.Hooks {
		if _, err := hook.ParseKey(key); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
	}
	return nil
}

// Dir returns the directory the manifest was loaded from.
func (m *Manifest) Dir() string {
	return m.dir
}

// SetDir records the plugin directory for manifests parsed from memory.
func (m *Manifest) SetDir(dir string) {
	m.dir = dir
}

// MainPath returns the full path of the entry script.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.dir, m.Main)
}

// String returns "name vversion".
func (m *Manifest) String() string {
	if m.Version == "" {
		return m.Name
	}
	return fmt.Sprintf("%s v%s", m.Name, m.Version)
}
