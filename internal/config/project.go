package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/naoina/toml"
	"gopkg.in/yaml.v3"
)

// ConfigFileNames are searched, in order, in every directory FindConfig visits.
var ConfigFileNames = []string{"infact.yaml", "infact.yml", "infact.toml"}

// Error policies accepted in the error_policy field.
const (
	PolicyReturn = "return"
	PolicyLog    = "log"
	PolicyExit   = "exit"
)

// Project is the per-project configuration, read from infact.yaml (or
// infact.toml).
type Project struct {
	// Debug is the verbosity of interpreter tracing: 0 warnings only,
	// 1 imports and type inference, 2 everything.
	Debug int `yaml:"debug" toml:"debug"`

	// ErrorPolicy decides what happens on the first error: "return" hands it
	// to the caller, "log" prints it and hands it to the caller, "exit"
	// prints it and exits. Defaults to "log".
	ErrorPolicy string `yaml:"error_policy,omitempty" toml:"error_policy"`

	// ImportPaths are extra directories searched for imports, after the
	// importing file's directory and the working directory. Relative
	// entries are relative to the config file.
	ImportPaths []string `yaml:"import_paths,omitempty" toml:"import_paths"`

	// Color is "auto", "always" or "never".
	Color string `yaml:"color,omitempty" toml:"color"`

	// SourceCache is the number of imported files kept in memory. Zero
	// disables caching.
	SourceCache int `yaml:"source_cache,omitempty" toml:"source_cache"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-" toml:"-"`
}

// Default returns the configuration used when no file is found.
func Default() *Project {
	p := &Project{}
	p.setDefaults()
	return p
}

// LoadConfig reads and parses a configuration file.
func LoadConfig(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses configuration content. The format is picked from the
// extension of path, which is also used in error messages.
func ParseConfig(data []byte, path string) (*Project, error) {
	var p Project
	if strings.HasSuffix(path, ".toml") {
		if err := toml.Unmarshal(data, &p); err != nil {
			// Add file name to errors that have a line number.
			if _, ok := err.(*toml.LineError); ok {
				return nil, errors.New(path + ", " + err.Error())
			}
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := p.validate(path); err != nil {
		return nil, err
	}
	p.setDefaults()
	p.Path = path
	p.absImportPaths(filepath.Dir(path))
	return &p, nil
}

// FindConfig searches for a configuration file starting from dir and
// walking up to parent directories.
// Returns the path to the config file and nil error if found,
// or empty string and nil error if not found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", nil
		}
		dir = parent
	}
}

// Discover loads the configuration governing dir, or the defaults.
func Discover(dir string) (*Project, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return Default(), nil
	}
	return LoadConfig(path)
}

func (p *Project) validate(path string) error {
	if p.Debug < 0 {
		return fmt.Errorf("%s: debug must not be negative, got %d", path, p.Debug)
	}
	switch p.ErrorPolicy {
	case "", PolicyReturn, PolicyLog, PolicyExit:
	default:
		return fmt.Errorf("%s: error_policy must be one of %s, %s or %s, got %q",
			path, PolicyReturn, PolicyLog, PolicyExit, p.ErrorPolicy)
	}
	switch strings.ToLower(p.Color) {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("%s: color must be auto, always or never, got %q", path, p.Color)
	}
	if p.SourceCache < 0 {
		return fmt.Errorf("%s: source_cache must not be negative, got %d", path, p.SourceCache)
	}
	for i, dir := range p.ImportPaths {
		if dir == "" {
			return fmt.Errorf("%s: import_paths[%d] is empty", path, i)
		}
	}
	return nil
}

func (p *Project) setDefaults() {
	if p.ErrorPolicy == "" {
		p.ErrorPolicy = PolicyLog
	}
	if p.Color == "" {
		p.Color = "auto"
	}
}

func (p *Project) absImportPaths(base string) {
	for i, dir := range p.ImportPaths {
		if !filepath.IsAbs(dir) {
			p.ImportPaths[i] = filepath.Join(base, dir)
		}
	}
}
