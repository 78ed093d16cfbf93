// Package configloader loads retrieval tuning overrides from YAML files.
package configloader

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hyphora/hyphora/ai"
)

// Loader reads YAML configuration files relative to a base directory.
type Loader struct {
	baseDir string
}

// NewLoader creates a new configuration loader.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		baseDir: baseDir,
	}
}

// Load loads a single YAML file and unmarshals it into target.
func (l *Loader) Load(subPath string, target any) error {
	data, err := l.readFileWithFallback(subPath)
	if err != nil {
		return fmt.Errorf("read file %s: %w", subPath, err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal YAML %s: %w", subPath, err)
	}

	return nil
}

// LoadRetrievalConfig returns the default retrieval config with overrides
// from the given YAML file applied. A missing file is not an error; defaults
// are returned unchanged.
func (l *Loader) LoadRetrievalConfig(subPath string) (*ai.Config, error) {
	cfg := ai.DefaultConfig()

	if _, err := os.Stat(filepath.Join(l.baseDir, subPath)); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("stat config %s: %w", subPath, err)
	}

	if err := l.Load(subPath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", subPath, err)
	}
	return cfg, nil
}

// readFileWithFallback tries to read the file relative to baseDir, then falls
// back to the executable directory for production builds.
func (l *Loader) readFileWithFallback(path string) ([]byte, error) {
	absPath := filepath.Join(l.baseDir, path)
	data, err := os.ReadFile(absPath)
	if err == nil {
		return data, nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}

	execDir := filepath.Dir(execPath)
	return os.ReadFile(filepath.Join(execDir, l.baseDir, path))
}
