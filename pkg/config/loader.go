package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Common errors for definition loading.
var (
	ErrFileNotFound = errors.New("definition file not found")
	ErrEmptyFile    = errors.New("definition file is empty")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrNoRoutes     = errors.New("definition file declares no routes")
)

// LoadFromFile reads a stub definition from a YAML file. JSON files load
// through the same path, since YAML is a superset of JSON.
func LoadFromFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	return Parse(data)
}

// Parse decodes a stub definition document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if len(f.Routes) == 0 {
		return nil, ErrNoRoutes
	}
	return &f, nil
}
