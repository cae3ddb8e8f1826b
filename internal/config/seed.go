// internal/config/seed.go
package config

import (
	"fmt"
	"os"

	yaml "go.yaml.in/yaml/v3"
)

// Seed is the start-up content of the catalog.
type Seed struct {
	Books   []SeedBook `yaml:"books"`
	Members []string   `yaml:"members"`
}

type SeedBook struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
	ISBN   string `yaml:"isbn"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	for i, b := range seed.Books {
		if b.ISBN == "" {
			return nil, fmt.Errorf("seed book %d (%q): missing isbn", i, b.Title)
		}
	}
	return &seed, nil
}
