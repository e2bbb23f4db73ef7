package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/DeafMist/econ-news-radar/backend/internal/models"
)

// The config files are JSON. JSON is valid YAML, and decoding through
// yaml.Node keeps mapping keys in file order, which category tie-breaking
// and tag ordering depend on.

// LoadSources reads sources.json.
func LoadSources(path string) ([]models.Source, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Sources []models.Source `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrConfig, path, err)
	}

	for i, s := range doc.Sources {
		if s.Name == "" {
			return nil, fmt.Errorf("%w: %s: source %d has no name", ErrConfig, path, i)
		}
		if s.Active() && s.FeedURL == "" {
			return nil, fmt.Errorf("%w: %s: active source %q has no rss_url", ErrConfig, path, s.Name)
		}
	}
	return doc.Sources, nil
}

// LoadCategories reads categories.json, keeping the configured order.
func LoadCategories(path string) ([]models.Category, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Categories yaml.Node `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrConfig, path, err)
	}

	var out []models.Category
	err = eachMappingEntry(doc.Categories, func(name string, value *yaml.Node) error {
		var c models.Category
		if err := value.Decode(&c); err != nil {
			return fmt.Errorf("category %q: %v", name, err)
		}
		if c.Priority < 0 {
			return fmt.Errorf("category %q: priority cannot be negative", name)
		}
		c.Name = name
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}
	return out, nil
}

// LoadTagRules reads the optional tags.json. A missing file yields nil rules
// and no error so callers can apply their defaults.
func LoadTagRules(path string) ([]models.TagRule, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}

	var doc struct {
		Tags yaml.Node `yaml:"tags"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrConfig, path, err)
	}

	out := []models.TagRule{}
	err = eachMappingEntry(doc.Tags, func(name string, value *yaml.Node) error {
		var keywords []string
		if err := value.Decode(&keywords); err != nil {
			return fmt.Errorf("tag %q: %v", name, err)
		}
		out = append(out, models.TagRule{Name: name, Keywords: keywords})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}
	return out, nil
}

func readConfigFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}
	return data, nil
}

func eachMappingEntry(node yaml.Node, fn func(key string, value *yaml.Node) error) error {
	if node.Kind != yaml.MappingNode {
		return errors.New("expected an object")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := fn(node.Content[i].Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}
