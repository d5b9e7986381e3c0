package recipe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the recipe file looked up in the build context when no
// path is given.
const DefaultFile = "asgiship.yaml"

// Load reads a recipe file and overlays it on the defaults. A missing
// file is an error; use LoadOrDefault when the file is optional.
func Load(path string) (Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Recipe{}, fmt.Errorf("read recipe: %w", err)
	}

	r := Default()
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Recipe{}, fmt.Errorf("parse recipe %s: %w", path, err)
	}

	if err := r.Validate(); err != nil {
		return Recipe{}, fmt.Errorf("invalid recipe %s: %w", path, err)
	}

	return r, nil
}

// LoadOrDefault loads path if it exists and falls back to the default
// recipe when it does not.
func LoadOrDefault(path string) (Recipe, error) {
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Recipe{}, fmt.Errorf("stat recipe: %w", err)
	}

	return Load(path)
}
