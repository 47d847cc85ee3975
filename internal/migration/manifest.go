package migration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/socsieng/pg-migrations/internal/util"
)

// SortAlphaNumeric is the only supported file ordering
const SortAlphaNumeric = "alpha-numeric"

// Manifest lists the glob patterns that select changeset files
type Manifest struct {
	Files []string `yaml:"files" json:"files"`
	Sort  string   `yaml:"sort" json:"sort"`
}

// DefaultManifest matches every .sql file below the base path
func DefaultManifest() Manifest {
	return Manifest{
		Files: []string{"**/*.sql"},
		Sort:  SortAlphaNumeric,
	}
}

// ReadManifest reads a manifest file. Files ending in .yml or .yaml are
// YAML, anything else is JSON. Keys that are absent keep their defaults.
func ReadManifest(path string) (Manifest, error) {
	manifest := DefaultManifest()

	data, err := os.ReadFile(path)
	if err != nil {
		return manifest, fmt.Errorf("failed to read manifest: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yml" || ext == ".yaml" {
		err = yaml.Unmarshal(data, &manifest)
	} else {
		err = json.Unmarshal(data, &manifest)
	}
	if err != nil {
		return manifest, fmt.Errorf("%w: failed to parse manifest %s: %v", util.ErrInvalidConfig, path, err)
	}

	if manifest.Sort == "" {
		manifest.Sort = SortAlphaNumeric
	}
	if manifest.Sort != SortAlphaNumeric {
		util.WarnLog("Unknown sort %q in %s, using %s", manifest.Sort, path, SortAlphaNumeric)
	}

	return manifest, nil
}

// DiscoverFiles expands each pattern relative to basePath. Matches of one
// pattern are naturally sorted; patterns are concatenated in order and a
// file matched by an earlier pattern keeps its first position.
func DiscoverFiles(basePath string, patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(filepath.Join(basePath, pattern), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("%w: invalid file pattern %q: %v", util.ErrInvalidConfig, pattern, err)
		}

		util.SortNatural(matches)

		added := 0
		for _, match := range matches {
			if seen[match] {
				continue
			}
			seen[match] = true
			files = append(files, match)
			added++
		}

		util.DebugLog("Pattern %s matched %d files (%d new)", pattern, len(matches), added)
	}

	return files, nil
}
