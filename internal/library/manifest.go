// Package library bulk-imports avatars and references from a local
// directory described by a JSON Lines manifest.
package library

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ManifestFileName is the JSONL manifest file name in an import directory.
	ManifestFileName = "manifest.jsonl"
	// ImagesDir is the directory holding the files the manifest names.
	ImagesDir = "images"
)

// Entry kinds.
const (
	KindAvatar    = "avatar"
	KindReference = "reference"
)

// ManifestItem is one line of manifest.jsonl.
//
//	{"kind":"avatar","name":"Studio","files":["a.png","b.png","c.png"]}
//	{"kind":"reference","category":"logo","description":"channel logo","files":["logo.png"]}
type ManifestItem struct {
	Kind        string   `json:"kind"`
	Name        string   `json:"name,omitempty"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Files       []string `json:"files"`

	// Line is the 1-based manifest line, for reporting.
	Line int `json:"-"`
}

// LoadManifest reads every well-formed item of dir's manifest. Malformed
// lines are returned as errors keyed by line number, not fatal.
// Parameters:
//   - dir: import directory containing manifest.jsonl and images/.
//
// Returns:
//   - []ManifestItem: parsed items in file order.
//   - map[int]error: per-line problems.
//   - error: non-nil if the manifest cannot be read at all.
func LoadManifest(dir string) ([]ManifestItem, map[int]error, error) {
	manifestPath := filepath.Join(dir, ManifestFileName)
	file, err := os.Open(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("manifest file not found: %s", manifestPath)
		}
		return nil, nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	var items []ManifestItem
	problems := make(map[int]error)

	// Read line by line (JSON Lines format)
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var item ManifestItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			problems[lineNo] = fmt.Errorf("invalid JSON: %w", err)
			continue
		}
		item.Line = lineNo
		item.Kind = strings.ToLower(strings.TrimSpace(item.Kind))

		switch item.Kind {
		case KindAvatar:
			if len(item.Files) == 0 {
				problems[lineNo] = fmt.Errorf("avatar without files")
				continue
			}
		case KindReference:
			if len(item.Files) != 1 {
				problems[lineNo] = fmt.Errorf("reference needs exactly one file, got %d", len(item.Files))
				continue
			}
		default:
			problems[lineNo] = fmt.Errorf("unknown kind %q", item.Kind)
			continue
		}
		items = append(items, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("error reading manifest: %w", err)
	}
	return items, problems, nil
}

// imagePath resolves a manifest file name inside dir/images, refusing
// names that escape it.
func imagePath(dir, name string) (string, error) {
	base := filepath.Join(dir, ImagesDir)
	p := filepath.Join(base, name)
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file %q is outside %s", name, ImagesDir)
	}
	return p, nil
}
