package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// WriteJSON writes v as indented JSON to path, creating parent directories.
// The file is written to a temp name and renamed so readers never see a
// partial document.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("raw: create dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("raw: encode %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("raw: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("raw: publish %s: %w", path, err)
	}
	return nil
}

// ReadJSON decodes the JSON document at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("raw: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("raw: decode %s: %w", path, err)
	}
	return nil
}

// ListJSON returns the .json files directly inside dir, sorted by name.
// A missing directory yields ErrPartitionNotFound.
func ListJSON(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("raw %s: %w", dir, ErrPartitionNotFound)
		}
		return nil, fmt.Errorf("raw: list %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Stem returns the file name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PartitionDir joins hive-style keys under root.
func PartitionDir(root string, keys ...Key) string {
	parts := []string{root}
	for _, k := range keys {
		parts = append(parts, k.segment())
	}
	return filepath.Join(parts...)
}

// LatestPartition returns the greatest value of key name under dir whose
// partition directory contains at least one file.
func LatestPartition(dir, name string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", dir, ErrPartitionNotFound)
		}
		return "", fmt.Errorf("list %s: %w", dir, err)
	}

	prefix := name + "="
	var values []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			values = append(values, strings.TrimPrefix(e.Name(), prefix))
		}
	}
	if len(values) == 0 {
		return "", fmt.Errorf("no %s partitions under %s: %w", name, dir, ErrPartitionNotFound)
	}
	sort.Strings(values)
	return values[len(values)-1], nil
}
