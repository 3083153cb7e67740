package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/parquet-go/parquet-go"

	"tcg-market-pipeline/metrics"
)

// PartFile is the single data file written into every partition directory.
const PartFile = "part-000.parquet"

// ErrPartitionNotFound is returned when a required input partition is absent.
var ErrPartitionNotFound = errors.New("partition not found")

// Key is one hive-style "name=value" path segment.
type Key struct {
	Name  string
	Value string
}

// PriceDate and IngestionDate build the two partition keys used across the lake.
func PriceDate(v string) Key     { return Key{Name: "price_date", Value: v} }
func IngestionDate(v string) Key { return Key{Name: "ingestion_date", Value: v} }

func (k Key) segment() string { return k.Name + "=" + k.Value }

// Dataset is a partitioned parquet table of rows of type T. Writes replace a
// whole partition atomically; readers never observe a half-written partition.
type Dataset[T any] struct {
	Name   string
	Root   string
	Schema *TableSchema
}

// NewDataset binds a dataset directory to its embedded schema contract.
func NewDataset[T any](schemaName, root string) (*Dataset[T], error) {
	s, err := LoadSchema(schemaName)
	if err != nil {
		return nil, err
	}
	return &Dataset[T]{Name: schemaName, Root: root, Schema: s}, nil
}

// Dir returns the directory of the partition identified by keys.
func (d *Dataset[T]) Dir(keys ...Key) string {
	return PartitionDir(d.Root, keys...)
}

// Exists reports whether the partition has a data file.
func (d *Dataset[T]) Exists(keys ...Key) bool {
	_, err := os.Stat(filepath.Join(d.Dir(keys...), PartFile))
	return err == nil
}

// Read loads every row of a partition.
func (d *Dataset[T]) Read(keys ...Key) ([]T, error) {
	path := filepath.Join(d.Dir(keys...), PartFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s %s: %w", d.Name, path, ErrPartitionNotFound)
		}
		return nil, fmt.Errorf("%s: stat %s: %w", d.Name, path, err)
	}
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", d.Name, path, err)
	}
	return rows, nil
}

// Write validates rows against the schema and replaces the partition.
func (d *Dataset[T]) Write(rows []T, keys ...Key) error {
	if d.Schema != nil {
		if err := Validate(d.Schema, rows); err != nil {
			return err
		}
	}

	target := d.Dir(keys...)
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("%s: create dir: %w", d.Name, err)
	}

	tmp := filepath.Join(parent, "."+filepath.Base(target)+".tmp-"+ulid.Make().String())
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return fmt.Errorf("%s: create temp dir: %w", d.Name, err)
	}
	if err := parquet.WriteFile(filepath.Join(tmp, PartFile), rows); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("%s: write %s: %w", d.Name, target, err)
	}
	if err := swapDir(tmp, target); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("%s: publish %s: %w", d.Name, target, err)
	}
	metrics.ObserveRows(d.Name, len(rows))
	return nil
}

// Latest returns the greatest value of partition key name directly under the
// partition identified by parents.
func (d *Dataset[T]) Latest(name string, parents ...Key) (string, error) {
	values, err := d.Values(name, parents...)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", fmt.Errorf("%s: no %s partitions under %s: %w", d.Name, name, d.Dir(parents...), ErrPartitionNotFound)
	}
	return values[len(values)-1], nil
}

// Values lists the values of partition key name under parents, ascending.
// Hidden temp directories are skipped.
func (d *Dataset[T]) Values(name string, parents ...Key) ([]string, error) {
	return partitionValues(d.Dir(parents...), name)
}

func partitionValues(dir, name string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	prefix := name + "="
	var values []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if !holdsData(filepath.Join(dir, e.Name())) {
			continue
		}
		values = append(values, strings.TrimPrefix(e.Name(), prefix))
	}
	sort.Strings(values)
	return values, nil
}

// errFound stops the walk in holdsData.
var errFound = errors.New("found")

// holdsData reports whether a part file exists at any depth under dir,
// ignoring hidden temp and backup directories.
func holdsData(dir string) bool {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == PartFile {
			return errFound
		}
		return nil
	})
	return errors.Is(err, errFound)
}

// swapDir moves src into place at dst. An existing dst is moved aside first
// and restored if the final rename fails.
func swapDir(src, dst string) error {
	old := ""
	if _, err := os.Stat(dst); err == nil {
		old = filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".old-"+ulid.Make().String())
		if err := os.Rename(dst, old); err != nil {
			return err
		}
	}

	if err := os.Rename(src, dst); err != nil {
		if old != "" {
			_ = os.Rename(old, dst)
		}
		return err
	}

	if old != "" {
		return os.RemoveAll(old)
	}
	return nil
}
