package storage

import (
	"embed"
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.yaml
var schemaFS embed.FS

// Column is one column of a table contract.
type Column struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
}

// TableSchema is the declared contract of one dataset.
type TableSchema struct {
	Table   string   `yaml:"table"`
	Columns []Column `yaml:"columns"`
}

// ValidationError lists every contract violation found in a batch.
type ValidationError struct {
	Table    string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed for %s: %s", e.Table, strings.Join(e.Problems, "; "))
}

// LoadSchema reads the embedded contract schemas/<name>.yaml.
func LoadSchema(name string) (*TableSchema, error) {
	data, err := schemaFS.ReadFile("schemas/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	var s TableSchema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("schema %s: parse: %w", name, err)
	}
	if s.Table == "" {
		s.Table = name
	}
	return &s, nil
}

// Validate checks that the columns of T match the contract exactly and that
// no non-nullable column holds a null. Empty strings count as null.
func Validate[T any](s *TableSchema, rows []T) error {
	ps := parquet.SchemaOf(new(T))

	var columns []string
	for _, path := range ps.Columns() {
		columns = append(columns, strings.Join(path, "."))
	}

	declared := make(map[string]Column, len(s.Columns))
	for _, c := range s.Columns {
		declared[c.Name] = c
	}
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	var problems []string
	for _, c := range s.Columns {
		if !present[c.Name] {
			problems = append(problems, "missing column "+c.Name)
		}
	}
	for _, c := range columns {
		if _, ok := declared[c]; !ok {
			problems = append(problems, "unexpected column "+c)
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Table: s.Table, Problems: problems}
	}

	nulls := make([]int, len(columns))
	var row parquet.Row
	for i := range rows {
		row = ps.Deconstruct(row[:0], &rows[i])
		for _, v := range row {
			col := v.Column()
			if col < 0 || col >= len(columns) {
				continue
			}
			if v.IsNull() || (v.Kind() == parquet.ByteArray && len(v.ByteArray()) == 0) {
				nulls[col]++
			}
		}
	}
	for i, name := range columns {
		if nulls[i] > 0 && !declared[name].Nullable {
			problems = append(problems, fmt.Sprintf("column %s has %d null values", name, nulls[i]))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Table: s.Table, Problems: problems}
	}
	return nil
}
