// Package store reads and writes the JSON list files exchanged between
// commands, such as node and workload lists and workload templates.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"
)

const (
	ExtJSON = ".json"
	ExtYAML = ".yaml"
	ExtINI  = ".ini"
)

// AppendEnding adds ext to name unless name already ends with it.
func AppendEnding(name, ext string) string {
	if strings.HasSuffix(name, ext) {
		return name
	}
	return name + ext
}

// Load decodes the JSON file at path into a T.
func Load[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%s is not a valid JSON file: %w", path, err)
	}
	return v, nil
}

// Save writes v to path as JSON indented by four spaces.
func Save(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// LoadOrEmpty loads a JSON list. A missing, unreadable, empty or invalid
// file yields an empty list and a warning, so callers can start a new one.
func LoadOrEmpty[T any](path string, logger *zap.Logger) []T {
	if logger == nil {
		logger = zap.NewNop()
	}
	items, err := Load[[]T](path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("input file not found, creating a new list", zap.String("file", path))
	case err != nil:
		logger.Warn("ignoring the file as input, creating a new list", zap.String("file", path), zap.Error(err))
	case items == nil:
		logger.Warn("input file is empty, creating a new list", zap.String("file", path))
	default:
		return items
	}
	return []T{}
}

// RawList encodes every item on its own so it can be appended to a list
// whose existing entries are kept byte for byte.
func RawList[T any](items []T) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}
