package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

func writeJSONLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return withCode(exitDB, fmt.Errorf("json encode: %w", err))
	}
	return nil
}

// writeOutput writes data to path, or to w when path is empty or "-".
func writeOutput(w io.Writer, path string, data []byte) error {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		if _, err := w.Write(data); err != nil {
			return withCode(exitDB, fmt.Errorf("write output: %w", err))
		}
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return withCode(exitDB, fmt.Errorf("mkdir %s: %w", dir, err))
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return withCode(exitDB, fmt.Errorf("write %s: %w", path, err))
	}
	return nil
}

func openInput(path string) (*os.File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, withCode(exitUsage, fmt.Errorf("--input is required"))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("open %s: %w", path, err))
	}
	return f, nil
}
