package pack

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Merge concatenates the records from all input packs in path order. With
// dedup, records sharing a content id collapse to the first occurrence.
// A missing input path fails the whole merge; a malformed line fails with
// a *FormatError naming the offending file and line.
func Merge(paths []string, dedup bool) ([]Record, error) {
	var merged []Record
	seen := make(map[string]bool)

	for _, path := range paths {
		records, err := ReadAll(path)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if dedup {
				id := rec.ContentID()
				if seen[id] {
					continue
				}
				seen[id] = true
			}
			merged = append(merged, rec)
		}
	}
	return merged, nil
}

// ReadAll parses every record in the pack at path, failing on the first
// malformed or invalid line.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pack: open %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := parseLine(line, lineNo)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("pack: read %s: %w", path, err)
	}
	return records, nil
}

// WriteAll writes records to path as a line-delimited pack, creating
// parent directories as needed.
func WriteAll(path string, records []Record) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("pack: create directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pack: create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("pack: encode record: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			_ = f.Close()
			return fmt.Errorf("pack: write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("pack: flush %s: %w", path, err)
	}
	return f.Close()
}
