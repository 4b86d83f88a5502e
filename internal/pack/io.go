package pack

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/noetic-dev/reasoningbank/internal/model"
	"github.com/noetic-dev/reasoningbank/internal/storage"
)

// maxLineBytes bounds a single pack line. Content tops out at 64 KB by
// model validation; the extra headroom covers JSON escaping and metadata.
const maxLineBytes = 1 << 20

// Export writes the store's memory items matching the filter to path as a
// line-delimited pack, creating parent directories as needed. Returns the
// number of records written.
func Export(ctx context.Context, db *storage.DB, path string, filter model.MemoryFilter) (int, error) {
	items, err := db.ListMemories(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("pack: export: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("pack: create directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("pack: create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	count := 0
	for _, item := range items {
		data, err := json.Marshal(FromItem(item))
		if err != nil {
			_ = f.Close()
			return 0, fmt.Errorf("pack: encode record: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			_ = f.Close()
			return 0, fmt.Errorf("pack: write %s: %w", path, err)
		}
		count++
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("pack: flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("pack: close %s: %w", path, err)
	}
	return count, nil
}

// ImportResult reports what Import did.
type ImportResult struct {
	Inserted         int `json:"inserted"`
	SkippedDuplicate int `json:"skipped_duplicate"`
}

// Import reads the pack at path and adds every record to the store. Ids
// are recomputed from content, so an item imports to exactly the id a
// direct add would produce. Duplicates (within the file or against the
// store) are skipped, not errors. Counters are not imported: a reimported
// item starts at zero, like any other insert.
//
// The whole file is parsed before anything is written, and all inserts run
// in a single transaction: a malformed or invalid line fails the import
// with a *FormatError citing that line and leaves the store untouched.
func Import(ctx context.Context, db *storage.DB, path string) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("pack: open %s: %w", path, err)
	}
	defer f.Close()

	var items []model.MemoryItem
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
			return ImportResult{}, err
		}
		items = append(items, rec.Item())
	}
	if err := scanner.Err(); err != nil {
		return ImportResult{}, fmt.Errorf("pack: read %s: %w", path, err)
	}

	inserted, skipped, err := db.InsertMemories(ctx, items)
	if err != nil {
		return ImportResult{}, fmt.Errorf("pack: import %s: %w", path, err)
	}
	return ImportResult{Inserted: inserted, SkippedDuplicate: skipped}, nil
}
