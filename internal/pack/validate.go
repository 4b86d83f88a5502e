package pack

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Validate performs a non-destructive check of the pack at path. It flags
// malformed JSON, missing required fields, source types outside the enum,
// duplicate ids within the file, and a missing file — all as data, so a
// caller can report every problem in one pass. An empty issue list means a
// clean pack.
//
// Only failures reading an existing file (permissions, I/O errors) are
// returned as an error.
func Validate(path string) ([]Issue, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Issue{{Line: 0, Field: "file", Reason: fmt.Sprintf("file does not exist: %s", path)}}, nil
		}
		return nil, fmt.Errorf("pack: open %s: %w", path, err)
	}
	defer f.Close()

	var issues []Issue
	seen := make(map[string]int) // content id -> first line
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			issues = append(issues, Issue{Line: lineNo, Reason: fmt.Sprintf("malformed JSON: %v", err)})
			continue
		}
		recIssues := rec.fieldIssues(lineNo)
		issues = append(issues, recIssues...)
		if len(recIssues) > 0 {
			continue
		}

		id := rec.ContentID()
		if first, dup := seen[id]; dup {
			issues = append(issues, Issue{
				Line: lineNo, Field: "id",
				Reason: fmt.Sprintf("duplicate of record on line %d", first),
			})
		} else {
			seen[id] = lineNo
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("pack: read %s: %w", path, err)
	}
	return issues, nil
}
