package fileutil

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AppendLine appends line plus a trailing newline to path, creating the file
// (and its directory) if needed. Existing content is never rewritten.
func AppendLine(path, line string, perm os.FileMode) error {
	if strings.ContainsRune(line, '\n') {
		return fmt.Errorf("[AppendLine] line contains a newline")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("[AppendLine] failed to create directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("[AppendLine] failed to open %s: %w", path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("[AppendLine] failed to write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("[AppendLine] failed to sync %s: %w", path, err)
	}
	return f.Close()
}

// ReadLines returns the lines of path without their newlines. A missing file
// reads as empty.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[ReadLines] failed to read %s: %w", path, err)
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("[ReadLines] failed to scan %s: %w", path, err)
	}
	return lines, nil
}

// JoinLines is the inverse of ReadLines.
func JoinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}
