package fileutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// LogFileMode is the permission used when a log file has to be created.
const LogFileMode os.FileMode = 0o644

// tailReadLimit bounds how much of a file Tail reads from the end.
const tailReadLimit = 64 << 10

// OpenAppend opens filePath for appending, creating it and its parent
// directory if needed. Existing content is never truncated.
func OpenAppend(filePath string) (*os.File, error) {
	if err := EnsureDirForFile(filePath); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFileMode)
	if err != nil {
		return nil, fmt.Errorf("open %s for append: %w", filePath, err)
	}
	return f, nil
}

// Tail returns at most maxLines trailing lines of filePath, without the final
// newline. A missing file yields an empty string and no error.
func Tail(filePath string, maxLines int) (string, error) {
	if maxLines <= 0 {
		return "", nil
	}
	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("open %s: %w", filePath, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", filePath, err)
	}
	offset := max(info.Size()-tailReadLimit, 0)
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek %s: %w", filePath, err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filePath, err)
	}

	data = bytes.TrimRight(data, "\n")
	if len(data) == 0 {
		return "", nil
	}
	lines := bytes.Split(data, []byte("\n"))
	// The first line is partial when the read started mid-file.
	if offset > 0 && len(lines) > 1 {
		lines = lines[1:]
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return string(bytes.Join(lines, []byte("\n"))), nil
}
