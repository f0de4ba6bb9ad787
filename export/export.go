// ABOUTME: Writes query results and access lists to pipe-delimited text files.
// ABOUTME: Destinations either overwrite (atomically) or append, writing the header only into an empty file.

// Package export persists tables produced by the powerbi client.
package export

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rcresswell/pbi-report/powerbi"
)

const (
	DefaultQueryFile = "__resp.txt"
	DefaultUsersFile = "__app_users__.txt"

	Separator = "|"
)

type Mode string

const (
	Overwrite Mode = "overwrite"
	Append    Mode = "append"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case Overwrite, "":
		return Overwrite, nil
	case Append:
		return Append, nil
	}
	return "", fmt.Errorf("unknown write mode %q (want overwrite or append)", s)
}

type Destination struct {
	Path string
	Mode Mode
}

// IsXLSX reports whether the destination should be written as a workbook.
func (d Destination) IsXLSX() bool {
	return strings.EqualFold(filepath.Ext(d.Path), ".xlsx")
}

// WriteTable writes a query result, choosing the format from the file extension.
func WriteTable(dest Destination, t *powerbi.Table) error {
	if dest.IsXLSX() {
		return WriteXLSX(dest, t.Columns, t.Rows)
	}
	return writeDelimited(dest, t.HeaderLine(Separator), t.Lines(Separator))
}

var userColumns = []string{"name", "email", "rights"}

func WriteUsers(dest Destination, users []powerbi.UserAccess) error {
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{u.Name, u.Email, u.Rights})
	}

	if dest.IsXLSX() {
		return WriteXLSX(dest, userColumns, rows)
	}

	t := &powerbi.Table{Columns: userColumns, Rows: rows}
	return writeDelimited(dest, t.HeaderLine(Separator), t.Lines(Separator))
}

// WriteRaw writes body unchanged.
func WriteRaw(dest Destination, body []byte) error {
	if dest.Mode == Append {
		return appendFile(dest.Path, "", []string{string(body)})
	}
	return atomicWriteFile(dest.Path, body, 0644)
}

func writeDelimited(dest Destination, header string, lines []string) error {
	if dest.Mode == Append {
		return appendFile(dest.Path, header, lines)
	}

	var b strings.Builder
	b.WriteString(header)
	for _, line := range lines {
		b.WriteString(line)
	}
	return atomicWriteFile(dest.Path, []byte(b.String()), 0644)
}

func appendFile(path, header string, lines []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	if info.Size() == 0 && header != "" {
		if _, err := f.WriteString(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, line := range lines {
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return f.Close()
}

// atomicWriteFile writes data to a temp file next to path and renames it into
// place, so a reader never sees a partially written file.
func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	_ = os.Chmod(tmpPath, perm)

	// Windows refuses to rename over an existing file.
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			return fmt.Errorf("rename: %v (after remove: %v)", err, err2)
		}
	}
	return nil
}
