package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

// DateFormat is the zero-padded date prefix of generated migration names.
const DateFormat = "20060102"

// Name builds a migration file name: "<date><step>-<slug>.sql".
// An empty date uses now formatted with DateFormat.
func Name(slug string, step int, date string, now time.Time) string {
	if date == "" {
		date = now.Format(DateFormat)
	}

	return fmt.Sprintf("%s%d-%s.sql", date, step, slug)
}

// Slug joins words into a file name slug.
func Slug(words []string) string {
	return strings.Join(words, "_")
}

// EmptyTemplate is the content of a freshly created migration.
const EmptyTemplate = "-- migrate: up\n-- migrate: down\n"

// WriteFile writes content to dir/name, creating dir if needed. Unless
// overwrite is set an existing file is left untouched and ErrFileExists
// is returned.
func WriteFile(fs vfs.FileSystem, dir, name, content string, overwrite bool) (string, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating migrations directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)

	if !overwrite {
		if _, err := fs.Stat(path); err == nil {
			return "", fmt.Errorf("%w: %s", ErrFileExists, path)
		}
	}

	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating migration file %s: %w", path, err)
	}

	if _, err := f.Write([]byte(content)); err != nil {
		f.Close()
		return "", fmt.Errorf("writing migration file %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing migration file %s: %w", path, err)
	}

	return path, nil
}
