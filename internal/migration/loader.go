package migration

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

// filenamePattern matches migration files: any non-hidden "*.sql" file.
// Names are expected to start with a zero-padded date so that the
// lexicographic order is the chronological order.
var filenamePattern = regexp.MustCompile(`^[^.].*\.sql$`) //nolint:gochecknoglobals // compiled once, used by List

// Loader reads migration files from a directory of a virtual filesystem.
type Loader struct {
	fs     vfs.FileSystem
	dir    string
	logger *slog.Logger
}

// NewLoader creates a Loader for dir on fs.
func NewLoader(fs vfs.FileSystem, dir string, logger *slog.Logger) *Loader {
	return &Loader{fs: fs, dir: dir, logger: logger}
}

// List returns the names of the migration files in the directory, sorted
// ascending. Entries that are not regular "*.sql" files are skipped.
func (l *Loader) List() ([]string, error) {
	entries, err := vfs.ReadDir(l.fs, l.dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory %s: %w", l.dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.Mode().IsRegular() || !filenamePattern.MatchString(entry.Name()) {
			l.logger.Debug("skip non migration file", "name", entry.Name())
			continue
		}

		names = append(names, entry.Name())
	}

	slices.Sort(names)

	return names, nil
}

// Load reads and parses the named migrations in order. A file that fails
// to load is logged and skipped; the others are still returned.
func (l *Loader) Load(names []string) []*Source {
	sources := make([]*Source, 0, len(names))

	for _, name := range names {
		src, err := l.Read(name)
		if err != nil {
			l.logger.Error("load migration failed", "name", name, "error", err)
			continue
		}

		sources = append(sources, src)
	}

	return sources
}

// Read parses a single migration of the directory.
func (l *Loader) Read(name string) (*Source, error) {
	src, err := ReadFile(l.fs, filepath.Join(l.dir, name))
	if err != nil {
		return nil, &LoadError{Name: name, Err: err}
	}

	src.Name = name

	return src, nil
}

// ReadFile parses the migration at path, which may be outside the
// migrations directory (templates, ad hoc files). The Source is named
// after the base name of path.
func ReadFile(fs vfs.FileSystem, path string) (*Source, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening migration file %s: %w", path, err)
	}
	defer f.Close()

	return Parse(filepath.Base(path), f)
}
