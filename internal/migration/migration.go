package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Well-known section keys. Any other word is accepted as a section name.
const (
	SectionProlog = "prolog"
	SectionUp     = "up"
	SectionDown   = "down"
	SectionEpilog = "epilog"
)

// mayFailMarker flags a statement whose failure is tolerated.
const mayFailMarker = '@'

// hashedSections lists, in order, the sections covered by Source.Hash.
var hashedSections = []string{SectionProlog, SectionUp, SectionDown, SectionEpilog} //nolint:gochecknoglobals // fixed order

// Statement is the raw text of one SQL statement as written in the file,
// trailing newline and may-fail marker included.
type Statement string

// MayFail reports whether the statement starts with the may-fail marker.
func (s Statement) MayFail() bool {
	trimmed := strings.TrimLeft(string(s), " \t\r\n")
	return trimmed != "" && trimmed[0] == mayFailMarker
}

// SQL returns the statement text to execute, with the may-fail marker removed.
func (s Statement) SQL() string {
	if !s.MayFail() {
		return string(s)
	}

	raw := string(s)
	i := strings.IndexByte(raw, mayFailMarker)

	return raw[:i] + raw[i+1:]
}

// Source is a parsed migration file: ordered statements grouped by section.
type Source struct {
	Name     string                 // file name, e.g. "202401150-create_users.sql"
	Sections map[string][]Statement // statements by section key
	Keys     []string               // section keys in declaration order
}

// Section returns the statements of the given section (nil if absent).
func (s *Source) Section(key string) []Statement {
	if s == nil {
		return nil
	}

	return s.Sections[key]
}

// Has reports whether the section was declared, even if empty.
func (s *Source) Has(key string) bool {
	if s == nil {
		return false
	}

	_, ok := s.Sections[key]

	return ok
}

// Hash returns the SHA-256 hex digest of the prolog, up, down and epilog
// sections. It depends only on content, never on the file name.
func (s *Source) Hash() string {
	h := sha256.New()

	for _, key := range hashedSections {
		parts := make([]string, 0, len(s.Section(key)))
		for _, st := range s.Section(key) {
			parts = append(parts, string(st))
		}

		h.Write([]byte(strings.Join(parts, "\n")))
	}

	return hex.EncodeToString(h.Sum(nil))
}
