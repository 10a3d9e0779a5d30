package migration

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const directivePrefix = "migrate:"

// lineKind classifies one input line for the parser state machine.
type lineKind int

const (
	lineBlank lineKind = iota
	lineComment
	lineDirective
	lineSQL
)

// parser holds the state of one Parse call: the active section key, the
// lines buffered for the statement being read, and the result so far.
type parser struct {
	key      string
	buffered []string
	sections map[string][]Statement
	keys     []string
}

// Parse reads a migration from r. Lines are grouped into statements (a
// statement ends on a line whose last token is ";", optionally followed by
// a "--" comment) and statements are grouped by the section selected with
// "-- migrate: <section>" directives. Text before any directive belongs to
// the prolog; a file without an up section runs its prolog as up.
func Parse(name string, r io.Reader) (*Source, error) {
	p := &parser{
		key:      SectionProlog,
		sections: make(map[string][]Statement),
	}

	br := bufio.NewReader(r)

	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadString('\n')
		if !utf8.ValidString(line) {
			return nil, fmt.Errorf("%w: %s line %d", ErrInvalidEncoding, name, lineNo)
		}

		if line != "" {
			p.feed(line)
		}

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", name, err)
		}
	}

	p.flush()
	p.promoteProlog()

	return &Source{Name: name, Sections: p.sections, Keys: p.keys}, nil
}

// feed advances the state machine by one line.
func (p *parser) feed(line string) {
	kind, key := classify(line)

	switch kind {
	case lineBlank, lineComment:
		return
	case lineDirective:
		p.flush()
		p.key = key
		p.declare(key)
	case lineSQL:
		p.buffered = append(p.buffered, line)
		if endsStatement(line) {
			p.flush()
		}
	}
}

// flush moves buffered lines into the active section as one statement.
func (p *parser) flush() {
	if len(p.buffered) == 0 {
		return
	}

	p.declare(p.key)
	p.sections[p.key] = append(p.sections[p.key], Statement(strings.Join(p.buffered, "")))
	p.buffered = p.buffered[:0]
}

func (p *parser) declare(key string) {
	if _, ok := p.sections[key]; ok {
		return
	}

	p.sections[key] = nil
	p.keys = append(p.keys, key)
}

func (p *parser) promoteProlog() {
	if _, ok := p.sections[SectionUp]; ok {
		return
	}

	prolog, ok := p.sections[SectionProlog]
	if !ok {
		return
	}

	p.sections[SectionUp] = prolog
	delete(p.sections, SectionProlog)

	for i, k := range p.keys {
		if k == SectionProlog {
			p.keys[i] = SectionUp
		}
	}
}

func classify(line string) (lineKind, string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return lineBlank, ""
	}

	if !strings.HasPrefix(trimmed, "--") {
		return lineSQL, ""
	}

	body := strings.TrimSpace(strings.TrimPrefix(trimmed, "--"))
	if !strings.HasPrefix(body, directivePrefix) {
		return lineComment, ""
	}

	rest := strings.TrimLeft(body[len(directivePrefix):], " \t")
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		rest = rest[:i]
	}

	return lineDirective, rest
}

// endsStatement reports whether some ";" in line is followed only by
// whitespace or a trailing "--" comment.
func endsStatement(line string) bool {
	for i := strings.IndexByte(line, ';'); i >= 0; {
		rest := strings.TrimLeft(line[i+1:], " \t\r\n")
		if rest == "" || strings.HasPrefix(rest, "--") {
			return true
		}

		next := strings.IndexByte(line[i+1:], ';')
		if next < 0 {
			break
		}

		i += next + 1
	}

	return false
}
