package dump

import (
	"strconv"
	"strings"
	"time"

	"github.com/aqasim81/sqlmigrate/internal/database"
)

// TimeFormat is the layout of dumped timestamps.
const TimeFormat = "2006-01-02 15:04:05"

// mysqlEscaper escapes characters MySQL string literals cannot hold as is.
// "--" becomes "-\-" so that a "; --" inside a value never reads as the end
// of a statement.
var mysqlEscaper = strings.NewReplacer( //nolint:gochecknoglobals // stateless, safe for concurrent use
	"\x00", `\0`,
	`\`, `\\`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
	`"`, `\"`,
	`'`, `\'`,
	"--", `-\-`,
)

// postgresEscaper escapes for an E'' string; NUL cannot occur in text.
// "--" is split as for MySQL.
var postgresEscaper = strings.NewReplacer( //nolint:gochecknoglobals // stateless, safe for concurrent use
	`\`, `\\`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\x1a`,
	`'`, `\'`,
	"--", `-\-`,
)

// Literal renders v as an SQL literal for dialect d. The second result is
// false when v has no literal form.
func Literal(d database.Dialect, v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "NULL", true
	case string:
		return quote(d, x), true
	case []byte:
		return quote(d, string(x)), true
	case database.Decimal:
		return string(x), true
	case time.Time:
		return "'" + x.Format(TimeFormat) + "'", true
	case bool:
		if x {
			return "TRUE", true
		}

		return "FALSE", true
	case int:
		return strconv.Itoa(x), true
	case int8:
		return strconv.FormatInt(int64(x), 10), true
	case int16:
		return strconv.FormatInt(int64(x), 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint8:
		return strconv.FormatUint(uint64(x), 10), true
	case uint16:
		return strconv.FormatUint(uint64(x), 10), true
	case uint32:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	default:
		return "", false
	}
}

// quote renders s as a single-line string literal.
func quote(d database.Dialect, s string) string {
	switch d.Name() {
	case database.DriverPostgres:
		escaped := postgresEscaper.Replace(strings.ReplaceAll(s, "\x00", ""))
		if escaped == s {
			return "'" + s + "'"
		}

		return "E'" + escaped + "'"
	case database.DriverSQLite:
		return sqliteQuote(s)
	default:
		return "'" + mysqlEscaper.Replace(s) + "'"
	}
}

// sqliteQuote doubles quotes and splices line breaks and semicolons in
// with char() since SQLite string literals have no escape sequences.
func sqliteQuote(s string) string {
	if !strings.ContainsAny(s, "\x00\n\r;") {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}

	var (
		parts []string
		b     strings.Builder
	)

	flush := func() {
		if b.Len() > 0 {
			parts = append(parts, "'"+strings.ReplaceAll(b.String(), "'", "''")+"'")
			b.Reset()
		}
	}

	for _, r := range s {
		switch r {
		case 0, '\n', '\r', ';':
			flush()
			parts = append(parts, "char("+strconv.Itoa(int(r))+")")
		default:
			b.WriteRune(r)
		}
	}

	flush()

	return "(" + strings.Join(parts, " || ") + ")"
}
