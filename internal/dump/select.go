package dump

import "strings"

// Select resolves a table selection against the existing tables.
//
// Explicit names are kept, in selection order, when they exist. "*" or
// any "-name" exclusion adds every existing table not already kept and
// not excluded, in listing order. An empty selection selects everything.
func Select(selection, existing []string) []string {
	exists := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		exists[name] = struct{}{}
	}

	var (
		out  []string
		seen = make(map[string]struct{})
		rest = len(selection) == 0
	)

	for _, item := range selection {
		switch {
		case item == "*":
			rest = true
		case strings.HasPrefix(item, "-"):
			seen[strings.TrimPrefix(item, "-")] = struct{}{}
			rest = true
		default:
			if _, ok := exists[item]; !ok {
				continue
			}

			if _, dup := seen[item]; dup {
				continue
			}

			seen[item] = struct{}{}
			out = append(out, item)
		}
	}

	if !rest {
		return out
	}

	for _, name := range existing {
		if _, ok := seen[name]; ok {
			continue
		}

		out = append(out, name)
	}

	return out
}
