// Package tagdict resolves raw telemetry tag codes to canonical metric names.
package tagdict

import (
	"bufio"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/harborside/cranetrack/internal/tabular"
)

// nonPrintable strips everything outside printable ASCII (0x20..0x7E);
// control bytes bleed into tag descriptors in raw PLC log output.
var nonPrintable = runes.Remove(runes.Predicate(func(r rune) bool {
	return r < 0x20 || r > 0x7e
}))

// Clean strips non-printable characters and surrounding whitespace from a raw
// tag code so it can serve as a stable lookup key.
func Clean(raw string) string {
	cleaned, _, err := transform.String(nonPrintable, raw)
	if err != nil {
		// Remove-transforms don't fail on malformed input; fall back anyway.
		cleaned = raw
	}
	return strings.TrimSpace(cleaned)
}

// Dictionary maps cleaned raw tag codes to human-readable metric names. It is
// immutable after load; resolution is total — unmapped codes resolve to their
// cleaned raw form so ingestion never fails on a missing mapping.
type Dictionary struct {
	names map[string]string
}

// Empty returns a dictionary with no mappings; every code resolves to itself.
func Empty() *Dictionary {
	return &Dictionary{names: map[string]string{}}
}

// Load reads a two-column mapping table (raw tag code, replacement name) from
// a .csv or .xlsx file. The first row is treated as a header. Rows with fewer
// than two columns or an empty key are skipped.
func Load(path string) (*Dictionary, error) {
	rows, err := tabular.ReadFile(path, tabular.Options{SkipRows: 1})
	if err != nil {
		return nil, eris.Wrap(err, "tagdict: load mapping table")
	}

	names := make(map[string]string, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		key := Clean(row[0])
		val := Clean(row[1])
		if key == "" || val == "" {
			continue
		}
		names[key] = val
	}

	return &Dictionary{names: names}, nil
}

// Resolve maps a raw tag code to its canonical metric name. The input is
// cleaned first; unmapped codes return the cleaned input unchanged.
func (d *Dictionary) Resolve(raw string) string {
	key := Clean(raw)
	if name, ok := d.names[key]; ok {
		return name
	}
	return key
}

// Len reports how many mappings were loaded.
func (d *Dictionary) Len() int {
	return len(d.names)
}

// ReadTagIDs reads the list of raw tag ids to search for, one per line.
// Blank lines are skipped; each id is cleaned like a mapping key.
func ReadTagIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tagdict: open tag ids file %s", path)
	}
	defer f.Close() //nolint:errcheck

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := Clean(scanner.Text())
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "tagdict: read tag ids file")
	}
	if len(ids) == 0 {
		return nil, eris.Errorf("tagdict: tag ids file %s is empty", path)
	}
	return ids, nil
}
