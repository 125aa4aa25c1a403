package store

import (
	"embed"
	"io/fs"
	"sort"

	"github.com/rotisserie/eris"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// migrationFiles returns the dialect's migration filenames in apply order
// (lexicographic, zero-padded numeric prefixes).
func migrationFiles(dialect string) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations/"+dialect)
	if err != nil {
		return nil, eris.Wrapf(err, "store: read %s migration dir", dialect)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func migrationSQL(dialect, name string) (string, error) {
	data, err := migrationFS.ReadFile("migrations/" + dialect + "/" + name)
	if err != nil {
		return "", eris.Wrapf(err, "store: read migration %s", name)
	}
	return string(data), nil
}
