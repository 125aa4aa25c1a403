package tagdict

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "GA_HO_DIST", "GA_HO_DIST"},
		{"surrounding whitespace", "  GA_HO_DIST ", "GA_HO_DIST"},
		{"control bytes", "GA_HO\x00_DIST\x07", "GA_HO_DIST"},
		{"del byte", "GA\x7f_TR_CNT", "GA_TR_CNT"},
		{"non-ascii", "GA_HO_DISTµ", "GA_HO_DIST"},
		{"only junk", "\x00\x01\x02", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func writeMapping(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tag_change.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AndResolve(t *testing.T) {
	path := writeMapping(t, "TAG,FV\nGA_HO_DIST,Hoist travel distance\nGA_TR_CNT,Trolley cycle count\n")

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())

	assert.Equal(t, "Hoist travel distance", d.Resolve("GA_HO_DIST"))
	// raw input is cleaned before lookup
	assert.Equal(t, "Hoist travel distance", d.Resolve(" GA_HO_DIST\x00 "))
}

func TestResolve_FallsBackToCleanedRaw(t *testing.T) {
	d := Empty()
	assert.Equal(t, "GA_UNKNOWN", d.Resolve("GA_UNKNOWN"))
	assert.Equal(t, "GA_UNKNOWN", d.Resolve("\x02GA_UNKNOWN\r"))
}

func TestLoad_SkipsBadRows(t *testing.T) {
	path := writeMapping(t, "TAG,FV\nonly_one_column\nGOOD,Fine\n,empty_key\n")

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())
	assert.Equal(t, "Fine", d.Resolve("GOOD"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestReadTagIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tag_ids.txt")
	require.NoError(t, os.WriteFile(path, []byte("GA_HO_DIST\n\n  GA_TR_CNT \nGA_SP_TWL\n"), 0o644))

	ids, err := ReadTagIDs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"GA_HO_DIST", "GA_TR_CNT", "GA_SP_TWL"}, ids)
}

func TestReadTagIDs_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tag_ids.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0o644))

	_, err := ReadTagIDs(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}
