package ingest

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harborside/cranetrack/internal/config"
	"github.com/harborside/cranetrack/internal/model"
	"github.com/harborside/cranetrack/internal/store"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func newTestRunner(t *testing.T, logDir string, workers int) (*Runner, store.Store) {
	t.Helper()

	tagIDs := filepath.Join(t.TempDir(), "tags.txt")
	writeFile(t, tagIDs, "29747\n31002\n")
	mapping := filepath.Join(t.TempDir(), "mapping.csv")
	writeFile(t, mapping, "code,name\n29747,TWISTLOCK COUNT\n")

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	r, err := NewRunner(config.IngestConfig{
		LogDir:          logDir,
		MaxFiles:        100,
		Workers:         workers,
		EquipmentPrefix: "RMG",
		EquipmentStart:  1,
		EquipmentEnd:    12,
		StatisticType:   "Perma",
		TagIDsFile:      tagIDs,
		TagMappingFile:  mapping,
	}, st, zaptest.NewLogger(t))
	require.NoError(t, err)
	return r, st
}

const testLog = "" +
	"2025-03-14_10.30.00.123456: (42): TAG:[RMG07/RMG07:CRANE.STATISTIC.Perma.29747] 1500\n" +
	"2025-03-14_10.31.00.000000: (43): TAG:[RMG07/RMG07:CRANE.STATISTIC.Perma.31002] 88.5\n" +
	"2025-03-14_10.32.00.000000: (44): TAG:[RMG07/RMG07:CRANE.STATISTIC.Perma.99999] 7\n" + // untracked
	"bad-stamp: (45): TAG:[RMG07/RMG07:CRANE.STATISTIC.Perma.29747] 1501\n" + // malformed
	"noise line\n"

func TestRunIngestsAndDedups(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "crane.log"), testLog)

	r, st := newTestRunner(t, dir, 1)
	ctx := context.Background()

	run, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.IngestComplete, run.Status)
	assert.Equal(t, 1, run.FilesScanned)
	assert.Equal(t, 2, run.LinesMatched)
	assert.Equal(t, 2, run.SamplesInserted)
	assert.Equal(t, 0, run.DuplicatesSkipped)
	assert.Equal(t, 1, run.ParseFailures)

	// The mapped tag lands under its canonical name, the unmapped one under
	// its raw code.
	pt, err := st.LatestValue(ctx, "RMG07", "TWISTLOCK COUNT")
	require.NoError(t, err)
	require.NotNil(t, pt)
	assert.Equal(t, 1500.0, pt.Value)

	pt, err = st.LatestValue(ctx, "RMG07", "31002")
	require.NoError(t, err)
	require.NotNil(t, pt)
	assert.Equal(t, 88.5, pt.Value)

	// Re-running over the same directory inserts nothing new.
	run2, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, run2.SamplesInserted)
	assert.Equal(t, 2, run2.DuplicatesSkipped)

	runs, err := st.ListIngestRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunReadsZipArchives(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "archive.zip"), map[string]string{
		"inner.log":  testLog,
		"readme.txt": "not a log, skipped",
	})

	r, st := newTestRunner(t, dir, 2)
	run, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.IngestComplete, run.Status)
	assert.Equal(t, 2, run.SamplesInserted)

	pt, err := st.LatestValue(context.Background(), "RMG07", "TWISTLOCK COUNT")
	require.NoError(t, err)
	require.NotNil(t, pt)
}

func TestRunSkipsCorruptZip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.zip"), "this is not a zip archive")
	writeFile(t, filepath.Join(dir, "good.log"), testLog)

	r, _ := newTestRunner(t, dir, 1)
	run, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.IngestComplete, run.Status)
	assert.Equal(t, 1, run.FilesScanned)
	assert.Equal(t, 2, run.SamplesInserted)
}

func TestRunFailsOnMissingDir(t *testing.T) {
	r, st := newTestRunner(t, filepath.Join(t.TempDir(), "does-not-exist"), 1)

	run, err := r.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.IngestFailed, run.Status)

	runs, err := st.ListIngestRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.IngestFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestDiscoverFilesNewestFirstCapped(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.log")
	mid := filepath.Join(dir, "mid.log")
	recent := filepath.Join(dir, "recent.log")
	writeFile(t, old, "")
	writeFile(t, mid, "")
	writeFile(t, recent, "")
	writeFile(t, filepath.Join(dir, "ignored.txt"), "")

	now := time.Now()
	require.NoError(t, os.Chtimes(old, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))
	require.NoError(t, os.Chtimes(mid, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(recent, now, now))

	files, err := DiscoverFiles(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{recent, mid}, files)

	files, err = DiscoverFiles(dir, 0)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}
