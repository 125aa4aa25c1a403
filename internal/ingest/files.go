package ingest

import (
	"archive/zip"
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DiscoverFiles lists the .log and .zip files in dir, newest mtime first,
// capped at maxFiles. Subdirectories are not descended into.
func DiscoverFiles(dir string, maxFiles int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read log dir %s", dir)
	}

	type candidate struct {
		path  string
		mtime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".log" && ext != ".zip" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: stat %s", e.Name())
		}
		candidates = append(candidates, candidate{
			path:  filepath.Join(dir, e.Name()),
			mtime: info.ModTime(),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].mtime.After(candidates[j].mtime)
	})
	if maxFiles > 0 && len(candidates) > maxFiles {
		candidates = candidates[:maxFiles]
	}

	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.path
	}
	return paths, nil
}

// scanFile feeds every line of a plain or zipped log file to fn. Zip archives
// contribute each of their .log entries in archive order.
func scanFile(path string, fn func(line string)) error {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return scanZip(path, fn)
	}

	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return scanLines(f, fn)
}

func scanZip(path string, fn func(line string)) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return eris.Wrapf(err, "ingest: open zip %s", path)
	}
	defer zr.Close() //nolint:errcheck

	for _, entry := range zr.File {
		if !strings.EqualFold(filepath.Ext(entry.Name), ".log") {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return eris.Wrapf(err, "ingest: open zip entry %s", entry.Name)
		}
		err = scanLines(rc, fn)
		rc.Close() //nolint:errcheck
		if err != nil {
			return eris.Wrapf(err, "ingest: read zip entry %s", entry.Name)
		}
	}
	return nil
}

func scanLines(r io.Reader, fn func(line string)) error {
	sc := bufio.NewScanner(r)
	// PLC result payloads can run long; the default 64K token cap is not
	// enough for the occasional dump line.
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		fn(sc.Text())
	}
	return eris.Wrap(sc.Err(), "ingest: scan lines")
}
