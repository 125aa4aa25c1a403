package ingest

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harborside/cranetrack/internal/config"
	"github.com/harborside/cranetrack/internal/model"
	"github.com/harborside/cranetrack/internal/resilience"
	"github.com/harborside/cranetrack/internal/store"
	"github.com/harborside/cranetrack/internal/tagdict"
)

// insertChunkSize bounds the number of samples per store write so a single
// huge log file does not turn into one giant transaction.
const insertChunkSize = 1000

// Runner executes batch ingestion runs: discover files, parse tracked tag
// lines, and load samples with idempotent writes. Files are processed by a
// worker pool; the natural-key dedup in the store makes concurrent writers
// safe.
type Runner struct {
	cfg    config.IngestConfig
	store  store.Store
	log    *zap.Logger
	parser *Parser
	retry  resilience.RetryConfig
}

// NewRunner loads the tag id list and optional mapping table and builds the
// line parser.
func NewRunner(cfg config.IngestConfig, st store.Store, log *zap.Logger) (*Runner, error) {
	tagIDs, err := tagdict.ReadTagIDs(cfg.TagIDsFile)
	if err != nil {
		return nil, err
	}

	dict := tagdict.Empty()
	if cfg.TagMappingFile != "" {
		if dict, err = tagdict.Load(cfg.TagMappingFile); err != nil {
			return nil, err
		}
		log.Info("loaded tag mapping table",
			zap.String("file", cfg.TagMappingFile),
			zap.Int("mappings", dict.Len()),
		)
	}

	parser, err := NewParser(ParserOptions{
		EquipmentPrefix: cfg.EquipmentPrefix,
		EquipmentStart:  cfg.EquipmentStart,
		EquipmentEnd:    cfg.EquipmentEnd,
		StatisticType:   cfg.StatisticType,
		TagIDs:          tagIDs,
		Dict:            dict,
	})
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:    cfg,
		store:  st,
		log:    log,
		parser: parser,
		retry:  resilience.DefaultRetryConfig(),
	}, nil
}

// Run executes one batch over the configured log directory. Parse failures
// and permanent write failures are counted and logged, never fatal; the run
// fails only when the directory cannot be read or the run row cannot be
// recorded.
func (r *Runner) Run(ctx context.Context) (*model.IngestRun, error) {
	run := &model.IngestRun{LogDir: r.cfg.LogDir}
	if err := r.store.StartIngestRun(ctx, run); err != nil {
		return nil, err
	}

	files, err := DiscoverFiles(r.cfg.LogDir, r.cfg.MaxFiles)
	if err != nil {
		return r.fail(ctx, run, err)
	}
	r.log.Info("starting ingest run",
		zap.String("run_id", run.ID),
		zap.String("log_dir", r.cfg.LogDir),
		zap.Int("files", len(files)),
	)

	var (
		filesScanned  atomic.Int64
		linesMatched  atomic.Int64
		inserted      atomic.Int64
		duplicates    atomic.Int64
		parseFailures atomic.Int64
		writeFailures atomic.Int64
	)

	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			batch, failures, err := r.parseFile(path)
			if err != nil {
				// Corrupt archives are skipped, not fatal.
				r.log.Warn("skipping unreadable log file", zap.String("file", path), zap.Error(err))
				return nil
			}
			filesScanned.Add(1)
			linesMatched.Add(int64(len(batch)))
			parseFailures.Add(int64(failures))

			for chunk := range chunks(batch, insertChunkSize) {
				n, err := resilience.DoVal(gctx, r.withRetryLog("insert samples"),
					func(ctx context.Context) (int, error) {
						return r.store.InsertSamples(ctx, chunk)
					})
				if err != nil {
					writeFailures.Add(int64(len(chunk)))
					r.log.Error("sample batch write failed",
						zap.String("file", path),
						zap.Int("samples", len(chunk)),
						zap.Error(err),
					)
					continue
				}
				inserted.Add(int64(n))
				duplicates.Add(int64(len(chunk) - n))
			}
			return nil
		})
	}

	runErr := g.Wait()

	run.FilesScanned = int(filesScanned.Load())
	run.LinesMatched = int(linesMatched.Load())
	run.SamplesInserted = int(inserted.Load())
	run.DuplicatesSkipped = int(duplicates.Load())
	run.ParseFailures = int(parseFailures.Load())

	if runErr != nil {
		return r.fail(ctx, run, runErr)
	}

	run.Status = model.IngestComplete
	if n := writeFailures.Load(); n > 0 {
		run.Error = fmt.Sprintf("%d samples lost to write failures", n)
	}
	if err := r.store.CompleteIngestRun(ctx, run); err != nil {
		return nil, err
	}

	r.log.Info("ingest run complete",
		zap.String("run_id", run.ID),
		zap.Int("files_scanned", run.FilesScanned),
		zap.Int("lines_matched", run.LinesMatched),
		zap.Int("samples_inserted", run.SamplesInserted),
		zap.Int("duplicates_skipped", run.DuplicatesSkipped),
		zap.Int("parse_failures", run.ParseFailures),
	)
	return run, nil
}

// parseFile scans one file and returns the extracted samples along with the
// count of tracked lines that failed to parse.
func (r *Runner) parseFile(path string) ([]model.MetricSample, int, error) {
	var batch []model.MetricSample
	failures := 0

	err := scanFile(path, func(line string) {
		sample, err := r.parser.ParseLine(line)
		if err != nil {
			failures++
			r.log.Warn("skipping malformed tag line", zap.String("file", path), zap.Error(err))
			return
		}
		if sample != nil {
			batch = append(batch, *sample)
		}
	})
	if err != nil {
		return nil, 0, err
	}
	return batch, failures, nil
}

func (r *Runner) fail(ctx context.Context, run *model.IngestRun, cause error) (*model.IngestRun, error) {
	run.Status = model.IngestFailed
	run.Error = cause.Error()
	if err := r.store.CompleteIngestRun(context.WithoutCancel(ctx), run); err != nil {
		r.log.Error("failed to record failed ingest run", zap.String("run_id", run.ID), zap.Error(err))
	}
	return run, eris.Wrap(cause, "ingest: run failed")
}

func (r *Runner) withRetryLog(operation string) resilience.RetryConfig {
	cfg := r.retry
	cfg.OnRetry = resilience.RetryLogger(r.log, operation)
	return cfg
}

// chunks yields successive slices of at most size elements.
func chunks[T any](items []T, size int) func(yield func([]T) bool) {
	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			end := start + size
			if end > len(items) {
				end = len(items)
			}
			if !yield(items[start:end]) {
				return
			}
		}
	}
}
