// Package generate runs an extraction: it scans the source roots, builds the
// catalog and merges it into every destination file.
package generate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/l10ngen/internal/catalog"
	"github.com/phobologic/l10ngen/internal/config"
	"github.com/phobologic/l10ngen/internal/discover"
	"github.com/phobologic/l10ngen/internal/format"
	"github.com/phobologic/l10ngen/internal/gettext"
	"github.com/phobologic/l10ngen/internal/lang"
	"github.com/phobologic/l10ngen/internal/scan"
)

// Runner executes generate runs for one configuration.
type Runner struct {
	cfg     *config.Config
	table   *gettext.Table
	log     zerolog.Logger
	metrics *metrics
}

// New validates cfg and returns a Runner for it.
func New(cfg *config.Config, log zerolog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	table, err := cfg.Table()
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, table: table, log: log, metrics: newMetrics()}, nil
}

// Destination is one output file of a run.
type Destination struct {
	Locale string
	Type   string
	Path   string
}

// Destinations lists the output files for every target locale and type, in
// locale-major order, without duplicate paths.
func (r *Runner) Destinations() []Destination {
	var out []Destination
	seen := map[string]bool{}
	for _, locale := range r.cfg.TargetLocales() {
		for _, tag := range r.cfg.Types {
			f, _ := format.Lookup(tag)
			path := f.Path(r.cfg.ExtractTo, r.cfg.Domain, locale)
			if seen[path] {
				continue
			}
			seen[path] = true
			out = append(out, Destination{Locale: locale, Type: tag, Path: path})
		}
	}
	return out
}

// Run extracts the catalog and writes every destination. The returned error
// is non-nil only when extraction itself failed; destination failures are
// recorded in the report and returned by Report.Err.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	report := &Report{Domain: r.cfg.Domain}
	fresh, err := r.Extract(ctx, report)
	if err != nil {
		return nil, err
	}
	report.Entries = fresh.Len()

	dests := r.Destinations()
	report.Destinations = make([]DestinationResult, len(dests))

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Workers)
	for i, d := range dests {
		g.Go(func() error {
			report.Destinations[i] = r.write(fresh, d)
			return nil
		})
	}
	_ = g.Wait()

	for _, d := range report.Destinations {
		r.metrics.observeDestination(d)
	}
	report.Elapsed = time.Since(start)
	r.metrics.finish(report.Entries, report.Elapsed)

	if r.cfg.MetricsFile != "" {
		if err := r.metrics.writeTextfile(r.cfg.MetricsFile); err != nil {
			return report, fmt.Errorf("writing metrics: %w", err)
		}
	}
	return report, nil
}

// Extract scans every source root into a new catalog for the configured
// domain, recording file and call counts in report.
func (r *Runner) Extract(ctx context.Context, report *Report) (*catalog.Catalog, error) {
	cfg := r.cfg
	cat := catalog.New(cfg.Domain, cfg.Locale)
	cat.Headers = catalog.DefaultHeaders(cfg.Domain, cfg.Locale)

	opts := scan.Options{
		ExtractComments: cfg.ExtractComments,
		CommentPrefixes: cfg.CommentPrefixes,
		Match:           r.table.Has,
	}

	for _, root := range cfg.ExtractFrom {
		files, err := discover.Files(root, discover.Options{Exclude: cfg.Exclude})
		if err != nil {
			return nil, fmt.Errorf("discovering files: %w", err)
		}
		r.log.Info().Str("root", root).Int("files", len(files)).Msg("extracting strings")

		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ref := filepath.ToSlash(filepath.Join(root, filepath.FromSlash(f.Path)))
			log := r.log.With().Str("file", ref).Logger()

			if cfg.MaxFileSize > 0 && f.Size > cfg.MaxFileSize {
				log.Warn().Int64("size", f.Size).Msg("skipped: larger than max_file_size")
				report.Skipped++
				r.metrics.observeFile(f.Language, "skipped")
				continue
			}

			source, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(f.Path)))
			if err != nil {
				log.Warn().Err(err).Msg("failed to read")
				report.Unreadable++
				r.metrics.observeFile(f.Language, "failed")
				continue
			}
			records, err := lang.Languages[f.Language].Calls(source, opts)
			if err != nil {
				log.Warn().Err(err).Msg("failed to scan")
				report.Unreadable++
				r.metrics.observeFile(f.Language, "failed")
				continue
			}

			stats := gettext.Build(records, r.table, cat, ref, log)
			log.Debug().Int("extracted", stats.Extracted).Int("invalid", stats.Invalid).Msg("scanned")
			report.Files++
			report.Calls.Add(stats)
			r.metrics.observeFile(f.Language, "scanned")
		}
	}
	r.metrics.observeCalls(report.Calls)
	return cat, nil
}

// write merges fresh into one destination. A destination that cannot be
// read, including one holding a corrupt catalog, is never written.
func (r *Runner) write(fresh *catalog.Catalog, d Destination) DestinationResult {
	res := DestinationResult{Locale: d.Locale, Type: d.Type, Path: d.Path}
	log := r.log.With().Str("path", d.Path).Logger()
	fail := func(op string, err error) DestinationResult {
		res.Status = StatusFailed
		res.Err = &DestinationError{Path: d.Path, Op: op, Err: err}
		log.Error().Err(err).Msg("destination failed")
		return res
	}

	f, _ := format.Lookup(d.Type)
	cat := fresh.Clone()
	cat.SetLanguage(d.Locale)

	existing, err := f.Read(d.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fail("read", err)
	}

	merged, stats := catalog.Merge(cat, existing, catalog.MergeOptions{
		KeepObsolete: r.cfg.KeepObsolete,
		Stored:       f.Stored,
	})
	res.Merge = stats
	if stats.Dropped > 0 {
		log.Warn().Int("dropped", stats.Dropped).Msg("removed entries that had translations")
	}
	res.Entries = merged.Len()

	changed, err := f.Write(merged, d.Path, format.WriteOptions{
		IncludeHeaders: r.cfg.IncludeHeaders,
		SourceLocale:   r.cfg.Locale,
	})
	if err != nil {
		return fail("write", err)
	}
	res.Status = StatusUnchanged
	if changed {
		res.Status = StatusWritten
	}
	log.Info().
		Str("status", string(res.Status)).
		Int("entries", res.Entries).
		Int("added", stats.Added).
		Int("removed", stats.Removed).
		Msg("destination")
	return res
}
