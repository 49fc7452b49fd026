package generate

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/phobologic/l10ngen/internal/catalog"
	"github.com/phobologic/l10ngen/internal/gettext"
	"github.com/phobologic/l10ngen/internal/toon"
)

// Status is the outcome of one destination.
type Status string

const (
	StatusWritten   Status = "written"
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "failed"
)

// DestinationError reports a destination that could not be read or written.
type DestinationError struct {
	Path string
	Op   string // "read" or "write"
	Err  error
}

func (e *DestinationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *DestinationError) Unwrap() error { return e.Err }

// DestinationResult describes what happened to one output file.
type DestinationResult struct {
	Locale  string
	Type    string
	Path    string
	Status  Status
	Entries int
	Merge   catalog.MergeStats
	Err     error
}

// Report summarizes a generate run.
type Report struct {
	Domain string

	Files      int // source files scanned
	Skipped    int // over the size limit
	Unreadable int // could not be read or scanned
	Calls      gettext.Stats
	Entries    int

	Destinations []DestinationResult
	Elapsed      time.Duration
}

// Failed returns the destinations that failed.
func (r *Report) Failed() []DestinationResult {
	var out []DestinationResult
	for _, d := range r.Destinations {
		if d.Status == StatusFailed {
			out = append(out, d)
		}
	}
	return out
}

// Err joins the errors of every failed destination, or returns nil.
func (r *Report) Err() error {
	return destinationsErr(r.Destinations)
}

// TOON encodes the report for the terminal.
func (r *Report) TOON() string {
	var doc toon.Document
	doc.Field("domain", r.Domain)
	doc.Field("files", r.Files)
	if r.Skipped > 0 {
		doc.Field("skipped", r.Skipped)
	}
	if r.Unreadable > 0 {
		doc.Field("unreadable", r.Unreadable)
	}
	doc.Field("calls", r.Calls.Calls)
	doc.Field("extracted", r.Calls.Extracted)
	doc.Field("invalid", r.Calls.Invalid)
	doc.Field("other_domain", r.Calls.OtherDomain)
	doc.Field("entries", r.Entries)
	encodeDestinations(&doc, r.Destinations)
	return doc.String()
}

func encodeDestinations(doc *toon.Document, results []DestinationResult) {
	rows := make([][]string, 0, len(results))
	for _, d := range results {
		msg := ""
		if d.Err != nil {
			msg = d.Err.Error()
		}
		rows = append(rows, []string{
			d.Locale,
			d.Type,
			d.Path,
			string(d.Status),
			strconv.Itoa(d.Entries),
			strconv.Itoa(d.Merge.Added),
			strconv.Itoa(d.Merge.Removed),
			msg,
		})
	}
	doc.Table("destinations",
		[]string{"locale", "type", "path", "status", "entries", "added", "removed", "error"},
		rows)
}

// EncodeResults renders a destinations table on its own, as printed by the
// convert command.
func EncodeResults(results []DestinationResult) string {
	var doc toon.Document
	encodeDestinations(&doc, results)
	return doc.String()
}

func destinationsErr(results []DestinationResult) error {
	var errs []error
	for _, d := range results {
		if d.Status == StatusFailed {
			errs = append(errs, d.Err)
		}
	}
	return errors.Join(errs...)
}
