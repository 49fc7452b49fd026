package gettext

import (
	"iter"

	"github.com/rs/zerolog"

	"github.com/phobologic/l10ngen/internal/catalog"
	"github.com/phobologic/l10ngen/internal/scan"
)

// Status classifies the outcome of resolving one call record.
type Status int

const (
	Unmatched Status = iota // function not in the table
	Extracted               // all required slots resolved
	Invalid                 // matched, but a required slot is missing or not literal
)

func (s Status) String() string {
	switch s {
	case Extracted:
		return "extracted"
	case Invalid:
		return "invalid"
	}
	return "unmatched"
}

// Result is a call record mapped through its signature.
type Result struct {
	Status Status
	Reason string // set for Invalid

	Key      catalog.Key
	Plural   *string
	Domain   *string
	Comments []string
}

// Resolve maps rec onto message fields using the signature registered for
// its function name. Singular and plural are required and must be literal;
// a non-literal context or domain is treated as absent.
func Resolve(rec scan.CallRecord, t *Table) Result {
	sig, ok := t.Lookup(rec.Function)
	if !ok {
		return Result{Status: Unmatched}
	}
	if len(rec.Args) < sig.Shape.RequiredArgs() {
		return Result{Status: Invalid, Reason: "too few arguments"}
	}
	l := layouts[sig.Shape]

	singular := rec.Args[l.singular]
	switch {
	case !singular.Resolved:
		return Result{Status: Invalid, Reason: "non-literal singular"}
	case singular.Value == "":
		return Result{Status: Invalid, Reason: "empty singular"}
	}

	var plural *string
	if l.plural != none {
		a := rec.Args[l.plural]
		if !a.Resolved {
			return Result{Status: Invalid, Reason: "non-literal plural"}
		}
		plural = &a.Value
	}

	return Result{
		Status:   Extracted,
		Key:      catalog.NewKey(optional(rec.Args, l.context), singular.Value),
		Plural:   plural,
		Domain:   optional(rec.Args, l.domain),
		Comments: rec.Comments,
	}
}

func optional(args []scan.Arg, slot int) *string {
	if slot == none || !args[slot].Resolved {
		return nil
	}
	v := args[slot].Value
	return &v
}

// Stats counts what Build did with the records of one or more files.
type Stats struct {
	Calls       int // records seen
	Extracted   int // inserted into the catalog
	Invalid     int // matched but discarded
	OtherDomain int // extracted for a different domain
	Unmatched   int // function not in the table
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Calls += o.Calls
	s.Extracted += o.Extracted
	s.Invalid += o.Invalid
	s.OtherDomain += o.OtherDomain
	s.Unmatched += o.Unmatched
}

// Build inserts every extractable record into cat, referencing file. Records
// for a domain other than cat.Domain are skipped. Entries are only ever
// added or enriched.
func Build(records iter.Seq[scan.CallRecord], t *Table, cat *catalog.Catalog, file string, log zerolog.Logger) Stats {
	var stats Stats
	for rec := range records {
		stats.Calls++
		res := Resolve(rec, t)
		switch res.Status {
		case Unmatched:
			stats.Unmatched++
			continue
		case Invalid:
			stats.Invalid++
			log.Debug().
				Str("file", file).
				Int("line", rec.Line).
				Str("function", rec.Function).
				Str("reason", res.Reason).
				Msg("skipping call")
			continue
		}
		if res.Domain != nil && *res.Domain != cat.Domain {
			stats.OtherDomain++
			continue
		}

		stats.Extracted++
		e := cat.Insert(res.Key, res.Plural)
		e.AddReference(catalog.Reference{File: file, Line: rec.Line})
		for _, c := range res.Comments {
			e.AddExtractedComment(c)
		}
	}
	return stats
}
