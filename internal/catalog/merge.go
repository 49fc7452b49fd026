package catalog

import (
	"errors"
	"fmt"
)

// ErrCorruptCatalog is matched by errors returned when a persisted catalog
// cannot be parsed.
var ErrCorruptCatalog = errors.New("corrupt catalog")

// CorruptCatalogError reports a persisted catalog that could not be parsed.
// Merging against it must never proceed as if it did not exist.
type CorruptCatalogError struct {
	Path string
	Err  error
}

func (e *CorruptCatalogError) Error() string {
	return fmt.Sprintf("corrupt catalog %s: %v", e.Path, e.Err)
}

func (e *CorruptCatalogError) Unwrap() []error {
	return []error{ErrCorruptCatalog, e.Err}
}

// MergeOptions controls Merge.
type MergeOptions struct {
	// KeepObsolete retains entries that exist only in the previous catalog.
	// They are dropped by default.
	KeepObsolete bool

	// Stored maps a key to the key the existing catalog's format reads it
	// back as, for formats that cannot keep every context. A fresh entry
	// with no exact match falls back to the entry under its stored key.
	// Nil means keys round trip unchanged.
	Stored func(Key) Key
}

// MergeStats counts what a merge did.
type MergeStats struct {
	Added   int // only in the fresh catalog
	Matched int // in both
	Removed int // only in the existing catalog, dropped
	Kept    int // only in the existing catalog, retained
	Dropped int // removed entries that carried a translation
}

// Merge combines a freshly extracted catalog with the previously persisted
// one. Translations, translator comments and flags come from existing;
// references always come from fresh; extracted comments are unioned.
// Neither input is modified. A nil existing returns a copy of fresh.
func Merge(fresh, existing *Catalog, opts MergeOptions) (*Catalog, MergeStats) {
	var stats MergeStats
	if existing == nil {
		out := fresh.Clone()
		stats.Added = out.Len()
		return out, stats
	}

	out := New(fresh.Domain, fresh.Language)
	out.Headers = existing.Headers.Clone()
	for _, h := range fresh.Headers {
		out.Headers.Set(h.Name, h.Value)
	}

	used := make(map[string]bool, len(existing.entries))
	for _, fe := range fresh.entries {
		merged := fe.Clone()
		if old, ok := previous(existing, fe.Key, opts.Stored); ok {
			used[old.Key.ID()] = true
			stats.Matched++
			merged.SetTranslations(old.Translations)
			merged.Comments = cloneSlice(old.Comments)
			merged.Flags = cloneSlice(old.Flags)
			merged.ExtractedComments = nil
			for _, c := range old.ExtractedComments {
				merged.AddExtractedComment(c)
			}
			for _, c := range fe.ExtractedComments {
				merged.AddExtractedComment(c)
			}
			merged.SetPlural(old.Plural)
		} else {
			stats.Added++
		}
		out.index[merged.Key.ID()] = len(out.entries)
		out.entries = append(out.entries, merged)
	}

	for _, old := range existing.entries {
		if used[old.Key.ID()] {
			continue
		}
		if !opts.KeepObsolete {
			stats.Removed++
			if old.IsTranslated() {
				stats.Dropped++
			}
			continue
		}
		stats.Kept++
		out.Add(old)
	}

	return out, stats
}

// previous finds the existing entry for a fresh key.
func previous(existing *Catalog, key Key, stored func(Key) Key) (*Entry, bool) {
	if e, ok := existing.Get(key); ok {
		return e, true
	}
	if stored == nil {
		return nil, false
	}
	if alt := stored(key); alt.ID() != key.ID() {
		return existing.Get(alt)
	}
	return nil, false
}
