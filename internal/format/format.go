// Package format reads and writes catalogs in the supported interchange
// formats.
package format

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/phobologic/l10ngen/internal/catalog"
)

// WriteOptions controls encoding.
type WriteOptions struct {
	// IncludeHeaders writes the catalog header block where the format has
	// one.
	IncludeHeaders bool
	// SourceLocale is the language the original strings are written in.
	SourceLocale string
}

// Format is one registered serializer.
type Format struct {
	Tag string
	Ext string

	// Lossless formats keep references and comments across a round trip.
	Lossless bool

	// Stored returns the key an entry is read back under, for formats that
	// cannot keep every message context. Nil means keys round trip.
	Stored func(catalog.Key) catalog.Key

	Encode func(w io.Writer, cat *catalog.Catalog, opts WriteOptions) error
	Decode func(data []byte) (*catalog.Catalog, error)
}

var formats = map[string]*Format{}

func register(f *Format) {
	formats[f.Tag] = f
}

// Lookup returns the format registered under tag.
func Lookup(tag string) (*Format, bool) {
	f, ok := formats[tag]
	return f, ok
}

// Tags returns every registered tag, sorted.
func Tags() []string {
	return slices.Sorted(maps.Keys(formats))
}

// Path returns the destination file for a domain and locale inside dir.
func (f *Format) Path(dir, domain, locale string) string {
	return filepath.Join(dir, domain+"-"+locale+f.Ext)
}

// Read loads a catalog from path. A missing file is reported with an error
// matching fs.ErrNotExist. Content that cannot be decoded yields a
// *catalog.CorruptCatalogError.
func (f *Format) Read(path string) (*catalog.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cat, err := f.Decode(data)
	if err != nil {
		return nil, &catalog.CorruptCatalogError{Path: path, Err: fmt.Errorf("%s: %w", f.Tag, err)}
	}
	return cat, nil
}

// Write encodes cat to path. The file is replaced atomically and left
// untouched when its content would not change. It reports whether the file
// was written.
func (f *Format) Write(cat *catalog.Catalog, path string, opts WriteOptions) (bool, error) {
	var buf bytes.Buffer
	if err := f.Encode(&buf, cat, opts); err != nil {
		return false, fmt.Errorf("encoding %s: %w", f.Tag, err)
	}

	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, buf.Bytes()) {
		return false, nil
	}
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return false, err
	}
	return true, nil
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// errNoMessages is returned by decoders that found no recognizable content.
var errNoMessages = errors.New("no messages found")

// forms returns the translations to write for e, padded to the catalog's
// plural count for plural entries.
func forms(e *catalog.Entry, nplurals int) []string {
	if !e.IsPlural() {
		return []string{e.Translation()}
	}
	out := make([]string, max(nplurals, len(e.Translations)))
	copy(out, e.Translations)
	return out
}

// contextless is the stored key of formats keyed by the original string
// alone.
func contextless(k catalog.Key) catalog.Key {
	return catalog.NewKey(nil, k.Singular)
}

// newCatalog builds an empty catalog labelled from its headers.
func newCatalog(headers catalog.Headers) *catalog.Catalog {
	cat := catalog.New(headers.Get(catalog.HeaderDomain), headers.Get(catalog.HeaderLanguage))
	cat.Headers = headers
	return cat
}

// headerBlock returns the headers to encode, or nil when disabled.
func headerBlock(cat *catalog.Catalog, opts WriteOptions) catalog.Headers {
	if !opts.IncludeHeaders {
		return nil
	}
	return cat.Headers
}
