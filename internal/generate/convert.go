package generate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/phobologic/l10ngen/internal/catalog"
	"github.com/phobologic/l10ngen/internal/format"
)

// ConvertOptions controls Convert.
type ConvertOptions struct {
	// InputType is the format tag of the input files. Required when the
	// source is a directory; otherwise guessed from the file extension.
	InputType string
	// Pattern narrows the files converted in directory mode. It is matched
	// against each file path.
	Pattern *regexp.Regexp

	IncludeHeaders bool
	SourceLocale   string
}

// Convert rewrites src, a catalog file or a directory of them, into toType.
// Each output is written next to its input with the new extension and is
// merged with an existing output first: entries only in the existing file are
// kept and its translations fill forms the input leaves empty. An output
// type sharing the input's extension replaces the input file.
func Convert(src, toType string, opts ConvertOptions, log zerolog.Logger) ([]DestinationResult, error) {
	out, ok := format.Lookup(toType)
	if !ok {
		return nil, fmt.Errorf("unknown output type %q", toType)
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil, err
	}

	inputType := opts.InputType
	switch {
	case inputType != "":
	case info.IsDir():
		return nil, errors.New("--input-type is required when converting a directory")
	default:
		if inputType = typeForExt(filepath.Ext(src)); inputType == "" {
			return nil, fmt.Errorf("cannot guess the type of %s, use --input-type", src)
		}
	}
	in, ok := format.Lookup(inputType)
	if !ok {
		return nil, fmt.Errorf("unknown input type %q", inputType)
	}

	files := []string{src}
	if info.IsDir() {
		if files, err = listCatalogs(src, in.Ext, opts.Pattern); err != nil {
			return nil, err
		}
	}

	log.Info().Str("from", in.Tag).Str("to", out.Tag).Int("files", len(files)).Msg("converting")

	results := make([]DestinationResult, 0, len(files))
	for _, path := range files {
		res := convertFile(in, out, path, opts)
		if res.Err != nil {
			log.Error().Err(res.Err).Str("path", path).Msg("conversion failed")
		} else {
			log.Info().Str("path", res.Path).Str("status", string(res.Status)).Msg("saved")
		}
		results = append(results, res)
	}
	return results, destinationsErr(results)
}

func convertFile(in, out *format.Format, path string, opts ConvertOptions) DestinationResult {
	target := strings.TrimSuffix(path, filepath.Ext(path)) + out.Ext
	res := DestinationResult{Type: out.Tag, Path: target}
	fail := func(op, p string, err error) DestinationResult {
		res.Status = StatusFailed
		res.Err = &DestinationError{Path: p, Op: op, Err: err}
		return res
	}

	cat, err := in.Read(path)
	if err != nil {
		return fail("read", path, err)
	}
	res.Locale = cat.Language

	// Formats sharing an extension convert in place. The input is the only
	// previous content then.
	if target != path {
		existing, err := out.Read(target)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fail("read", target, err)
		}
		if existing != nil {
			before := cat.Len()
			mergeExisting(cat, existing, out.Stored)
			res.Merge.Kept = cat.Len() - before
		}
	}
	res.Entries = cat.Len()

	changed, err := out.Write(cat, target, format.WriteOptions{
		IncludeHeaders: opts.IncludeHeaders,
		SourceLocale:   opts.SourceLocale,
	})
	if err != nil {
		return fail("write", target, err)
	}
	res.Status = StatusUnchanged
	if changed {
		res.Status = StatusWritten
	}
	return res
}

// mergeExisting adds the entries of a previous output to cat. An entry the
// output format stored under a reduced key fills every input entry reduced
// to that key instead of being kept as a separate message.
func mergeExisting(cat, existing *catalog.Catalog, stored func(catalog.Key) catalog.Key) {
	reduced := map[string][]catalog.Key{}
	if stored != nil {
		for _, e := range cat.Entries() {
			if k := stored(e.Key); k.ID() != e.Key.ID() {
				reduced[k.ID()] = append(reduced[k.ID()], e.Key)
			}
		}
	}
	for _, e := range existing.Entries() {
		keys := reduced[e.Key.ID()]
		if _, ok := cat.Get(e.Key); ok || len(keys) == 0 {
			cat.Add(e)
			continue
		}
		for _, k := range keys {
			alias := e.Clone()
			alias.Key = k
			cat.Add(alias)
		}
	}
}

// listCatalogs returns the files directly inside dir with extension ext
// whose path matches pattern, sorted.
func listCatalogs(dir, ext string, pattern *regexp.Regexp) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if pattern != nil && !pattern.MatchString(path) {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// typeForExt guesses a format tag from a file extension. Extensions shared
// by several formats resolve to the structured one.
func typeForExt(ext string) string {
	switch tag := strings.ToLower(strings.TrimPrefix(ext, ".")); tag {
	case "yml":
		return "yaml"
	case "xlf":
		return "xliff"
	default:
		if _, ok := format.Lookup(tag); ok {
			return tag
		}
	}
	return ""
}
