package generate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/l10ngen/internal/catalog"
	"github.com/phobologic/l10ngen/internal/config"
	"github.com/phobologic/l10ngen/internal/format"
)

func ptr(s string) *string { return &s }

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const samplePHP = `<?php
// translators: greeting on the home page
echo __('Hello', 'app');
printf(_n('%d item', '%d items', $n, 'app'), $n);
echo __('Other', 'other-domain');
echo __($dynamic, 'app');
`

// sourceTree writes a small plugin with PHP, Blade and JavaScript sources
// and a vendored file that must be excluded.
func sourceTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "src/a.php", samplePHP)
	writeFile(t, root, "src/views/home.blade.php", "<h1>{{ __('Welcome', 'app') }}</h1>\n")
	writeFile(t, root, "src/app.js", "wp.i18n.__( 'Save', 'app' );\n")
	writeFile(t, root, "vendor/lib/lib.php", "<?php __('Vendor', 'app');\n")
	return root
}

func testConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Domain = "app"
	cfg.Locales = []string{"fr_FR"}
	cfg.ExtractFrom = []string{root}
	cfg.ExtractTo = filepath.Join(t.TempDir(), "languages")
	cfg.Types = []string{"po", "json"}
	cfg.Workers = 2
	return cfg
}

func run(t *testing.T, cfg *config.Config) *Report {
	t.Helper()
	r, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	report, err := r.Run(context.Background())
	require.NoError(t, err)
	return report
}

func readCatalog(t *testing.T, tag, path string) *catalog.Catalog {
	t.Helper()
	f, ok := format.Lookup(tag)
	require.True(t, ok)
	cat, err := f.Read(path)
	require.NoError(t, err)
	return cat
}

func statuses(report *Report) map[string]Status {
	out := map[string]Status{}
	for _, d := range report.Destinations {
		out[filepath.Base(d.Path)] = d.Status
	}
	return out
}

func TestRunWritesEveryDestination(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, sourceTree(t))
	report := run(t, cfg)
	require.NoError(t, report.Err())

	assert.Equal(t, 3, report.Files)
	assert.Equal(t, 4, report.Calls.Extracted)
	assert.Equal(t, 1, report.Calls.Invalid)
	assert.Equal(t, 1, report.Calls.OtherDomain)
	assert.Equal(t, 4, report.Entries)

	assert.Equal(t, map[string]Status{
		"app-fr_FR.po":   StatusWritten,
		"app-fr_FR.json": StatusWritten,
		"app-en_US.po":   StatusWritten,
		"app-en_US.json": StatusWritten,
	}, statuses(report))

	cat := readCatalog(t, "po", filepath.Join(cfg.ExtractTo, "app-fr_FR.po"))
	assert.Equal(t, "fr_FR", cat.Language)
	assert.Equal(t, "app", cat.Domain)
	assert.Equal(t, "nplurals=2; plural=(n > 1);", cat.Headers.Get(catalog.HeaderPluralForms))

	hello, ok := cat.Get(catalog.NewKey(nil, "Hello"))
	require.True(t, ok)
	require.Len(t, hello.References, 1)
	assert.True(t, strings.HasSuffix(hello.References[0].File, "src/a.php"))
	assert.Equal(t, 3, hello.References[0].Line)
	assert.Equal(t, []string{"translators: greeting on the home page"}, hello.ExtractedComments)

	items, ok := cat.Get(catalog.NewKey(nil, "%d item"))
	require.True(t, ok)
	assert.Equal(t, "%d items", items.PluralString())

	for _, msg := range []string{"Welcome", "Save"} {
		_, ok := cat.Get(catalog.NewKey(nil, msg))
		assert.True(t, ok, msg)
	}
	for _, msg := range []string{"Other", "Vendor"} {
		_, ok := cat.Get(catalog.NewKey(nil, msg))
		assert.False(t, ok, msg)
	}
}

func TestRunTwiceLeavesFilesUnchanged(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, sourceTree(t))
	run(t, cfg)

	path := filepath.Join(cfg.ExtractTo, "app-fr_FR.po")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	report := run(t, cfg)
	for _, d := range report.Destinations {
		assert.Equal(t, StatusUnchanged, d.Status, d.Path)
	}
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestRunMergeKeepsTranslations(t *testing.T) {
	t.Parallel()

	root := sourceTree(t)
	cfg := testConfig(t, root)
	cfg.Types = []string{"po"}
	run(t, cfg)

	// A translator fills in the French catalog.
	path := filepath.Join(cfg.ExtractTo, "app-fr_FR.po")
	po, _ := format.Lookup("po")
	cat := readCatalog(t, "po", path)
	hello, ok := cat.Get(catalog.NewKey(nil, "Hello"))
	require.True(t, ok)
	hello.SetTranslations([]string{"Bonjour"})
	hello.AddComment("reviewed")
	_, err := po.Write(cat, path, format.WriteOptions{IncludeHeaders: true})
	require.NoError(t, err)

	// The source gains one string and loses another.
	writeFile(t, root, "src/a.php", samplePHP+"echo __('New', 'app');\n")
	require.NoError(t, os.Remove(filepath.Join(root, "src", "views", "home.blade.php")))

	report := run(t, cfg)
	require.NoError(t, report.Err())

	var fr DestinationResult
	for _, d := range report.Destinations {
		if d.Locale == "fr_FR" {
			fr = d
		}
	}
	assert.Equal(t, StatusWritten, fr.Status)
	assert.Equal(t, 1, fr.Merge.Added)
	assert.Equal(t, 1, fr.Merge.Removed)

	merged := readCatalog(t, "po", path)
	hello, ok = merged.Get(catalog.NewKey(nil, "Hello"))
	require.True(t, ok)
	assert.Equal(t, "Bonjour", hello.Translation())
	assert.Equal(t, []string{"reviewed"}, hello.Comments)

	_, ok = merged.Get(catalog.NewKey(nil, "New"))
	assert.True(t, ok)
	_, ok = merged.Get(catalog.NewKey(nil, "Welcome"))
	assert.False(t, ok)
}

func TestRunKeepObsolete(t *testing.T) {
	t.Parallel()

	root := sourceTree(t)
	cfg := testConfig(t, root)
	cfg.Types = []string{"json"}
	cfg.KeepObsolete = true
	run(t, cfg)

	require.NoError(t, os.Remove(filepath.Join(root, "src", "app.js")))
	run(t, cfg)

	cat := readCatalog(t, "json", filepath.Join(cfg.ExtractTo, "app-fr_FR.json"))
	_, ok := cat.Get(catalog.NewKey(nil, "Save"))
	assert.True(t, ok)
}

func frResult(t *testing.T, report *Report) DestinationResult {
	t.Helper()
	for _, d := range report.Destinations {
		if d.Locale == "fr_FR" {
			return d
		}
	}
	t.Fatal("no fr_FR destination")
	return DestinationResult{}
}

// TestRunDictKeepsContextTranslations verifies that a translation entered
// in a dictionary file survives regeneration even though the file cannot
// record the message context.
func TestRunDictKeepsContextTranslations(t *testing.T) {
	t.Parallel()

	for _, tag := range []string{"jsondict", "csvdict", "yamldict"} {
		t.Run(tag, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			writeFile(t, root, "a.php", "<?php echo _x('Post', 'noun', 'app');\n")
			cfg := testConfig(t, root)
			cfg.Types = []string{tag}
			run(t, cfg)

			f, _ := format.Lookup(tag)
			path := f.Path(cfg.ExtractTo, "app", "fr_FR")
			cat := readCatalog(t, tag, path)
			post, ok := cat.Get(catalog.NewKey(nil, "Post"))
			require.True(t, ok)
			post.SetTranslations([]string{"Article"})
			_, err := f.Write(cat, path, format.WriteOptions{IncludeHeaders: true})
			require.NoError(t, err)

			report := run(t, cfg)
			require.NoError(t, report.Err())
			assert.Equal(t, catalog.MergeStats{Matched: 1}, frResult(t, report).Merge)

			post, ok = readCatalog(t, tag, path).Get(catalog.NewKey(nil, "Post"))
			require.True(t, ok)
			assert.Equal(t, "Article", post.Translation())
		})
	}
}

func TestRunWarnsWhenTranslationsAreDropped(t *testing.T) {
	t.Parallel()

	root := sourceTree(t)
	cfg := testConfig(t, root)
	cfg.Types = []string{"po"}
	run(t, cfg)

	path := filepath.Join(cfg.ExtractTo, "app-fr_FR.po")
	po, _ := format.Lookup("po")
	cat := readCatalog(t, "po", path)
	save, ok := cat.Get(catalog.NewKey(nil, "Save"))
	require.True(t, ok)
	save.SetTranslations([]string{"Enregistrer"})
	_, err := po.Write(cat, path, format.WriteOptions{IncludeHeaders: true})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "src", "app.js")))

	var logs strings.Builder
	r, err := New(cfg, zerolog.New(zerolog.SyncWriter(&logs)))
	require.NoError(t, err)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	fr := frResult(t, report)
	assert.Equal(t, 1, fr.Merge.Removed)
	assert.Equal(t, 1, fr.Merge.Dropped)
	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.Contains(t, logs.String(), "removed entries that had translations")
}

func TestRunCorruptDestinationIsNotWritten(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, sourceTree(t))
	corrupt := "msgid \"broken\n"
	path := writeFile(t, cfg.ExtractTo, "app-fr_FR.po", corrupt)

	r, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	got := statuses(report)
	assert.Equal(t, StatusFailed, got["app-fr_FR.po"])
	assert.Equal(t, StatusWritten, got["app-fr_FR.json"])
	assert.Equal(t, StatusWritten, got["app-en_US.po"])

	err = report.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrCorruptCatalog))
	var de *DestinationError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "read", de.Op)
	assert.Equal(t, path, de.Path)
	require.Len(t, report.Failed(), 1)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, corrupt, string(data))
}

func TestRunUnwritableDestination(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, sourceTree(t))
	cfg.ExtractTo = writeFile(t, t.TempDir(), "not-a-dir", "")

	report := run(t, cfg)
	require.Len(t, report.Failed(), len(report.Destinations))
	var de *DestinationError
	assert.True(t, errors.As(report.Err(), &de))
}

func TestRunWritesMetricsFile(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, sourceTree(t))
	cfg.MetricsFile = filepath.Join(t.TempDir(), "l10ngen.prom")
	run(t, cfg)

	data, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `l10ngen_calls_total{status="extracted"} 4`)
	assert.Contains(t, text, "l10ngen_catalog_entries 4")
	assert.Contains(t, text, `l10ngen_destinations_total{status="written",type="po"} 2`)
	assert.Contains(t, text, `l10ngen_source_files_total{language="blade",result="scanned"} 1`)
}

func TestRunSkipsLargeFiles(t *testing.T) {
	t.Parallel()

	root := sourceTree(t)
	cfg := testConfig(t, root)
	cfg.MaxFileSize = 64

	report := run(t, cfg)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.Files)
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, sourceTree(t))
	r, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Types = []string{"docx"}
	_, err := New(cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docx")
}

func TestDestinationsDeduplicated(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Locale = "en_US"
	cfg.Locales = []string{"de_DE", "en_US"}
	cfg.Types = []string{"po", "mo", "po"}
	cfg.ExtractTo = "out"
	r, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []Destination{
		{Locale: "de_DE", Type: "po", Path: filepath.Join("out", "default-de_DE.po")},
		{Locale: "de_DE", Type: "mo", Path: filepath.Join("out", "default-de_DE.mo")},
		{Locale: "en_US", Type: "po", Path: filepath.Join("out", "default-en_US.po")},
		{Locale: "en_US", Type: "mo", Path: filepath.Join("out", "default-en_US.mo")},
	}, r.Destinations())
}

func TestReportTOON(t *testing.T) {
	t.Parallel()

	report := &Report{
		Domain:  "app",
		Files:   3,
		Entries: 2,
		Destinations: []DestinationResult{
			{Locale: "fr_FR", Type: "po", Path: "languages/app-fr_FR.po", Status: StatusWritten, Entries: 2, Merge: catalog.MergeStats{Added: 2}},
			{Locale: "fr_FR", Type: "mo", Path: "languages/app-fr_FR.mo", Status: StatusFailed, Err: errors.New("boom")},
		},
	}
	got := report.TOON()
	assert.Contains(t, got, "domain: app\nfiles: 3\n")
	assert.Contains(t, got, "destinations[2]{locale,type,path,status,entries,added,removed,error}:\n")
	assert.Contains(t, got, "  fr_FR,po,languages/app-fr_FR.po,written,2,2,0,\"\"\n")
	assert.True(t, strings.HasSuffix(got, "  fr_FR,mo,languages/app-fr_FR.mo,failed,0,0,0,boom"))
}

func TestConvertPOToMO(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "app-fr_FR.po")
	cat := catalog.New("app", "fr_FR")
	cat.Headers = catalog.DefaultHeaders("app", "fr_FR")
	e := cat.Insert(catalog.NewKey(nil, "Hello"), nil)
	e.SetTranslations([]string{"Bonjour"})
	po, _ := format.Lookup("po")
	_, err := po.Write(cat, src, format.WriteOptions{IncludeHeaders: true})
	require.NoError(t, err)

	results, err := Convert(src, "mo", ConvertOptions{IncludeHeaders: true}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, filepath.Join(dir, "app-fr_FR.mo"), results[0].Path)
	assert.Equal(t, StatusWritten, results[0].Status)
	assert.Equal(t, "fr_FR", results[0].Locale)

	mo := readCatalog(t, "mo", results[0].Path)
	hello, ok := mo.Get(catalog.NewKey(nil, "Hello"))
	require.True(t, ok)
	assert.Equal(t, "Bonjour", hello.Translation())

	// Converting again changes nothing.
	results, err = Convert(src, "mo", ConvertOptions{IncludeHeaders: true}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, results[0].Status)
}

func TestConvertDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"app-fr.po", "app-de.po", "other-fr.po"} {
		writeFile(t, dir, name, "msgid \"Hello\"\nmsgstr \"\"\n")
	}
	writeFile(t, dir, "notes.txt", "not a catalog")

	_, err := Convert(dir, "json", ConvertOptions{}, zerolog.Nop())
	require.Error(t, err)

	results, err := Convert(dir, "json", ConvertOptions{InputType: "po", Pattern: regexp.MustCompile(`app-`)}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(dir, "app-de.json"), results[0].Path)
	assert.Equal(t, filepath.Join(dir, "app-fr.json"), results[1].Path)

	_, err = os.Stat(filepath.Join(dir, "other-fr.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestConvertMergesExistingOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "app-fr.po", `msgid "Hello"
msgstr ""

msgid "Bye"
msgstr "Au revoir"
`)
	existing := catalog.New("app", "fr")
	e := existing.Insert(catalog.NewKey(nil, "Hello"), nil)
	e.SetTranslations([]string{"Salut"})
	e = existing.Insert(catalog.NewKey(nil, "Bye"), nil)
	e.SetTranslations([]string{"Ciao"})
	existing.Insert(catalog.NewKey(nil, "Old"), nil)
	js, _ := format.Lookup("json")
	_, err := js.Write(existing, filepath.Join(dir, "app-fr.json"), format.WriteOptions{})
	require.NoError(t, err)

	results, err := Convert(src, "json", ConvertOptions{}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Merge.Kept)

	got := readCatalog(t, "json", results[0].Path)
	for original, want := range map[string]string{"Hello": "Salut", "Bye": "Au revoir", "Old": ""} {
		e, ok := got.Get(catalog.NewKey(nil, original))
		require.True(t, ok, original)
		assert.Equal(t, want, e.Translation(), original)
	}
}

// TestConvertSharedExtension verifies conversions between formats that use
// the same file extension, which replace the input in place.
func TestConvertSharedExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to, name string
	}{
		{"json", "jsondict", "app-fr.json"},
		{"json", "jed", "app-fr.json"},
		{"csv", "csvdict", "app-fr.csv"},
		{"yaml", "yamldict", "app-fr.yml"},
	}
	for _, tt := range tests {
		t.Run(tt.from+"-"+tt.to, func(t *testing.T) {
			t.Parallel()

			src := filepath.Join(t.TempDir(), tt.name)
			cat := catalog.New("app", "fr")
			cat.Headers = catalog.DefaultHeaders("app", "fr")
			cat.Insert(catalog.NewKey(nil, "Hello"), nil).SetTranslations([]string{"Bonjour"})
			cat.Insert(catalog.NewKey(ptr("menu"), "File"), nil).SetTranslations([]string{"Fichier"})
			in, _ := format.Lookup(tt.from)
			_, err := in.Write(cat, src, format.WriteOptions{IncludeHeaders: true})
			require.NoError(t, err)

			results, err := Convert(src, tt.to, ConvertOptions{IncludeHeaders: true}, zerolog.Nop())
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, src, results[0].Path)
			assert.Equal(t, StatusWritten, results[0].Status)

			out, _ := format.Lookup(tt.to)
			got := readCatalog(t, tt.to, src)
			for _, k := range []catalog.Key{catalog.NewKey(nil, "Hello"), catalog.NewKey(ptr("menu"), "File")} {
				if out.Stored != nil {
					k = out.Stored(k)
				}
				_, ok := got.Get(k)
				assert.True(t, ok, k.String())
			}
		})
	}
}

func TestConvertDictFillsContextEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "app-fr.po", `msgctxt "noun"
msgid "Post"
msgstr ""
`)
	existing := catalog.New("app", "fr")
	existing.Insert(catalog.NewKey(nil, "Post"), nil).SetTranslations([]string{"Article"})
	dict, _ := format.Lookup("jsondict")
	_, err := dict.Write(existing, filepath.Join(dir, "app-fr.json"), format.WriteOptions{})
	require.NoError(t, err)

	results, err := Convert(src, "jsondict", ConvertOptions{}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Merge.Kept)
	assert.Equal(t, 1, results[0].Entries)

	got := readCatalog(t, "jsondict", results[0].Path)
	post, ok := got.Get(catalog.NewKey(nil, "Post"))
	require.True(t, ok)
	assert.Equal(t, "Article", post.Translation())
}

func TestConvertCorruptInput(t *testing.T) {
	t.Parallel()

	src := writeFile(t, t.TempDir(), "app-fr.po", "msgid \"broken\n")
	results, err := Convert(src, "mo", ConvertOptions{}, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrCorruptCatalog))
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
}

func TestTypeForExt(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		".po":    "po",
		".MO":    "mo",
		".yml":   "yaml",
		".xliff": "xliff",
		".xlf":   "xliff",
		".json":  "json",
		".txt":   "",
	}
	for ext, want := range tests {
		assert.Equal(t, want, typeForExt(ext), ext)
	}
}
