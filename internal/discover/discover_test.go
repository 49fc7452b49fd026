package discover

import (
	"os"
	"path/filepath"
	"testing"
)

func paths(entries []FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestDiscoverSourceFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "plugin.php", "<?php __('a', 'd');")
	writeFile(t, dir, "lib/util.php", "<?php")
	writeFile(t, dir, "views/home.blade.php", "{{ __('a') }}")
	writeFile(t, dir, "js/app.js", "__('a')")
	// Unsupported file should be ignored
	writeFile(t, dir, "readme.txt", "hello")
	// Hidden file should be ignored
	writeFile(t, dir, ".hidden.php", "secret")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	want := []string{"js/app.js", "lib/util.php", "plugin.php", "views/home.blade.php"}
	got := paths(entries)
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %q, want %q", i, got[i], want[i])
		}
	}

	langs := map[string]string{
		"js/app.js":            "javascript",
		"lib/util.php":         "php",
		"plugin.php":           "php",
		"views/home.blade.php": "blade",
	}
	for _, e := range entries {
		if e.Language != langs[e.Path] {
			t.Errorf("entry %q: language = %q, want %q", e.Path, e.Language, langs[e.Path])
		}
	}
	if entries[2].Size != int64(len("<?php __('a', 'd');")) {
		t.Errorf("plugin.php size = %d", entries[2].Size)
	}
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.php", "<?php")
	writeFile(t, dir, ".git/hooks/x.php", "<?php")
	writeFile(t, dir, ".hidden/secret.php", "<?php")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d: %v", len(entries), paths(entries))
	}
	if entries[0].Path != "main.php" {
		t.Errorf("expected main.php, got %q", entries[0].Path)
	}
}

func TestDiscoverExcludePatterns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.php", "<?php")
	writeFile(t, dir, "vendor/lib/a.php", "<?php")
	writeFile(t, dir, "node_modules/pkg/index.js", "x")
	writeFile(t, dir, "assets/app.min.js", "x")
	writeFile(t, dir, "assets/app.js", "x")

	entries, err := Files(dir, Options{Exclude: []string{"vendor", "node_modules", "*.min.js"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	got := paths(entries)
	if len(got) != 2 || got[0] != "assets/app.js" || got[1] != "main.php" {
		t.Fatalf("unexpected entries: %v", got)
	}
}

func TestDiscoverGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "build/\n")
	writeFile(t, dir, "main.php", "<?php")
	writeFile(t, dir, "build/compiled.php", "<?php")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if got := paths(entries); len(got) != 1 || got[0] != "main.php" {
		t.Fatalf("unexpected entries: %v", got)
	}
}

func TestDiscoverLanguageFilter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.php", "<?php")
	writeFile(t, dir, "lib.php", "<?php")
	writeFile(t, dir, "app.js", "x")

	entries, err := Files(dir, Options{Languages: []string{"php"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for php filter, got %d", len(entries))
	}

	entries, err = Files(dir, Options{Languages: []string{"blade"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected 0 entries for blade filter, got %d", len(entries))
	}
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.php", "<?php")

	// Create symlink
	err := os.Symlink(filepath.Join(dir, "real.php"), filepath.Join(dir, "link.php"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry (no symlink), got %d", len(entries))
	}
	if entries[0].Path != "real.php" {
		t.Errorf("expected real.php, got %q", entries[0].Path)
	}
}

func TestDiscoverRootErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := Files(filepath.Join(dir, "missing"), Options{}); err == nil {
		t.Error("expected error for missing root")
	}

	writeFile(t, dir, "file.php", "<?php")
	if _, err := Files(filepath.Join(dir, "file.php"), Options{}); err == nil {
		t.Error("expected error for file root")
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
