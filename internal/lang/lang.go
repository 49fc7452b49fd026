// Package lang provides a language registry mapping file extensions to the
// scanner that extracts translation calls from them.
package lang

import (
	"fmt"
	"iter"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/l10ngen/internal/scan"
)

// Language holds the scanning configuration for a supported source type.
type Language struct {
	Name       string
	Extensions []string

	// Preprocess rewrites the source into PHP before scanning. Nil for
	// plain PHP and for tree-sitter languages.
	Preprocess scan.Preprocessor

	// lang is set for languages scanned through a tree-sitter grammar.
	lang *sitter.Language

	calls func(l *Language, source []byte, opts scan.Options) (iter.Seq[scan.CallRecord], error)
}

// GetLanguage returns the tree-sitter Language pointer, or nil for
// languages scanned lexically.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Calls returns the call records found in source, in source order.
func (l *Language) Calls(source []byte, opts scan.Options) (iter.Seq[scan.CallRecord], error) {
	seq, err := l.calls(l, source, opts)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", l.Name, err)
	}
	return seq, nil
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[strings.ToLower(ext)]
}

// ForPath returns the language name for a file path, preferring the longest
// matching extension so "view.blade.php" is Blade rather than PHP.
func ForPath(path string) string {
	base := filepath.Base(path)
	for i := 1; i < len(base); i++ {
		if base[i] != '.' {
			continue
		}
		if name := ForExtension(base[i:]); name != "" {
			return name
		}
	}
	return ""
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
