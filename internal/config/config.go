// Package config holds the l10ngen run configuration.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/l10ngen/internal/catalog"
	"github.com/phobologic/l10ngen/internal/format"
	"github.com/phobologic/l10ngen/internal/gettext"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "l10ngen.yaml"

// Config is the complete set of options for a generate run.
type Config struct {
	// Types lists the output format tags.
	Types []string `yaml:"types"`
	// Locale is the language the original strings are written in. It is
	// always part of the generated locales.
	Locale  string   `yaml:"locale"`
	Locales []string `yaml:"locales"`
	Domain  string   `yaml:"domain"`

	ExtractFrom []string `yaml:"extract_from"`
	ExtractTo   string   `yaml:"extract_to"`
	// Exclude holds gitignore-style patterns matched against paths relative
	// to each extract_from root.
	Exclude []string `yaml:"exclude"`

	ExtractComments bool     `yaml:"extract_comments"`
	CommentPrefixes []string `yaml:"comment_prefixes"`
	IncludeHeaders  bool     `yaml:"include_headers"`
	KeepObsolete    bool     `yaml:"keep_obsolete"`

	Workers int `yaml:"workers"`
	// MaxFileSize skips source files larger than this many bytes. Zero
	// disables the limit.
	MaxFileSize int64 `yaml:"max_file_size"`

	// Functions adds or overrides translation functions, mapping a name to
	// a shape such as "dgettext" or "domain-qualified-plural".
	Functions map[string]string `yaml:"functions,omitempty"`

	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// Default returns the configuration used when no file or flag sets a value.
func Default() *Config {
	return &Config{
		Types:           []string{"po"},
		Locale:          "en_US",
		Locales:         []string{"en_US"},
		Domain:          "default",
		ExtractFrom:     []string{"."},
		ExtractTo:       "languages",
		Exclude:         []string{"vendor", "node_modules"},
		ExtractComments: true,
		CommentPrefixes: []string{"translators:"},
		IncludeHeaders:  true,
		Workers:         runtime.GOMAXPROCS(0),
		MaxFileSize:     4 << 20,
	}
}

// Load reads configuration from path on top of the defaults. An empty path
// looks for FileName in the working directory and falls back to the defaults
// when it does not exist. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = FileName
	}
	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ParseLocales interprets a --locales value: a path to a file with one
// locale per line, or a comma separated list.
func ParseLocales(value string) ([]string, error) {
	if info, err := os.Stat(value); err == nil && info.Mode().IsRegular() {
		return readLocalesFile(value)
	}
	return SplitList(value), nil
}

func readLocalesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var locales []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		locales = append(locales, SplitList(line)...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return locales, nil
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// TargetLocales returns the locales to generate: Locales followed by Locale,
// without duplicates.
func (c *Config) TargetLocales() []string {
	var out []string
	for _, l := range append(slices.Clone(c.Locales), c.Locale) {
		if l != "" && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

// Table returns the function signature table with configured overrides
// applied.
func (c *Config) Table() (*gettext.Table, error) {
	return gettext.DefaultTable().Extend(c.Functions)
}

// Validate checks every option and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Types) == 0 {
		errs = append(errs, errors.New("types: at least one output type is required"))
	}
	byExt := map[string]string{}
	for _, tag := range c.Types {
		f, ok := format.Lookup(tag)
		if !ok {
			errs = append(errs, fmt.Errorf("types: unknown type %q (want one of %s)", tag, strings.Join(format.Tags(), ", ")))
			continue
		}
		if other, ok := byExt[f.Ext]; ok && other != tag {
			errs = append(errs, fmt.Errorf("types: %s and %s both write %s files", other, tag, f.Ext))
			continue
		}
		byExt[f.Ext] = tag
	}

	if err := validLocale(c.Locale); err != nil {
		errs = append(errs, fmt.Errorf("locale: %w", err))
	}
	for _, l := range c.Locales {
		if err := validLocale(l); err != nil {
			errs = append(errs, fmt.Errorf("locales: %w", err))
		}
	}

	switch {
	case c.Domain == "":
		errs = append(errs, errors.New("domain: must not be empty"))
	case strings.ContainsAny(c.Domain, `/\`):
		errs = append(errs, fmt.Errorf("domain: %q must not contain path separators", c.Domain))
	}
	if len(c.ExtractFrom) == 0 {
		errs = append(errs, errors.New("extract_from: at least one path is required"))
	}
	if c.ExtractTo == "" {
		errs = append(errs, errors.New("extract_to: must not be empty"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers: must be at least 1, got %d", c.Workers))
	}
	if c.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("max_file_size: must not be negative, got %d", c.MaxFileSize))
	}
	if _, err := c.Table(); err != nil {
		errs = append(errs, fmt.Errorf("functions: %w", err))
	}

	return errors.Join(errs...)
}

func validLocale(locale string) error {
	if locale == "" {
		return errors.New("empty locale")
	}
	if _, err := catalog.ParseLocale(locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return nil
}
