// l10ngen extracts translatable strings from PHP, Blade and JavaScript
// sources into gettext-style catalogs.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/phobologic/l10ngen/internal/config"
	"github.com/phobologic/l10ngen/internal/generate"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// globals are the persistent flags shared by every command.
type globals struct {
	configPath string
	verbose    bool
	stdout     io.Writer
	stderr     io.Writer
}

func (g *globals) logger() zerolog.Logger {
	level := zerolog.InfoLevel
	if g.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: zerolog.SyncWriter(g.stderr), NoColor: true}).
		Level(level).
		With().Timestamp().Logger()
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "l10ngen",
		Short: "Extract translatable strings into gettext catalogs",
		Long: `l10ngen scans PHP, Blade and JavaScript sources for translation function
calls and merges the strings into catalogs for every configured locale,
keeping existing translations.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("l10ngen {{.Version}}\n")

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default is ./"+config.FileName+")")
	root.PersistentFlags().BoolVar(&g.verbose, "verbose", false, "log debug output")

	root.AddCommand(generateCmd(g))
	root.AddCommand(convertCmd(g))
	root.AddCommand(po2moCmd(g))
	root.AddCommand(initCmd(g))
	return root
}

func generateCmd(g *globals) *cobra.Command {
	var (
		types       string
		locales     string
		cfgOverride config.Config
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Extract strings and update every catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("type") {
				cfg.Types = config.SplitList(types)
			}
			if flags.Changed("locales") {
				if cfg.Locales, err = config.ParseLocales(locales); err != nil {
					return err
				}
			}
			if flags.Changed("locale") {
				cfg.Locale = cfgOverride.Locale
			}
			if flags.Changed("domain") {
				cfg.Domain = cfgOverride.Domain
			}
			if flags.Changed("extract-from") {
				cfg.ExtractFrom = cfgOverride.ExtractFrom
			}
			if flags.Changed("extract-to") {
				cfg.ExtractTo = cfgOverride.ExtractTo
			}
			if flags.Changed("exclude") {
				cfg.Exclude = cfgOverride.Exclude
			}
			if flags.Changed("extract-comments") {
				cfg.ExtractComments = cfgOverride.ExtractComments
			}
			if flags.Changed("comment-prefixes") {
				cfg.CommentPrefixes = cfgOverride.CommentPrefixes
			}
			if flags.Changed("include-headers") {
				cfg.IncludeHeaders = cfgOverride.IncludeHeaders
			}
			if flags.Changed("keep-obsolete") {
				cfg.KeepObsolete = cfgOverride.KeepObsolete
			}
			if flags.Changed("workers") {
				cfg.Workers = cfgOverride.Workers
			}
			if flags.Changed("max-file-size") {
				cfg.MaxFileSize = cfgOverride.MaxFileSize
			}
			if flags.Changed("metrics-file") {
				cfg.MetricsFile = cfgOverride.MetricsFile
			}

			runner, err := generate.New(cfg, g.logger())
			if err != nil {
				return err
			}
			report, err := runner.Run(cmd.Context())
			if report != nil {
				_, _ = fmt.Fprintln(g.stdout, report.TOON())
			}
			if err != nil {
				return err
			}
			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d destinations failed: %w", len(failed), len(report.Destinations), report.Err())
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&types, "type", "t", "", "comma-separated output types (po, mo, json, ...)")
	f.StringVar(&locales, "locales", "", "comma-separated locales, or a file with one locale per line")
	f.StringVar(&cfgOverride.Locale, "locale", "", "locale of the source strings")
	f.StringVarP(&cfgOverride.Domain, "domain", "d", "", "text domain to extract")
	f.StringSliceVar(&cfgOverride.ExtractFrom, "extract-from", nil, "source directories to scan")
	f.StringVarP(&cfgOverride.ExtractTo, "extract-to", "o", "", "directory the catalogs are written to")
	f.StringSliceVar(&cfgOverride.Exclude, "exclude", nil, "gitignore-style patterns to skip")
	f.BoolVar(&cfgOverride.ExtractComments, "extract-comments", false, "attach translator comments found before calls")
	f.StringSliceVar(&cfgOverride.CommentPrefixes, "comment-prefixes", nil, "only extract comments starting with one of these")
	f.BoolVar(&cfgOverride.IncludeHeaders, "include-headers", false, "write the catalog header block")
	f.BoolVar(&cfgOverride.KeepObsolete, "keep-obsolete", false, "keep entries no longer found in the sources")
	f.IntVarP(&cfgOverride.Workers, "workers", "j", 0, "destinations written in parallel")
	f.Int64Var(&cfgOverride.MaxFileSize, "max-file-size", 0, "skip source files larger than this many bytes (0 disables)")
	f.StringVar(&cfgOverride.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")

	return cmd
}

// conversion holds the flags shared by convert and po2mo.
type conversion struct {
	inputType string
	pattern   string
}

func (c *conversion) run(g *globals, src, toType string) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts := generate.ConvertOptions{
		InputType:      c.inputType,
		IncludeHeaders: cfg.IncludeHeaders,
		SourceLocale:   cfg.Locale,
	}
	if c.pattern != "" {
		if opts.Pattern, err = regexp.Compile(c.pattern); err != nil {
			return fmt.Errorf("invalid --pattern: %w", err)
		}
	}

	results, err := generate.Convert(src, toType, opts, g.logger())
	if len(results) > 0 {
		_, _ = fmt.Fprintln(g.stdout, generate.EncodeResults(results))
	}
	return err
}

func convertCmd(g *globals) *cobra.Command {
	var c conversion
	cmd := &cobra.Command{
		Use:   "convert <file|dir> <to-type>",
		Short: "Convert catalogs from one format to another",
		Long: `Convert rewrites a catalog, or every catalog in a directory, into another
format. Each output is written next to its input. An existing output is
merged in: its extra entries are kept and its translations fill any the
input leaves empty.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(g, args[0], args[1])
		},
	}
	cmd.Flags().StringVarP(&c.inputType, "input-type", "i", "", "type of the input files (required for a directory)")
	cmd.Flags().StringVarP(&c.pattern, "pattern", "p", "", "only convert files whose path matches this regexp")
	return cmd
}

func po2moCmd(g *globals) *cobra.Command {
	c := conversion{inputType: "po"}
	cmd := &cobra.Command{
		Use:   "po2mo <file|dir>",
		Short: "Compile .po catalogs into .mo files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(g, args[0], "mo")
		},
	}
	cmd.Flags().StringVarP(&c.pattern, "pattern", "p", "", "only convert files whose path matches this regexp")
	return cmd
}
