package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/phobologic/l10ngen/internal/config"
)

// starterConfig is the file written by `l10ngen init`. Its values match
// config.Default so a fresh project behaves the same with or without it.
const starterConfig = `# l10ngen configuration. Flags given to "l10ngen generate" override these.

# Output formats: csv, csvdict, jed, json, jsondict, mo, php, po, xliff,
# yaml, yamldict.
types: [po]

# Locale of the strings in the source code. Always generated.
locale: en_US
# Locales to generate catalogs for.
locales: [en_US]

# Only calls for this text domain are extracted.
domain: default

extract_from: ["."]
extract_to: languages
# gitignore-style patterns, relative to each extract_from directory.
exclude: [vendor, node_modules]

# Attach comments written right before a call. With prefixes set, only
# comments starting with one of them are kept.
extract_comments: true
comment_prefixes: ["translators:"]

include_headers: true
# Keep entries whose strings no longer appear in the sources.
keep_obsolete: false

# Skip source files larger than this many bytes. 0 disables the limit.
max_file_size: 4194304

# Destinations written in parallel. Defaults to the number of CPUs.
# workers: 4

# Extra translation functions, by shape: single, plural, dgettext,
# dpgettext, dngettext, dnpgettext.
# functions:
#   trans: dgettext
#   trans_choice: dngettext

# Write Prometheus metrics for each run in the textfile collector format.
# metrics_file: l10ngen.prom
`

func initCmd(g *globals) *cobra.Command {
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter " + config.FileName,
		Long: `Write a commented starter configuration file. path defaults to
./` + config.FileName + `. An existing file is left alone unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// --dry-run with no path: just print the file.
			if dryRun && len(args) == 0 {
				_, _ = fmt.Fprint(g.stdout, starterConfig)
				return nil
			}

			path := config.FileName
			if len(args) > 0 {
				path = args[0]
			}
			return writeStarter(g, path, dryRun, force)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func writeStarter(g *globals, path string, dryRun, force bool) error {
	_, err := os.Stat(path)
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if exists && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if dryRun {
		_, _ = fmt.Fprint(g.stdout, starterConfig)
		return nil
	}

	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	_, _ = fmt.Fprintf(g.stderr, "wrote %s\n", path)
	return nil
}
