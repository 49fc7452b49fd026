package lang

import (
	"iter"

	"github.com/phobologic/l10ngen/internal/scan"
)

func init() {
	Languages["php"] = &Language{
		Name:       "php",
		Extensions: []string{".php"},
		calls:      scanPHP,
	}
	Languages["blade"] = &Language{
		Name:       "blade",
		Extensions: []string{".blade.php"},
		Preprocess: scan.Blade,
		calls:      scanPHP,
	}
}

// scanPHP runs the lexical scanner, after the language's pre-processor when
// it has one.
func scanPHP(l *Language, source []byte, opts scan.Options) (iter.Seq[scan.CallRecord], error) {
	text := string(source)
	if l.Preprocess != nil {
		var err error
		if text, err = l.Preprocess(text); err != nil {
			return nil, err
		}
	}
	return scan.New(text, opts).All(), nil
}
