package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Well-known header names.
const (
	HeaderProjectID       = "Project-Id-Version"
	HeaderLanguage        = "Language"
	HeaderPluralForms     = "Plural-Forms"
	HeaderContentType     = "Content-Type"
	HeaderMIMEVersion     = "MIME-Version"
	HeaderTransferEncode  = "Content-Transfer-Encoding"
	HeaderDomain          = "X-Domain"
	HeaderGenerator       = "X-Generator"
	defaultPluralForms    = "nplurals=2; plural=(n != 1);"
	defaultPluralCount    = 2
	generatorHeaderString = "l10ngen"
)

// Header is one name/value pair of the catalog header block.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered header block. Names are matched case-insensitively.
type Headers []Header

// Get returns the value of name or "".
func (h Headers) Get(name string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

// Set replaces the value of name, appending the header if missing.
func (h *Headers) Set(name, value string) {
	for i, hdr := range *h {
		if strings.EqualFold(hdr.Name, name) {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, Header{Name: name, Value: value})
}

// Clone returns a copy of the header block.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	return append(Headers(nil), h...)
}

// String renders the block the way gettext stores it in the empty msgid:
// one "Name: value\n" line per header.
func (h Headers) String() string {
	var b strings.Builder
	for _, hdr := range h {
		b.WriteString(hdr.Name)
		b.WriteString(": ")
		b.WriteString(hdr.Value)
		b.WriteByte('\n')
	}
	return b.String()
}

// ParseHeaders parses a gettext header block. Lines without a colon are
// ignored.
func ParseHeaders(block string) Headers {
	var h Headers
	for _, line := range strings.Split(block, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		h.Set(name, strings.TrimSpace(value))
	}
	return h
}

// DefaultHeaders returns the header block written for a freshly extracted
// catalog.
func DefaultHeaders(domain, locale string) Headers {
	return Headers{
		{HeaderProjectID, domain},
		{HeaderMIMEVersion, "1.0"},
		{HeaderContentType, "text/plain; charset=UTF-8"},
		{HeaderTransferEncode, "8bit"},
		{HeaderLanguage, locale},
		{HeaderPluralForms, PluralForms(locale)},
		{HeaderDomain, domain},
		{HeaderGenerator, generatorHeaderString},
	}
}

var npluralsRe = regexp.MustCompile(`nplurals\s*=\s*(\d+)`)

// ParseNPlurals extracts nplurals from a Plural-Forms value.
func ParseNPlurals(pluralForms string) (int, bool) {
	m := npluralsRe.FindStringSubmatch(pluralForms)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// PluralForms returns the gettext Plural-Forms expression for a locale such
// as "fr_FR" or "pt-BR".
func PluralForms(locale string) string {
	expr, _ := pluralRule(locale)
	return expr
}

type pluralForm struct {
	expr string
	n    int
}

var (
	oneForm = pluralForm{"nplurals=1; plural=0;", 1}
	gtOne   = pluralForm{"nplurals=2; plural=(n > 1);", 2}
	slavic  = pluralForm{"nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);", 3}
	westSl  = pluralForm{"nplurals=3; plural=(n==1) ? 0 : (n>=2 && n<=4) ? 1 : 2;", 3}
)

// pluralRules is keyed by BCP 47 base language, or by full tag where a
// region differs from its base.
var pluralRules = map[string]pluralForm{
	"ja":    oneForm,
	"ko":    oneForm,
	"zh":    oneForm,
	"vi":    oneForm,
	"th":    oneForm,
	"id":    oneForm,
	"ms":    oneForm,
	"fr":    gtOne,
	"pt-BR": gtOne,
	"ru":    slavic,
	"uk":    slavic,
	"be":    slavic,
	"sr":    slavic,
	"hr":    slavic,
	"bs":    slavic,
	"cs":    westSl,
	"sk":    westSl,
	"pl":    {"nplurals=3; plural=(n==1 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);", 3},
	"ro":    {"nplurals=3; plural=(n==1 ? 0 : (n==0 || (n%100 > 0 && n%100 < 20)) ? 1 : 2);", 3},
	"lt":    {"nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && (n%100<10 || n%100>=20) ? 1 : 2);", 3},
	"lv":    {"nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n != 0 ? 1 : 2);", 3},
	"sl":    {"nplurals=4; plural=(n%100==1 ? 0 : n%100==2 ? 1 : n%100==3 || n%100==4 ? 2 : 3);", 4},
	"ar":    {"nplurals=6; plural=(n==0 ? 0 : n==1 ? 1 : n==2 ? 2 : n%100>=3 && n%100<=10 ? 3 : n%100>=11 ? 4 : 5);", 6},
}

// ParseLocale parses a gettext locale such as "pt_BR" or a BCP 47 tag such
// as "pt-BR".
func ParseLocale(locale string) (language.Tag, error) {
	return language.Parse(strings.ReplaceAll(locale, "_", "-"))
}

func pluralRule(locale string) (string, int) {
	tag, err := ParseLocale(locale)
	if err != nil {
		return defaultPluralForms, defaultPluralCount
	}
	if rule, ok := pluralRules[tag.String()]; ok {
		return rule.expr, rule.n
	}
	base, _ := tag.Base()
	if rule, ok := pluralRules[base.String()]; ok {
		return rule.expr, rule.n
	}
	return defaultPluralForms, defaultPluralCount
}
