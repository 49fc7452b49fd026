package catalog

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestInsertUnionsReferences(t *testing.T) {
	t.Parallel()

	c := New("default", "en_US")
	key := NewKey(nil, "Hello")

	c.Insert(key, nil).AddReference(Reference{File: "a.php", Line: 3})
	c.Insert(key, nil).AddReference(Reference{File: "b.php", Line: 7})
	c.Insert(key, nil).AddReference(Reference{File: "a.php", Line: 3})

	require.Equal(t, 1, c.Len())
	e, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []Reference{{"a.php", 3}, {"b.php", 7}}, e.References)
}

func TestInsertPluralIsNeverCleared(t *testing.T) {
	t.Parallel()

	c := New("default", "en_US")
	key := NewKey(nil, "Cat")

	c.Insert(key, strPtr("Cats"))
	e := c.Insert(key, nil)
	require.NotNil(t, e.Plural)
	assert.Equal(t, "Cats", *e.Plural)

	e = c.Insert(key, strPtr("Kittens"))
	assert.Equal(t, "Cats", *e.Plural, "first plural wins")
}

func TestInsertLatePluralIsRecorded(t *testing.T) {
	t.Parallel()

	c := New("default", "en_US")
	key := NewKey(nil, "File")
	c.Insert(key, nil)
	e := c.Insert(key, strPtr("Files"))
	assert.Equal(t, "Files", e.PluralString())
}

func TestNilContextDiffersFromEmptyContext(t *testing.T) {
	t.Parallel()

	c := New("default", "en_US")
	c.Insert(NewKey(nil, "Post"), nil)
	c.Insert(NewKey(strPtr(""), "Post"), nil)
	c.Insert(NewKey(strPtr("verb"), "Post"), nil)

	assert.Equal(t, 3, c.Len())
	assert.NotEqual(t, NewKey(nil, "Post").ID(), NewKey(strPtr(""), "Post").ID())
}

func TestEntriesKeepInsertionOrder(t *testing.T) {
	t.Parallel()

	c := New("default", "en_US")
	for _, s := range []string{"zeta", "alpha", "mid"} {
		c.Insert(NewKey(nil, s), nil)
	}
	var got []string
	for _, e := range c.Entries() {
		got = append(got, e.Key.Singular)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, got)
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	c := New("default", "en_US")
	e := c.Insert(NewKey(strPtr("ctx"), "Hello"), nil)
	e.SetTranslations([]string{"Bonjour"})
	e.AddReference(Reference{"a.php", 1})

	clone := c.Clone()
	ce, ok := clone.Get(e.Key)
	require.True(t, ok)
	ce.SetTranslations([]string{"Salut"})
	ce.AddReference(Reference{"b.php", 2})
	*ce.Key.Context = "changed"

	assert.Equal(t, "Bonjour", e.Translation())
	assert.Len(t, e.References, 1)
	assert.Equal(t, "ctx", *e.Key.Context)
}

func TestSetTranslationsTrimsTrailingEmptyForms(t *testing.T) {
	t.Parallel()

	var e Entry
	e.SetTranslations([]string{"Chat", "", ""})
	assert.Equal(t, []string{"Chat"}, e.Translations)

	e.SetTranslations([]string{"", ""})
	assert.Nil(t, e.Translations)
	assert.False(t, e.IsTranslated())

	e.SetTranslations([]string{"", "Chats"})
	assert.Equal(t, []string{"", "Chats"}, e.Translations)
}

func TestAddMergesIntoExistingEntry(t *testing.T) {
	t.Parallel()

	c := New("default", "fr_FR")
	c.Add(&Entry{Key: NewKey(nil, "Hi"), References: []Reference{{"a.php", 1}}})
	c.Add(&Entry{
		Key:          NewKey(nil, "Hi"),
		Plural:       strPtr("His"),
		Translations: []string{"Salut"},
		References:   []Reference{{"b.php", 2}},
		Flags:        []string{"fuzzy"},
	})

	require.Equal(t, 1, c.Len())
	e, _ := c.Get(NewKey(nil, "Hi"))
	assert.Equal(t, "His", e.PluralString())
	assert.Equal(t, "Salut", e.Translation())
	assert.Len(t, e.References, 2)
	assert.Equal(t, []string{"fuzzy"}, e.Flags)
}

func TestParseReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Reference
	}{
		{"a.php:10", Reference{"a.php", 10}},
		{"dir/b.js:1", Reference{"dir/b.js", 1}},
		{"noline.php", Reference{File: "noline.php"}},
		{"c:\\x.php:4", Reference{"c:\\x.php", 4}},
		{"weird:", Reference{File: "weird:"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseReference(tt.in))
		})
	}
	assert.Equal(t, "a.php:10", Reference{"a.php", 10}.String())
	assert.Equal(t, "a.php", Reference{File: "a.php"}.String())
}

func TestSetLanguageUpdatesHeaders(t *testing.T) {
	t.Parallel()

	c := New("default", "en_US")
	c.Headers = DefaultHeaders("default", "en_US")
	c.Insert(NewKey(nil, "Hello"), nil)

	c.SetLanguage("ru_RU")
	assert.Equal(t, "ru_RU", c.Language)
	assert.Equal(t, "ru_RU", c.Headers.Get(HeaderLanguage))
	assert.Equal(t, 3, c.PluralCount())
	assert.Equal(t, 1, c.Len())
}

func TestPluralForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		locale string
		want   int
	}{
		{"en_US", 2},
		{"fr_FR", 2},
		{"pt_BR", 2},
		{"ja", 1},
		{"ru_RU", 3},
		{"pl_PL", 3},
		{"ar", 6},
		{"not a locale!", 2},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			t.Parallel()
			n, ok := ParseNPlurals(PluralForms(tt.locale))
			require.True(t, ok)
			assert.Equal(t, tt.want, n)
		})
	}
	assert.Equal(t, "nplurals=2; plural=(n > 1);", PluralForms("fr_FR"))
	assert.Equal(t, "nplurals=2; plural=(n != 1);", PluralForms("pt_PT"))
}

func TestParseLocale(t *testing.T) {
	t.Parallel()

	for _, locale := range []string{"pt_BR", "pt-BR"} {
		tag, err := ParseLocale(locale)
		require.NoError(t, err, locale)
		assert.Equal(t, "pt-BR", tag.String())
	}
	_, err := ParseLocale("123")
	assert.Error(t, err)
}

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	h := ParseHeaders("Language: fr_FR\nPlural-Forms: nplurals=2; plural=(n > 1);\n\nbogus line\n")
	assert.Equal(t, "fr_FR", h.Get("language"))
	assert.Equal(t, "nplurals=2; plural=(n > 1);", h.Get(HeaderPluralForms))
	assert.Len(t, h, 2)
	assert.Equal(t, "Language: fr_FR\nPlural-Forms: nplurals=2; plural=(n > 1);\n", h.String())
}

func TestCorruptCatalogErrorMatches(t *testing.T) {
	t.Parallel()

	err := error(&CorruptCatalogError{Path: "x.po", Err: fs.ErrInvalid})
	assert.True(t, errors.Is(err, ErrCorruptCatalog))
	assert.True(t, errors.Is(err, fs.ErrInvalid))
	assert.Contains(t, err.Error(), "x.po")

	var cce *CorruptCatalogError
	require.True(t, errors.As(err, &cce))
	assert.Equal(t, "x.po", cce.Path)
}
