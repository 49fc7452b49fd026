package format

import (
	"fmt"
	"io"

	yamlv3 "gopkg.in/yaml.v3"
	"sigs.k8s.io/yaml"

	"github.com/phobologic/l10ngen/internal/catalog"
)

func init() {
	register(&Format{Tag: "yaml", Ext: ".yml", Lossless: true, Encode: encodeYAML, Decode: decodeYAML})
	register(&Format{Tag: "yamldict", Ext: ".yml", Stored: contextless, Encode: encodeYAMLDict, Decode: decodeYAMLDict})
}

// encodeYAML writes the structured document with the same field names as
// the json format.
func encodeYAML(w io.Writer, cat *catalog.Catalog, opts WriteOptions) error {
	out, err := yaml.Marshal(toDocument(cat, opts))
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func decodeYAML(data []byte) (*catalog.Catalog, error) {
	var doc document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, err
	}
	return fromDocument(doc)
}

// encodeYAMLDict writes an "original: translation" mapping in catalog order.
func encodeYAMLDict(w io.Writer, cat *catalog.Catalog, opts WriteOptions) error {
	root := &yamlv3.Node{Kind: yamlv3.MappingNode}
	add := func(k, v string) {
		root.Content = append(root.Content,
			&yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!str", Value: k},
			&yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!str", Value: v},
		)
	}
	if h := headerBlock(cat, opts); len(h) > 0 {
		add("", h.String())
	}
	for _, e := range cat.Entries() {
		add(e.Key.Singular, e.Translation())
	}

	enc := yamlv3.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return err
	}
	return enc.Close()
}

func decodeYAMLDict(data []byte) (*catalog.Catalog, error) {
	var doc yamlv3.Node
	if err := yamlv3.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return catalog.New("", ""), nil
	}
	root := &doc
	if root.Kind == yamlv3.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	if root.Kind != yamlv3.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping", root.Line)
	}

	var (
		headers catalog.Headers
		entries []*catalog.Entry
	)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if k.Kind != yamlv3.ScalarNode {
			return nil, fmt.Errorf("line %d: expected a string key", k.Line)
		}
		var tr string
		switch {
		case v.Kind == yamlv3.ScalarNode && v.Tag == "!!null":
		case v.Kind == yamlv3.ScalarNode:
			tr = v.Value
		default:
			return nil, fmt.Errorf("line %d: expected a string value for %q", v.Line, k.Value)
		}
		if k.Value == "" {
			headers = catalog.ParseHeaders(tr)
			continue
		}
		e := &catalog.Entry{Key: catalog.NewKey(nil, k.Value)}
		e.SetTranslations([]string{tr})
		entries = append(entries, e)
	}

	cat := newCatalog(headers)
	for _, e := range entries {
		cat.Add(e)
	}
	return cat, nil
}
