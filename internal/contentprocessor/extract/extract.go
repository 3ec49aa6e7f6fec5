// Package extract pulls named scalar fields out of raw article XML and
// assembles Article values from them. Fields are addressed by chains of
// element names relative to the document root, e.g. "source,id".
package extract

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// FieldChain addresses one scalar field by its element path from the root.
type FieldChain struct {
	Spec string
	Path []string
}

// ParseChains converts chain specs of the form "a,b,c" into FieldChains.
func ParseChains(specs []string) []FieldChain {
	chains := make([]FieldChain, 0, len(specs))
	for _, spec := range specs {
		path := strings.Split(spec, ",")
		for i := range path {
			path[i] = strings.TrimSpace(path[i])
		}
		chains = append(chains, FieldChain{Spec: spec, Path: path})
	}
	return chains
}

// Fields scans the document once and returns the text content of the first
// occurrence of every requested chain, keyed by chain spec. Chains absent
// from the document are simply absent from the result.
func Fields(doc string, chains []FieldChain) (map[string]string, error) {
	decoder := xml.NewDecoder(strings.NewReader(doc))

	result := make(map[string]string, len(chains))
	var stack []string
	var current *FieldChain
	var text strings.Builder

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "malformed article xml")
		}

		switch t := token.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			// Paths are relative to the root element, which is not
			// part of the stack we match against.
			if current == nil {
				if chain := matchChain(stack[1:], chains); chain != nil {
					if _, seen := result[chain.Spec]; !seen {
						current = chain
						text.Reset()
					}
				}
			}
		case xml.CharData:
			if current != nil {
				text.Write(t)
			}
		case xml.EndElement:
			if current != nil && matchChain(stack[1:], chains) == current {
				result[current.Spec] = strings.TrimSpace(text.String())
				current = nil
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return result, nil
}

func matchChain(path []string, chains []FieldChain) *FieldChain {
	for i := range chains {
		if pathsEqual(path, chains[i].Path) {
			return &chains[i]
		}
	}
	return nil
}

func pathsEqual(a []string, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
