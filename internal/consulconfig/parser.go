// Package consulconfig reads the Consul agent configuration format: nested
// blocks of key = value pairs, flattened into dotted keys such as
// "acl.tokens.agent".
package consulconfig

import (
	"io"
	"strings"
)

// pathSeparator joins section names and keys into a flat path.
const pathSeparator = "."

// Parse reads the Consul agent configuration language from r and returns a
// flat mapping of dotted paths to values, e.g. `acl { tokens { agent = "x" } }`
// yields {"acl.tokens.agent": "x"}.
//
// Malformed input never fails the parse: an assignment without a name or
// value and unbalanced closing braces are skipped. The returned error only
// reports failures to read r.
func Parse(r io.Reader) (map[string]string, error) {
	tokens, err := tokenize(r)
	if err != nil {
		return nil, err
	}
	return parseTokens(tokens), nil
}

func parseTokens(tokens []token) map[string]string {
	var (
		values   = make(map[string]string)
		pending  []string
		sections []string
	)

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.kind {
		case tokenOpen:
			if len(pending) > 0 {
				sections = append(sections, pending[len(pending)-1])
			}

		case tokenClose:
			if len(sections) == 0 {
				continue
			}
			sections = sections[:len(sections)-1]
			if len(pending) > 0 {
				pending = pending[:len(pending)-1]
			}

		case tokenAssign:
			if len(pending) == 0 {
				continue
			}
			name := pending[len(pending)-1]
			pending = pending[:len(pending)-1]

			if i+1 >= len(tokens) {
				continue
			}
			next := tokens[i+1]
			switch next.kind {
			case tokenOpen:
				pending = append(pending, name)
				sections = append(sections, name)
				i++
			case tokenText:
				path := strings.Join(append(sections[:len(sections):len(sections)], name), pathSeparator)
				if _, exists := values[path]; !exists {
					values[path] = next.text
				}
				i++
			}

		default:
			pending = append(pending, tok.text)
		}
	}

	return values
}
