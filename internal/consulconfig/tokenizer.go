package consulconfig

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenAssign
	tokenOpen
	tokenClose
)

// token is a single lexical element. Quoted literals are always tokenText,
// so a quoted "{" never acts as a brace.
type token struct {
	kind tokenKind
	text string
}

func (t token) String() string {
	switch t.kind {
	case tokenAssign:
		return "="
	case tokenOpen:
		return "{"
	case tokenClose:
		return "}"
	default:
		return t.text
	}
}

// tokenize splits the configuration stream into tokens. Comments are
// discarded. An unterminated quoted literal is emitted as it stands.
func tokenize(r io.Reader) ([]token, error) {
	var (
		tokens    []token
		buf       strings.Builder
		quote     rune
		inComment bool
	)

	flush := func() {
		if buf.Len() > 0 {
			tokens = append(tokens, token{kind: tokenText, text: buf.String()})
			buf.Reset()
		}
	}

	br := bufio.NewReader(r)
	for {
		ch, _, err := br.ReadRune()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if inComment {
			if ch == '\n' {
				inComment = false
			}
			continue
		}

		if quote != 0 {
			if ch == quote {
				tokens = append(tokens, token{kind: tokenText, text: buf.String()})
				buf.Reset()
				quote = 0
				continue
			}
			buf.WriteRune(ch)
			continue
		}

		switch {
		case ch == 0:
		case ch == '#':
			flush()
			inComment = true
		case ch == '"' || ch == '\'':
			flush()
			quote = ch
		case ch == '=':
			flush()
			tokens = append(tokens, token{kind: tokenAssign})
		case ch == '{':
			flush()
			tokens = append(tokens, token{kind: tokenOpen})
		case ch == '}':
			flush()
			tokens = append(tokens, token{kind: tokenClose})
		case unicode.IsSpace(ch):
			flush()
		default:
			buf.WriteRune(ch)
		}
	}

	flush()
	return tokens, nil
}
