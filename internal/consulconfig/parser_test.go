package consulconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{
			name:     "section with quoted values and comment",
			input:    `a { b = "x" c = 'y' } # comment`,
			expected: map[string]string{"a.b": "x", "a.c": "y"},
		},
		{
			name: "nested sections compose paths depth-first",
			input: `
acl {
  tokens {
    agent = "agent-token"
    inspector = "inspector-token"
  }
  enabled = true
}
datacenter = "dc1"`,
			expected: map[string]string{
				"acl.tokens.agent":     "agent-token",
				"acl.tokens.inspector": "inspector-token",
				"acl.enabled":          "true",
				"datacenter":           "dc1",
			},
		},
		{
			name:     "assignment to section",
			input:    `addresses = { http = "127.0.0.1 unix:///run/consul.sock" }`,
			expected: map[string]string{"addresses.http": "127.0.0.1 unix:///run/consul.sock"},
		},
		{
			name:     "boundaries without whitespace",
			input:    `ports{http=8500 grpc=-1}`,
			expected: map[string]string{"ports.http": "8500", "ports.grpc": "-1"},
		},
		{
			name:     "special characters inside quotes are literal",
			input:    `a = "{=}#" b = '"'`,
			expected: map[string]string{"a": "{=}#", "b": `"`},
		},
		{
			name:     "quoted brace is not a section",
			input:    `a = "{" b = 1`,
			expected: map[string]string{"a": "{", "b": "1"},
		},
		{
			name:     "empty quoted value",
			input:    `token = ""`,
			expected: map[string]string{"token": ""},
		},
		{
			name:     "first writer wins",
			input:    "a = 1\na = 2",
			expected: map[string]string{"a": "1"},
		},
		{
			name:     "comment directly after unquoted value",
			input:    "a = 1# trailing\nb = 2",
			expected: map[string]string{"a": "1", "b": "2"},
		},
		{
			name:     "assignment without name is skipped",
			input:    `= 1 a = 2`,
			expected: map[string]string{"a": "2"},
		},
		{
			name:     "unbalanced closer is ignored",
			input:    `} a = 1 }`,
			expected: map[string]string{"a": "1"},
		},
		{
			name:     "assignment without value is skipped",
			input:    `a = }`,
			expected: map[string]string{},
		},
		{
			name:     "empty input",
			input:    "",
			expected: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTokenize(t *testing.T) {
	tokens, err := tokenize(strings.NewReader("a{b='=' # c = d\n}\x00"))
	require.NoError(t, err)

	var got []string
	for _, tok := range tokens {
		got = append(got, tok.String())
	}
	assert.Equal(t, []string{"a", "{", "b", "=", "=", "}"}, got)
	assert.Equal(t, tokenText, tokens[4].kind, "quoted = must be text")
}
