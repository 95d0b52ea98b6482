package consulconfig

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"inspector/pkg/logging"
)

const subsystem = "ConsulConfig"

// Well-known configuration paths read by the inspector.
const (
	KeyAdvertiseAddress = "advertise_addr"
	KeyHTTPAddresses    = "addresses.http"
	KeyInspectorToken   = "acl.tokens.inspector"
	KeyAgentToken       = "acl.tokens.agent"
)

const unixScheme = "unix://"

// Values is a flattened Consul agent configuration.
type Values map[string]string

// Merge copies every path of src that is not yet present in v.
func (v Values) Merge(src map[string]string) {
	for k, val := range src {
		if _, exists := v[k]; !exists {
			v[k] = val
		}
	}
}

// Token returns the ACL token used to manage registrations: the dedicated
// inspector token if one is configured, otherwise the agent token.
func (v Values) Token() string {
	if token, ok := v[KeyInspectorToken]; ok {
		return token
	}
	return v[KeyAgentToken]
}

// SocketPath returns the first unix socket listed in addresses.http.
func (v Values) SocketPath() string {
	for _, addr := range strings.Fields(v[KeyHTTPAddresses]) {
		if strings.HasPrefix(addr, unixScheme) {
			return strings.TrimPrefix(addr, unixScheme)
		}
	}
	return ""
}

// AdvertiseAddress returns the agent's advertise_addr.
func (v Values) AdvertiseAddress() string {
	return v[KeyAdvertiseAddress]
}

// Keys returns the configured paths in lexical order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadPath parses the configuration file at path, or every *.hcl file at the
// top level of the directory at path in lexical order. A missing path yields
// an empty result.
func LoadPath(path string) (Values, error) {
	values := make(Values)
	if path == "" {
		return values, nil
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Debug(subsystem, "Consul configuration path %s does not exist", path)
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = configFiles(path)
		if err != nil {
			return nil, err
		}
	}

	for _, file := range files {
		parsed, err := parseFile(file)
		if err != nil {
			return nil, err
		}
		logging.Debug(subsystem, "Parsed %d keys from %s", len(parsed), file)
		values.Merge(parsed)
	}

	return values, nil
}

// LoadEnv parses configuration passed inline, either base64 encoded or as
// plain text.
func LoadEnv(content string) (Values, error) {
	values := make(Values)
	if strings.TrimSpace(content) == "" {
		return values, nil
	}

	raw := []byte(content)
	if decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(content)); err == nil {
		raw = decoded
	}

	parsed, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse inline configuration: %w", err)
	}
	values.Merge(parsed)
	return values, nil
}

// Load combines LoadPath and LoadEnv. Paths from the file system take
// precedence over inline content.
func Load(path, inline string) (Values, error) {
	values, err := LoadPath(path)
	if err != nil {
		return nil, err
	}

	fromEnv, err := LoadEnv(inline)
	if err != nil {
		return nil, err
	}
	values.Merge(fromEnv)
	return values, nil
}

func configFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !isConfigFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

func parseFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return parsed, nil
}

func isConfigFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".hcl"
}
