package consulconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenWatcher_ReportsChangedToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acl.hcl")
	writeFile(t, path, `acl { tokens { agent = "old" } }`)

	tokens := make(chan string, 4)
	w := NewTokenWatcher(dir, "", "old", 10*time.Millisecond, func(token string) {
		tokens <- token
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, `acl { tokens { agent = "new" } }`)

	select {
	case token := <-tokens:
		assert.Equal(t, "new", token)
	case <-time.After(5 * time.Second):
		t.Fatal("token change was not reported")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestTokenWatcher_IgnoresUnchangedToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acl.hcl")
	writeFile(t, path, `acl { tokens { agent = "same" } }`)

	called := false
	w := NewTokenWatcher(path, "", "same", 10*time.Millisecond, func(string) { called = true })
	w.reload()
	assert.False(t, called)

	writeFile(t, path, `acl { tokens { inspector = "other" } }`)
	var got string
	w.onChange = func(token string) { got = token }
	w.reload()
	assert.Equal(t, "other", got)
}

func TestTokenWatcher_MissingPath(t *testing.T) {
	w := NewTokenWatcher(filepath.Join(os.TempDir(), "does-not-exist-inspector"), "", "", 0, func(string) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx))
}
