package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteFile writes content to name inside dir, creating parent directories.
// Returns the absolute path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return abs
}

// WriteManifest writes a manifest with one entry per line into dir and
// returns its path.
func WriteManifest(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	return WriteFile(t, dir, "units.txt", strings.Join(lines, "\n")+"\n")
}

// WriteScript writes a script unit whose Collect body is body.
// The script is package main and may use anything in the standard library
// that is imported in imports.
func WriteScript(t *testing.T, dir, name, body string, imports ...string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("package main\n\n")
	for _, imp := range imports {
		b.WriteString("import \"" + imp + "\"\n")
	}
	if len(imports) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(body)
	b.WriteString("\n")
	return WriteFile(t, dir, name, b.String())
}
