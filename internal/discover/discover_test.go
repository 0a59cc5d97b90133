package discover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func paths(entries []FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestFilesFindsSupportedSources(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "lib/util.py", "def f(): pass")
	writeFile(t, root, "README.md", "# readme")
	writeFile(t, root, "data.csv", "a,b")

	got, err := Files(root, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("lib", "util.py"), "main.go"}, paths(got))
	assert.Equal(t, "python", got[0].Language)
	assert.Equal(t, "go", got[1].Language)
}

func TestFilesLanguageFilter(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "script.py", "pass")

	got, err := Files(root, []string{"go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, paths(got))
}

func TestFilesSkipsHiddenAndVendored(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, ".hidden/secret.go", "package secret")
	writeFile(t, root, ".config.go", "package p")
	writeFile(t, root, "node_modules/dep/index.js", "x")
	writeFile(t, root, "vendor/lib/lib.go", "package lib")
	writeFile(t, root, "__pycache__/mod.py", "")

	got, err := Files(root, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, paths(got))
}

func TestFilesHonorsGitignore(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, ".gitignore", "generated.go\nout/\n")
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "generated.go", "package main")
	writeFile(t, root, "out/tool.go", "package tool")

	got, err := Files(root, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, paths(got))
}

func TestFilesSortedOutput(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "z.go", "package p")
	writeFile(t, root, "a.go", "package p")
	writeFile(t, root, "m/n.go", "package n")

	got, err := Files(root, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", filepath.Join("m", "n.go"), "z.go"}, paths(got))
}

func TestFilesEmptyRoot(t *testing.T) {
	t.Parallel()

	got, err := Files(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
