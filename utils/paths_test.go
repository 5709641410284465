package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindDir(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, os.Mkdir(filepath.Join(root, "sql"), 0o755))
	assert.NoError(t, os.Mkdir(filepath.Join(root, "pkg"), 0o755))

	wd, err := os.Getwd()
	assert.NoError(t, err)
	defer os.Chdir(wd)

	assert.NoError(t, os.Chdir(filepath.Join(root, "pkg")))
	dir, err := FindDir("sql")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "sql"), dir)

	assert.NoError(t, os.Chdir(root))
	dir, err = FindDir("sql")
	assert.NoError(t, err)
	assert.Equal(t, "sql", dir)

	_, err = FindDir("missing")
	assert.Error(t, err)
}
