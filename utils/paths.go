package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindDir looks for a directory named name in the working directory and
// then in its parent, so that both the binary and package tests find it.
func FindDir(name string) (string, error) {
	for _, dir := range []string{name, filepath.Join("..", name)} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("cannot find %s directory in either current or parent directory", name)
}
