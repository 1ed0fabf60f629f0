package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Scanner scans for test definition files in a directory
type Scanner struct {
	skipDirs  map[string]bool
	extension string
}

// NewScanner creates a new Scanner with the given directories to skip and the
// file extension (e.g. ".pmlobj") of test definition files.
func NewScanner(skipDirs []string, extension string) *Scanner {
	skipMap := make(map[string]bool)
	for _, dir := range skipDirs {
		skipMap[dir] = true
	}
	return &Scanner{skipDirs: skipMap, extension: strings.ToLower(extension)}
}

// Scan finds all test definition files in the given root directory
func (s *Scanner) Scan(root string) ([]string, error) {
	var files []string

	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("test path does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("test path is not a directory: %s", root)
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			// Skip hidden directories (starting with .)
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if s.skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}

		// PML file names are case-insensitive on the platforms the interpreter runs on
		if strings.HasSuffix(strings.ToLower(d.Name()), s.extension) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}
