package policy

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LoadRegoFiles collects every .rego module under dir, including nested
// bundle directories. Module names are paths relative to dir, so two
// bundles can both ship a dispatch.rego without clobbering each other.
func LoadRegoFiles(dir string) (map[string]string, error) {
	modules := make(map[string]string)
	root := os.DirFS(dir)

	err := fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || filepath.Ext(path) != ".rego" {
			return nil
		}
		src, err := fs.ReadFile(root, path)
		if err != nil {
			return fmt.Errorf("read policy module %s: %w", path, err)
		}
		modules[path] = string(src)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk policy bundle %s: %w", dir, err)
	}
	return modules, nil
}
