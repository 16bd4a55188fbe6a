package ingest

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/ast"
)

// skipDirNames are directory names never worth parsing: dependency
// trees, build output, and virtualenvs dwarf the actual source and
// carry no signal about the repository under study.
var skipDirNames = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	"dist":         true,
	"build":        true,
}

// collectFiles walks root and returns the slash-separated relative paths
// of every file a registered parser can handle, in walk order.
//
// Hidden directories (including .git), the skip list, and anything the
// repository's root .gitignore excludes are pruned. A missing or broken
// .gitignore is not an error; the walk just proceeds without it.
func collectFiles(root string, registry *ast.Registry) ([]string, error) {
	var ignorer *ignore.GitIgnore
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		ignorer = gi
	}

	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		name := d.Name()

		if d.IsDir() {
			if strings.HasPrefix(name, ".") || skipDirNames[name] {
				return filepath.SkipDir
			}
			if ignorer != nil && ignorer.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}
		if ignorer != nil && ignorer.MatchesPath(rel) {
			return nil
		}

		if _, ok := registry.GetByExtension(filepath.Ext(name)); !ok {
			return nil
		}

		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	slog.Debug("collected source files",
		slog.String("root", root),
		slog.Int("count", len(paths)))

	return paths, nil
}
