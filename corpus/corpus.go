// Package corpus finds and reads the drafts to be ranked.
package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohnPlummer/draft-ranker/scorer"
)

// DefaultExtensions are the file extensions ranked when none are configured
var DefaultExtensions = []string{".md"}

// Discover walks root in lexical order and returns the files whose extension
// is in extensions. The cache directory and every folder listed in exclude
// (relative to root, or absolute) are skipped with their subtrees.
func Discover(root string, exclude, extensions []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open folder %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	excluded, err := resolveExcludes(root, exclude)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && d.Name() == scorer.CacheDirName {
				return filepath.SkipDir
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			if isExcluded(abs, excluded) {
				return filepath.SkipDir
			}
			return nil
		}

		if hasExtension(path, extensions) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk folder %s: %w", root, err)
	}
	return paths, nil
}

// Load reads every path into a document, dropping invalid UTF-8 sequences
func Load(paths []string) ([]scorer.Document, error) {
	docs := make([]scorer.Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		docs = append(docs, scorer.Document{
			Path:    path,
			Content: strings.ToValidUTF8(string(data), ""),
		})
	}
	return docs, nil
}

// RelativeTo rewrites path relative to base when it lies inside it
func RelativeTo(base, path string) string {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return path
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

func resolveExcludes(root string, exclude []string) ([]string, error) {
	resolved := make([]string, 0, len(exclude))
	for _, e := range exclude {
		if e == "" {
			continue
		}
		p := e
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve excluded folder %s: %w", e, err)
		}
		resolved = append(resolved, abs)
	}
	return resolved, nil
}

// isExcluded matches whole path components, so "drafts" does not exclude "drafts2"
func isExcluded(abs string, excluded []string) bool {
	for _, e := range excluded {
		if abs == e || strings.HasPrefix(abs, e+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}
