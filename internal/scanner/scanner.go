package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"

	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// Walker abstracts directory traversal so tests can substitute their own.
type Walker interface {
	Walk(root string, options *godirwalk.Options) error
}

type dirWalker struct{}

func (dirWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// Scanner walks a workspace and admits source files for chunking.
type Scanner struct {
	allowedExts map[string]bool
	ignoreGlobs []string
	ignoredDirs map[string]bool
	maxFileSize int64
	walker      Walker
}

// Result is the outcome of one scan: admitted files in workspace-relative
// path order, plus the path→hash map used by the Merkle store.
type Result struct {
	Files      []*types.File
	FileHashes map[string]string
}

// New creates a scanner with the given admission rules.
func New(allowedExtensions []string, ignoreGlobs []string, ignoredDirs []string, maxFileSize int64) *Scanner {
	exts := make(map[string]bool, len(allowedExtensions))
	for _, e := range allowedExtensions {
		exts[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	dirs := make(map[string]bool, len(ignoredDirs))
	for _, d := range ignoredDirs {
		dirs[d] = true
	}
	return &Scanner{
		allowedExts: exts,
		ignoreGlobs: ignoreGlobs,
		ignoredDirs: dirs,
		maxFileSize: maxFileSize,
		walker:      dirWalker{},
	}
}

// SetWalker replaces the directory walker. Tests only.
func (s *Scanner) SetWalker(w Walker) { s.walker = w }

// Scan walks the tree rooted at root depth-first and returns every admitted
// file with its content and fingerprint. Emission order is stable: sorted by
// workspace-relative path, lexicographic. An unreadable but admitted file
// fails the scan; files inside ignored directories are never touched.
func (s *Scanner) Scan(root string) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve root %s: %v", types.ErrIO, root, err)
	}

	var admitted []string
	walkErr := s.walker.Walk(absRoot, &godirwalk.Options{
		Unsorted: true, // order restored by the final sort
		Callback: func(path string, de *godirwalk.Dirent) error {
			rel, err := filepath.Rel(absRoot, path)
			if err != nil || rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if de.IsDir() {
				if s.ignoredDirs[de.Name()] || s.matchesIgnoreGlob(rel) {
					return filepath.SkipDir
				}
				return nil
			}
			if de.IsSymlink() {
				return nil
			}
			if !s.admits(rel) {
				return nil
			}
			admitted = append(admitted, rel)
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			// Traversal errors under ignored directories never reach here;
			// anything else is skipped with a warning and the walk continues.
			log.Warn().Err(err).Str("path", path).Msg("scan: skipping unreadable entry")
			return godirwalk.SkipNode
		},
	})
	if walkErr != nil {
		return nil, fmt.Errorf("%w: walk %s: %v", types.ErrIO, absRoot, walkErr)
	}

	sort.Strings(admitted)

	result := &Result{
		Files:      make([]*types.File, 0, len(admitted)),
		FileHashes: make(map[string]string, len(admitted)),
	}
	for _, rel := range admitted {
		abs := filepath.Join(absRoot, filepath.FromSlash(rel))

		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("%w: stat %s: %v", types.ErrIO, rel, err)
		}
		if info.Size() > s.maxFileSize {
			log.Debug().Str("path", rel).Int64("size", info.Size()).Msg("scan: over size cap, skipped")
			continue
		}

		content, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", types.ErrIO, rel, err)
		}

		f := &types.File{
			RelPath: rel,
			AbsPath: abs,
			Content: content,
			Hash:    types.HashBytes(content),
			Size:    int64(len(content)),
		}
		result.Files = append(result.Files, f)
		result.FileHashes[rel] = f.Hash
	}

	log.Info().Int("files", len(result.Files)).Str("root", absRoot).Msg("scan complete")
	return result, nil
}

// admits applies the extension allowlist and ignore globs to a relative path.
// Binary detection is not attempted: the allowlist is authoritative.
func (s *Scanner) admits(rel string) bool {
	if s.matchesIgnoreGlob(rel) {
		return false
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(rel), "."))
	return s.allowedExts[ext]
}

func (s *Scanner) matchesIgnoreGlob(rel string) bool {
	for _, g := range s.ignoreGlobs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}
