package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chunkline/chunkline/internal/validation"
)

// FileScanner walks a workspace, applies allow/deny globs, and computes a
// per-file content hash.
type FileScanner struct {
	allowedExtensions map[string]struct{}
	ignoreGlobs       []string
	ignoredDirs       map[string]struct{}
	maxFileSize       int64
}

// NewFileScanner builds a FileScanner from the pipeline's frozen config
// fields.
func NewFileScanner(allowedExtensions, ignoreGlobs, ignoredDirs []string, maxFileSize int64) *FileScanner {
	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	dirs := make(map[string]struct{}, len(ignoredDirs))
	for _, d := range ignoredDirs {
		dirs[d] = struct{}{}
	}
	return &FileScanner{
		allowedExtensions: allowed,
		ignoreGlobs:       append([]string(nil), ignoreGlobs...),
		ignoredDirs:       dirs,
		maxFileSize:       maxFileSize,
	}
}

// ScanResult is the output of a Scan call.
type ScanResult struct {
	Files      []File
	FileHashes map[string]string // workspace-relative path -> hex sha256
}

// Scan walks root depth-first and returns the admitted files in stable,
// lexicographic-by-path order.
func (s *FileScanner) Scan(ctx context.Context, root string) (*ScanResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, newIoError(root, fmt.Errorf("resolve root: %w", err))
	}

	validator, err := validation.NewPathValidator(absRoot)
	if err != nil {
		return nil, newIoError(absRoot, fmt.Errorf("open root-scoped validator: %w", err))
	}
	defer validator.Close()

	var files []File
	hashes := make(map[string]string)

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return err
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return fmt.Errorf("relative path for %s: %w", path, relErr)
		}
		relPath = filepath.ToSlash(relPath)

		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if _, ignored := s.ignoredDirs[d.Name()]; ignored {
				return filepath.SkipDir
			}
			if s.matchesIgnoreGlob(relPath + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		if s.matchesIgnoreGlob(relPath) {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(relPath))
		if _, ok := s.allowedExtensions[ext]; !ok {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return fmt.Errorf("stat %s: %w", path, infoErr)
		}
		if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
			return nil
		}

		safeRel, safeErr := validator.ValidatePath(relPath)
		if safeErr != nil {
			return newIoError(relPath, fmt.Errorf("path safety: %w", safeErr))
		}

		data, readErr := validator.ReadFile(safeRel)
		if readErr != nil {
			return newIoError(relPath, readErr)
		}

		sum := sha256.Sum256(data)
		hash := hex.EncodeToString(sum[:])

		files = append(files, File{
			Path:      relPath,
			AbsPath:   path,
			Bytes:     data,
			Hash:      hash,
			Extension: ext,
			Size:      info.Size(),
		})
		hashes[relPath] = hash

		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return &ScanResult{Files: files, FileHashes: hashes}, nil
}

// keys returns the keys of a string-set map, order unspecified. Used to
// rebuild a FileScanner with additional per-call ignore patterns layered
// on top of a session's base configuration.
func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func (s *FileScanner) matchesIgnoreGlob(relPath string) bool {
	for _, pat := range s.ignoreGlobs {
		if matched := matchDoubleStarGlob(pat, relPath); matched {
			return true
		}
	}
	return false
}

// matchDoubleStarGlob matches a "**"-capable glob pattern against a
// workspace-relative path. "**" stands for any number of path segments;
// everything else is handled by filepath.Match segment by segment.
func matchDoubleStarGlob(pattern, path string) bool {
	if !strings.Contains(pattern, "**") {
		ok, _ := filepath.Match(pattern, path)
		if ok {
			return true
		}
		ok, _ = filepath.Match(pattern, filepath.Base(path))
		return ok
	}

	patParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")
	return matchGlobParts(patParts, pathParts)
}

func matchGlobParts(pat, path []string) bool {
	if len(pat) == 0 {
		return len(path) == 0
	}
	if pat[0] == "**" {
		if matchGlobParts(pat[1:], path) {
			return true
		}
		if len(path) == 0 {
			return false
		}
		return matchGlobParts(pat, path[1:])
	}
	if len(path) == 0 {
		return false
	}
	ok, _ := filepath.Match(pat[0], path[0])
	if !ok {
		return false
	}
	return matchGlobParts(pat[1:], path[1:])
}
