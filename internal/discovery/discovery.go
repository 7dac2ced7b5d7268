// Package discovery implements the file-walk and manifest diffing of
// spec.md C7: a single walk honoring ignore rules, a binary-extension
// list, and a max-file-size ceiling, producing DiscoveredFile records
// and a diff against the prior Manifest.
package discovery

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"lukechampine.com/blake3"
)

// DefaultMaxFileSize is the default ceiling above which a file is
// skipped during discovery (spec.md C7, default 10 MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// binaryExtensions lists file extensions discovery treats as binary
// regardless of content, skipped before any hashing is attempted.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".7z": true, ".rar": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".o": true, ".a": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wasm": true,
	".db": true, ".sqlite": true, ".bin": true,
}

// DiscoveredFile is one surviving file from a discovery walk.
type DiscoveredFile struct {
	Path        string // relative to project root, slash-separated
	AbsPath     string
	Size        int64
	ContentHash string
}

// Discovery walks a project root applying ignore glob patterns, the
// binary-extension list, and a max file size ceiling. Grounded on the
// teacher's internal/indexer/discovery.go FileDiscovery, generalized
// from its separate code/docs pattern lists into a single
// ignore-pattern list (CodeWeaver indexes every non-ignored,
// non-binary file rather than routing code vs docs to different
// discoverers).
type Discovery struct {
	rootDir        string
	ignorePatterns []glob.Glob
	maxFileSize    int64
}

// New builds a Discovery. ignoreGlobs are compiled with '/' as the
// path separator, matching the teacher's glob.Compile(pattern, '/').
func New(rootDir string, ignoreGlobs []string, maxFileSize int64) (*Discovery, error) {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	d := &Discovery{rootDir: rootDir, maxFileSize: maxFileSize}
	for _, pattern := range ignoreGlobs {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		d.ignorePatterns = append(d.ignorePatterns, g)
	}
	return d, nil
}

// Walk performs the single discovery pass and returns every surviving
// file.
func (d *Discovery) Walk() ([]DiscoveredFile, error) {
	var out []DiscoveredFile

	err := filepath.Walk(d.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if d.shouldIgnoreDir(path) {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(d.rootDir, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.shouldIgnore(relPath) {
			return nil
		}
		if isBinaryExtension(path) {
			return nil
		}
		if info.Size() > d.maxFileSize {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		out = append(out, DiscoveredFile{
			Path:        relPath,
			AbsPath:     path,
			Size:        info.Size(),
			ContentHash: HashContent(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HashContent computes BLAKE3 of stripped, UTF-8 content, per spec.md
// C7's "Blake3 of content.strip().encode('utf-8')".
func HashContent(content []byte) string {
	stripped := strings.TrimSpace(string(content))
	sum := blake3.Sum256([]byte(stripped))
	return hexEncode(sum[:])
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}

func (d *Discovery) shouldIgnoreDir(path string) bool {
	relPath, err := filepath.Rel(d.rootDir, path)
	if err != nil || relPath == "." {
		return false
	}
	relPath = filepath.ToSlash(relPath)
	if strings.HasPrefix(relPath, ".codeweaver/") || relPath == ".codeweaver" {
		return true
	}
	if strings.HasPrefix(relPath, ".git/") || relPath == ".git" {
		return true
	}
	return d.matchesAnyPattern(relPath+"/**") || d.matchesAnyPattern(relPath)
}

func (d *Discovery) shouldIgnore(relPath string) bool {
	if strings.HasPrefix(relPath, ".codeweaver/") || strings.HasPrefix(relPath, ".git/") {
		return true
	}
	return d.matchesAnyPattern(relPath)
}

func (d *Discovery) matchesAnyPattern(path string) bool {
	for _, p := range d.ignorePatterns {
		if p.Match(path) {
			return true
		}
	}
	return false
}

func isBinaryExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return binaryExtensions[ext]
}

// Diff categorizes discovered files against the prior manifest.
type Diff struct {
	Added     []DiscoveredFile
	Modified  []DiscoveredFile
	Removed   []string // file paths present in the manifest but not discovered
	Unchanged []DiscoveredFile
}

// DiffAgainst computes {added, modified, removed, unchanged} between
// a fresh discovery pass and a manifest's known file hashes.
func DiffAgainst(discovered []DiscoveredFile, knownHashes map[string]string) Diff {
	var diff Diff
	seen := make(map[string]bool, len(discovered))

	for _, f := range discovered {
		seen[f.Path] = true
		prevHash, known := knownHashes[f.Path]
		switch {
		case !known:
			diff.Added = append(diff.Added, f)
		case prevHash != f.ContentHash:
			diff.Modified = append(diff.Modified, f)
		default:
			diff.Unchanged = append(diff.Unchanged, f)
		}
	}

	for path := range knownHashes {
		if !seen[path] {
			diff.Removed = append(diff.Removed, path)
		}
	}

	return diff
}
