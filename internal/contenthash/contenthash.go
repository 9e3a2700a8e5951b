// Package contenthash computes a deterministic hash over a directory
// tree for reproducibility verification. Identical trees on different
// platforms yield the same digest; any content, name, or type
// difference changes it.
package contenthash

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// newHasher maps an algorithm identifier to a hash constructor.
func newHasher(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "md5":
		return md5.New(), nil
	}
	return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
}

// Compute hashes every entry under root (symlinks are not followed),
// visiting entries in sorted-path order. For each entry it feeds the
// slash-normalized relative path, a one-byte type tag (D for directory,
// L for symlink followed by its target, F for file followed by its
// content with \r\n normalized to \n for text), and a separator byte.
// Entries matching skip are left out; a skip entry with a trailing
// slash excludes the whole subtree. Any unreadable file or unrecognized
// entry type fails the whole operation: a partial hash is meaningless.
func Compute(root string, algorithm string, skip []string) (string, error) {
	hasher, err := newHasher(algorithm)
	if err != nil {
		return "", err
	}

	var paths []string
	types := make(map[string]fs.FileMode)
	err = filepath.Walk(root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		paths = append(paths, path)
		types[path] = info.Mode()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to enumerate %s: %w", root, err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return "", err
		}
		relSlashed := strings.ReplaceAll(filepath.ToSlash(rel), "\\", "/")
		if skipped(relSlashed, skip) {
			continue
		}

		hasher.Write([]byte(relSlashed))
		mode := types[path]
		switch {
		case mode&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return "", fmt.Errorf("could not read symlink %q in %q: %w", rel, root, err)
			}
			hasher.Write([]byte("L"))
			hasher.Write([]byte(strings.ReplaceAll(filepath.ToSlash(target), "\\", "/")))
		case mode.IsDir():
			hasher.Write([]byte("D"))
		case mode.IsRegular():
			hasher.Write([]byte("F"))
			if err := hashFileContent(hasher, path); err != nil {
				return "", fmt.Errorf("could not read file %q in %q: %w", rel, root, err)
			}
		default:
			return "", fmt.Errorf("cannot detect type for path %q in %q: content hash cannot continue", rel, root)
		}
		hasher.Write([]byte("-"))
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// hashFileContent feeds a file's bytes into the hasher. Text files have
// Windows line endings normalized first; a file that is not valid UTF-8
// is binary and hashes as raw bytes.
func hashFileContent(hasher hash.Hash, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if utf8.Valid(data) {
		data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	}
	_, err = hasher.Write(data)
	return err
}

// skipped matches a normalized relative path against the skip list. A
// trailing slash on a skip entry excludes that subtree entirely.
func skipped(relSlashed string, skip []string) bool {
	for _, item := range skip {
		item = strings.ReplaceAll(item, "\\", "/")
		if strings.HasSuffix(item, "/") {
			if strings.HasPrefix(relSlashed, item) || relSlashed+"/" == item {
				return true
			}
		} else if relSlashed == item {
			return true
		}
	}
	return false
}
