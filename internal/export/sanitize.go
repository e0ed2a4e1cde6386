package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// MaxFileTitleLen bounds the title part of generated file names.
const MaxFileTitleLen = 80

// DefaultFileTitle names a reel whose title sanitizes to nothing.
const DefaultFileTitle = "reel"

// SanitizeName makes a reel title safe for file names and EDL headers.
// Control characters are dropped, anything outside letters, digits and
// " -_.,()" becomes '_', and leading dots are removed so a title can never
// name a hidden file or a parent directory.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimLeft(strings.TrimSpace(b.String()), ".")
	cleaned = strings.TrimSpace(cleaned)
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// FileName builds "<title>_<id8><ext>" for a reel, or "<title><ext>" when id
// is empty. The id contributes its first eight hex digits so two reels with
// the same title do not collide in the library.
func FileName(title, id, ext string) string {
	name := SanitizeName(title, MaxFileTitleLen)
	if name == "" {
		name = DefaultFileTitle
	}
	if short := shortID(id); short != "" {
		name += "_" + short
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return name + ext
}

func shortID(id string) string {
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return short
}

// ValidateOutputDir checks that dir is a clean, existing directory without
// parent references.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("output directory is required")
	}

	if hasParentRef(dir) {
		return fmt.Errorf("output directory %q cannot contain ..", dir)
	}

	if filepath.Clean(dir) != dir {
		return fmt.Errorf("output directory %q must be a clean path", dir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output directory %q does not exist", dir)
		}
		return fmt.Errorf("invalid output directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output directory %q is not a directory", dir)
	}
	return nil
}

// ValidateOutputPath checks a reel's destination file: its directory must
// pass ValidateOutputDir and the path itself must not be a directory.
// An existing file is overwritten by the render.
func ValidateOutputPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("output path is required")
	}
	base := filepath.Base(path)
	if base == "." || base == ".." || strings.HasSuffix(filepath.ToSlash(path), "/") {
		return fmt.Errorf("output path %q does not name a file", path)
	}
	if hasParentRef(path) {
		return fmt.Errorf("output path %q cannot contain ..", path)
	}
	if err := ValidateOutputDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("output path %q: %w", path, err)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("output path %q is a directory", path)
	}
	return nil
}

func hasParentRef(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
