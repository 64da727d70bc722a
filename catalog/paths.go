package catalog

import (
	"fmt"
	"path/filepath"
	"strings"
)

const maxFilenameLen = 255

// audioExtensions are the file extensions the scanner recognizes.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
}

// IsAudioFile reports whether the path has a recognized audio extension.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// ValidateFilename checks a bare filename received from an external
// caller: no path separators, no leading dot, bounded length.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty filename", ErrInvalidPath)
	}
	if len(name) >= maxFilenameLen {
		return fmt.Errorf("%w: filename too long", ErrInvalidPath)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: filename must not contain path separators", ErrInvalidPath)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: hidden files not allowed", ErrInvalidPath)
	}
	return nil
}

// ValidateTagID checks a tag identifier: alphanumeric (underscore
// allowed for the TAG_ prefix), bounded length.
func ValidateTagID(tagID string) error {
	if tagID == "" {
		return fmt.Errorf("%w: empty tag id", ErrInvalidTag)
	}
	if len(tagID) > 50 {
		return fmt.Errorf("%w: tag id too long", ErrInvalidTag)
	}
	for _, r := range tagID {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return fmt.Errorf("%w: tag id must be alphanumeric", ErrInvalidTag)
		}
	}
	return nil
}

// normalizeRelative resolves caller input (a bare filename, a relative
// path, or an absolute path under the root) to a forward-slash relative
// path contained within root. Rejects empty input, traversal attempts,
// hidden files and absolute paths outside the root.
func normalizeRelative(root, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	candidate := filepath.FromSlash(input)
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	abs, err := filepath.Abs(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, input)
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathViolation, input)
	}
	if rel == "." {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, input)
	}
	if strings.HasPrefix(filepath.Base(rel), ".") {
		return "", fmt.Errorf("%w: hidden files not allowed", ErrInvalidPath)
	}
	return filepath.ToSlash(rel), nil
}
