// Package fileutil provides small filesystem checks.
package fileutil

import (
	"os"
	"path/filepath"
	"strings"
)

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists returns true if the path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsFilePath returns true if the string looks like a file path rather than a name.
// A string containing path separators (/, \) is treated as a path.
//
// Examples:
//   - "production" -> false (name)
//   - "./web2pdf.yaml" -> true (relative path)
//   - "/etc/web2pdf/prod.yaml" -> true (absolute)
func IsFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// HasExtensionManifest reports whether dir holds an unpacked browser
// extension (a manifest.json at its root).
func HasExtensionManifest(dir string) bool {
	return FileExists(filepath.Join(dir, "manifest.json"))
}
