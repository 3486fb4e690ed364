// Package storefile provides utilities for naming and discovering seafair
// store files in a data directory.
//
// Filename Format: <class>.sea
//
// Where:
//   - class: The record class (namespace tag) whose keys the file holds.
//   - .sea: A fixed file extension identifying seafair store files.
//
// Example filenames:
//
//	User.sea
//	Session.sea
//	seafair.sea   (shared-file mode: all classes in one file)
package storefile

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/iamNilotpal/seafair/pkg/filesys"
)

// Extension is the fixed suffix of every store file.
const Extension = ".sea"

// GenerateName creates the filename for a record class. The class becomes
// the base name, so it must be usable as a path component.
func GenerateName(class string) (string, error) {
	if err := ValidateClass(class); err != nil {
		return "", err
	}
	return class + Extension, nil
}

// Path returns the full path of the store file for a record class inside
// the given data directory.
func Path(dataDir, class string) (string, error) {
	name, err := GenerateName(class)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name), nil
}

// ValidateClass checks that a class tag can serve as a store-file base
// name. Classes participate in the canonical key encoding as well, so a
// stable, restrictive rule here protects both the filesystem and the hash
// namespace.
func ValidateClass(class string) error {
	if class == "" {
		return fmt.Errorf("record class must be non-empty")
	}
	if strings.ContainsAny(class, `/\`) || class == "." || class == ".." {
		return fmt.Errorf("record class %q must not contain path separators", class)
	}
	return nil
}

// ParseClass extracts the record class from a store-file path.
// Example: "/var/data/User.sea" -> "User".
func ParseClass(fullPath string) (string, error) {
	// Extract just the filename from the full path.
	_, filename := filepath.Split(fullPath)

	// Validate that the filename carries our expected extension.
	if !strings.HasSuffix(filename, Extension) {
		return "", fmt.Errorf("filename %s does not end with expected extension %s", filename, Extension)
	}

	class := strings.TrimSuffix(filename, Extension)
	if class == "" {
		return "", fmt.Errorf("filename %s has no class component", filename)
	}

	return class, nil
}

// Discover searches the data directory for store files and returns the
// record classes they hold, sorted lexicographically. A missing directory
// is treated as an empty one: the store creates it lazily on first open.
func Discover(dataDir string) ([]string, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("dataDir must be non-empty")
	}

	// Construct the search pattern for store files.
	// Example: "/var/data/*.sea"
	searchPattern := filepath.Join(dataDir, "*"+Extension)

	// Safely read all matching files using our filesystem utility.
	matchingFiles, err := filesys.ReadDir(searchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory with pattern %s: %w", searchPattern, err)
	}

	classes := make([]string, 0, len(matchingFiles))
	for _, file := range matchingFiles {
		class, err := ParseClass(file)
		if err != nil {
			// Foreign files that merely share the extension are skipped
			// rather than failing discovery.
			continue
		}
		classes = append(classes, class)
	}

	slices.Sort(classes)
	return classes, nil
}

// GetFileInfo safely retrieves file system metadata for a given path.
// This helper function encapsulates the file opening and stat operations,
// providing consistent error handling and resource cleanup.
func GetFileInfo(filePath string) (os.FileInfo, error) {
	// Open the file in read-only mode.
	file, err := os.OpenFile(filePath, os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	// Retrieve file metadata.
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info for %s: %w", filePath, err)
	}

	return stat, nil
}
