package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// FSScanner reads migrations from a directory of an fs.FS.
type FSScanner struct {
	files fs.FS
	dir   string
}

// NewScanner creates a scanner over dir inside files. An empty dir means the root.
func NewScanner(files fs.FS, dir string) *FSScanner {
	if dir == "" {
		dir = "."
	}
	return &FSScanner{files: files, dir: dir}
}

// Scan returns every migration in ascending version order.
func (s *FSScanner) Scan() ([]Migration, error) {
	if s == nil || s.files == nil {
		return nil, fmt.Errorf("migration scanner has no files")
	}

	entries, err := fs.ReadDir(s.files, s.dir)
	if err != nil {
		return nil, NewMigrationError("", s.dir, "read directory", err)
	}

	var migrations []Migration
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, description, err := ParseFileName(entry.Name())
		if err != nil {
			return nil, NewMigrationError("", entry.Name(), "validate filename", err)
		}

		key := normalizeVersion(version)
		if existing, ok := seen[key]; ok {
			return nil, NewMigrationError(version, entry.Name(), "check duplicates",
				fmt.Errorf("%w: version %s found in both %s and %s", ErrDuplicateVersion, version, existing, entry.Name()))
		}
		seen[key] = entry.Name()

		filePath := path.Join(s.dir, entry.Name())
		body, err := fs.ReadFile(s.files, filePath)
		if err != nil {
			return nil, NewMigrationError(version, filePath, "read file", err)
		}
		if strings.TrimSpace(string(body)) == "" {
			return nil, NewMigrationError(version, filePath, "read file", fmt.Errorf("%w: file is empty", ErrInvalidMigrationFile))
		}

		sum := sha256.Sum256(body)
		migrations = append(migrations, Migration{
			Version:     version,
			Description: strings.ReplaceAll(description, "_", " "),
			SQL:         string(body),
			FilePath:    filePath,
			Checksum:    hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return versionNumber(migrations[i].Version) < versionNumber(migrations[j].Version)
	})
	return migrations, nil
}

// ParseFileName splits a migration file name into its version and description.
func ParseFileName(name string) (string, string, error) {
	matches := migrationFilePattern.FindStringSubmatch(name)
	if len(matches) != 3 {
		return "", "", fmt.Errorf("%w: filename '%s' does not match pattern '{version}_{description}.sql'", ErrInvalidMigrationFile, name)
	}
	if _, err := strconv.Atoi(matches[1]); err != nil {
		return "", "", fmt.Errorf("%w: version '%s' in filename '%s' is not a valid number", ErrInvalidVersion, matches[1], name)
	}
	return matches[1], matches[2], nil
}

func versionNumber(version string) int {
	n, err := strconv.Atoi(version)
	if err != nil {
		return -1
	}
	return n
}

func normalizeVersion(version string) string {
	return strconv.Itoa(versionNumber(version))
}
