package envfile

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

// DefaultName is the file name searched for by DefaultCandidates.
const DefaultName = "app_config.env"

// Values holds the entries of a side-channel config file. The zero value is
// an empty, usable set.
type Values struct {
	path    string
	entries map[string]string
	skipped []int
}

// Get returns the trimmed value for key and whether it was present.
func (v Values) Get(key string) (string, bool) {
	value, ok := v.entries[key]
	return value, ok
}

// Path returns the file the values were read from, or "" when none was found.
func (v Values) Path() string {
	return v.path
}

// Len returns the number of entries.
func (v Values) Len() int {
	return len(v.entries)
}

// Skipped returns the 1-based numbers of lines that were not blank or
// comments but could not be decoded into an entry.
func (v Values) Skipped() []int {
	return v.skipped
}

// DefaultCandidates lists the locations searched when nothing is configured,
// relative to the project root and the android directories.
func DefaultCandidates() []string {
	return []string{
		DefaultName,
		filepath.Join("android", DefaultName),
		filepath.Join("..", DefaultName),
		filepath.Join("..", "..", DefaultName),
	}
}

// Locate returns the first candidate that exists as a regular file.
func Locate(fs afero.Fs, candidates []string) (string, bool) {
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = filepath.Clean(strings.TrimSpace(candidate))
		if candidate == "." {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}

		info, err := fs.Stat(candidate)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}

// Load reads the first existing candidate. A missing file is not an error and
// yields empty Values.
func Load(fs afero.Fs, candidates []string) (Values, error) {
	path, found := Locate(fs, candidates)
	if !found {
		return Values{}, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Values{}, fmt.Errorf("read %s: %w", path, err)
	}

	values, err := Parse(data)
	if err != nil {
		return Values{}, fmt.Errorf("parse %s: %w", path, err)
	}
	values.path = path
	return values, nil
}

// Parse decodes KEY=VALUE lines. Blank lines and comment lines are ignored.
// Lines without a key or rejected by the decoder are skipped and reported by
// Values.Skipped; anything after '#' in a value is dropped.
func Parse(data []byte) (Values, error) {
	entries := make(map[string]string)
	var skipped []int

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Index(line, "=") <= 0 {
			skipped = append(skipped, lineNo)
			continue
		}

		parsed, err := godotenv.Unmarshal(literalDollars(line))
		if err != nil {
			skipped = append(skipped, lineNo)
			continue
		}
		for key, value := range parsed {
			key = strings.TrimSpace(key)
			if idx := strings.Index(value, "#"); idx >= 0 {
				value = value[:idx]
			}
			value = strings.TrimSpace(value)
			if key == "" || value == "" {
				continue
			}
			entries[key] = value
		}
	}

	if err := scanner.Err(); err != nil {
		return Values{}, fmt.Errorf("line %d: %w", lineNo+1, err)
	}

	return Values{entries: entries, skipped: skipped}, nil
}

// literalDollars escapes '$' outside single quotes so godotenv does not
// expand it. Double-quoted values still get godotenv's backslash unescaping,
// so "a\\$b" decodes to a\$b.
func literalDollars(line string) string {
	idx := strings.Index(line, "=")
	key, value := line[:idx+1], line[idx+1:]
	if strings.HasPrefix(strings.TrimSpace(value), "'") {
		return line
	}
	return key + strings.ReplaceAll(value, "$", `\$`)
}

// FromMap builds Values from an in-memory map, trimming keys and values.
func FromMap(m map[string]string) Values {
	entries := make(map[string]string, len(m))
	for key, value := range m {
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		entries[key] = value
	}
	return Values{entries: entries}
}
