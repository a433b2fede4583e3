package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
)

// Source supplies raw profile documents by name.
type Source interface {
	// Names returns every profile name the source can supply.
	Names() ([]string, error)
	// Read returns the document for name. It returns an error wrapping
	// fs.ErrNotExist when the source has no such profile.
	Read(name string) ([]byte, Format, error)
}

// DirSource reads profile files from a directory.
//
// Accepted file names: <name>_config.json (the legacy layout),
// <name>.json, <name>.yaml and <name>.yml. When several files resolve to
// the same name, the first in that order wins.
type DirSource struct {
	FS   fs.FS
	Path string // For logging only
}

// NewDirSource returns a source reading from the directory at path.
func NewDirSource(path string) *DirSource {
	return &DirSource{FS: os.DirFS(path), Path: path}
}

var fileLayouts = []struct {
	suffix string
	format Format
}{
	{"_config.json", FormatJSON},
	{".json", FormatJSON},
	{".yaml", FormatYAML},
	{".yml", FormatYAML},
}

// Names lists profile names found in the directory, sorted.
func (s *DirSource) Names() ([]string, error) {
	entries, err := fs.ReadDir(s.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("read profiles dir: %w", err)
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, _, ok := profileName(e.Name()); ok {
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Read loads the document for name.
func (s *DirSource) Read(name string) ([]byte, Format, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, "", fmt.Errorf("profile %q: %w", name, fs.ErrNotExist)
	}
	for _, l := range fileLayouts {
		data, err := fs.ReadFile(s.FS, name+l.suffix)
		if err == nil {
			return data, l.format, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("read profile %q: %w", name, err)
		}
	}
	return nil, "", fmt.Errorf("profile %q: %w", name, fs.ErrNotExist)
}

// profileName extracts the profile name from a file name.
func profileName(file string) (string, Format, bool) {
	for _, l := range fileLayouts {
		if strings.HasSuffix(file, l.suffix) {
			name := strings.TrimSuffix(file, l.suffix)
			if name == "" {
				return "", "", false
			}
			return name, l.format, true
		}
	}
	return "", "", false
}

// Document is an in-memory profile document.
type Document struct {
	Format Format
	Data   []byte
}

// MapSource serves profile documents from memory.
type MapSource map[string]Document

// Names returns the sorted document names.
func (m MapSource) Names() ([]string, error) {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the named document.
func (m MapSource) Read(name string) ([]byte, Format, error) {
	doc, ok := m[name]
	if !ok {
		return nil, "", fmt.Errorf("profile %q: %w", name, fs.ErrNotExist)
	}
	return doc.Data, doc.Format, nil
}
