package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultMatchThreshold is the minimum header match score for a profile to
// be picked by header auto-detection.
const DefaultMatchThreshold = 0.7

// Registry loads profiles from a Source and caches them for the lifetime
// of the registry. It is safe for concurrent use. Concurrent first loads of
// the same name share one decode, so the cache never holds two copies.
// Profiles that fail to decode are cached too, as their *InvalidError.
type Registry struct {
	source Source
	logger *slog.Logger

	mu      sync.RWMutex
	cache   map[string]*Profile
	invalid map[string]error
	group   singleflight.Group

	namesOnce sync.Once
	names     []string
	namesErr  error
}

// NewRegistry creates a registry backed by source.
func NewRegistry(source Source, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		source:  source,
		logger:  logger,
		cache:   make(map[string]*Profile),
		invalid: make(map[string]error),
	}
}

// Load returns the named profile, decoding it on first use.
// Returns an error wrapping ErrProfileNotFound or ErrInvalidProfile.
func (r *Registry) Load(name string) (*Profile, error) {
	if p, ok, err := r.cached(name); ok {
		return p, err
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		if p, ok, err := r.cached(name); ok {
			return p, err
		}

		data, format, err := r.source.Read(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &NotFoundError{Name: name}
			}
			return nil, fmt.Errorf("load profile %q: %w", name, err)
		}

		loaded, err := Decode(name, format, data)
		if err != nil {
			r.logger.Warn("profile rejected", "profile", name, "error", err)
			r.mu.Lock()
			r.invalid[name] = err
			r.mu.Unlock()
			return nil, err
		}

		r.mu.Lock()
		r.cache[name] = loaded
		r.mu.Unlock()

		r.logger.Info("profile loaded",
			"profile", name,
			"supplier", loaded.SupplierName,
			"mapped_columns", len(loaded.ColumnMapping),
			"ignored_columns", len(loaded.IgnoreColumns),
		)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Profile), nil
}

// cached reports whether name has been loaded before, with its profile or
// its decode error.
func (r *Registry) cached(name string) (*Profile, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.cache[name]; ok {
		return p, true, nil
	}
	if err, ok := r.invalid[name]; ok {
		return nil, true, err
	}
	return nil, false, nil
}

// ListNames returns the available profile names in sorted order.
// The list is read once and stays stable for the lifetime of the registry.
func (r *Registry) ListNames() ([]string, error) {
	r.namesOnce.Do(func() {
		names, err := r.source.Names()
		if err != nil {
			r.namesErr = fmt.Errorf("list profiles: %w", err)
			return
		}
		sorted := append([]string(nil), names...)
		sort.Strings(sorted)
		r.names = sorted
	})
	if r.namesErr != nil {
		return nil, r.namesErr
	}
	return append([]string(nil), r.names...), nil
}

// LoadAll loads every listed profile. Profiles that fail to decode are
// returned in the error map rather than aborting the whole listing.
func (r *Registry) LoadAll() ([]*Profile, map[string]error, error) {
	names, err := r.ListNames()
	if err != nil {
		return nil, nil, err
	}

	profiles := make([]*Profile, 0, len(names))
	var failed map[string]error
	for _, name := range names {
		p, err := r.Load(name)
		if err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[name] = err
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, failed, nil
}

// DetectByFilename returns the first profile (in name order) whose
// filename markers occur in the upper-cased base name of file.
func (r *Registry) DetectByFilename(file string) (*Profile, bool) {
	base := file
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.ToUpper(base)
	if base == "" {
		return nil, false
	}

	profiles, _, err := r.LoadAll()
	if err != nil {
		return nil, false
	}
	for _, p := range profiles {
		for _, marker := range p.FilenameMarkers {
			if marker != "" && strings.Contains(base, marker) {
				return p, true
			}
		}
	}
	return nil, false
}

// HeaderMatch is a profile scored against a sheet's header row.
type HeaderMatch struct {
	Profile *Profile
	Score   float64
}

// MatchHeaders scores every profile that declares a column mapping by the
// share of its mapped raw headers present in headers. Matches at or above
// threshold are returned best first; ties keep name order.
func (r *Registry) MatchHeaders(headers []string, threshold float64) []HeaderMatch {
	profiles, _, err := r.LoadAll()
	if err != nil {
		return nil
	}

	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[NormalizeHeader(h)] = true
	}

	var matches []HeaderMatch
	for _, p := range profiles {
		if len(p.ColumnMapping) == 0 {
			continue
		}
		matched := 0
		for _, m := range p.ColumnMapping {
			if present[m.Raw] {
				matched++
			}
		}
		score := float64(matched) / float64(len(p.ColumnMapping))
		if score >= threshold {
			matches = append(matches, HeaderMatch{Profile: p, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}
