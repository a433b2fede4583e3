package normalize

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/sheetnorm/internal/logging"
	"github.com/JonMunkholm/sheetnorm/internal/profile"
	"github.com/JonMunkholm/sheetnorm/internal/sheet"
)

const (
	DefaultWorkers   = 4
	DefaultBatchSize = 500
)

// Engine runs grids through supplier profiles. It holds no per-run state
// and is safe for concurrent use.
type Engine struct {
	registry  *profile.Registry
	resolver  *Resolver
	workers   int
	batchSize int
	fallback  string
	threshold float64
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets how many goroutines process the rows of one batch.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithBatchSize sets how many rows one Run.Next call processes.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithDetectors replaces the auto-detection strategies.
func WithDetectors(d ...Detector) Option {
	return func(e *Engine) {
		e.resolver = NewResolver(d...)
	}
}

// WithFallbackProfile names the profile used when a file matches no profile
// by name or headers. Empty disables the fallback.
func WithFallbackProfile(name string) Option {
	return func(e *Engine) {
		e.fallback = name
	}
}

// WithMatchThreshold sets the minimum header-match score for automatic
// profile selection.
func WithMatchThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 && t <= 1 {
			e.threshold = t
		}
	}
}

// WithLogger sets the engine logger. Without one, runs log through the
// request-scoped logger of their context.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine returns an engine that loads profiles from reg.
func NewEngine(reg *profile.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:  reg,
		resolver:  NewResolver(),
		workers:   DefaultWorkers,
		batchSize: DefaultBatchSize,
		threshold: profile.DefaultMatchThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ListProfiles returns the available profile names in stable order.
func (e *Engine) ListProfiles() ([]string, error) {
	return e.registry.ListNames()
}

// Profiles loads every available profile. Profiles that fail to load are
// reported by name in the error map.
func (e *Engine) Profiles() ([]*profile.Profile, map[string]error, error) {
	return e.registry.LoadAll()
}

// Profile loads a profile by name.
func (e *Engine) Profile(name string) (*profile.Profile, error) {
	return e.registry.Load(name)
}

// Normalize runs g through the named profile. The only errors are registry
// errors and context cancellation; a run that accepts no rows still
// succeeds with an empty table.
func (e *Engine) Normalize(ctx context.Context, g sheet.Grid, profileName string) (*Table, *Report, error) {
	p, err := e.registry.Load(profileName)
	if err != nil {
		return nil, nil, err
	}
	return e.NormalizeProfile(ctx, g, p)
}

// NormalizeProfile runs g through an already loaded profile.
func (e *Engine) NormalizeProfile(ctx context.Context, g sheet.Grid, p *profile.Profile) (*Table, *Report, error) {
	run := e.Start(ctx, g, p)
	for {
		if err := ctx.Err(); err != nil {
			run.logger.Warn("normalization cancelled", "rows_done", run.next, "error", err)
			return nil, nil, err
		}
		if !run.Next() {
			break
		}
	}
	table, report := run.Finish()
	return table, report, nil
}

// NormalizeAuto picks a profile for an upload and runs g through it.
func (e *Engine) NormalizeAuto(ctx context.Context, g sheet.Grid, filename string) (*Table, *Report, error) {
	p, err := e.ResolveProfile(ctx, filename, g)
	if err != nil {
		return nil, nil, err
	}
	return e.NormalizeProfile(ctx, g, p)
}

// ResolveProfile selects a profile for an upload: first by filename
// markers, then by the best header match at or above the threshold, then
// the fallback profile.
func (e *Engine) ResolveProfile(ctx context.Context, filename string, g sheet.Grid) (*profile.Profile, error) {
	logger := e.loggerFor(ctx)

	if p, ok := e.registry.DetectByFilename(filename); ok {
		logger.Debug("profile selected by filename", "file", filename, "profile", p.Name)
		return p, nil
	}
	if g.HasHeader() {
		if matches := e.registry.MatchHeaders(g.Headers(), e.threshold); len(matches) > 0 {
			logger.Debug("profile selected by headers",
				"file", filename,
				"profile", matches[0].Profile.Name,
				"score", matches[0].Score,
			)
			return matches[0].Profile, nil
		}
	}
	if e.fallback != "" {
		logger.Debug("using fallback profile", "file", filename, "profile", e.fallback)
		return e.registry.Load(e.fallback)
	}
	return nil, &profile.NotFoundError{Name: filename}
}

func (e *Engine) loggerFor(ctx context.Context) *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return logging.FromContext(ctx)
}
