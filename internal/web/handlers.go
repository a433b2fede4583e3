package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetnorm/internal/history"
	"github.com/JonMunkholm/sheetnorm/internal/logging"
	"github.com/JonMunkholm/sheetnorm/internal/normalize"
	"github.com/JonMunkholm/sheetnorm/internal/profile"
	"github.com/JonMunkholm/sheetnorm/internal/sheet"
	"github.com/go-chi/chi/v5"
)

// maxFormMemory is how much of a multipart upload is kept in memory
// before spilling to temporary files.
const maxFormMemory = 32 << 20

// ProfilesResponse lists the loadable profiles and the ones that failed.
type ProfilesResponse struct {
	Profiles []profile.Summary `json:"profiles"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// MappingEntry is one raw header to field mapping.
type MappingEntry struct {
	Raw   string `json:"raw"`
	Field string `json:"field"`
}

// ProfileResponse is the full view of one profile.
type ProfileResponse struct {
	profile.Summary
	ColumnMapping   []MappingEntry               `json:"columnMapping"`
	IgnoreColumns   []string                     `json:"ignoreColumns"`
	DataTypes       map[string]profile.FieldType `json:"dataTypes"`
	FilenameMarkers []string                     `json:"filenameMarkers,omitempty"`
}

// NormalizeResponse is the result of one normalization request.
type NormalizeResponse struct {
	RunID    string            `json:"runId"`
	Profile  string            `json:"profile"`
	FileName string            `json:"fileName,omitempty"`
	Saved    bool              `json:"saved"`
	Table    *normalize.Table  `json:"table"`
	Report   *normalize.Report `json:"report"`
}

// HealthResponse reports service readiness.
type HealthResponse struct {
	Status  string              `json:"status"`
	History bool                `json:"history"`
	Uploads UploadLimiterStatus `json:"uploads"`
}

// upload is a parsed request body ready for normalization. File uploads
// keep their bytes so the grid can be read again with the header row of
// the chosen profile.
type upload struct {
	fileName  string
	grid      sheet.Grid
	data      []byte
	opts      sheet.Options
	headerSet bool // header_row came from the query and wins over the profile
}

// regrid rereads a file upload when p puts the header on a different row
// than the one the grid was read with.
func (up *upload) regrid(p *profile.Profile) error {
	if up.data == nil || up.headerSet || up.opts.HeaderRow == p.Settings.HeaderRow {
		return nil
	}
	opts := up.opts
	opts.HeaderRow = p.Settings.HeaderRow
	grid, err := sheet.Read(up.data, up.fileName, opts)
	if err != nil {
		return fmt.Errorf("read %s: %w", up.fileName, err)
	}
	up.grid, up.opts = grid, opts
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		History: s.store != nil,
		Uploads: s.limiter.Status(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	profiles, broken, err := s.engine.Profiles()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	summaries := make([]profile.Summary, len(profiles))
	for i, p := range profiles {
		summaries[i] = p.Summarize()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPage(summaries, broken).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render index", "error", err)
	}
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, broken, err := s.engine.Profiles()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := ProfilesResponse{Profiles: make([]profile.Summary, len(profiles))}
	for i, p := range profiles {
		resp.Profiles[i] = p.Summarize()
	}
	if len(broken) > 0 {
		resp.Errors = make(map[string]string, len(broken))
		for name, err := range broken {
			resp.Errors[name] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Profile(chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := ProfileResponse{
		Summary:         p.Summarize(),
		ColumnMapping:   make([]MappingEntry, len(p.ColumnMapping)),
		IgnoreColumns:   p.Ignores(),
		DataTypes:       p.Types(),
		FilenameMarkers: slices.Clone(p.FilenameMarkers),
	}
	for i, m := range p.Mappings() {
		resp.ColumnMapping[i] = MappingEntry{Raw: m.Raw, Field: m.Canonical}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNormalizeAuto normalizes an uploaded file with a profile chosen
// from its file name and headers.
func (s *Server) handleNormalizeAuto(w http.ResponseWriter, r *http.Request) {
	s.normalize(w, r, s.readFile, func(ctx context.Context, up upload) (*profile.Profile, error) {
		return s.engine.ResolveProfile(ctx, up.fileName, up.grid)
	})
}

// handleNormalizeFile normalizes an uploaded CSV or XLSX file with the
// profile named in the path.
func (s *Server) handleNormalizeFile(w http.ResponseWriter, r *http.Request) {
	s.normalize(w, r, s.readFile, s.namedProfile(r))
}

// handleNormalizeGrid normalizes a grid posted as JSON with the profile
// named in the path.
func (s *Server) handleNormalizeGrid(w http.ResponseWriter, r *http.Request) {
	s.normalize(w, r, s.readGrid, s.namedProfile(r))
}

func (s *Server) namedProfile(r *http.Request) func(context.Context, upload) (*profile.Profile, error) {
	name := chi.URLParam(r, "profile")
	return func(context.Context, upload) (*profile.Profile, error) {
		return s.engine.Profile(name)
	}
}

// normalize holds an upload slot while it reads the body, picks the
// profile and runs the engine, then stores the report when history is
// enabled.
func (s *Server) normalize(
	w http.ResponseWriter,
	r *http.Request,
	read func(http.ResponseWriter, *http.Request) (upload, error),
	pick func(context.Context, upload) (*profile.Profile, error),
) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ErrTooManyUploads) {
			w.Header().Set("Retry-After", "5")
		}
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	up, err := read(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ctx = logging.NewContext(ctx, logging.WithFields(ctx, "file", up.fileName))

	p, err := pick(ctx, up)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := up.regrid(p); err != nil {
		s.respondError(w, r, err)
		return
	}

	table, report, err := s.engine.NormalizeProfile(ctx, up.grid, p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := NormalizeResponse{
		RunID:    report.RunID,
		Profile:  report.Profile,
		FileName: up.fileName,
		Table:    table,
		Report:   report,
	}
	if s.store != nil {
		if _, err := s.store.SaveRun(ctx, up.fileName, report); err != nil {
			logging.WithFields(ctx, "run_id", report.RunID).Warn("run history not saved", "error", err)
		} else {
			resp.Saved = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// readFile parses the multipart "file" part as CSV or XLSX. Query
// parameters header_row, sheet and encoding override the reader defaults;
// without header_row the profile's setting applies once it is chosen.
func (s *Server) readFile(w http.ResponseWriter, r *http.Request) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		if tooLarge(err) {
			return upload{}, fmt.Errorf("%w: %v", errFileTooLarge, err)
		}
		return upload{}, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return upload{}, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if tooLarge(err) {
			return upload{}, fmt.Errorf("%w: %v", errFileTooLarge, err)
		}
		return upload{}, fmt.Errorf("read upload: %w", err)
	}

	opts, headerSet := readOptions(r)
	grid, err := sheet.Read(data, header.Filename, opts)
	if err != nil {
		return upload{}, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	return upload{
		fileName:  header.Filename,
		grid:      grid,
		data:      data,
		opts:      opts,
		headerSet: headerSet,
	}, nil
}

// readGrid decodes a JSON grid body.
func (s *Server) readGrid(w http.ResponseWriter, r *http.Request) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	var g sheet.Grid
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		switch {
		case tooLarge(err):
			return upload{}, fmt.Errorf("%w: %v", errFileTooLarge, err)
		case errors.Is(err, io.EOF):
			return upload{}, sheet.ErrEmptyFile
		default:
			return upload{}, fmt.Errorf("%w: %v", errInvalidGrid, err)
		}
	}
	return upload{fileName: r.URL.Query().Get("file_name"), grid: g}, nil
}

// tooLarge reports whether err came from the MaxBytesReader limit. The
// multipart reader does not always wrap it, so the message is checked too.
func tooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large")
}

// readOptions returns the reader options from the query and whether
// header_row was given.
func readOptions(r *http.Request) (sheet.Options, bool) {
	q := r.URL.Query()
	opts := sheet.Options{
		Sheet:    q.Get("sheet"),
		Encoding: q.Get("encoding"),
	}
	if v := q.Get("header_row"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.HeaderRow = n
			return opts, true
		}
	}
	return opts, false
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context(), history.Filter{
		Profile: r.URL.Query().Get("profile"),
		Limit:   parseIntParam(r, "limit", history.DefaultListLimit),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
