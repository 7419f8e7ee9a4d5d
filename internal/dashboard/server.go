// Package dashboard serves the web front end for running and inspecting
// benchmarks.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"blobbench/internal/bench"
	"blobbench/internal/database"
	"blobbench/internal/ui"
	"blobbench/pkg/auth"
	"blobbench/pkg/storage"
)

// multipartOverhead is the slack allowed on top of MaxUploadBytes for the
// multipart envelope.
const multipartOverhead = 1 << 20

// Benchmarks is the set of operations the dashboard exposes.
type Benchmarks interface {
	RunUpload(ctx context.Context, f bench.File) (bench.Result, error)
	RunDownload(ctx context.Context, name string) (bench.Result, error)
	Fetch(ctx context.Context, backend bench.Backend, name string) ([]byte, error)
	DeleteByName(ctx context.Context, name string) (bench.DeleteReport, error)
	ListAvailable(ctx context.Context) ([]string, error)
	SearchByName(ctx context.Context, substr string) ([]database.Record, error)
}

type Config struct {
	MaxUploadBytes    int64
	AllowedExtensions []string

	// Auth guards every route except /healthz. Nil leaves the dashboard open.
	Auth auth.AuthEngine

	// Metrics is served on /metrics when non-nil.
	Metrics http.Handler

	// Driver names the relational driver for display.
	Driver string

	// Logger receives the request log. Nil uses slog.Default.
	Logger *slog.Logger
}

type Server struct {
	benchmarks Benchmarks
	cfg        Config
}

func NewServer(benchmarks Benchmarks, cfg Config) *Server {
	return &Server{benchmarks: benchmarks, cfg: cfg}
}

// Handler returns the dashboard routes wrapped in logging, recovery and
// authentication middleware.
func (s *Server) Handler() http.Handler {
	app := http.NewServeMux()
	app.HandleFunc("GET /{$}", s.Home)
	app.HandleFunc("GET /records", s.Records)
	app.HandleFunc("POST /upload", s.Upload)
	app.HandleFunc("POST /download", s.Download)
	app.HandleFunc("GET /files/{backend}/{name...}", s.Save)
	app.HandleFunc("POST /delete", s.Delete)
	if s.cfg.Metrics != nil {
		app.Handle("GET /metrics", s.cfg.Metrics)
	}

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	root.Handle("/", RequireAuthentication(s.cfg.Auth)(app))

	logger := s.cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return LogRequest(logger, Recoverer(root))
}

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("Failed to render page", "path", r.URL.Path, "err", err)
	}
}

func renderError(w http.ResponseWriter, r *http.Request, status int, title string, err error) {
	render(w, r, status, ui.MessagePage(title, err.Error(), true))
}

// statusFor maps a benchmark error to an HTTP status.
func statusFor(err error) int {
	var objErr *bench.ObjectStoreError
	switch {
	case errors.Is(err, bench.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrObjectNotFound), errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &objErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func toRecords(records []database.Record) []ui.Record {
	out := make([]ui.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, ui.Record{ID: rec.ID, Name: rec.Name, Size: rec.Size})
	}
	return out
}

func timing(label string, m bench.Measurement) ui.Timing {
	t := ui.Timing{Label: label, Elapsed: m.Elapsed}
	if m.Err != nil {
		t.Failed = true
		t.Cause = m.Err.Error()

		var relErr *bench.RelationalStoreError
		if errors.As(m.Err, &relErr) {
			t.Cause = relErr.Cause()
		}
	}
	return t
}

func winnerLabel(b bench.Backend) string {
	s := b.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

func toView(res bench.Result) ui.Result {
	ratio, ok := res.Ratio()
	return ui.Result{
		RunID:      res.RunID.String(),
		Operation:  res.Operation.String(),
		Name:       res.Name,
		Size:       res.Size,
		StartedAt:  res.StartedAt,
		Object:     timing("Object store", res.Object),
		Relational: timing("Relational store", res.Relational),
		Winner:     winnerLabel(res.Winner()),
		Ratio:      ratio,
		RatioOK:    ok,
		SaveLinks:  res.Operation == bench.Download,
	}
}

func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query().Get("q")

	names, err := s.benchmarks.ListAvailable(ctx)
	if err != nil {
		renderError(w, r, http.StatusBadGateway, "Failed to list stored files", err)
		return
	}

	records, err := s.benchmarks.SearchByName(ctx, query)
	if err != nil {
		renderError(w, r, http.StatusBadGateway, "Failed to search records", err)
		return
	}

	render(w, r, http.StatusOK, ui.HomePage(ui.Home{
		Names:             names,
		Records:           toRecords(records),
		Query:             query,
		AllowedExtensions: s.cfg.AllowedExtensions,
		MaxUploadBytes:    s.cfg.MaxUploadBytes,
		Notice:            r.URL.Query().Get("notice"),
		Driver:            s.cfg.Driver,
	}))
}

// Records renders only the records table, for in-page search.
func (s *Server) Records(w http.ResponseWriter, r *http.Request) {
	records, err := s.benchmarks.SearchByName(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = fmt.Fprintf(w, "<p class=\"error-message\">%s</p>", templ.EscapeString(err.Error()))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ui.RecordsTable(toRecords(records)).Render(r.Context(), w); err != nil {
		slog.Error("Failed to render records", "err", err)
	}
}

func (s *Server) extensionAllowed(name string) bool {
	if len(s.cfg.AllowedExtensions) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedExtensions, strings.ToLower(path.Ext(name)))
}

// validUploadName rejects names that cannot be stored as a single object key.
func validUploadName(name string) bool {
	switch strings.TrimSpace(name) {
	case "", ".", "..", "/":
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}

func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			renderError(w, r, http.StatusRequestEntityTooLarge, "Upload too large",
				fmt.Errorf("the limit is %s", humanize.IBytes(uint64(s.cfg.MaxUploadBytes))))
			return
		}
		renderError(w, r, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid upload", fmt.Errorf("a file is required: %w", err))
		return
	}
	defer file.Close()

	name := path.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	if !validUploadName(name) {
		renderError(w, r, http.StatusBadRequest, "Invalid upload",
			fmt.Errorf("%q is not a usable file name", header.Filename))
		return
	}
	if !s.extensionAllowed(name) {
		renderError(w, r, http.StatusUnsupportedMediaType, "File type not allowed",
			fmt.Errorf("%q is not one of %s", name, strings.Join(s.cfg.AllowedExtensions, ", ")))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		renderError(w, r, http.StatusRequestEntityTooLarge, "Upload too large",
			fmt.Errorf("the limit is %s", humanize.IBytes(uint64(s.cfg.MaxUploadBytes))))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(name))
	}

	res, err := s.benchmarks.RunUpload(r.Context(), bench.NewFile(name, data, contentType))
	if err != nil {
		renderError(w, r, statusFor(err), "Upload benchmark failed", err)
		return
	}

	render(w, r, http.StatusOK, ui.ResultPage(toView(res)))
}

func (s *Server) Download(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request", err)
		return
	}

	res, err := s.benchmarks.RunDownload(r.Context(), strings.TrimSpace(r.FormValue("name")))
	if err != nil {
		renderError(w, r, statusFor(err), "Download benchmark failed", err)
		return
	}

	render(w, r, http.StatusOK, ui.ResultPage(toView(res)))
}

// Save streams the payload of name as held by one backend. It reads the
// store directly and does not record a benchmark run.
func (s *Server) Save(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var backend bench.Backend
	switch r.PathValue("backend") {
	case "object":
		backend = bench.ObjectStore
	case "relational":
		backend = bench.RelationalStore
	default:
		http.NotFound(w, r)
		return
	}

	payload, err := s.benchmarks.Fetch(r.Context(), backend, name)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(name)}))
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	_, _ = w.Write(payload)
}

func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request", err)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	report, err := s.benchmarks.DeleteByName(r.Context(), name)
	if err != nil {
		renderError(w, r, statusFor(err), "Delete failed", err)
		return
	}

	notice := fmt.Sprintf("Deleted %d relational row(s) named %q.", report.RowsDeleted, report.Name)
	switch {
	case report.ObjectDeleted:
		notice += " Object removed from the object store."
	case errors.Is(report.ObjectErr, storage.ErrObjectNotFound):
		notice += " The object store had no object with that key."
	default:
		notice += fmt.Sprintf(" Object store delete failed: %v", report.ObjectErr)
	}

	http.Redirect(w, r, "/?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}
