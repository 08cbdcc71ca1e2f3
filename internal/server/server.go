// Package server provides the read-only dashboard HTTP server.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/VertyyBird/Reddit-Archiver/internal/database"
	"github.com/VertyyBird/Reddit-Archiver/internal/model"
	"github.com/VertyyBird/Reddit-Archiver/internal/snapshot"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Limits for the two read surfaces.
const (
	defaultPerPage = 50
	minPerPage     = 10
	maxPerPage     = 200

	defaultAPILimit = 100
	maxAPILimit     = 500
)

// Server renders the dashboard from its own read-only store handle. It
// never writes; the archiver process owns the write path.
type Server struct {
	db        *database.DB
	dbPath    string
	router    chi.Router
	templates *template.Template
	logger    *zap.Logger
}

// New creates a dashboard server over a read-only database handle.
func New(db *database.DB, dbPath string, logger *zap.Logger) (*Server, error) {
	tmpl, err := template.New("").ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s := &Server{
		db:        db,
		dbPath:    dbPath,
		templates: tmpl,
		logger:    logger,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleIndex)
	r.Get("/api/latest", s.handleLatest)
	r.Get("/api/latest.json", s.handleLatest)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener fails or ctx finishes, then drains
// in-flight requests before returning.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("dashboard listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("dashboard shutting down")
	return srv.Shutdown(shutdownCtx)
}

// --- Handlers ---

type statView struct {
	Total          int
	WaybackOK      int
	WaybackPending int
	ATodayOK       int
	BothOK         int
}

type legView struct {
	Class string
	Label string
	Link  string
}

type rowView struct {
	Time       string
	Subreddit  string
	Title      string
	RedditURL  string
	URLWWW     string
	URLOld     string
	WaybackWWW legView
	WaybackOld legView
	ATodayWWW  legView
	ATodayOld  legView
	Errors     []string
}

type pageView struct {
	DBPath   string
	Updated  string
	Stats    statView
	Rows     []rowView
	Page     int
	PerPage  int
	PrevPage int
	NextPage int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := intParam(r, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := clamp(intParam(r, "per_page", defaultPerPage), minPerPage, maxPerPage)
	offset := (page - 1) * perPage

	stats, err := s.stats()
	if err != nil {
		s.logger.Error("stats query failed", zap.Error(err))
		http.Error(w, "Query error", http.StatusInternalServerError)
		return
	}

	posts, err := s.db.RecentPosts(perPage, offset)
	if err != nil {
		s.logger.Error("recent posts query failed", zap.Error(err))
		http.Error(w, "Query error", http.StatusInternalServerError)
		return
	}

	rows := make([]rowView, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, toRowView(p))
	}

	data := pageView{
		DBPath:   s.dbPath,
		Updated:  time.Now().UTC().Format(time.RFC3339),
		Stats:    stats,
		Rows:     rows,
		Page:     page,
		PerPage:  perPage,
		PrevPage: max(1, page-1),
		NextPage: page + 1,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("template render failed", zap.Error(err))
	}
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	limit := clamp(intParam(r, "limit", defaultAPILimit), 1, maxAPILimit)

	rows, err := snapshot.Latest(s.db, limit, 0)
	if err != nil {
		s.logger.Error("latest query failed", zap.Error(err))
		http.Error(w, "Query error", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []snapshot.Row{}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		s.logger.Error("encode latest failed", zap.Error(err))
	}
}

func (s *Server) stats() (statView, error) {
	total, err := s.db.CountPosts("")
	if err != nil {
		return statView{}, err
	}
	waybackOK, err := s.db.CountPosts(database.WhereWaybackOKAny)
	if err != nil {
		return statView{}, err
	}
	waybackPending, err := s.db.CountPosts(database.WhereWaybackPendingAny)
	if err != nil {
		return statView{}, err
	}
	atodayOK, err := s.db.CountPosts(database.WhereATodayOKAny)
	if err != nil {
		return statView{}, err
	}
	bothOK, err := s.db.CountPosts(database.WhereBothOKAny)
	if err != nil {
		return statView{}, err
	}
	return statView{
		Total:          total,
		WaybackOK:      waybackOK,
		WaybackPending: waybackPending,
		ATodayOK:       atodayOK,
		BothOK:         bothOK,
	}, nil
}

// --- View helpers ---

func toRowView(p model.Post) rowView {
	wbWWW := p.Legs[model.LegKey{Service: model.ServiceWayback, Variant: model.VariantWWW}]
	wbOld := p.Legs[model.LegKey{Service: model.ServiceWayback, Variant: model.VariantOld}]
	atWWW := p.Legs[model.LegKey{Service: model.ServiceArchiveToday, Variant: model.VariantWWW}]
	atOld := p.Legs[model.LegKey{Service: model.ServiceArchiveToday, Variant: model.VariantOld}]

	var errs []string
	for _, e := range []struct{ name, val string }{
		{"err_wayback_www", wbWWW.SubmitErr},
		{"err_wayback_old", wbOld.SubmitErr},
		{"err_wayback_avail_www", wbWWW.AvailErr},
		{"err_wayback_avail_old", wbOld.AvailErr},
		{"err_atoday_www", atWWW.SubmitErr},
		{"err_atoday_old", atOld.SubmitErr},
	} {
		if e.val != "" {
			errs = append(errs, e.name+": "+e.val)
		}
	}

	return rowView{
		Time:       fmtPostTime(p),
		Subreddit:  p.Subreddit,
		Title:      p.Title,
		RedditURL:  p.RedditURL,
		URLWWW:     p.URLWWW,
		URLOld:     p.URLOld,
		WaybackWWW: waybackPill(wbWWW),
		WaybackOld: waybackPill(wbOld),
		ATodayWWW:  atodayPill(atWWW),
		ATodayOld:  atodayPill(atOld),
		Errors:     errs,
	}
}

// waybackPill classifies a Wayback leg for display: confirmed, still in
// the verification queue, or never submitted.
func waybackPill(leg model.LegState) legView {
	v := legView{Link: leg.Link}
	switch {
	case leg.Verified():
		v.Class, v.Label = "ok", "✓ ok"
	case leg.SubmitTS != "" && leg.OK != nil && !leg.CheckedAt.IsZero():
		v.Class, v.Label = "pending", "… pending"
	case leg.SubmitTS != "":
		v.Class, v.Label = "pending", "… queued"
	default:
		v.Class, v.Label = "unknown", "—"
	}
	return v
}

// atodayPill classifies an archive.today leg: its verdict is fixed at
// submission time, so a checked leg without a link is a hard miss.
func atodayPill(leg model.LegState) legView {
	v := legView{Link: leg.Link}
	switch {
	case leg.Verified():
		v.Class, v.Label = "ok", "✓ ok"
	case !leg.CheckedAt.IsZero():
		v.Class, v.Label = "bad", "✕ no link"
	default:
		v.Class, v.Label = "unknown", "—"
	}
	return v
}

func fmtPostTime(p model.Post) string {
	if p.CreatedUTC != nil {
		return time.Unix(*p.CreatedUTC, 0).UTC().Format("2006-01-02 15:04 UTC")
	}
	if p.InsertedAt.IsZero() {
		return "—"
	}
	return p.InsertedAt.UTC().Format("2006-01-02 15:04 UTC")
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
