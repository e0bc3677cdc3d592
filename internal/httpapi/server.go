package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/accessally/accessally/internal/brain"
	"github.com/accessally/accessally/internal/config"
	"github.com/accessally/accessally/internal/history"
	"github.com/accessally/accessally/internal/notes"
	"github.com/accessally/accessally/internal/observability"
)

// Dialogue produces user-facing replies and summaries.
type Dialogue interface {
	Respond(ctx context.Context, prompt string) string
	Summarize(ctx context.Context, turns []history.Turn, length brain.SummaryLength) string
	Available() bool
	BackendName() string
}

// Speech transcribes uploads and renders replies to audio artifacts.
type Speech interface {
	Transcribe(ctx context.Context, r io.Reader) (string, error)
	Synthesize(ctx context.Context, text, lang string) string
}

type Deps struct {
	History  *history.Store
	Notes    *notes.Store
	Locker   *history.Locker
	Dialogue Dialogue
	Speech   Speech
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
}

type Server struct {
	cfg      config.Config
	history  *history.Store
	notes    *notes.Store
	locker   *history.Locker
	dialogue Dialogue
	speech   Speech
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	static   http.Handler
	now      func() time.Time
}

func New(cfg config.Config, deps Deps) *Server {
	locker := deps.Locker
	if locker == nil {
		locker = history.NewLocker()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		cfg:      cfg,
		history:  deps.History,
		notes:    deps.Notes,
		locker:   locker,
		dialogue: deps.Dialogue,
		speech:   deps.Speech,
		metrics:  deps.Metrics,
		gatherer: gatherer,
		static:   newStaticHandler(cfg.StaticDir),
		now:      time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestLogger)

	r.Handle("/static/*", http.StripPrefix("/static/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler(s.gatherer).ServeHTTP(w, r)
	})

	r.Get("/load_history", s.handleLoadHistory)
	r.Get("/load_notes", s.handleLoadNotes)
	r.Post("/save_notes", s.handleSaveNotes)
	r.Post("/chat", s.handleChat)
	r.Post("/recognize", s.handleRecognize)
	r.Get("/summarize", s.handleSummarize)
	r.Get("/export_chat", s.handleExportChat)
	r.Post("/clear", s.handleClear)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	generation := "unavailable"
	if s.dialogue != nil && s.dialogue.Available() {
		generation = s.dialogue.BackendName()
	}
	body := map[string]any{
		"status":       "ok",
		"store_driver": s.cfg.StoreDriver,
		"generation":   generation,
	}
	if usage, err := disk.UsageWithContext(r.Context(), s.cfg.StaticDir); err == nil {
		body["disk_free_bytes"] = usage.Free
	} else {
		log.Warn().Err(err).Str("path", s.cfg.StaticDir).Msg("disk usage unavailable")
	}
	respondJSON(w, http.StatusOK, body)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// optionalURL renders a missing artifact as JSON null.
func optionalURL(u string) *string {
	if strings.TrimSpace(u) == "" {
		return nil
	}
	return &u
}
