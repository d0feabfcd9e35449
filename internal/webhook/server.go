// Package webhook exposes scan triggers and the latest report over HTTP.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/user/whoisscan/internal/report"
	"github.com/user/whoisscan/internal/session"
)

// ScanFunc runs one scan and returns its report.
type ScanFunc func(ctx context.Context) (*report.Report, error)

type Server struct {
	router *chi.Mux
	scan   ScanFunc
	latest *report.Latest
	logger *slog.Logger
}

func NewServer(scan ScanFunc, latest *report.Latest, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		scan:   scan,
		latest: latest,
		logger: logger,
	}

	router.Get("/healthz", s.health)
	router.Post("/scan", s.trigger)
	router.Get("/report", s.report)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type scanResponse struct {
	RunID   string           `json:"run_id"`
	Matches int              `json:"matches"`
	Records []recordResponse `json:"records"`
}

type recordResponse struct {
	MessageID   int64  `json:"message_id"`
	DisplayName string `json:"display_name"`
	Timestamp   string `json:"timestamp"`
	ProfileLink string `json:"profile_link,omitempty"`
}

func toResponse(r *report.Report) scanResponse {
	out := scanResponse{RunID: string(r.RunID), Matches: len(r.Records), Records: make([]recordResponse, 0, len(r.Records))}
	for _, rec := range r.Records {
		out.Records = append(out.Records, recordResponse(rec))
	}
	return out
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	rep, err := s.scan(r.Context())
	if errors.Is(err, session.ErrSessionBusy) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a scan is already running"})
		return
	}
	if err != nil {
		s.logger.Error("triggered scan failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rep))
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	rep := s.latest.Get()
	if rep == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no report yet"})
		return
	}
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, toResponse(rep))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(rep.Text))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
