package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"backlinkoo/domains/internal/config"
	"backlinkoo/domains/internal/recon"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// disabledPaths is the deliberately disabled legacy surface: these endpoints
// answer 404 regardless of method.
var disabledPaths = []string{
	"/env-check",
	"/check",
	"/sync",
	"/sync-from-db",
	"/cron-sync",
	"/check-all",
	"/push",
}

// Server holds routing dependencies.
type Server struct {
	Config *config.Config
	Recon  *recon.Service
	Log    *logrus.Logger
}

// Routes constructs the HTTP router. The function answers under /, /domains,
// and /functions/v1/domains so both invocation styles of the original
// deployment keep working.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://*", "https://*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(s.Config.APIRatePerMin, time.Minute))
	r.Use(s.requestID)
	r.Use(s.recoverer)
	r.Use(s.limitBody)

	r.Mount("/domains", s.operationRoutes())
	r.Mount("/functions/v1/domains", s.operationRoutes())
	r.Mount("/", s.operationRoutes())

	return r
}

func (s *Server) operationRoutes() chi.Router {
	r := chi.NewRouter()

	for _, p := range disabledPaths {
		r.HandleFunc(p, s.handleDisabled)
	}

	r.Get("/", s.handleList)
	r.Get("/list", s.handleList)
	r.Post("/add", s.handleAdd)
	r.Post("/add_bulk", s.handleAddBulk)
	r.Post("/remove", s.handleRemove)
	r.Post("/sync_aliases", s.handleSyncAliases)
	r.Post("/", s.handleAction)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Not found", "path": req.URL.Path})
	})

	return r
}

func (s *Server) handleDisabled(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Disabled"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	result := s.Recon.ListDomains(r.Context())
	s.Log.WithFields(logrus.Fields{"event": "domains:list", "count": len(result.Aliases)}).Info("list")
	writeJSON(w, http.StatusOK, result)
}

type addRequest struct {
	Domain string `json:"domain"`
	UserID string `json:"user_id"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid payload"})
		return
	}
	writeJSON(w, http.StatusOK, s.Recon.AddDomain(r.Context(), req.Domain, req.UserID))
}

type bulkRequest struct {
	Domains []string `json:"domains"`
	UserID  string   `json:"user_id"`
}

func (s *Server) handleAddBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	// tolerate an empty body; validation rejects the empty set downstream
	_ = json.NewDecoder(r.Body).Decode(&req)
	writeJSON(w, http.StatusOK, s.Recon.AddBulk(r.Context(), req.Domains, req.UserID))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid payload"})
		return
	}
	writeJSON(w, http.StatusOK, s.Recon.RemoveDomain(r.Context(), req.Domain))
}

type syncRequest struct {
	Domains []string `json:"domains"`
	UserID  string   `json:"user_id"`
}

func (s *Server) handleSyncAliases(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid payload"})
		return
	}
	writeJSON(w, http.StatusOK, s.Recon.SyncAliases(r.Context(), req.Domains, req.UserID))
}

type actionRequest struct {
	Action  string   `json:"action"`
	Domain  string   `json:"domain"`
	Domains []string `json:"domains"`
	UserID  string   `json:"user_id"`
}

// handleAction serves the root-POST calling convention where the operation
// name travels in the body.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	switch strings.ToLower(req.Action) {
	case "add":
		if req.Domain != "" {
			writeJSON(w, http.StatusOK, s.Recon.AddDomain(r.Context(), req.Domain, req.UserID))
			return
		}
	case "add_bulk":
		if req.Domains != nil {
			writeJSON(w, http.StatusOK, s.Recon.AddBulk(r.Context(), req.Domains, req.UserID))
			return
		}
	case "remove":
		if req.Domain != "" {
			writeJSON(w, http.StatusOK, s.Recon.RemoveDomain(r.Context(), req.Domain))
			return
		}
	case "sync_aliases":
		if req.Domains != nil {
			writeJSON(w, http.StatusOK, s.Recon.SyncAliases(r.Context(), req.Domains, req.UserID))
			return
		}
	case "list":
		writeJSON(w, http.StatusOK, s.Recon.ListDomains(r.Context()))
		return
	case "validate", "sync_from_db", "sync", "cron_sync":
		s.handleDisabled(w, r)
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Unknown or invalid action"})
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		s.Log.WithFields(logrus.Fields{
			"event":      "domains:request",
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": id,
		}).Info("request")
		next.ServeHTTP(w, r)
	})
}

// recoverer is the outermost catch-all: a panic becomes a structured 500
// instead of a dropped connection.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.Log.WithField("panic", fmt.Sprint(rec)).Error("handler panic")
				writeJSON(w, http.StatusInternalServerError, map[string]any{
					"success": false,
					"error":   fmt.Sprint(rec),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
