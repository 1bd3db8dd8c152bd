// CLAUDE:SUMMARY Admin HTTP API (chi): health, run journal listing, manual run trigger behind an optional bearer token.
package crossword

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/dailydrop/civildate"
	"github.com/hazyhaar/dailydrop/shield"
)

// Routes returns the admin HTTP API:
//
//	GET  /health
//	GET  /runs?limit=N
//	POST /runs  {"date":"YYYY-MM-DD","dry_run":true}
//
// POST /runs requires "Authorization: Bearer {admin_token}" when a token is
// configured.
func (s *Service) Routes() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.AdminStack(s.logger) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/runs", func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.Recent(r.Context(), queryInt(r, "limit", 50))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	})

	r.With(shield.RequireBearer(s.config.AdminToken)).Post("/runs", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Date   string `json:"date"`
			DryRun bool   `json:"dry_run"`
		}
		// An empty body, sized or chunked, means tomorrow without dry run.
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		date := s.Tomorrow()
		if req.Date != "" {
			d, err := civildate.Parse(req.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			date = d
		}

		log := shield.GetLogger(r.Context())
		log.Info("crossword: run requested", "date", date.String(), "dry_run", req.DryRun)

		// A client disconnect must not abort a run mid-upload.
		res, err := s.Run(context.WithoutCancel(r.Context()), date, req.DryRun)
		switch {
		case errors.Is(err, ErrRunInProgress):
			log.Warn("crossword: run refused, another run is active")
			writeError(w, http.StatusConflict, err)
		case err != nil:
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":  err.Error(),
				"kind":   Kind(err),
				"status": StatusCode(err),
				"result": res,
			})
		default:
			writeJSON(w, http.StatusOK, res)
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
