package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterHTTP mounts the control API under /v1.
func (s *Session) RegisterHTTP(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/toggle", func(w http.ResponseWriter, r *http.Request) {
			active, err := s.Toggle(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]any{"session_id": s.id, "active": active})
		})

		r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
			info, err := s.State(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, info)
		})

		r.Get("/pinned", func(w http.ResponseWriter, r *http.Request) {
			pins, err := s.Pins(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]any{"pinned": pins})
		})

		r.Delete("/pinned/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			closed, err := s.ClosePinned(r.Context(), id)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if !closed {
				writeError(w, 404, errors.New("unknown pinned tooltip"))
				return
			}
			writeJSON(w, 200, map[string]string{"status": "closed"})
		})

		r.Post("/copy", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Value string `json:"value"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			if req.Value == "" {
				writeError(w, 400, errors.New("value is required"))
				return
			}
			if err := s.Copy(r.Context(), req.Value); err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]string{"status": "ok"})
		})

		r.Post("/inspect", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				XPath string `json:"xpath"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			if req.XPath == "" {
				writeError(w, 400, errors.New("xpath is required"))
				return
			}
			res, err := s.Inspect(r.Context(), req.XPath)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, res)
		})
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
