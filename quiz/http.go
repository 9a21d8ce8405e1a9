package quiz

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/quizagent/horosafe"
	"github.com/hazyhaar/quizagent/idgen"
	"github.com/hazyhaar/quizagent/shield"
)

const maxRequestBody = 64 << 10

// Request is the inbound quiz submission.
type Request struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// NewHandler returns the HTTP front door:
//
//	POST /quiz          accept a request (200, 400, 403, 429)
//	GET  /sessions      registry listing
//	GET  /sessions/{id} one session (400 on a malformed ID)
//	GET  /healthz       liveness
//	GET  /metrics       Prometheus, when metrics is non-nil
//
// rl limits POST /quiz per client IP; nil disables limiting.
func NewHandler(a *Agent, rl *shield.RateLimiter, metrics http.Handler) http.Handler {
	mux := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack(maxRequestBody) {
		mux.Use(mw)
	}

	if rl != nil {
		mux.With(rl.Middleware).Post("/quiz", a.handleQuizHTTP)
	} else {
		mux.Post("/quiz", a.handleQuizHTTP)
	}

	mux.Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.registry.List())
	})
	mux.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := idgen.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		info, ok := a.registry.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("session not found"))
			return
		}
		writeJSON(w, http.StatusOK, info)
	})
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "active_sessions": a.registry.Active()})
	})
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}

func (a *Agent) handleQuizHTTP(w http.ResponseWriter, r *http.Request) {
	log := shield.GetLogger(r.Context())

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	if req.Email == "" || req.Secret == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, errors.New("email, secret and url are required"))
		return
	}
	if !horosafe.SecretEqual(a.cfg.Secret, req.Secret) {
		log.Warn("quiz: rejected request with wrong secret", "email", req.Email)
		writeError(w, http.StatusForbidden, errors.New("invalid secret"))
		return
	}

	id, err := a.HandleQuiz(req.Email, req.Secret, req.URL)
	switch {
	case errors.Is(err, ErrBusy):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, err)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
		return
	}

	log.Info("quiz: accepted", "session_id", id, "email", req.Email, "url", req.URL)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted", "session_id": id})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
