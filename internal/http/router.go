package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"speech-coach-service/internal/app"
	"speech-coach-service/internal/service/coach"
	"speech-coach-service/internal/service/report"
	"speech-coach-service/internal/service/tracker"
)

// Session is the coaching session surface the router drives. *tracker.Tracker implements it.
type Session interface {
	StartListening(ctx context.Context) error
	StopListening()
	Snapshot() tracker.State
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, hub *Hub) http.Handler {
	return newRouter(application.Tracker, application.Ready, hub, time.Now)
}

func newRouter(session Session, ready func() bool, hub *Hub, now func() time.Time) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1/session", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, session.Snapshot())
		})
		r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
			if err := session.StartListening(r.Context()); err != nil {
				status := http.StatusServiceUnavailable
				if errors.Is(err, coach.ErrCaptureUnavailable) {
					status = http.StatusFailedDependency
				}
				writeJSON(w, status, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, session.Snapshot())
		})
		r.Post("/stop", func(w http.ResponseWriter, _ *http.Request) {
			session.StopListening()
			writeJSON(w, http.StatusOK, session.Snapshot())
		})
		r.Get("/report", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, report.Build(session.Snapshot(), now()))
		})
		if hub != nil {
			r.Get("/events", hub.ServeHTTP)
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
