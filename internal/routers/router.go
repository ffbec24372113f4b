package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"codeshare/internal/api"
	"codeshare/internal/session"
	"codeshare/internal/utils"
)

func New(log *utils.Logger, broker *session.Broker) http.Handler {
	h := api.NewHandlers(log, broker)
	r := chi.NewRouter()

	r.Get("/api/v1/healthz", h.Health)

	r.Post("/api/v1/sessions", h.CreateSession)
	r.Get("/api/v1/sessions/{code}", h.SessionInfo)

	r.Get("/ws/session/{code}", h.SessionWS)

	return r
}
