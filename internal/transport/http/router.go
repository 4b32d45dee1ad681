package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/watch-buddy/pkg/httputil"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	AllowedOrigins []string
	Timeout        time.Duration
}

func NewRouter(h *Handler, wsHandler http.HandlerFunc, cfg RouterConfig) http.Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(httputil.MiddlewareRequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", httputil.HeaderRequestID},
		ExposedHeaders: []string{httputil.HeaderRequestID},
		MaxAge:         300,
	}))

	// WS endpoint: без логирующей обёртки и таймаута, соединение живёт долго
	r.Get("/ws/rooms/{id}", wsHandler)

	r.Group(func(pr chi.Router) {
		pr.Use(httputil.MiddlewareLogging)
		pr.Use(middlewareChi.Timeout(cfg.Timeout))

		pr.Route("/rooms", func(rm chi.Router) {
			rm.Post("/", h.CreateRoom)

			rm.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", h.GetRoom)
				rr.Get("/chat", h.GetChatHistory)
				rr.Get("/members", h.GetMembers)
			})
		})
	})

	// health
	r.Get("/healthz", h.Health)

	return r
}
