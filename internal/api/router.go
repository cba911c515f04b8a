// Package api exposes the chat assistant over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type RouterOptions struct {
	AllowedOrigins []string
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", SessionHeader},
			ExposedHeaders:   []string{SessionHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/", h.Root)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/models", h.ListModels)

		r.Group(func(r chi.Router) {
			r.Use(h.withSession)

			r.Post("/chat", h.Chat)
			r.Get("/chat/history", h.History)
			r.Post("/chat/clear", h.Clear)
			r.Get("/model", h.GetModel)
			r.Post("/model", h.SetModel)
			r.Post("/upload/cv", h.UploadCV)
		})
	})

	return r
}

// requestLogger logs one line per request with the zap logger.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote", r.RemoteAddr),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
