package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-answerbook/internal/aggregate"
	"github.com/mind-engage/mindengage-answerbook/internal/answers"
	auth "github.com/mind-engage/mindengage-answerbook/internal/auth/middleware"
	"github.com/mind-engage/mindengage-answerbook/internal/autosave"
	"github.com/mind-engage/mindengage-answerbook/internal/exports"
	"github.com/mind-engage/mindengage-answerbook/internal/metrics"
	"github.com/mind-engage/mindengage-answerbook/internal/printer"
	"github.com/mind-engage/mindengage-answerbook/internal/rbac"
	syncx "github.com/mind-engage/mindengage-answerbook/internal/sync"
)

// Deps are the components the HTTP surface is built on. Hub, Auth, Chrome,
// Exporter, Events and Gatherer are optional; their routes are left out when nil.
type Deps struct {
	Adapter    *answers.Adapter
	Autosave   *autosave.Debouncer
	Aggregator *aggregate.Aggregator
	PrintPage  printer.PageOptions

	Exporter *exports.Exporter
	Chrome   *printer.Chrome
	Events   *syncx.EventRepo

	Hub  http.Handler
	Auth *auth.AuthService

	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	Ready       func(ctx context.Context) error
	Log         *zap.Logger
}

func NewRouter(d Deps) chi.Router {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(d.Log), middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "PUT", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// the bridge connection is long lived, keep it outside the timeout
	if d.Hub != nil && d.Auth != nil {
		r.With(auth.JWTMiddleware(d.Auth), rbac.Require(rbac.PermBridgeConnect)).Handle("/bridge/ws", d.Hub)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Timeout(60 * time.Second))

		pr.Get("/", AnswerPageHandler(d.Adapter, d.Autosave, d.Log))
		pr.Get("/api/answers", GetAnswerHandler(d.Adapter, d.Autosave))
		pr.Put("/api/answers", PutAnswerHandler(d.Autosave))

		pr.Get("/print", PrintHandler(d.Aggregator, d.Autosave, d.PrintPage))
		pr.Get("/export.md", ExportMarkdownHandler(d.Aggregator, d.Autosave))
		pr.Get("/export.pdf", ExportPDFHandler(d.Aggregator, d.Autosave, d.Chrome, d.PrintPage))

		if d.Events != nil {
			pr.Get("/api/events", EventsHandler(d.Events))
		}
		if d.Exporter != nil {
			pr.Route("/exports", func(er chi.Router) {
				MountExports(er, d.Exporter, d.Autosave)
			})
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(200)
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(d.Gatherer))
	}
	return r
}

// RequestLogger logs one line per request through zap.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
