package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kelo-robotics/fmlib/internal/config"
	"github.com/kelo-robotics/fmlib/internal/eventbus"
	"github.com/kelo-robotics/fmlib/internal/request"
	"github.com/kelo-robotics/fmlib/internal/task"
	"github.com/kelo-robotics/fmlib/internal/timetable"
	"github.com/kelo-robotics/fmlib/pkg/cerr"
	"github.com/kelo-robotics/fmlib/pkg/clog"
)

type Server struct {
	server          *http.Server
	env             *config.Env
	requestServer   *request.Server
	taskServer      *task.Server
	timetableServer *timetable.Server
	eventServer     *eventbus.Server
}

func NewServer(
	env *config.Env,
	requestServer *request.Server,
	taskServer *task.Server,
	timetableServer *timetable.Server,
	eventServer *eventbus.Server,
) *Server {
	return &Server{
		env:             env,
		requestServer:   requestServer,
		taskServer:      taskServer,
		timetableServer: timetableServer,
		eventServer:     eventServer,
	}
}

// ListenAndServe starts the HTTP server. The provided context is used as the
// base context for all incoming requests via http.Server.BaseContext, so
// cancelling it on shutdown also cancels long-lived event streams.
func (s *Server) ListenAndServe(ctx context.Context) error {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		// The event stream writes its response incrementally, so it stays
		// outside the JSON response middleware.
		s.eventServer.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(
				clog.SlogChiMiddleware(),
				cerr.NewJSONResponseChiMiddleware(),
			)
			s.requestServer.RegisterRoutes(r)
			s.taskServer.RegisterRoutes(r)
			s.timetableServer.RegisterRoutes(r)
			r.NotFound(func(w http.ResponseWriter, r *http.Request) {
				cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
			})
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)

	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(mux), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
