package callservice

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-call-signaling-service/callservice/config"
	"github.com/tinywideclouds/go-call-signaling-service/internal/api"
	"github.com/tinywideclouds/go-call-signaling-service/internal/events"
	"github.com/tinywideclouds/go-call-signaling-service/pkg/dispatch"
)

// Dependencies are the collaborators built in cmd and injected here.
type Dependencies struct {
	Issuer     api.TokenIssuer
	Dispatcher api.CallDispatcher
	Store      dispatch.RegistrationStore
	Events     events.Publisher
	// AuthMiddleware guards the registration API. Nil leaves it unmounted.
	AuthMiddleware func(http.Handler) http.Handler
}

type Wrapper struct {
	*microservice.BaseServer
	callAPI *api.CallAPI
	logger  *slog.Logger
}

// Router is the subset of *http.ServeMux the routes need.
type Router interface {
	Handle(pattern string, handler http.Handler)
}

// New assembles the service.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Wrapper {
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	callAPI := RegisterRoutes(baseServer.Mux(), corsMiddleware, deps, logger)

	return &Wrapper{
		BaseServer: baseServer,
		callAPI:    callAPI,
		logger:     logger,
	}
}

// RegisterRoutes mounts the call endpoints and, when an auth middleware is
// supplied, the registration API. The returned CallAPI owns any call updates
// still in flight.
func RegisterRoutes(mux Router, cors func(http.Handler) http.Handler, deps Dependencies, logger *slog.Logger) *api.CallAPI {
	callAPI := api.NewCallAPI(deps.Issuer, deps.Dispatcher, deps.Store, deps.Events, logger)
	preflight := cors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, cors(handlerFunc))
	}

	handle("POST /create-token", callAPI.CreateToken)
	handle("POST /incoming-call", callAPI.IncomingCall)
	handle("POST /call-update", callAPI.CallUpdate)
	handle("GET /health", callAPI.Health)
	for _, path := range []string{"/create-token", "/incoming-call", "/call-update"} {
		mux.Handle("OPTIONS "+path, preflight)
	}

	if deps.AuthMiddleware == nil {
		logger.Info("No identity service configured; registration API disabled")
		return callAPI
	}

	registrationAPI := api.NewRegistrationAPI(deps.Store, logger)
	handleAuth := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, cors(deps.AuthMiddleware(handlerFunc)))
	}
	handleAuth("POST /api/v1/registrations", registrationAPI.Register)
	handleAuth("POST /api/v1/registrations/remove", registrationAPI.Unregister)
	mux.Handle("OPTIONS /api/v1/", preflight)
	return callAPI
}

func (w *Wrapper) Start(_ context.Context) error {
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		return err
	}
	if err := w.callAPI.Drain(ctx); err != nil {
		w.logger.Warn("Call updates still in flight at shutdown.", "err", err)
		return err
	}
	w.logger.Info("Service shutdown complete.")
	return nil
}
