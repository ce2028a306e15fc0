package http

import (
	"net/http"

	"github.com/atinyakov/VaultKeeper/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the HTTP handler serving the vault backend.
//
// Routes:
//
//	POST /rpc      → rpcHandler.ServeRPC (client certificate required)
//	GET  /healthz  → rpcHandler.Health
//
// Middleware chain, applied in order: recovery, JSON content-type
// enforcement for requests with a body, request logging, certificate auth.
func NewRouter(rpcHandler *RPCHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.CertAuth)

	r.Post("/rpc", rpcHandler.ServeRPC)
	r.Get(middleware.HealthPath, rpcHandler.Health)

	return r
}
