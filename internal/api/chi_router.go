// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/watchtower/internal/auth"
	"github.com/tomtom215/watchtower/internal/authz"
	"github.com/tomtom215/watchtower/internal/controlplane"
	"github.com/tomtom215/watchtower/internal/lockdown"
	"github.com/tomtom215/watchtower/internal/middleware"
	"github.com/tomtom215/watchtower/internal/websocket"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	Middleware *ChiMiddlewareConfig

	// WebSocketOrigins are the origins allowed to open the live channel.
	// Empty falls back to Middleware.CORSAllowedOrigins.
	WebSocketOrigins []string

	// LockdownExemptPaths replaces lockdown.DefaultExemptPaths when set.
	LockdownExemptPaths []string

	// SwaggerEnabled serves /swagger/*.
	SwaggerEnabled bool

	// TrustedProxies may set X-Forwarded-For and X-Real-IP. Nil trusts
	// no one and uses the connection's peer address.
	TrustedProxies *middleware.TrustedProxies
}

// Router wires handlers, authentication and policy into a Chi mux.
type Router struct {
	handler       *Handler
	plane         *controlplane.Plane
	authn         *auth.Authenticator
	enforcer      *authz.Enforcer
	hub           *websocket.Hub
	chiMiddleware *ChiMiddleware
	config        RouterConfig
}

// NewRouter creates a router. hub may be nil, in which case the live
// channel is not mounted.
func NewRouter(plane *controlplane.Plane, enforcer *authz.Enforcer, hub *websocket.Hub, config RouterConfig) *Router {
	if config.Middleware == nil {
		config.Middleware = DefaultChiMiddlewareConfig()
	}
	var clients ClientCounter
	if hub != nil {
		clients = hub
	}
	return &Router{
		handler:       NewHandler(plane, clients),
		plane:         plane,
		authn:         auth.NewAuthenticator(plane.Tokens),
		enforcer:      enforcer,
		hub:           hub,
		chiMiddleware: NewChiMiddleware(config.Middleware),
		config:        config,
	}
}

// SetupChi builds the route tree.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(middleware.ResolveClientIP(router.config.TrustedProxies))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(router.chiMiddleware.CORS()) // must be global to answer OPTIONS preflight
	r.Use(router.chiMiddleware.RateLimit())
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.RequestLog(router.plane.Logs))
	r.Use(lockdown.Middleware(router.plane.Lockdown, router.authn.Identify, router.config.LockdownExemptPaths...))

	h := router.handler
	r.Route("/api/v1", func(r chi.Router) {
		r.With(router.chiMiddleware.RateLimitHealth()).Get("/health", h.Health)
		r.Get("/lockdown/status", h.LockdownStatus)
		r.With(router.chiMiddleware.RateLimitAuth()).Post("/auth/refresh", h.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(router.authn.Middleware(writeAuthError))
			r.Use(authz.Authorize(router.enforcer, writeAuthError))

			r.Post("/lockdown/initiate", h.InitiateLockdown)
			r.Post("/lockdown/lift", h.LiftLockdown)

			r.Get("/logs", h.GetLogs)
			r.Get("/logs/stats", h.GetLogStats)
			r.Post("/logs/search", h.SearchLogs)
			r.With(router.chiMiddleware.RateLimitExport()).Post("/logs/export", h.ExportLogs)

			r.With(router.chiMiddleware.RateLimitAuth()).Post("/auth/logout", h.Logout)
			r.Post("/auth/revoke-all/{userID}", h.RevokeAll)

			if router.hub != nil {
				r.Get("/ws/logs", websocket.ServeWS(router.hub, router.webSocketOrigins()))
			}
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	if router.config.SwaggerEnabled {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
			httpSwagger.DeepLinking(true),
			httpSwagger.DocExpansion("list"),
			httpSwagger.DomID("swagger-ui"),
		))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	return r
}

func (router *Router) webSocketOrigins() []string {
	if len(router.config.WebSocketOrigins) > 0 {
		return router.config.WebSocketOrigins
	}
	return router.config.Middleware.CORSAllowedOrigins
}
