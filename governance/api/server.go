// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/tduhfajd/sql-guard/governance"
	"github.com/tduhfajd/sql-guard/governance/policy"
	"github.com/tduhfajd/sql-guard/governance/quota"
	"github.com/tduhfajd/sql-guard/shared/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server exposes the governance pipeline and policy administration over HTTP.
type Server struct {
	pipeline *governance.Pipeline
	policies *policy.Service
	auth     *Authenticator
	limiter  *quota.Limiter
	metrics  http.Handler
	origins  []string
	log      *logger.Logger
	now      func() time.Time

	databaseID   string
	databaseType string
}

// Option is a functional option for configuring Server.
type Option func(*Server)

// WithLimiter exposes quota status and reset endpoints.
func WithLimiter(l *quota.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithAllowedOrigins sets the CORS origins. Default: all.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithTarget sets the database id and type used when a request names none.
func WithTarget(databaseID, databaseType string) Option {
	return func(s *Server) {
		s.databaseID = databaseID
		s.databaseType = databaseType
	}
}

// NewServer creates a server.
func NewServer(pipeline *governance.Pipeline, policies *policy.Service, auth *Authenticator, opts ...Option) *Server {
	s := &Server{
		pipeline: pipeline,
		policies: policies,
		auth:     auth,
		origins:  []string{"*"},
		log:      logger.New("api"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the route table without CORS handling.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics).Methods("GET")
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.auth.Middleware)

	api.HandleFunc("/governance/check", s.handleCheck).Methods("POST")
	api.HandleFunc("/governance/execute", s.handleExecute).Methods("POST")

	// fixed paths must come before {id}
	api.HandleFunc("/policies", s.handleListPolicies).Methods("GET")
	api.HandleFunc("/policies", s.handleCreatePolicy).Methods("POST")
	api.HandleFunc("/policies/types", s.handlePolicyTypes).Methods("GET")
	api.HandleFunc("/policies/stats", s.handlePolicyStats).Methods("GET")
	api.HandleFunc("/policies/evaluate", s.handleEvaluatePolicies).Methods("POST")
	api.HandleFunc("/policies/{id}", s.handleGetPolicy).Methods("GET")
	api.HandleFunc("/policies/{id}", s.handleUpdatePolicy).Methods("PUT")
	api.HandleFunc("/policies/{id}", s.handleDeletePolicy).Methods("DELETE")

	api.HandleFunc("/access/summary", s.handleAccessSummary).Methods("GET")
	api.HandleFunc("/quota", s.handleQuotaStatus).Methods("GET")
	api.HandleFunc("/quota/{subject_id}", s.handleQuotaReset).Methods("DELETE")

	api.HandleFunc("/pii/detect", s.handlePIIDetect).Methods("POST")
	api.HandleFunc("/pii/mask", s.handlePIIMask).Methods("POST")
	api.HandleFunc("/pii/report", s.handlePIIReport).Methods("POST")

	return router
}

// Handler returns the router wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
	})
	return c.Handler(s.Router())
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("", "", "Server shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	s.log.Info("", "", "SQL guard API starting", map[string]interface{}{"addr": addr})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.log.InfoWithDuration("", r.Header.Get("X-Request-ID"), "HTTP request", time.Since(start), map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": rec.status,
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.policies.Store().Snapshot()
	writeJSONResponse(w, map[string]interface{}{
		"status":         "healthy",
		"policy_version": snap.Version(),
		"policies":       snap.Len(),
		"timestamp":      s.now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// clientIP returns the first X-Forwarded-For entry or the peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
