package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/topolord/topolord/pkg/store"
	"github.com/topolord/topolord/pkg/topology"
)

// Context keys
type contextKey string

const traceIDKey contextKey = "trace_id"

// Interfaces for dependencies to enable mocking

type StoreInterface interface {
	CreateService(ctx context.Context, svc topology.Service) error
	UpdateService(ctx context.Context, svc topology.Service) error
	DeleteManualServices(ctx context.Context, ids []string) (int64, error)
	GetService(ctx context.Context, id string) (*topology.Service, error)
	CreateDependency(ctx context.Context, dep topology.Dependency, manualOnly bool) error
	DeleteDependency(ctx context.Context, sourceID, targetID string, manualOnly bool) error
	GetGraph(ctx context.Context) (*topology.Graph, error)
	ImportServices(ctx context.Context, services []topology.Service, deps []topology.Dependency) (int, int, error)
	GetSettings(ctx context.Context) (topology.Settings, error)
	PutSettings(ctx context.Context, settings topology.Settings) error

	// Applications
	CreateApplication(ctx context.Context, app topology.Application) error
	UpdateApplication(ctx context.Context, app topology.Application) error
	DeleteApplication(ctx context.Context, id string) error
	GetApplication(ctx context.Context, id string) (*topology.Application, error)
	ListApplications(ctx context.Context) ([]topology.Application, error)

	// Incidents
	AddAlert(ctx context.Context, alert store.Alert) error
	ListAlerts(ctx context.Context, incidentID string) ([]store.Alert, error)
	AddComment(ctx context.Context, c store.Comment) (*store.Comment, error)
	ListComments(ctx context.Context, incidentID string) ([]store.Comment, error)
	AppendAudit(ctx context.Context, evt store.AuditEvent) error
	ListAudit(ctx context.Context, filter store.AuditFilter) ([]store.AuditEvent, error)
}

// GraphCache is an optional read-through cache for the topology snapshot.
// Mutations invalidate it; reads populate it.
type GraphCache interface {
	Get(ctx context.Context) (*topology.Graph, bool)
	Set(ctx context.Context, graph *topology.Graph)
	Invalidate(ctx context.Context)
}

// Server encapsulates the HTTP API server
type Server struct {
	store    StoreInterface
	server   *http.Server
	cache    GraphCache
	staticFS fs.FS

	// TLS Config
	tlsCertFile string
	tlsKeyFile  string
}

// NewServer creates a new API server instance
func NewServer(st StoreInterface, addr string) *Server {
	mux := http.NewServeMux()

	s := &Server{store: st}

	// Register routes
	mux.HandleFunc("/v1/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/topology", s.handleTopology)
	mux.HandleFunc("/v1/topology/settings", s.handleSettings)
	mux.HandleFunc("/v1/topology/service", s.handleServiceCreate)
	mux.HandleFunc("/v1/topology/service/", s.handleServiceUpdate)
	mux.HandleFunc("/v1/topology/services", s.handleServicesDelete)
	mux.HandleFunc("/v1/topology/dependency", s.handleDependency)
	mux.HandleFunc("/v1/topology/import", s.handleImport)
	mux.HandleFunc("/v1/topology/export", s.handleExport)
	mux.HandleFunc("/v1/topology/applications", s.handleApplications)
	mux.HandleFunc("/v1/topology/applications/", s.handleApplicationByID)
	mux.HandleFunc("/v1/incidents/", s.handleIncidents)

	// Static file handler (catch-all for SPA)
	mux.Handle("/", s.handleStatic())

	// Middleware: Logging, Panic Recovery, Security Headers
	handler := withLogging(withRecovery(withSecureHeaders(mux)))

	// Use default port if addr is empty
	if addr == "" {
		addr = ":8090"
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

// SetStaticFS sets the filesystem for serving static web assets
func (s *Server) SetStaticFS(fs fs.FS) {
	s.staticFS = fs
}

// SetTLS configures the server to use TLS
func (s *Server) SetTLS(certFile, keyFile string) {
	s.tlsCertFile = certFile
	s.tlsKeyFile = keyFile
}

// SetGraphCache sets the optional snapshot cache
func (s *Server) SetGraphCache(c GraphCache) {
	s.cache = c
}

// Handler exposes the full middleware-wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		fmt.Printf(`{"level":"info","msg":"server_starting_tls","addr":"%s"}`+"\n", s.server.Addr)
		if err := s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile); err != http.ErrServerClosed {
			return err
		}
	} else {
		fmt.Printf(`{"level":"info","msg":"server_starting","addr":"%s"}`+"\n", s.server.Addr)
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	fmt.Println(`{"level":"info","msg":"server_stopping"}`)
	return s.server.Shutdown(ctx)
}

// invalidateCache drops the cached snapshot after any topology mutation.
func (s *Server) invalidateCache(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

// audit records a mutation made through the API; failures are logged, never
// surfaced.
func (s *Server) audit(ctx context.Context, action store.AuditAction, entityID, detail string) {
	s.auditEvent(ctx, store.AuditEvent{
		Action:   action,
		Actor:    "api",
		EntityID: entityID,
		Detail:   detail,
	})
}

func (s *Server) auditEvent(ctx context.Context, evt store.AuditEvent) {
	if err := s.store.AppendAudit(ctx, evt); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_append_audit","trace_id":"%s","error":"%v"}`+"\n", getTraceID(ctx), err)
	}
}

// writeJSON encodes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_response","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
	}
}

// writeStoreError maps store sentinel errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
	case errors.Is(err, store.ErrNotManual):
		http.Error(w, `{"error":"not_manual"}`, http.StatusForbidden)
	case errors.Is(err, store.ErrExists):
		http.Error(w, `{"error":"already_exists"}`, http.StatusConflict)
	default:
		fmt.Printf(`{"level":"error","msg":"store_error","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
	}
}

// handleStatic serves static web assets with SPA fallback
func (s *Server) handleStatic() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.staticFS == nil {
			http.NotFound(w, r)
			return
		}

		path := r.URL.Path

		// Skip API routes
		if strings.HasPrefix(path, "/v1/") {
			http.NotFound(w, r)
			return
		}

		// Try to serve the file directly
		if file, err := s.staticFS.Open(path); err == nil {
			defer file.Close()
			if stat, err := file.Stat(); err == nil && !stat.IsDir() {
				// Set content type based on extension
				if strings.HasSuffix(path, ".css") {
					w.Header().Set("Content-Type", "text/css")
				} else if strings.HasSuffix(path, ".js") {
					w.Header().Set("Content-Type", "application/javascript")
				} else if strings.HasSuffix(path, ".html") {
					w.Header().Set("Content-Type", "text/html")
				}
				io.Copy(w, file)
				return
			}
		}

		// Fallback to index.html for SPA routing
		if indexFile, err := s.staticFS.Open("index.html"); err == nil {
			defer indexFile.Close()
			w.Header().Set("Content-Type", "text/html")
			io.Copy(w, indexFile)
			return
		}

		// If index.html not found, 404
		http.NotFound(w, r)
	})
}

// handleHealth returns simple status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Middleware: Panic Recovery
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				fmt.Printf(`{"level":"error","msg":"panic_recovered","error":"%v","path":"%s"}`+"\n", err, r.URL.Path)
				http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Request Logging
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 1. Extract or Generate Trace ID
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = generateTraceID()
		}

		// 2. Inject into Context
		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		// Wrap writer to capture status code
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		// 3. Set response header
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		fmt.Printf(`{"level":"info","msg":"http_request","trace_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`+"\n",
			traceID, r.Method, r.URL.Path, ww.status, duration.Milliseconds())
	})
}

func generateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback if random fails (unlikely)
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// statusWriter captures HTTP status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Middleware: Secure Headers
func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:;")
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		next.ServeHTTP(w, r)
	})
}
