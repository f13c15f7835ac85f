// Package web serves the employee pages, the receipt files and the bill API.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/billed-app/billed/internal/auth"
	"github.com/billed-app/billed/internal/bill"
	"github.com/billed-app/billed/internal/controller"
	"github.com/billed-app/billed/internal/locale"
	"github.com/billed-app/billed/internal/logger"
	"github.com/billed-app/billed/internal/scanning"
	"github.com/billed-app/billed/internal/session"
)

// Store is the bill backend the server reads and writes
type Store interface {
	controller.BillsClient
	Get(ctx context.Context, id string) (bill.Bill, error)
	File(ctx context.Context, key string) ([]byte, *bill.FileRecord, error)
}

// DefaultMaxUploadSize bounds receipt uploads when Deps.MaxUploadSize is unset
const DefaultMaxUploadSize = int64(10 << 20)

// Deps are the collaborators of a Server. Scanner may be nil.
type Deps struct {
	Store         Store
	Auth          *auth.Service
	Sessions      session.Backend
	Formatter     locale.Formatter
	Scanner       scanning.Scanner
	MaxUploadSize int64
}

// Server handles HTTP requests for the application
type Server struct {
	deps      Deps
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds the credentials of the bill API
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(deps Deps, basicAuth BasicAuth) *Server {
	return NewServerWithMux(deps, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(deps Deps, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	if deps.Formatter == nil {
		deps.Formatter = locale.French{}
	}
	if deps.MaxUploadSize <= 0 {
		deps.MaxUploadSize = DefaultMaxUploadSize
	}
	s := &Server{
		deps:      deps,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(credentials[0]), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(credentials[1]), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// corsMiddleware adds CORS headers to API responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// requireAuth guards the bill API with basic auth
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Billed"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers every page and API route on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /static/app.css", s.handleStaticCSS)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// Bill API
	s.mux.HandleFunc("OPTIONS /api/", s.corsMiddleware(func(http.ResponseWriter, *http.Request) {}))
	s.mux.HandleFunc("GET /api/bills/{id}", instrument("api_get_bill", s.corsMiddleware(s.requireAuth(s.handleAPIGetBill))))
	s.mux.HandleFunc("PUT /api/bills/{id}", instrument("api_update_bill", s.corsMiddleware(s.requireAuth(s.handleAPIUpdateBill))))
	s.mux.HandleFunc("GET /api/bills", instrument("api_list_bills", s.corsMiddleware(s.requireAuth(s.handleAPIListBills))))

	// Employee pages
	s.mux.HandleFunc("GET /employee/bills/{id}/receipt", instrument("bill_receipt", s.requireEmployee(s.handleBillReceipt)))
	s.mux.HandleFunc("POST /employee/bills/new", instrument("click_new_bill", s.requireEmployee(s.handleClickNewBill)))
	s.mux.HandleFunc("GET /employee/bills", instrument("bills", s.requireEmployee(s.handleBills)))
	s.mux.HandleFunc("POST /employee/bill/new/file", instrument("new_bill_file", s.requireEmployee(s.handleNewBillFile)))
	s.mux.HandleFunc("GET /employee/bill/new", instrument("new_bill", s.requireEmployee(s.handleNewBill)))
	s.mux.HandleFunc("POST /employee/bill/new", instrument("new_bill_submit", s.requireEmployee(s.handleSubmitNewBill)))
	s.mux.HandleFunc("GET /files/{key}", instrument("file", s.withSession(s.handleFile)))
	s.mux.HandleFunc("GET /admin/dashboard", instrument("dashboard", s.requireAdmin(s.handleDashboard)))

	// Login
	s.mux.HandleFunc("POST /login", instrument("login", s.withSession(s.handleLogin)))
	s.mux.HandleFunc("POST /logout", instrument("logout", s.withSession(s.handleLogout)))
	s.mux.HandleFunc("GET /{$}", instrument("index", s.withSession(s.handleIndex)))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	logger.Info("starting server", zap.String("address", addr))
	return http.ListenAndServe(addr, s.mux)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
