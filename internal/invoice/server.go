package invoice

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Server handles HTTP requests for bills
type Server struct {
	service     *Service
	basicAuth   BasicAuth
	mux         *http.ServeMux
	scanLimiter *rate.Limiter
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:     service,
		basicAuth:   basicAuth,
		mux:         mux,
		scanLimiter: rate.NewLimiter(rate.Inf, 0),
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Bill Digitizer"`)
			jsonError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// SetScanRate caps OCR scans at perMinute with the given burst. Zero or
// less removes the cap. Call it before serving.
func (s *Server) SetScanRate(perMinute float64, burst int) {
	if perMinute <= 0 {
		s.scanLimiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	every := time.Duration(float64(time.Minute) / perMinute)
	s.scanLimiter = rate.NewLimiter(rate.Every(every), max(burst, 1))
}

// rateLimited rejects requests over the scan limit
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.scanLimiter.Allow() {
			slog.Warn("Scan rate limit exceeded", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			jsonError(w, "Too many scans. Please wait and try again.", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/bills/scan", s.requireAuth(s.rateLimited(s.handleScanBill)))
	s.mux.HandleFunc("GET /api/bills/export", s.requireAuth(s.handleExportBills))
	s.mux.HandleFunc("GET /api/bills/{id}/file", s.requireAuth(s.handleGetBillFile))
	s.mux.HandleFunc("GET /api/bills/{id}", s.requireAuth(s.handleGetBill))
	s.mux.HandleFunc("DELETE /api/bills/{id}", s.requireAuth(s.handleDeleteBill))
	s.mux.HandleFunc("GET /api/bills", s.requireAuth(s.handleListBills))
	s.mux.HandleFunc("POST /api/bills", s.requireAuth(s.handleSaveBill))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.corsMiddleware(s.mux))
}

// ServeHTTP implements http.Handler with the same CORS handling as Start
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
