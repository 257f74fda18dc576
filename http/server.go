package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"stuffhappens/auth"
	"stuffhappens/game"
	"stuffhappens/store"
)

type Server struct {
	router   *mux.Router
	handlers *Handlers
}

func NewServer(authService *auth.Service, engine *game.Engine, store store.Store) *Server {
	router := mux.NewRouter()
	handlers := NewHandlers(authService, engine, store)

	server := &Server{
		router:   router,
		handlers: handlers,
	}

	server.setupRoutes(authService)
	return server
}

func (s *Server) setupRoutes(authService *auth.Service) {
	s.router.Use(LoggingMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(CORSMiddleware)

	// CSRF note: SameSite=Lax on the session cookie prevents cross-site POST
	// requests from including the cookie, which covers the state-changing
	// endpoints without a token scheme.

	loginLimiter := NewRateLimiter(5.0/60.0, 5)
	registerLimiter := NewRateLimiter(3.0/60.0, 3)

	// Auth routes (public) with rate limiting
	s.router.Handle("/api/auth/register", registerLimiter.Middleware(http.HandlerFunc(s.handlers.Register))).Methods("POST")
	s.router.Handle("/api/auth/login", loginLimiter.Middleware(http.HandlerFunc(s.handlers.Login))).Methods("POST")

	// Demo routes: anonymous single-round games, no session required
	s.router.HandleFunc("/api/demos", s.handlers.CreateDemoGame).Methods("POST")
	s.router.HandleFunc("/api/demos/{gameId}/rounds/{round}/begin", s.handlers.DemoBeginRound).Methods("POST")
	s.router.HandleFunc("/api/demos/{gameId}/rounds/{round}/verify", s.handlers.DemoVerifyAnswer).Methods("POST")

	// Full-game routes require a session
	protected := s.router.PathPrefix("/api").Subrouter()
	protected.Use(AuthMiddleware(authService))

	protected.HandleFunc("/auth/logout", s.handlers.Logout).Methods("POST")
	protected.HandleFunc("/auth/session", s.handlers.Session).Methods("GET")
	protected.HandleFunc("/games", s.handlers.CreateGame).Methods("POST")
	protected.HandleFunc("/games/history", s.handlers.History).Methods("GET")
	protected.HandleFunc("/games/{gameId}/rounds/{round}/begin", s.handlers.BeginRound).Methods("POST")
	protected.HandleFunc("/games/{gameId}/rounds/{round}/verify", s.handlers.VerifyAnswer).Methods("POST")

	// Catch-all for unmatched API routes
	s.router.PathPrefix("/api/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})

	// Card artwork referenced by imageFilename in responses
	s.router.PathPrefix("/images/").Handler(noCacheHandler(http.StripPrefix("/images/", http.FileServer(http.Dir("./static/images")))))

	// SPA fallback - serve index.html for all other routes
	s.router.PathPrefix("/").HandlerFunc(s.serveSPA)
}

func noCacheHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		h.ServeHTTP(w, r)
	})
}

func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, "./static/index.html")
}

func (s *Server) GetHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
