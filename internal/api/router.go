package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"huddle/internal/auth"
	"huddle/internal/config"
	"huddle/internal/db"
	"huddle/internal/ws"
)

type Server struct {
	router *chi.Mux
	config *config.Config
	hub    *ws.Hub
}

func NewServer(cfg *config.Config, database *db.DB) *Server {
	userRepo := db.NewUserRepository(database)
	contactRepo := db.NewContactRepository(database)
	messageRepo := db.NewMessageRepository(database)
	groupRepo := db.NewGroupRepository(database)

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	hub := ws.NewHub(groupRepo, *cfg.Hub.RelayRawFrames)

	authHandler := NewAuthHandler(userRepo, jwtService)
	userHandler := NewUserHandler(userRepo)
	contactHandler := NewContactHandler(userRepo, contactRepo)
	messageHandler := NewMessageHandler(userRepo, messageRepo, hub)
	groupHandler := NewGroupHandler(groupRepo, userRepo, hub)
	callHandler := NewCallHandler(cfg.TURN)
	wsHandler := NewWebSocketHandler(hub, userRepo)
	healthHandler := NewHealthHandler(database)

	authMiddleware := NewAuthMiddleware(jwtService)

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "huddle signaling server is running",
		})
	})
	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(maxBodySizeMiddleware(1 << 20)) // 1 MB

		r.Route("/auth", func(r chi.Router) {
			r.Use(httprate.LimitByIP(10, time.Minute))
			r.Post("/register", authHandler.Register)
			r.Post("/token", authHandler.Token)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Get("/me", userHandler.GetMe)
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Get("/search", contactHandler.Search)
			r.Get("/", contactHandler.List)
			r.Post("/", contactHandler.Add)
			r.Delete("/{friend_id}", contactHandler.Delete)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Post("/", messageHandler.Create)
			r.Get("/{friend_id}", messageHandler.History)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Post("/", groupHandler.Create)
			r.Get("/", groupHandler.List)

			r.Route("/{group_id}", func(r chi.Router) {
				r.Get("/", groupHandler.Get)
				r.Put("/", groupHandler.Update)
				r.Delete("/", groupHandler.Delete)

				r.Route("/members", func(r chi.Router) {
					r.Post("/", groupHandler.AddMember)
					r.Get("/", groupHandler.ListMembers)
					r.Delete("/{user_id}", groupHandler.RemoveMember)
					r.Put("/{user_id}", groupHandler.UpdateMemberRole)
				})

				r.Route("/messages", func(r chi.Router) {
					r.Post("/", groupHandler.PostMessage)
					r.Get("/", groupHandler.ListGroupMessages)
				})
			})
		})

		r.Route("/calls", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Get("/ice-servers", callHandler.ICEServers)
		})
	})

	r.With(httprate.LimitByIP(10, time.Minute)).Get("/ws/{user_id}", wsHandler.ServeWS)

	return &Server{
		router: r,
		config: cfg,
		hub:    hub,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Shutdown() {
	s.hub.Shutdown()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}
