package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adboard/apiserver/config"
	"github.com/adboard/apiserver/internal/db"
	"github.com/adboard/apiserver/internal/handlers"
	"github.com/adboard/apiserver/internal/mq"
	"github.com/adboard/apiserver/internal/services"
	"github.com/adboard/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// Deps holds everything the HTTP routes need.
type Deps struct {
	Users          *services.UserService
	Ads            *services.AdService
	Comments       *services.CommentService
	Media          *services.MediaStore
	Policy         *services.OwnershipPolicy
	Identity       *services.IdentityResolver
	JWTSecret      string
	MaxUploadBytes int64
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	cache      *redis.Client
	bus        *mq.MQ
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	srv := &Server{db: dbConn}

	blobs, err := OpenObjectStorage(ctx, cfg)
	if err != nil {
		srv.close()
		return nil, err
	}
	if srv.cache, err = OpenRedis(ctx, cfg); err != nil {
		srv.close()
		return nil, err
	}
	if srv.bus, err = OpenEventBus(ctx, cfg); err != nil {
		srv.close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	adRepo := store.NewAdRepository(dbConn)
	commentRepo := store.NewCommentRepository(dbConn)
	catalog := NewMediaCatalog(dbConn, srv.cache, cfg)
	events := eventPublisher(srv.bus)

	identity := services.NewIdentityResolver(userRepo)
	media := services.NewMediaStore(blobs, catalog, events)
	deps := Deps{
		Users:          services.NewUserService(userRepo, identity, media),
		Ads:            services.NewAdService(adRepo, identity, media, events),
		Comments:       services.NewCommentService(commentRepo, adRepo, identity),
		Media:          media,
		Policy:         services.NewOwnershipPolicy(adRepo, commentRepo, identity),
		Identity:       identity,
		JWTSecret:      cfg.JWTSecret,
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
	}

	srv.router = NewRouter(deps)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

// NewRouter builds the chi router with every route registered.
func NewRouter(deps Deps) *chi.Mux {
	authMiddleware := handlers.RequireAuth(deps.JWTSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, deps.Users, deps.Identity, deps.JWTSecret)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, deps.Users, deps.Identity, authMiddleware, deps.MaxUploadBytes)
	})
	router.Route("/ads", func(r chi.Router) {
		handlers.AdRouter(r, deps.Ads, deps.Policy, deps.Identity, authMiddleware, deps.MaxUploadBytes)
		r.Route("/{adID}/comments", func(r chi.Router) {
			handlers.CommentRouter(r, deps.Comments, deps.Policy, deps.Identity, authMiddleware)
		})
	})
	router.Route("/images", func(r chi.Router) {
		handlers.ImageRouter(r, deps.Media)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// is done, then releases the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
