// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"workwise-service/internal/config"
	"workwise-service/internal/db"
	adminHandler "workwise-service/internal/handlers/admin"
	authHandler "workwise-service/internal/handlers/auth"
	wsHandler "workwise-service/internal/handlers/websocket"
	"workwise-service/internal/middleware"
	"workwise-service/internal/pkg/jwt"
	"workwise-service/internal/pkg/session"
	"workwise-service/internal/repository/postgres"
	"workwise-service/internal/service/identity"
	"workwise-service/internal/websocket"
	wsHandlers "workwise-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	httpServer *http.Server
	pool       *pgxpool.Pool
	redis      *redis.Client
	cancelHub  context.CancelFunc
}

func NewServer(logger *zap.Logger) *Server {
	cfg := config.Load()
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// Start wires every component and serves HTTP until Shutdown.
func (s *Server) Start() error {
	ctx := context.Background()
	logger := s.logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, db.PostgresConfig{
		URL:      s.cfg.DatabaseURL,
		MaxConns: int32(s.cfg.DBMaxConns),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.pool = pool
	logger.Info("connected to PostgreSQL")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addresses: []string{s.cfg.RedisAddr},
		Password:  s.cfg.RedisPass,
		DB:        s.cfg.RedisDB,
		PoolSize:  10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.redis = redisClient
	logger.Info("connected to Redis", zap.String("addr", s.cfg.RedisAddr))

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		if !s.cfg.IsDev() {
			return fmt.Errorf("failed to load JWT manager: %w", err)
		}
		logger.Warn("JWT keys not found, using an ephemeral key pair", zap.Error(err))
		if jwtManager, err = jwt.BuildEphemeral(s.cfg.JWT); err != nil {
			return err
		}
	}

	// ----- Repositories -----
	authRepo := postgres.NewAuthRepository(pool)
	profileRepo := postgres.NewProfileRepository(pool)

	// ----- Identity -----
	identitySvc := identity.NewService(
		authRepo,
		profileRepo,
		jwtManager,
		identity.NewRegistry(redisClient),
		identity.NewEventBus(redisClient, logger),
		session.NewRateLimiter(redisClient),
		logger,
	)
	clients := identity.NewClients(identitySvc, redisClient, s.cfg.Session.TokenKey, logger)

	if s.cfg.AdminEmail != "" {
		bootCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := identitySvc.EnsureAdmin(bootCtx, s.cfg.AdminEmail, s.cfg.AdminPassword, s.cfg.AdminName); err != nil {
			logger.Error("failed to ensure admin account", zap.Error(err))
		}
		cancel()
	}

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(s.sessionMounter(clients, profileRepo), logger)
	if err := hub.RegisterHandler(wsHandlers.NewAuthHandler(logger)); err != nil {
		return err
	}
	hubCtx, cancelHub := context.WithCancel(ctx)
	s.cancelHub = cancelHub
	go hub.Run(hubCtx)

	// ----- Handlers -----
	handlers := &Handlers{
		AuthHandler:    authHandler.NewAuthHandler(clients, profileRepo, s.cfg.Session, logger),
		AdminHandler:   adminHandler.NewAdminHandler(profileRepo, identitySvc, logger),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, s.cfg.AllowedOrigins, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(identitySvc, session.NewRoleResolver(profileRepo, logger)),
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(s.cfg.AllowedOrigins...),
		middleware.ClientID(s.cfg.SecureCookies),
	)

	// ----- Router -----
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// sessionMounter builds the session manager of each websocket connection.
func (s *Server) sessionMounter(clients *identity.Clients, profiles session.ProfileStore) websocket.SessionMounter {
	return func(c *websocket.Client) *session.Manager {
		opts := s.cfg.Session
		opts.OnChange = c.PushState
		return session.NewManager(clients.Dependencies(c.ClientID(), profiles, c), opts, s.logger)
	}
}

// Shutdown stops HTTP, tears down every mounted session and closes the pools.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		errs = append(errs, s.httpServer.Shutdown(ctx))
	}
	if s.cancelHub != nil {
		s.cancelHub()
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return errors.Join(errs...)
}
