package serve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/peerchat/chat-store/internal/chat"
	"github.com/peerchat/chat-store/internal/config"
	"github.com/peerchat/chat-store/internal/lifecycle"
	routechats "github.com/peerchat/chat-store/internal/plugin/route/chats"
	routemessages "github.com/peerchat/chat-store/internal/plugin/route/messages"
	routesystem "github.com/peerchat/chat-store/internal/plugin/route/system"
	storemetrics "github.com/peerchat/chat-store/internal/plugin/store/metrics"
	registrycache "github.com/peerchat/chat-store/internal/registry/cache"
	registrymigrate "github.com/peerchat/chat-store/internal/registry/migrate"
	registryroute "github.com/peerchat/chat-store/internal/registry/route"
	registrystore "github.com/peerchat/chat-store/internal/registry/store"
	"github.com/peerchat/chat-store/internal/security"
)

// Server holds the running server and its subsystems.
type Server struct {
	Config    *config.Config
	Store     registrystore.ChatStore
	Assembler *chat.Assembler
	Engine    *lifecycle.Engine
	Router    *gin.Engine
	Port      int

	httpServer *http.Server
}

// Shutdown gracefully shuts down the server and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.Store.Close(); err == nil {
		err = closeErr
	}
	return err
}

// StartServer runs migrations, initializes the store, cache, assembler and
// lifecycle engine, and starts the HTTP listener. Use cfg.Listener.Port=0
// for a random port; the actual port is in Server.Port.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting chat store",
		"httpPort", cfg.Listener.Port,
		"db", cfg.DBPath,
		"cache", cfg.CacheType,
	)

	// Initialize Prometheus metrics with configured constant labels.
	metricsLabels, err := security.ParseMetricsLabels(cfg.MetricsLabels)
	if err != nil {
		return nil, fmt.Errorf("invalid --metrics-labels: %w", err)
	}
	security.InitMetrics(metricsLabels)

	// Run migrations. Nothing is mounted until this completes, so no
	// request can ever interleave with schema DDL.
	if err := registrymigrate.RunAll(ctx); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	// Initialize the aggregate cache.
	var aggregateCache registrycache.ChatAggregateCache
	if cacheLoader, err := registrycache.Select(cfg.CacheType); err != nil {
		log.Warn("Cache not available", "cache", cfg.CacheType, "err", err)
	} else if aggregateCache, err = cacheLoader(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	// Initialize the store.
	storeLoader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		return nil, err
	}
	store, err := storeLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	store = storemetrics.Wrap(store)

	assembler := chat.NewAssembler(store, aggregateCache, cfg.CacheAggregateTTL)
	engine := lifecycle.NewEngine(store, assembler)

	// Set up gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.AccessLog {
		router.Use(security.AccessLogMiddleware())
	} else {
		router.Use(security.AccessLogMiddleware("/health", "/ready", "/metrics"))
	}
	router.Use(security.MetricsMiddleware())
	router.Use(maxBodySizeMiddleware(cfg.MaxBodySize))

	for _, loader := range registryroute.ManagementRouteLoaders() {
		if err := loader(router); err != nil {
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
	}
	for _, loader := range registryroute.MainRouteLoaders() {
		if err := loader(router); err != nil {
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
	}

	auth := security.IdentityMiddleware()
	routechats.MountRoutes(router, assembler, auth)
	routemessages.MountRoutes(router, store, engine, cfg, auth)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Listener.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: cfg.Listener.ReadHeaderTimeout,
	}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "err", err)
		}
	}()

	routesystem.MarkReady()
	port := listener.Addr().(*net.TCPAddr).Port
	log.Info("Chat store ready", "port", port)

	return &Server{
		Config:     cfg,
		Store:      store,
		Assembler:  assembler,
		Engine:     engine,
		Router:     router,
		Port:       port,
		httpServer: httpServer,
	}, nil
}

func maxBodySizeMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
