// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/carousel-tv/carousel/internal/api"
	"github.com/carousel-tv/carousel/internal/broadcast"
	"github.com/carousel-tv/carousel/internal/channel"
	"github.com/carousel-tv/carousel/internal/config"
	"github.com/carousel-tv/carousel/internal/db"
	"github.com/carousel-tv/carousel/internal/events"
	"github.com/carousel-tv/carousel/internal/guide"
	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/media"
	"github.com/carousel-tv/carousel/internal/middleware"
	"github.com/carousel-tv/carousel/internal/schedule"
)

// Server wires the catalog, scheduling engine, guide, and live tuner behind
// a single HTTP surface
type Server struct {
	config         *config.Config
	db             *db.DB
	repos          *db.Repositories
	scanner        *media.Scanner
	watcher        media.Watcher
	importer       *media.Importer
	channelService *channel.ChannelService
	lineupService  *channel.LineupService
	resolver       *channel.Resolver
	session        *broadcast.Session
	composer       *broadcast.Composer
	tuner          *broadcast.Tuner
	guideService   *guide.Service
	hub            *events.Hub
	router         *gin.Engine
	server         *http.Server
	started        bool
}

// New creates a new server instance and wires the service graph
func New(cfg *config.Config, database *db.DB) *Server {
	repos := db.NewRepositories(database)
	scanner := media.NewScanner(repos, nil, nil, cfg.Library.SupportedFormats)
	channelService := channel.NewChannelService(repos)
	lineupService := channel.NewLineupService(database, repos)
	resolver := channel.NewResolver(repos)

	session := broadcast.NewSession(cfg.Scheduler.SyncInterval)
	composer := broadcast.NewComposer(session)
	guard := broadcast.NewFailureGuard(cfg.Scheduler.GuardWindow, cfg.Scheduler.GuardTripCount)
	tuner := broadcast.NewTuner(session, composer, guard, resolver)

	guideService := guide.NewService(resolver, cfg.Guide.Workers)
	hub := events.NewHub()

	s := &Server{
		config:         cfg,
		db:             database,
		repos:          repos,
		scanner:        scanner,
		channelService: channelService,
		lineupService:  lineupService,
		resolver:       resolver,
		session:        session,
		composer:       composer,
		tuner:          tuner,
		guideService:   guideService,
		hub:            hub,
	}

	s.wireObservers()
	return s
}

// wireObservers connects the scheduling engine's callbacks to the guide and
// the websocket hub. All registrations happen before anything starts.
func (s *Server) wireObservers() {
	// Lineup and channel mutations invalidate in-flight guide builds
	s.channelService.OnChange(s.guideService.Invalidate)
	s.lineupService.OnChange(s.guideService.Invalidate)

	// A day rollover changes the derived schedule, so prebuilt grids are stale
	s.composer.OnRollover(func(dayKey int64) {
		s.guideService.Invalidate()
	})

	s.session.OnProgramStart(func(prog schedule.Program) {
		s.hub.PublishProgramStart(s.session.ChannelID(), prog)
	})
	s.session.OnScheduleSync(func() {
		prog, err := s.session.Current()
		if err != nil {
			return
		}
		s.hub.PublishScheduleSync(s.session.ChannelID(), prog)
	})
	s.tuner.OnGuardTripped(func() {
		s.hub.PublishGuardTripped(s.session.ChannelID())
	})
}

// defaultLibraryRoot returns the first configured library root, if any
func (s *Server) defaultLibraryRoot() string {
	if len(s.config.Library.Roots) > 0 {
		return s.config.Library.Roots[0]
	}
	return ""
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create new Gin router
	s.router = gin.New()

	// Add middleware stack
	s.router.Use(middleware.RequestLogger()) // Custom zerolog request logger
	s.router.Use(gin.Recovery())             // Panic recovery
	s.router.Use(cors.Default())             // CORS support (allows all origins)

	// Create API route group
	apiGroup := s.router.Group("/api")

	// Register service routes
	api.SetupHealthRoutes(apiGroup, s.db)
	api.SetupMediaRoutes(apiGroup, s.scanner, s.repos, s.importer, s.defaultLibraryRoot())
	api.SetupChannelRoutes(apiGroup, s.channelService, s.lineupService)
	api.SetupGuideRoutes(apiGroup, s.guideService, s.config.Guide.Horizon)
	api.SetupTunerRoutes(apiGroup, s.tuner)

	// Live event stream
	apiGroup.GET("/events", func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	})
}

// setupImporter builds the S3 importer when a bucket is configured
func (s *Server) setupImporter() {
	if s.config.Import.Bucket == "" {
		return
	}

	importer, err := media.NewImporterFromConfig(context.Background(), media.ImportOptions{
		Bucket:      s.config.Import.Bucket,
		Prefix:      s.config.Import.Prefix,
		Region:      s.config.Import.Region,
		Destination: s.config.Import.Destination,
		Concurrency: s.config.Import.Concurrency,
		Formats:     s.config.Library.SupportedFormats,
	})
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("bucket", s.config.Import.Bucket).
			Msg("Failed to initialize library importer, imports disabled")
		return
	}

	s.importer = importer
	logger.Log.Info().
		Str("bucket", s.config.Import.Bucket).
		Str("destination", s.config.Import.Destination).
		Msg("Library importer enabled")
}

// setupWatcher starts filesystem watching of the library roots when enabled
func (s *Server) setupWatcher() {
	if !s.config.Library.Watch || len(s.config.Library.Roots) == 0 {
		return
	}

	watcher, err := media.NewWatcher(s.config.Library.Roots, s.config.Library.SupportedFormats, s.rescanRoot)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to initialize library watcher, watching disabled")
		return
	}

	if err := watcher.Start(); err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to start library watcher, watching disabled")
		return
	}

	s.watcher = watcher
}

// rescanRoot is invoked by the watcher after filesystem changes settle
func (s *Server) rescanRoot(root string) {
	if _, err := s.scanner.StartScan(context.Background(), root); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("root", root).
			Msg("Watcher-triggered rescan not started")
		return
	}
	// Durations may change under running guide builds
	s.guideService.Invalidate()
}

// Start starts the background services and the HTTP server
func (s *Server) Start() error {
	s.setupImporter()
	s.setupRouter()

	go s.hub.Run()
	s.session.Start()
	s.setupWatcher()
	s.started = true

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and background services
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	if s.watcher != nil {
		s.watcher.Stop()
	}

	if s.started {
		s.composer.Cancel()
		s.session.Stop()
		s.hub.Stop()
	}

	if s.scanner != nil {
		s.scanner.Stop()
	}

	// Check if server was started before attempting shutdown
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
