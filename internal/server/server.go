package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/sessionhub/internal/api/http"
	"github.com/GriffinCanCode/sessionhub/internal/api/middleware"
	"github.com/GriffinCanCode/sessionhub/internal/domain/intercept"
	"github.com/GriffinCanCode/sessionhub/internal/domain/popup"
	"github.com/GriffinCanCode/sessionhub/internal/domain/session"
	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/engine/memory"
	"github.com/GriffinCanCode/sessionhub/internal/engine/rodengine"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/config"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/sessionhub/internal/providers/settings"
	"github.com/GriffinCanCode/sessionhub/internal/ws"
)

// Version is stamped at build time
var Version = "dev"

const shutdownTimeout = 10 * time.Second

// Server owns every long-lived component and the HTTP router
type Server struct {
	config   *config.Config
	router   *gin.Engine
	runtime  engine.Runtime
	sessions *session.Registry
	popups   *popup.Queue
	store    *settings.Store
	stream   *ws.Handler
	tracer   *tracing.Tracer
	logger   *logging.Logger
}

// Option configures a Server
type Option func(*options)

type options struct {
	runtime   engine.Runtime
	logger    *logging.Logger
	bootstrap bool
}

// WithRuntime replaces the engine selected by config
func WithRuntime(rt engine.Runtime) Option {
	return func(o *options) { o.runtime = rt }
}

// WithLogger replaces the logger built from config
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithoutBootstrap skips opening the initial homepage session
func WithoutBootstrap() Option {
	return func(o *options) { o.bootstrap = false }
}

// New wires the registry, its collaborators and the HTTP surface
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := options{bootstrap: true}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}

	logger.Info("Initializing session hub",
		zap.String("port", cfg.Server.Port),
		zap.String("engine", cfg.Engine.Kind),
	)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(promRegistry)
	tracer := tracing.New("sessionhub", logger.Logger)

	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		tracer.Close()
		return nil, err
	}

	storeOpts := []settings.Option{settings.WithLogger(logger)}
	if cfg.RulesFile != "" {
		storeOpts = append(storeOpts, settings.WithPersister(settings.NewFilePersister(cfg.RulesFile)))
	}
	store := settings.New(cfg.Browser, rules, storeOpts...)

	rt := o.runtime
	if rt == nil {
		rt, err = newRuntime(cfg.Engine, logger)
		if err != nil {
			tracer.Close()
			return nil, err
		}
	}

	breaker := resilience.New("engine", resilience.Settings{
		MaxFailures: cfg.Breaker.MaxFailures,
		Cooldown:    cfg.Breaker.Cooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	stream := ws.NewHandler(ws.WithLogger(logger), ws.WithMetrics(metrics))
	popups := popup.NewQueue(store, stream,
		popup.WithDecisionDelay(cfg.Browser.PopupDecisionDelay),
		popup.WithLogger(logger),
		popup.WithMetrics(metrics),
	)
	chain := intercept.NewChain(metrics,
		intercept.ErrorBridge{},
		intercept.NewRewrites(),
		intercept.PrivateBrowsing{},
		intercept.NewUserAgentOverrides(rules.UserAgents),
		intercept.NewDRMGate(rules.DRMHosts, stream, store),
	)
	sessions := session.New(engine.Guard(rt, breaker), store,
		session.WithLogger(logger),
		session.WithMetrics(metrics),
		session.WithInterceptors(chain),
		session.WithPopups(popups),
	)
	stream.SetRegistry(sessions)

	s := &Server{
		config:   cfg,
		runtime:  rt,
		sessions: sessions,
		popups:   popups,
		store:    store,
		stream:   stream,
		tracer:   tracer,
		logger:   logger,
	}
	s.router = s.routes(promRegistry, metrics)

	if o.bootstrap {
		if err := s.bootstrap(context.Background()); err != nil {
			logger.Warn("Initial session not opened", zap.Error(err))
		}
	}

	logger.Info("Server initialized successfully",
		zap.Strings("interceptors", chain.Names()),
	)
	return s, nil
}

func newRuntime(cfg config.EngineConfig, logger *logging.Logger) (engine.Runtime, error) {
	switch cfg.Kind {
	case "", "memory":
		return memory.New(), nil
	case "rod":
		return rodengine.New(rodengine.Config{
			ControlURL: cfg.ControlURL,
			Headless:   cfg.Headless,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Kind)
	}
}

func (s *Server) routes(reg *prometheus.Registry, metrics *monitoring.Metrics) *gin.Engine {
	if !s.config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(metrics))
	cors := middleware.DefaultCORSConfig()
	cors.Origins = s.config.CORS.Origins
	router.Use(middleware.CORS(cors))
	if s.config.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", s.config.RateLimit.RequestsPerSecond),
			zap.Int("burst", s.config.RateLimit.Burst),
			zap.Bool("global", s.config.RateLimit.Global),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = s.config.RateLimit.RequestsPerSecond
		rl.Burst = s.config.RateLimit.Burst
		if s.config.RateLimit.Global {
			router.Use(middleware.GlobalRateLimit(rl))
		} else {
			router.Use(middleware.RateLimit(rl))
		}
	}

	router.GET("/", s.root)
	api.NewHandlers(s.sessions, s.popups, s.logger).WithSettings(s.store).Register(router)
	router.GET("/ws", s.stream.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return router
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "sessionhub",
		"version": Version,
		"engine":  s.config.Engine.Kind,
		"stream":  "/ws",
	})
}

// bootstrap opens the homepage in a fresh current session
func (s *Server) bootstrap(ctx context.Context) error {
	id, err := s.sessions.CreateDefaultSession(ctx, false)
	if err != nil {
		return err
	}
	s.sessions.SetCurrentSession(id)
	s.sessions.LoadURI("")
	return nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the session registry
func (s *Server) Registry() *session.Registry {
	return s.sessions
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	// stream connections are hijacked and not tracked by Shutdown
	s.stream.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases every session, the engine and the stream clients
func (s *Server) Close() error {
	s.stream.Close()
	s.sessions.Close()
	s.store.Flush()

	var err error
	if c, ok := s.runtime.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil {
			s.logger.Error("Failed to close engine", zap.Error(cerr))
			err = fmt.Errorf("close engine: %w", cerr)
		}
	}
	s.tracer.Close()
	_ = s.logger.Sync()
	return err
}
