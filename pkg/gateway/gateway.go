package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apiv1 "github.com/beam-cloud/kbpicker/pkg/api/v1"
	"github.com/beam-cloud/kbpicker/pkg/backend"
	"github.com/beam-cloud/kbpicker/pkg/common"
	"github.com/beam-cloud/kbpicker/pkg/drive"
	"github.com/beam-cloud/kbpicker/pkg/metrics"
	"github.com/beam-cloud/kbpicker/pkg/types"
)

const defaultShutdownTimeout = 10 * time.Second

type Gateway struct {
	Config     types.AppConfig
	httpServer *http.Server
	echo       *echo.Echo
	listener   net.Listener
	ctx        context.Context
	cancelFunc context.CancelFunc

	baseRouteGroup *echo.Group
	rootRouteGroup *echo.Group

	backendClient *backend.Client
	sessions      *backend.SessionProvider
	driveService  *drive.Service
}

// NewGateway loads configuration and builds a gateway from it
func NewGateway() (*Gateway, error) {
	configManager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		return nil, err
	}
	return NewGatewayWithConfig(configManager.GetConfig())
}

// NewGatewayWithConfig builds a gateway and registers its routes
func NewGatewayWithConfig(config types.AppConfig) (*Gateway, error) {
	// Setup logging
	if config.PrettyLogs {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	backendClient := backend.NewClient(config.Backend)
	sessions := backend.NewSessionProvider(backendClient, config.Auth, config.Backend, config.Drive.ConnectionProvider)

	ctx, cancel := context.WithCancel(context.Background())
	gateway := &Gateway{
		Config:        config,
		ctx:           ctx,
		cancelFunc:    cancel,
		backendClient: backendClient,
		sessions:      sessions,
		driveService:  drive.NewService(backendClient, sessions, config.Drive),
	}

	gateway.warnMissingConfig()

	if err := gateway.initHTTP(); err != nil {
		cancel()
		return nil, err
	}
	gateway.registerRoutes()

	return gateway, nil
}

// warnMissingConfig logs unset values early; requests still fail with the named variable
func (g *Gateway) warnMissingConfig() {
	required := map[string]string{
		"backend.url":   g.Config.Backend.URL,
		"auth.url":      g.Config.Auth.URL,
		"auth.anonKey":  g.Config.Auth.AnonKey,
		"auth.email":    g.Config.Auth.Email,
		"auth.password": g.Config.Auth.Password,
	}
	for key, value := range required {
		if err := types.RequireValue(key, value); err != nil {
			log.Warn().Err(err).Msg("missing configuration")
		}
	}
	if g.Config.Backend.KnowledgeBaseID == "" {
		log.Warn().Str("variable", types.EnvVarFor("backend.knowledgeBaseId")).Msg("no knowledge base configured, sync and de-index are disabled")
	}
}

func (g *Gateway) initHTTP() error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())

	// Configure logging middleware
	if g.Config.Gateway.HTTP.EnablePrettyLogs {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "${time_rfc3339} ${id} ${method} ${uri} ${status} ${latency_human}\n",
		}))
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	// CORS
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: g.Config.Gateway.HTTP.CORS.AllowedOrigins,
		AllowHeaders: g.Config.Gateway.HTTP.CORS.AllowedHeaders,
		AllowMethods: g.Config.Gateway.HTTP.CORS.AllowedMethods,
	}))

	e.Use(middleware.Recover())
	e.Use(apiv1.NewMetricsMiddleware())

	g.echo = e
	g.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", g.Config.Gateway.HTTP.Host, g.Config.Gateway.HTTP.Port),
		Handler: e,
	}

	g.baseRouteGroup = e.Group(apiv1.HttpServerBaseRoute)
	g.rootRouteGroup = e.Group(apiv1.HttpServerRootRoute)

	return nil
}

func (g *Gateway) registerRoutes() {
	apiv1.NewHealthGroup(g.baseRouteGroup.Group("/health"), g.driveService)
	apiv1.NewDriveGroup(g.baseRouteGroup.Group("/drive"), g.driveService)
	g.rootRouteGroup.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// Handler exposes the HTTP handler, mainly for tests
func (g *Gateway) Handler() http.Handler {
	return g.echo
}

// StartAsync starts the HTTP server without blocking.
func (g *Gateway) StartAsync() error {
	listener, err := net.Listen("tcp", g.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", g.httpServer.Addr, err)
	}
	g.listener = listener

	go func() {
		log.Info().Str("addr", listener.Addr().String()).Msg("HTTP server started")
		if err := g.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
			g.cancelFunc()
		}
	}()

	return nil
}

// Addr returns the address the HTTP server is listening on
func (g *Gateway) Addr() string {
	if g.listener == nil {
		return g.httpServer.Addr
	}
	return g.listener.Addr().String()
}

// Shutdown gracefully shuts down the gateway (exported for external use)
func (g *Gateway) Shutdown() {
	g.shutdown()
}

// Start is the gateway entry point; it blocks until a termination signal arrives
func (g *Gateway) Start() error {
	if err := g.StartAsync(); err != nil {
		return err
	}

	terminationSignal := make(chan os.Signal, 1)
	signal.Notify(terminationSignal, os.Interrupt, syscall.SIGTERM)

	select {
	case <-terminationSignal:
		log.Info().Msg("termination signal received. shutting down...")
	case <-g.ctx.Done():
		log.Warn().Msg("gateway context cancelled. shutting down...")
	}

	g.shutdown()
	return nil
}

func (g *Gateway) shutdown() {
	timeout := g.Config.Gateway.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return g.httpServer.Shutdown(ctx)
	})

	if err := eg.Wait(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	g.cancelFunc()
}
