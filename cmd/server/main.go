package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jo-hoe/oralvis/internal/backend"
	"github.com/jo-hoe/oralvis/internal/common"
	"github.com/jo-hoe/oralvis/internal/core"
	"github.com/jo-hoe/oralvis/internal/frontend"
	sessionmw "github.com/jo-hoe/oralvis/internal/middleware"
	"github.com/jo-hoe/oralvis/internal/session"
)

// room for the multipart envelope and text fields around the image
const formOverheadBytes = 1 << 20

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	configPath, err := core.ConfigPath()
	if err != nil {
		return err
	}
	config, err := core.LoadConfigOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	coreService, err := core.NewCoreService(context.Background(), config)
	if err != nil {
		return err
	}
	defer func() {
		if err := coreService.Close(); err != nil {
			slog.Error("core service close error", "error", err)
		}
	}()

	credentials, err := config.CredentialTable()
	if err != nil {
		return err
	}
	if len(config.Credentials) == 0 {
		slog.Warn("no credentials configured, using the built-in demo accounts")
	}

	sessions := session.NewManager(credentials, config.Session.IdleTimeout)
	defer func() { _ = sessions.Close() }()
	cookies := sessionmw.NewSessionCookies(sessions, sessionmw.SessionConfig{
		Secret:     config.Session.Secret,
		CookieName: config.Session.CookieName,
		Secure:     config.Session.SecureCookie,
	})
	loginLimit := sessionmw.NewRateLimiter(config.Login.RatePerSecond, config.Login.Burst)
	defer loginLimit.Close()

	server, err := defineServer(config)
	if err != nil {
		return err
	}
	server.Use(cookies.Middleware())

	server.GET("/metrics", echo.WrapHandler(coreService.Metrics().Handler()))
	backend.NewAPIService(coreService).SetRoutes(server)
	if err := frontend.NewFrontendService(coreService, cookies, loginLimit).SetRoutes(server); err != nil {
		return fmt.Errorf("failed to set up pages: %w", err)
	}

	portString := fmt.Sprintf(":%d", config.Port)

	// Start HTTP server in a goroutine to allow graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "port", config.Port)
		if err := server.Start(portString); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
		slog.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("http server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	return nil
}

func defineServer(config *core.ServiceConfig) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true

	extractor, err := sessionmw.NewIPExtractor(config.TrustedProxies)
	if err != nil {
		return nil, err
	}
	e.IPExtractor = extractor

	// Configure request logger to skip the probe and scrape endpoints
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/probe" || c.Path() == "/metrics"
		},
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogError:     true,
		LogRemoteIP:  true,
		LogHost:      true,
		LogUserAgent: true,
		LogRoutePath: true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"route", v.RoutePath,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"host", v.Host,
				"user_agent", v.UserAgent,
			}
			if v.Error != nil {
				slog.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	}))

	e.Use(middleware.Recover())
	e.Pre(middleware.RemoveTrailingSlash())
	if limit := config.Upload.MaxImageBytes; limit > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%d", limit+formOverheadBytes)))
	}

	e.Validator = common.NewGenericEchoValidator()

	return e, nil
}
