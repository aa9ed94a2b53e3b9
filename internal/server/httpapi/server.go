// Package httpapi exposes the basket and file operations over REST. Its
// sole job is mapping coordinator results and error kinds onto status
// codes and JSON bodies; all semantics live in the services.
package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sfstore/sfs/internal/logging"
	"github.com/sfstore/sfs/internal/server/auth"
	"github.com/sfstore/sfs/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	echo    *echo.Echo
	addr    string
	secret  string
	db      *sql.DB
	baskets *services.BasketService
	files   *services.FileService
	audit   *services.AuditService
	logger  logging.Logger
}

func NewServer(addr, secret string, db *sql.DB,
	baskets *services.BasketService, files *services.FileService, audit *services.AuditService,
	logger logging.Logger) *Server {
	return &Server{
		echo:    echo.New(),
		addr:    addr,
		secret:  secret,
		db:      db,
		baskets: baskets,
		files:   files,
		audit:   audit,
		logger:  logger.With("component", "httpapi"),
	}
}

// Run starts the server and blocks until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.setupRoutes()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "starting http server", "addr", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		s.logger.Error(ctx, "server shutdown failed", "error", err)
		return err
	}
	s.logger.Info(ctx, "server stopped")
	return nil
}

func (s *Server) setupRoutes() {
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())

	api := s.echo.Group("/api")
	if s.secret != "" {
		api.Use(s.bearerAuth)
	}

	api.GET("/healthz", s.healthz)

	api.POST("/baskets", s.createBasket)
	api.GET("/baskets", s.listBaskets)
	api.GET("/baskets/:name", s.getBasket)
	api.DELETE("/baskets/:name", s.deleteBasket)

	api.POST("/baskets/:name/files", s.uploadFile)
	api.GET("/baskets/:name/files", s.listFiles)
	api.GET("/baskets/:name/files/:id", s.getFile)
	api.GET("/baskets/:name/files/:id/download", s.downloadFile)
	api.PUT("/baskets/:name/files/:id", s.replaceFile)
	api.DELETE("/baskets/:name/files/:id", s.deleteFile)

	api.GET("/audit/divergences", s.listDivergences)
	api.POST("/audit/reclaim", s.reclaim)
}

// bearerAuth verifies the Authorization header against the configured
// secret. The health endpoint stays open for probes.
func (s *Server) bearerAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Path() == "/api/healthz" {
			return next(c)
		}

		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return writeErrorCode(c, http.StatusUnauthorized, codeAccessDenied, "missing bearer token")
		}

		if _, err := auth.VerifyToken(token, []byte(s.secret)); err != nil {
			return writeErrorCode(c, http.StatusUnauthorized, codeAccessDenied, "invalid bearer token")
		}
		return next(c)
	}
}

func (s *Server) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// pagination reads limit/offset query parameters, leaving zero values for
// the services to default.
func pagination(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}
