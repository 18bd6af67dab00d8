// Package server serves the dashboard directory over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Server struct {
	dir    string
	log    zerolog.Logger
	engine *gin.Engine
}

// New builds a static file server rooted at dir. Every path is resolved
// against the directory; there are no API routes.
func New(dir string, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{dir: dir, log: log}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLog)

	files := http.FileServer(http.Dir(dir))
	r.NoRoute(func(c *gin.Context) {
		// gin marks unmatched routes 404 up front; reset so the file
		// server decides the status.
		c.Status(http.StatusOK)
		files.ServeHTTP(c.Writer, c.Request)
	})

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) requestLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Info().
		Str("m", c.Request.Method).
		Str("p", c.Request.URL.Path).
		Int("s", c.Writer.Status()).
		Dur("latency", time.Since(start)).
		Msg("http")
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. Cancelling ctx closes the listener and
// every open connection immediately; in-flight requests are not drained.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = srv.Close()
		case <-done:
		}
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Str("dir", s.dir).Msg("serving dashboard")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
