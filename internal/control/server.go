// Package control exposes a running session over local HTTP, standing in for
// the popup-to-page message channel.
package control

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ibeckermayer/feedrelay/internal/logging"
	"github.com/ibeckermayer/feedrelay/internal/metrics"
	"github.com/ibeckermayer/feedrelay/internal/session"
)

// Handler is the session side of the control channel.
type Handler interface {
	HandleMessage(ctx context.Context, msg session.Message) session.Response
	Status() session.Status
}

// Server wraps the control HTTP server
type Server struct {
	router *gin.Engine
	addr   string
	log    *zap.Logger
}

// NewServer creates the control server. m may be nil, which disables /metrics.
func NewServer(addr string, h Handler, m *metrics.Metrics, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware(log))

	router.POST("/message", func(c *gin.Context) {
		var msg session.Message
		if err := c.ShouldBindJSON(&msg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, h.HandleMessage(c.Request.Context(), msg))
	})
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, h.Status())
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	return &Server{router: router, addr: addr, log: log}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	return serve(ctx, &http.Server{Addr: s.addr, Handler: s.router}, s.log)
}

func serve(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", zap.String("addr", srv.Addr))
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info("shutting down HTTP server", zap.String("addr", srv.Addr))
	return srv.Shutdown(shutdownCtx)
}
