// Package api is the local receiver the HTTP relay mode delivers to.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ibeckermayer/feedrelay/internal/dedup"
	"github.com/ibeckermayer/feedrelay/internal/logging"
	"github.com/ibeckermayer/feedrelay/internal/types"
)

// RecordStore is the persistence the receiver writes to.
type RecordStore interface {
	IDs(ctx context.Context) ([]string, error)
	SaveRecords(ctx context.Context, records []types.Record) error
	Count(ctx context.Context) (int, error)
}

// Server receives batches of records and stores the unseen ones.
type Server struct {
	router *gin.Engine
	store  RecordStore
	cache  *dedup.MemorySet
	addr   string
	log    *zap.Logger
}

// NewServer warms the id cache from st and builds the routes.
func NewServer(ctx context.Context, addr string, st RecordStore, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	ids, err := st.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to warm id cache: %w", err)
	}
	log.Info("id cache initialized", zap.Int("records", len(ids)))

	s := &Server{
		store: st,
		cache: dedup.NewMemorySet(ids...),
		addr:  addr,
		log:   log,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware(log))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          12 * time.Hour,
	}))

	router.POST("/tweets", s.createRecords)
	router.GET("/health", s.health)

	s.router = router
	return s, nil
}

func (s *Server) createRecords(c *gin.Context) {
	var records []types.Record
	if err := c.ShouldBindJSON(&records); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	fresh := make([]types.Record, 0, len(records))
	inBatch := make(map[string]struct{}, len(records))
	for _, r := range records {
		if s.cache.Contains(r.ID) {
			continue
		}
		if _, ok := inBatch[r.ID]; ok {
			continue
		}
		inBatch[r.ID] = struct{}{}
		fresh = append(fresh, r)
	}

	if err := s.store.SaveRecords(c.Request.Context(), fresh); err != nil {
		s.log.Error("failed to store records", zap.Int("records", len(fresh)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	for _, r := range fresh {
		s.cache.Add(r.ID)
	}

	s.log.Info("records stored", zap.Int("received", len(records)), zap.Int("stored", len(fresh)))
	c.JSON(http.StatusCreated, gin.H{"message": fmt.Sprintf("%d tweets stored", len(fresh))})
}

func (s *Server) health(c *gin.Context) {
	n, err := s.store.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "records": n, "cached_ids": s.cache.Len()})
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting receiver", zap.String("addr", s.addr))
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
	return srv.Shutdown(shutdownCtx)
}
