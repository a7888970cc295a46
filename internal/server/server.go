// Package server exposes maze sessions over HTTP: a small JSON API for the
// run ledger and one-shot mazes, and a WebSocket that streams step events
// under client control.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/zyedidia/generic/mapset"

	"github.com/lawnchairsociety/mazestep/internal/config"
	"github.com/lawnchairsociety/mazestep/internal/database"
	"github.com/lawnchairsociety/mazestep/internal/logger"
)

// Server owns the router, the stream registry and the optional run ledger.
type Server struct {
	cfg      *config.Config
	db       *database.Database
	limiter  *ConnLimiter
	log      *slog.Logger
	engine   *gin.Engine
	upgrader websocket.Upgrader
	httpSrv  *http.Server

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	streams mapset.Set[*stream]
	wg      sync.WaitGroup

	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds a server. db may be nil, in which case runs are not recorded
// and the ledger routes answer 503.
func New(cfg *config.Config, db *database.Database, log *slog.Logger) *Server {
	if log == nil {
		log = logger.Get()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:     cfg,
		db:      db,
		limiter: NewConnLimiter(cfg.Connections),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		streams: mapset.New[*stream](),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				log.Warn("websocket origin rejected", "origin", origin, "host", r.Host)
			}
			return allowed
		},
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log))

	router.GET("/healthz", s.health)

	api := router.Group("/api")
	{
		api.GET("/runs", s.listRuns)
		api.GET("/runs/:id", s.getRun)
		api.GET("/maze", s.oneShotMaze)
	}

	router.GET("/ws", s.limiter.Middleware(), s.serveStream)
	return router
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on cfg.Server.Addr until Shutdown.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return nil
	}
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpSrv
	s.mu.Unlock()

	s.log.Info("listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener, closes every open stream and waits for them
// to finish or for ctx to expire. Calling it again returns the first result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.log.Info("shutting down")
		s.cancel()

		s.mu.Lock()
		srv := s.httpSrv
		var open []*stream
		s.streams.Each(func(st *stream) {
			open = append(open, st)
		})
		s.mu.Unlock()

		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				s.shutdownErr = err
			}
		}
		for _, st := range open {
			st.close("server shutting down")
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if s.shutdownErr == nil {
				s.shutdownErr = ctx.Err()
			}
		}
	})
	return s.shutdownErr
}

// register adds st to the registry unless shutdown has begun.
func (s *Server) register(st *stream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.streams.Put(st)
	s.wg.Add(1)
	return true
}

func (s *Server) unregister(st *stream) {
	s.mu.Lock()
	s.streams.Remove(st)
	s.mu.Unlock()
	s.wg.Done()
}

// StreamCount returns the number of open event streams.
func (s *Server) StreamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams.Size()
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		level := slog.LevelInfo
		if ctx.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(ctx.Request.Context(), level, "request",
			"method", ctx.Request.Method,
			"path", ctx.Request.URL.Path,
			"status", ctx.Writer.Status(),
			"latency", time.Since(start),
			"client", ctx.ClientIP())
	}
}
