// Package devserver is an in-memory notification backend serving the REST
// endpoints the feed client consumes. It exists to run the client end to end
// without a real backend.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source/rest"
	"github.com/nhle/notifeed/pkg/logger"
)

const maxPageSize = 100

// Config configures a Server.
type Config struct {
	Addr string

	// Token, when set, is the bearer token every API request must carry.
	Token string

	// Latency delays every notification list response, which makes slow
	// pages and filter switches observable in the client.
	Latency time.Duration

	// SeedUser and SeedCount generate notifications at startup.
	SeedUser  string
	SeedCount int
	Seed      uint64
}

// Server is the development backend.
type Server struct {
	router *gin.Engine
	cfg    Config
	data   *memStore
	http   *http.Server
}

// New builds a server and seeds its data.
func New(cfg Config) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	s := &Server{
		router: router,
		cfg:    cfg,
		data:   &memStore{},
	}
	if cfg.SeedUser != "" && cfg.SeedCount > 0 {
		rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
		s.data.seed(cfg.SeedUser, cfg.SeedCount, time.Now().UTC(), rng)
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dev server listening",
			zap.String("addr", s.cfg.Addr),
			zap.Int("records", s.data.len()),
		)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	api.Use(s.auth())
	{
		users := api.Group("/users/:userId/notifications")
		{
			users.GET("", s.handleList())
			users.POST("", s.handleCreate())
			users.GET("/unread-count", s.handleUnreadCount())
			users.POST("/read-all", s.handleMarkAllAsRead())
		}
		api.POST("/notifications/:id/read", s.handleMarkAsRead())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notifeed-devserver"})
	})
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.Token == "" {
			c.Next()
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if got != s.cfg.Token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}
		c.Next()
	}
}

// requestLogger logs each request with its X-Request-ID.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
		)
	}
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		cat, err := model.ParseCategory(c.Query("category"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		page, ok := queryInt(c, "page", 1)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
			return
		}
		pageSize, ok := queryInt(c, "pageSize", 10)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pageSize must be a positive integer"})
			return
		}
		pageSize = min(pageSize, maxPageSize)
		unreadOnly := c.Query("unread") == "true"

		if s.cfg.Latency > 0 {
			select {
			case <-time.After(s.cfg.Latency):
			case <-c.Request.Context().Done():
				return
			}
		}

		items, meta, err := s.data.page(c.Param("userId"), cat, unreadOnly, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render notifications"})
			logger.Error("rendering page", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, rest.PageResponse{Data: items, MetaData: meta})
	}
}

func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, rest.UnreadCountResponse{Count: s.data.unreadCount(c.Param("userId"))})
	}
}

func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.data.markRead(c.Param("id")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		n := s.data.markAllRead(c.Param("userId"))
		logger.Debug("marked all read", zap.String("user", c.Param("userId")), zap.Int("count", n))
		c.Status(http.StatusNoContent)
	}
}

// handleCreate stores one tagged notification. Missing ids and timestamps
// are filled in.
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var env rest.Envelope
		if err := c.ShouldBindJSON(&env); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cat, err := model.ParseCategory(env.Kind)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		r := &record{userID: c.Param("userId"), category: cat}
		switch cat {
		case model.CategorySystem:
			var p rest.SystemPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid SYSTEM payload"})
				return
			}
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			r.system, r.isRead, r.createdAt = &p, p.IsRead, p.CreatedAt
		default:
			var p rest.SocialPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid SOCIAL payload"})
				return
			}
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			r.social, r.isRead, r.createdAt = &p, p.IsRead, p.CreatedAt
		}
		if r.createdAt.IsZero() {
			r.createdAt = time.Now().UTC()
		}
		s.data.add(r)

		out, err := r.envelope()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render notification"})
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}
