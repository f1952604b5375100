// Package api serves the ops endpoints: health, metrics and match history.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"community-game-bot/internal/model"
	"community-game-bot/internal/repository"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Pinger checks a backing store.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// MatchHistory reads persisted match records.
type MatchHistory interface {
	GetLatestByMatchID(ctx context.Context, matchID string) (*model.MatchRecord, error)
	ListByUser(ctx context.Context, guildID, userID string, limit int) ([]*model.MatchRecord, error)
}

// TxHistory reads the balance audit trail.
type TxHistory interface {
	GetByUser(ctx context.Context, userID, guildID string, limit int) ([]*model.Transaction, error)
}

// LiveCounter reports how many matches are in progress.
type LiveCounter interface {
	Len() int
}

// Server is the ops HTTP server.
type Server struct {
	srv     *http.Server
	db      Pinger
	history MatchHistory
	txs     TxHistory
	live    LiveCounter
	started time.Time
}

// NewServer builds the router. It does not listen until Start.
func NewServer(addr string, db Pinger, history MatchHistory, txs TxHistory, live LiveCounter) *Server {
	s := &Server{db: db, history: history, txs: txs, live: live, started: time.Now()}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/matches/:matchId", s.getMatch)
	api.GET("/guilds/:guildId/users/:userId/matches", s.listMatches)
	api.GET("/guilds/:guildId/users/:userId/transactions", s.listTransactions)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start listens in the background.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("Ops server started")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Ops server failed")
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := s.db.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"uptime":       time.Since(s.started).Round(time.Second).String(),
		"live_matches": s.live.Len(),
	})
}

func (s *Server) getMatch(c *gin.Context) {
	rec, err := s.history.GetLatestByMatchID(c.Request.Context(), c.Param("matchId"))
	if errors.Is(err, repository.ErrMatchRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("match_id", c.Param("matchId")).Msg("Failed to load match record")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load match"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func queryLimit(c *gin.Context) (int, bool) {
	q := c.Query("limit")
	if q == "" {
		return defaultHistoryLimit, true
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return min(n, maxHistoryLimit), true
}

func (s *Server) listMatches(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	recs, err := s.history.ListByUser(c.Request.Context(), c.Param("guildId"), c.Param("userId"), limit)
	if err != nil {
		log.Error().Err(err).Str("user_id", c.Param("userId")).Msg("Failed to list match records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list matches"})
		return
	}
	if recs == nil {
		recs = []*model.MatchRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"matches": recs})
}

func (s *Server) listTransactions(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	txs, err := s.txs.GetByUser(c.Request.Context(), c.Param("userId"), c.Param("guildId"), limit)
	if err != nil {
		log.Error().Err(err).Str("user_id", c.Param("userId")).Msg("Failed to list transactions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}
	if txs == nil {
		txs = []*model.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}
