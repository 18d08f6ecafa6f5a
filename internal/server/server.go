package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"gapscan/internal/ingest"
	"gapscan/internal/market"
	"gapscan/internal/publish"
	"gapscan/internal/risk"
	"gapscan/internal/scanner"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"
)

const shutdownTimeout = 5 * time.Second

// Backend is what the API reads from and reports trades to.
type Backend interface {
	Latest() publish.Watchlist
	ScanNow(ctx context.Context) []scanner.Candidate
	Symbol(symbol string) (market.SymbolState, bool)
	Risk() risk.Status
	Report() risk.Report
	RegisterTrade(ctx context.Context, pnl float64) risk.Status
	Tracked() int
	Ingesting() bool
	IngestStats() ingest.Stats
}

// Server is the HTTP status API.
type Server struct {
	backend Backend
	router  *gin.Engine
}

// New builds the routes. A nil registry disables /metrics.
func New(backend Backend, registry *prometheus.Registry) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{backend: backend, router: router}
	router.GET("/healthz", s.health)
	router.GET("/watchlist", s.watchlist)
	router.GET("/symbols/:symbol", s.symbol)
	router.GET("/risk", s.riskStatus)
	router.POST("/trades", s.registerTrade)
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	}
	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logs.Infof("http api listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) health(c *gin.Context) {
	ingesting := s.backend.Ingesting()
	status, code := "ok", http.StatusOK
	if !ingesting {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"ingesting": ingesting,
		"tracked":   s.backend.Tracked(),
		"ingest":    s.backend.IngestStats(),
		"halted":    s.backend.Risk().State == risk.StateHalted,
	})
}

func (s *Server) watchlist(c *gin.Context) {
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		s.backend.ScanNow(c.Request.Context())
	}
	c.JSON(http.StatusOK, s.backend.Latest())
}

func (s *Server) symbol(c *gin.Context) {
	state, ok := s.backend.Symbol(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "symbol not tracked"})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) riskStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": s.backend.Risk(),
		"report": s.backend.Report(),
	})
}

type tradeRequest struct {
	PnL *float64 `json:"pnl" binding:"required"`
}

func (s *Server) registerTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	c.JSON(http.StatusOK, s.backend.RegisterTrade(c.Request.Context(), *req.PnL))
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Writer.Status() >= http.StatusInternalServerError {
			logs.Warnf("http %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
		}
	}
}
