// Package httpapi exposes the vaultkeeper engines over HTTP.
//
// Every route except /healthz, /metrics and one-time link resolution
// requires a bearer token naming the caller. Errors are returned as
// {"error": ..., "code": ...}.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// Services groups the engines the API dispatches to.
type Services struct {
	Vaults     *services.VaultService
	Items      *services.ItemService
	Checkout   *services.CheckoutService
	Reveal     *services.RevealService
	JIT        *services.JITService
	BreakGlass *services.BreakGlassService
	Links      *services.LinkService
	Audit      *services.AuditService
}

type Config struct {
	Address       string
	JWTSecret     string
	LinkRateLimit float64
	LinkRateBurst int
}

type Server struct {
	address     string
	engine      *gin.Engine
	svc         Services
	logger      logging.Logger
	jwtSecret   []byte
	linkLimiter *ipRateLimiter
}

func NewServer(cfg Config, svc Services, l logging.Logger) *Server {
	s := &Server{
		address:     cfg.Address,
		svc:         svc,
		logger:      l.With("module", "http_server"),
		jwtSecret:   []byte(cfg.JWTSecret),
		linkLimiter: newIPRateLimiter(cfg.LinkRateLimit, cfg.LinkRateBurst),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), instrument(), requestMeta())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// public: the token is the capability
	r.GET("/api/links/:token", s.linkLimiter.Middleware(), noStore(), s.resolveLink)

	api := r.Group("/api", s.authenticate())

	api.POST("/vaults", s.createVault)
	api.GET("/vaults/:id", s.getVault)

	api.POST("/items", s.createItem)
	api.GET("/items/kinds", s.listKinds)
	api.GET("/items/kinds/:kind", s.getKind)
	api.GET("/items/:id", s.getItem)
	api.POST("/items/:id/checkout", s.checkout)
	api.POST("/items/:id/checkin", s.checkin)
	api.GET("/items/:id/checkout", s.checkoutStatus)
	api.POST("/items/:id/reveal", noStore(), s.reveal)

	api.POST("/jit/request", s.requestJIT)
	api.GET("/jit/requests", s.listJIT)
	api.GET("/jit/:id", s.getJIT)
	api.POST("/jit/:id/approve", s.approveJIT)
	api.POST("/jit/:id/deny", s.denyJIT)

	api.POST("/breakglass/request", s.requestBreakGlass)
	api.GET("/breakglass/requests", s.listBreakGlass)
	api.GET("/breakglass/:id", s.getBreakGlass)
	api.POST("/breakglass/:id/approve", s.approveBreakGlass)
	api.POST("/breakglass/:id/revoke", s.revokeBreakGlass)

	api.POST("/links", s.mintLink)

	api.GET("/audit/logs", s.queryAudit)
	api.POST("/audit/export", s.exportAudit)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.linkLimiter.cleanup(ctx, time.Minute)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
