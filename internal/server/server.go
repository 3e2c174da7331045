// Package server exposes the webhook receiver, the dispatch and run
// status endpoints and the real-time event stream over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"github.com/Cloudsky01/rivet-deploy/internal/bus"
	"github.com/Cloudsky01/rivet-deploy/internal/github"
	"github.com/Cloudsky01/rivet-deploy/internal/runstatus"
	"github.com/Cloudsky01/rivet-deploy/internal/webhook"
	"github.com/Cloudsky01/rivet-deploy/internal/workflow"
)

const (
	// maxWebhookBody matches the largest payload GitHub delivers.
	maxWebhookBody = 25 << 20

	shutdownTimeout = 10 * time.Second
)

// GitHubAPI is everything the handlers need from the GitHub client.
type GitHubAPI interface {
	workflow.API
	runstatus.API
	GetAuthenticatedUser(ctx context.Context) (*github.User, []string, error)
}

type Options struct {
	// GitHub is nil when no token is configured; the endpoints that need
	// it then answer 500.
	GitHub        GitHubAPI
	WebhookSecret string
	Router        *webhook.Router
	Subscriber    bus.Subscriber
	Logger        *slog.Logger
}

type Server struct {
	engine     *gin.Engine
	router     *webhook.Router
	subscriber bus.Subscriber
	logger     *slog.Logger

	api        GitHubAPI
	dispatcher *workflow.Dispatcher
	aggregator *runstatus.Aggregator
	runs       singleflight.Group

	mu     sync.RWMutex
	secret string
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:     opts.Router,
		subscriber: opts.Subscriber,
		logger:     logger,
		api:        opts.GitHub,
		secret:     opts.WebhookSecret,
	}
	if opts.GitHub != nil {
		s.dispatcher = workflow.NewDispatcher(opts.GitHub, logger)
		s.aggregator = runstatus.NewAggregator(opts.GitHub, logger)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), accessLog(logger))

	engine.GET("/healthz", s.health)

	api := engine.Group("/api/github")
	{
		api.POST("/webhook", s.receiveWebhook)
		api.POST("/trigger-workflow", s.triggerWorkflow)
		api.GET("/workflow-run", s.getWorkflowRun)
		api.GET("/workflows", s.listWorkflows)
		api.GET("/validate-token", s.validateToken)
		api.GET("/events", s.streamEvents)
	}

	s.engine = engine
	return s
}

// SetWebhookSecret replaces the shared secret, e.g. after a config reload.
func (s *Server) SetWebhookSecret(secret string) {
	s.mu.Lock()
	s.secret = secret
	s.mu.Unlock()
}

func (s *Server) webhookSecret() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secret
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
