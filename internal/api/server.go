package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"scribe/internal/job"
	"scribe/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// JobSource is the read side of the job queue.
type JobSource interface {
	Snapshot() []job.Job
	Get(id string) (job.Job, bool)
	Summary() job.Summary
	IsRunning() bool
}

// Controller cancels work on behalf of API clients. Both methods report
// whether a job was running when the request arrived.
type Controller interface {
	CancelCurrent() bool
	CancelAll() bool
}

// Options wires the router to the rest of the process.
type Options struct {
	Jobs       JobSource
	Controller Controller
	Metrics    http.Handler
	Logger     *slog.Logger
	Now        func() time.Time
}

// NewRouter builds the gin engine serving the status API.
func NewRouter(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	h := &handlers{opts: opts}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(opts.Logger))

	r.GET("/health", h.health)
	group := r.Group("/api")
	group.GET("/jobs", h.listJobs)
	group.GET("/jobs/:id", h.getJob)
	group.POST("/cancel", h.cancel)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	return r
}

type handlers struct {
	opts Options
}

func (h *handlers) health(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}
	if h.opts.Jobs != nil {
		resp.Running = h.opts.Jobs.IsRunning()
		resp.Summary = FromSummary(h.opts.Jobs.Summary())
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) listJobs(c *gin.Context) {
	if h.opts.Jobs == nil {
		c.JSON(http.StatusOK, JobsResponse{Jobs: []Job{}, Summary: Summary{ByStatus: map[string]int{}}})
		return
	}
	c.JSON(http.StatusOK, JobsResponse{
		Jobs:    FromJobs(h.opts.Jobs.Snapshot(), h.opts.Now()),
		Summary: FromSummary(h.opts.Jobs.Summary()),
	})
}

func (h *handlers) getJob(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if h.opts.Jobs == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "job not found"})
		return
	}
	j, ok := h.opts.Jobs.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("job %s not found", id)})
		return
	}
	c.JSON(http.StatusOK, FromJob(j, h.opts.Now(), true))
}

func (h *handlers) cancel(c *gin.Context) {
	var req CancelRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid cancel request: " + err.Error()})
			return
		}
	}
	if req.Scope == "" {
		req.Scope = CancelScope(c.DefaultQuery("scope", string(CancelCurrent)))
	}
	if h.opts.Controller == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no pipeline attached"})
		return
	}

	var canceled bool
	switch req.Scope {
	case CancelCurrent:
		canceled = h.opts.Controller.CancelCurrent()
	case CancelAll:
		canceled = h.opts.Controller.CancelAll()
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("unknown cancel scope %q", req.Scope)})
		return
	}
	h.opts.Logger.Info("cancel requested via api",
		logging.String("scope", string(req.Scope)),
		logging.Bool("canceled", canceled),
		logging.String(logging.FieldEventType, "api_cancel"),
	)
	c.JSON(http.StatusOK, CancelResponse{Scope: req.Scope, Canceled: canceled})
}

// Server runs the router on a TCP address until its context ends.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer binds a router to addr.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(opts),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logging.NewComponentLogger(logger, "api"),
	}
}

// Run listens on the configured address and serves until ctx is canceled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("api listen %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("status api listening",
		logging.String("addr", ln.Addr().String()),
		logging.String(logging.FieldEventType, "api_listening"),
	)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.logger.Debug("status api stopped", logging.String(logging.FieldEventType, "api_stopped"))
	return nil
}
