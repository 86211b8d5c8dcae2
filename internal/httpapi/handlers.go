// Package httpapi exposes the control plane's HTTP surface: job
// enqueue/lookup, the scheduled-promotion tick, queue introspection,
// and the domain metrics exposition, built on gin the way the teacher's
// own handlers are.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pytake/taskqueue/internal/bench"
	"github.com/pytake/taskqueue/internal/logger"
	"github.com/pytake/taskqueue/internal/metrics"
	"github.com/pytake/taskqueue/internal/queue"
)

// Handler groups the control plane's dependencies behind the HTTP
// surface.
type Handler struct {
	engine   *queue.Engine
	sink     *metrics.Sink
	process  *metrics.ProcessRegistry
	log      *logger.Logger
	validate *validator.Validate
	version  string
}

// New constructs a Handler.
func New(engine *queue.Engine, sink *metrics.Sink, process *metrics.ProcessRegistry, log *logger.Logger, version string) *Handler {
	return &Handler{
		engine:   engine,
		sink:     sink,
		process:  process,
		log:      log,
		validate: validator.New(),
		version:  version,
	}
}

// EnqueueRequest is the body of POST /jobs.
type EnqueueRequest struct {
	Type       string                 `json:"type" binding:"required" validate:"required,oneof=echo sleep"`
	Payload    map[string]interface{} `json:"payload"`
	DelaySec   float64                `json:"delay_sec" validate:"gte=0"`
	MaxRetries int                    `json:"max_retries" validate:"gte=0"`
	BackoffSec float64                `json:"backoff_sec" validate:"gt=1.0"`
	Priority   string                 `json:"priority" validate:"omitempty,oneof=high default low"`
}

// EnqueueResponse is the body of a successful POST /jobs.
type EnqueueResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// JobStatusResponse is the body of GET /jobs/:id.
type JobStatusResponse struct {
	ID       string      `json:"id"`
	Status   string      `json:"status"`
	Attempts int         `json:"attempts"`
	Result   interface{} `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
	Priority string      `json:"priority"`
}

// CreateJob enqueues a new job.
// @Summary Enqueue a job
// @Description Creates a job and places it on its priority queue, or on the scheduled set if delay_sec is positive
// @Tags Jobs
// @Accept json
// @Produce json
// @Param request body EnqueueRequest true "Job to enqueue"
// @Success 200 {object} EnqueueResponse
// @Failure 422 {object} map[string]string
// @Router /jobs [post]
func (h *Handler) CreateJob(c *gin.Context) {
	var req EnqueueRequest
	req.MaxRetries = 3
	req.BackoffSec = 1.5
	req.Priority = string(queue.PriorityDefault)

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	priority := queue.Priority(req.Priority)
	job := queue.NewJob(uuid.NewString(), req.Type, req.Payload, req.MaxRetries, req.BackoffSec, priority)

	if err := h.engine.Enqueue(c.Request.Context(), job, req.DelaySec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}
	if h.sink != nil {
		h.sink.IncCounter(c.Request.Context(), "job_queue_enqueued_total", map[string]string{"priority": string(job.Priority)})
	}

	c.JSON(http.StatusOK, EnqueueResponse{ID: job.ID, Status: string(job.Status), Priority: string(job.Priority)})
}

// GetJob returns a single job's current state.
// @Summary Get job status
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} JobStatusResponse
// @Failure 404 {object} map[string]string
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(c *gin.Context) {
	id := c.Param("id")
	job, ok, err := h.engine.Load(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	resp := JobStatusResponse{
		ID:       job.ID,
		Status:   string(job.Status),
		Attempts: job.Attempts,
		Result:   job.Result,
		Priority: string(job.Priority),
	}
	if job.Error != nil {
		resp.Error = *job.Error
	}
	c.JSON(http.StatusOK, resp)
}

// Tick promotes any due scheduled jobs onto their priority queues.
// @Summary Promote due scheduled jobs
// @Description Intended to be called by an external scheduler (or the demo UI); the worker loop also calls this before every dequeue
// @Tags Control
// @Produce json
// @Success 200 {object} map[string]int
// @Router /_tick [post]
func (h *Handler) Tick(c *gin.Context) {
	moved, err := h.engine.PromoteDue(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to promote due jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": moved})
}

// QueuesSummary reports queue depths and a peek at the head/tail of
// each list.
// @Summary Queue sizes and peek
// @Tags Control
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /queues [get]
func (h *Handler) QueuesSummary(c *gin.Context) {
	ctx := c.Request.Context()
	sizes, err := h.engine.Sizes(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read queue sizes"})
		return
	}
	peek, err := h.engine.PeekQueues(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to peek queues"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sizes": sizes, "peek": peek})
}

// Recent returns the most recently updated jobs.
// @Summary Recently updated jobs
// @Tags Control
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /recent [get]
func (h *Handler) Recent(c *gin.Context) {
	jobs, err := h.engine.Recent(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to scan recent jobs"})
		return
	}

	type recentJob struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Priority string `json:"priority"`
		Status   string `json:"status"`
		Attempts int    `json:"attempts"`
		Error    string `json:"error,omitempty"`
		Updated  string `json:"updated_at"`
	}

	out := make([]recentJob, 0, len(jobs))
	for _, j := range jobs {
		rj := recentJob{
			ID:       j.ID,
			Type:     j.Type,
			Priority: string(j.Priority),
			Status:   string(j.Status),
			Attempts: j.Attempts,
			Updated:  formatTimestamp(j.UpdatedAt),
		}
		if j.Error != nil {
			rj.Error = *j.Error
		}
		out = append(out, rj)
	}
	c.JSON(http.StatusOK, gin.H{"recent": out})
}

// Metrics renders the domain's own Prometheus exposition from the
// store, supplemented with point-in-time queue-depth gauges.
// @Summary Domain Prometheus exposition
// @Tags Control
// @Produce plain
// @Success 200 {string} string
// @Router /metrics [get]
func (h *Handler) Metrics(c *gin.Context) {
	ctx := c.Request.Context()
	body, err := h.sink.Render(ctx)
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to render metrics\n")
		return
	}

	sizes, err := h.engine.Sizes(ctx)
	if err == nil {
		body += metrics.RenderSupplementalGauges(sizes.High+sizes.Default+sizes.Low, sizes.Scheduled, sizes.DeadLetter, h.version)
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(body))
}

// Health reports basic liveness.
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Demo enqueues a canned demo burst.
// @Summary Enqueue a demo burst
// @Tags Demo
// @Produce json
// @Param size query string false "small, medium, or large" default(small)
// @Success 200 {object} map[string]int
// @Router /demo [get]
func (h *Handler) Demo(c *gin.Context) {
	size := bench.DemoSize(c.DefaultQuery("size", string(bench.DemoSmall)))
	n, err := bench.RunDemo(c.Request.Context(), h.engine, h.sink, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue demo jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enqueued": n})
}

// DemoComplex enqueues the fixed priority/delay/failure demo mix.
// @Summary Enqueue the complex demo mix
// @Tags Demo
// @Produce json
// @Success 200 {object} map[string]string
// @Router /demo/complex [get]
func (h *Handler) DemoComplex(c *gin.Context) {
	if err := bench.RunComplexDemo(c.Request.Context(), h.engine, h.sink); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue complex demo"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "enqueued"})
}

func formatTimestamp(unix float64) string {
	return formatFloat(unix)
}
