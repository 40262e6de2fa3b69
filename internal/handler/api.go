package handler

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"news-analyzer/internal/analyzer"
	"news-analyzer/internal/events"
	"news-analyzer/internal/models"
)

//go:embed templates/index.html
var templatesFS embed.FS

// StatsProvider returns the service-side prediction counters.
type StatsProvider interface {
	Metrics(ctx context.Context) (*models.Metrics, error)
}

// Handler serves the analysis page, its JSON API and the completion
// broadcast.
type Handler struct {
	controller *analyzer.Controller
	stats      StatsProvider
	bus        *events.Bus
	logger     *zap.Logger
}

// NewHandler creates a new web UI handler
func NewHandler(controller *analyzer.Controller, stats StatsProvider, bus *events.Bus, logger *zap.Logger) *Handler {
	return &Handler{
		controller: controller,
		stats:      stats,
		bus:        bus,
		logger:     logger,
	}
}

type pageData struct {
	State analyzer.ViewState
	Input models.Input
	Alert string
}

// PageTemplate parses the embedded page template.
func PageTemplate() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"badgeClass": func(style analyzer.BadgeStyle) string { return string(style) },
	}).ParseFS(templatesFS, "templates/index.html"))
}

// RegisterRoutes registers all routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.SetHTMLTemplate(PageTemplate())

	r.GET("/", h.Index)
	r.POST("/analyze", h.AnalyzeForm)
	r.GET("/events", h.Events)

	api := r.Group("/api")
	{
		api.POST("/analyze", h.Analyze)
		api.GET("/stats", h.GetStats)
	}

	// Health check
	r.GET("/health", h.HealthCheck)
}

// Index renders an empty page. The controller's state belongs to whoever ran
// the last cycle and is never shown to other visitors.
func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", pageData{State: analyzer.IdleView()})
}

// AnalyzeForm runs a cycle from the HTML form and renders the result
func (h *Handler) AnalyzeForm(c *gin.Context) {
	var input models.Input
	if err := c.ShouldBind(&input); err != nil {
		c.HTML(http.StatusBadRequest, "index.html", pageData{State: analyzer.IdleView(), Alert: err.Error()})
		return
	}

	state, err := h.controller.Analyze(c.Request.Context(), input)
	if errors.Is(err, analyzer.ErrBusy) {
		state = analyzer.IdleView()
	}
	data := pageData{State: state, Input: input}
	if err != nil {
		data.Alert = analyzer.Message(err)
	}

	c.HTML(statusFor(err), "index.html", data)
}

// Analyze handles POST /api/analyze
func (h *Handler) Analyze(c *gin.Context) {
	var input models.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.controller.Analyze(c.Request.Context(), input)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": analyzer.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"view": state})
}

// GetStats returns the prediction service metrics
func (h *Handler) GetStats(c *gin.Context) {
	metrics, err := h.stats.Metrics(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get metrics", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": analyzer.Message(err)})
		return
	}

	c.JSON(http.StatusOK, metrics)
}

// HealthCheck reports that the web UI is up
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, analyzer.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, models.ErrInputTooShort):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
