package analyzer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"news-analyzer/internal/events"
	"news-analyzer/internal/ml_client"
	"news-analyzer/internal/models"
)

// ErrBusy is returned when Analyze is called while a cycle is running.
var ErrBusy = errors.New("analysis already in progress")

// Service is the remote prediction API.
type Service interface {
	Predict(ctx context.Context, in models.Input) (*models.PredictionResult, error)
	Explain(ctx context.Context, in models.Input) (*models.ExplanationResult, error)
}

// Renderer draws a view state.
type Renderer interface {
	Render(state ViewState)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(state ViewState)

func (f RendererFunc) Render(state ViewState) { f(state) }

// Notifier shows a blocking error message to the user.
type Notifier interface {
	Alert(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Alert(message string) { f(message) }

// Controller runs analysis cycles. The trigger stays disabled while a cycle
// runs, so cycles never overlap.
type Controller struct {
	service   Service
	renderer  Renderer
	notifier  Notifier
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time

	busy  atomic.Bool
	mu    sync.Mutex
	state ViewState
}

// NewController creates a controller that starts idle.
func NewController(service Service, renderer Renderer, notifier Notifier, publisher events.Publisher, logger *zap.Logger) *Controller {
	if renderer == nil {
		renderer = RendererFunc(func(ViewState) {})
	}
	if notifier == nil {
		notifier = NotifierFunc(func(string) {})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		service:   service,
		renderer:  renderer,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		state:     IdleView(),
	}
}

// State returns the current view state.
func (c *Controller) State() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a cycle is running.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Analyze runs one cycle for the raw input and returns the final view state.
// Validation and prediction failures are shown through the notifier and
// returned; explanation failures are only logged. Exactly one completion
// event is published per call, except when ErrBusy is returned, and it is
// published before the next cycle can start.
func (c *Controller) Analyze(ctx context.Context, in models.Input) (final ViewState, err error) {
	if !c.busy.CompareAndSwap(false, true) {
		return c.State(), ErrBusy
	}

	cycleID := uuid.New()
	logger := c.logger.With(zap.String("cycle_id", cycleID.String()))

	c.update(resetView)
	c.update(func(s ViewState) ViewState {
		s.TriggerEnabled = false
		s.TriggerLabel = LabelBusy
		return s
	})

	defer func() {
		final = c.update(func(s ViewState) ViewState {
			s.TriggerEnabled = true
			s.TriggerLabel = LabelIdle
			return s
		})
		c.complete(cycleID, err, logger)
		c.busy.Store(false)
	}()

	if err = c.run(ctx, in, logger); err != nil {
		logger.Error("Analysis failed", zap.Error(err))
		c.notifier.Alert(Message(err))
		return final, err
	}

	return final, nil
}

func (c *Controller) run(ctx context.Context, in models.Input, logger *zap.Logger) error {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return err
	}

	prediction, err := c.service.Predict(ctx, in)
	if err != nil {
		return err
	}
	logger.Debug("Prediction response", zap.ByteString("body", prediction.Raw))

	c.update(func(s ViewState) ViewState {
		return RenderPrediction(s, prediction)
	})

	c.explain(ctx, in, logger)

	c.update(func(s ViewState) ViewState {
		s.CardVisible = true
		return s
	})
	return nil
}

// explain is best-effort: a failure leaves the terms area as it was.
func (c *Controller) explain(ctx context.Context, in models.Input, logger *zap.Logger) {
	explanation, err := c.service.Explain(ctx, in)
	if err != nil {
		logger.Warn("Explanation unavailable", zap.Error(err))
		return
	}
	logger.Debug("Explanation response", zap.Int("terms", len(explanation.TopTerms)))

	c.update(func(s ViewState) ViewState {
		return RenderExplanation(s, explanation)
	})
}

func (c *Controller) update(fn func(ViewState) ViewState) ViewState {
	c.mu.Lock()
	c.state = fn(c.state)
	state := c.state
	c.mu.Unlock()

	c.renderer.Render(state)
	return state
}

func (c *Controller) complete(cycleID uuid.UUID, err error, logger *zap.Logger) {
	signal := events.SignalDone
	if err != nil {
		signal = events.SignalError
	}
	logger.Info("Analysis finished", zap.String("signal", string(signal)))

	if c.publisher == nil {
		return
	}
	c.publisher.Publish(events.Event{
		Signal:  signal,
		CycleID: cycleID,
		At:      c.now(),
	})
}

// Message returns the text shown to the user for err.
func Message(err error) string {
	var apiErr *ml_client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	var transportErr *ml_client.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Error()
	}
	return err.Error()
}
