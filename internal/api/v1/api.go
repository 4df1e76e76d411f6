// Package v1 implements the JSON endpoints of the platescale API.
package v1

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/logger"
	"github.com/platescale/platescale/internal/pipeline"
	"github.com/platescale/platescale/internal/reference"
)

// Estimator runs the estimation pipeline.
type Estimator interface {
	Estimate(ctx context.Context, image []byte, plateDiameter string) (*pipeline.Estimate, error)
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	Estimator Estimator
	Table     *reference.Table
	log       logger.Logger
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// New creates the controller and registers its routes under /api/v1.
func New(e *echo.Echo, est Estimator, table *reference.Table, opts ...Option) *Controller {
	c := &Controller{
		Echo:      e,
		Group:     e.Group("/api/v1"),
		Estimator: est,
		Table:     table,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Global().Module("api")
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.POST("/estimate", c.PostEstimate)
	c.Group.GET("/reference", c.GetReference)
}

// ErrorResponse represents a standardized error response for the API
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an error response. An empty correlationID gets a
// fresh UUID.
func NewErrorResponse(err error, message string, code int, correlationID string) *ErrorResponse {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	errorStr := message
	if err != nil {
		errorStr = errors.ScrubMessage(err.Error())
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// HandleError logs err and writes the JSON error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	reqCtx := ctx.Request().Context()
	resp := NewErrorResponse(err, message, code, logger.TraceID(reqCtx))

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		c.log.WithContext(reqCtx).Error("API error", fields...)
	} else {
		c.log.WithContext(reqCtx).Warn("API error", fields...)
	}

	return ctx.JSON(code, resp)
}

// StatusForError maps an error category to an HTTP status.
func StatusForError(err error) int {
	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		return http.StatusInternalServerError
	}
	switch ee.Category {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryLimit:
		return http.StatusTooManyRequests
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryCancellation:
		return http.StatusRequestTimeout
	case errors.CategoryDetection, errors.CategoryClassification,
		errors.CategoryNutrition, errors.CategoryNetwork, errors.CategoryHTTP:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
