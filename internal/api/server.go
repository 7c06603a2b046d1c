package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"askcode/internal/domain"
)

// Engine is the question-answering surface the server exposes.
type Engine interface {
	Query(ctx context.Context, req domain.QueryRequest) (domain.Answer, error)
	Suggest(ctx context.Context, req domain.SuggestRequest) (domain.Proposal, error)
	GenerateDocs(ctx context.Context, req domain.DocsRequest) (domain.DocsResult, error)
	Metrics() domain.MetricsSnapshot
}

type Server struct {
	echo   *echo.Echo
	engine Engine
	log    *zap.Logger
}

type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	if err := rv.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("missing %s", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("invalid %s", fe.Field())
	}
}

// New builds the HTTP server. gatherer backs GET /metrics; nil uses the
// default prometheus registry.
func New(engine Engine, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: newValidator()}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	}))

	s := &Server{echo: e, engine: engine, log: log}
	e.HTTPErrorHandler = s.handleError

	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	api.POST("/query", s.query)
	api.POST("/suggest", s.suggest)
	api.POST("/docs/generate", s.generateDocs)
	api.GET("/metrics", s.metrics)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("http server listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleError renders errors as {"error": msg} and maps domain errors to
// status codes.
func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := "internal error"

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		msg = fmt.Sprint(he.Message)
	case errors.Is(err, domain.ErrNotIngested):
		code = http.StatusNotFound
		msg = err.Error()
	case domain.IsRequestError(err):
		code = http.StatusBadRequest
		msg = err.Error()
	default:
		s.log.Error("unhandled error", zap.String("path", c.Request().URL.Path), zap.Error(err))
	}

	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}
