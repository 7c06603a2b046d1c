package api

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"askcode/internal/domain"
)

type queryRequest struct {
	SessionID string          `json:"session_id" validate:"required"`
	Question  string          `json:"question" validate:"required"`
	Filters   *domain.Filters `json:"filters,omitempty"`
}

type suggestRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Question  string `json:"question" validate:"required"`
}

type docsRequest struct {
	SessionID       string  `json:"session_id" validate:"required"`
	DocType         string  `json:"doc_type" validate:"required,oneof=overview architecture api onboarding"`
	Audience        string  `json:"audience" validate:"omitempty,oneof=engineer pm stakeholder"`
	BusinessContext *string `json:"business_context,omitempty"`
	K               int     `json:"k,omitempty" validate:"omitempty,min=1,max=50"`
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(req)
}

func (s *Server) query(c echo.Context) error {
	var req queryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	in := domain.QueryRequest{SessionID: req.SessionID, Question: req.Question}
	if req.Filters != nil {
		in.Filters = *req.Filters
	}

	ans, err := s.engine.Query(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ans)
}

func (s *Server) suggest(c echo.Context) error {
	var req suggestRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	p, err := s.engine.Suggest(c.Request().Context(), domain.SuggestRequest{
		SessionID: req.SessionID,
		Question:  req.Question,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) generateDocs(c echo.Context) error {
	var req docsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	in := domain.DocsRequest{
		SessionID: req.SessionID,
		DocType:   domain.DocType(req.DocType),
		Audience:  domain.Audience(req.Audience),
		K:         req.K,
	}
	if req.BusinessContext != nil {
		in.BusinessContext = *req.BusinessContext
	}

	res, err := s.engine.GenerateDocs(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) metrics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Metrics())
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
