package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/qnn/internal/pipeline"
)

type Server struct {
	store   *RunStore
	service *RunService
	clock   func() time.Time
}

func NewServer(store *RunStore, service *RunService) *Server {
	if store == nil {
		store = NewRunStore(0)
	}
	return &Server{
		store:   store,
		service: service,
		clock:   time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/pipeline", s.handlePipeline)
	e.POST("/v1/runs", s.handleCreateRun)
	e.GET("/v1/runs/:id", s.handleGetRun)
	e.DELETE("/v1/runs/:id", s.handleDeleteRun)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   s.clock().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePipeline(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "run service not configured")
	}
	cfg := s.service.provider.Config()
	return writeJSON(c, http.StatusOK, PipelineInfo{
		Name:     cfg.Name,
		DType:    cfg.DType,
		Autoload: cfg.Autoload,
		Layers:   cfg.Layers,
		Kinds:    pipeline.Kinds(),
	})
}

func (s *Server) handleCreateRun(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "run service not configured")
	}
	req, err := decodeJSON[RunRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	run, err := s.service.Execute(c.Request().Context(), &req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return writeBadRequest(c, err.Error())
		}
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
	if req.Store == nil || *req.Store {
		s.store.Put(*run)
	}
	return writeJSON(c, http.StatusOK, run)
}

func (s *Server) handleGetRun(c *echo.Context) error {
	run, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "run not found")
	}
	return writeJSON(c, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "run not found")
	}
	return writeJSON(c, http.StatusOK, DeleteRunResp{
		ID:      id,
		Object:  "run",
		Deleted: true,
	})
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return writeJSON(c, status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
		},
	})
}

func writeJSON(c *echo.Context, status int, v any) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res.WriteHeader(status)
	return json.NewEncoder(res).Encode(v)
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
