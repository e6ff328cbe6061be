package httpx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"greenlist/internal/assist"
	"greenlist/internal/greenlist"
	"greenlist/internal/linkguard"
	"greenlist/internal/linkguard/policy"
	"greenlist/internal/logx"
	"greenlist/internal/search"
	"greenlist/internal/store"
)

const (
	maxBodySize   = "1M"
	maxSearchSize = 100
)

type Store interface {
	Ping(ctx context.Context) error
	Now(ctx context.Context) (time.Time, error)
	InsertLog(ctx context.Context, arg store.LogParams) (int64, error)
}

type Searcher interface {
	Health(ctx context.Context) error
	Search(ctx context.Context, query string, limit, offset int, filters search.SearchFilters) (search.SearchResponse, error)
}

type Assistant interface {
	Ask(ctx context.Context, req assist.Request) (assist.Answer, error)
}

type Sanitizer interface {
	SanitizeWithTrace(ctx context.Context, text string) (string, []linkguard.Decision)
}

type Loader interface {
	Run(ctx context.Context) (greenlist.Report, error)
}

type Config struct {
	Store     Store
	Search    Searcher
	Assistant Assistant
	Sanitizer Sanitizer
	Loader    Loader
	Policy    *policy.Policy
	Metrics   *Metrics
	Service   string
	Now       func() time.Time
}

func NewServer(cfg Config) *echo.Echo {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler(cfg.Service)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(requestLogger(cfg.Service))
	e.Use(cfg.Metrics.Middleware())

	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics.Handler()))
	}

	e.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := cfg.Store.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db down"})
		}
		if cfg.Search != nil {
			if err := cfg.Search.Health(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "search down"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.GET("/test", func(c echo.Context) error {
		now, err := cfg.Store.Now(c.Request().Context())
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{
			"message": "Backend and database are connected!",
			"time":    now,
		})
	})

	e.POST("/ask", func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payload").SetInternal(err)
		}
		ans, err := cfg.Assistant.Ask(c.Request().Context(), assist.ParseRequest(body))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, ans)
	})

	e.POST("/sanitize", func(c echo.Context) error {
		text, err := sanitizeInput(c)
		if err != nil {
			return err
		}
		out, trace := cfg.Sanitizer.SanitizeWithTrace(c.Request().Context(), text)
		if trace == nil {
			trace = []linkguard.Decision{}
		}
		return c.JSON(http.StatusOK, sanitizeResponse{Text: out, Decisions: trace})
	})

	e.POST("/log", func(c echo.Context) error {
		var req logRequest
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid-json"})
		}
		input, ok := req.UserInput.(string)
		if !ok || input == "" {
			return c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": "missing-user_input"})
		}

		params := store.LogParams{Input: input, Timestamp: req.timestamp(cfg.Now)}
		if answer, ok := req.Answer.(string); ok {
			params.Response = sql.NullString{String: answer, Valid: true}
		}
		id, err := cfg.Store.InsertLog(c.Request().Context(), params)
		if err != nil {
			logx.Error(cfg.Service, "log insert", err, nil)
			return c.JSON(http.StatusInternalServerError, map[string]any{"ok": false, "error": "db-insert-failed"})
		}
		logx.Info(cfg.Service, "logged question", map[string]any{"id": id})
		return c.JSON(http.StatusCreated, map[string]any{"ok": true, "id": id})
	})

	e.POST("/load", func(c echo.Context) error {
		if cfg.Loader == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "loader not configured")
		}
		report, err := cfg.Loader.Run(c.Request().Context())
		if errors.Is(err, greenlist.ErrLoadRunning) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true, "report": report})
	})

	e.GET("/search", func(c echo.Context) error {
		if cfg.Search == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "search not configured")
		}
		limit, err := queryInt(c, "limit", 20)
		if err != nil {
			return err
		}
		offset, err := queryInt(c, "offset", 0)
		if err != nil {
			return err
		}
		if limit > maxSearchSize {
			limit = maxSearchSize
		}
		res, err := cfg.Search.Search(c.Request().Context(), c.QueryParam("q"), limit, offset,
			search.SearchFilters{Host: c.QueryParam("host")})
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, res)
	})

	if cfg.Policy != nil {
		e.GET("/policy", func(c echo.Context) error {
			return c.JSON(http.StatusOK, cfg.Policy.Stats())
		})
	}

	return e
}

type sanitizeResponse struct {
	Text      string               `json:"text"`
	Decisions []linkguard.Decision `json:"decisions"`
}

// sanitizeInput accepts either {"text": "..."} or a raw text body.
func sanitizeInput(c echo.Context) (string, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid payload").SetInternal(err)
	}
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var req struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(body, &req); err != nil || req.Text == nil {
			return "", echo.NewHTTPError(http.StatusBadRequest, "text required")
		}
		return *req.Text, nil
	}
	return string(body), nil
}

// logRequest keeps loose types: a non-string user_input is reported as
// missing and a non-numeric timestamp falls back to now.
type logRequest struct {
	Timestamp any `json:"timestamp"`
	UserInput any `json:"user_input"`
	Answer    any `json:"answer"`
}

// timestamp interprets the client value as Unix milliseconds.
func (r logRequest) timestamp(now func() time.Time) time.Time {
	ms, ok := r.Timestamp.(float64)
	if !ok {
		return now().UTC()
	}
	return time.UnixMilli(int64(ms)).UTC()
}

func queryInt(c echo.Context, key string, def int) (int, error) {
	v := c.QueryParam(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, key+" must be a non-negative integer")
	}
	return n, nil
}

func requestLogger(service string) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:      true,
		LogMethod:       true,
		LogURI:          true,
		LogStatus:       true,
		LogError:        true,
		LogRequestID:    true,
		LogResponseSize: true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			extra := map[string]any{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"size":       v.ResponseSize,
				"request_id": v.RequestID,
			}
			if v.Error != nil {
				logx.Error(service, "request", v.Error, extra)
			} else {
				logx.Info(service, "request", extra)
			}
			return nil
		},
	})
}
