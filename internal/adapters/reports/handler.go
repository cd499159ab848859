// Package reports exposes the report catalog over HTTP: descriptor listing,
// synchronous JSON/CSV runs and asynchronous multi-format exports.
package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"foodwaste/internal/logging"
	"foodwaste/pkg/reportapi"
)

// Catalog is the report surface the handler and worker depend on.
type Catalog interface {
	Descriptors() []reportapi.TemplateDescriptor
	Resolve(key string) (reportapi.HostTemplate, bool)
	Run(ctx context.Context, key string, params map[string]any, scope reportapi.Scope, format reportapi.Format) (reportapi.RunResult, []reportapi.ParameterError, error)
}

// Handler serves the /api/v1/reports routes.
type Handler struct {
	catalog Catalog
	exports ExportScheduler
	logger  *zap.Logger
}

// NewHandler builds a handler. exports may be nil, in which case the export
// routes answer 503.
func NewHandler(c Catalog, exports ExportScheduler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{catalog: c, exports: exports, logger: logger}
}

// Register mounts the routes on e.
func (h *Handler) Register(e *echo.Echo) {
	g := e.Group("/api/v1/reports")
	g.GET("", h.handleList)
	g.POST("/exports", h.handleExportCreate)
	g.GET("/exports/:id", h.handleExportGet)
	g.GET("/exports/:id/artifacts/:format", h.handleArtifact)
	g.GET("/:key", h.handleDescriptor)
	g.POST("/:key/run", h.handleRun)
}

type runRequest struct {
	Parameters  map[string]any `json:"parameters"`
	RequestedBy string         `json:"requested_by"`
}

type runResponse struct {
	Report     reportapi.TemplateDescriptor `json:"report"`
	Scope      reportapi.Scope              `json:"scope"`
	Parameters map[string]any               `json:"parameters"`
	Result     reportapi.RunResult          `json:"result"`
}

type validationResponse struct {
	Report reportapi.TemplateDescriptor `json:"report"`
	Valid  bool                         `json:"valid"`
	Errors []reportapi.ParameterError   `json:"errors"`
}

type exportRequest struct {
	Report      string         `json:"report"`
	Parameters  map[string]any `json:"parameters"`
	Formats     []string       `json:"formats"`
	RequestedBy string         `json:"requested_by"`
}

func (h *Handler) handleList(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"reports": h.catalog.Descriptors()})
}

func (h *Handler) handleDescriptor(c echo.Context) error {
	tpl, ok := h.catalog.Resolve(c.Param("key"))
	if !ok {
		return writeError(c, http.StatusNotFound, "report not found")
	}
	return c.JSON(http.StatusOK, map[string]any{"report": tpl.Descriptor()})
}

func (h *Handler) handleRun(c echo.Context) error {
	key := c.Param("key")
	tpl, ok := h.catalog.Resolve(key)
	if !ok {
		return writeError(c, http.StatusNotFound, "report not found")
	}

	var req runRequest
	if err := decodeBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid run request payload")
	}

	cleaned, errs := tpl.ValidateParameters(req.Parameters)
	if len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, validationResponse{Report: tpl.Descriptor(), Errors: errs})
	}

	format := negotiateFormat(c.Request(), tpl)
	if format == "" {
		return writeError(c, http.StatusNotAcceptable, "requested format not supported")
	}

	scope := reportapi.Scope{Requestor: firstNonEmpty(req.RequestedBy, "api")}
	result, paramErrs, err := h.catalog.Run(c.Request().Context(), key, req.Parameters, scope, format)
	if err != nil {
		logging.FromContext(c, h.logger).Error("report run failed", zap.String("report", key), zap.Error(err))
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	if len(paramErrs) > 0 {
		return c.JSON(http.StatusBadRequest, validationResponse{Report: tpl.Descriptor(), Errors: paramErrs})
	}

	if format == reportapi.FormatCSV {
		return streamCSV(c, tpl.Descriptor(), result)
	}
	return c.JSON(http.StatusOK, runResponse{
		Report:     tpl.Descriptor(),
		Scope:      scope,
		Parameters: cleaned,
		Result:     result,
	})
}

func (h *Handler) handleExportCreate(c echo.Context) error {
	if h.exports == nil {
		return writeError(c, http.StatusServiceUnavailable, "exports not configured")
	}
	var req exportRequest
	if err := decodeBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid export request payload")
	}
	if strings.TrimSpace(req.Report) == "" {
		return writeError(c, http.StatusBadRequest, "report key required")
	}

	formats := make([]reportapi.Format, 0, len(req.Formats))
	for _, f := range req.Formats {
		format, ok := parseFormat(f)
		if !ok {
			return writeError(c, http.StatusBadRequest, fmt.Sprintf("unsupported export format %q", f))
		}
		formats = append(formats, format)
	}

	record, err := h.exports.EnqueueExport(c.Request().Context(), ExportInput{
		Report:      strings.TrimSpace(req.Report),
		Parameters:  req.Parameters,
		Formats:     formats,
		RequestedBy: firstNonEmpty(req.RequestedBy, "api"),
	})
	var paramErr *ParameterErrors
	switch {
	case err == nil:
	case errors.Is(err, ErrReportNotFound):
		return writeError(c, http.StatusNotFound, err.Error())
	case errors.As(err, &paramErr):
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "parameter validation failed", "errors": paramErr.Errors})
	case errors.Is(err, ErrInvalidExport):
		return writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrQueueFull):
		return writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]any{"export": record})
}

func (h *Handler) handleExportGet(c echo.Context) error {
	if h.exports == nil {
		return writeError(c, http.StatusServiceUnavailable, "exports not configured")
	}
	record, ok := h.exports.GetExport(c.Param("id"))
	if !ok {
		return writeError(c, http.StatusNotFound, "export not found")
	}
	return c.JSON(http.StatusOK, map[string]any{"export": record})
}

func (h *Handler) handleArtifact(c echo.Context) error {
	if h.exports == nil {
		return writeError(c, http.StatusServiceUnavailable, "exports not configured")
	}
	format, ok := parseFormat(c.Param("format"))
	if !ok {
		return writeError(c, http.StatusNotAcceptable, "requested format not supported")
	}
	artifact, body, err := h.exports.OpenArtifact(c.Request().Context(), c.Param("id"), format)
	if err != nil {
		if errors.Is(err, ErrArtifactNotFound) {
			return writeError(c, http.StatusNotFound, err.Error())
		}
		logging.FromContext(c, h.logger).Error("open export artifact failed", zap.String("export_id", c.Param("id")), zap.Error(err))
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	defer func() { _ = body.Close() }()
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", artifactFilename(artifact.Key)))
	return c.Stream(http.StatusOK, artifact.ContentType, body)
}

func decodeBody(c echo.Context, dst any) error {
	err := json.NewDecoder(c.Request().Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// negotiateFormat picks json or csv from ?format= or the Accept header. Other
// formats are export-only and yield "".
func negotiateFormat(r *http.Request, tpl reportapi.HostTemplate) reportapi.Format {
	wanted := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if wanted == "" {
		if strings.Contains(r.Header.Get(echo.HeaderAccept), "text/csv") {
			wanted = string(reportapi.FormatCSV)
		} else {
			wanted = string(reportapi.FormatJSON)
		}
	}
	switch format := reportapi.Format(wanted); format {
	case reportapi.FormatCSV, reportapi.FormatJSON:
		if tpl.SupportsFormat(format) {
			return format
		}
	}
	return ""
}

func parseFormat(raw string) (reportapi.Format, bool) {
	wanted := reportapi.Format(strings.ToLower(strings.TrimSpace(raw)))
	for _, candidate := range reportapi.AllFormats {
		if candidate == wanted {
			return candidate, true
		}
	}
	return "", false
}

func streamCSV(c echo.Context, descriptor reportapi.TemplateDescriptor, result reportapi.RunResult) error {
	filename := fmt.Sprintf("%s-%s.csv", descriptor.Key, result.GeneratedAt.UTC().Format("20060102T150405Z"))
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	res.WriteHeader(http.StatusOK)
	return writeCSV(res, columnsOf(descriptor, result), result.Rows)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func writeError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]any{"error": message})
}
