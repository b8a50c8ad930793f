package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ollama-catalog/internal/core/domain"
	"ollama-catalog/internal/core/usecase"
)

// CatalogService is the part of usecase.CatalogCache served over HTTP.
type CatalogService interface {
	EnumerateCached(ctx context.Context) iter.Seq2[domain.ModelListing, error]
	EnumerateAndRefresh(ctx context.Context) iter.Seq2[domain.ModelListing, error]
	GetListingDetails(ctx context.Context, name string) (domain.ModelListingDetails, error)
	LastSweep(ctx context.Context) (time.Time, error)
}

type SweepRunner interface {
	RunSweep(ctx context.Context, removeUnlisted bool) (domain.SweepReport, error)
}

type CatalogController struct {
	catalog CatalogService
	sweeps  SweepRunner
}

func NewCatalogController(catalog CatalogService, sweeps SweepRunner) (*CatalogController, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog service cannot be nil")
	}
	if sweeps == nil {
		return nil, fmt.Errorf("sweep runner cannot be nil")
	}
	return &CatalogController{catalog: catalog, sweeps: sweeps}, nil
}

// ListCatalog handles GET /api/catalog. With refresh=true the listings are
// streamed as NDJSON while the live catalog is walked.
func (h *CatalogController) ListCatalog(c *gin.Context) {
	refresh, err := strconv.ParseBool(c.DefaultQuery("refresh", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh must be a boolean"})
		return
	}
	if refresh {
		h.streamRefresh(c)
		return
	}

	listings := []domain.ModelListing{}
	for l, err := range h.catalog.EnumerateCached(c.Request.Context()) {
		if err != nil {
			writeHTTPError(c, err)
			return
		}
		listings = append(listings, l)
	}
	c.JSON(http.StatusOK, listings)
}

// streamRefresh writes one JSON object per line. An error after the first
// line can no longer change the status, so it becomes the final line.
func (h *CatalogController) streamRefresh(c *gin.Context) {
	enc := json.NewEncoder(c.Writer)
	started := false
	for l, err := range h.catalog.EnumerateAndRefresh(c.Request.Context()) {
		if err != nil {
			if !started {
				writeHTTPError(c, err)
				return
			}
			slog.Warn("HTTPAPI: refresh stream ended with error", "error", err)
			if encErr := enc.Encode(gin.H{"error": err.Error()}); encErr != nil {
				slog.Warn("HTTPAPI: client went away before the error line", "error", encErr)
				return
			}
			c.Writer.Flush()
			return
		}
		if !started {
			c.Header("Content-Type", "application/x-ndjson")
			c.Status(http.StatusOK)
			started = true
		}
		if err := enc.Encode(l); err != nil {
			slog.Warn("HTTPAPI: client went away during refresh", "error", err)
			return
		}
		c.Writer.Flush()
	}
	if !started {
		c.Header("Content-Type", "application/x-ndjson")
		c.Status(http.StatusOK)
		c.Writer.WriteHeaderNow()
	}
}

// GetDetails handles GET /api/catalog/details/*name; name may contain a
// namespace.
func (h *CatalogController) GetDetails(c *gin.Context) {
	name := strings.Trim(c.Param("name"), "/")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model name is required"})
		return
	}

	details, err := h.catalog.GetListingDetails(c.Request.Context(), name)
	if err != nil {
		writeHTTPError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// RunSweep handles POST /api/catalog/sweep. An empty body prunes delisted
// models.
func (h *CatalogController) RunSweep(c *gin.Context) {
	var req domain.SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.sweeps.RunSweep(c.Request.Context(), req.RemoveUnlisted())
	switch {
	case errors.Is(err, usecase.ErrSweepInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil && report.State != domain.SweepDone:
		c.JSON(statusFor(err), report)
	default:
		c.JSON(http.StatusOK, report)
	}
}

// LastSweep handles GET /api/catalog/sweep/last.
func (h *CatalogController) LastSweep(c *gin.Context) {
	last, err := h.catalog.LastSweep(c.Request.Context())
	if err != nil {
		writeHTTPError(c, err)
		return
	}
	var body struct {
		LastSweep *time.Time `json:"last_sweep"`
	}
	if !last.IsZero() {
		body.LastSweep = &last
	}
	c.JSON(http.StatusOK, body)
}

func statusFor(err error) int {
	var transportErr *domain.TransportError
	var parseErr *domain.ParseError
	var formatErr *domain.FormatError
	switch {
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	case errors.As(err, &parseErr), errors.As(err, &formatErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeHTTPError(c *gin.Context, err error) {
	status := statusFor(err)
	logger := slog.With("method", c.Request.Method, "path", c.FullPath())
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		logger.Error("HTTPAPI: request failed", "status", status, "error", err)
	} else {
		logger.Warn("HTTPAPI: request failed", "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
