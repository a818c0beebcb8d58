package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/cardio-insights-server/internal/domain"
	"github.com/cardio-insights-server/internal/middleware"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// calculate adapts a calculator service method to a gin handler. The JSON body carries the
// calculator input alongside the optional patient_id and persist fields.
func calculate[In, Out any](s *Server, fn func(context.Context, In, domain.CalculationMeta) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in In
		if err := c.ShouldBindBodyWith(&in, binding.JSON); err != nil {
			s.respondError(c, fmt.Errorf("malformed request body: %w: %v", domain.ErrInvalidInput, err))
			return
		}

		var meta domain.CalculationMeta
		if err := c.ShouldBindBodyWith(&meta, binding.JSON); err != nil {
			s.respondError(c, fmt.Errorf("malformed request body: %w: %v", domain.ErrInvalidInput, err))
			return
		}
		meta.RequestID = middleware.RequestID(c)

		out, err := fn(c.Request.Context(), in, meta)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) handleConduits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"conduits": s.deps.Calculators.ConduitPatencyTable()})
}

func (s *Server) handleConduit(c *gin.Context) {
	row, err := s.deps.Calculators.ConduitPatency(c.Param("type"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) handleWorklistSummaries(c *gin.Context) {
	sums, err := s.deps.Worklists.Summaries(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"worklists": sums})
}

func (s *Server) handleWorklist(c *gin.Context) {
	wl, err := s.deps.Worklists.GetWorklist(c.Request.Context(), c.Param("filter"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wl)
}

func (s *Server) handleWorklistExport(c *gin.Context) {
	var buf bytes.Buffer
	wl, err := s.deps.Worklists.ExportXLSX(c.Request.Context(), c.Param("filter"), &buf)
	if err != nil {
		s.respondError(c, err)
		return
	}

	filename := fmt.Sprintf("%s-%s.xlsx", wl.Filter, wl.GeneratedAt.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (s *Server) handlePatient(c *gin.Context) {
	p, err := s.deps.Worklists.GetPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handlePatientAssessments(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.respondError(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		s.respondError(c, err)
		return
	}

	records, err := s.deps.Calculators.PatientAssessments(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"patient_id":  c.Param("id"),
		"assessments": records,
		"count":       len(records),
	})
}

func (s *Server) handleAssessments(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.respondError(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		s.respondError(c, err)
		return
	}

	records, total, err := s.deps.Calculators.Assessments(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"assessments": records,
		"count":       len(records),
		"total":       total,
	})
}

func (s *Server) handleAssessmentDelete(c *gin.Context) {
	if err := s.deps.Calculators.DeleteAssessment(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAssessmentImport(c *gin.Context) {
	imported, skipped, err := s.deps.Calculators.ImportAssessments(c.Request.Context(), c.Request.Body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported, "skipped": skipped})
}

func (s *Server) handleAssessment(c *gin.Context) {
	rec, err := s.deps.Calculators.Assessment(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleAssessmentExport(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.deps.Calculators.ExportAssessments(c.Request.Context(), &buf); err != nil {
		s.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="assessments-%s.json"`, time.Now().UTC().Format("20060102")))
	c.Data(http.StatusOK, "application/json", buf.Bytes())
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, domain.NewValidationError(name, "must be a non-negative integer", raw)
	}
	return v, nil
}

// respondError maps service errors onto the APIError envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	requestID := middleware.RequestID(c)

	status := http.StatusInternalServerError
	apiErr := domain.NewAPIError(domain.CodeInternalServer, "Internal server error", "", requestID)

	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
		apiErr = domain.NewAPIError(domain.CodeValidation, vErr.Error(), vErr.Field, requestID)
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
		apiErr = domain.NewAPIError(domain.CodeInvalidInput, "Invalid request", err.Error(), requestID)
	case errors.Is(err, domain.ErrUnknownFilter):
		status = http.StatusNotFound
		apiErr = domain.NewAPIError(domain.CodeUnknownFilter, "Unknown worklist filter", err.Error(), requestID)
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		apiErr = domain.NewAPIError(domain.CodeNotFound, "Resource not found", err.Error(), requestID)
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		apiErr = domain.NewAPIError(domain.CodeTimeout, "Request timed out", "", requestID)
	case errors.Is(err, domain.ErrHistoryDisabled):
		status = http.StatusServiceUnavailable
		apiErr = domain.NewAPIError(domain.CodeHistoryOff, "Assessment history is not enabled", "", requestID)
	case errors.Is(err, domain.ErrUnavailable):
		status = http.StatusServiceUnavailable
		apiErr = domain.NewAPIError(domain.CodeUnavailable, "Service temporarily unavailable", err.Error(), requestID)
	default:
		_ = c.Error(err)
	}

	c.AbortWithStatusJSON(status, apiErr)
}
