package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/erp-workflow/internal/application/service"
	apperrors "github.com/garyjia/erp-workflow/internal/pkg/errors"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Code    string                 `json:"code,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Error     string    `json:"error,omitempty"`
}

type submitRequest struct {
	ApplicationCodeID string          `json:"application_code_id" binding:"required"`
	FormData          json.RawMessage `json:"form_data"`
	ApprovalRouteID   string          `json:"approval_route_id"`
	RequiredRouteName string          `json:"required_route_name"`
	Status            string          `json:"status" binding:"omitempty,oneof=draft pending_approval"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type routeRequest struct {
	Name        string   `json:"name" binding:"required"`
	ApproverIDs []string `json:"approver_ids" binding:"required,min=1,dive,required"`
}

type stepsRequest struct {
	ApproverIDs []string `json:"approver_ids" binding:"required,min=1,dive,required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "1.0.0",
	}
	if h.services.Health != nil {
		if err := h.services.Health(c.Request.Context()); err != nil {
			response.Status = "unhealthy"
			response.Error = err.Error()
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
	}
	c.JSON(http.StatusOK, response)
}

// ListApplicationCodes handles GET /api/application-codes
func (h *Handlers) ListApplicationCodes(c *gin.Context) {
	codes, err := h.services.Catalog.ListApplicationCodes(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: codes})
}

// ListRoutes handles GET /api/routes
func (h *Handlers) ListRoutes(c *gin.Context) {
	routes, err := h.services.Routes.ListRoutes(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: routes})
}

// GetRoute handles GET /api/routes/:id
func (h *Handlers) GetRoute(c *gin.Context) {
	route, err := h.services.Routes.GetRoute(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: route})
}

// GetRouteByName handles GET /api/routes/by-name/:name
func (h *Handlers) GetRouteByName(c *gin.Context) {
	route, err := h.services.Routes.GetRouteByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: route})
}

// CreateRoute handles POST /api/routes
func (h *Handlers) CreateRoute(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.Validation(err.Error()))
		return
	}
	route, err := h.services.Routes.CreateRoute(c.Request.Context(), req.Name, req.ApproverIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: route})
}

// UpdateRouteSteps handles PUT /api/routes/:id/steps
func (h *Handlers) UpdateRouteSteps(c *gin.Context) {
	var req stepsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.Validation(err.Error()))
		return
	}
	route, err := h.services.Routes.UpdateRouteSteps(c.Request.Context(), c.Param("id"), req.ApproverIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: route})
}

// SubmitApplication handles POST /api/applications
func (h *Handlers) SubmitApplication(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.Validation(err.Error()))
		return
	}

	status := req.Status
	if status == "pending_approval" {
		status = ""
	}

	app, err := h.services.Decision.Submit(c.Request.Context(), service.SubmitRequest{
		ApplicationCodeID: req.ApplicationCodeID,
		FormData:          req.FormData,
		ApprovalRouteID:   req.ApprovalRouteID,
		RequiredRouteName: req.RequiredRouteName,
		ApplicantID:       currentUser(c),
		Status:            status,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: app})
}

// SubmitDraft handles POST /api/applications/:id/submit
func (h *Handlers) SubmitDraft(c *gin.Context) {
	app, err := h.services.Decision.SubmitDraft(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: app})
}

// Approve handles POST /api/applications/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	app, err := h.services.Decision.Approve(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: app})
}

// Reject handles POST /api/applications/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.Validation(err.Error()))
		return
	}
	app, err := h.services.Decision.Reject(c.Request.Context(), c.Param("id"), currentUser(c), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: app})
}

// GetApplication handles GET /api/applications/:id
func (h *Handlers) GetApplication(c *gin.Context) {
	app, err := h.services.Query.GetApplication(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: app})
}

// GetHistory handles GET /api/applications/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	history, err := h.services.Query.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// ListApplications handles GET /api/applications?view=pending&q=&sort=&order=
func (h *Handlers) ListApplications(c *gin.Context) {
	view, err := service.ParseView(c.DefaultQuery("view", string(service.ViewPending)))
	if err != nil {
		h.respondError(c, err)
		return
	}
	items, err := h.services.Query.List(c.Request.Context(), view, currentUser(c), listOptions(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: items})
}

// ExportApplications handles GET /api/applications/export?view=completed
func (h *Handlers) ExportApplications(c *gin.Context) {
	if h.services.Exporter == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "export is disabled"})
		return
	}
	view, err := service.ParseView(c.DefaultQuery("view", string(service.ViewCompleted)))
	if err != nil {
		h.respondError(c, err)
		return
	}
	items, err := h.services.Query.List(c.Request.Context(), view, currentUser(c), listOptions(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("%s (%s)", view, time.Now().Format("2006-01-02 15:04"))
	if err := h.services.Exporter.Export(&buf, title, items); err != nil {
		h.logger.Error("Failed to export applications", "error", err, "view", view)
		h.respondError(c, err)
		return
	}

	filename := fmt.Sprintf("applications-%s-%s.xlsx", view, time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func listOptions(c *gin.Context) service.ListOptions {
	return service.ListOptions{
		Query:  c.Query("q"),
		SortBy: c.Query("sort"),
		Order:  c.Query("order"),
	}
}

// respondError maps err to its HTTP status. Untyped errors are logged and
// reported as 500 without their text.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	appErr, ok := apperrors.IsAppError(err)
	if !ok {
		h.logger.Error("Unhandled error", "error", err, "path", c.Request.URL.Path)
		c.JSON(status, Response{
			Success: false,
			Code:    apperrors.CodeInternal,
			Error:   "internal server error",
		})
		return
	}

	resp := Response{Success: false, Code: appErr.Code, Error: appErr.Message}
	if appErr.Code == apperrors.CodeValidationFailed {
		resp.Details = appErr.Params
	}
	c.JSON(status, resp)
}
